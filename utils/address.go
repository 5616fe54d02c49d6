package utils

import (
	"net/mail"
	"regexp"
	"strings"
)

var bareEmailRe = regexp.MustCompile(`[^\s<>]+@[^\s<>]+`)

// ExtractEmail pulls the bare address out of a header value such as
// "Jane <jane@x.com>". Falls back to the raw input when nothing parses.
func ExtractEmail(address string) string {
	if addr, err := mail.ParseAddress(address); err == nil {
		return strings.ToLower(addr.Address)
	}
	if m := bareEmailRe.FindString(address); m != "" {
		return strings.ToLower(m)
	}
	return strings.ToLower(strings.TrimSpace(address))
}

// ExtractName returns the display-name portion of an address header, or ""
// when there is none.
func ExtractName(address string) string {
	if addr, err := mail.ParseAddress(address); err == nil {
		return strings.TrimSpace(addr.Name)
	}
	if idx := strings.Index(address, "<"); idx > 0 {
		return strings.TrimSpace(address[:idx])
	}
	return ""
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML produces a plain-text fallback from an HTML body.
func StripHTML(html string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(html, ""))
}
