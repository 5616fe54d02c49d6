package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmail(t *testing.T) {
	cases := map[string]string{
		"Jane Smith <Jane@Example.com>": "jane@example.com",
		"jane@example.com":              "jane@example.com",
		"  JANE@EXAMPLE.COM  ":          "jane@example.com",
		"\"Smith, Jane\" <jane@example.com>": "jane@example.com",
	}
	for input, want := range cases {
		assert.Equal(t, want, ExtractEmail(input), "input %q", input)
	}
}

func TestExtractName(t *testing.T) {
	assert.Equal(t, "Jane Smith", ExtractName("Jane Smith <jane@example.com>"))
	assert.Equal(t, "", ExtractName("jane@example.com"))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello there", StripHTML("<p>Hello <b>there</b></p>"))
	assert.Equal(t, "plain text", StripHTML("plain text"))
}
