package email

import (
	"context"
	"fmt"
	"strings"

	"flowdesk/config"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// OutboundEmail is one message handed to the transport.
type OutboundEmail struct {
	From      string
	FromName  string
	To        string
	Subject   string
	Text      string
	HTML      string
	InReplyTo string
}

// Transport delivers mail. Implementations return the provider message ID
// only once the message has actually been accepted for delivery.
type Transport interface {
	Send(ctx context.Context, m OutboundEmail) (providerMessageID string, err error)
}

// SMTPTransport sends through a plain SMTP relay via gomail.
type SMTPTransport struct {
	dialer *gomail.Dialer
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (t *SMTPTransport) Send(ctx context.Context, m OutboundEmail) (string, error) {
	messageID := generateMessageID(m.From)

	msg := gomail.NewMessage()
	if m.FromName != "" {
		msg.SetAddressHeader("From", m.From, m.FromName)
	} else {
		msg.SetHeader("From", m.From)
	}
	msg.SetHeader("To", m.To)
	msg.SetHeader("Subject", m.Subject)
	msg.SetHeader("Message-ID", messageID)
	if m.InReplyTo != "" {
		msg.SetHeader("In-Reply-To", m.InReplyTo)
		msg.SetHeader("References", m.InReplyTo)
	}

	if m.Text != "" {
		msg.SetBody("text/plain", m.Text)
		if m.HTML != "" {
			msg.AddAlternative("text/html", m.HTML)
		}
	} else {
		msg.SetBody("text/html", m.HTML)
	}

	if err := t.dialer.DialAndSend(msg); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return messageID, nil
}

func generateMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}
