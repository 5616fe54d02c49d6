package email

import (
	"fmt"
	"strings"

	"flowdesk/models"
	"flowdesk/utils"
)

// Composer produces reply drafts for inbound messages. The default is a
// plain acknowledgment; swap in something smarter via the Service field.
type Composer interface {
	Compose(thread *models.Thread, inbound *models.Message, contact *models.Contact) (subject, text, html string)
}

// AckComposer writes a short acknowledgment reply.
type AckComposer struct {
	SignOff string
}

func (c AckComposer) Compose(thread *models.Thread, inbound *models.Message, contact *models.Contact) (string, string, string) {
	subject := thread.Subject
	if subject == "" && inbound != nil {
		subject = inbound.Subject
	}
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	if subject == "" {
		subject = "Re: your message"
	}

	greeting := "Hi"
	if contact != nil && contact.Name != "" {
		greeting = "Hi " + firstName(contact.Name)
	}

	signOff := c.SignOff
	if signOff == "" {
		signOff = "Best regards"
	}

	text := fmt.Sprintf("%s,\n\nThanks for reaching out. We received your message and will get back to you shortly.\n\n%s", greeting, signOff)
	html := fmt.Sprintf("<p>%s,</p><p>Thanks for reaching out. We received your message and will get back to you shortly.</p><p>%s</p>", greeting, signOff)
	return subject, text, html
}

func firstName(full string) string {
	if name := utils.ExtractName(full); name != "" {
		full = name
	}
	if idx := strings.IndexByte(full, ' '); idx > 0 {
		return full[:idx]
	}
	return full
}
