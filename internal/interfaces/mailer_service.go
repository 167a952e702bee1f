package interfaces

import "context"

// MailAttachment is one file attached to an outbound message.
type MailAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// MailerService sends generated documents over SMTP. Credentials live in the
// KV store under smtp_* keys.
type MailerService interface {
	// SendDocument mails the finished artifacts to one recipient.
	SendDocument(ctx context.Context, to string, subject string, body string, attachments []MailAttachment) error

	// IsConfigured reports whether SMTP credentials are present.
	IsConfigured(ctx context.Context) bool
}
