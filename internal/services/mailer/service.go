// -----------------------------------------------------------------------
// Mailer Service - delivers generated artifacts over SMTP
// Credentials are stored in KeyValue storage with smtp_ prefix
// -----------------------------------------------------------------------

package mailer

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// SMTPConfig holds SMTP settings loaded from KeyValue storage.
type SMTPConfig struct {
	Host     string `json:"smtp_host"`
	Port     int    `json:"smtp_port"`
	Username string `json:"smtp_username"`
	Password string `json:"smtp_password"`
	From     string `json:"smtp_from"`
	FromName string `json:"smtp_from_name"`
	UseTLS   bool   `json:"smtp_use_tls"`
}

// Service mails finished documentation artifacts. SMTP credentials live in
// the KV store so they survive config-file resets.
type Service struct {
	config *common.Config
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

var _ interfaces.MailerService = (*Service)(nil)

// NewService creates the mailer.
func NewService(config *common.Config, kv interfaces.KeyValueStorage, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		kv:     kv,
		logger: logger,
	}
}

// GetConfig retrieves SMTP configuration from KeyValue storage.
func (s *Service) GetConfig(ctx context.Context) (*SMTPConfig, error) {
	config := &SMTPConfig{
		Port:     587,
		UseTLS:   true,
		FromName: s.config.Mail.FromName,
	}
	if config.FromName == "" {
		config.FromName = "Scribo"
	}

	if host, err := s.kv.Get(ctx, "smtp_host"); err == nil && host != "" {
		config.Host = host
	}
	if portStr, err := s.kv.Get(ctx, "smtp_port"); err == nil && portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			config.Port = port
		}
	}
	if username, err := s.kv.Get(ctx, "smtp_username"); err == nil {
		config.Username = username
	}
	if password, err := s.kv.Get(ctx, "smtp_password"); err == nil {
		config.Password = password
	}
	if from, err := s.kv.Get(ctx, "smtp_from"); err == nil && from != "" {
		config.From = from
	}
	if fromName, err := s.kv.Get(ctx, "smtp_from_name"); err == nil && fromName != "" {
		config.FromName = fromName
	}
	if tlsStr, err := s.kv.Get(ctx, "smtp_use_tls"); err == nil && tlsStr != "" {
		config.UseTLS = strings.ToLower(tlsStr) == "true" || tlsStr == "1"
	}

	return config, nil
}

// SetConfig saves SMTP configuration to KeyValue storage.
func (s *Service) SetConfig(ctx context.Context, config *SMTPConfig) error {
	entries := []struct {
		key, value, description string
	}{
		{"smtp_host", config.Host, "SMTP server hostname"},
		{"smtp_port", strconv.Itoa(config.Port), "SMTP server port"},
		{"smtp_username", config.Username, "SMTP username (email address)"},
		{"smtp_password", config.Password, "SMTP password or app password"},
		{"smtp_from", config.From, "From email address"},
		{"smtp_from_name", config.FromName, "From display name"},
		{"smtp_use_tls", strconv.FormatBool(config.UseTLS), "Use TLS encryption"},
	}
	for _, e := range entries {
		if err := s.kv.Set(ctx, e.key, e.value, e.description); err != nil {
			return fmt.Errorf("failed to set %s: %w", e.key, err)
		}
	}

	s.logger.Info().
		Str("host", config.Host).
		Int("port", config.Port).
		Str("from", config.From).
		Msg("Mail configuration saved")
	return nil
}

// IsConfigured reports whether mailing is enabled and the minimum SMTP
// settings are present.
func (s *Service) IsConfigured(ctx context.Context) bool {
	if !s.config.Mail.Enabled || s.kv == nil {
		return false
	}
	config, err := s.GetConfig(ctx)
	if err != nil {
		return false
	}
	return config.Host != "" && config.Username != "" && config.Password != "" && config.From != ""
}

// SendDocument mails the finished artifacts to one recipient: a plain-text
// body plus the Markdown and optional PDF as attachments.
func (s *Service) SendDocument(ctx context.Context, to, subject, body string, attachments []interfaces.MailAttachment) error {
	config, err := s.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get mail config: %w", err)
	}
	if config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if config.Username == "" || config.Password == "" {
		return fmt.Errorf("SMTP credentials not configured")
	}
	if config.From == "" {
		return fmt.Errorf("from email not configured")
	}

	msg := buildMessage(config, to, subject, body, attachments)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	if config.UseTLS {
		err = s.sendWithTLS(addr, auth, config.From, to, msg)
	} else {
		err = smtp.SendMail(addr, auth, config.From, []string{to}, []byte(msg))
	}
	if err != nil {
		s.logger.Error().Err(err).Str("to", to).Msg("Failed to send document mail")
		return err
	}

	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("attachments", len(attachments)).
		Msg("Document mail sent")
	return nil
}

// SendTestEmail verifies the SMTP configuration end to end.
func (s *Service) SendTestEmail(ctx context.Context, to string) error {
	return s.SendDocument(ctx, to,
		"Scribo: wiadomość testowa",
		"To jest wiadomość testowa potwierdzająca poprawną konfigurację SMTP.\n", nil)
}

// buildMessage assembles the MIME message. With attachments the message is
// multipart/mixed; the body part and every attachment are base64-encoded so
// long lines of Markdown never break RFC 5322 limits.
func buildMessage(config *SMTPConfig, to, subject, body string, attachments []interfaces.MailAttachment) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", config.FromName, config.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", encodeSubject(subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")

	if len(attachments) == 0 {
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(encodeBase64WithLineBreaks([]byte(body)))
		msg.WriteString("\r\n")
		return msg.String()
	}

	boundary := generateBoundary()
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/mixed; boundary=\"%s\"\r\n", boundary))
	msg.WriteString("\r\n")

	msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: base64\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(encodeBase64WithLineBreaks([]byte(body)))
	msg.WriteString("\r\n")

	for _, att := range attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString(fmt.Sprintf("Content-Type: %s; name=\"%s\"\r\n", contentType, att.Filename))
		msg.WriteString("Content-Transfer-Encoding: base64\r\n")
		msg.WriteString(fmt.Sprintf("Content-Disposition: attachment; filename=\"%s\"\r\n", att.Filename))
		msg.WriteString("\r\n")
		msg.WriteString(encodeBase64WithLineBreaks(att.Data))
		msg.WriteString("\r\n")
	}

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return msg.String()
}

// sendWithTLS connects over direct TLS, falling back to STARTTLS when the
// server does not answer TLS on the configured port.
func (s *Service) sendWithTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, from, to, msg)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return transmit(client, auth, from, to, msg)
}

// sendWithSTARTTLS dials plain and upgrades the connection.
func (s *Service) sendWithSTARTTLS(addr string, auth smtp.Auth, from, to, msg string) error {
	host := strings.Split(addr, ":")[0]

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return transmit(client, auth, from, to, msg)
}

func transmit(client *smtp.Client, auth smtp.Auth, from, to, msg string) error {
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// encodeSubject wraps non-ASCII subjects (Polish diacritics) in RFC 2047
// encoded-word form.
func encodeSubject(subject string) string {
	for _, r := range subject {
		if r > 127 {
			return "=?UTF-8?B?" + base64.StdEncoding.EncodeToString([]byte(subject)) + "?="
		}
	}
	return subject
}

// generateBoundary creates a unique MIME boundary string.
func generateBoundary() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "scribo_boundary_fallback"
	}
	return fmt.Sprintf("scribo_%x", b)
}

// encodeBase64WithLineBreaks encodes content as base64 with 76-char lines
// per RFC 2045.
func encodeBase64WithLineBreaks(content []byte) string {
	encoded := base64.StdEncoding.EncodeToString(content)

	var result strings.Builder
	const lineLen = 76
	for i := 0; i < len(encoded); i += lineLen {
		end := i + lineLen
		if end > len(encoded) {
			end = len(encoded)
		}
		result.WriteString(encoded[i:end])
		if end < len(encoded) {
			result.WriteString("\r\n")
		}
	}
	return result.String()
}
