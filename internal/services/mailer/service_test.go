package mailer

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
)

type memoryKV struct {
	values map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", interfaces.ErrKeyNotFound
}

func (m *memoryKV) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	v, err := m.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return &interfaces.KeyValuePair{Key: key, Value: v}, nil
}

func (m *memoryKV) Set(_ context.Context, key, value, _ string) error {
	m.values[key] = value
	return nil
}

func (m *memoryKV) Upsert(ctx context.Context, key, value, description string) (bool, error) {
	_, existed := m.values[key]
	return !existed, m.Set(ctx, key, value, description)
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	delete(m.values, key)
	return nil
}

func (m *memoryKV) DeleteAll(context.Context) error {
	m.values = map[string]string{}
	return nil
}

func (m *memoryKV) List(context.Context) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	for k, v := range m.values {
		pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
	}
	return pairs, nil
}

func (m *memoryKV) GetAll(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

func (m *memoryKV) ListByPrefix(_ context.Context, prefix string) ([]interfaces.KeyValuePair, error) {
	var pairs []interfaces.KeyValuePair
	for k, v := range m.values {
		if strings.HasPrefix(k, prefix) {
			pairs = append(pairs, interfaces.KeyValuePair{Key: k, Value: v})
		}
	}
	return pairs, nil
}

func TestConfigRoundTrip(t *testing.T) {
	kv := newMemoryKV()
	cfg := common.NewDefaultConfig()
	svc := NewService(cfg, kv, arbor.NewLogger())
	ctx := context.Background()

	in := &SMTPConfig{
		Host:     "smtp.example.pl",
		Port:     465,
		Username: "biuro@example.pl",
		Password: "app-password",
		From:     "biuro@example.pl",
		FromName: "Biuro Rachunkowe",
		UseTLS:   true,
	}
	require.NoError(t, svc.SetConfig(ctx, in))

	out, err := svc.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestGetConfigDefaults(t *testing.T) {
	cfg := common.NewDefaultConfig()
	svc := NewService(cfg, newMemoryKV(), arbor.NewLogger())

	out, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 587, out.Port)
	assert.True(t, out.UseTLS)
	assert.Equal(t, "Scribo", out.FromName)
	assert.Empty(t, out.Host)
}

func TestIsConfigured(t *testing.T) {
	kv := newMemoryKV()
	cfg := common.NewDefaultConfig()
	svc := NewService(cfg, kv, arbor.NewLogger())
	ctx := context.Background()

	// mailing disabled in config
	assert.False(t, svc.IsConfigured(ctx))

	cfg.Mail.Enabled = true
	// credentials incomplete
	assert.False(t, svc.IsConfigured(ctx))

	require.NoError(t, svc.SetConfig(ctx, &SMTPConfig{
		Host:     "smtp.example.pl",
		Port:     587,
		Username: "biuro@example.pl",
		Password: "secret",
		From:     "biuro@example.pl",
	}))
	assert.True(t, svc.IsConfigured(ctx))
}

func TestSendDocumentRequiresConfig(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Mail.Enabled = true
	svc := NewService(cfg, newMemoryKV(), arbor.NewLogger())

	err := svc.SendDocument(context.Background(), "a@b.pl", "test", "body", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP host not configured")
}

func TestBuildMessageWithAttachments(t *testing.T) {
	config := &SMTPConfig{
		Host:     "smtp.example.pl",
		From:     "biuro@example.pl",
		FromName: "Scribo",
	}
	attachments := []interfaces.MailAttachment{
		{
			Filename:    "BR_SUMMARY_20250331.md",
			ContentType: "text/markdown; charset=utf-8",
			Data:        []byte("# Roczne zestawienie B+R\n\nŁącznie: 120 000,00 zł\n"),
		},
		{
			Filename:    "BR_SUMMARY_20250331.pdf",
			ContentType: "application/pdf",
			Data:        []byte("%PDF-1.4 fake"),
		},
	}

	msg := buildMessage(config, "ksiegowosc@example.pl", "Dokumentacja B+R: br_annual_summary (passed)",
		"Wygenerowano dokument.\n", attachments)

	assert.Contains(t, msg, "From: Scribo <biuro@example.pl>")
	assert.Contains(t, msg, "To: ksiegowosc@example.pl")
	assert.Contains(t, msg, "multipart/mixed")
	assert.Contains(t, msg, `filename="BR_SUMMARY_20250331.md"`)
	assert.Contains(t, msg, `Content-Type: application/pdf; name="BR_SUMMARY_20250331.pdf"`)

	// attachment content travels base64-encoded
	encoded := base64.StdEncoding.EncodeToString(attachments[1].Data)
	assert.Contains(t, msg, encoded)
	assert.NotContains(t, msg, "%PDF-1.4 fake")

	// closing boundary present exactly once
	boundary := extractBoundary(t, msg)
	assert.Equal(t, 1, strings.Count(msg, "--"+boundary+"--"))
}

func TestBuildMessagePlain(t *testing.T) {
	config := &SMTPConfig{From: "biuro@example.pl", FromName: "Scribo"}
	msg := buildMessage(config, "a@b.pl", "Test", "Treść wiadomości.\n", nil)

	assert.Contains(t, msg, `Content-Type: text/plain; charset="UTF-8"`)
	assert.NotContains(t, msg, "multipart")
	decoded, err := base64.StdEncoding.DecodeString(lastBase64Block(msg))
	require.NoError(t, err)
	assert.Equal(t, "Treść wiadomości.\n", string(decoded))
}

func TestEncodeSubject(t *testing.T) {
	assert.Equal(t, "Plain subject", encodeSubject("Plain subject"))

	encoded := encodeSubject("Dokumentacja B+R: wyniki walidacji (ocena)")
	assert.Equal(t, "Dokumentacja B+R: wyniki walidacji (ocena)", encoded)

	polish := encodeSubject("Zestawienie kosztów kwalifikowanych")
	assert.True(t, strings.HasPrefix(polish, "=?UTF-8?B?"))
	assert.True(t, strings.HasSuffix(polish, "?="))
}

func TestEncodeBase64LineLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	encoded := encodeBase64WithLineBreaks([]byte(long))
	for _, line := range strings.Split(encoded, "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func extractBoundary(t *testing.T, msg string) string {
	t.Helper()
	i := strings.Index(msg, `boundary="`)
	require.GreaterOrEqual(t, i, 0)
	rest := msg[i+len(`boundary="`):]
	j := strings.IndexByte(rest, '"')
	require.GreaterOrEqual(t, j, 0)
	return rest[:j]
}

func lastBase64Block(msg string) string {
	parts := strings.Split(strings.TrimRight(msg, "\r\n"), "\r\n\r\n")
	return strings.ReplaceAll(parts[len(parts)-1], "\r\n", "")
}
