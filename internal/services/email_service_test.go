package services

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"securesign/internal/metrics"
)

type captureSender struct {
	messages []*gomail.Message
	err      error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.messages = append(c.messages, m...)
	return nil
}

func renderMessage(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmailService_Messages(t *testing.T) {
	sender := &captureSender{}
	s := NewEmailServiceWithSender(sender, "no-reply@securesign.test", false, quietLogger(), nil)

	require.NoError(t, s.SendVerificationEmail("a@x.com", "123456"))
	require.NoError(t, s.SendWelcomeEmail("a@x.com", "<Ann>"))
	require.NoError(t, s.SendPasswordResetEmail("a@x.com", "http://app/reset-password/abc"))
	require.NoError(t, s.SendResetSuccessEmail("a@x.com"))
	require.Len(t, sender.messages, 4)

	verification := sender.messages[0]
	assert.Equal(t, []string{"a@x.com"}, verification.GetHeader("To"))
	assert.Equal(t, []string{"no-reply@securesign.test"}, verification.GetHeader("From"))
	assert.Equal(t, []string{"Verify your email"}, verification.GetHeader("Subject"))
	assert.Contains(t, renderMessage(t, verification), "123456")

	welcome := renderMessage(t, sender.messages[1])
	assert.Contains(t, welcome, "&lt;Ann&gt;")
	assert.False(t, strings.Contains(welcome, "<Ann>"))

	assert.Contains(t, renderMessage(t, sender.messages[2]), "http://app/reset-password/abc")
	assert.Equal(t, []string{"Password reset successful"}, sender.messages[3].GetHeader("Subject"))
}

func TestEmailService_Failure(t *testing.T) {
	sender := &captureSender{err: errors.New("dial tcp: connection refused")}
	s := NewEmailServiceWithSender(sender, "from@x", false, quietLogger(), metrics.New(prometheus.NewRegistry()))

	err := s.SendWelcomeEmail("a@x.com", "Ann")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send welcome email")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmailService_DryRun(t *testing.T) {
	var logs bytes.Buffer
	sender := &captureSender{err: errors.New("must not be called")}
	s := NewEmailServiceWithSender(sender, "from@x", true, slog.New(slog.NewTextHandler(&logs, nil)), nil)

	require.NoError(t, s.SendVerificationEmail("a@x.com", "654321"))
	assert.Empty(t, sender.messages)
	assert.Contains(t, logs.String(), "email dry-run")
	assert.Contains(t, logs.String(), "654321")
}
