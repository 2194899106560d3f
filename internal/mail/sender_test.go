package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/abteilung-service/internal/config"
)

func TestNewSenderFallsBackToLog(t *testing.T) {
	s := NewSender(config.NotificationConfig{}, zap.NewNop())
	_, ok := s.(*LogSender)
	assert.True(t, ok)
	assert.NoError(t, s.Send(context.Background(), Message{Subject: "x"}))

	s = NewSender(config.NotificationConfig{SMTPHost: "mail.local", SMTPPort: 2525}, zap.NewNop())
	smtpSender, ok := s.(*SMTPSender)
	require.True(t, ok)
	assert.Equal(t, "mail.local:2525", smtpSender.addr)
	assert.Nil(t, smtpSender.auth)
}

func TestSMTPSenderSend(t *testing.T) {
	s := NewSMTPSender(config.NotificationConfig{SMTPHost: "mail.local", SMTPPort: 25})
	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	s.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotBody = addr, from, to, msg
		return nil
	}

	err := s.Send(context.Background(), Message{
		From:    "noreply@example.com",
		To:      []string{"admin@example.com"},
		Subject: "New department 7",
		Body:    "The department with manager <strong>Meier</strong> has been created",
	})
	require.NoError(t, err)
	assert.Equal(t, "mail.local:25", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"admin@example.com"}, gotTo)
	assert.Contains(t, string(gotBody), "Subject: New department 7\r\n")
	assert.Contains(t, string(gotBody), "Content-Type: text/html")

	s.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	err = s.Send(context.Background(), Message{To: []string{"a@b"}})
	assert.ErrorContains(t, err, "refused")

	assert.Error(t, s.Send(context.Background(), Message{}))
}

func TestEncodeSeparatesHeadersFromBody(t *testing.T) {
	raw := string(Encode(Message{From: "a@b", To: []string{"c@d", "e@f"}, Subject: "s", Body: "<p>x</p>"},
		time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	headers, body, ok := strings.Cut(raw, "\r\n\r\n")
	require.True(t, ok)
	assert.Contains(t, headers, "To: c@d, e@f")
	assert.Equal(t, "<p>x</p>\r\n", body)
}
