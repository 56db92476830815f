package notification_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

func TestRenderBody(t *testing.T) {
	body := notification.RenderBody(notification.NotificationRequest{Name: "Ana", Email: "ana@x.com", Phone: "123"})
	assert.Equal(t, "A new user registered:\nName: Ana\nEmail: ana@x.com\nPhone: 123\n", body)
}

func TestRenderBody_EmptyPhoneKeepsLine(t *testing.T) {
	body := notification.RenderBody(notification.NotificationRequest{Name: "Ana", Email: "ana@x.com"})
	assert.Contains(t, body, "\nPhone: \n")
	assert.Len(t, strings.Split(strings.TrimSuffix(body, "\n"), "\n"), 4)
}

func TestRenderBody_Idempotent(t *testing.T) {
	req := notification.NotificationRequest{Name: "José Ñúñez", Email: "jose@x.com", Phone: "+34 600"}
	assert.Equal(t, notification.RenderBody(req), notification.RenderBody(req))
}

func TestBuildMessage(t *testing.T) {
	req := notification.NotificationRequest{Name: "Ana", Email: "ana@x.com", Phone: "123"}

	t.Run("defaults", func(t *testing.T) {
		msg := notification.BuildMessage(req, notification.Addressing{From: "noreply@example.com", To: "admin@example.com"})
		assert.Equal(t, "noreply@example.com", msg.From())
		assert.Equal(t, notification.DefaultFromName, msg.FromName())
		assert.Equal(t, "admin@example.com", msg.To())
		assert.Equal(t, notification.DefaultSubject, msg.Subject())
		assert.Equal(t, notification.RenderBody(req), msg.Body())
	})

	t.Run("configured subject and sender name", func(t *testing.T) {
		msg := notification.BuildMessage(req, notification.Addressing{
			From: "noreply@example.com", FromName: "Signups", To: "admin@example.com", Subject: "Nuevo usuario creado",
		})
		assert.Equal(t, "Signups", msg.FromName())
		assert.Equal(t, "Nuevo usuario creado", msg.Subject())
	})
}

func TestOutboundMessage_Render(t *testing.T) {
	msg := testMessage()
	raw, err := msg.Render()
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "Subject: New user registered")
	assert.Contains(t, s, `From: "Notifications" <noreply@example.com>`)
	assert.Contains(t, s, "To: <admin@example.com>")
	assert.Contains(t, s, "charset=UTF-8")
	assert.Contains(t, s, "Name: Ana")
}

func TestOutboundMessage_RenderInvalidAddress(t *testing.T) {
	msg := notification.BuildMessage(
		notification.NotificationRequest{Name: "Ana", Email: "ana@x.com"},
		notification.Addressing{From: "not an address", To: "admin@example.com"},
	)
	_, err := msg.Render()
	assert.Error(t, err)
}

func TestConsoleSender_LogsRenderedMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sender := notification.NewConsoleSender(logger)

	require.NoError(t, sender.Send(context.Background(), testMessage()))

	out := buf.String()
	assert.Contains(t, out, "console mode: email not sent")
	assert.Contains(t, out, "Name: Ana")
	assert.Contains(t, out, "Subject: New user registered")
}

func TestConsoleSender_NoNetwork(t *testing.T) {
	// The configured host does not exist; console mode must not care.
	cfg := notification.TransportConfig{
		Host: "smtp.invalid", Port: 465, Mode: notification.ModeConsole,
		FromAddr: "noreply@example.com", ToAddr: "admin@example.com",
	}
	var buf bytes.Buffer
	sender := notification.NewSender(cfg, slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, sender.Send(context.Background(), testMessage()))
	assert.NotEmpty(t, buf.String())
}

type stubSender struct {
	err   error
	delay time.Duration
}

func (s *stubSender) Name() string { return "stub" }

func (s *stubSender) Send(ctx context.Context, _ notification.OutboundMessage) error {
	select {
	case <-time.After(s.delay):
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestDeliver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ok := notification.Deliver(context.Background(), &stubSender{}, testMessage(), "task-1", logger)
	assert.True(t, ok.Success)
	assert.Empty(t, ok.ErrorDetail)
	assert.Equal(t, "stub", ok.Sender)
	assert.Equal(t, "task-1", ok.TaskID)

	failed := notification.Deliver(context.Background(), &stubSender{err: errors.New("connection refused")}, testMessage(), "task-2", logger)
	assert.False(t, failed.Success)
	assert.Equal(t, "connection refused", failed.ErrorDetail)
	assert.Contains(t, buf.String(), "notification: delivery failed")
	assert.Contains(t, buf.String(), "notification: email sent")
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, notification.ModeConsole, notification.ModeFor(true, 465))
	assert.Equal(t, notification.ModeConsole, notification.ModeFor(true, 587))
	assert.Equal(t, notification.ModeImplicitTLS, notification.ModeFor(false, 465))
	assert.Equal(t, notification.ModeOpportunisticTLS, notification.ModeFor(false, 587))
	assert.Equal(t, notification.ModeOpportunisticTLS, notification.ModeFor(false, 25))
}
