package notification

import (
	"context"
	"log/slog"
)

// ConsoleSender simulates delivery by logging the rendered message. It never
// opens a network connection.
type ConsoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender creates a ConsoleSender that writes to logger.
func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

// Name returns the sender identifier.
func (s *ConsoleSender) Name() string { return "console" }

// Send logs msg in its rendered MIME form.
func (s *ConsoleSender) Send(ctx context.Context, msg OutboundMessage) error {
	raw, err := msg.Render()
	if err != nil {
		return &TransportError{Stage: StageRender, Host: "console", Err: err}
	}
	s.logger.InfoContext(ctx, "console mode: email not sent",
		slog.String("to", msg.To()),
		slog.String("subject", msg.Subject()),
		slog.String("rendered", string(raw)),
	)
	return nil
}

var _ Sender = (*ConsoleSender)(nil)
