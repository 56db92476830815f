// Package notification turns signup payloads into admin email notifications
// and delivers them over SMTP (implicit TLS or STARTTLS) or to the log.
package notification

import (
	"context"
	"log/slog"
)

// Sender delivers a single OutboundMessage.
type Sender interface {
	// Name returns the sender identifier (e.g. "smtp", "console").
	Name() string
	// Send performs one delivery attempt. It returns a *TransportError when
	// the SMTP session fails.
	Send(ctx context.Context, msg OutboundMessage) error
}

// NewSender selects the Sender for the configured mode.
func NewSender(cfg TransportConfig, logger *slog.Logger) Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == ModeConsole {
		return NewConsoleSender(logger)
	}
	return NewSMTPSender(cfg, logger)
}
