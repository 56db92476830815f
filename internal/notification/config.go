package notification

import (
	"fmt"
	"time"
)

// Mode selects how a message leaves the process.
type Mode string

// Delivery modes.
const (
	// ModeImplicitTLS wraps the connection in TLS from the first byte (SMTPS).
	ModeImplicitTLS Mode = "implicit_tls"
	// ModeOpportunisticTLS connects in plaintext and upgrades with STARTTLS
	// when the server allows it.
	ModeOpportunisticTLS Mode = "opportunistic_tls"
	// ModeConsole writes the rendered message to the log instead of sending it.
	ModeConsole Mode = "console"
)

// ImplicitTLSPort is the canonical SMTPS port.
const ImplicitTLSPort = 465

// DefaultTimeout bounds a single delivery attempt.
const DefaultTimeout = 15 * time.Second

// ModeFor derives the delivery mode. Console mode is only ever chosen by the
// explicit flag; live mode picks implicit TLS on port 465 and STARTTLS on
// every other port.
func ModeFor(console bool, port int) Mode {
	if console {
		return ModeConsole
	}
	if port == ImplicitTLSPort {
		return ModeImplicitTLS
	}
	return ModeOpportunisticTLS
}

// TransportConfig holds connection and addressing parameters for delivery.
// It is built once at startup and passed by value; nothing mutates it later.
type TransportConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromAddr string
	FromName string
	ToAddr   string
	Subject  string
	Mode     Mode
	// RequireTLS turns a failed or unavailable STARTTLS upgrade into an error
	// instead of continuing in plaintext.
	RequireTLS bool
	Timeout    time.Duration
}

// Addr returns host:port.
func (c TransportConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addressing returns the envelope/header addressing used by BuildMessage.
func (c TransportConfig) Addressing() Addressing {
	return Addressing{
		From:     c.FromAddr,
		FromName: c.FromName,
		To:       c.ToAddr,
		Subject:  c.Subject,
	}
}

func (c TransportConfig) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
