package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"

	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

// Send modes accepted in SEND_MODE.
const (
	SendModeLive    = "live"
	SendModeConsole = "console"
)

// AppConfig holds all application-level configuration loaded from environment variables.
type AppConfig struct {
	// Port is the HTTP server port. Defaults to 5000.
	Port int `envconfig:"PORT" default:"5000"`

	// LogLevel sets the minimum log level (debug, info, warn, error). Defaults to info.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// LogFile, when set, sends JSON logs to a size-rotated file instead of stderr.
	LogFile string `envconfig:"LOG_FILE"`

	SMTPHost string `envconfig:"SMTP_HOST" default:"localhost"`
	// SMTPPort 465 selects implicit TLS; any other port uses STARTTLS.
	SMTPPort int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`

	// SMTPRequireTLS aborts delivery when a STARTTLS upgrade is unavailable
	// instead of continuing in plaintext.
	SMTPRequireTLS bool `envconfig:"SMTP_REQUIRE_TLS" default:"false"`

	// SMTPTimeout bounds each delivery attempt.
	SMTPTimeout time.Duration `envconfig:"SMTP_TIMEOUT" default:"15s"`

	FromEmail string `envconfig:"FROM_EMAIL" default:"noreply@example.com"`
	FromName  string `envconfig:"NOTIFY_FROM_NAME" default:"Notifications"`
	ToAdmin   string `envconfig:"TO_ADMIN" default:"admin@example.com"`
	Subject   string `envconfig:"NOTIFY_SUBJECT" default:"New user registered"`

	// SendMode is "live" (SMTP) or "console" (log only, no network).
	SendMode string `envconfig:"SEND_MODE" default:"live"`

	// DispatchWorkers and DispatchQueueSize bound concurrent deliveries.
	DispatchWorkers   int `envconfig:"DISPATCH_WORKERS" default:"4"`
	DispatchQueueSize int `envconfig:"DISPATCH_QUEUE_SIZE" default:"100"`

	// CORSAllowedOrigins enables CORS for the listed origins (comma separated).
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`

	// OTLPEndpoint enables trace export over OTLP/gRPC when set.
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

var addrValidator = validator.New()

// ConfigError reports startup configuration that cannot be used. It aborts
// startup; it is never produced per request.
//
//nolint:revive
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

// Load reads AppConfig from environment variables using envconfig and
// validates it.
func Load() (*AppConfig, error) {
	var c AppConfig
	if err := envconfig.Process("", &c); err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			return nil, &ConfigError{Field: perr.KeyName, Message: perr.Err.Error()}
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	c.SendMode = strings.ToLower(strings.TrimSpace(c.SendMode))
	if c.SendMode == "" {
		c.SendMode = SendModeLive
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the values Load cannot express as envconfig tags.
func (c *AppConfig) Validate() error {
	switch c.SendMode {
	case SendModeLive, SendModeConsole:
	default:
		return &ConfigError{Field: "SEND_MODE", Message: fmt.Sprintf("must be %q or %q, got %q", SendModeLive, SendModeConsole, c.SendMode)}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: "PORT", Message: fmt.Sprintf("out of range: %d", c.Port)}
	}
	if err := addrValidator.Var(c.FromEmail, "required,email"); err != nil {
		return &ConfigError{Field: "FROM_EMAIL", Message: fmt.Sprintf("not a valid address: %q", c.FromEmail)}
	}
	if err := addrValidator.Var(c.ToAdmin, "required,email"); err != nil {
		return &ConfigError{Field: "TO_ADMIN", Message: fmt.Sprintf("not a valid address: %q", c.ToAdmin)}
	}
	if c.SMTPTimeout <= 0 {
		return &ConfigError{Field: "SMTP_TIMEOUT", Message: "must be positive"}
	}
	if c.SendMode == SendModeConsole {
		return nil
	}
	if strings.TrimSpace(c.SMTPHost) == "" {
		return &ConfigError{Field: "SMTP_HOST", Message: "required in live mode"}
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return &ConfigError{Field: "SMTP_PORT", Message: fmt.Sprintf("out of range: %d", c.SMTPPort)}
	}
	if c.SMTPUser == "" && c.SMTPPass != "" {
		return &ConfigError{Field: "SMTP_USER", Message: "required when SMTP_PASS is set"}
	}
	return nil
}

// Transport projects the SMTP settings into the immutable value handed to
// the sender.
func (c *AppConfig) Transport() notification.TransportConfig {
	return notification.TransportConfig{
		Host:       c.SMTPHost,
		Port:       c.SMTPPort,
		Username:   c.SMTPUser,
		Password:   c.SMTPPass,
		FromAddr:   c.FromEmail,
		FromName:   c.FromName,
		ToAddr:     c.ToAdmin,
		Subject:    c.Subject,
		Mode:       notification.ModeFor(c.SendMode == SendModeConsole, c.SMTPPort),
		RequireTLS: c.SMTPRequireTLS,
		Timeout:    c.SMTPTimeout,
	}
}

// SlogLevel converts the LogLevel string to a slog.Level.
// Unknown values default to slog.LevelInfo.
func (c *AppConfig) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
