package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/textproto"
	"os"
	"strings"

	"github.com/wneessen/go-mail/smtp"
)

// SMTPSender delivers notifications over a single SMTP session per message,
// using implicit TLS or STARTTLS depending on the configured mode.
type SMTPSender struct {
	config    TransportConfig
	logger    *slog.Logger
	tlsConfig *tls.Config
	helloName string
}

// SMTPOption configures an SMTPSender.
type SMTPOption func(*SMTPSender)

// WithTLSConfig overrides the TLS client configuration used for implicit TLS
// and STARTTLS. ServerName defaults to the configured host when left empty.
func WithTLSConfig(cfg *tls.Config) SMTPOption {
	return func(s *SMTPSender) { s.tlsConfig = cfg }
}

// WithHelloName sets the name announced in EHLO.
func WithHelloName(name string) SMTPOption {
	return func(s *SMTPSender) { s.helloName = name }
}

// NewSMTPSender creates a new SMTPSender with the given configuration.
func NewSMTPSender(config TransportConfig, logger *slog.Logger, opts ...SMTPOption) *SMTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SMTPSender{config: config, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.helloName == "" {
		s.helloName = defaultHelloName()
	}
	return s
}

// Name returns the sender identifier.
func (s *SMTPSender) Name() string { return "smtp" }

// Send delivers msg. The whole session, from dial to the end of DATA, is
// bounded by the configured timeout.
func (s *SMTPSender) Send(ctx context.Context, msg OutboundMessage) error {
	m, err := msg.MIME()
	if err != nil {
		return s.fail(StageRender, err)
	}
	from, err := m.GetSender(false)
	if err != nil {
		return s.fail(StageRender, err)
	}
	rcpts, err := m.GetRecipients()
	if err != nil {
		return s.fail(StageRender, err)
	}
	var raw bytes.Buffer
	if _, err := m.WriteTo(&raw); err != nil {
		return s.fail(StageRender, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.timeout())
	defer cancel()

	conn, err := s.dial(ctx)
	if err != nil {
		return s.fail(StageConnect, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblocks any pending read or write when the dispatcher cancels the task.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		_ = conn.Close()
		return s.fail(StageGreeting, err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Hello(s.helloName); err != nil {
		return s.fail(StageGreeting, err)
	}

	if s.config.Mode == ModeOpportunisticTLS {
		if err := s.startTLS(ctx, client); err != nil {
			return err
		}
	}

	if s.config.Username != "" {
		if err := client.Auth(s.auth(client)); err != nil {
			return s.fail(StageAuth, err)
		}
	}

	if err := client.Mail(from); err != nil {
		return s.fail(StageMailFrom, err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt); err != nil {
			return s.fail(StageRcptTo, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return s.fail(StageData, err)
	}
	if _, err := w.Write(raw.Bytes()); err != nil {
		_ = w.Close()
		return s.fail(StageData, err)
	}
	if err := w.Close(); err != nil {
		return s.fail(StageData, err)
	}

	// The server accepted the message; a failed QUIT does not undo that.
	if err := client.Quit(); err != nil {
		s.logger.DebugContext(ctx, "smtp: quit failed after delivery", "host", s.config.Host, "error", err)
	}
	return nil
}

func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	nd := &net.Dialer{}
	if s.config.Mode == ModeImplicitTLS {
		td := &tls.Dialer{NetDialer: nd, Config: s.clientTLSConfig()}
		return td.DialContext(ctx, "tcp", s.config.Addr())
	}
	return nd.DialContext(ctx, "tcp", s.config.Addr())
}

// startTLS upgrades the session when possible. A server that does not offer
// STARTTLS, or that refuses the command, leaves the session in plaintext and
// delivery continues unless RequireTLS is set. A failed handshake always
// aborts: the connection is unusable at that point.
func (s *SMTPSender) startTLS(ctx context.Context, client *smtp.Client) error {
	if ok, _ := client.Extension("STARTTLS"); !ok {
		if s.config.RequireTLS {
			return s.fail(StageStartTLS, errors.New("server does not advertise STARTTLS"))
		}
		s.logger.WarnContext(ctx, "smtp: STARTTLS not offered, continuing in plaintext", "host", s.config.Host)
		return nil
	}

	err := client.StartTLS(s.clientTLSConfig())
	if err == nil {
		return nil
	}
	var protoErr *textproto.Error
	_, upgraded := client.TLSConnectionState()
	if s.config.RequireTLS || upgraded || !errors.As(err, &protoErr) {
		return s.fail(StageStartTLS, err)
	}
	s.logger.WarnContext(ctx, "smtp: STARTTLS rejected, continuing in plaintext",
		"host", s.config.Host, "error", err)
	return nil
}

// auth picks PLAIN unless the server only advertises LOGIN. Credentials may
// be sent over a plaintext fallback session when RequireTLS is off.
func (s *SMTPSender) auth(client *smtp.Client) smtp.Auth {
	allowUnenc := !s.config.RequireTLS
	_, mechs := client.Extension("AUTH")
	mechs = strings.ToUpper(mechs)
	if strings.Contains(mechs, "LOGIN") && !strings.Contains(mechs, "PLAIN") {
		return smtp.LoginAuth(s.config.Username, s.config.Password, s.config.Host, allowUnenc)
	}
	return smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host, allowUnenc)
}

func (s *SMTPSender) clientTLSConfig() *tls.Config {
	if s.tlsConfig == nil {
		return &tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}
	}
	cfg := s.tlsConfig.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = s.config.Host
	}
	return cfg
}

func (s *SMTPSender) fail(stage Stage, err error) error {
	return &TransportError{Stage: stage, Host: s.config.Addr(), Err: err}
}

func defaultHelloName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "localhost"
}

var _ Sender = (*SMTPSender)(nil)
