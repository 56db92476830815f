package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/signup-notifier/internal/api"
	"github.com/shaharia-lab/signup-notifier/internal/build"
	"github.com/shaharia-lab/signup-notifier/internal/config"
	"github.com/shaharia-lab/signup-notifier/internal/dispatch"
	"github.com/shaharia-lab/signup-notifier/internal/logger"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
	"github.com/shaharia-lab/signup-notifier/internal/server"
	"github.com/shaharia-lab/signup-notifier/internal/telemetry"
)

// NewServeCmd returns the "serve" subcommand that starts the HTTP server.
func NewServeCmd(cfg *config.AppConfig) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the notification HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// CLI flags override env config.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 5000, "HTTP server port (overrides PORT env var)")
	return cmd
}

func runServe(cfg *config.AppConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sysLogger, closer, err := logger.New(cfg.LogFile, cfg.SlogLevel())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	transport := cfg.Transport()
	sysLogger.Info("signup-notifier starting",
		slog.Int("port", cfg.Port),
		slog.String("mode", string(transport.Mode)),
		slog.String("smtp_addr", transport.Addr()),
		slog.String("to", transport.ToAddr),
		slog.String("version", build.Version),
		slog.String("commit", build.CommitSHA),
		slog.String("build_date", build.BuildDate),
	)
	if transport.Mode == notification.ModeOpportunisticTLS && !transport.RequireTLS {
		sysLogger.Warn("SMTP may fall back to plaintext when STARTTLS is unavailable; set SMTP_REQUIRE_TLS=true to refuse")
	}

	providers, err := telemetry.Init(ctx, telemetry.Options{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceVersion: build.Version,
		Logger:         sysLogger,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			sysLogger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	sysLogger = logger.Tee(sysLogger, providers.LogHandler)

	// The dispatcher is not tied to ctx: queued notifications are drained
	// after the listener stops.
	sched, err := dispatch.New(dispatch.Config{
		Sender:    notification.NewSender(transport, sysLogger),
		Logger:    sysLogger,
		Workers:   cfg.DispatchWorkers,
		QueueSize: cfg.DispatchQueueSize,
		Timeout:   transport.Timeout,
	})
	if err != nil {
		return fmt.Errorf("starting dispatcher: %w", err)
	}

	apiSrv := api.New(sched, transport.Addressing(), sysLogger)
	srv := server.New(apiSrv, sched, server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, sysLogger)

	return srv.Run(ctx)
}
