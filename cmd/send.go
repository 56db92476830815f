package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaharia-lab/signup-notifier/internal/config"
	"github.com/shaharia-lab/signup-notifier/internal/logger"
	"github.com/shaharia-lab/signup-notifier/internal/notification"
)

// NewSendCmd returns the "send" subcommand, which delivers one notification
// synchronously. It is meant for checking SMTP settings: unlike /notify, a
// transport failure makes the command fail.
func NewSendCmd(cfg *config.AppConfig) *cobra.Command {
	var payload notification.Payload

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one notification and wait for the result",
		Example: `  SMTP_HOST=smtp.example.com SMTP_PORT=587 SMTP_USER=u SMTP_PASS=p \
    signup-notifier send --name "Ana" --email ana@example.com --phone "+34 600"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runSend(ctx, cfg, payload, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&payload.Name, "name", "", "name of the registered user")
	cmd.Flags().StringVar(&payload.Email, "email", "", "email address of the registered user")
	cmd.Flags().StringVar(&payload.Phone, "phone", "", "phone number of the registered user")
	return cmd
}

func runSend(ctx context.Context, cfg *config.AppConfig, payload notification.Payload, out, logOut io.Writer) error {
	log := logger.NewWithWriter(logOut, cfg.SlogLevel())

	req, err := payload.Normalize()
	if err != nil {
		return err
	}

	transport := cfg.Transport()
	msg := notification.BuildMessage(req, transport.Addressing())
	outcome := notification.Deliver(ctx, notification.NewSender(transport, log), msg, uuid.NewString(), log)
	if !outcome.Success {
		return fmt.Errorf("sending notification: %w", outcome.Err)
	}

	fmt.Fprintf(out, "notification %s sent to %s via %s in %s\n",
		outcome.TaskID, msg.To(), outcome.Sender, outcome.Duration.Round(time.Millisecond))
	return nil
}
