package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/signup-notifier/internal/config"
)

// NewRootCmd builds the command tree. Configuration is read from the
// environment before any subcommand that needs it runs.
func NewRootCmd() *cobra.Command {
	cfg := &config.AppConfig{}

	root := &cobra.Command{
		Use:   "signup-notifier",
		Short: "Email an administrator when a new user signs up",
		Long: `signup-notifier accepts signup payloads on POST /notify and emails a
plain-text summary to a single administrative address over SMTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	root.AddCommand(NewServeCmd(cfg))
	root.AddCommand(NewSendCmd(cfg))
	root.AddCommand(NewVersionCmd())
	return root
}

const skipConfigAnnotation = "skip-config"

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
