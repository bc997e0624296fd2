package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/server"
	"github.com/oshokin/doorbell/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for running the HTTP server.
	rootCmd = &cobra.Command{
		Use:   "doorbell-server [listen-address]",
		Short: "Run the doorbell server.",
		Long: `Starts the HTTP server that coordinates the doorbell.

When the embedded client reports a ring, every configured operator receives
a text message. Replying "y" opens the door, "p" turns on party mode (every
ring opens the door), "r" turns it off again. The embedded client long-polls
the server to learn when to fire the latch.

The listen address can be provided as argument to override config
(e.g., :9090, 0.0.0.0:8080). Twilio credentials, operator phones and the
listen address can also be set through TWILIO_API_SID, TWILIO_API_TOKEN,
TWILIO_ACCOUNT_SID, TWILIO_PHONE, TARGET_PHONES, IP and PORT.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			})
		},
	}
)

// Execute runs the doorbell-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
}
