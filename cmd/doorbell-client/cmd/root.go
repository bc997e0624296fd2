package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	client "github.com/oshokin/doorbell/internal/service/client"
	"github.com/oshokin/doorbell/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// debug skips firing the latch.
	debug bool

	// rootCmd represents the base command for reporting a ring.
	rootCmd = &cobra.Command{
		Use:   "doorbell-client [server-url]",
		Short: "Report a ring and open the door when the operator says so.",
		Long: `Reports a doorbell press to doorbell-server, then waits for an operator
to reply to the text message.

If the server answers "open" within the configured wait budget, the unlatch
command from the configuration file is executed to fire the relay.
Server URL can be provided as argument or loaded from configuration file.

This is typically started by the GPIO watcher each time the button is pressed.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use server URL argument if provided, otherwise rely on config.
			var serverURL string
			if len(args) > 0 {
				serverURL = args[0]
			}

			return client.Run(ctx, &client.Options{
				ConfigPath: cfgPath,
				ServerURL:  serverURL,
				Debug:      debug,
			})
		},
	}
)

// Execute runs the doorbell-client CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")

	// Hidden debug flag to skip the latch while testing the wiring.
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "do not fire the latch")

	err := rootCmd.Flags().MarkHidden("debug")
	if err != nil {
		panic(err)
	}
}
