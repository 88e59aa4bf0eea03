package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackfetch/stack-fetcher/internal/config"
	"github.com/stackfetch/stack-fetcher/internal/service/fetch"
	"github.com/stackfetch/stack-fetcher/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// attempts is the total attempt count for the download.
	attempts int

	// timeout bounds a single request.
	timeout time.Duration

	// quiet disables the progress bar.
	quiet bool

	// rootCmd represents the base command for downloading a single resource.
	// Without a destination the payload is streamed to standard output.
	rootCmd = &cobra.Command{
		Use:   "stack-fetch <url> [destination]",
		Short: "Download a single resource with bounded retries",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			destination := ""
			if len(args) > 1 {
				destination = args[1]
			}

			options := &fetch.Options{
				ConfigPath:  configPath,
				URL:         args[0],
				Destination: destination,
				Attempts:    attempts,
				Timeout:     timeout,
				Quiet:       quiet,
			}

			return fetch.Run(ctx, options)
		},
	}
)

// Execute runs the stack-fetch CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().IntVarP(&attempts, "attempts", "a", 0, "total attempt count (defaults to configured value)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "request timeout (defaults to configured value)")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
}
