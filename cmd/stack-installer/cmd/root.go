package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackfetch/stack-fetcher/internal/config"
	"github.com/stackfetch/stack-fetcher/internal/service/installer"
	"github.com/stackfetch/stack-fetcher/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// checksumURL overrides the default proof location (<archive-url>.sha256).
	checksumURL string

	// archiveName overrides the cache slot name derived from the URL.
	archiveName string

	// targetDir overrides the configured unpack directory.
	targetDir string

	// rootCmd represents the base command for installing a stack archive.
	rootCmd = &cobra.Command{
		Use:   "stack-installer <archive-url>",
		Short: "Download, verify, cache, and unpack a stack archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				ConfigPath:  configPath,
				ArchiveURL:  args[0],
				ChecksumURL: checksumURL,
				ArchiveName: archiveName,
				TargetDir:   targetDir,
			}

			return installer.Run(ctx, options)
		},
	}
)

// Execute runs the stack-installer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVar(&checksumURL, "checksum-url", "", "proof file URL (defaults to <archive-url>.sha256)")
	rootCmd.Flags().StringVar(&archiveName, "name", "", "cache slot name (defaults to the URL's filename)")
	rootCmd.Flags().StringVarP(&targetDir, "target", "t", "", "directory to unpack into (defaults to configured target)")
}
