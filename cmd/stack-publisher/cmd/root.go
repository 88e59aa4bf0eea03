package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackfetch/stack-fetcher/internal/service/publisher"
	"github.com/stackfetch/stack-fetcher/internal/version"
)

var (
	// algorithm is the digest algorithm used for proof files.
	algorithm string

	// releaseVersion overrides the version recorded in the manifest.
	releaseVersion string

	// rootCmd represents the base command for publishing an artifact directory.
	rootCmd = &cobra.Command{
		Use:   "stack-publisher <artifact-dir>",
		Short: "Write digest files and a release manifest for a directory of artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &publisher.Options{
				Dir:           args[0],
				Algorithm:     algorithm,
				VersionNumber: releaseVersion,
			}

			return publisher.Run(ctx, options)
		},
	}
)

// Execute runs the stack-publisher CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&algorithm, "algorithm", "a", "sha256", "digest algorithm (md5, sha1, sha256)")
	rootCmd.Flags().StringVar(&releaseVersion, "release-version", "", "version recorded in the manifest")
}
