package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/stackfetch/stack-fetcher/internal/config"
	"github.com/stackfetch/stack-fetcher/internal/download"
	"github.com/stackfetch/stack-fetcher/internal/logger"
)

var errEmptyURL = errors.New("url must be provided")

// Options are inputs accepted by the fetch entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// URL is the resource to download.
	URL string
	// Destination is the output path. Empty streams to standard output.
	Destination string
	// Attempts overrides the configured attempt count when positive.
	Attempts int
	// Timeout overrides the configured request timeout when positive.
	Timeout time.Duration
	// Quiet disables the progress bar.
	Quiet bool
}

// Run downloads a single resource and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stack-fetch")

	if opts.URL == "" {
		return errEmptyURL
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	attempts := cfg.RetryAttempts
	if opts.Attempts > 0 {
		attempts = opts.Attempts
	}

	timeout := cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	client := download.New(download.Options{
		Timeout:  timeout,
		Attempts: attempts,
		Progress: cfg.Progress && !opts.Quiet && opts.Destination != "",
	})

	return client.Download(ctx, opts.URL, opts.Destination)
}
