package installer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/stackfetch/stack-fetcher/internal/cache"
	"github.com/stackfetch/stack-fetcher/internal/config"
	"github.com/stackfetch/stack-fetcher/internal/download"
	"github.com/stackfetch/stack-fetcher/internal/extract"
	"github.com/stackfetch/stack-fetcher/internal/logger"
)

// unpackArchive is swappable in tests.
var unpackArchive = extract.Unpack

var (
	errInstallerAlreadyRunning = errors.New("the installer is already running")
	errEmptyArchiveURL         = errors.New("archive URL must be provided")
	errNoArchiveName           = errors.New("unable to derive archive name from URL")
)

// defaultProofExtension is appended to the archive URL when no explicit
// checksum URL is provided.
const defaultProofExtension = ".sha256"

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// ArchiveURL is the artifact location.
	ArchiveURL string
	// ChecksumURL is the proof location. Defaults to ArchiveURL + ".sha256".
	ChecksumURL string
	// ArchiveName keys the cache slot. Defaults to the URL's filename.
	ArchiveName string
	// TargetDir overrides the configured unpack directory.
	TargetDir string
}

// runner holds the state for a single install execution.
// It is intentionally unexported: call Run(ctx, Options) from callers.
type runner struct {
	cfg       *config.Config
	gate      *cache.Gate
	archive   cache.Request
	targetDir string
}

// Run executes the installer lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stack-installer")

	ins, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer ins.cleanup(ctx)

	if err = ins.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Install failed", "error", err)
		return err
	}

	logger.Info(ctx, "Install completed")

	return nil
}

// newRunner validates options, loads settings, and writes a marker to avoid
// concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	if opts.ArchiveURL == "" {
		return nil, errEmptyArchiveURL
	}

	if IsInstallerRunningNow(ctx) {
		return nil, errInstallerAlreadyRunning
	}

	marker, err := os.Create(MarkerFilename)
	if err != nil {
		return nil, err
	}

	if err = marker.Close(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	archive, err := archiveRequest(opts)
	if err != nil {
		return nil, err
	}

	targetDir := opts.TargetDir
	if targetDir == "" {
		targetDir = cfg.TargetDir
	}

	downloader := download.New(download.Options{
		Timeout:  cfg.Timeout,
		Attempts: cfg.RetryAttempts,
		Progress: cfg.Progress,
	})

	return &runner{
		cfg:       cfg,
		gate:      cache.New(cfg.CacheDir, downloader),
		archive:   archive,
		targetDir: targetDir,
	}, nil
}

// archiveRequest derives the cache request from the options.
func archiveRequest(opts *Options) (cache.Request, error) {
	checksumURL := opts.ChecksumURL
	if checksumURL == "" {
		checksumURL = opts.ArchiveURL + defaultProofExtension
	}

	name := opts.ArchiveName
	if name == "" {
		parsed, err := url.Parse(opts.ArchiveURL)
		if err != nil {
			return cache.Request{}, fmt.Errorf("parse archive URL: %w", err)
		}

		name = path.Base(parsed.Path)
		if name == "." || name == "/" || name == "" {
			return cache.Request{}, fmt.Errorf("%s: %w", opts.ArchiveURL, errNoArchiveName)
		}
	}

	return cache.Request{
		ArchiveName: name,
		FileURL:     opts.ArchiveURL,
		HashURL:     checksumURL,
	}, nil
}

// Run executes the workflow for this runner instance:
// 1) Make a verified archive available through the cache gate.
// 2) Unpack it into the target directory.
func (r *runner) Run(ctx context.Context) error {
	outcome, err := r.gate.Ensure(ctx, r.archive)
	if err != nil {
		return fmt.Errorf("ensure archive: %w", err)
	}

	logger.InfoKV(ctx, "Archive available",
		"archive", r.archive.ArchiveName, "outcome", outcome.String())

	// An extraction failure deliberately does not evict the cache slot;
	// only verification failures do.
	if err := r.unpack(ctx); err != nil {
		return fmt.Errorf("unpack archive: %w", err)
	}

	return nil
}

// unpack extracts the cached archive into the target directory.
func (r *runner) unpack(ctx context.Context) error {
	return unpackArchive(ctx, r.gate.Slot(r.archive.ArchiveName), r.targetDir)
}

// cleanup removes the running marker.
func (r *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	logger.Info(ctx, "The installer has been stopped")
}
