package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/stackfetch/stack-fetcher/internal/checksum"
	"github.com/stackfetch/stack-fetcher/internal/fetcher"
	"github.com/stackfetch/stack-fetcher/internal/logger"
)

const (
	// cacheDirMode is used when creating the cache directory.
	cacheDirMode os.FileMode = 0o755

	// slotFileMode is used for promoted cache entries.
	slotFileMode os.FileMode = 0o644
)

// Outcome reports how Ensure satisfied the request.
type Outcome int

const (
	// OutcomeDownloaded means the artifact was freshly downloaded and promoted.
	OutcomeDownloaded Outcome = iota
	// OutcomeCached means a cached artifact was reused; only the proof was
	// re-downloaded.
	OutcomeCached
)

// String returns a short outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeCached:
		return "cached"
	default:
		return "unknown"
	}
}

var (
	// ErrDownloadFailed means one or more downloads did not complete.
	ErrDownloadFailed = errors.New("artifact download failed")
	// ErrVerificationFailed means the artifact digest differed from the proof.
	ErrVerificationFailed = errors.New("artifact verification failed")
)

// Request identifies one archive and where to fetch it from.
type Request struct {
	// ArchiveName keys the cache slot inside the cache directory.
	ArchiveName string
	// FileURL is the artifact location.
	FileURL string
	// HashURL is the proof location; its filename extension selects the
	// digest algorithm.
	HashURL string
}

// Gate decides whether a fresh artifact download is needed.
//
// Presence of the slot file on disk is the only cache metadata; a present
// entry is assumed valid until a verification proves otherwise. The gate is
// not safe for concurrent invocations against the same cache directory
// (single build process by design).
type Gate struct {
	dir        string
	downloader fetcher.Downloader
	fetcher    *fetcher.Fetcher
}

// New creates a cache gate over dir using the provided downloader.
func New(dir string, downloader fetcher.Downloader) *Gate {
	return &Gate{
		dir:        dir,
		downloader: downloader,
		fetcher:    fetcher.New(downloader),
	}
}

// Slot returns the cache slot path for an archive name.
func (g *Gate) Slot(archiveName string) string {
	return filepath.Join(g.dir, archiveName)
}

// Ensure makes a verified archive available in its cache slot.
//
// On a miss the artifact and proof are fetched concurrently, verified, and
// the artifact is promoted into the slot. On a hit the artifact download is
// skipped entirely; the proof alone is re-downloaded and the cached artifact
// is verified against it. A cached artifact that fails verification is
// removed so the next invocation re-downloads from scratch.
func (g *Gate) Ensure(ctx context.Context, req Request) (Outcome, error) {
	if err := os.MkdirAll(g.dir, cacheDirMode); err != nil {
		return 0, fmt.Errorf("create cache dir: %w", err)
	}

	workDir, err := os.MkdirTemp("", "stack-fetcher-")
	if err != nil {
		return 0, fmt.Errorf("create work dir: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(workDir)
	}()

	hashPath, err := proofPath(workDir, req.HashURL)
	if err != nil {
		return 0, err
	}

	// Reject unrecognized proof extensions before any download happens.
	if _, err := checksum.AlgorithmFromPath(hashPath); err != nil {
		return 0, err
	}

	slot := g.Slot(req.ArchiveName)
	if _, statErr := os.Stat(slot); statErr == nil {
		return g.ensureCached(ctx, req, slot, hashPath)
	}

	return g.ensureFresh(ctx, req, slot, workDir, hashPath)
}

// ensureCached verifies an existing slot against a freshly fetched proof.
// The proof is never cached.
func (g *Gate) ensureCached(ctx context.Context, req Request, slot, hashPath string) (Outcome, error) {
	logger.InfoKV(ctx, "Cache hit, refreshing proof", "archive", req.ArchiveName)

	if err := g.downloader.Download(ctx, req.HashURL, hashPath); err != nil {
		return 0, fmt.Errorf("refresh proof for %s: %w: %w", req.ArchiveName, ErrDownloadFailed, err)
	}

	status, err := checksum.Check(slot, hashPath)
	switch status {
	case checksum.StatusMatch:
		return OutcomeCached, nil
	case checksum.StatusMismatch:
		// Self-healing: drop the corrupt or stale entry so the next
		// invocation downloads from scratch.
		logger.WarnKV(ctx, "Cached archive failed verification, evicting", "slot", slot)

		if removeErr := os.Remove(slot); removeErr != nil {
			return 0, fmt.Errorf("evict %s: %w", slot, removeErr)
		}

		return 0, fmt.Errorf("cached archive %s: %w", req.ArchiveName, ErrVerificationFailed)
	case checksum.StatusUnsupported:
		return 0, err
	default:
		return 0, fmt.Errorf("verify cached archive %s: %w", req.ArchiveName, err)
	}
}

// ensureFresh downloads and verifies the archive, then promotes it into the slot.
func (g *Gate) ensureFresh(ctx context.Context, req Request, slot, workDir, hashPath string) (Outcome, error) {
	logger.InfoKV(ctx, "Cache miss, downloading archive", "archive", req.ArchiveName)

	filePath := filepath.Join(workDir, req.ArchiveName)

	result := g.fetcher.FetchVerify(ctx, fetcher.Request{
		FileURL:  req.FileURL,
		HashURL:  req.HashURL,
		FilePath: filePath,
		HashPath: hashPath,
	})

	switch result {
	case fetcher.ResultOK:
		// Fall through to promotion.
	case fetcher.ResultJobFailure:
		return 0, fmt.Errorf("fetch %s: %w", req.ArchiveName, ErrDownloadFailed)
	case fetcher.ResultMismatch:
		return 0, fmt.Errorf("fetch %s: %w", req.ArchiveName, ErrVerificationFailed)
	case fetcher.ResultUnsupportedAlgorithm:
		return 0, fmt.Errorf("fetch %s: %w", req.ArchiveName, checksum.ErrUnsupportedAlgorithm)
	default:
		return 0, fmt.Errorf("fetch %s: verification incomplete", req.ArchiveName)
	}

	if err := g.promote(ctx, filePath, hashPath, slot); err != nil {
		return 0, err
	}

	return OutcomeDownloaded, nil
}

// promote moves a verified artifact into its cache slot. The apply step
// re-checks the digest while writing, so a slot can never hold bytes that
// differ from the proof it was admitted under.
func (g *Gate) promote(ctx context.Context, filePath, hashPath, slot string) error {
	algo, err := checksum.AlgorithmFromPath(hashPath)
	if err != nil {
		return err
	}

	reference, err := checksum.ReadReference(hashPath)
	if err != nil {
		return err
	}

	rawDigest, err := hex.DecodeString(reference)
	if err != nil {
		return fmt.Errorf("decode reference digest: %w", err)
	}

	artifact, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("open downloaded artifact: %w", err)
	}

	defer func() {
		_ = artifact.Close()
	}()

	// Apply replaces an existing file, so seed an empty slot on first use.
	if _, err := os.Stat(slot); errors.Is(err, os.ErrNotExist) {
		seed, createErr := os.Create(slot)
		if createErr != nil {
			return fmt.Errorf("create cache slot: %w", createErr)
		}

		if closeErr := seed.Close(); closeErr != nil {
			return fmt.Errorf("create cache slot: %w", closeErr)
		}
	}

	options := goupdate.Options{
		TargetPath: slot,
		TargetMode: slotFileMode,
		Checksum:   rawDigest,
		Hash:       algo.CryptoHash(),
	}

	if err := goupdate.Apply(artifact, options); err != nil {
		return fmt.Errorf("promote into cache slot: %w", err)
	}

	if _, err := os.Stat(slot + ".old"); err == nil {
		_ = os.Remove(slot + ".old")
	}

	logger.InfoKV(ctx, "Archive promoted into cache", "slot", slot)

	return nil
}

// proofPath places the proof inside workDir under its remote filename so the
// algorithm-selecting extension is preserved.
func proofPath(workDir, hashURL string) (string, error) {
	parsed, err := url.Parse(hashURL)
	if err != nil {
		return "", fmt.Errorf("parse proof url: %w", err)
	}

	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("parse proof url: no filename in %s", hashURL)
	}

	return filepath.Join(workDir, name), nil
}
