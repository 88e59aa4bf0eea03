package fetcher

import (
	"context"

	"github.com/stackfetch/stack-fetcher/internal/checksum"
	"github.com/stackfetch/stack-fetcher/internal/jobs"
	"github.com/stackfetch/stack-fetcher/internal/logger"
)

// Result is the outcome of a verified download. The distinct codes are part
// of the contract: callers map them to separate, actionable failure causes.
type Result int

const (
	// ResultOK means both downloads finished and the digest matched.
	ResultOK Result = iota
	// ResultJobFailure means at least one download failed; verification was
	// never attempted.
	ResultJobFailure
	// ResultMismatch means the artifact digest differed from the proof.
	ResultMismatch
	// ResultUnsupportedAlgorithm means the proof file extension names no
	// known digest algorithm. This is a configuration error, not transient.
	ResultUnsupportedAlgorithm
	// ResultIOError means a local read failed during verification.
	ResultIOError
)

// String returns a short code name for logging.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultJobFailure:
		return "job-failure"
	case ResultMismatch:
		return "mismatch"
	case ResultUnsupportedAlgorithm:
		return "unsupported-algorithm"
	case ResultIOError:
		return "io-error"
	default:
		return "unknown"
	}
}

// Downloader fetches a single remote resource into a destination path.
type Downloader interface {
	Download(ctx context.Context, url, destination string) error
}

// Request names the two resources of a verified download and where to put them.
type Request struct {
	// FileURL is the artifact location.
	FileURL string
	// HashURL is the proof (digest reference file) location.
	HashURL string
	// FilePath is where the artifact is written.
	FilePath string
	// HashPath is where the proof is written. Its extension selects the
	// digest algorithm, so it must mirror the proof's remote filename.
	HashPath string
}

// Fetcher downloads an artifact and its proof concurrently and verifies them.
type Fetcher struct {
	downloader Downloader

	// verify is swappable in tests to observe whether verification ran.
	verify func(filePath, hashPath string) (checksum.Status, error)
}

// New creates a Fetcher on top of the provided downloader.
func New(downloader Downloader) *Fetcher {
	return &Fetcher{
		downloader: downloader,
		verify:     checksum.Check,
	}
}

// FetchVerify downloads the artifact and its proof as two concurrent
// background jobs, waits for both at a full barrier, and verifies the
// artifact against the proof.
//
// Verification happens-after both downloads complete. If any download fails
// the result is ResultJobFailure and the verifier is never invoked; the two
// downloads themselves have no ordering guarantee relative to each other.
func (f *Fetcher) FetchVerify(ctx context.Context, req Request) Result {
	var set jobs.Set

	set.Launch(ctx, "download-artifact", func(ctx context.Context) error {
		return f.downloader.Download(ctx, req.FileURL, req.FilePath)
	})
	set.Launch(ctx, "download-proof", func(ctx context.Context) error {
		return f.downloader.Download(ctx, req.HashURL, req.HashPath)
	})

	if failed := set.WaitAll(ctx); failed > 0 {
		logger.ErrorKV(ctx, "Download jobs failed", "failed", failed)
		return ResultJobFailure
	}

	status, err := f.verify(req.FilePath, req.HashPath)
	if err != nil {
		logger.ErrorKV(ctx, "Verification did not complete",
			"file", req.FilePath, "proof", req.HashPath, "error", err)
	}

	switch status {
	case checksum.StatusMatch:
		logger.InfoKV(ctx, "Artifact verified", "file", req.FilePath)
		return ResultOK
	case checksum.StatusMismatch:
		return ResultMismatch
	case checksum.StatusUnsupported:
		return ResultUnsupportedAlgorithm
	default:
		return ResultIOError
	}
}
