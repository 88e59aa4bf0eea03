package download

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/stackfetch/stack-fetcher/internal/logger"
)

const (
	// DefaultAttempts is the total number of attempts for one download.
	DefaultAttempts = 3

	// DefaultTimeout bounds a single download request.
	DefaultTimeout = 5 * time.Minute

	// retryPause is the fixed pause between attempts. No backoff growth.
	retryPause = 2 * time.Second

	// outputFileMode is used for downloaded files.
	outputFileMode os.FileMode = 0o644
)

// statusError reports an HTTP response outside the 2xx range.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected http status: %s", e.status)
}

// Options configures a download client.
type Options struct {
	// Timeout bounds a single request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Attempts is the total attempt count per download. Defaults to DefaultAttempts.
	Attempts int
	// Progress enables a progress bar for file destinations.
	Progress bool
	// Sink receives the payload when Download is called without a destination.
	// Defaults to os.Stdout.
	Sink io.Writer
}

// Client downloads single remote resources over HTTP(S).
//
// A Client holds no per-download state and is safe for concurrent use as long
// as concurrent calls write to distinct destinations.
type Client struct {
	http     *http.Client
	attempts int
	progress bool
	sink     io.Writer
}

// New creates a download client. Redirects are followed and TLS 1.2 is the
// minimum accepted protocol version.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}

	if opts.Sink == nil {
		opts.Sink = os.Stdout
	}

	transport := &http.Transport{
		ForceAttemptHTTP2: true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		attempts: opts.Attempts,
		progress: opts.Progress,
		sink:     opts.Sink,
	}
}

// Download fetches url into destination. An empty destination streams the
// payload to the client's sink instead of a file.
//
// Transient failures (transport errors and 5xx responses) are retried with a
// fixed pause up to the configured attempt count; other HTTP errors fail
// fast. No partial output is kept when writing to a file fails.
func (c *Client) Download(ctx context.Context, url, destination string) error {
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			logger.WarnKV(ctx, "Retrying download",
				"url", url, "attempt", attempt, "previous_error", lastErr)

			if err := pause(ctx); err != nil {
				return err
			}
		}

		err := c.fetchOnce(ctx, url, destination)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("download %s failed after %d attempts: %w", url, c.attempts, lastErr)
}

// fetchOnce performs a single GET and writes the body to the destination.
func (c *Client) fetchOnce(ctx context.Context, url, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	if destination == "" {
		if _, err := io.Copy(c.sink, resp.Body); err != nil {
			return fmt.Errorf("stream %s: %w", url, err)
		}

		return nil
	}

	return c.writeFile(resp, destination)
}

// writeFile stores the response body at destination, removing partial output
// on failure.
func (c *Client) writeFile(resp *http.Response, destination string) error {
	output, err := os.OpenFile(filepath.Clean(destination), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFileMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", destination, err)
	}

	var writer io.Writer = output
	if c.progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destination))
		writer = io.MultiWriter(output, bar)
	}

	_, copyErr := io.Copy(writer, resp.Body)
	closeErr := output.Close()

	if copyErr != nil || closeErr != nil {
		_ = os.Remove(destination)

		if copyErr != nil {
			return fmt.Errorf("write %s: %w", destination, copyErr)
		}

		return fmt.Errorf("close %s: %w", destination, closeErr)
	}

	return nil
}

// isRetryable reports whether an attempt error is worth retrying.
// Server-side (5xx) and transport failures are transient; anything else,
// including 4xx responses and canceled contexts, fails fast.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.code >= http.StatusInternalServerError
	}

	return true
}

// pause waits the fixed retry pause, honoring context cancellation.
func pause(ctx context.Context) error {
	timer := time.NewTimer(retryPause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
