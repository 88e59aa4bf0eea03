package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRunDownloadsToFile exercises the service end to end with flag overrides.
func TestRunDownloadsToFile(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer ts.Close()

	dest := filepath.Join(t.TempDir(), "out.bin")

	err := Run(context.Background(), &Options{
		ConfigPath:  filepath.Join(t.TempDir(), "missing.yaml"),
		URL:         ts.URL,
		Destination: dest,
		Attempts:    1,
		Quiet:       true,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "payload", string(got))
}

// TestRunRequiresURL ensures an empty URL is rejected.
func TestRunRequiresURL(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, Run(context.Background(), &Options{}), errEmptyURL)
}
