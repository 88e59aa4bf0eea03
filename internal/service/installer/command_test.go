package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it switches
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))

	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

// TestArchiveRequestDerivations checks defaulting of archive name and proof URL.
func TestArchiveRequestDerivations(t *testing.T) {
	t.Parallel()

	req, err := archiveRequest(&Options{
		ArchiveURL: "https://stacks.example.com/dist/stack-1.2.tgz?token=abc",
	})
	require.NoError(t, err)
	require.Equal(t, "stack-1.2.tgz", req.ArchiveName)
	require.Equal(t, "https://stacks.example.com/dist/stack-1.2.tgz?token=abc.sha256", req.HashURL)

	req, err = archiveRequest(&Options{
		ArchiveURL:  "https://stacks.example.com/dist/stack-1.2.tgz",
		ChecksumURL: "https://stacks.example.com/dist/stack-1.2.tgz.md5",
		ArchiveName: "custom.tgz",
	})
	require.NoError(t, err)
	require.Equal(t, "custom.tgz", req.ArchiveName)
	require.Equal(t, "https://stacks.example.com/dist/stack-1.2.tgz.md5", req.HashURL)

	_, err = archiveRequest(&Options{ArchiveURL: "https://stacks.example.com/"})
	require.ErrorIs(t, err, errNoArchiveName)
}

// TestRunRequiresArchiveURL ensures a missing URL is rejected before any work.
func TestRunRequiresArchiveURL(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, errEmptyArchiveURL)
}

// TestRunRefusesParallelExecution plants a fresh marker file and expects the
// runner to back off.
func TestRunRefusesParallelExecution(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, os.WriteFile(MarkerFilename, nil, 0o600))

	err := Run(context.Background(), &Options{ArchiveURL: "https://example.com/stack.tgz"})
	require.ErrorIs(t, err, errInstallerAlreadyRunning)
}

// TestRunInstallsAndCleansUp runs the full workflow against a test server
// with extraction stubbed out, and checks the marker is removed afterwards.
func TestRunInstallsAndCleansUp(t *testing.T) {
	chdir(t, t.TempDir())

	payload := []byte("hello")
	sum := sha256.Sum256(payload)

	mux := http.NewServeMux()
	mux.HandleFunc("/stack.tgz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/stack.tgz.sha256", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, "%s  stack.tgz\n", hex.EncodeToString(sum[:]))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	var unpacked []string

	previous := unpackArchive
	unpackArchive = func(_ context.Context, archivePath, targetDir string) error {
		unpacked = append(unpacked, archivePath, targetDir)
		return nil
	}

	t.Cleanup(func() { unpackArchive = previous })

	err := Run(context.Background(), &Options{
		ArchiveURL: ts.URL + "/stack.tgz",
		TargetDir:  "build-out",
	})
	require.NoError(t, err)
	require.Len(t, unpacked, 2)
	require.Equal(t, "build-out", unpacked[1])

	// Cached archive exists and the marker is gone.
	_, err = os.Stat(unpacked[0])
	require.NoError(t, err)

	_, err = os.Stat(MarkerFilename)
	require.ErrorIs(t, err, os.ErrNotExist)
}
