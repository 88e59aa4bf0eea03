package integration

import (
	"archive/tar"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/stackfetch/stack-fetcher/internal/config"
	"github.com/stackfetch/stack-fetcher/internal/service/installer"
	"github.com/stackfetch/stack-fetcher/internal/service/publisher"
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

// buildStackArchive writes a small tar.gz stack archive into dir.
func buildStackArchive(t *testing.T, dir, name string) {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	entries := map[string]string{
		"bin/compile": "#!/bin/sh\necho compiling\n",
		"bin/detect":  "#!/bin/sh\necho detecting\n",
		"VERSION":     "1.2.3\n",
	}
	for entryName, body := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: entryName,
			Mode: 0o755,
			Size: int64(len(body)),
		}))

		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644))
}

// TestInstaller_Run_PublishThenInstall publishes an archive with the
// publisher, serves it over HTTP, and verifies the installer fetches,
// verifies, caches, and unpacks it; a second run reuses the cache.
//
//nolint:funlen // Integration test requires comprehensive setup and verification.
func TestInstaller_Run_PublishThenInstall(t *testing.T) {
	dir := t.TempDir()

	chdir(t, dir)

	// Publish: build the archive and produce its proof + manifest.
	releaseDir := filepath.Join(dir, "release")
	require.NoError(t, os.MkdirAll(releaseDir, 0o755))
	buildStackArchive(t, releaseDir, "stack.tar.gz")

	require.NoError(t, publisher.Run(context.Background(), &publisher.Options{
		Dir:       releaseDir,
		Algorithm: "sha256",
	}))

	// Serve the release directory, counting artifact downloads.
	var artifactCalls atomic.Int32

	fileServer := http.FileServer(http.Dir(releaseDir))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/stack.tar.gz" {
			artifactCalls.Add(1)
		}

		fileServer.ServeHTTP(w, r)
	}))
	defer ts.Close()

	// Configuration pointing cache and target into the test directory.
	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		CacheDir:  filepath.Join(dir, "cache"),
		TargetDir: filepath.Join(dir, "build"),
		Timeout:   10 * time.Second,
		Progress:  false,
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	options := &installer.Options{
		ConfigPath: cfgPath,
		ArchiveURL: ts.URL + "/stack.tar.gz",
	}

	// First run: download, verify, cache, unpack.
	require.NoError(t, installer.Run(context.Background(), options))

	got, err := os.ReadFile(filepath.Join(cfg.TargetDir, "bin", "compile"))
	require.NoError(t, err)
	require.Contains(t, string(got), "compiling")

	_, err = os.Stat(filepath.Join(cfg.CacheDir, "stack.tar.gz"))
	require.NoError(t, err)
	require.Equal(t, int32(1), artifactCalls.Load())

	// Second run: cache hit, artifact not re-downloaded.
	require.NoError(t, installer.Run(context.Background(), options))
	require.Equal(t, int32(1), artifactCalls.Load())
}

// TestInstaller_Run_TamperedProofFails corrupts the published proof and
// expects the install to fail without populating the cache.
func TestInstaller_Run_TamperedProofFails(t *testing.T) {
	dir := t.TempDir()

	chdir(t, dir)

	releaseDir := filepath.Join(dir, "release")
	require.NoError(t, os.MkdirAll(releaseDir, 0o755))
	buildStackArchive(t, releaseDir, "stack.tar.gz")

	require.NoError(t, publisher.Run(context.Background(), &publisher.Options{
		Dir:       releaseDir,
		Algorithm: "sha256",
	}))

	// Flip one character of the proof's digest.
	proofPath := filepath.Join(releaseDir, "stack.tar.gz.sha256")
	proof, err := os.ReadFile(proofPath)
	require.NoError(t, err)

	if proof[0] == '0' {
		proof[0] = '1'
	} else {
		proof[0] = '0'
	}

	require.NoError(t, os.WriteFile(proofPath, proof, 0o644))

	ts := httptest.NewServer(http.FileServer(http.Dir(releaseDir)))
	defer ts.Close()

	cfgPath := filepath.Join(dir, config.DefaultConfigFilename)
	cfg := &config.Config{
		CacheDir:  filepath.Join(dir, "cache"),
		TargetDir: filepath.Join(dir, "build"),
		Progress:  false,
	}
	require.NoError(t, config.Save(cfgPath, cfg))

	err = installer.Run(context.Background(), &installer.Options{
		ConfigPath: cfgPath,
		ArchiveURL: ts.URL + "/stack.tar.gz",
	})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(cfg.CacheDir, "stack.tar.gz"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
