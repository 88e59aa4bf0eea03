package extract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/stackfetch/stack-fetcher/internal/logger"
)

const (
	// targetDirMode is used when creating the target directory tree.
	targetDirMode os.FileMode = 0o755
)

var (
	// ErrUnsupportedArchive is returned for archive names with an unknown format.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// errUnsafePath is returned for entries that would escape the target directory.
	errUnsafePath = errors.New("archive entry escapes target directory")
)

// Unpack extracts the archive at archivePath into targetDir.
//
// The compression is selected by the archive's filename: .tar.gz/.tgz,
// .tar.zst, .tar.xz, or plain .tar. Entries that would escape the target
// directory are rejected.
func Unpack(ctx context.Context, archivePath, targetDir string) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	reader, closer, err := decompressor(archivePath, file)
	if err != nil {
		return err
	}

	if closer != nil {
		defer closer()
	}

	if err := os.MkdirAll(targetDir, targetDirMode); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	logger.InfoKV(ctx, "Unpacking archive", "archive", archivePath, "target", targetDir)

	return unpackTar(ctx, tar.NewReader(reader), targetDir)
}

// decompressor wraps the raw archive stream with the decompressor selected by
// the archive's filename.
func decompressor(archivePath string, file io.Reader) (io.Reader, func(), error) {
	name := strings.ToLower(filepath.Base(archivePath))

	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip stream: %w", err)
		}

		return gz, func() { _ = gz.Close() }, nil
	case strings.HasSuffix(name, ".tar.zst"):
		zr, err := zstd.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open zstd stream: %w", err)
		}

		return zr, zr.Close, nil
	case strings.HasSuffix(name, ".tar.xz"):
		xr, err := xz.NewReader(file)
		if err != nil {
			return nil, nil, fmt.Errorf("open xz stream: %w", err)
		}

		return xr, nil, nil
	case strings.HasSuffix(name, ".tar"):
		return file, nil, nil
	default:
		return nil, nil, fmt.Errorf("%s: %w", name, ErrUnsupportedArchive)
	}
}

// unpackTar restores every tar entry under targetDir.
func unpackTar(ctx context.Context, reader *tar.Reader, targetDir string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("read archive entry: %w", err)
		}

		destination, err := securePath(targetDir, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destination, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("create dir %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(reader, destination, header); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(destination, header); err != nil {
				return err
			}
		default:
			logger.DebugKV(ctx, "Skipping archive entry", "name", header.Name, "type", header.Typeflag)
		}
	}
}

// writeEntry restores a regular file entry with the archived mode.
func writeEntry(reader io.Reader, destination string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(destination), targetDirMode); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", header.Name, err)
	}

	mode := header.FileInfo().Mode().Perm()

	output, err := os.OpenFile(filepath.Clean(destination), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", header.Name, err)
	}

	_, copyErr := io.Copy(output, reader) //nolint:gosec // Archive sizes are bounded by the verified download.
	closeErr := output.Close()

	if copyErr != nil {
		return fmt.Errorf("write %s: %w", header.Name, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", header.Name, closeErr)
	}

	return nil
}

// writeSymlink restores a symlink entry, rejecting absolute link targets.
func writeSymlink(destination string, header *tar.Header) error {
	if filepath.IsAbs(header.Linkname) {
		return fmt.Errorf("symlink %s -> %s: %w", header.Name, header.Linkname, errUnsafePath)
	}

	if err := os.MkdirAll(filepath.Dir(destination), targetDirMode); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", header.Name, err)
	}

	if _, err := os.Lstat(destination); err == nil {
		_ = os.Remove(destination)
	}

	if err := os.Symlink(header.Linkname, destination); err != nil {
		return fmt.Errorf("create symlink %s: %w", header.Name, err)
	}

	return nil
}

// securePath joins an archive entry name onto the target directory and
// rejects names that would resolve outside it.
func securePath(targetDir, name string) (string, error) {
	destination := filepath.Join(targetDir, name)

	relative, err := filepath.Rel(targetDir, destination)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, errUnsafePath)
	}

	return destination, nil
}
