package checksum

import (
	"bufio"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Register the digest implementations referenced through crypto.Hash.
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
)

// Algorithm is a supported digest algorithm. Unrecognized inputs are rejected
// at the boundary by AlgorithmFromPath and Parse instead of deep inside a
// verification call.
type Algorithm int

const (
	// MD5 matches hash files with the ".md5" extension.
	MD5 Algorithm = iota
	// SHA1 matches hash files with the ".sha1" extension.
	SHA1
	// SHA256 matches hash files with the ".sha256" extension.
	SHA256
)

// Status is the outcome of a verification.
type Status int

const (
	// StatusUnknown means verification did not complete (I/O failure).
	StatusUnknown Status = iota
	// StatusMatch means the file digest equals the reference digest.
	StatusMatch
	// StatusMismatch means the file digest differs from the reference digest.
	StatusMismatch
	// StatusUnsupported means the hash file extension names no known algorithm.
	// Callers must treat this as a hard configuration error, not a transient
	// verification failure.
	StatusUnsupported
)

// ErrUnsupportedAlgorithm is returned for hash files whose extension is not
// one of .md5, .sha1, .sha256.
var ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

// errEmptyHashFile is returned when the hash file has no digest token.
var errEmptyHashFile = errors.New("hash file contains no digest")

// String returns the algorithm name as used in file extensions.
func (a Algorithm) String() string {
	switch a {
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case SHA256:
		return "sha256"
	default:
		return "unknown"
	}
}

// CryptoHash maps the algorithm onto the stdlib crypto.Hash identifier.
func (a Algorithm) CryptoHash() crypto.Hash {
	switch a {
	case MD5:
		return crypto.MD5
	case SHA1:
		return crypto.SHA1
	case SHA256:
		return crypto.SHA256
	default:
		return 0
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	return a.CryptoHash().New()
}

// Parse converts an algorithm name to an Algorithm.
func Parse(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "md5":
		return MD5, nil
	case "sha1":
		return SHA1, nil
	case "sha256":
		return SHA256, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnsupportedAlgorithm)
	}
}

// AlgorithmFromPath derives the algorithm from the final extension of a hash
// file path (for example "stack.tgz.sha256" selects SHA256).
func AlgorithmFromPath(path string) (Algorithm, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return Parse(ext)
}

// FileDigest computes the file's digest with the provided algorithm and
// returns it hex-encoded. The file is streamed, never loaded whole.
func FileDigest(algo Algorithm, path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := algo.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ReadReference extracts the reference digest from a hash file.
//
// The expected content is a single `<hex-digest> <filename>` line; only the
// first whitespace-delimited token of the first line is consulted, so a
// malformed multi-line file is never read past its first line.
func ReadReference(hashPath string) (string, error) {
	file, err := os.Open(filepath.Clean(hashPath))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", hashPath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", hashPath, err)
		}

		return "", fmt.Errorf("%s: %w", hashPath, errEmptyHashFile)
	}

	fields := strings.Fields(scanner.Text())
	if len(fields) == 0 {
		return "", fmt.Errorf("%s: %w", hashPath, errEmptyHashFile)
	}

	return fields[0], nil
}

// Check verifies filePath against the reference digest stored in hashPath.
//
// The algorithm is selected by hashPath's final extension; digests are
// compared case-insensitively. StatusUnsupported is reported for unknown
// extensions regardless of the hash file's content.
func Check(filePath, hashPath string) (Status, error) {
	algo, err := AlgorithmFromPath(hashPath)
	if err != nil {
		return StatusUnsupported, err
	}

	reference, err := ReadReference(hashPath)
	if err != nil {
		return StatusUnknown, err
	}

	actual, err := FileDigest(algo, filePath)
	if err != nil {
		return StatusUnknown, err
	}

	if strings.EqualFold(reference, actual) {
		return StatusMatch, nil
	}

	return StatusMismatch, nil
}
