package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stackfetch/stack-fetcher/internal/checksum"
	"github.com/stackfetch/stack-fetcher/internal/logger"
	"github.com/stackfetch/stack-fetcher/internal/version"
)

const (
	// ManifestFilename is the release manifest written next to the artifacts.
	ManifestFilename = "stack-release.yaml"

	// manifestFileMode is used for the manifest and digest files.
	manifestFileMode os.FileMode = 0o644
)

var errNoArtifacts = errors.New("no artifacts found to publish")

// Options contains inputs for the publisher entry point.
type Options struct {
	// Dir is the directory whose files are published.
	Dir string
	// Algorithm is the digest algorithm name (md5, sha1, sha256).
	Algorithm string
	// VersionNumber overrides the release version recorded in the manifest.
	VersionNumber string
}

// Manifest describes a published release.
type Manifest struct {
	// VersionNumber is the semantic version of this release.
	VersionNumber string `yaml:"version"`
	// Algorithm names the digest algorithm used for all files.
	Algorithm string `yaml:"algorithm"`
	// Files maps artifact filenames to their hex digests.
	Files map[string]string `yaml:"files"`
}

// publisher prepares digest files and the release manifest for distribution.
// It is unexported: callers should use Run.
type publisher struct {
	dir      string
	algo     checksum.Algorithm
	manifest *Manifest
}

// Run executes the publishing workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stack-publisher")

	algo, err := checksum.Parse(opts.Algorithm)
	if err != nil {
		return err
	}

	versionNumber := opts.VersionNumber
	if versionNumber == "" {
		versionNumber = version.Short()
	}

	pub := &publisher{
		dir:  opts.Dir,
		algo: algo,
		manifest: &Manifest{
			VersionNumber: versionNumber,
			Algorithm:     algo.String(),
			Files:         make(map[string]string),
		},
	}

	if err = pub.Run(ctx); err != nil {
		return fmt.Errorf("publisher failed: %w", err)
	}

	logger.Info(ctx, "Publisher completed successfully")

	return nil
}

// Run digests every artifact, writes the per-file proof files, and saves the
// manifest.
func (p *publisher) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Digesting artifacts", "dir", p.dir, "algorithm", p.algo.String())

	if err := p.fillManifest(); err != nil {
		return err
	}

	if err := p.writeProofFiles(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Saving release manifest", "path", ManifestFilename)

	return p.saveManifest()
}

// fillManifest digests every publishable file in the directory.
func (p *publisher) fillManifest() error {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return fmt.Errorf("read artifact dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isPublishable(entry.Name()) {
			continue
		}

		digest, err := checksum.FileDigest(p.algo, filepath.Join(p.dir, entry.Name()))
		if err != nil {
			return err
		}

		p.manifest.Files[entry.Name()] = digest
	}

	if len(p.manifest.Files) == 0 {
		return fmt.Errorf("%s: %w", p.dir, errNoArtifacts)
	}

	return nil
}

// writeProofFiles writes one `<hex-digest>  <filename>` proof file per
// artifact, named after the artifact with the algorithm extension appended.
// This is the exact format the checksum verifier consumes.
func (p *publisher) writeProofFiles(ctx context.Context) error {
	for name, digest := range p.manifest.Files {
		proofName := name + "." + p.algo.String()
		line := fmt.Sprintf("%s  %s\n", digest, name)

		if err := os.WriteFile(filepath.Join(p.dir, proofName), []byte(line), manifestFileMode); err != nil {
			return fmt.Errorf("write proof %s: %w", proofName, err)
		}

		logger.DebugKV(ctx, "Wrote proof file", "proof", proofName)
	}

	return nil
}

// saveManifest writes the manifest to the standard ManifestFilename.
func (p *publisher) saveManifest() error {
	contents, err := yaml.Marshal(p.manifest)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(p.dir, ManifestFilename), contents, manifestFileMode)
}

// isPublishable filters out the manifest itself and previously written proof files.
func isPublishable(name string) bool {
	if name == ManifestFilename {
		return false
	}

	for _, ext := range []string{".md5", ".sha1", ".sha256"} {
		if strings.HasSuffix(name, ext) {
			return false
		}
	}

	return true
}

// FileNames returns the published artifact names in stable order.
func (m *Manifest) FileNames() []string {
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
