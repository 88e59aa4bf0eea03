// Package installer downloads, verifies, caches, and unpacks one archive.
//
// It guards against concurrent runs with a marker file, makes a verified
// archive available through the cache gate, and extracts it into the target
// directory.
package installer
