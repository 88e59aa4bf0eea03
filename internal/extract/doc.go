// Package extract unpacks downloaded archives into a target directory.
//
// The tar stream may be compressed with gzip, zstd, or xz; the format is
// selected by the archive's filename. Entries escaping the target directory
// are rejected.
package extract
