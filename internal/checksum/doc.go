// Package checksum verifies files against detached digest reference files.
//
// The digest algorithm is encoded in the reference file's own extension
// (.md5, .sha1, .sha256); any other extension is rejected at the boundary.
// A reference file holds a single `<hex-digest> <filename>` line of which
// only the digest token is consulted.
package checksum
