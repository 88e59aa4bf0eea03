// Package publisher prepares a directory of artifacts for distribution.
//
// For every artifact it writes a detached digest file in the format the
// installer verifies against, plus a YAML release manifest summarizing the
// published set.
package publisher
