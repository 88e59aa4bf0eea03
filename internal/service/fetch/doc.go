// Package fetch is the thin service behind the stack-fetch binary: a single
// bounded-retry download to a file or standard output.
package fetch
