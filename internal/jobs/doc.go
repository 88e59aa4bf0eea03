// Package jobs tracks concurrently launched background operations.
//
// Each launch produces a strongly-typed handle; a Set waits for every handle
// at a full barrier and reports the aggregate failure count instead of
// aborting on the first error.
package jobs
