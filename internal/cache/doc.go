// Package cache keeps one verified archive per slot in a cache directory.
//
// A slot's presence on disk is the entire cache metadata. On a hit only the
// proof is re-fetched and the cached archive is re-verified against it; an
// entry that fails verification is evicted so the next run starts clean.
package cache
