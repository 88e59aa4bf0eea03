// Package fetcher composes the downloader, job tracking, and checksum
// verification into one verified-download operation: artifact and proof are
// fetched concurrently, waited for at a barrier, and compared.
package fetcher
