// Package download fetches single remote resources over HTTP(S).
//
// The client follows redirects, requires TLS 1.2 or newer, retries transient
// failures a fixed number of times, and keeps no partial output on failure.
// It is stateless and safe for concurrent downloads to distinct destinations.
package download
