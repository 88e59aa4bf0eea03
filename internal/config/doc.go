// Package config loads, validates, and persists installer settings.
//
// Settings are stored as YAML and cover the cache directory, the unpack
// target, and download behavior (timeout, retry attempts, progress output).
// Everything the installer previously would have read from ambient process
// state is an explicit field here.
package config
