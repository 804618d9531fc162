// Package cache provides a small key/value cache for remote responses.
//
// Backends implement [Cache]. Three are available:
//
//   - [FileCache] stores entries as JSON files under a directory (CLI default)
//   - [RedisCache] shares entries between processes and machines
//   - [NullCache] disables caching entirely
//
// Keys are produced by a [Keyer] so that callers never hand-build key strings.
package cache

import (
	"context"
	"time"
)

// TTL defaults for cached data.
const (
	// TTLIndex is how long a package version listing is reused.
	TTLIndex = time.Hour

	// TTLManifest applies to immutable per-version documents.
	TTLManifest = 7 * 24 * time.Hour
)

// Cache is a byte-oriented key/value store with per-entry expiration.
//
// Get reports a miss as (nil, false, nil). A TTL of zero means the entry
// never expires. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keyer generates cache keys.
type Keyer interface {
	// IndexKey returns the key for a package version listing on a given feed.
	IndexKey(feedURL, pkg string) string

	// ManifestKey returns the key for the manifest of pkg at version.
	ManifestKey(feedURL, pkg, version string) string
}

// DefaultKeyer generates plain, readable keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key generator.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// IndexKey hashes the feed URL with the package id so listings from different
// feeds never collide. Package ids are case-insensitive.
func (DefaultKeyer) IndexKey(feedURL, pkg string) string {
	return hashKey("index", feedURL, normalizeID(pkg))
}

// ManifestKey hashes the feed URL with the package identity. Versions are
// compared case-insensitively like ids.
func (DefaultKeyer) ManifestKey(feedURL, pkg, version string) string {
	return hashKey("manifest", feedURL, normalizeID(pkg), normalizeID(version))
}
