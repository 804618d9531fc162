package cache

// ScopedKeyer wraps a Keyer with a prefix so several tools or feeds can share
// one backend (typically Redis) without key collisions.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "setupdb:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// IndexKey generates a prefixed key for version listings.
func (k *ScopedKeyer) IndexKey(feedURL, pkg string) string {
	return k.prefix + k.inner.IndexKey(feedURL, pkg)
}

// ManifestKey generates a prefixed key for manifests.
func (k *ScopedKeyer) ManifestKey(feedURL, pkg, version string) string {
	return k.prefix + k.inner.ManifestKey(feedURL, pkg, version)
}
