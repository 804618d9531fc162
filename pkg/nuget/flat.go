package nuget

import (
	"context"
	"strings"

	"github.com/matzehuels/setupdb/pkg/cache"
	"github.com/matzehuels/setupdb/pkg/observability"
)

// FetchManifest downloads the .nuspec document of name at version. A
// published manifest never changes, so it is served from the index cache
// when present, regardless of Refresh.
func (c *Client) FetchManifest(ctx context.Context, name, version string) ([]byte, error) {
	hooks := observability.Cache()
	key := c.keyer.ManifestKey(c.flatURL, name, version)
	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		hooks.OnCacheHit(ctx, "index")
		return data, nil
	}
	hooks.OnCacheMiss(ctx, "index")

	data, err := c.get(ctx, c.ManifestURL(name, version))
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, data, cache.TTLManifest); err == nil {
		hooks.OnCacheSet(ctx, "index", len(data))
	}
	return data, nil
}

// FetchArchive downloads the .nupkg archive of name at version. downloadURL,
// when non-empty, is used as is (it comes from the registration index);
// otherwise the flat container URL is derived.
func (c *Client) FetchArchive(ctx context.Context, name, version, downloadURL string) ([]byte, error) {
	if downloadURL == "" {
		downloadURL = c.ArchiveURL(name, version)
	}
	return c.get(ctx, downloadURL)
}

// ManifestURL returns {flat}/{id}/{version}/{id}.nuspec.
func (c *Client) ManifestURL(name, version string) string {
	id, v := lower(name), lower(version)
	return c.flatURL + "/" + id + "/" + v + "/" + id + ".nuspec"
}

// ArchiveURL returns {flat}/{id}/{version}/{id}.{version}.nupkg.
func (c *Client) ArchiveURL(name, version string) string {
	id, v := lower(name), lower(version)
	return c.flatURL + "/" + id + "/" + v + "/" + id + "." + v + ".nupkg"
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
