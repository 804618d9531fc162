package nuget

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/matzehuels/setupdb/pkg/errors"
	"github.com/matzehuels/setupdb/pkg/observability"
)

// Release is one published version of a package as listed by the index.
type Release struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
}

type registrationIndex struct {
	Items []registrationPage `json:"items"`
}

// registrationPage holds its leaves inline, or only an @id to fetch them
// from when the package has many versions.
type registrationPage struct {
	ID    string             `json:"@id"`
	Items []registrationLeaf `json:"items"`
}

type registrationLeaf struct {
	PackageContent string `json:"packageContent"`
	CatalogEntry   *struct {
		Version string `json:"version"`
	} `json:"catalogEntry"`
}

// LatestVersion returns the highest listed version of name and the URL of its
// archive. Versions are compared by their numeric prefix only, so a
// pre-release ranks equal to its release and the earlier listing wins.
func (c *Client) LatestVersion(ctx context.Context, name string) (version, downloadURL string, err error) {
	key := c.keyer.IndexKey(c.indexURL, name)
	if !c.refresh {
		if r, ok := c.cachedRelease(ctx, key); ok {
			return r.Version, r.DownloadURL, nil
		}
	}

	releases, err := c.Releases(ctx, name)
	if err != nil {
		return "", "", err
	}
	best := Latest(releases)
	if best == nil {
		return "", "", errors.New(errors.ErrCodeNotFound, "no versions listed for package %s", name)
	}

	if data, err := json.Marshal(best); err == nil {
		if err := c.cache.Set(ctx, key, data, c.cacheTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "index", len(data))
		}
	}
	return best.Version, best.DownloadURL, nil
}

// Releases returns every listed version of name in index order. Entries
// without a version are skipped.
func (c *Client) Releases(ctx context.Context, name string) ([]Release, error) {
	url := c.registrationURL(name)
	body, err := c.get(ctx, url)
	if err != nil {
		var rfe *errors.RemoteFetchError
		if stderrors.As(err, &rfe) && rfe.Status == http.StatusNotFound {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "package %s not found", name)
		}
		return nil, err
	}

	var idx registrationIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "unreadable version listing for %s", name)
	}

	var out []Release
	for _, page := range idx.Items {
		leaves := page.Items
		if leaves == nil && page.ID != "" {
			leaves, err = c.fetchPage(ctx, page.ID)
			if err != nil {
				return nil, err
			}
		}
		for _, leaf := range leaves {
			if leaf.CatalogEntry == nil || strings.TrimSpace(leaf.CatalogEntry.Version) == "" {
				continue
			}
			out = append(out, Release{
				Version:     strings.TrimSpace(leaf.CatalogEntry.Version),
				DownloadURL: leaf.PackageContent,
			})
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no versions listed for package %s", name)
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) ([]registrationLeaf, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var page registrationPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "unreadable registration page %s", url)
	}
	return page.Items, nil
}

func (c *Client) cachedRelease(ctx context.Context, key string) (Release, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil || !ok {
		observability.Cache().OnCacheMiss(ctx, "index")
		return Release{}, false
	}
	var r Release
	if err := json.Unmarshal(data, &r); err != nil || r.Version == "" {
		observability.Cache().OnCacheMiss(ctx, "index")
		return Release{}, false
	}
	observability.Cache().OnCacheHit(ctx, "index")
	return r, true
}

// Latest returns the release with the highest version, or nil if releases is
// empty. Ties keep the first release.
func Latest(releases []Release) *Release {
	var best *Release
	for i := range releases {
		if best == nil || CompareVersions(releases[i].Version, best.Version) > 0 {
			best = &releases[i]
		}
	}
	return best
}

func (c *Client) registrationURL(name string) string {
	return c.indexURL + "/" + lower(name) + "/index.json"
}
