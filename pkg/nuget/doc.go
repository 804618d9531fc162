// Package nuget is a client for the NuGet v3 package feed.
//
// Two endpoints are used. The registration index lists every published
// version of a package together with its download URL:
//
//	GET {IndexURL}/{id}/index.json
//
// The flat container serves immutable per-version files:
//
//	GET {FlatURL}/{id}/{version}/{id}.nuspec
//	GET {FlatURL}/{id}/{version}/{id}.{version}.nupkg
//
// Package ids and versions are lower-cased in URLs, as the feed requires.
//
// # Errors
//
// Failed requests return [errors.RemoteFetchError] carrying the URL and the
// HTTP status (0 for transport failures). Transport errors, 429 and 5xx are
// retried with exponential backoff; once attempts run out the error also
// matches [httputil.ErrRetriesExhausted]. A package the index does not know
// yields an error with code NOT_FOUND.
//
// # Caching
//
// Version lookups and manifests can be cached in any [cache.Cache], which
// lets several machines share one Redis instance. Version lookups expire
// after [Options.CacheTTL]; manifests are immutable and kept for
// [cache.TTLManifest]. Archives are never cached here; the resolver keeps the
// extracted libraries on disk.
package nuget
