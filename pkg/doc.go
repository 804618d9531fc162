// Package pkg provides the libraries behind setupdb, a resolver that turns a
// NuGet package name into a flat directory of ready-to-load libraries.
//
// # Overview
//
// The packages form a stack, leaves first:
//
//  1. [nuspec] parses and writes package manifests (.nuspec)
//  2. [nupkg] picks the right library out of a package archive (.nupkg)
//  3. [nuget] talks to a NuGet v3 feed (registration index + flat container)
//  4. [localcache] owns the flat package directory (default .pkg)
//  5. [resolver] walks the dependency tree concurrently and fills the directory
//
// Supporting packages: [errors] for coded errors, [httputil] for retries,
// [cache] for the optional index cache, [observability] for hooks,
// [dag] for the resolved graph, [render/nodelink] and [io] for exporting it,
// and [config] for the TOML configuration file.
//
// # Data Flow
//
//	package name (+ optional version)
//	         ↓
//	    [nuget] latest version, manifest, archive
//	         ↓
//	    [resolver] one flight per package@version, children in parallel
//	         ↓
//	    [localcache] {name}.{version}.nuspec + {file}.dll
//	         ↓
//	    primary library path, load order, dependency graph
//
// # Quick Start
//
//	client, err := nuget.NewClient(nuget.Options{})
//	if err != nil {
//	    return err
//	}
//	r := resolver.New(client, localcache.New(".pkg"), resolver.Options{})
//	pkg, err := r.Resolve(ctx, "Npgsql", "")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(pkg.PrimaryArtifactPath) // .pkg/Npgsql.dll
//
// A second run over the same directory reads everything from disk and
// makes no network requests.
//
// [nuspec]: github.com/matzehuels/setupdb/pkg/nuspec
// [nupkg]: github.com/matzehuels/setupdb/pkg/nupkg
// [nuget]: github.com/matzehuels/setupdb/pkg/nuget
// [localcache]: github.com/matzehuels/setupdb/pkg/localcache
// [resolver]: github.com/matzehuels/setupdb/pkg/resolver
// [errors]: github.com/matzehuels/setupdb/pkg/errors
// [httputil]: github.com/matzehuels/setupdb/pkg/httputil
// [cache]: github.com/matzehuels/setupdb/pkg/cache
// [observability]: github.com/matzehuels/setupdb/pkg/observability
// [dag]: github.com/matzehuels/setupdb/pkg/dag
// [render/nodelink]: github.com/matzehuels/setupdb/pkg/render/nodelink
// [io]: github.com/matzehuels/setupdb/pkg/io
// [config]: github.com/matzehuels/setupdb/pkg/config
package pkg
