// Package resolver downloads a NuGet package and everything it depends on
// into a flat package directory.
//
// [Resolver.Resolve] fetches the package manifest, extracts the package's
// library from its archive, then resolves every retained dependency
// concurrently. It returns the path of the package's primary library, which
// is ready to load once Resolve returns: all transitive dependencies are on
// disk by then.
//
//	idx, _ := nuget.NewClient(nuget.Options{})
//	r := resolver.New(idx, localcache.New(".pkg"), resolver.Options{})
//	pkg, err := r.Resolve(ctx, "Npgsql", "")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(pkg.PrimaryArtifactPath) // .pkg/Npgsql.dll
//
// # Caching
//
// Files already present in the package directory are never downloaded again.
// An unpinned request also records the manifest under an alias without a
// version, so the next unpinned run needs no network at all. Set
// [Options.Refresh] to look the latest version up again.
//
// # Concurrency
//
// One Resolver may serve many concurrent Resolve calls. Each (name, version)
// pair is fetched at most once per Resolver: concurrent requests for the
// same pair share a single in-flight resolution and later requests reuse its
// result. [Options.Concurrency] bounds the number of simultaneous feed
// requests. Cancelling the context aborts the whole tree, and the first
// failing dependency cancels its siblings.
//
// # Errors
//
// Every failure is returned as an [errors.ResolutionError] naming the
// package; failures in dependencies nest, so the message reads as the path
// from the requested package to the one that failed. Dependency cycles fail
// with code DEPENDENCY_CYCLE instead of deadlocking.
package resolver
