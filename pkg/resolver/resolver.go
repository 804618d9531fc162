package resolver

import (
	"context"
	stderrors "errors"
	"io"
	"path"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/setupdb/pkg/dag"
	"github.com/matzehuels/setupdb/pkg/errors"
	"github.com/matzehuels/setupdb/pkg/nupkg"
	"github.com/matzehuels/setupdb/pkg/nuspec"
	"github.com/matzehuels/setupdb/pkg/observability"
)

// DefaultConcurrency is the number of simultaneous feed requests used when
// [Options.Concurrency] is not set.
const DefaultConcurrency = 8

// maxFlightRetries bounds how often a waiter restarts a shared resolution
// whose owner was cancelled.
const maxFlightRetries = 3

// Options configures a [Resolver].
type Options struct {
	Concurrency int         // simultaneous feed requests; <= 0 selects DefaultConcurrency
	Refresh     bool        // ignore cached latest-version aliases
	Logger      *log.Logger // nil discards log output
}

// Resolver resolves packages against an [Index] into a [Store].
type Resolver struct {
	index  Index
	store  Store
	opts   Options
	logger *log.Logger

	sem     *semaphore.Weighted
	flights singleflight.Group

	mu      sync.Mutex
	done    map[string]*ResolvedPackage // by key
	ids     map[string]string           // key -> graph node ID
	byNode  map[string]*ResolvedPackage
	pinned  map[string]latestVersion    // unpinned key -> version it resolved to

	graph *dag.DAG
}

// New returns a Resolver. It performs no I/O.
func New(index Index, store Store, opts Options) *Resolver {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{
		index:  index,
		store:  store,
		opts:   opts,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(opts.Concurrency)),
		done:   make(map[string]*ResolvedPackage),
		ids:    make(map[string]string),
		byNode: make(map[string]*ResolvedPackage),
		pinned: make(map[string]latestVersion),
		graph:  dag.New(nil),
	}
}

// Resolve makes name and its transitive dependencies available in the store
// and returns the package's primary artifact. An empty version resolves the
// latest one.
func (r *Resolver) Resolve(ctx context.Context, name, version string) (*ResolvedPackage, error) {
	run := uuid.NewString()[:8]
	logger := r.logger.With("run", run)
	ctx = log.WithContext(ctx, logger)

	ref := PackageRef{Name: name, Version: version}
	logger.Debug("resolve", "package", name, "version", ref.versionLabel())
	start := time.Now()

	pkg, err := r.resolve(ctx, "", ref)
	if err != nil {
		logger.Debug("resolve failed", "package", name, "err", err)
		return nil, err
	}
	logger.Debug("resolved", "package", pkg.Name, "version", pkg.Version,
		"deps", len(pkg.Dependencies), "elapsed", time.Since(start).Round(time.Millisecond))
	return pkg, nil
}

// Graph returns the dependency graph recorded so far. Node IDs are
// "name@version"; an edge points from a package to its dependency.
func (r *Resolver) Graph() *dag.DAG {
	return r.graph
}

// LoadOrder returns every package resolved so far, dependencies before the
// packages that need them.
func (r *Resolver) LoadOrder() ([]ResolvedPackage, error) {
	ids, err := r.graph.ReverseTopologicalOrder()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ResolvedPackage, 0, len(ids))
	for _, id := range ids {
		if pkg, ok := r.byNode[id]; ok {
			out = append(out, *pkg)
		}
	}
	return out, nil
}

// resolve pins ref if needed and joins its resolution. parent is the graph
// node of the dependent package, or "" for a root request.
func (r *Resolver) resolve(ctx context.Context, parent string, ref PackageRef) (*ResolvedPackage, error) {
	if err := errors.ValidatePackageName(ref.Name); err != nil {
		return nil, resolutionError(ref, err)
	}
	if err := errors.ValidateVersion(ref.Version); err != nil {
		return nil, resolutionError(ref, err)
	}
	if ref.Version != "" {
		return r.resolvePinned(ctx, parent, ref, "")
	}

	lv, err := r.latestShared(ctx, ref)
	if err != nil {
		return nil, resolutionError(ref, err)
	}
	pinned := PackageRef{Name: ref.Name, Version: lv.version}
	pkg, err := r.resolvePinned(ctx, parent, pinned, lv.downloadURL)
	if err != nil {
		return nil, err
	}
	if !lv.fromAlias {
		r.writeAlias(ctx, pinned)
	}
	return pkg, nil
}

// latestVersion is the outcome of pinning an unpinned request.
type latestVersion struct {
	version     string
	downloadURL string
	fromAlias   bool
}

// latestShared pins ref once per resolver: concurrent callers share one
// lookup and later callers reuse its result.
func (r *Resolver) latestShared(ctx context.Context, ref PackageRef) (latestVersion, error) {
	key := ref.key()
	if lv, ok := r.lookupLatest(key); ok {
		return lv, nil
	}
	v, err := r.share(ctx, key, func() (any, error) {
		if lv, ok := r.lookupLatest(key); ok {
			return lv, nil
		}
		lv, err := r.latest(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.pinned[key] = lv
		r.mu.Unlock()
		return lv, nil
	})
	if err != nil {
		return latestVersion{}, err
	}
	return v.(latestVersion), nil
}

// latest returns the version an unpinned request resolves to, preferring the
// alias manifest left by an earlier run. The version names files and URL
// segments, so it is validated like user input.
func (r *Resolver) latest(ctx context.Context, name string) (latestVersion, error) {
	if !r.opts.Refresh && r.store.HasManifest(name, "") {
		data, err := r.store.ReadManifest(name, "")
		if err == nil {
			var m *nuspec.Manifest
			if m, err = nuspec.Parse(data); err == nil {
				err = errors.ValidateVersion(m.Version)
			}
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "manifest")
				return latestVersion{version: m.Version, fromAlias: true}, nil
			}
		}
		log.FromContext(ctx).Warn("ignoring unreadable manifest alias", "package", name, "err", err)
	}

	var lv latestVersion
	err := r.remote(ctx, func() (err error) {
		lv.version, lv.downloadURL, err = r.index.LatestVersion(ctx, name)
		return err
	})
	if err != nil {
		return latestVersion{}, err
	}
	if lv.version == "" || errors.ValidateVersion(lv.version) != nil {
		return latestVersion{}, errors.New(errors.ErrCodeRemoteFetch, "feed returned invalid latest version %q for %s", lv.version, name)
	}
	log.FromContext(ctx).Debug("latest version", "package", name, "version", lv.version)
	return lv, nil
}

// writeAlias records the pinned manifest as the latest one for its name.
// Failing to do so only costs a lookup next time.
func (r *Resolver) writeAlias(ctx context.Context, ref PackageRef) {
	data, err := r.store.ReadManifest(ref.Name, ref.Version)
	if err == nil {
		err = r.store.WriteManifest(ref.Name, "", data)
	}
	if err != nil {
		log.FromContext(ctx).Warn("could not record latest version", "package", ref.Name, "err", err)
	}
}

// resolvePinned joins the single shared resolution of ref.
func (r *Resolver) resolvePinned(ctx context.Context, parent string, ref PackageRef, downloadURL string) (*ResolvedPackage, error) {
	key := ref.key()
	id := r.nodeID(ref)
	if _, err := r.graph.EnsureNode(dag.Node{ID: id}); err != nil {
		return nil, resolutionError(ref, errors.Wrap(errors.ErrCodeInternal, err, "record %s", id))
	}
	if parent != "" {
		// Joining a flight that is waiting on us would block forever, so
		// cycles are rejected before the join.
		if err := r.graph.AddEdgeAcyclic(dag.Edge{From: parent, To: id}); err != nil {
			if stderrors.Is(err, dag.ErrGraphHasCycle) {
				return nil, resolutionError(ref, errors.New(errors.ErrCodeCycle, "dependency cycle: %s depends on %s", parent, id))
			}
			return nil, resolutionError(ref, errors.Wrap(errors.ErrCodeInternal, err, "record %s -> %s", parent, id))
		}
	}
	if pkg, ok := r.lookup(key); ok {
		return pkg, nil
	}

	v, err := r.share(ctx, key, func() (any, error) {
		if pkg, ok := r.lookup(key); ok {
			return pkg, nil
		}
		pkg, err := r.fetch(ctx, ref, id, downloadURL)
		if err != nil {
			return nil, err
		}
		r.remember(key, id, pkg)
		return pkg, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr {
			return nil, resolutionError(ref, err)
		}
		return nil, err
	}
	return v.(*ResolvedPackage), nil
}

// share runs fn once among the concurrent callers using key. Pinned keys
// ("name@version") and unpinned keys ("name@") never collide. A caller whose
// own context is still live restarts the work when the goroutine running fn
// was cancelled.
func (r *Resolver) share(ctx context.Context, key string, fn func() (any, error)) (any, error) {
	for attempt := 0; ; attempt++ {
		ch := r.flights.DoChan(key, func() (any, error) {
			v, err := fn()
			if err != nil && ctx.Err() != nil {
				return nil, ownerCancelled{err}
			}
			return v, err
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err == nil {
				return res.Val, nil
			}
			var oc ownerCancelled
			if !stderrors.As(res.Err, &oc) {
				return nil, res.Err
			}
			if ctx.Err() != nil || attempt >= maxFlightRetries {
				return nil, oc.err
			}
			log.FromContext(ctx).Debug("shared work cancelled, retrying", "key", key)
		}
	}
}

// fetch performs the resolution of one pinned package.
func (r *Resolver) fetch(ctx context.Context, ref PackageRef, id, downloadURL string) (*ResolvedPackage, error) {
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, ref.Name, ref.Version)
	start := time.Now()

	pkg, err := r.build(ctx, ref, id, downloadURL)

	deps := 0
	if pkg != nil {
		deps = len(pkg.Dependencies)
	}
	hooks.OnResolveComplete(ctx, ref.Name, ref.Version, deps, time.Since(start), err)
	if err != nil {
		return nil, resolutionError(ref, err)
	}
	return pkg, nil
}

func (r *Resolver) build(ctx context.Context, ref PackageRef, id, downloadURL string) (*ResolvedPackage, error) {
	logger := log.FromContext(ctx).With("package", ref.Name, "version", ref.Version)

	data, err := r.manifest(ctx, ref)
	if err != nil {
		return nil, err
	}
	m, err := nuspec.Parse(data)
	if err != nil {
		return nil, err
	}

	refs := m.References(ref.Name)
	if err := r.materialise(ctx, logger, ref, refs, downloadURL); err != nil {
		return nil, err
	}

	deps := m.RetainedDependencies()
	children := make([]PackageRef, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range deps {
		g.Go(func() error {
			child, err := r.resolve(gctx, id, PackageRef{Name: d.ID, Version: nuspec.PinnedVersion(d.Version)})
			if err != nil {
				return err
			}
			children[i] = child.Ref()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	primary := r.store.ArtifactPath(refs[0])
	r.graph.EnsureNode(dag.Node{ID: id, Meta: dag.Metadata{
		"version":  ref.Version,
		"artifact": primary,
	}})
	logger.Debug("package ready", "artifact", primary, "deps", len(children))
	return &ResolvedPackage{
		Name:                ref.Name,
		Version:             ref.Version,
		PrimaryArtifactPath: primary,
		References:          refs,
		Dependencies:        children,
	}, nil
}

// manifest returns the manifest bytes of ref, downloading and storing them
// when the store has none. A stored manifest is never fetched again.
func (r *Resolver) manifest(ctx context.Context, ref PackageRef) ([]byte, error) {
	cache := observability.Cache()
	if r.store.HasManifest(ref.Name, ref.Version) {
		cache.OnCacheHit(ctx, "manifest")
		return r.store.ReadManifest(ref.Name, ref.Version)
	}
	cache.OnCacheMiss(ctx, "manifest")

	var data []byte
	err := r.remote(ctx, func() (err error) {
		data, err = r.index.FetchManifest(ctx, ref.Name, ref.Version)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := r.store.WriteManifest(ref.Name, ref.Version, data); err != nil {
		return nil, err
	}
	cache.OnCacheSet(ctx, "manifest", len(data))
	return data, nil
}

// materialise writes every missing reference file. The archive is downloaded
// at most once, and only when something is missing.
//
// The first reference is written last, so its presence means an earlier
// extraction finished: references that archive could not supply are then
// skipped instead of downloading it again.
func (r *Resolver) materialise(ctx context.Context, logger *log.Logger, ref PackageRef, refs []string, downloadURL string) error {
	cache := observability.Cache()
	extracted := r.store.HasArtifact(ref.Name, refs[0])
	var missing []string
	for _, f := range refs {
		if r.store.HasArtifact(ref.Name, f) {
			cache.OnCacheHit(ctx, "artifact")
			continue
		}
		if extracted {
			logger.Debug("reference absent since earlier extraction", "file", f)
			continue
		}
		cache.OnCacheMiss(ctx, "artifact")
		missing = append(missing, f)
	}
	if len(missing) == 0 {
		return nil
	}

	var data []byte
	err := r.remote(ctx, func() (err error) {
		data, err = r.index.FetchArchive(ctx, ref.Name, ref.Version, downloadURL)
		return err
	})
	if err != nil {
		return err
	}
	archive, err := nupkg.Open(data)
	if err != nil {
		return err
	}
	entry, payload, err := archive.Primary()
	if err != nil {
		return err
	}

	write := func(name string, data []byte) error {
		if err := r.store.WriteArtifact(ref.Name, name, data); err != nil {
			return err
		}
		cache.OnCacheSet(ctx, "artifact", len(data))
		return nil
	}
	// missing[0] is refs[0]: nothing was extracted yet.
	for _, f := range missing[1:] {
		if _, data, err := archive.Lookup(f); err == nil {
			if err := write(f, data); err != nil {
				return err
			}
			continue
		}
		logger.Warn("declared reference not in archive", "file", f)
	}
	if base := path.Base(entry); base != refs[0] && !r.store.HasArtifact(ref.Name, base) {
		if err := write(base, payload); err != nil {
			return err
		}
	}

	// The declared name is what callers load, whatever the archive calls it.
	first := payload
	if _, data, err := archive.Lookup(refs[0]); err == nil {
		first = data
	}
	if err := write(refs[0], first); err != nil {
		return err
	}
	logger.Debug("extracted", "entry", entry, "files", len(missing))
	return nil
}

// remote runs fn while holding a feed request slot. Slots are never held
// across recursive resolution.
func (r *Resolver) remote(ctx context.Context, fn func() error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	return fn()
}

// nodeID returns the graph node of ref. The first spelling seen for a
// package identity wins.
func (r *Resolver) nodeID(ref PackageRef) string {
	key := ref.key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := ref.Name + "@" + ref.Version
	r.ids[key] = id
	return id
}

func (r *Resolver) lookup(key string) (*ResolvedPackage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pkg, ok := r.done[key]
	return pkg, ok
}

func (r *Resolver) lookupLatest(key string) (latestVersion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lv, ok := r.pinned[key]
	return lv, ok
}

func (r *Resolver) remember(key, id string, pkg *ResolvedPackage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[key] = pkg
	r.byNode[id] = pkg
}

func resolutionError(ref PackageRef, err error) error {
	return &errors.ResolutionError{Name: ref.Name, Version: ref.Version, Err: err}
}

// ownerCancelled marks a shared resolution that failed because the context
// of the goroutine running it was cancelled, not because of the package.
type ownerCancelled struct{ err error }

func (e ownerCancelled) Error() string { return e.err.Error() }
func (e ownerCancelled) Unwrap() error { return e.err }

func (r PackageRef) versionLabel() string {
	if r.Version == "" {
		return "latest"
	}
	return r.Version
}
