package resolver

import (
	"archive/zip"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/setupdb/pkg/errors"
	"github.com/matzehuels/setupdb/pkg/localcache"
	"github.com/matzehuels/setupdb/pkg/nuspec"
	"github.com/matzehuels/setupdb/pkg/observability"
)

// fakeIndex serves packages from memory and counts every call.
type fakeIndex struct {
	mu        sync.Mutex
	latest    map[string]string // lower id -> version
	manifests map[string][]byte // lower id@version
	archives  map[string][]byte
	calls     map[string]int // "latest:id", "manifest:id@v", "archive:id@v"

	// delay slows every latest-version lookup, widening the window in which
	// concurrent callers overlap.
	delay time.Duration

	// hang makes the first manifest fetch of a key block until its context
	// is done; started is closed once it does.
	hang    map[string]chan struct{}
	hanging map[string]bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		latest:    map[string]string{},
		manifests: map[string][]byte{},
		archives:  map[string][]byte{},
		calls:     map[string]int{},
		hang:      map[string]chan struct{}{},
		hanging:   map[string]bool{},
	}
}

func fkey(name, version string) string {
	return strings.ToLower(name) + "@" + strings.ToLower(version)
}

// add publishes a package. deps are "id" or "id version" strings, declared in
// a group without a target framework.
func (f *fakeIndex) add(t *testing.T, name, version string, refs []string, archive []byte, deps ...string) {
	t.Helper()
	m := &nuspec.Manifest{ID: name, Version: version, ReferenceFiles: refs}
	if len(deps) > 0 {
		g := nuspec.DependencyGroup{}
		for _, d := range deps {
			id, v, _ := strings.Cut(d, " ")
			g.Dependencies = append(g.Dependencies, nuspec.Dependency{ID: id, Version: v})
		}
		m.DependencyGroups = append(m.DependencyGroups, g)
	}
	f.addManifest(t, m, archive)
}

func (f *fakeIndex) addManifest(t *testing.T, m *nuspec.Manifest, archive []byte) {
	t.Helper()
	data, err := nuspec.Marshal(m)
	require.NoError(t, err)
	f.mu.Lock()
	defer f.mu.Unlock()
	k := fkey(m.ID, m.Version)
	f.manifests[k] = data
	f.archives[k] = archive
	if cur, ok := f.latest[strings.ToLower(m.ID)]; !ok || cur < m.Version {
		f.latest[strings.ToLower(m.ID)] = m.Version
	}
}

func (f *fakeIndex) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeIndex) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeIndex) LatestVersion(_ context.Context, name string) (string, string, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["latest:"+strings.ToLower(name)]++
	v, ok := f.latest[strings.ToLower(name)]
	if !ok {
		return "", "", errors.New(errors.ErrCodeNotFound, "package %s not found", name)
	}
	return v, "", nil
}

func (f *fakeIndex) FetchManifest(ctx context.Context, name, version string) ([]byte, error) {
	k := fkey(name, version)
	f.mu.Lock()
	f.calls["manifest:"+k]++
	started, hang := f.hang[k]
	if hang && !f.hanging[k] {
		f.hanging[k] = true
		f.mu.Unlock()
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	data, ok := f.manifests[k]
	f.mu.Unlock()
	if !ok {
		return nil, &errors.RemoteFetchError{URL: "mem://" + k + ".nuspec", Status: 404}
	}
	return data, nil
}

func (f *fakeIndex) FetchArchive(_ context.Context, name, version, _ string) ([]byte, error) {
	k := fkey(name, version)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["archive:"+k]++
	data, ok := f.archives[k]
	if !ok || data == nil {
		return nil, &errors.RemoteFetchError{URL: "mem://" + k + ".nupkg", Status: 404}
	}
	return data, nil
}

// archive builds a .nupkg from (entry, content) pairs in order.
func archive(t *testing.T, entries ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("binary:" + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func lib(file string) string {
	return "lib/netstandard2.0/" + file
}

func newTestResolver(t *testing.T, idx Index) (*Resolver, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".pkg")
	return New(idx, localcache.New(dir), Options{Concurrency: 4}), dir
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestResolveLatestWithDependency(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.2.0", []string{"Foo.dll"}, archive(t, lib("Foo.dll")), "Bar")
	idx.add(t, "Bar", "2.0.0", nil, archive(t, lib("Bar.dll")))

	r, dir := newTestResolver(t, idx)
	pkg, err := r.Resolve(testContext(t), "Foo", "")
	require.NoError(t, err)

	assert.Equal(t, "Foo", pkg.Name)
	assert.Equal(t, "1.2.0", pkg.Version)
	assert.Equal(t, filepath.Join(dir, "Foo.dll"), pkg.PrimaryArtifactPath)
	assert.Equal(t, []PackageRef{{Name: "Bar", Version: "2.0.0"}}, pkg.Dependencies)
	assert.Equal(t, 1, idx.count("latest:bar"))

	for _, f := range []string{"Foo.dll", "Bar.dll", "Foo.1.2.0.nuspec", "Foo.nuspec", "Bar.2.0.0.nuspec", "Bar.nuspec"} {
		assert.FileExists(t, filepath.Join(dir, f))
	}
}

func TestResolveSyntheticReference(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", nil, archive(t, "lib/net45/Old.dll", lib("Actual.dll")))

	r, dir := newTestResolver(t, idx)
	pkg, err := r.Resolve(testContext(t), "Foo", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "Foo.dll"), pkg.PrimaryArtifactPath)
	data, err := os.ReadFile(pkg.PrimaryArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "binary:"+lib("Actual.dll"), string(data))
	assert.FileExists(t, filepath.Join(dir, "Actual.dll"))
	assert.NoFileExists(t, filepath.Join(dir, "Old.dll"))
}

func TestResolveAllReferences(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", []string{"Foo.dll", "Foo.Extra.dll", "Missing.dll"},
		archive(t, lib("Foo.dll"), "lib/netcoreapp3.1/Foo.Extra.dll"))

	r, dir := newTestResolver(t, idx)
	pkg, err := r.Resolve(testContext(t), "Foo", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, []string{"Foo.dll", "Foo.Extra.dll", "Missing.dll"}, pkg.References)
	assert.FileExists(t, filepath.Join(dir, "Foo.dll"))
	assert.FileExists(t, filepath.Join(dir, "Foo.Extra.dll"))
	assert.NoFileExists(t, filepath.Join(dir, "Missing.dll"))
	assert.Equal(t, 1, idx.count("archive:foo@1.0.0"))
}

func TestResolveUnsuppliedReferenceStaysOffline(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", []string{"Foo.dll", "Foo.Native.dll"},
		archive(t, lib("Foo.dll"), "lib/net45/Foo.Native.dll"))

	dir := filepath.Join(t.TempDir(), ".pkg")
	_, err := New(idx, localcache.New(dir), Options{}).Resolve(testContext(t), "Foo", "1.0.0")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "Foo.Native.dll"))
	before := idx.total()

	pkg, err := New(idx, localcache.New(dir), Options{}).Resolve(testContext(t), "Foo", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, before, idx.total(), "second run must not download the archive again")
	assert.Equal(t, 1, idx.count("archive:foo@1.0.0"))
	assert.Equal(t, filepath.Join(dir, "Foo.dll"), pkg.PrimaryArtifactPath)
}

func TestResolveArtifactNotFound(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", nil, archive(t, "lib/net45/Foo.dll", "content/readme.txt"))

	r, _ := newTestResolver(t, idx)
	_, err := r.Resolve(testContext(t), "Foo", "1.0.0")
	require.Error(t, err)

	assert.True(t, errors.Is(err, errors.ErrCodeArtifactNotFound), "err = %v", err)
	var re *errors.ResolutionError
	require.True(t, stderrors.As(err, &re))
	assert.Equal(t, "Foo", re.Name)
	assert.Equal(t, "1.0.0", re.Version)
}

func TestResolveSecondRunIsOffline(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.2.0", []string{"Foo.dll"}, archive(t, lib("Foo.dll")), "Bar [1.0.0, )")
	idx.add(t, "Bar", "1.0.0", nil, archive(t, lib("Bar.dll")))

	dir := filepath.Join(t.TempDir(), ".pkg")
	first, err := New(idx, localcache.New(dir), Options{}).Resolve(testContext(t), "Foo", "")
	require.NoError(t, err)
	before := idx.total()
	require.Positive(t, before)

	second, err := New(idx, localcache.New(dir), Options{}).Resolve(testContext(t), "Foo", "")
	require.NoError(t, err)
	assert.Equal(t, before, idx.total(), "second run must not touch the network")
	assert.Equal(t, first, second)
}

func TestResolveRefreshLooksUpLatest(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", nil, archive(t, lib("Foo.dll")))

	dir := filepath.Join(t.TempDir(), ".pkg")
	_, err := New(idx, localcache.New(dir), Options{}).Resolve(testContext(t), "Foo", "")
	require.NoError(t, err)

	idx.add(t, "Foo", "1.1.0", nil, archive(t, lib("Foo.dll")))
	pkg, err := New(idx, localcache.New(dir), Options{Refresh: true}).Resolve(testContext(t), "Foo", "")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", pkg.Version)
	assert.Equal(t, 2, idx.count("latest:foo"))
	// Foo.dll from 1.0.0 is present, so 1.1.0 needs no archive.
	assert.Equal(t, 0, idx.count("archive:foo@1.1.0"))
}

func TestResolveDiamondFetchesOnce(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "A", "1.0.0", nil, archive(t, lib("A.dll")), "B 1.0.0", "C 1.0.0")
	idx.add(t, "B", "1.0.0", nil, archive(t, lib("B.dll")), "D 1.0.0")
	idx.add(t, "C", "1.0.0", nil, archive(t, lib("C.dll")), "D 1.0.0")
	idx.add(t, "D", "1.0.0", nil, archive(t, lib("D.dll")))
	idx.add(t, "X", "1.0.0", nil, archive(t, lib("X.dll")), "D 1.0.0")

	r, dir := newTestResolver(t, idx)
	ctx := testContext(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, root := range []string{"A", "X"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = r.Resolve(ctx, root, "1.0.0")
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, 1, idx.count("manifest:d@1.0.0"))
	assert.Equal(t, 1, idx.count("archive:d@1.0.0"))
	assert.FileExists(t, filepath.Join(dir, "D.dll"))
	assert.Equal(t, 5, r.Graph().NodeCount())
	assert.Equal(t, 5, r.Graph().EdgeCount())
}

func TestResolveSharesUnpinnedLookup(t *testing.T) {
	idx := newFakeIndex()
	idx.delay = 50 * time.Millisecond
	idx.add(t, "B", "1.0.0", nil, archive(t, lib("B.dll")), "D")
	idx.add(t, "C", "1.0.0", nil, archive(t, lib("C.dll")), "D")
	idx.add(t, "D", "2.0.0", nil, archive(t, lib("D.dll")))

	r, _ := newTestResolver(t, idx)
	ctx := testContext(t)

	var wg sync.WaitGroup
	pkgs := make([]*ResolvedPackage, 2)
	errs := make([]error, 2)
	for i, root := range []string{"B", "C"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pkgs[i], errs[i] = r.Resolve(ctx, root, "1.0.0")
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, 1, idx.count("latest:d"))
	assert.Equal(t, 1, idx.count("manifest:d@2.0.0"))
	assert.Equal(t, 1, idx.count("archive:d@2.0.0"))
	for _, pkg := range pkgs {
		assert.Equal(t, []PackageRef{{Name: "D", Version: "2.0.0"}}, pkg.Dependencies)
	}

	// A later unpinned request on the same resolver reuses the pinned version.
	_, err := r.Resolve(ctx, "d", "")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.count("latest:d"))
}

func TestResolveRejectsInvalidLatestVersion(t *testing.T) {
	idx := newFakeIndex()
	idx.latest["evil"] = "../../1.0.0"

	r, dir := newTestResolver(t, idx)
	_, err := r.Resolve(testContext(t), "Evil", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRemoteFetch), "err = %v", err)
	assert.Zero(t, idx.count("manifest:evil@../../1.0.0"))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestResolveIgnoresInvalidAlias(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", nil, archive(t, lib("Foo.dll")))

	dir := filepath.Join(t.TempDir(), ".pkg")
	store := localcache.New(dir)
	alias, err := nuspec.Marshal(&nuspec.Manifest{ID: "Foo", Version: "1.0/../../x"})
	require.NoError(t, err)
	require.NoError(t, store.WriteManifest("Foo", "", alias))

	pkg, err := New(idx, store, Options{}).Resolve(testContext(t), "Foo", "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", pkg.Version)
	assert.Equal(t, 1, idx.count("latest:foo"))
}

func TestResolveCaseInsensitiveIdentity(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "A", "1.0.0", nil, archive(t, lib("A.dll")), "Shared 1.0.0", "B 1.0.0")
	idx.add(t, "B", "1.0.0", nil, archive(t, lib("B.dll")), "shared 1.0.0")
	idx.add(t, "Shared", "1.0.0", nil, archive(t, lib("Shared.dll")))

	r, _ := newTestResolver(t, idx)
	_, err := r.Resolve(testContext(t), "A", "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, 1, idx.count("manifest:shared@1.0.0"))
	assert.Equal(t, 3, r.Graph().NodeCount())
}

func TestResolveExclusions(t *testing.T) {
	idx := newFakeIndex()
	idx.addManifest(t, &nuspec.Manifest{
		ID:      "Foo",
		Version: "1.0.0",
		DependencyGroups: []nuspec.DependencyGroup{
			{TargetFramework: ".NETStandard2.0", Dependencies: []nuspec.Dependency{{ID: "Polyfill", Version: "1.0.0"}}},
			{TargetFramework: "net6.0", Dependencies: []nuspec.Dependency{
				{ID: "System.Memory", Version: "4.5.0"},
				{ID: "NETStandard.Library", Version: "2.0.3"},
				{ID: "Microsoft.NETCore.App", Version: "2.1.0"},
				{ID: "Kept", Version: "[1.0.0]"},
			}},
		},
	}, archive(t, lib("Foo.dll")))
	idx.add(t, "Kept", "1.0.0", nil, archive(t, lib("Kept.dll")))

	r, _ := newTestResolver(t, idx)
	pkg, err := r.Resolve(testContext(t), "Foo", "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, []PackageRef{{Name: "Kept", Version: "1.0.0"}}, pkg.Dependencies)
	for _, id := range []string{"polyfill", "system.memory", "netstandard.library", "microsoft.netcore.app"} {
		assert.Zero(t, idx.count("latest:"+id), id)
	}
	assert.Zero(t, idx.count("manifest:polyfill@1.0.0"))
	assert.Zero(t, idx.count("manifest:system.memory@4.5.0"))
}

func TestResolveCycle(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "A", "1.0.0", nil, archive(t, lib("A.dll")), "B 1.0.0")
	idx.add(t, "B", "1.0.0", nil, archive(t, lib("B.dll")), "C 1.0.0")
	idx.add(t, "C", "1.0.0", nil, archive(t, lib("C.dll")), "A 1.0.0")

	r, _ := newTestResolver(t, idx)
	_, err := r.Resolve(testContext(t), "A", "1.0.0")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCycle), "err = %v", err)
	assert.Contains(t, err.Error(), "resolve A@1.0.0: resolve B@1.0.0: resolve C@1.0.0")
}

func TestResolveFailureCancelsSiblings(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "A", "1.0.0", nil, archive(t, lib("A.dll")), "Slow 1.0.0", "Missing 1.0.0")
	idx.add(t, "Slow", "1.0.0", nil, archive(t, lib("Slow.dll")))
	idx.hang[fkey("Slow", "1.0.0")] = make(chan struct{})

	r, _ := newTestResolver(t, idx)
	start := time.Now()
	_, err := r.Resolve(testContext(t), "A", "1.0.0")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, errors.Is(err, errors.ErrCodeRemoteFetch), "err = %v", err)
	assert.Contains(t, err.Error(), "Missing@1.0.0")
}

func TestResolveWaiterRetriesCancelledOwner(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "D", "1.0.0", nil, archive(t, lib("D.dll")))
	started := make(chan struct{})
	idx.hang[fkey("D", "1.0.0")] = started

	r, _ := newTestResolver(t, idx)
	ownerCtx, cancelOwner := context.WithCancel(context.Background())
	defer cancelOwner()

	ownerErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ownerCtx, "D", "1.0.0")
		ownerErr <- err
	}()
	<-started

	waiter := make(chan error, 1)
	go func() {
		_, err := r.Resolve(testContext(t), "D", "1.0.0")
		waiter <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelOwner()

	assert.ErrorIs(t, <-ownerErr, context.Canceled)
	require.NoError(t, <-waiter)
	assert.Equal(t, 2, idx.count("manifest:d@1.0.0"))
}

func TestResolveInvalidInput(t *testing.T) {
	r, _ := newTestResolver(t, newFakeIndex())
	tests := []struct {
		name, version string
		code          errors.Code
	}{
		{"../etc", "", errors.ErrCodeInvalidPackage},
		{"", "1.0.0", errors.ErrCodeInvalidPackage},
		{"Foo", "[1.0.0, )", errors.ErrCodeInvalidVersion},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s@%s", tt.name, tt.version), func(t *testing.T) {
			_, err := r.Resolve(testContext(t), tt.name, tt.version)
			assert.True(t, errors.Is(err, tt.code), "err = %v", err)
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	r, _ := newTestResolver(t, newFakeIndex())
	_, err := r.Resolve(testContext(t), "Nope", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
	assert.Equal(t, errors.ErrCodeResolution, errors.GetCode(err))
}

func TestLoadOrder(t *testing.T) {
	idx := newFakeIndex()
	idx.add(t, "App", "1.0.0", nil, archive(t, lib("App.dll")), "Mid 1.0.0")
	idx.add(t, "Mid", "1.0.0", nil, archive(t, lib("Mid.dll")), "Base 1.0.0")
	idx.add(t, "Base", "1.0.0", nil, archive(t, lib("Base.dll")))

	r, _ := newTestResolver(t, idx)
	_, err := r.Resolve(testContext(t), "App", "1.0.0")
	require.NoError(t, err)

	order, err := r.LoadOrder()
	require.NoError(t, err)
	var names []string
	for _, p := range order {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Base", "Mid", "App"}, names)

	node, ok := r.Graph().Node("Mid@1.0.0")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", node.Meta["version"])
}

func TestResolveEmitsHooks(t *testing.T) {
	stats := &observability.Stats{}
	stats.Register()
	t.Cleanup(observability.Reset)

	idx := newFakeIndex()
	idx.add(t, "Foo", "1.0.0", nil, archive(t, lib("Foo.dll")), "Bar 1.0.0")
	idx.add(t, "Bar", "1.0.0", nil, archive(t, lib("Bar.dll")))

	r, _ := newTestResolver(t, idx)
	_, err := r.Resolve(testContext(t), "Foo", "1.0.0")
	require.NoError(t, err)

	assert.EqualValues(t, 2, stats.Resolved.Load())
	assert.EqualValues(t, 0, stats.Failed.Load())
	// manifest + artifact per package
	assert.EqualValues(t, 4, stats.CacheMisses.Load())
	assert.Positive(t, stats.BytesCached.Load())
}

func TestPackageRefString(t *testing.T) {
	assert.Equal(t, "Foo@latest", PackageRef{Name: "Foo"}.String())
	assert.Equal(t, "Foo@1.0.0", PackageRef{Name: "Foo", Version: "1.0.0"}.String())
}
