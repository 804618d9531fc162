package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats counts events. It implements every hook interface so a single value
// can be registered for all of them; the CLI uses it for its run summary.
type Stats struct {
	Resolved    atomic.Int64
	Failed      atomic.Int64
	Requests    atomic.Int64
	HTTPErrors  atomic.Int64
	CacheHits   atomic.Int64
	CacheMisses atomic.Int64
	BytesCached atomic.Int64
}

// Register installs s as the resolve, cache and HTTP hooks.
func (s *Stats) Register() {
	SetResolveHooks(s)
	SetCacheHooks(s)
	SetHTTPHooks(s)
}

func (s *Stats) OnResolveStart(context.Context, string, string) {}

func (s *Stats) OnResolveComplete(_ context.Context, _, _ string, _ int, _ time.Duration, err error) {
	if err != nil {
		s.Failed.Add(1)
		return
	}
	s.Resolved.Add(1)
}

func (s *Stats) OnCacheHit(context.Context, string)  { s.CacheHits.Add(1) }
func (s *Stats) OnCacheMiss(context.Context, string) { s.CacheMisses.Add(1) }

func (s *Stats) OnCacheSet(_ context.Context, _ string, size int) {
	s.BytesCached.Add(int64(size))
}

func (s *Stats) OnRequest(context.Context, string, string, string) { s.Requests.Add(1) }

func (s *Stats) OnResponse(context.Context, string, string, string, int, time.Duration) {}

func (s *Stats) OnError(context.Context, string, string, string, error) { s.HTTPErrors.Add(1) }

var (
	_ ResolveHooks = (*Stats)(nil)
	_ CacheHooks   = (*Stats)(nil)
	_ HTTPHooks    = (*Stats)(nil)
)
