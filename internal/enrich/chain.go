// Package enrich resolves missing album images and genres. Chain answers one
// lookup from the shared cache or, on a miss, from an ordered list of
// catalog sources; Orchestrator runs a chain over many records in bounded
// windows and reports progress to a ProgressSink.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/normalize"
	"github.com/listenupapp/enrichd/internal/store"
)

// DefaultSourceTimeout bounds a single TryResolve call.
const DefaultSourceTimeout = 15 * time.Second

// Source is one external catalog for one kind. TryResolve returns "" when
// the catalog has no value; an error means the catalog could not be asked.
// Implementations throttle themselves.
type Source interface {
	Name() string
	TryResolve(ctx context.Context, name, artist string) (string, error)
}

// Result is a resolved value and where it came from: domain.SourceCache or
// the name of the Source that produced it.
type Result struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// FromCache reports whether the value was served by the shared cache.
func (r *Result) FromCache() bool {
	return r != nil && r.Source == domain.SourceCache
}

// Resolver is what the Orchestrator needs from a Chain.
type Resolver interface {
	Resolve(ctx context.Context, kind domain.Kind, name, artist, dateHint string, force bool) (*Result, error)
}

// Chain is the cache-aside resolution chain.
type Chain struct {
	cache    store.CacheStore
	sources  map[domain.Kind][]Source
	observer Observer
	logger   *slog.Logger
	flights  singleflight.Group
	timeout  time.Duration
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithSourceTimeout sets the per-source call timeout. Non-positive disables it.
func WithSourceTimeout(d time.Duration) ChainOption {
	return func(c *Chain) { c.timeout = d }
}

// WithObserver reports lookups and source calls to o.
func WithObserver(o Observer) ChainOption {
	return func(c *Chain) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewChain creates a chain over cache with the given per-kind source order.
func NewChain(cache store.CacheStore, sources map[domain.Kind][]Source, log *slog.Logger, opts ...ChainOption) *Chain {
	if log == nil {
		log = logger.Nop()
	}
	c := &Chain{
		cache:    cache,
		sources:  sources,
		observer: NopObserver{},
		logger:   logger.Component(log, "chain"),
		timeout:  DefaultSourceTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the names of the sources consulted for kind, in order.
func (c *Chain) Sources(kind domain.Kind) []string {
	names := make([]string, 0, len(c.sources[kind]))
	for _, s := range c.sources[kind] {
		names = append(names, s.Name())
	}
	return names
}

// Resolve returns the value for kind, or nil when neither the cache nor any
// source has one.
//
// Unless force is set the cache is consulted first and a non-empty value
// there ends the chain. Sources are then tried in order; errors from a
// source are logged and treated as "no value". The first value found is
// written back to the cache tagged with the source name. A write-back
// failure is returned as STORAGE_UNAVAILABLE. An empty artist is
// INVALID_INPUT.
//
// Concurrent calls for the same kind, key and force share one pass over
// the sources. A caller whose ctx ends gets ctx.Err() without cutting the
// pass short for the others.
func (c *Chain) Resolve(ctx context.Context, kind domain.Kind, name, artist, dateHint string, force bool) (*Result, error) {
	if !kind.Valid() {
		return nil, domainerrors.InvalidInputf("unknown kind %q", kind)
	}
	name, artist = strings.TrimSpace(name), strings.TrimSpace(artist)
	if artist == "" {
		return nil, domainerrors.InvalidInput("artist is required")
	}

	key := normalize.CacheKey(name, artist, dateHint)

	if !force {
		if res := c.fromCache(ctx, kind, name, artist, dateHint, key); res != nil {
			return res, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The flight outlives any one caller: it runs detached from ctx, and
	// each caller stops waiting when its own ctx is done.
	flight := fmt.Sprintf("%s|%t|%s\x00%s\x00%s", kind, force, key.Name, key.Artist, key.Year)
	ch := c.flights.DoChan(flight, func() (any, error) {
		return c.fromSources(context.WithoutCancel(ctx), kind, name, artist, dateHint)
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.Shared {
		c.logger.Debug("joined in-flight resolution", "kind", kind, "key", key)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	res, _ := r.Val.(*Result)
	if res == nil {
		return nil, nil
	}
	cp := *res
	return &cp, nil
}

func (c *Chain) fromCache(ctx context.Context, kind domain.Kind, name, artist, dateHint string, key normalize.Key) *Result {
	rec, err := c.cache.Lookup(ctx, name, artist, dateHint)
	if err != nil {
		// A broken cache must not stop enrichment; fall through to sources.
		c.logger.Warn("cache lookup failed",
			"kind", kind,
			"key", key,
			"error", err,
		)
		c.observer.CacheLookup(kind, LookupError)
		return nil
	}
	if rec == nil {
		c.observer.CacheLookup(kind, LookupMiss)
		return nil
	}

	value, _ := rec.Value(kind)
	if value == "" {
		// The record exists for the other kind only.
		c.observer.CacheLookup(kind, LookupMiss)
		return nil
	}

	result := LookupHit
	if rec.YearKey != key.Year {
		result = LookupFallbackHit
	}
	c.observer.CacheLookup(kind, result)
	c.logger.Debug("cache hit",
		"kind", kind,
		"key", key,
		"year", rec.YearKey,
		"hits", rec.HitCount,
	)
	return &Result{Value: value, Source: domain.SourceCache}
}

func (c *Chain) fromSources(ctx context.Context, kind domain.Kind, name, artist, dateHint string) (*Result, error) {
	for _, src := range c.sources[kind] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, err := c.try(ctx, src, name, artist)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("source lookup failed",
				"source", src.Name(),
				"kind", kind,
				"name", name,
				"artist", artist,
				"error", err,
			)
			c.observer.SourceCall(src.Name(), kind, SourceError)
			continue
		}
		if value == "" {
			c.observer.SourceCall(src.Name(), kind, SourceEmpty)
			continue
		}
		c.observer.SourceCall(src.Name(), kind, SourceFound)

		fields := domain.FieldsFor(kind, value, src.Name(), name, artist)
		if err := c.cache.Upsert(ctx, name, artist, dateHint, fields); err != nil {
			return nil, domainerrors.StorageUnavailable("cache write-back", err)
		}

		c.logger.Debug("resolved from source",
			"source", src.Name(),
			"kind", kind,
			"name", name,
			"artist", artist,
		)
		return &Result{Value: value, Source: src.Name()}, nil
	}
	return nil, nil
}

// try calls one source under the per-source timeout. A timeout of the
// source call is reported as an error; cancellation of ctx itself is
// returned as is.
func (c *Chain) try(ctx context.Context, src Source, name, artist string) (string, error) {
	if c.timeout <= 0 {
		return src.TryResolve(ctx, name, artist)
	}
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, err := src.TryResolve(sctx, name, artist)
	if err != nil && ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
		return "", domainerrors.SourceUnavailable(src.Name(), fmt.Errorf("timed out after %s: %w", c.timeout, err))
	}
	return value, err
}
