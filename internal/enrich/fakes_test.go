package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/normalize"
	"github.com/listenupapp/enrichd/internal/store"
)

// memCache is an in-memory store.CacheStore with call counters.
type memCache struct {
	mu        sync.Mutex
	recs      map[normalize.Key]*domain.CacheRecord
	lookups   int
	upserts   int
	lookupErr error
	upsertErr error
}

var _ store.CacheStore = (*memCache)(nil)

func newMemCache() *memCache {
	return &memCache{recs: make(map[normalize.Key]*domain.CacheRecord)}
}

func (m *memCache) Lookup(_ context.Context, name, artist, dateHint string) (*domain.CacheRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	key := normalize.CacheKey(name, artist, dateHint)
	rec, ok := m.recs[key]
	if !ok && key.Year != "" {
		for k, r := range m.recs {
			if k.Name == key.Name && k.Artist == key.Artist && (rec == nil || r.HitCount > rec.HitCount) {
				rec = r
			}
		}
	}
	if rec == nil {
		return nil, nil
	}
	rec.HitCount++
	rec.LastHitAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (m *memCache) Upsert(_ context.Context, name, artist, dateHint string, f domain.CacheFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	key := normalize.CacheKey(name, artist, dateHint)
	rec, ok := m.recs[key]
	if !ok {
		rec = &domain.CacheRecord{NameKey: key.Name, ArtistKey: key.Artist, YearKey: key.Year, HitCount: 1}
		m.recs[key] = rec
	}
	rec.Merge(f, time.Now())
	return nil
}

// peek reads a record without counting a hit.
func (m *memCache) peek(name, artist, dateHint string) *domain.CacheRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[normalize.CacheKey(name, artist, dateHint)]
	if rec == nil {
		return nil
	}
	cp := *rec
	return &cp
}

func (m *memCache) Stats(context.Context) (*domain.CacheStats, error) { return &domain.CacheStats{}, nil }
func (m *memCache) Prune(context.Context, int) (int, error) { return 0, nil }
func (m *memCache) Search(context.Context, string, int) ([]domain.CacheRecord, error) {
	return nil, nil
}
func (m *memCache) Close() error { return nil }

// spySource returns a fixed value and counts calls.
type spySource struct {
	name  string
	value string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (s *spySource) Name() string { return s.name }

func (s *spySource) TryResolve(ctx context.Context, name, artist string) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.value, s.err
}

// funcResolver adapts a function to Resolver.
type funcResolver func(ctx context.Context, kind domain.Kind, name, artist, dateHint string, force bool) (*Result, error)

func (f funcResolver) Resolve(ctx context.Context, kind domain.Kind, name, artist, dateHint string, force bool) (*Result, error) {
	return f(ctx, kind, name, artist, dateHint, force)
}

// recordingSink keeps every event.
type recordingSink struct {
	mu       sync.Mutex
	started  int
	progress []domain.Progress
	summary  *domain.BatchSummary
	closed   bool
	order    []string
}

func (s *recordingSink) Start(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = total
	s.order = append(s.order, "start")
}

func (s *recordingSink) Progress(p domain.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
	if len(s.order) == 0 || s.order[len(s.order)-1] != "progress" {
		s.order = append(s.order, "progress")
	}
}

func (s *recordingSink) Complete(summary *domain.BatchSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
	s.order = append(s.order, "complete")
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.order = append(s.order, "close")
}

// countingObserver tallies observer calls.
type countingObserver struct {
	mu       sync.Mutex
	lookups  map[string]int
	calls    map[string]int
	outcomes map[domain.OutcomeStatus]int
	batches  int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		lookups:  map[string]int{},
		calls:    map[string]int{},
		outcomes: map[domain.OutcomeStatus]int{},
	}
}

func (o *countingObserver) CacheLookup(_ domain.Kind, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups[result]++
}

func (o *countingObserver) SourceCall(source string, _ domain.Kind, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[source+":"+result]++
}

func (o *countingObserver) ItemOutcome(_ domain.Kind, status domain.OutcomeStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[status]++
}

func (o *countingObserver) BatchFinished(domain.Kind, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches++
}

var errBoom = errors.New("boom")

func albums(names ...string) []domain.BatchItem {
	items := make([]domain.BatchItem, 0, len(names))
	for i, n := range names {
		name, artist, _ := strings.Cut(n, "|")
		items = append(items, domain.BatchItem{
			ID:     string(rune('a' + i)),
			Kind:   domain.ItemAlbum,
			Name:   name,
			Artist: artist,
		})
	}
	return items
}
