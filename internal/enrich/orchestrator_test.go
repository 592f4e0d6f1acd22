package enrich

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, ClampConcurrency(0))
	assert.Equal(t, DefaultConcurrency, ClampConcurrency(-3))
	assert.Equal(t, 1, ClampConcurrency(1))
	assert.Equal(t, 7, ClampConcurrency(7))
	assert.Equal(t, MaxConcurrency, ClampConcurrency(500))
}

func TestRun_AbbeyRoadScenario(t *testing.T) {
	cache := newMemCache()
	src := &spySource{name: "A", value: "http://img/1.jpg"}
	orch := NewOrchestrator(newChain(cache, src), nil, nil)

	items := []domain.BatchItem{{ID: "1", Kind: domain.ItemAlbum, Name: "Abbey Road", Artist: "The Beatles"}}
	summary := orch.Run(context.Background(), items, RunOptions{Kind: domain.KindImage})

	require.Len(t, summary.Outcomes, 1)
	out := summary.Outcomes[0]
	assert.Equal(t, "1", out.ID)
	assert.Equal(t, domain.StatusSuccess, out.Status)
	assert.Equal(t, "http://img/1.jpg", out.Value)
	assert.Equal(t, "A", out.Source)

	// Created exactly once by the write-back.
	rec := cache.peek("Abbey Road", "The Beatles", "")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.HitCount)

	hit, err := cache.Lookup(context.Background(), "Abbey Road", "The Beatles", "")
	require.NoError(t, err)
	assert.Equal(t, "http://img/1.jpg", hit.ImageURL)
}

func TestRun_Completeness(t *testing.T) {
	resolver := funcResolver(func(_ context.Context, _ domain.Kind, name, _, _ string, _ bool) (*Result, error) {
		switch name {
		case "found":
			return &Result{Value: "v", Source: "A"}, nil
		case "cached":
			return &Result{Value: "v", Source: domain.SourceCache}, nil
		case "missing":
			return nil, nil
		default:
			return nil, errBoom
		}
	})

	var items []domain.BatchItem
	for i, name := range []string{"found", "cached", "missing", "broken", "found", "has", "missing"} {
		items = append(items, domain.BatchItem{
			ID:       fmt.Sprint(i),
			Name:     name,
			Artist:   "X",
			HasValue: name == "has",
		})
	}

	sink := &recordingSink{}
	obs := newCountingObserver()
	summary := NewOrchestrator(resolver, obs, nil).Run(context.Background(), items,
		RunOptions{Kind: domain.KindGenre, Concurrency: 3, Sink: sink})

	require.Len(t, summary.Outcomes, len(items))
	for i, out := range summary.Outcomes {
		assert.Equal(t, items[i].ID, out.ID, "outcome %d is stored at its input index", i)
	}
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, summary.CacheHits)
	assert.Equal(t, 2, summary.NotFound)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, summary.Total, summary.Skipped+summary.Succeeded+summary.NotFound+summary.Failed)
	assert.Equal(t, domain.KindGenre, summary.Kind)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))

	assert.Equal(t, "boom", summary.Outcomes[3].Error)
	assert.Equal(t, domain.StatusSkipped, summary.Outcomes[5].Status)

	assert.Equal(t, 7, sink.started)
	assert.Len(t, sink.progress, 6, "skipped items emit no progress")
	for i, p := range sink.progress {
		assert.Equal(t, i+1, p.Current)
		assert.Equal(t, 7, p.Total)
	}
	assert.Same(t, summary, sink.summary)
	assert.True(t, sink.closed)
	assert.Equal(t, []string{"start", "progress", "complete", "close"}, sink.order)

	assert.Equal(t, 1, obs.batches)
	assert.Equal(t, 3, obs.outcomes[domain.StatusSuccess])
}

func TestRun_ForceResolvesItemsWithValues(t *testing.T) {
	var calls atomic.Int32
	resolver := funcResolver(func(_ context.Context, _ domain.Kind, _, _, _ string, force bool) (*Result, error) {
		calls.Add(1)
		assert.True(t, force)
		return &Result{Value: "v", Source: "A"}, nil
	})
	items := []domain.BatchItem{{ID: "1", Name: "n", Artist: "a", HasValue: true}}

	summary := NewOrchestrator(resolver, nil, nil).Run(context.Background(), items,
		RunOptions{Kind: domain.KindImage, Force: true})
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRun_InvalidInputIsSkipped(t *testing.T) {
	chain := newChain(newMemCache(), &spySource{name: "A", value: "v"})
	items := []domain.BatchItem{{ID: "1", Name: "Untitled", Artist: ""}}

	summary := NewOrchestrator(chain, nil, nil).Run(context.Background(), items, RunOptions{Kind: domain.KindImage})
	assert.Equal(t, 1, summary.Skipped)
	assert.Contains(t, summary.Outcomes[0].Error, "artist")
}

func TestRun_Isolation(t *testing.T) {
	resolver := funcResolver(func(_ context.Context, _ domain.Kind, name, _, _ string, _ bool) (*Result, error) {
		if name == "panic" {
			panic("bad record")
		}
		if name == "error" {
			return nil, errBoom
		}
		return &Result{Value: "v", Source: "A"}, nil
	})
	items := albums("ok|X", "panic|X", "error|X", "ok|X", "ok|X")

	summary := NewOrchestrator(resolver, nil, nil).Run(context.Background(), items,
		RunOptions{Kind: domain.KindImage, Concurrency: 2})

	require.Len(t, summary.Outcomes, 5)
	assert.Equal(t, domain.StatusError, summary.Outcomes[1].Status)
	assert.Contains(t, summary.Outcomes[1].Error, "panic: bad record")
	assert.Equal(t, domain.StatusError, summary.Outcomes[2].Status)
	assert.Equal(t, 3, summary.Succeeded, "items after the failures still run")
}

func TestRun_WindowsDrainBeforeTheNextStarts(t *testing.T) {
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	resolver := funcResolver(func(context.Context, domain.Kind, string, string, string, bool) (*Result, error) {
		mu.Lock()
		active++
		maxSeen = max(maxSeen, active)
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return nil, nil
	})
	items := albums("a|X", "b|X", "c|X", "d|X", "e|X", "f|X", "g|X")

	summary := NewOrchestrator(resolver, nil, nil).Run(context.Background(), items,
		RunOptions{Kind: domain.KindImage, Concurrency: 3})
	assert.Equal(t, 7, summary.NotFound)
	assert.LessOrEqual(t, maxSeen, 3)
}

func TestRun_AfterSuccessHook(t *testing.T) {
	resolver := funcResolver(func(_ context.Context, _ domain.Kind, name, _, _ string, _ bool) (*Result, error) {
		return &Result{Value: "v-" + name, Source: "A"}, nil
	})
	var applied sync.Map
	hook := func(_ context.Context, item domain.BatchItem, kind domain.Kind, res *Result) (int, error) {
		if item.Name == "fail" {
			return 0, domainerrors.StorageUnavailable("apply", errBoom)
		}
		applied.Store(item.ID, res.Value)
		return 2, nil
	}
	items := albums("one|X", "fail|X")

	summary := NewOrchestrator(resolver, nil, nil).Run(context.Background(), items,
		RunOptions{Kind: domain.KindImage, AfterSuccess: hook})

	assert.Equal(t, domain.StatusSuccess, summary.Outcomes[0].Status)
	assert.Equal(t, 2, summary.Outcomes[0].Cascaded)
	assert.Equal(t, domain.StatusError, summary.Outcomes[1].Status)
	assert.Equal(t, 2, summary.Cascaded)

	v, ok := applied.Load("a")
	require.True(t, ok)
	assert.Equal(t, "v-one", v)
}

func TestRun_TracksResolveThroughTheirAlbum(t *testing.T) {
	var gotName string
	resolver := funcResolver(func(_ context.Context, _ domain.Kind, name, _, _ string, _ bool) (*Result, error) {
		gotName = name
		return nil, nil
	})
	items := []domain.BatchItem{{ID: "t1", Kind: domain.ItemTrack, Name: "Come Together", AlbumName: "Abbey Road", Artist: "The Beatles"}}

	NewOrchestrator(resolver, nil, nil).Run(context.Background(), items, RunOptions{Kind: domain.KindImage})
	assert.Equal(t, "Abbey Road", gotName)
}

func TestRun_CanceledBetweenWindows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := funcResolver(func(context.Context, domain.Kind, string, string, string, bool) (*Result, error) {
		cancel()
		return &Result{Value: "v", Source: "A"}, nil
	})
	items := albums("a|X", "b|X", "c|X", "d|X", "e|X")
	sink := &recordingSink{}

	summary := NewOrchestrator(resolver, nil, nil).Run(ctx, items,
		RunOptions{Kind: domain.KindImage, Concurrency: 2, Sink: sink})

	require.Len(t, summary.Outcomes, 5)
	assert.Equal(t, 2, summary.Succeeded, "the running window finishes")
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, "canceled", summary.Outcomes[4].Error)
	assert.Len(t, sink.progress, 5)
	assert.True(t, sink.closed)
}

func TestRun_EmptyInput(t *testing.T) {
	sink := &recordingSink{}
	summary := NewOrchestrator(funcResolver(nil), nil, nil).Run(context.Background(), nil,
		RunOptions{Kind: domain.KindImage, Sink: sink})

	assert.Zero(t, summary.Total)
	assert.Empty(t, summary.Outcomes)
	assert.Equal(t, []string{"start", "complete", "close"}, sink.order)
}
