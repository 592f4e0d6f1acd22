package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChain(cache *memCache, image ...Source) *Chain {
	return NewChain(cache, map[domain.Kind][]Source{domain.KindImage: image}, nil)
}

func TestChain_CacheShortCircuit(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Upsert(context.Background(), "Abbey Road", "The Beatles", "1969",
		domain.FieldsFor(domain.KindImage, "http://img/cached.jpg", "itunes", "", "")))
	src := &spySource{name: "A", value: "http://img/a.jpg"}
	obs := newCountingObserver()
	chain := NewChain(cache, map[domain.Kind][]Source{domain.KindImage: {src}}, nil, WithObserver(obs))

	res, err := chain.Resolve(context.Background(), domain.KindImage, "abbey road", "the beatles", "1969", false)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "http://img/cached.jpg", res.Value)
	assert.True(t, res.FromCache())
	assert.Zero(t, src.calls.Load(), "no source is asked on a cache hit")
	assert.Equal(t, 1, obs.lookups[LookupHit])
}

func TestChain_FallbackHitIsReported(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Upsert(context.Background(), "Abbey Road", "The Beatles", "2019",
		domain.FieldsFor(domain.KindImage, "http://img/2019.jpg", "itunes", "", "")))
	obs := newCountingObserver()
	chain := NewChain(cache, nil, nil, WithObserver(obs))

	res, err := chain.Resolve(context.Background(), domain.KindImage, "Abbey Road", "The Beatles", "1969", false)
	require.NoError(t, err)
	assert.Equal(t, "http://img/2019.jpg", res.Value)
	assert.Equal(t, 1, obs.lookups[LookupFallbackHit])
}

func TestChain_CachedRecordForOtherKindIsAMiss(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Upsert(context.Background(), "Abbey Road", "The Beatles", "",
		domain.FieldsFor(domain.KindGenre, "rock", "musicbrainz", "", "")))
	src := &spySource{name: "A", value: "http://img/a.jpg"}

	res, err := newChain(cache, src).Resolve(context.Background(), domain.KindImage, "Abbey Road", "The Beatles", "", false)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Source)
	assert.Equal(t, int32(1), src.calls.Load())

	rec := cache.peek("Abbey Road", "The Beatles", "")
	assert.Equal(t, "rock", rec.GenreTags)
	assert.Equal(t, "http://img/a.jpg", rec.ImageURL)
}

func TestChain_FallbackOrderAndWriteBack(t *testing.T) {
	cache := newMemCache()
	a := &spySource{name: "A"}
	b := &spySource{name: "B", value: "http://img/b.jpg"}
	c := &spySource{name: "C", value: "http://img/c.jpg"}

	res, err := newChain(cache, a, b, c).Resolve(context.Background(), domain.KindImage, "Abbey Road", "The Beatles", "1969-09-26", false)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "http://img/b.jpg", res.Value)
	assert.Equal(t, "B", res.Source)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Zero(t, c.calls.Load())

	rec := cache.peek("Abbey Road", "The Beatles", "1969")
	require.NotNil(t, rec)
	assert.Equal(t, "http://img/b.jpg", rec.ImageURL)
	assert.Equal(t, "B", rec.ImageSource)
	assert.Equal(t, "Abbey Road", rec.DisplayName)
	assert.Equal(t, "The Beatles", rec.DisplayArtist)
}

func TestChain_SourceErrorsCountAsEmpty(t *testing.T) {
	cache := newMemCache()
	failing := &spySource{name: "A", err: domainerrors.SourceUnavailable("A", errBoom)}
	b := &spySource{name: "B", value: "v"}
	obs := newCountingObserver()
	chain := NewChain(cache, map[domain.Kind][]Source{domain.KindImage: {failing, b}}, nil, WithObserver(obs))

	res, err := chain.Resolve(context.Background(), domain.KindImage, "X", "Y", "", false)
	require.NoError(t, err)
	assert.Equal(t, "B", res.Source)
	assert.Equal(t, 1, obs.calls["A:error"])
	assert.Equal(t, 1, obs.calls["B:found"])
}

func TestChain_NotFound(t *testing.T) {
	cache := newMemCache()
	res, err := newChain(cache, &spySource{name: "A"}, &spySource{name: "B"}).
		Resolve(context.Background(), domain.KindImage, "X", "Y", "", false)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, cache.upserts, "nothing is cached for a miss")
}

func TestChain_ForceBypassesCacheAndOverwrites(t *testing.T) {
	cache := newMemCache()
	require.NoError(t, cache.Upsert(context.Background(), "X", "Y", "",
		domain.FieldsFor(domain.KindImage, "old", "itunes", "", "")))
	src := &spySource{name: "spotify", value: "new"}

	res, err := newChain(cache, src).Resolve(context.Background(), domain.KindImage, "X", "Y", "", true)
	require.NoError(t, err)
	assert.Equal(t, "spotify", res.Source)
	assert.Zero(t, cache.lookups, "force skips the cache read")

	rec := cache.peek("X", "Y", "")
	assert.Equal(t, "new", rec.ImageURL)
	assert.Equal(t, "spotify", rec.ImageSource)
}

func TestChain_LookupErrorIsAMiss(t *testing.T) {
	cache := newMemCache()
	cache.lookupErr = domainerrors.StorageUnavailable("lookup", errBoom)
	src := &spySource{name: "A", value: "v"}

	res, err := newChain(cache, src).Resolve(context.Background(), domain.KindImage, "X", "Y", "", false)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Source)
}

func TestChain_WriteBackFailureIsAnError(t *testing.T) {
	cache := newMemCache()
	cache.upsertErr = errBoom

	_, err := newChain(cache, &spySource{name: "A", value: "v"}).
		Resolve(context.Background(), domain.KindImage, "X", "Y", "", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrStorageUnavailable)
}

func TestChain_EmptyArtistIsInvalidInput(t *testing.T) {
	src := &spySource{name: "A", value: "v"}
	_, err := newChain(newMemCache(), src).Resolve(context.Background(), domain.KindImage, "X", "  ", "", false)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	assert.Zero(t, src.calls.Load())

	_, err = newChain(newMemCache(), src).Resolve(context.Background(), domain.Kind("lyrics"), "X", "Y", "", false)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}

func TestChain_SourceTimeout(t *testing.T) {
	slow := &spySource{name: "slow", value: "late", delay: time.Second}
	fast := &spySource{name: "fast", value: "v"}
	chain := NewChain(newMemCache(), map[domain.Kind][]Source{domain.KindImage: {slow, fast}}, nil,
		WithSourceTimeout(20*time.Millisecond))

	res, err := chain.Resolve(context.Background(), domain.KindImage, "X", "Y", "", false)
	require.NoError(t, err)
	assert.Equal(t, "fast", res.Source)
}

func TestChain_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &spySource{name: "A", value: "v"}

	_, err := newChain(newMemCache(), src).Resolve(ctx, domain.KindImage, "X", "Y", "", false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, src.calls.Load())
}

func TestChain_ConcurrentResolutionsShareOneFlight(t *testing.T) {
	cache := newMemCache()
	src := &spySource{name: "A", value: "v", delay: 50 * time.Millisecond}
	chain := newChain(cache, src)

	var wg sync.WaitGroup
	for range 5 {
		wg.Go(func() {
			res, err := chain.Resolve(context.Background(), domain.KindImage, "Abbey Road", "The Beatles", "", false)
			assert.NoError(t, err)
			if assert.NotNil(t, res) {
				assert.Equal(t, "v", res.Value)
			}
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, src.calls.Load(), int32(2), "concurrent misses join one flight")
}

func TestChain_Sources(t *testing.T) {
	chain := newChain(newMemCache(), &spySource{name: "spotify"}, &spySource{name: "itunes"})
	assert.Equal(t, []string{"spotify", "itunes"}, chain.Sources(domain.KindImage))
	assert.Empty(t, chain.Sources(domain.KindGenre))
}

func TestChain_CanceledCallerDoesNotFailSharedFlight(t *testing.T) {
	cache := newMemCache()
	src := &spySource{name: "A", value: "http://img/1.jpg", delay: 200 * time.Millisecond}
	chain := newChain(cache, src)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	var (
		wg   sync.WaitGroup
		resA *Result
		errA error
	)
	wg.Go(func() {
		resA, errA = chain.Resolve(ctxA, domain.KindImage, "Abbey Road", "The Beatles", "", false)
	})

	// Let A start the flight before B joins it.
	time.Sleep(20 * time.Millisecond)
	var (
		resB *Result
		errB error
	)
	wg.Go(func() {
		resB, errB = chain.Resolve(context.Background(), domain.KindImage, "Abbey Road", "The Beatles", "", false)
	})

	time.Sleep(20 * time.Millisecond)
	cancelA()
	wg.Wait()

	assert.ErrorIs(t, errA, context.Canceled)
	assert.Nil(t, resA)

	require.NoError(t, errB)
	require.NotNil(t, resB)
	assert.Equal(t, "http://img/1.jpg", resB.Value)
	assert.Equal(t, "A", resB.Source)
	assert.Equal(t, int32(1), src.calls.Load())

	rec := cache.peek("Abbey Road", "The Beatles", "")
	require.NotNil(t, rec)
	assert.Equal(t, "http://img/1.jpg", rec.ImageURL)
}

func TestChain_CanceledCallerAloneStillFillsCache(t *testing.T) {
	cache := newMemCache()
	src := &spySource{name: "A", value: "http://img/1.jpg", delay: 100 * time.Millisecond}
	chain := newChain(cache, src)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := chain.Resolve(ctx, domain.KindImage, "Abbey Road", "The Beatles", "", false)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, res)

	assert.Eventually(t, func() bool {
		rec := cache.peek("Abbey Road", "The Beatles", "")
		return rec != nil && rec.ImageURL == "http://img/1.jpg"
	}, time.Second, 10*time.Millisecond)
}
