package store

import (
	"context"

	"github.com/listenupapp/enrichd/internal/domain"
)

// Search limits.
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// CacheStore persists the shared cross-user enrichment cache.
// Implementations must make the hit increment and the merging upsert
// atomic with respect to concurrent callers on the same key.
type CacheStore interface {
	// Lookup returns the record for the normalized key, falling back to the
	// year-less key when the exact key is missing and the hint carried a
	// year. A hit increments HitCount and sets LastHitAt; the returned
	// record reflects the increment. A miss returns nil, nil.
	Lookup(ctx context.Context, name, artist, dateHint string) (*domain.CacheRecord, error)

	// Upsert creates the record for the exact key with HitCount 1, or merges
	// fields into it: each non-empty value replaces the stored one with its
	// source, empty values leave stored data alone, and LastHitAt is
	// refreshed.
	Upsert(ctx context.Context, name, artist, dateHint string, fields domain.CacheFields) error

	// Stats summarizes the cache.
	Stats(ctx context.Context) (*domain.CacheStats, error)

	// Prune deletes records not hit within olderThanDays that have fewer
	// than domain.PruneMinHits hits. Returns how many were deleted.
	Prune(ctx context.Context, olderThanDays int) (int, error)

	// Search returns records whose name or artist key contains the
	// normalized query, most-hit first.
	Search(ctx context.Context, query string, limit int) ([]domain.CacheRecord, error)

	Close() error
}

// ClampSearchLimit applies the default and the maximum to a search limit.
func ClampSearchLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultSearchLimit
	case limit > MaxSearchLimit:
		return MaxSearchLimit
	default:
		return limit
	}
}
