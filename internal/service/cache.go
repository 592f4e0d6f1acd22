package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	domainerrors "github.com/listenupapp/enrichd/internal/errors"
	"github.com/listenupapp/enrichd/internal/store"
)

// DefaultPruneDays is the age used when a prune request does not set one.
const DefaultPruneDays = 90

// CacheService exposes read and maintenance operations on the shared cache.
type CacheService struct {
	cache  store.CacheStore
	logger *slog.Logger
}

// NewCacheService creates a new cache service.
func NewCacheService(cache store.CacheStore, logger *slog.Logger) *CacheService {
	return &CacheService{cache: cache, logger: logger}
}

// Stats summarizes the cache.
func (s *CacheService) Stats(ctx context.Context) (*domain.CacheStats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return nil, domainerrors.StorageUnavailable("cache stats", err)
	}
	return stats, nil
}

// Search finds cached records whose name or artist contains query.
func (s *CacheService) Search(ctx context.Context, query string, limit int) ([]domain.CacheRecord, error) {
	recs, err := s.cache.Search(ctx, query, limit)
	if err != nil {
		return nil, domainerrors.StorageUnavailable("cache search", err)
	}
	if recs == nil {
		recs = []domain.CacheRecord{}
	}
	return recs, nil
}

// Prune deletes rarely hit records older than days. Zero means
// DefaultPruneDays.
func (s *CacheService) Prune(ctx context.Context, days int) (int, error) {
	if days == 0 {
		days = DefaultPruneDays
	}
	if days < 0 {
		return 0, domainerrors.InvalidInput("days must be positive")
	}

	start := time.Now()
	n, err := s.cache.Prune(ctx, days)
	if err != nil {
		return 0, domainerrors.StorageUnavailable("cache prune", err)
	}

	s.logger.Info("cache prune completed",
		"deleted", n,
		"days", days,
		"duration", time.Since(start),
	)
	return n, nil
}
