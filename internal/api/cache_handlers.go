package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/enrichd/internal/domain"
)

func (s *Server) registerCacheRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCacheStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/cache/stats",
		Summary:     "Cache statistics",
		Description: "Summarizes the shared enrichment cache",
		Tags:        []string{"Cache"},
	}, s.handleCacheStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchCache",
		Method:      http.MethodGet,
		Path:        "/api/v1/cache/search",
		Summary:     "Search cache",
		Description: "Finds cached albums whose name or artist contains the query",
		Tags:        []string{"Cache"},
	}, s.handleCacheSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "pruneCache",
		Method:      http.MethodPost,
		Path:        "/api/v1/cache/prune",
		Summary:     "Prune cache",
		Description: "Deletes rarely hit records that were not used for the given number of days",
		Tags:        []string{"Cache"},
	}, s.handleCachePrune)
}

// === DTOs ===

// CacheStatsOutput wraps the cache statistics for Huma.
type CacheStatsOutput struct {
	Body *domain.CacheStats
}

// CacheSearchInput contains parameters for searching the cache.
type CacheSearchInput struct {
	Query string `query:"q" doc:"Case-insensitive substring of the album or artist name"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum number of records"`
}

// CacheSearchResponse contains matching cache records.
type CacheSearchResponse struct {
	Records []domain.CacheRecord `json:"records" doc:"Matching records"`
}

// CacheSearchOutput wraps the search response for Huma.
type CacheSearchOutput struct {
	Body CacheSearchResponse
}

// CachePruneRequest is the request body for pruning the cache.
type CachePruneRequest struct {
	DaysOld int `json:"days_old,omitempty" minimum:"0" doc:"Minimum age in days (default 90)"`
}

// CachePruneInput wraps the prune request for Huma.
type CachePruneInput struct {
	Body CachePruneRequest
}

// CachePruneResponse reports how many records were deleted.
type CachePruneResponse struct {
	Deleted int `json:"deleted" doc:"Number of deleted records"`
}

// CachePruneOutput wraps the prune response for Huma.
type CachePruneOutput struct {
	Body CachePruneResponse
}

// === Handlers ===

func (s *Server) handleCacheStats(ctx context.Context, _ *struct{}) (*CacheStatsOutput, error) {
	stats, err := s.services.Cache.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &CacheStatsOutput{Body: stats}, nil
}

func (s *Server) handleCacheSearch(ctx context.Context, input *CacheSearchInput) (*CacheSearchOutput, error) {
	recs, err := s.services.Cache.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &CacheSearchOutput{Body: CacheSearchResponse{Records: recs}}, nil
}

func (s *Server) handleCachePrune(ctx context.Context, input *CachePruneInput) (*CachePruneOutput, error) {
	n, err := s.services.Cache.Prune(ctx, input.Body.DaysOld)
	if err != nil {
		return nil, err
	}
	return &CachePruneOutput{Body: CachePruneResponse{Deleted: n}}, nil
}
