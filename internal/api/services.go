package api

import "github.com/listenupapp/enrichd/internal/service"

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Enrichment *service.EnrichmentService
	Cache      *service.CacheService
	Library    *service.LibraryService
}
