package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/enrich"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/service"
)

// EnrichmentServiceHandle wraps the enrichment service so background jobs
// are canceled and recorded on shutdown.
type EnrichmentServiceHandle struct {
	*service.EnrichmentService
}

// Shutdown implements do.Shutdownable.
func (h *EnrichmentServiceHandle) Shutdown() error {
	return shutdownWithin(h.EnrichmentService.Shutdown)
}

// ProvideEnrichmentService provides the enrichment service.
func ProvideEnrichmentService(i do.Injector) (*EnrichmentServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	libraryHandle := do.MustInvoke[*LibraryStoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	orchestrator := do.MustInvoke[*enrich.Orchestrator](i)

	svc := service.NewEnrichmentService(
		libraryHandle.Store,
		libraryHandle.Store,
		orchestrator,
		sseHandle.Manager,
		cfg.Batch.Concurrency,
		log.Logger,
	)

	return &EnrichmentServiceHandle{EnrichmentService: svc}, nil
}

// ProvideCacheService provides the cache administration service.
func ProvideCacheService(i do.Injector) (*service.CacheService, error) {
	cacheHandle := do.MustInvoke[*CacheStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCacheService(cacheHandle.CacheStore, log.Logger), nil
}

// ProvideLibraryService provides the record import service.
func ProvideLibraryService(i do.Injector) (*service.LibraryService, error) {
	libraryHandle := do.MustInvoke[*LibraryStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLibraryService(libraryHandle.Store, log.Logger), nil
}
