// Package di provides dependency injection configuration for the enrichment
// server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/di/providers"
	"github.com/listenupapp/enrichd/internal/enrich"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/metrics"
	"github.com/listenupapp/enrichd/internal/service"
	"github.com/listenupapp/enrichd/internal/source"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideLibraryStore)
	do.Provide(injector, providers.ProvideCacheStore)

	// Enrichment layer
	do.Provide(injector, providers.ProvideSourceClients)
	do.Provide(injector, providers.ProvideChain)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Business services
	do.Provide(injector, providers.ProvideEnrichmentService)
	do.Provide(injector, providers.ProvideCacheService)
	do.Provide(injector, providers.ProvideLibraryService)

	// Workers
	do.Provide(injector, providers.ProvideCachePruneJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Collector](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.LibraryStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.CacheStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*source.Clients](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*enrich.Chain](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*enrich.Orchestrator](injector)

	// Business services
	_ = do.MustInvoke[*providers.EnrichmentServiceHandle](injector)
	_ = do.MustInvoke[*service.CacheService](injector)
	_ = do.MustInvoke[*service.LibraryService](injector)

	// Workers
	_ = do.MustInvoke[*providers.CachePruneJob](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}

// Shutdown stops every service the container started, in reverse
// dependency order. It returns the container's report only when some
// service failed to stop.
func Shutdown(injector *do.RootScope) error {
	report := injector.Shutdown()
	if report == nil || report.Succeed {
		return nil
	}
	return report
}
