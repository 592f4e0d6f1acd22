package providers

import (
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/api"
	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/metrics"
	"github.com/listenupapp/enrichd/internal/service"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	defer h.api.Close()
	return shutdownWithin(h.Server.Shutdown)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	enrichmentHandle := do.MustInvoke[*EnrichmentServiceHandle](i)
	collector := do.MustInvoke[*metrics.Collector](i)

	services := &api.Services{
		Enrichment: enrichmentHandle.EnrichmentService,
		Cache:      do.MustInvoke[*service.CacheService](i),
		Library:    do.MustInvoke[*service.LibraryService](i),
	}

	handler := api.NewServer(services, sseHandle.Manager, collector, api.Options{
		TriggerRate:  cfg.Server.TriggerRate,
		TriggerBurst: cfg.Server.TriggerBurst,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("Server running", "addr", srv.Addr)

	return &HTTPServerHandle{Server: srv, api: handler}, nil
}
