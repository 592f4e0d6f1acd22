package providers

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/sse"
	"github.com/listenupapp/enrichd/internal/store"
	"github.com/listenupapp/enrichd/internal/store/kv"
	"github.com/listenupapp/enrichd/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	return shutdownWithin(h.Manager.Shutdown)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// LibraryStoreHandle wraps the record and job store with shutdown capability.
type LibraryStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *LibraryStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideLibraryStore provides the record and job store.
func ProvideLibraryStore(i do.Injector) (*LibraryStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := sqlite.Open(cfg.Library.DBPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Library database initialized", "path", cfg.Library.DBPath)

	return &LibraryStoreHandle{Store: db}, nil
}

// CacheStoreHandle wraps the shared cache with shutdown capability.
type CacheStoreHandle struct {
	store.CacheStore
	closer io.Closer
}

// Shutdown implements do.Shutdownable.
func (h *CacheStoreHandle) Shutdown() error {
	return h.closer.Close()
}

// ProvideCacheStore provides the shared cache on the configured backend.
func ProvideCacheStore(i do.Injector) (*CacheStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Cache.Backend {
	case config.CacheBackendBadger:
		db, err := kv.Open(cfg.Cache.Path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Cache initialized", "backend", cfg.Cache.Backend, "path", cfg.Cache.Path)
		return &CacheStoreHandle{CacheStore: db, closer: db}, nil

	default:
		// The cache shares the library database when both point at one file.
		if cfg.Cache.Path == cfg.Library.DBPath {
			lib := do.MustInvoke[*LibraryStoreHandle](i)
			log.Info("Cache initialized", "backend", cfg.Cache.Backend, "path", cfg.Cache.Path, "shared", true)
			return &CacheStoreHandle{CacheStore: lib.Store, closer: nopCloser{}}, nil
		}

		db, err := sqlite.Open(cfg.Cache.Path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Info("Cache initialized", "backend", cfg.Cache.Backend, "path", cfg.Cache.Path)
		return &CacheStoreHandle{CacheStore: db, closer: db}, nil
	}
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
