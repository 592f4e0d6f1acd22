package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/service"
)

// CachePruneJob runs periodic cache pruning.
type CachePruneJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *CachePruneJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideCachePruneJob provides the periodic cache prune job. A zero
// interval disables it.
func ProvideCachePruneJob(i do.Injector) (*CachePruneJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	cacheService := do.MustInvoke[*service.CacheService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &CachePruneJob{cancel: cancel, done: make(chan struct{})}

	if cfg.Cache.PruneInterval <= 0 {
		log.Info("Cache prune job disabled")
		close(job.done)
		return job, nil
	}

	go func() {
		defer close(job.done)

		ticker := time.NewTicker(cfg.Cache.PruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// CacheService logs the result.
				if _, err := cacheService.Prune(ctx, cfg.Cache.PruneDays); err != nil && ctx.Err() == nil {
					log.Warn("Cache prune failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Cache prune job started",
		"interval", cfg.Cache.PruneInterval,
		"days", cfg.Cache.PruneDays,
	)

	return job, nil
}
