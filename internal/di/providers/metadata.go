package providers

import (
	"errors"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/enrichd/internal/config"
	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/enrich"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/metadata/itunes"
	"github.com/listenupapp/enrichd/internal/metadata/musicbrainz"
	"github.com/listenupapp/enrichd/internal/metadata/spotify"
	"github.com/listenupapp/enrichd/internal/metrics"
	"github.com/listenupapp/enrichd/internal/source"
)

// ProvideSourceClients provides the catalog clients. They share one limiter
// so each catalog's spacing holds across kinds and batches.
func ProvideSourceClients(i do.Injector) (*source.Clients, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	limiter := source.NewLimiter(cfg.Sources.DefaultInterval)

	clients := &source.Clients{
		ITunes: itunes.NewClient(log.Logger, itunes.WithLimiter(limiter)),
		MusicBrainz: musicbrainz.New(musicbrainz.Config{
			AppName:    cfg.Sources.MusicBrainz.AppName,
			AppVersion: cfg.Sources.MusicBrainz.AppVersion,
			Contact:    cfg.Sources.MusicBrainz.Contact,
		}, log.Logger, musicbrainz.WithLimiter(limiter)),
	}

	sp, err := spotify.New(spotify.Config{
		ClientID:     cfg.Sources.Spotify.ClientID,
		ClientSecret: cfg.Sources.Spotify.ClientSecret,
	}, log.Logger, spotify.WithLimiter(limiter))
	switch {
	case err == nil:
		clients.Spotify = sp
	case errors.Is(err, spotify.ErrNotConfigured):
		log.Info("Spotify credentials not set, Spotify sources disabled")
	default:
		return nil, err
	}

	log.Info("Catalog clients initialized",
		"spotify", clients.Spotify != nil,
		"default_interval", cfg.Sources.DefaultInterval,
	)

	return clients, nil
}

// ProvideMetrics provides the Prometheus collector.
func ProvideMetrics(i do.Injector) (*metrics.Collector, error) {
	return metrics.New(), nil
}

// ProvideChain provides the resolution chain over the shared cache and the
// configured source orders.
func ProvideChain(i do.Injector) (*enrich.Chain, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clients := do.MustInvoke[*source.Clients](i)
	cacheHandle := do.MustInvoke[*CacheStoreHandle](i)
	collector := do.MustInvoke[*metrics.Collector](i)

	orders := map[domain.Kind][]string{
		domain.KindImage: cfg.Sources.ImageOrder,
		domain.KindGenre: cfg.Sources.GenreOrder,
	}

	sources := make(map[domain.Kind][]enrich.Source, len(orders))
	for kind, order := range orders {
		adapters, err := clients.Build(kind, order)
		if err != nil {
			return nil, fmt.Errorf("%s sources: %w", kind, err)
		}
		for _, a := range adapters {
			sources[kind] = append(sources[kind], a)
		}
	}

	chain := enrich.NewChain(cacheHandle.CacheStore, sources, log.Logger,
		enrich.WithSourceTimeout(cfg.Batch.SourceTimeout),
		enrich.WithObserver(collector),
	)

	log.Info("Resolution chain ready",
		"image_sources", chain.Sources(domain.KindImage),
		"genre_sources", chain.Sources(domain.KindGenre),
	)

	return chain, nil
}

// ProvideOrchestrator provides the batch orchestrator.
func ProvideOrchestrator(i do.Injector) (*enrich.Orchestrator, error) {
	log := do.MustInvoke[*logger.Logger](i)
	chain := do.MustInvoke[*enrich.Chain](i)
	collector := do.MustInvoke[*metrics.Collector](i)

	return enrich.NewOrchestrator(chain, collector, log.Logger), nil
}
