package store

import (
	"context"

	"github.com/listenupapp/enrichd/internal/domain"
)

// Library is the per-user album and track record store the batches read
// candidates from and write resolved values to.
type Library interface {
	domain.DependentUpdater

	// LoadCandidates enumerates the records in scope for kind. Albums come
	// before tracks. HasValue is set from the current field, treating "",
	// NULL and "undefined" as missing. When force is false only records
	// missing the field are returned.
	LoadCandidates(ctx context.Context, scope domain.Scope, kind domain.Kind, force bool) ([]domain.BatchItem, error)

	// ApplyResolvedValue writes value to the item's record.
	ApplyResolvedValue(ctx context.Context, item domain.BatchItem, kind domain.Kind, value string) error

	// CountMissing reports how many of the user's records lack each field.
	CountMissing(ctx context.Context, scope domain.Scope) (*domain.MissingCounts, error)

	UpsertAlbum(ctx context.Context, album *domain.Album) error
	UpsertTrack(ctx context.Context, track *domain.Track) error
	GetAlbum(ctx context.Context, id string) (*domain.Album, error)
	GetTrack(ctx context.Context, id string) (*domain.Track, error)
}

// JobStore persists asynchronous enrichment jobs.
type JobStore interface {
	SaveJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]*domain.Job, error)
}
