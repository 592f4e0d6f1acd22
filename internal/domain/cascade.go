package domain

import (
	"context"
)

// cascadeChunk bounds how many dependents one PropagateValue call updates.
const cascadeChunk = 200

// DependentUpdater finds and updates the records that inherit a value from
// an enriched album.
type DependentUpdater interface {
	// FindDependents returns ids of records that should receive the value
	// resolved for item. Records that already have a value are excluded.
	FindDependents(ctx context.Context, item BatchItem, kind Kind) ([]string, error)
	// PropagateValue writes value to the given records.
	PropagateValue(ctx context.Context, ids []string, kind Kind, value string) error
}

// CascadeValue copies a value resolved for an album onto its tracks.
// Tracks never cascade. Returns how many records were updated.
func CascadeValue(ctx context.Context, updater DependentUpdater, item BatchItem, kind Kind, value string) (int, error) {
	if item.Kind != ItemAlbum || value == "" {
		return 0, nil
	}

	ids, err := updater.FindDependents(ctx, item, kind)
	if err != nil {
		return 0, err
	}

	updated := 0
	for start := 0; start < len(ids); start += cascadeChunk {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return updated, ctx.Err()
		default:
		}

		end := min(start+cascadeChunk, len(ids))
		if err := updater.PropagateValue(ctx, ids[start:end], kind, value); err != nil {
			return updated, err
		}
		updated += end - start
	}
	return updated, nil
}
