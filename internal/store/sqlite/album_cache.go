package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/normalize"
	"github.com/listenupapp/enrichd/internal/store"
)

const cacheColumns = `name_key, artist_key, year_key, display_name, display_artist,
	image_url, image_source, genre_tags, genre_source, hit_count, last_hit_at, created_at`

// Lookup implements store.CacheStore.
// The hit increment and the read happen in one UPDATE ... RETURNING
// statement, so concurrent hits on one key never lose a count.
func (s *Store) Lookup(ctx context.Context, name, artist, dateHint string) (*domain.CacheRecord, error) {
	key := normalize.CacheKey(name, artist, dateHint)
	now := formatTime(s.now())

	rec, err := scanCacheRecord(s.db.QueryRowContext(ctx, `
		UPDATE album_cache SET hit_count = hit_count + 1, last_hit_at = ?
		WHERE name_key = ? AND artist_key = ? AND year_key = ?
		RETURNING `+cacheColumns,
		now, key.Name, key.Artist, key.Year))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, store.Unavailable("cache lookup", err)
	}

	if key.Year == "" {
		return nil, nil
	}

	// Year-less fallback: the most-hit record for the pair, most recently
	// hit on ties.
	rec, err = scanCacheRecord(s.db.QueryRowContext(ctx, `
		UPDATE album_cache SET hit_count = hit_count + 1, last_hit_at = ?
		WHERE rowid = (
			SELECT rowid FROM album_cache
			WHERE name_key = ? AND artist_key = ?
			ORDER BY hit_count DESC, last_hit_at DESC
			LIMIT 1
		)
		RETURNING `+cacheColumns,
		now, key.Name, key.Artist))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.Unavailable("cache fallback lookup", err)
	}
	return rec, nil
}

// Upsert implements store.CacheStore as a single INSERT ... ON CONFLICT
// statement. A value column is replaced whenever the incoming value is
// non-empty, and its source tag moves with it.
func (s *Store) Upsert(ctx context.Context, name, artist, dateHint string, f domain.CacheFields) error {
	key := normalize.CacheKey(name, artist, dateHint)
	if key.IsZero() {
		return store.ErrInvalidInput.WithMessage("cache key is empty")
	}
	now := formatTime(s.now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO album_cache (
			name_key, artist_key, year_key, display_name, display_artist,
			image_url, image_source, genre_tags, genre_source,
			hit_count, last_hit_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(name_key, artist_key, year_key) DO UPDATE SET
			display_name = CASE WHEN album_cache.display_name = '' THEN excluded.display_name ELSE album_cache.display_name END,
			display_artist = CASE WHEN album_cache.display_artist = '' THEN excluded.display_artist ELSE album_cache.display_artist END,
			image_url = COALESCE(excluded.image_url, album_cache.image_url),
			image_source = CASE WHEN excluded.image_url IS NOT NULL
				THEN excluded.image_source ELSE album_cache.image_source END,
			genre_tags = COALESCE(excluded.genre_tags, album_cache.genre_tags),
			genre_source = CASE WHEN excluded.genre_tags IS NOT NULL
				THEN excluded.genre_source ELSE album_cache.genre_source END,
			last_hit_at = excluded.last_hit_at`,
		key.Name, key.Artist, key.Year, f.DisplayName, f.DisplayArtist,
		nullString(f.ImageURL), nullString(sourceFor(f.ImageURL, f.ImageSource)),
		nullString(f.GenreTags), nullString(sourceFor(f.GenreTags, f.GenreSource)),
		now, now)
	if err != nil {
		return store.Unavailable("cache upsert", err)
	}
	return nil
}

// Stats implements store.CacheStore.
func (s *Store) Stats(ctx context.Context) (*domain.CacheStats, error) {
	var stats domain.CacheStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(image_url),
			COUNT(genre_tags),
			COALESCE(SUM(CASE WHEN image_url IS NOT NULL AND genre_tags IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(hit_count), 0)
		FROM album_cache`).Scan(
		&stats.Total, &stats.WithImage, &stats.WithGenre, &stats.WithBoth, &stats.TotalHits)
	if err != nil {
		return nil, store.Unavailable("cache stats", err)
	}

	top, err := s.queryCache(ctx, `
		SELECT `+cacheColumns+` FROM album_cache
		ORDER BY hit_count DESC, last_hit_at DESC
		LIMIT ?`, domain.StatsTopN)
	if err != nil {
		return nil, store.Unavailable("cache stats", err)
	}
	stats.Top = top
	return &stats, nil
}

// Prune implements store.CacheStore.
func (s *Store) Prune(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		return 0, store.ErrInvalidInput.WithMessage("days must be positive")
	}
	cutoff := s.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM album_cache WHERE last_hit_at < ? AND hit_count < ?`,
		formatTime(cutoff), domain.PruneMinHits)
	if err != nil {
		return 0, store.Unavailable("cache prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.Unavailable("cache prune", err)
	}

	s.logger.Info("cache pruned",
		"deleted", n,
		"older_than_days", olderThanDays)
	return int(n), nil
}

// Search implements store.CacheStore. An empty query lists the most-hit
// records.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.CacheRecord, error) {
	limit = store.ClampSearchLimit(limit)
	q := normalize.Text(query)

	var (
		recs []domain.CacheRecord
		err  error
	)
	if q == "" {
		recs, err = s.queryCache(ctx, `
			SELECT `+cacheColumns+` FROM album_cache
			ORDER BY hit_count DESC, last_hit_at DESC
			LIMIT ?`, limit)
	} else {
		recs, err = s.queryCache(ctx, `
			SELECT `+cacheColumns+` FROM album_cache
			WHERE instr(name_key, ?) > 0 OR instr(artist_key, ?) > 0
			ORDER BY hit_count DESC, last_hit_at DESC
			LIMIT ?`, q, q, limit)
	}
	if err != nil {
		return nil, store.Unavailable("cache search", err)
	}
	return recs, nil
}

func (s *Store) queryCache(ctx context.Context, query string, args ...any) ([]domain.CacheRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.CacheRecord
	for rows.Next() {
		rec, err := scanCacheRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCacheRecord(row rowScanner) (*domain.CacheRecord, error) {
	var (
		rec                    domain.CacheRecord
		imageURL, imageSource  sql.NullString
		genreTags, genreSource sql.NullString
		lastHitAt, createdAt   string
	)
	err := row.Scan(
		&rec.NameKey, &rec.ArtistKey, &rec.YearKey, &rec.DisplayName, &rec.DisplayArtist,
		&imageURL, &imageSource, &genreTags, &genreSource,
		&rec.HitCount, &lastHitAt, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.ImageURL = imageURL.String
	rec.ImageSource = imageSource.String
	rec.GenreTags = genreTags.String
	rec.GenreSource = genreSource.String

	if rec.LastHitAt, err = parseTime(lastHitAt); err != nil {
		return nil, fmt.Errorf("parse last_hit_at: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &rec, nil
}

// sourceFor drops a source tag that arrives without its value.
func sourceFor(value, source string) string {
	if value == "" {
		return ""
	}
	return source
}
