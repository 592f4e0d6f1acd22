package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/normalize"
	"github.com/listenupapp/enrichd/internal/store"
)

// missingExpr matches a column holding no usable value. Older imports wrote
// the literal "undefined".
const missingExpr = `(%[1]s IS NULL OR TRIM(%[1]s) = '' OR LOWER(TRIM(%[1]s)) IN ('undefined', 'null'))`

func missing(column string) string {
	return fmt.Sprintf(missingExpr, column)
}

// fieldColumn maps a kind to the record column it fills.
func fieldColumn(kind domain.Kind) (string, error) {
	switch kind {
	case domain.KindImage:
		return "image_url", nil
	case domain.KindGenre:
		return "genres", nil
	default:
		return "", store.ErrInvalidInput.WithMessage("unknown kind " + string(kind))
	}
}

func tableFor(kind domain.ItemKind) (string, error) {
	switch kind {
	case domain.ItemAlbum:
		return "albums", nil
	case domain.ItemTrack:
		return "tracks", nil
	default:
		return "", store.ErrInvalidInput.WithMessage("unknown record kind " + string(kind))
	}
}

// LoadCandidates implements store.Library.
// With explicit scope IDs every listed record is returned and HasValue
// decides whether it is skipped. Without IDs, and without force, only
// records missing the field are returned.
func (s *Store) LoadCandidates(ctx context.Context, scope domain.Scope, kind domain.Kind, force bool) ([]domain.BatchItem, error) {
	column, err := fieldColumn(kind)
	if err != nil {
		return nil, err
	}
	onlyMissing := !force && len(scope.IDs) == 0

	var items []domain.BatchItem

	if scope.Target.IncludesAlbums() {
		q, args := candidateQuery("albums", "title, artist, '', release_date, "+column, column, scope, onlyMissing)
		albums, err := s.queryCandidates(ctx, domain.ItemAlbum, q, args...)
		if err != nil {
			return nil, err
		}
		items = append(items, albums...)
	}

	if scope.Target.IncludesTracks() {
		q, args := candidateQuery("tracks", "title, artist, album_name, release_date, "+column, column, scope, onlyMissing)
		tracks, err := s.queryCandidates(ctx, domain.ItemTrack, q, args...)
		if err != nil {
			return nil, err
		}
		items = append(items, tracks...)
	}

	return items, nil
}

func candidateQuery(table, columns, field string, scope domain.Scope, onlyMissing bool) (string, []any) {
	var b strings.Builder
	args := []any{scope.UserID}

	fmt.Fprintf(&b, "SELECT id, %s FROM %s WHERE user_id = ?", columns, table)
	if len(scope.IDs) > 0 {
		fmt.Fprintf(&b, " AND id IN (%s)", placeholders(len(scope.IDs)))
		for _, id := range scope.IDs {
			args = append(args, id)
		}
	}
	if onlyMissing {
		b.WriteString(" AND " + missing(field))
	}
	b.WriteString(" ORDER BY title COLLATE NOCASE, id")
	return b.String(), args
}

func (s *Store) queryCandidates(ctx context.Context, kind domain.ItemKind, query string, args ...any) ([]domain.BatchItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Unavailable("load candidates", err)
	}
	defer rows.Close()

	var items []domain.BatchItem
	for rows.Next() {
		var (
			item                       domain.BatchItem
			albumName, released, value sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Artist, &albumName, &released, &value); err != nil {
			return nil, store.Unavailable("load candidates", err)
		}
		item.Kind = kind
		item.AlbumName = albumName.String
		item.DateHint = released.String
		item.HasValue = !normalize.IsMissing(value.String)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("load candidates", err)
	}
	return items, nil
}

// ApplyResolvedValue implements store.Library.
func (s *Store) ApplyResolvedValue(ctx context.Context, item domain.BatchItem, kind domain.Kind, value string) error {
	column, err := fieldColumn(kind)
	if err != nil {
		return err
	}
	table, err := tableFor(item.Kind)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s = ?, updated_at = ? WHERE id = ?", table, column),
		value, formatTime(s.now()), item.ID)
	if err != nil {
		return store.Unavailable("apply value", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Unavailable("apply value", err)
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage(fmt.Sprintf("%s %s not found", item.Kind, item.ID))
	}
	return nil
}

// FindDependents implements domain.DependentUpdater: tracks of the same user
// whose album name and artist match the album case-insensitively and whose
// field is still missing.
func (s *Store) FindDependents(ctx context.Context, item domain.BatchItem, kind domain.Kind) ([]string, error) {
	if item.Kind != domain.ItemAlbum {
		return nil, nil
	}
	column, err := fieldColumn(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id FROM tracks t
		JOIN albums a ON a.user_id = t.user_id
		WHERE a.id = ?
			AND LOWER(TRIM(t.album_name)) = LOWER(TRIM(a.title))
			AND LOWER(TRIM(t.artist)) = LOWER(TRIM(a.artist))
			AND `+missing("t."+column)+`
		ORDER BY t.id`, item.ID)
	if err != nil {
		return nil, store.Unavailable("find dependents", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.Unavailable("find dependents", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("find dependents", err)
	}
	return ids, nil
}

// PropagateValue implements domain.DependentUpdater.
func (s *Store) PropagateValue(ctx context.Context, ids []string, kind domain.Kind, value string) error {
	if len(ids) == 0 {
		return nil
	}
	column, err := fieldColumn(kind)
	if err != nil {
		return err
	}

	args := make([]any, 0, len(ids)+2)
	args = append(args, value, formatTime(s.now()))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE tracks SET %s = ?, updated_at = ? WHERE id IN (%s)", column, placeholders(len(ids))),
		args...)
	if err != nil {
		return store.Unavailable("propagate value", err)
	}
	return nil
}

// CountMissing implements store.Library.
func (s *Store) CountMissing(ctx context.Context, scope domain.Scope) (*domain.MissingCounts, error) {
	var counts domain.MissingCounts

	for _, t := range []struct {
		table string
		dst   *domain.MissingByKind
		on    bool
	}{
		{"albums", &counts.Albums, scope.Target.IncludesAlbums()},
		{"tracks", &counts.Tracks, scope.Target.IncludesTracks()},
	} {
		if !t.on {
			continue
		}
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT
				COUNT(*),
				COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0)
			FROM %s WHERE user_id = ?`, missing("image_url"), missing("genres"), t.table),
			scope.UserID).Scan(&t.dst.Total, &t.dst.MissingImage, &t.dst.MissingGenre)
		if err != nil {
			return nil, store.Unavailable("count missing", err)
		}
	}
	return &counts, nil
}

// UpsertAlbum implements store.Library.
func (s *Store) UpsertAlbum(ctx context.Context, a *domain.Album) error {
	if a.ID == "" || a.UserID == "" {
		return store.ErrInvalidInput.WithMessage("album id and user id are required")
	}
	a.UpdatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (id, user_id, title, artist, release_date, image_url, genres, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			artist = excluded.artist,
			release_date = excluded.release_date,
			image_url = excluded.image_url,
			genres = excluded.genres,
			updated_at = excluded.updated_at`,
		a.ID, a.UserID, a.Title, a.Artist, nullString(a.ReleaseDate),
		nullString(a.ImageURL), nullString(a.Genres), formatTime(a.UpdatedAt))
	if err != nil {
		return store.Unavailable("upsert album", err)
	}
	return nil
}

// UpsertTrack implements store.Library.
func (s *Store) UpsertTrack(ctx context.Context, t *domain.Track) error {
	if t.ID == "" || t.UserID == "" {
		return store.ErrInvalidInput.WithMessage("track id and user id are required")
	}
	t.UpdatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (id, user_id, title, artist, album_name, release_date, image_url, genres, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			title = excluded.title,
			artist = excluded.artist,
			album_name = excluded.album_name,
			release_date = excluded.release_date,
			image_url = excluded.image_url,
			genres = excluded.genres,
			updated_at = excluded.updated_at`,
		t.ID, t.UserID, t.Title, t.Artist, nullString(t.AlbumName), nullString(t.ReleaseDate),
		nullString(t.ImageURL), nullString(t.Genres), formatTime(t.UpdatedAt))
	if err != nil {
		return store.Unavailable("upsert track", err)
	}
	return nil
}

// GetAlbum implements store.Library.
func (s *Store) GetAlbum(ctx context.Context, id string) (*domain.Album, error) {
	var (
		a                       domain.Album
		released, image, genres sql.NullString
		updatedAt               string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, artist, release_date, image_url, genres, updated_at
		FROM albums WHERE id = ?`, id).Scan(
		&a.ID, &a.UserID, &a.Title, &a.Artist, &released, &image, &genres, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("album not found")
	}
	if err != nil {
		return nil, store.Unavailable("get album", err)
	}
	a.ReleaseDate, a.ImageURL, a.Genres = released.String, image.String, genres.String
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &a, nil
}

// GetTrack implements store.Library.
func (s *Store) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	var (
		t                              domain.Track
		album, released, image, genres sql.NullString
		updatedAt                      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, artist, album_name, release_date, image_url, genres, updated_at
		FROM tracks WHERE id = ?`, id).Scan(
		&t.ID, &t.UserID, &t.Title, &t.Artist, &album, &released, &image, &genres, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("track not found")
	}
	if err != nil {
		return nil, store.Unavailable("get track", err)
	}
	t.AlbumName, t.ReleaseDate, t.ImageURL, t.Genres = album.String, released.String, image.String, genres.String
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}
