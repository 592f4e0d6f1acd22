// Package kv implements the shared enrichment cache on Badger, an embedded
// key-value store. It is an alternative to the SQLite backend for
// deployments that only need the cache (CACHE_BACKEND=badger).
//
// Records are JSON documents under keys of the form
//
//	cache:rec:<name>\x00<artist>\x00<year>
//
// so every year variant of one (name, artist) pair shares a key prefix and
// the year-less fallback is a prefix scan. Every mutation runs in a Badger
// read-write transaction and is retried on ErrConflict, which serializes
// concurrent hit increments and merges on one key.
package kv

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/logger"
	"github.com/listenupapp/enrichd/internal/normalize"
	"github.com/listenupapp/enrichd/internal/store"
)

const (
	recordPrefix = "cache:rec:"

	// maxConflictRetries bounds optimistic retries of one mutation.
	maxConflictRetries = 64

	// pruneChunk bounds deletes per transaction.
	pruneChunk = 500
)

// Store is a Badger-backed store.CacheStore.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) a Badger database in dir.
func Open(dir string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // Ensure writes are synced to disk to prevent corruption on crashes
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup
	return open(opts, log)
}

// OpenInMemory opens a Badger database that lives only in memory.
func OpenInMemory(log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, log)
}

func open(opts badger.Options, log *slog.Logger) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	log = logger.Component(log, "kv")
	log.Info("Badger cache opened", "path", opts.Dir, "in_memory", opts.InMemory)

	return &Store{
		db:     db,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func recordKey(k normalize.Key) []byte {
	return fmt.Appendf(nil, "%s%s\x00%s\x00%s", recordPrefix, k.Name, k.Artist, k.Year)
}

func pairPrefix(k normalize.Key) []byte {
	return fmt.Appendf(nil, "%s%s\x00%s\x00", recordPrefix, k.Name, k.Artist)
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
	}
}

func getRecord(txn *badger.Txn, key []byte) (*domain.CacheRecord, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var rec domain.CacheRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func putRecord(txn *badger.Txn, rec *domain.CacheRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cache record: %w", err)
	}
	key := recordKey(normalize.Key{Name: rec.NameKey, Artist: rec.ArtistKey, Year: rec.YearKey})
	return txn.Set(key, data)
}

// better reports whether a should be preferred over b as a fallback match.
func better(a, b *domain.CacheRecord) bool {
	if a.HitCount != b.HitCount {
		return a.HitCount > b.HitCount
	}
	return a.LastHitAt.After(b.LastHitAt)
}

// Lookup implements store.CacheStore.
func (s *Store) Lookup(ctx context.Context, name, artist, dateHint string) (*domain.CacheRecord, error) {
	key := normalize.CacheKey(name, artist, dateHint)

	var hit *domain.CacheRecord
	err := s.update(ctx, func(txn *badger.Txn) error {
		hit = nil

		rec, err := getRecord(txn, recordKey(key))
		switch {
		case err == nil:
		case errors.Is(err, badger.ErrKeyNotFound):
			if key.Year == "" {
				return nil
			}
			if rec, err = bestForPair(txn, key); err != nil || rec == nil {
				return err
			}
		default:
			return err
		}

		rec.HitCount++
		rec.LastHitAt = s.now()
		if err := putRecord(txn, rec); err != nil {
			return err
		}
		hit = rec
		return nil
	})
	if err != nil {
		return nil, store.Unavailable("cache lookup", err)
	}
	return hit, nil
}

func bestForPair(txn *badger.Txn, key normalize.Key) (*domain.CacheRecord, error) {
	prefix := pairPrefix(key)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var best *domain.CacheRecord
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var rec domain.CacheRecord
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
		if err != nil {
			return nil, err
		}
		if best == nil || better(&rec, best) {
			r := rec
			best = &r
		}
	}
	return best, nil
}

// Upsert implements store.CacheStore.
func (s *Store) Upsert(ctx context.Context, name, artist, dateHint string, f domain.CacheFields) error {
	key := normalize.CacheKey(name, artist, dateHint)
	if key.IsZero() {
		return store.ErrInvalidInput.WithMessage("cache key is empty")
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		now := s.now()
		rec, err := getRecord(txn, recordKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			rec = &domain.CacheRecord{
				NameKey:   key.Name,
				ArtistKey: key.Artist,
				YearKey:   key.Year,
				HitCount:  1,
				CreatedAt: now,
			}
		} else if err != nil {
			return err
		}

		rec.Merge(f, now)
		return putRecord(txn, rec)
	})
	if err != nil {
		return store.Unavailable("cache upsert", err)
	}
	return nil
}

// scan calls fn for every record.
func (s *Store) scan(ctx context.Context, fn func(rec *domain.CacheRecord)) error {
	prefix := []byte(recordPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec domain.CacheRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return err
			}
			fn(&rec)
		}
		return nil
	})
}

// Stats implements store.CacheStore with a full scan.
func (s *Store) Stats(ctx context.Context) (*domain.CacheStats, error) {
	var (
		stats domain.CacheStats
		all   []domain.CacheRecord
	)
	err := s.scan(ctx, func(rec *domain.CacheRecord) {
		stats.Total++
		if rec.ImageURL != "" {
			stats.WithImage++
		}
		if rec.GenreTags != "" {
			stats.WithGenre++
		}
		if rec.ImageURL != "" && rec.GenreTags != "" {
			stats.WithBoth++
		}
		stats.TotalHits += int64(rec.HitCount)
		all = append(all, *rec)
	})
	if err != nil {
		return nil, store.Unavailable("cache stats", err)
	}

	sortByHits(all)
	stats.Top = all[:min(len(all), domain.StatsTopN)]
	return &stats, nil
}

// Search implements store.CacheStore with a full scan.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.CacheRecord, error) {
	limit = store.ClampSearchLimit(limit)
	q := normalize.Text(query)

	var matches []domain.CacheRecord
	err := s.scan(ctx, func(rec *domain.CacheRecord) {
		if q == "" || strings.Contains(rec.NameKey, q) || strings.Contains(rec.ArtistKey, q) {
			matches = append(matches, *rec)
		}
	})
	if err != nil {
		return nil, store.Unavailable("cache search", err)
	}

	sortByHits(matches)
	return matches[:min(len(matches), limit)], nil
}

// Prune implements store.CacheStore. Candidates are re-checked inside the
// deleting transaction so a record hit after the scan survives.
func (s *Store) Prune(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		return 0, store.ErrInvalidInput.WithMessage("days must be positive")
	}
	cutoff := s.now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	prunable := func(rec *domain.CacheRecord) bool {
		return rec.LastHitAt.Before(cutoff) && rec.HitCount < domain.PruneMinHits
	}

	var keys [][]byte
	err := s.scan(ctx, func(rec *domain.CacheRecord) {
		if prunable(rec) {
			keys = append(keys, recordKey(normalize.Key{Name: rec.NameKey, Artist: rec.ArtistKey, Year: rec.YearKey}))
		}
	})
	if err != nil {
		return 0, store.Unavailable("cache prune", err)
	}

	deleted := 0
	for start := 0; start < len(keys); start += pruneChunk {
		chunk := keys[start:min(start+pruneChunk, len(keys))]
		n := 0
		err := s.update(ctx, func(txn *badger.Txn) error {
			n = 0
			for _, key := range chunk {
				rec, err := getRecord(txn, key)
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if !prunable(rec) {
					continue
				}
				if err := txn.Delete(key); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return deleted, store.Unavailable("cache prune", err)
		}
		deleted += n
	}

	s.logger.Info("cache pruned",
		"deleted", deleted,
		"older_than_days", olderThanDays)
	return deleted, nil
}

func sortByHits(recs []domain.CacheRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return better(&recs[i], &recs[j])
	})
}
