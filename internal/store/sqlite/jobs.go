package sqlite

import (
	"context"
	"database/sql"
	"encoding/json/v2"
	"errors"
	"fmt"

	"github.com/listenupapp/enrichd/internal/domain"
	"github.com/listenupapp/enrichd/internal/store"
)

// SaveJob implements store.JobStore. Summaries are stored as a JSON document.
func (s *Store) SaveJob(ctx context.Context, job *domain.Job) error {
	kinds, err := json.Marshal(job.Kinds)
	if err != nil {
		return fmt.Errorf("marshal kinds: %w", err)
	}
	var summaries sql.NullString
	if len(job.Summaries) > 0 {
		data, err := json.Marshal(job.Summaries)
		if err != nil {
			return fmt.Errorf("marshal summaries: %w", err)
		}
		summaries = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO enrich_jobs (id, user_id, target, kinds, force, status, error, summaries, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			summaries = excluded.summaries,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		job.ID, job.UserID, string(job.Target), string(kinds), boolInt(job.Force),
		string(job.Status), nullString(job.Error), summaries,
		formatTime(job.CreatedAt), nullTimeString(job.StartedAt), nullTimeString(job.FinishedAt))
	if err != nil {
		return store.Unavailable("save job", err)
	}
	return nil
}

const jobColumns = `id, user_id, target, kinds, force, status, error, summaries, created_at, started_at, finished_at`

// GetJob implements store.JobStore.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM enrich_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("job not found")
	}
	if err != nil {
		return nil, store.Unavailable("get job", err)
	}
	return job, nil
}

// ListJobs implements store.JobStore, newest first.
func (s *Store) ListJobs(ctx context.Context, userID string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM enrich_jobs WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, store.Unavailable("list jobs", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, store.Unavailable("list jobs", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Unavailable("list jobs", err)
	}
	return jobs, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                   domain.Job
		target, kinds, status string
		force                 int
		errMsg, summaries     sql.NullString
		createdAt             string
		startedAt, finishedAt sql.NullString
	)
	err := row.Scan(&job.ID, &job.UserID, &target, &kinds, &force, &status,
		&errMsg, &summaries, &createdAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	job.Target = domain.Target(target)
	job.Status = domain.JobStatus(status)
	job.Force = force == 1
	job.Error = errMsg.String

	if err := json.Unmarshal([]byte(kinds), &job.Kinds); err != nil {
		return nil, fmt.Errorf("unmarshal kinds: %w", err)
	}
	if summaries.Valid {
		if err := json.Unmarshal([]byte(summaries.String), &job.Summaries); err != nil {
			return nil, fmt.Errorf("unmarshal summaries: %w", err)
		}
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.StartedAt, err = parseNullableTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if job.FinishedAt, err = parseNullableTime(finishedAt); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	return &job, nil
}
