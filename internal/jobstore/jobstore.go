// Package jobstore persists transcode job state in Postgres so that
// queued/running/succeeded/failed transitions are observable outside the
// orchestrator's process. This is an ambient addition beyond the minimum
// spec.md §4.D requires (which only needs the callback) — it does not
// change the callback's client-visible contract, and the orchestrator
// degrades gracefully to an in-memory-only status map when no store is
// configured.
package jobstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Status is a transcode job's lifecycle state, matching spec.md §4.D's
// state machine: queued -> running -> {succeeded, failed}.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is a durable record of one transcode job.
type Job struct {
	ID         uuid.UUID
	SourcePath string
	HLSDir     string
	UserID     string
	VideoID    string
	Status     Status
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store wraps a pgxpool.Pool with the hand-written queries the orchestrator
// needs. There is no code generator in play here (the teacher repo this was
// adapted from has no sqlc-generated Queries type either); queries are
// written directly against pgx.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-connected pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

//go:embed sql/migrations/*.sql
var embedMigrations embed.FS

// Migrate applies any pending goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	stdDB := stdlib.OpenDBFromPool(s.pool)
	defer stdDB.Close()

	if err := goose.UpContext(ctx, stdDB, "sql/migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("jobstore migrations applied")
	return nil
}

// Create inserts a new job in the queued state.
func (s *Store) Create(ctx context.Context, id uuid.UUID, sourcePath, hlsDir, userID, videoID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transcode_jobs (id, source_path, hls_dir, user_id, video_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, sourcePath, hlsDir, userID, videoID, StatusQueued)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// MarkRunning transitions a job to running. The row is written like any
// other status, for observability only: nothing reads it back to resume or
// re-dispatch a job, and a later run of the same job overwrites it.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusRunning, "")
}

// MarkSucceeded transitions a job to succeeded.
func (s *Store) MarkSucceeded(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusSucceeded, "")
}

// MarkFailed transitions a job to failed, recording the error message.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return s.setStatus(ctx, id, StatusFailed, errMsg)
}

func (s *Store) setStatus(ctx context.Context, id uuid.UUID, status Status, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE transcode_jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1
	`, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return nil
}

// Get fetches a job by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source_path, hls_dir, user_id, video_id, status, error, created_at, updated_at
		FROM transcode_jobs WHERE id = $1
	`, id)

	var j Job
	var status string
	if err := row.Scan(&j.ID, &j.SourcePath, &j.HLSDir, &j.UserID, &j.VideoID, &status, &j.Error, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	j.Status = Status(status)
	return &j, nil
}
