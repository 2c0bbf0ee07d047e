package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"clipper/internal/config"
	"clipper/internal/jobspec"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the queue database location.
func (s *Store) Path() string {
	return s.path
}

// NewJob inserts a queued job together with its pending clip rows. The
// insert is the best-effort counter write paired with the quota gate's
// read-only check.
func (s *Store) NewJob(ctx context.Context, ownerID, planCode, sourceRef, optionsJSON string, maxRetries int, segments []jobspec.Segment) (*Job, error) {
	if len(segments) == 0 {
		return nil, errors.New("at least one segment is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO jobs (
            owner_id, plan_code, source_ref, options_json, status,
            progress_percent, max_retries, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ownerID,
		planCode,
		sourceRef,
		nullableString(optionsJSON),
		StatusQueued,
		0.0,
		maxRetries,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for seq, segment := range segments {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO clips (
                job_id, seq, start_sec, end_sec, title, platform, ai_score,
                status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id,
			seq,
			segment.StartSec,
			segment.EndSec,
			nullableString(segment.Title),
			segment.Platform,
			segment.AIScore,
			ClipPending,
			timestamp,
			timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("insert clip %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by identifier. Returns (nil, nil) when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET owner_id = ?, plan_code = ?, source_ref = ?, options_json = ?,
             status = ?, progress_percent = ?, progress_message = ?,
             error_summary = ?, retry_count = ?, max_retries = ?,
             cancel_requested = ?, last_heartbeat = ?, updated_at = ?, completed_at = ?
         WHERE id = ?`,
		job.OwnerID,
		job.PlanCode,
		job.SourceRef,
		nullableString(job.OptionsJSON),
		job.Status,
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorSummary),
		job.RetryCount,
		job.MaxRetries,
		boolToInt(job.CancelRequested),
		nullableTime(job.LastHeartbeat),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Transition moves a job to the next status, enforcing the forward-only
// state machine, and persists the change.
func (s *Store) Transition(ctx context.Context, job *Job, next Status) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("illegal transition %s -> %s for job %d", job.Status, next, job.ID)
	}
	job.Status = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		job.CompletedAt = &now
		job.LastHeartbeat = nil
	}
	return s.Update(ctx, job)
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextForStatuses returns the oldest job matching any of the provided
// statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// RequestCancel sets the cooperative cancel flag on a cancellable job.
// A queued job is settled to cancelled immediately; a processing job keeps
// running until the orchestrator observes the flag between segments.
func (s *Store) RequestCancel(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	if !job.CanCancel() {
		return nil, fmt.Errorf("job %d is %s and cannot be cancelled", id, job.Status)
	}

	job.CancelRequested = true
	if job.Status == StatusQueued {
		if err := s.Transition(ctx, job, StatusCancelled); err != nil {
			return nil, err
		}
		return job, nil
	}
	if err := s.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// CancelRequested reports whether a cancel has been requested for the job.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// Retry moves a failed job back to queued when the retry budget allows it:
// the retry counter is incremented, errors are cleared, and every clip row
// is reset to pending with its outputs discarded.
func (s *Store) Retry(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %d not found", id)
	}
	if job.Status != StatusFailed {
		return nil, fmt.Errorf("job %d is %s; only failed jobs can be retried", id, job.Status)
	}
	if job.RetryCount >= job.MaxRetries {
		return nil, fmt.Errorf("job %d exhausted its %d retries", id, job.MaxRetries)
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin retry tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, retry_count = retry_count + 1, progress_percent = 0,
             progress_message = 'Retry requested', error_summary = NULL,
             cancel_requested = 0, last_heartbeat = NULL, completed_at = NULL,
             updated_at = ?
         WHERE id = ?`,
		StatusQueued,
		timestamp,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("retry job: %w", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`UPDATE clips
         SET status = ?, output_url = NULL, thumbnail_url = NULL,
             error_message = NULL, duration_sec = 0, width = 0, height = 0,
             file_size = 0, updated_at = ?
         WHERE job_id = ?`,
		ClipPending,
		timestamp,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("reset clips: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit retry: %w", err)
	}

	return s.GetJob(ctx, id)
}

// UpdateHeartbeat stamps the last heartbeat for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns processing jobs with expired heartbeats to
// queued so a restarted daemon can pick them up again.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_message = 'Reclaimed from stale processing',
             progress_percent = 0, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusQueued,
		now,
		StatusProcessing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns all processing jobs to queued, used once at
// daemon start before any worker runs.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, progress_message = 'Reset from stuck processing',
             progress_percent = 0, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// CountClipsCreatedSince counts clips belonging to an owner's jobs created
// at or after the cutoff. Implements the quota gate's UsageCounter.
func (s *Store) CountClipsCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1)
         FROM clips c
         JOIN jobs j ON j.id = c.job_id
         WHERE j.owner_id = ? AND c.created_at >= ?`,
		ownerID,
		since.UTC().Format(time.RFC3339Nano),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clips: %w", err)
	}
	return count, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

// Remove deletes a job (and its clips via cascade) by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = "id, owner_id, plan_code, source_ref, options_json, status, progress_percent, progress_message, error_summary, retry_count, max_retries, cancel_requested, last_heartbeat, created_at, updated_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		ownerID         string
		planCode        string
		sourceRef       string
		optionsJSON     sql.NullString
		statusStr       string
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		errorSummary    sql.NullString
		retryCount      int
		maxRetries      int
		cancelRequested sql.NullInt64
		heartbeatRaw    sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&planCode,
		&sourceRef,
		&optionsJSON,
		&statusStr,
		&progressPercent,
		&progressMessage,
		&errorSummary,
		&retryCount,
		&maxRetries,
		&cancelRequested,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		OwnerID:         ownerID,
		PlanCode:        planCode,
		SourceRef:       sourceRef,
		OptionsJSON:     optionsJSON.String,
		Status:          Status(statusStr),
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ErrorSummary:    errorSummary.String,
		RetryCount:      retryCount,
		MaxRetries:      maxRetries,
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
