package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Clips returns the clip rows for a job ordered by sequence.
func (s *Store) Clips(ctx context.Context, jobID int64) ([]*Clip, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips WHERE job_id = ? ORDER BY seq`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list clips: %w", err)
	}
	defer rows.Close()

	var clips []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// GetClip fetches a single clip row. Returns (nil, nil) when absent.
func (s *Store) GetClip(ctx context.Context, jobID int64, seq int) (*Clip, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+clipColumns+` FROM clips WHERE job_id = ? AND seq = ?`,
		jobID, seq,
	)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// UpdateClip persists changes to an existing clip row.
func (s *Store) UpdateClip(ctx context.Context, clip *Clip) error {
	if clip == nil {
		return errors.New("clip is nil")
	}
	clip.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE clips
         SET status = ?, output_url = ?, thumbnail_url = ?, error_message = ?,
             duration_sec = ?, width = ?, height = ?, file_size = ?, updated_at = ?
         WHERE job_id = ? AND seq = ?`,
		clip.Status,
		nullableString(clip.OutputURL),
		nullableString(clip.ThumbnailURL),
		nullableString(clip.ErrorMessage),
		clip.DurationSec,
		clip.Width,
		clip.Height,
		clip.FileSize,
		clip.UpdatedAt.Format(time.RFC3339Nano),
		clip.JobID,
		clip.Seq,
	)
	if err != nil {
		return fmt.Errorf("update clip: %w", err)
	}
	return nil
}

// SetClipStatus moves a clip to the given status, recording an error message
// for failures.
func (s *Store) SetClipStatus(ctx context.Context, jobID int64, seq int, status ClipStatus, errorMessage string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE clips SET status = ?, error_message = ?, updated_at = ? WHERE job_id = ? AND seq = ?`,
		status,
		nullableString(errorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		jobID,
		seq,
	)
	if err != nil {
		return fmt.Errorf("set clip status: %w", err)
	}
	return nil
}

// SetJobProgress records a progress update. The percentage never moves
// backwards; stale updates keep the stored maximum and only refresh the
// message.
func (s *Store) SetJobProgress(ctx context.Context, jobID int64, percent float64, message string) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET progress_percent = MAX(progress_percent, ?), progress_message = ?, updated_at = ?
         WHERE id = ?`,
		percent,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("set job progress: %w", err)
	}
	return nil
}

const clipColumns = "job_id, seq, start_sec, end_sec, title, platform, ai_score, status, output_url, thumbnail_url, error_message, duration_sec, width, height, file_size, created_at, updated_at"

func scanClip(scanner interface{ Scan(dest ...any) error }) (*Clip, error) {
	var (
		jobID        int64
		seq          int
		startSec     float64
		endSec       float64
		title        sql.NullString
		platform     string
		aiScore      float64
		statusStr    string
		outputURL    sql.NullString
		thumbnailURL sql.NullString
		errorMessage sql.NullString
		durationSec  float64
		width        int
		height       int
		fileSize     int64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&jobID,
		&seq,
		&startSec,
		&endSec,
		&title,
		&platform,
		&aiScore,
		&statusStr,
		&outputURL,
		&thumbnailURL,
		&errorMessage,
		&durationSec,
		&width,
		&height,
		&fileSize,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	clip := &Clip{
		JobID:        jobID,
		Seq:          seq,
		StartSec:     startSec,
		EndSec:       endSec,
		Title:        title.String,
		Platform:     platform,
		AIScore:      aiScore,
		Status:       ClipStatus(statusStr),
		OutputURL:    outputURL.String,
		ThumbnailURL: thumbnailURL.String,
		ErrorMessage: errorMessage.String,
		DurationSec:  durationSec,
		Width:        width,
		Height:       height,
		FileSize:     fileSize,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		clip.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		clip.UpdatedAt = updated
	}
	return clip, nil
}
