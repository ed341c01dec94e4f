package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdimtricp/lanepilot/internal/models"
)

var ErrNotFound = errors.New("not found")

type VideoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) InsertVideo(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, session_id, name, filename, content_type, size, upload_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.conn.ExecContext(ctx, query,
		video.ID,
		video.SessionID,
		video.Name,
		video.Filename,
		video.ContentType,
		video.Size,
		video.UploadTime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetVideoByID(ctx context.Context, id string) (*models.Video, error) {
	query := `
		SELECT id, session_id, name, filename, content_type, size, upload_time, released_at
		FROM videos
		WHERE id = ?`

	video, err := scanVideo(r.db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// ListVideos returns the most recent uploads first, optionally limited to
// one session.
func (r *VideoRepository) ListVideos(ctx context.Context, sessionID string, limit int) ([]models.Video, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, name, filename, content_type, size, upload_time, released_at
		FROM videos`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY upload_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

// MarkReleased records that the stored blob behind filename is gone.
func (r *VideoRepository) MarkReleased(ctx context.Context, filename string, at time.Time) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE videos SET released_at = ? WHERE filename = ? AND released_at IS NULL`,
		at, filename)
	if err != nil {
		return fmt.Errorf("failed to mark video released: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*models.Video, error) {
	var video models.Video
	var released sql.NullTime
	err := row.Scan(
		&video.ID,
		&video.SessionID,
		&video.Name,
		&video.Filename,
		&video.ContentType,
		&video.Size,
		&video.UploadTime,
		&released,
	)
	if err != nil {
		return nil, err
	}
	if released.Valid {
		t := released.Time
		video.ReleasedAt = &t
	}
	return &video, nil
}
