package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kdimtricp/lanepilot/internal/models"
)

type TrainingRunRepo struct {
	db *DB
}

func NewTrainingRunRepo(db *DB) *TrainingRunRepo {
	return &TrainingRunRepo{db: db}
}

func (r *TrainingRunRepo) Create(ctx context.Context, run *models.TrainingRun) error {
	logLines := run.LogLines
	if logLines == nil {
		logLines = []string{}
	}
	logJSON, err := json.Marshal(logLines)
	if err != nil {
		return fmt.Errorf("failed to marshal log lines: %w", err)
	}

	query := `
		INSERT INTO training_runs (
			id, session_id, video_count, steps, total_steps, status,
			model_name, started_at, finished_at, log_lines
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.conn.ExecContext(ctx, query,
		run.ID,
		run.SessionID,
		run.VideoCount,
		run.Steps,
		run.TotalSteps,
		run.Status,
		run.ModelName,
		run.StartedAt,
		run.FinishedAt,
		string(logJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert training run: %w", err)
	}
	return nil
}

func (r *TrainingRunRepo) GetByID(ctx context.Context, id string) (*models.TrainingRun, error) {
	query := `
		SELECT id, session_id, video_count, steps, total_steps, status,
			   model_name, started_at, finished_at, log_lines
		FROM training_runs
		WHERE id = ?`

	run, err := scanRun(r.db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("training run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return run, nil
}

// ListBySession returns a session's runs, newest first.
func (r *TrainingRunRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.TrainingRun, error) {
	query := `
		SELECT id, session_id, video_count, steps, total_steps, status,
			   model_name, started_at, finished_at, log_lines
		FROM training_runs
		WHERE session_id = ?
		ORDER BY finished_at DESC`

	rows, err := r.db.conn.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.TrainingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*models.TrainingRun, error) {
	var run models.TrainingRun
	var modelName sql.NullString
	var logJSON string
	err := row.Scan(
		&run.ID,
		&run.SessionID,
		&run.VideoCount,
		&run.Steps,
		&run.TotalSteps,
		&run.Status,
		&modelName,
		&run.StartedAt,
		&run.FinishedAt,
		&logJSON,
	)
	if err != nil {
		return nil, err
	}
	run.ModelName = modelName.String
	if logJSON != "" {
		if err := json.Unmarshal([]byte(logJSON), &run.LogLines); err != nil {
			run.LogLines = []string{}
		}
	}
	return &run, nil
}
