package models

import (
	"time"

	"github.com/google/uuid"
)

// TrainingRun records one finished (or abandoned) simulated training job.
type TrainingRun struct {
	ID         string
	SessionID  string
	VideoCount int
	Steps      int
	TotalSteps int
	Status     string
	ModelName  string
	StartedAt  time.Time
	FinishedAt time.Time
	LogLines   []string
}

const (
	RunCompleted = "completed"
	RunCancelled = "cancelled"
)

func NewTrainingRun(sessionID string, videoCount int, startedAt time.Time) *TrainingRun {
	return &TrainingRun{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		VideoCount: videoCount,
		StartedAt:  startedAt,
	}
}
