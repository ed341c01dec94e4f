package models

import (
	"time"

	"github.com/google/uuid"
)

// Video is the catalog row for an accepted upload. ReleasedAt is set once
// the stored blob has been deleted.
type Video struct {
	ID          string
	SessionID   string
	Name        string
	Filename    string
	ContentType string
	Size        int64
	UploadTime  time.Time
	ReleasedAt  *time.Time
}

func NewVideo(sessionID, name, filename, contentType string, size int64) *Video {
	return &Video{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Name:        name,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		UploadTime:  time.Now(),
	}
}
