package media

import (
	"time"

	"github.com/google/uuid"
)

// Selection is an accepted media file held in storage. Handle names the
// stored blob and is released when the selection is replaced or discarded.
type Selection struct {
	ID          string
	Name        string
	Size        int64
	ContentType string
	Handle      string
	SelectedAt  time.Time
}

func NewSelection(c Candidate, handle string) *Selection {
	return &Selection{
		ID:          uuid.New().String(),
		Name:        c.Name,
		Size:        c.Size,
		ContentType: c.ContentType,
		Handle:      handle,
		SelectedAt:  time.Now(),
	}
}

func (s *Selection) Candidate() Candidate {
	return Candidate{Name: s.Name, Size: s.Size, ContentType: s.ContentType}
}
