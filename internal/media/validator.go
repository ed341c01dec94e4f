package media

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kdimtricp/lanepilot/internal/notify"
)

const MaxSize int64 = 50 * 1024 * 1024

var (
	ErrInvalidMedia = errors.New("invalid media")
	ErrNotVideo     = fmt.Errorf("%w: not a video", ErrInvalidMedia)
	ErrTooLarge     = fmt.Errorf("%w: exceeds size limit", ErrInvalidMedia)
)

// Candidate is a file the user picked or dropped, before validation.
type Candidate struct {
	Name        string
	Size        int64
	ContentType string
}

// Validate accepts a candidate iff it declares a video/* type and fits in MaxSize.
func Validate(c Candidate) error {
	if !strings.HasPrefix(strings.ToLower(c.ContentType), "video/") {
		return ErrNotVideo
	}
	if c.Size > MaxSize {
		return ErrTooLarge
	}
	return nil
}

// Reason returns the user facing message for a validation error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotVideo):
		return "Please upload a valid video file."
	case errors.Is(err, ErrTooLarge):
		return "File size exceeds 50MB limit."
	case err == nil:
		return ""
	default:
		return err.Error()
	}
}

// Validator runs Validate for every user action and reports the outcome.
type Validator struct {
	Notifier notify.Notifier
	OnAccept func(Candidate)
}

func NewValidator(notifier notify.Notifier, onAccept func(Candidate)) *Validator {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Validator{Notifier: notifier, OnAccept: onAccept}
}

// Check validates c. On success the accept callback fires and a success
// notification is emitted; on failure only the error is returned.
func (v *Validator) Check(c Candidate) error {
	if err := Validate(c); err != nil {
		return err
	}

	if v.OnAccept != nil {
		v.OnAccept(c)
	}
	v.Notifier.Notify(notify.Success(
		"File uploaded successfully",
		fmt.Sprintf("%s has been uploaded for processing.", c.Name),
	))
	return nil
}

// Describe renders a short human readable label, e.g. "clip.mp4 (12 MB)".
func (c Candidate) Describe() string {
	return fmt.Sprintf("%s (%s)", c.Name, humanize.Bytes(uint64(max(c.Size, 0))))
}
