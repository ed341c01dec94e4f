package playback

import (
	"errors"
	"math"
	"sync"

	"github.com/kdimtricp/lanepilot/internal/detection"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/rs/zerolog"
)

var ErrNoMedia = errors.New("no video selected")

// State is the player's view of the media element.
type State struct {
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Playing  bool    `json:"playing"`
}

// Update is one report from the media element. Nil fields are left as is.
type Update struct {
	Position *float64 `json:"position,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Playing  *bool    `json:"playing,omitempty"`
}

// Snapshot pairs playback state with the detection state projected from it.
type Snapshot struct {
	Media     *media.Selection `json:"-"`
	Playback  State            `json:"playback"`
	Detection detection.State  `json:"detection"`
}

// Player owns the current selection and the stored blob behind it. The blob
// is released whenever the selection is replaced and when the player closes.
type Player struct {
	mu        sync.Mutex
	selection *media.Selection
	state     State
	release   func(media.Selection) error
	logger    zerolog.Logger
}

func NewPlayer(release func(media.Selection) error, logger zerolog.Logger) *Player {
	return &Player{release: release, logger: logger}
}

// Load makes sel the current selection and resets playback state.
func (p *Player) Load(sel *media.Selection) {
	p.mu.Lock()
	prev := p.selection
	p.selection = sel
	p.state = State{}
	p.mu.Unlock()

	p.releaseSelection(prev)
}

// Clear drops the current selection, e.g. when the page is reset.
func (p *Player) Clear() {
	p.Load(nil)
}

func (p *Player) Close() {
	p.Clear()
}

func (p *Player) Selection() *media.Selection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selection
}

// Apply folds an update into the playback state and projects a new
// detection state from the resulting position.
func (p *Player) Apply(u Update) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.selection == nil {
		return Snapshot{}, ErrNoMedia
	}

	if u.Duration != nil && p.state.Duration == 0 && validSeconds(*u.Duration) {
		p.state.Duration = *u.Duration
	}
	if u.Playing != nil {
		p.state.Playing = *u.Playing
	}
	if u.Position != nil {
		p.state.Position = p.clamp(*u.Position)
	}

	return Snapshot{
		Media:     p.selection,
		Playback:  p.state,
		Detection: detection.Project(p.state.Position),
	}, nil
}

// Seek is Apply with only a position.
func (p *Player) Seek(position float64) (Snapshot, error) {
	return p.Apply(Update{Position: &position})
}

func (p *Player) Snapshot() (Snapshot, error) {
	return p.Apply(Update{})
}

func (p *Player) clamp(pos float64) float64 {
	if !validSeconds(pos) {
		return 0
	}
	if p.state.Duration > 0 && pos > p.state.Duration {
		return p.state.Duration
	}
	return pos
}

func (p *Player) releaseSelection(sel *media.Selection) {
	if sel == nil || p.release == nil {
		return
	}
	if err := p.release(*sel); err != nil {
		p.logger.Warn().Err(err).Str("media", sel.ID).Msg("failed to release media")
	}
}

func validSeconds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
