package playback

import (
	"sync"

	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/rs/zerolog"
)

// Registry keeps one Player per browser session.
type Registry struct {
	mu      sync.Mutex
	players map[string]*Player
	release func(media.Selection) error
	logger  zerolog.Logger
}

func NewRegistry(release func(media.Selection) error, logger zerolog.Logger) *Registry {
	return &Registry{
		players: make(map[string]*Player),
		release: release,
		logger:  logger,
	}
}

func (r *Registry) Player(sessionID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[sessionID]
	if !ok {
		p = NewPlayer(r.release, r.logger.With().Str("session", sessionID).Logger())
		r.players[sessionID] = p
	}
	return p
}

// Find returns the player whose current selection has the given id.
func (r *Registry) Find(mediaID string) (*Player, *media.Selection, bool) {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.Unlock()

	for _, p := range players {
		if sel := p.Selection(); sel != nil && sel.ID == mediaID {
			return p, sel, true
		}
	}
	return nil, nil, false
}

// Remove closes the session's player, releasing its media. It reports
// whether the session had one.
func (r *Registry) Remove(sessionID string) bool {
	r.mu.Lock()
	p, ok := r.players[sessionID]
	delete(r.players, sessionID)
	r.mu.Unlock()

	if ok {
		p.Close()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Close releases every player's media.
func (r *Registry) Close() {
	r.mu.Lock()
	players := r.players
	r.players = make(map[string]*Player)
	r.mu.Unlock()

	for _, p := range players {
		p.Close()
	}
}
