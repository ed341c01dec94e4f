package training

type EventType string

const (
	EventQueue    EventType = "queue"
	EventStarted  EventType = "started"
	EventProgress EventType = "progress"
	EventLog      EventType = "log"
	EventComplete EventType = "complete"
	EventReset    EventType = "reset"
)

type Event struct {
	Type       EventType `json:"type"`
	Step       int       `json:"step,omitempty"`
	TotalSteps int       `json:"total_steps,omitempty"`
	Progress   float64   `json:"progress,omitempty"`
	Line       string    `json:"line,omitempty"`
	Queued     int       `json:"queued,omitempty"`
	Status     *Status   `json:"status,omitempty"`
}

type Video struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
}

// Status is a consistent snapshot of a session.
type Status struct {
	SessionID  string   `json:"session_id"`
	Videos     []Video  `json:"videos"`
	Step       int      `json:"step"`
	TotalSteps int      `json:"total_steps"`
	Progress   float64  `json:"progress"`
	Logs       []string `json:"logs"`
	Running    bool     `json:"running"`
	Complete   bool     `json:"complete"`
}

// Phase is the label shown above the progress bar.
func (s Status) Phase() string {
	switch {
	case s.Complete:
		return "Complete!"
	case s.Running:
		return "Training..."
	default:
		return "Not Started"
	}
}

// Subscribe returns a channel of session events and a function that ends
// the subscription. Slow subscribers miss events rather than block ticks.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	cancel := func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *Session) publish(ev Event) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.cfg.Logger.Debug().Str("session", s.id).Str("event", string(ev.Type)).Msg("dropping event for slow subscriber")
		}
	}
}
