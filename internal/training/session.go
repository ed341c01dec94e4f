package training

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/models"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/rs/zerolog"
)

const (
	DefaultTotalSteps = 100
	DefaultInterval   = 200 * time.Millisecond
	ModelName         = "lane_pilot_model_v1.pt"
	CompletionLine    = "Training complete! Model saved as " + ModelName

	// EmptyTrainingSetMessage is the notification shown for an empty start.
	EmptyTrainingSetMessage = "Please upload at least one video for training"
)

var (
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrRunning          = errors.New("training is in progress")
	ErrNoSuchVideo      = errors.New("no queued video at that position")
)

var logTemplates = [...]string{
	"[%d/%d] Processing video frames...",
	"[%d/%d] Extracting lane features...",
	"[%d/%d] Training YOLOv8 model...",
	"[%d/%d] Optimizing pothole detection...",
	"[%d/%d] Fine-tuning model parameters...",
	"[%d/%d] Validating on test frames...",
}

type Config struct {
	TotalSteps int
	Interval   time.Duration
	Clock      Clock
	Rand       *rand.Rand
	Notifier   notify.Notifier
	Logger     zerolog.Logger
	// Release is called for every queued selection that leaves the queue.
	Release func(media.Selection)
	// Finished is called once per run, after completion or cancellation.
	Finished func(*models.TrainingRun)
}

// Session is one simulated training job: a queue of videos, a bounded step
// counter advanced by a periodic trigger, and an append-only log.
type Session struct {
	id  string
	cfg Config

	mu        sync.Mutex
	queue     []media.Selection
	step      int
	logs      []string
	running   bool
	complete  bool
	gen       uint64
	handle    *Handle
	startedAt time.Time

	subsMu sync.Mutex
	subs   map[chan Event]struct{}
}

func NewSession(id string, cfg Config) *Session {
	if cfg.TotalSteps <= 0 {
		cfg.TotalSteps = DefaultTotalSteps
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x1a9e))
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}

	return &Session{
		id:   id,
		cfg:  cfg,
		subs: make(map[chan Event]struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// Enqueue appends selections in order. Duplicate names are allowed.
func (s *Session) Enqueue(selections ...media.Selection) error {
	if len(selections) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	s.queue = append(s.queue, selections...)
	count := len(s.queue)
	s.mu.Unlock()

	s.cfg.Notifier.Notify(notify.Success(
		fmt.Sprintf("%d video(s) added to training set", len(selections)), ""))
	s.publish(Event{Type: EventQueue, Queued: count})
	return nil
}

func (s *Session) Remove(index int) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}
	if index < 0 || index >= len(s.queue) {
		s.mu.Unlock()
		return ErrNoSuchVideo
	}
	removed := s.queue[index]
	s.queue = append(s.queue[:index:index], s.queue[index+1:]...)
	count := len(s.queue)
	s.mu.Unlock()

	s.release(removed)
	s.publish(Event{Type: EventQueue, Queued: count})
	return nil
}

// Start begins a run. An empty queue is rejected with exactly one error
// notification and leaves the session untouched.
func (s *Session) Start() error {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		s.cfg.Notifier.Notify(notify.Error(EmptyTrainingSetMessage, ""))
		return ErrEmptyTrainingSet
	}
	if s.running {
		s.mu.Unlock()
		return ErrRunning
	}

	s.step = 0
	s.logs = nil
	s.complete = false
	s.running = true
	s.gen++
	s.startedAt = s.cfg.Clock.Now()
	gen := s.gen
	s.handle = every(s.cfg.Clock.NewTicker(s.cfg.Interval), func() bool {
		return s.tick(gen)
	})
	videos := len(s.queue)
	s.mu.Unlock()

	s.cfg.Logger.Info().Str("session", s.id).Int("videos", videos).Msg("training started")
	st := s.Status()
	s.publish(Event{Type: EventStarted, Status: &st})
	return nil
}

// tick applies one step for run gen. It returns false when the run is over
// or has been superseded.
func (s *Session) tick(gen uint64) bool {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return false
	}

	total := s.cfg.TotalSteps
	s.step++
	step := s.step

	var lines []string
	if step%10 == 0 || step == 1 {
		line := fmt.Sprintf(logTemplates[s.cfg.Rand.IntN(len(logTemplates))], step, total)
		s.logs = append(s.logs, line)
		lines = append(lines, line)
	}

	done := step >= total
	var run *models.TrainingRun
	if done {
		s.running = false
		s.complete = true
		s.logs = append(s.logs, CompletionLine)
		lines = append(lines, CompletionLine)
		run = s.runRecordLocked(models.RunCompleted)
	}
	s.mu.Unlock()

	s.publish(Event{Type: EventProgress, Step: step, TotalSteps: total, Progress: progressOf(step, total)})
	for _, line := range lines {
		s.publish(Event{Type: EventLog, Line: line})
	}

	if done {
		s.cfg.Notifier.Notify(notify.Success("Model training complete!", ""))
		s.cfg.Logger.Info().Str("session", s.id).Int("steps", step).Msg("training complete")
		st := s.Status()
		s.publish(Event{Type: EventComplete, Status: &st})
		if s.cfg.Finished != nil {
			s.cfg.Finished(run)
		}
		return false
	}
	return true
}

// Reset clears the queue, progress, logs and completion flag and stops any
// running trigger. No tick is applied once Reset returns.
func (s *Session) Reset() {
	s.mu.Lock()
	handle := s.handle
	var run *models.TrainingRun
	if s.running {
		run = s.runRecordLocked(models.RunCancelled)
	}
	queued := s.queue

	s.gen++
	s.handle = nil
	s.queue = nil
	s.step = 0
	s.logs = nil
	s.running = false
	s.complete = false
	s.mu.Unlock()

	if handle != nil {
		handle.Stop()
	}
	for _, sel := range queued {
		s.release(sel)
	}
	if run != nil {
		s.cfg.Logger.Info().Str("session", s.id).Int("steps", run.Steps).Msg("training cancelled")
		if s.cfg.Finished != nil {
			s.cfg.Finished(run)
		}
	}
	st := s.Status()
	s.publish(Event{Type: EventReset, Status: &st})
}

// Close stops the session for good and releases every queued blob.
func (s *Session) Close() {
	s.Reset()

	s.subsMu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.subsMu.Unlock()
}

// Wait blocks until the latest run's trigger has exited. It returns at once
// when no run was started since the last reset.
func (s *Session) Wait() {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h != nil {
		<-h.Done()
	}
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	videos := make([]Video, len(s.queue))
	for i, sel := range s.queue {
		videos[i] = Video{Index: i, ID: sel.ID, Name: sel.Name, Size: sel.Size}
	}
	logs := make([]string, len(s.logs))
	copy(logs, s.logs)

	return Status{
		SessionID:  s.id,
		Videos:     videos,
		Step:       s.step,
		TotalSteps: s.cfg.TotalSteps,
		Progress:   progressOf(s.step, s.cfg.TotalSteps),
		Logs:       logs,
		Running:    s.running,
		Complete:   s.complete,
	}
}

func (s *Session) runRecordLocked(status string) *models.TrainingRun {
	run := models.NewTrainingRun(s.id, len(s.queue), s.startedAt)
	run.Steps = s.step
	run.TotalSteps = s.cfg.TotalSteps
	run.Status = status
	run.FinishedAt = s.cfg.Clock.Now()
	run.LogLines = append([]string(nil), s.logs...)
	if status == models.RunCompleted {
		run.ModelName = ModelName
	}
	return run
}

func (s *Session) release(sel media.Selection) {
	if s.cfg.Release != nil {
		s.cfg.Release(sel)
	}
}

func progressOf(step, total int) float64 {
	p := float64(step) / float64(total)
	if p > 1 {
		p = 1
	}
	return p * 100
}
