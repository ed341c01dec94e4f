package api

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kdimtricp/lanepilot/internal/config"
	"github.com/kdimtricp/lanepilot/internal/database"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/models"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/kdimtricp/lanepilot/internal/playback"
	"github.com/kdimtricp/lanepilot/internal/storage"
	"github.com/kdimtricp/lanepilot/internal/training"
	"github.com/rs/zerolog"
)

type Options struct {
	Config  *config.Config
	Storage storage.Storage
	DB      *database.DB
	// Clock and NewRand drive training runs; nil means wall clock and a
	// time seeded source.
	Clock   training.Clock
	NewRand func() *rand.Rand
	Logger  zerolog.Logger
}

// App wires the HTTP handlers to storage, the catalog, and the per-session
// players and training simulators.
type App struct {
	Storage       storage.Storage
	DB            *database.DB
	VideoRepo     *database.VideoRepository
	RunRepo       *database.TrainingRunRepo
	Players       *playback.Registry
	Training      *training.Manager
	MaxUploadSize int64
	Logger        zerolog.Logger

	views *views

	now        func() time.Time
	sessionTTL time.Duration
	stopReaper chan struct{}
	reaperDone chan struct{}
	closeOnce  sync.Once

	sessionsMu sync.Mutex
	inboxes    map[string]*notify.Recorder
	activity   map[string]*sessionActivity
}

// sessionActivity tracks when a browser session was last seen and how many
// of its requests are still being served.
type sessionActivity struct {
	lastSeen time.Time
	inFlight int
}

func NewApp(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}

	v, err := loadViews()
	if err != nil {
		return nil, err
	}

	app := &App{
		Storage:       opts.Storage,
		DB:            opts.DB,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		Logger:        opts.Logger,
		views:         v,
		now:           time.Now,
		sessionTTL:    cfg.Server.SessionTTL.Std(),
		inboxes:       make(map[string]*notify.Recorder),
		activity:      make(map[string]*sessionActivity),
	}
	if opts.Clock != nil {
		app.now = opts.Clock.Now
	}
	if opts.DB != nil {
		app.VideoRepo = database.NewVideoRepository(opts.DB)
		app.RunRepo = database.NewTrainingRunRepo(opts.DB)
	}

	app.Players = playback.NewRegistry(app.releaseMedia, opts.Logger.With().Str("component", "playback").Logger())
	app.Training = training.NewManager(training.ManagerConfig{
		TotalSteps: cfg.Training.TotalSteps,
		Interval:   cfg.Training.TickInterval.Std(),
		Clock:      opts.Clock,
		NewRand:    opts.NewRand,
		Notifier:   app.notifier,
		Logger:     opts.Logger.With().Str("component", "training").Logger(),
		Release: func(sel media.Selection) {
			if err := app.releaseMedia(sel); err != nil {
				app.Logger.Warn().Err(err).Str("media", sel.ID).Msg("failed to release training video")
			}
		},
		Finished: app.recordRun,
	})

	if app.sessionTTL > 0 {
		app.stopReaper = make(chan struct{})
		app.reaperDone = make(chan struct{})
		go app.reapLoop(reapInterval(app.sessionTTL))
	}

	return app, nil
}

// Close stops the idle reaper and every training run, then releases all
// stored media.
func (app *App) Close() {
	app.closeOnce.Do(func() {
		if app.stopReaper != nil {
			close(app.stopReaper)
			<-app.reaperDone
		}
	})
	app.Training.Close()
	app.Players.Close()
}

// enterSession marks a request of the session as in flight. The returned
// func ends it.
func (app *App) enterSession(sessionID string) func() {
	app.sessionsMu.Lock()
	a, ok := app.activity[sessionID]
	if !ok {
		a = &sessionActivity{}
		app.activity[sessionID] = a
	}
	a.lastSeen = app.now()
	a.inFlight++
	app.sessionsMu.Unlock()

	return func() {
		app.sessionsMu.Lock()
		a.lastSeen = app.now()
		a.inFlight--
		app.sessionsMu.Unlock()
	}
}

func reapInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), time.Minute)
}

func (app *App) reapLoop(interval time.Duration) {
	defer close(app.reaperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-app.stopReaper:
			return
		case <-ticker.C:
			app.reapIdle()
		}
	}
}

// reapIdle closes every session without requests in flight that has been
// idle for at least the session TTL: its player and training queue release
// their media and its pending notifications are dropped.
func (app *App) reapIdle() int {
	if app.sessionTTL <= 0 {
		return 0
	}
	now := app.now()

	var idle []string
	app.sessionsMu.Lock()
	for id, a := range app.activity {
		if a.inFlight == 0 && now.Sub(a.lastSeen) >= app.sessionTTL {
			idle = append(idle, id)
			delete(app.activity, id)
			delete(app.inboxes, id)
		}
	}
	app.sessionsMu.Unlock()

	for _, id := range idle {
		app.Players.Remove(id)
		app.Training.Remove(id)
	}
	if len(idle) > 0 {
		app.Logger.Debug().Int("sessions", len(idle)).Msg("closed idle sessions")
	}
	return len(idle)
}

// inbox holds the notifications a session has not seen yet.
func (app *App) inbox(sessionID string) *notify.Recorder {
	app.sessionsMu.Lock()
	defer app.sessionsMu.Unlock()

	r, ok := app.inboxes[sessionID]
	if !ok {
		r = &notify.Recorder{}
		app.inboxes[sessionID] = r
	}
	return r
}

func (app *App) notifier(sessionID string) notify.Notifier {
	return notify.Multi{
		app.inbox(sessionID),
		notify.LogNotifier{Logger: app.Logger.With().Str("session", sessionID).Logger()},
	}
}

func (app *App) releaseMedia(sel media.Selection) error {
	if err := app.Storage.DeleteFile(sel.Handle); err != nil {
		return fmt.Errorf("delete %s: %w", sel.Handle, err)
	}
	if app.VideoRepo != nil {
		if err := app.VideoRepo.MarkReleased(context.Background(), sel.Handle, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) recordRun(run *models.TrainingRun) {
	if app.RunRepo == nil {
		return
	}
	if err := app.RunRepo.Create(context.Background(), run); err != nil {
		app.Logger.Error().Err(err).Str("run", run.ID).Msg("failed to record training run")
	}
}
