package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/lanepilot/internal/content"
	"github.com/kdimtricp/lanepilot/internal/database"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/models"
	"github.com/kdimtricp/lanepilot/internal/training"
)

const heartbeatInterval = 15 * time.Second

type trainingPanel struct {
	Status training.Status
	Error  string
}

type trainingPage struct {
	page
	Panel    trainingPanel
	Settings []content.TrainingSetting
	Runs     []*models.TrainingRun
}

type trainingRunView struct {
	ID         string    `json:"id"`
	VideoCount int       `json:"video_count"`
	Steps      int       `json:"steps"`
	TotalSteps int       `json:"total_steps"`
	Status     string    `json:"status"`
	ModelName  string    `json:"model_name,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Logs       []string  `json:"logs"`
}

func (app *App) TrainingPageHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	session := app.Training.Session(sid)

	var runs []*models.TrainingRun
	if app.RunRepo != nil {
		var err error
		runs, err = app.RunRepo.ListBySession(r.Context(), sid)
		if err != nil {
			app.Logger.Warn().Err(err).Msg("failed to list training runs")
		}
	}

	app.renderPage(w, "training", trainingPage{
		page:     app.newPage(sid, "Model Training", "training"),
		Panel:    trainingPanel{Status: session.Status()},
		Settings: content.TrainingSettings(),
		Runs:     runs,
	})
}

// TrainingUploadHandler adds every file in the "videos" field to the
// session's training queue.
func (app *App) TrainingUploadHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			app.renderPanel(w, sid, http.StatusBadRequest, "Upload exceeds the server limit")
			return
		}
		app.renderPanel(w, sid, http.StatusBadRequest, "Failed to read upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["videos"]
	if len(headers) == 0 {
		app.renderPanel(w, sid, http.StatusBadRequest, "Please select at least one video")
		return
	}

	session := app.Training.Session(sid)
	if session.Status().Running {
		app.renderPanel(w, sid, http.StatusConflict, runningMessage)
		return
	}

	selections := make([]media.Selection, 0, len(headers))
	discard := func() {
		for _, sel := range selections {
			if err := app.releaseMedia(sel); err != nil {
				app.Logger.Warn().Err(err).Str("media", sel.ID).Msg("failed to release training video")
			}
		}
	}

	for _, fh := range headers {
		sel, err := app.storeTrainingVideo(r.Context(), sid, fh)
		if err != nil {
			discard()
			app.Logger.Error().Err(err).Str("file", fh.Filename).Msg("failed to store training video")
			app.renderPanel(w, sid, http.StatusInternalServerError, "Failed to save file")
			return
		}
		selections = append(selections, *sel)
	}

	if err := session.Enqueue(selections...); err != nil {
		discard()
		app.renderPanel(w, sid, http.StatusConflict, runningMessage)
		return
	}
	app.renderPanel(w, sid, http.StatusOK, "")
}

func (app *App) TrainingRemoveHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		app.renderPanel(w, sid, http.StatusBadRequest, "Invalid video index")
		return
	}

	switch err := app.Training.Session(sid).Remove(index); {
	case errors.Is(err, training.ErrRunning):
		app.renderPanel(w, sid, http.StatusConflict, runningMessage)
	case errors.Is(err, training.ErrNoSuchVideo):
		app.renderPanel(w, sid, http.StatusNotFound, "Video not found in training set")
	default:
		app.renderPanel(w, sid, http.StatusOK, "")
	}
}

func (app *App) TrainingStartHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)

	// an empty queue is reported through the error notification only
	switch err := app.Training.Session(sid).Start(); {
	case errors.Is(err, training.ErrEmptyTrainingSet):
		app.renderPanel(w, sid, http.StatusBadRequest, "")
	case errors.Is(err, training.ErrRunning):
		app.renderPanel(w, sid, http.StatusConflict, runningMessage)
	default:
		app.renderPanel(w, sid, http.StatusOK, "")
	}
}

func (app *App) TrainingResetHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	app.Training.Session(sid).Reset()
	app.renderPanel(w, sid, http.StatusOK, "")
}

// TrainingStatusHandler returns the status fragment, or JSON when the
// client asks for it.
func (app *App) TrainingStatusHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	status := app.Training.Session(sid).Status()

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, status)
		return
	}
	if err := app.views.fragment(w, "training-status", http.StatusOK, status, app.inbox(sid).Drain()); err != nil {
		app.serverError(w, "Error rendering template", err)
	}
}

// TrainingEventsHandler streams session events as server-sent events. The
// first event is always a full status snapshot.
func (app *App) TrainingEventsHandler(w http.ResponseWriter, r *http.Request) {
	session := app.Training.Session(sessionID(r))

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := session.Subscribe(64)
	defer cancel()

	if err := writeEvent(w, "status", session.Status()); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	clientGone := r.Context().Done()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, string(ev.Type), ev); err != nil {
				app.Logger.Debug().Err(err).Msg("training event stream closed")
				return
			}
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}

func (app *App) TrainingRunHandler(w http.ResponseWriter, r *http.Request) {
	if app.RunRepo == nil {
		writeError(w, http.StatusNotFound, "training run not found")
		return
	}

	run, err := app.RunRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) || (err == nil && run.SessionID != sessionID(r)) {
		writeError(w, http.StatusNotFound, "training run not found")
		return
	}
	if err != nil {
		app.Logger.Error().Err(err).Msg("failed to load training run")
		writeError(w, http.StatusInternalServerError, "Error loading training run")
		return
	}

	writeJSON(w, http.StatusOK, trainingRunView{
		ID:         run.ID,
		VideoCount: run.VideoCount,
		Steps:      run.Steps,
		TotalSteps: run.TotalSteps,
		Status:     run.Status,
		ModelName:  run.ModelName,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Logs:       run.LogLines,
	})
}

const runningMessage = "Training is in progress"

func (app *App) storeTrainingVideo(ctx context.Context, sid string, fh *multipart.FileHeader) (*media.Selection, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer file.Close()

	contentType, err := media.ResolveContentType(fh.Header.Get("Content-Type"), fh.Filename, file)
	if err != nil {
		return nil, err
	}
	return app.storeSelection(ctx, sid, file, media.Candidate{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: contentType,
	})
}

func (app *App) renderPanel(w http.ResponseWriter, sid string, status int, message string) {
	panel := trainingPanel{Status: app.Training.Session(sid).Status(), Error: message}
	if err := app.views.fragment(w, "training-panel", status, panel, app.inbox(sid).Drain()); err != nil {
		app.serverError(w, "Error rendering template", err)
	}
}

func writeEvent(w io.Writer, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
