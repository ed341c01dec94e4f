package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kdimtricp/lanepilot/internal/content"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/models"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/kdimtricp/lanepilot/internal/playback"
	"github.com/kdimtricp/lanepilot/internal/storage"
)

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type page struct {
	Title  string
	Active string
	Toasts []notify.Notification
}

type stageView struct {
	Media    *media.Selection
	Snapshot playback.Snapshot
	Error    string
}

type projectView struct {
	Tabs      []content.Tab
	ActiveTab string
}

type samplesView struct {
	Samples      []content.Sample
	ActiveSample string
}

type homePage struct {
	page
	Heading string
	Tagline string
	Stage   stageView
	Project projectView
	Samples samplesView
}

type projectPage struct {
	page
	Project projectView
}

type samplesPage struct {
	page
	Samples samplesView
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)

	samples, err := content.Samples()
	if err != nil {
		app.serverError(w, "Error loading code samples", err)
		return
	}

	app.renderPage(w, "index", homePage{
		page:    app.newPage(sid, content.Title, "home"),
		Heading: content.Title,
		Tagline: content.Tagline,
		Stage:   app.stage(sid),
		Project: projectView{Tabs: content.ProjectTabs(), ActiveTab: "about"},
		Samples: samplesView{Samples: samples, ActiveSample: samples[0].Slug},
	})
}

func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			app.renderStageError(w, sid, http.StatusBadRequest, media.Reason(media.ErrTooLarge))
			return
		}
		app.renderStageError(w, sid, http.StatusBadRequest, "Failed to read upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		app.renderStageError(w, sid, http.StatusBadRequest, media.Reason(media.ErrNotVideo))
		return
	}
	defer file.Close()

	contentType, err := media.ResolveContentType(header.Header.Get("Content-Type"), header.Filename, file)
	if err != nil {
		app.Logger.Warn().Err(err).Str("file", header.Filename).Msg("failed to detect content type")
		app.renderStageError(w, sid, http.StatusBadRequest, "Failed to read upload")
		return
	}

	// the success toast is held back until the file is stored
	pending := &notify.Recorder{}
	candidate := media.Candidate{Name: header.Filename, Size: header.Size, ContentType: contentType}
	if err := media.NewValidator(pending, nil).Check(candidate); err != nil {
		app.renderStageError(w, sid, http.StatusBadRequest, media.Reason(err))
		return
	}

	sel, err := app.storeSelection(r.Context(), sid, file, candidate)
	if err != nil {
		app.Logger.Error().Err(err).Str("file", header.Filename).Msg("failed to store upload")
		app.renderStageError(w, sid, http.StatusInternalServerError, "Failed to save file")
		return
	}

	app.Players.Player(sid).Load(sel)
	notifier := app.notifier(sid)
	for _, n := range pending.Drain() {
		notifier.Notify(n)
	}

	w.Header().Set("HX-Trigger", "videoUploaded")
	app.renderStage(w, sid, http.StatusOK)
}

// ResetHandler discards the current selection and shows the uploader again.
func (app *App) ResetHandler(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	app.Players.Player(sid).Clear()
	app.renderStage(w, sid, http.StatusOK)
}

func (app *App) StreamMediaHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, sel, ok := app.Players.Find(id)
	if !ok {
		if app.VideoRepo != nil {
			video, err := app.VideoRepo.GetVideoByID(r.Context(), id)
			if err == nil && video.ReleasedAt != nil {
				http.Error(w, "Video has been released", http.StatusGone)
				return
			}
		}
		http.NotFound(w, r)
		return
	}

	file, err := app.Storage.OpenFile(sel.Handle)
	if err != nil {
		http.Error(w, "Video file not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", sel.ContentType)
	http.ServeContent(w, r, sel.Name, sel.SelectedAt, file)
}

func (app *App) NotificationsHandler(w http.ResponseWriter, r *http.Request) {
	toasts := app.inbox(sessionID(r)).Drain()
	if err := app.views.fragment(w, "toasts-oob", http.StatusOK, toasts, nil); err != nil {
		app.serverError(w, "Error rendering template", err)
	}
}

type uploadView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Size        int64      `json:"size"`
	ContentType string     `json:"content_type"`
	UploadedAt  time.Time  `json:"uploaded_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

// UploadsHandler lists the session's recent uploads, including ones whose
// blobs have already been released.
func (app *App) UploadsHandler(w http.ResponseWriter, r *http.Request) {
	out := []uploadView{}
	if app.VideoRepo != nil {
		videos, err := app.VideoRepo.ListVideos(r.Context(), sessionID(r), 50)
		if err != nil {
			app.Logger.Error().Err(err).Msg("failed to list uploads")
			writeError(w, http.StatusInternalServerError, "Error loading videos")
			return
		}
		for _, v := range videos {
			out = append(out, uploadView{
				ID:          v.ID,
				Name:        v.Name,
				Size:        v.Size,
				ContentType: v.ContentType,
				UploadedAt:  v.UploadTime,
				ReleasedAt:  v.ReleasedAt,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (app *App) ProjectHandler(w http.ResponseWriter, r *http.Request) {
	tabs := content.ProjectTabs()
	active := tabs[0].ID
	for _, t := range tabs {
		if t.ID == r.URL.Query().Get("tab") {
			active = t.ID
		}
	}

	app.renderPage(w, "project", projectPage{
		page:    app.newPage(sessionID(r), "Project", "project"),
		Project: projectView{Tabs: tabs, ActiveTab: active},
	})
}

func (app *App) CodeSamplesHandler(w http.ResponseWriter, r *http.Request) {
	samples, err := content.Samples()
	if err != nil {
		app.serverError(w, "Error loading code samples", err)
		return
	}
	app.renderSamples(w, r, samples, samples[0].Slug)
}

func (app *App) CodeSampleHandler(w http.ResponseWriter, r *http.Request) {
	sample, err := content.SampleBySlug(chi.URLParam(r, "name"))
	if errors.Is(err, content.ErrUnknownSample) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, "Error loading code samples", err)
		return
	}

	samples, err := content.Samples()
	if err != nil {
		app.serverError(w, "Error loading code samples", err)
		return
	}
	app.renderSamples(w, r, samples, sample.Slug)
}

func (app *App) renderSamples(w http.ResponseWriter, r *http.Request, samples []content.Sample, active string) {
	app.renderPage(w, "code_samples", samplesPage{
		page:    app.newPage(sessionID(r), "Code Samples", "code"),
		Samples: samplesView{Samples: samples, ActiveSample: active},
	})
}

// storeSelection saves an accepted upload and records it in the catalog.
func (app *App) storeSelection(ctx context.Context, sid string, file io.Reader, c media.Candidate) (*media.Selection, error) {
	handle, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    c.Name,
		ContentType: c.ContentType,
		Size:        c.Size,
	})
	if err != nil {
		return nil, err
	}

	sel := media.NewSelection(c, handle)
	if app.VideoRepo != nil {
		video := models.NewVideo(sid, c.Name, handle, c.ContentType, c.Size)
		video.ID = sel.ID
		if err := app.VideoRepo.InsertVideo(ctx, video); err != nil {
			if delErr := app.Storage.DeleteFile(handle); delErr != nil {
				app.Logger.Warn().Err(delErr).Str("handle", handle).Msg("failed to delete unrecorded upload")
			}
			return nil, err
		}
	}
	return sel, nil
}

func (app *App) newPage(sid, title, active string) page {
	return page{Title: title, Active: active, Toasts: app.inbox(sid).Drain()}
}

func (app *App) stage(sid string) stageView {
	snap, err := app.Players.Player(sid).Snapshot()
	if err != nil {
		return stageView{}
	}
	return stageView{Media: snap.Media, Snapshot: snap}
}

func (app *App) renderStage(w http.ResponseWriter, sid string, status int) {
	if err := app.views.fragment(w, "stage", status, app.stage(sid), app.inbox(sid).Drain()); err != nil {
		app.serverError(w, "Error rendering template", err)
	}
}

// renderStageError shows the uploader with a validation message. The
// current selection, if any, is left alone.
func (app *App) renderStageError(w http.ResponseWriter, sid string, status int, message string) {
	view := stageView{Error: message}
	if err := app.views.fragment(w, "stage", status, view, app.inbox(sid).Drain()); err != nil {
		app.serverError(w, "Error rendering template", err)
	}
}

func (app *App) renderPage(w http.ResponseWriter, name string, data any) {
	if err := app.views.page(w, name, http.StatusOK, data); err != nil {
		app.serverError(w, "Error rendering template", err)
	}
}

func (app *App) serverError(w http.ResponseWriter, message string, err error) {
	app.Logger.Error().Err(err).Msg(message)
	http.Error(w, message, http.StatusInternalServerError)
}
