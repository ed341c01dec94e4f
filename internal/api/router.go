package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kdimtricp/lanepilot/web"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(app.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)

	static, _ := fs.Sub(web.FS, "static")
	r.Handle("/static/*", http.StripPrefix("/static", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(app.withSession)

		// streams stay uncompressed so every write reaches the client
		r.Get("/media/{id}", app.StreamMediaHandler)
		r.Get("/ws/playback", app.PlaybackSocketHandler)
		r.Get("/training/events", app.TrainingEventsHandler)

		r.Group(func(r chi.Router) {
			r.Use(compress)

			r.Get("/", app.HomeHandler)
			r.Post("/upload", app.UploadHandler)
			r.Post("/reset", app.ResetHandler)
			r.Get("/notifications", app.NotificationsHandler)

			r.Get("/project", app.ProjectHandler)
			r.Get("/code-samples", app.CodeSamplesHandler)
			r.Get("/code-samples/{name}", app.CodeSampleHandler)

			r.Get("/api/detections", DetectionHandler)
			r.Get("/api/detections/timeline", TimelineHandler)
			r.Post("/api/playback", app.PlaybackHandler)
			r.Get("/api/uploads", app.UploadsHandler)
			r.Get("/api/training/runs/{id}", app.TrainingRunHandler)

			r.Get("/training", app.TrainingPageHandler)
			r.Post("/training/videos", app.TrainingUploadHandler)
			r.Post("/training/videos/{index}/delete", app.TrainingRemoveHandler)
			r.Post("/training/start", app.TrainingStartHandler)
			r.Post("/training/reset", app.TrainingResetHandler)
			r.Get("/training/status", app.TrainingStatusHandler)
		})
	})

	return r
}
