package api

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kdimtricp/lanepilot/internal/content"
	"github.com/kdimtricp/lanepilot/internal/detection"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/kdimtricp/lanepilot/web"
)

var funcs = template.FuncMap{
	"formatTime": detection.FormatTime,
	"humanBytes": func(n int64) string { return humanize.Bytes(uint64(max(n, 0))) },
	"humanTime":  func(t time.Time) string { return humanize.Time(t) },
	"percent":    func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
	"meters": func(d *float64) string {
		if d == nil {
			return ""
		}
		return fmt.Sprintf("%.1f m", *d)
	},
	"upper": strings.ToUpper,
	"model": content.TrainedModel,
}

// views holds one template set per page, each sharing the layout and
// partials. Fragments render from the shared set.
type views struct {
	shared *template.Template
	pages  map[string]*template.Template
}

func loadViews() (*views, error) {
	shared, err := template.New("").Funcs(funcs).ParseFS(web.FS,
		"templates/layout/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	pageFiles, err := fs.Glob(web.FS, "templates/pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	v := &views{shared: shared, pages: make(map[string]*template.Template)}
	for _, file := range pageFiles {
		t, err := shared.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone templates: %w", err)
		}
		if _, err := t.ParseFS(web.FS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		v.pages[strings.TrimSuffix(path.Base(file), ".html")] = t
	}
	return v, nil
}

// page renders a full page into a buffer first so a template error never
// leaves a half written response.
func (v *views) page(w http.ResponseWriter, name string, status int, data any) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return execute(w, t, status, part{"base", data})
}

// fragment renders a partial for an htmx swap. Pending toasts ride along
// as an out of band swap.
func (v *views) fragment(w http.ResponseWriter, name string, status int, data any, toasts []notify.Notification) error {
	parts := []part{{name, data}}
	if len(toasts) > 0 {
		parts = append(parts, part{"toasts-oob", toasts})
	}
	return execute(w, v.shared, status, parts...)
}

type part struct {
	name string
	data any
}

func execute(w http.ResponseWriter, t *template.Template, status int, parts ...part) error {
	var buf bytes.Buffer
	for _, p := range parts {
		if err := t.ExecuteTemplate(&buf, p.name, p.data); err != nil {
			return fmt.Errorf("render %s: %w", p.name, err)
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
	return nil
}
