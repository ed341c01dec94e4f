package content

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
)

//go:embed samples/*
var sampleFiles embed.FS

var ErrUnknownSample = errors.New("unknown code sample")

// Sample is a read-only source file shown on the code samples page. The
// text is displayed only; it is never executed.
type Sample struct {
	Name     string
	Slug     string
	Language string
	Summary  string
	Text     string
}

var catalog = []struct {
	name, language, summary string
}{
	{"main.py", "python", "Main processing pipeline"},
	{"pothole_detector.py", "python", "Pothole detection module"},
	{"requirements.txt", "text", "Python dependencies"},
	{"README.md", "markdown", "Project documentation"},
}

// Samples returns the catalog in display order.
func Samples() ([]Sample, error) {
	out := make([]Sample, 0, len(catalog))
	for _, entry := range catalog {
		s, err := load(entry.name, entry.language, entry.summary)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// SampleBySlug looks a sample up by its URL slug, e.g. "pothole-detector".
func SampleBySlug(slug string) (Sample, error) {
	for _, entry := range catalog {
		if slugOf(entry.name) == slug {
			return load(entry.name, entry.language, entry.summary)
		}
	}
	return Sample{}, fmt.Errorf("%w: %s", ErrUnknownSample, slug)
}

func load(name, language, summary string) (Sample, error) {
	data, err := sampleFiles.ReadFile(path.Join("samples", name))
	if err != nil {
		return Sample{}, fmt.Errorf("read sample %s: %w", name, err)
	}
	return Sample{
		Name:     name,
		Slug:     slugOf(name),
		Language: language,
		Summary:  summary,
		Text:     string(data),
	}, nil
}

func slugOf(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "main" {
		return "main-py"
	}
	return strings.ToLower(strings.ReplaceAll(base, "_", "-"))
}
