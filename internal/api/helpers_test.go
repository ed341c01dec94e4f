package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kdimtricp/lanepilot/internal/config"
	"github.com/kdimtricp/lanepilot/internal/database"
	"github.com/kdimtricp/lanepilot/internal/storage"
	"github.com/kdimtricp/lanepilot/internal/training"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const tickWait = time.Second

type testEnv struct {
	app     *App
	handler http.Handler
	clock   *training.ManualClock
	dir     string
	sid     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	db, err := database.NewDB(database.Config{SQLitePath: database.MemoryPath, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	clock := training.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	app, err := NewApp(Options{
		Config:  &cfg,
		Storage: store,
		DB:      db,
		Clock:   clock,
		NewRand: func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) },
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return &testEnv{
		app:     app,
		handler: NewRouter(app),
		clock:   clock,
		dir:     dir,
		sid:     uuid.New().String(),
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: e.sid})
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, path, nil))
}

func (e *testEnv) post(t *testing.T, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return e.do(t, req)
}

// upload posts a single file in the "video" field.
func (e *testEnv) upload(t *testing.T, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, "video", fileSpec{name, contentType, data})
	return e.post(t, "/upload", body, ct)
}

// blobs lists stored media, ignoring the lock file.
func (e *testEnv) blobs(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.dir)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names
}

type fileSpec struct {
	name        string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, field string, files ...fileSpec) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.name))
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func videoBytes(n int) []byte {
	return bytes.Repeat([]byte{0x42}, n)
}

// faultyStorage wraps a real store and fails saves after a quota, or every
// delete when deleteErr is set.
type faultyStorage struct {
	storage.Storage

	mu        sync.Mutex
	saves     int
	saveLimit int
	deleteErr error
}

func (f *faultyStorage) SaveFile(r io.Reader, info storage.FileInfo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saves >= f.saveLimit {
		return "", errors.New("disk full")
	}
	f.saves++
	return f.Storage.SaveFile(r, info)
}

func (f *faultyStorage) DeleteFile(path string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Storage.DeleteFile(path)
}
