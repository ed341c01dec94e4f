package playback

import (
	"errors"
	"sync"
	"testing"

	"github.com/kdimtricp/lanepilot/internal/detection"
	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type releaseLog struct {
	mu      sync.Mutex
	handles []string
	fail    bool
}

func (r *releaseLog) release(sel media.Selection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles = append(r.handles, sel.Handle)
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *releaseLog) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.handles...)
}

func newSelection(handle string) *media.Selection {
	return media.NewSelection(media.Candidate{Name: handle, Size: 10, ContentType: "video/mp4"}, handle)
}

func ptr[T any](v T) *T { return &v }

func TestPlayer_NoMedia(t *testing.T) {
	p := NewPlayer(nil, zerolog.Nop())
	_, err := p.Seek(3)
	assert.ErrorIs(t, err, ErrNoMedia)
}

func TestPlayer_ApplyProjectsDetection(t *testing.T) {
	p := NewPlayer(nil, zerolog.Nop())
	p.Load(newSelection("a"))

	snap, err := p.Apply(Update{Duration: ptr(30.0), Playing: ptr(true), Position: ptr(7.2)})
	require.NoError(t, err)
	assert.Equal(t, State{Position: 7.2, Duration: 30, Playing: true}, snap.Playback)
	assert.Equal(t, detection.Project(7.2), snap.Detection)
	assert.True(t, snap.Detection.PotholeDetected)

	// seeking backwards is a fresh projection
	snap, err = p.Seek(1)
	require.NoError(t, err)
	assert.Equal(t, detection.Project(1), snap.Detection)
	assert.False(t, snap.Detection.PotholeDetected)
	assert.True(t, snap.Playback.Playing)
}

func TestPlayer_ClampsPosition(t *testing.T) {
	p := NewPlayer(nil, zerolog.Nop())
	p.Load(newSelection("a"))

	_, err := p.Apply(Update{Duration: ptr(12.0)})
	require.NoError(t, err)

	snap, err := p.Seek(50)
	require.NoError(t, err)
	assert.Equal(t, 12.0, snap.Playback.Position)

	snap, err = p.Seek(-1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, snap.Playback.Position)

	// duration is fixed once known
	snap, err = p.Apply(Update{Duration: ptr(99.0)})
	require.NoError(t, err)
	assert.Equal(t, 12.0, snap.Playback.Duration)
}

func TestPlayer_ReleasesOnReplaceAndClose(t *testing.T) {
	var log releaseLog
	p := NewPlayer(log.release, zerolog.Nop())

	p.Load(newSelection("first"))
	p.Load(newSelection("second"))
	assert.Equal(t, []string{"first"}, log.all())

	_, err := p.Seek(4)
	require.NoError(t, err)

	p.Close()
	assert.Equal(t, []string{"first", "second"}, log.all())
	assert.Nil(t, p.Selection())

	// closing twice releases nothing more
	p.Close()
	assert.Len(t, log.all(), 2)
}

func TestPlayer_ReleaseErrorIsLogged(t *testing.T) {
	log := releaseLog{fail: true}
	p := NewPlayer(log.release, zerolog.Nop())
	p.Load(newSelection("a"))
	p.Clear()
	assert.Equal(t, []string{"a"}, log.all())
}

func TestRegistry(t *testing.T) {
	var log releaseLog
	r := NewRegistry(log.release, zerolog.Nop())

	a := r.Player("a")
	assert.Same(t, a, r.Player("a"))

	sel := newSelection("blob-a")
	a.Load(sel)
	r.Player("b").Load(newSelection("blob-b"))

	found, got, ok := r.Find(sel.ID)
	require.True(t, ok)
	assert.Same(t, a, found)
	assert.Equal(t, sel, got)

	_, _, ok = r.Find("nope")
	assert.False(t, ok)

	r.Close()
	assert.ElementsMatch(t, []string{"blob-a", "blob-b"}, log.all())
}

func TestRegistry_Remove(t *testing.T) {
	var log releaseLog
	r := NewRegistry(log.release, zerolog.Nop())

	r.Player("a").Load(newSelection("blob-a"))
	r.Player("b").Load(newSelection("blob-b"))
	require.Equal(t, 2, r.Len())

	assert.True(t, r.Remove("a"))
	assert.Equal(t, []string{"blob-a"}, log.all())
	assert.Equal(t, 1, r.Len())
	assert.False(t, r.Remove("a"))

	// a later request for the same session starts from scratch
	_, err := r.Player("a").Snapshot()
	assert.ErrorIs(t, err, ErrNoMedia)
}
