package training

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/kdimtricp/lanepilot/internal/media"
	"github.com/kdimtricp/lanepilot/internal/models"
	"github.com/kdimtricp/lanepilot/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tickWait = time.Second

type harness struct {
	clock    *ManualClock
	rec      *notify.Recorder
	session  *Session
	mu       sync.Mutex
	released []media.Selection
	runs     []*models.TrainingRun
}

func newHarness(t *testing.T, seed uint64) *harness {
	t.Helper()
	h := &harness{
		clock: NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		rec:   &notify.Recorder{},
	}
	h.session = NewSession("s1", Config{
		Clock:    h.clock,
		Rand:     rand.New(rand.NewPCG(seed, seed)),
		Notifier: h.rec,
		Release: func(sel media.Selection) {
			h.mu.Lock()
			h.released = append(h.released, sel)
			h.mu.Unlock()
		},
		Finished: func(run *models.TrainingRun) {
			h.mu.Lock()
			h.runs = append(h.runs, run)
			h.mu.Unlock()
		},
	})
	t.Cleanup(h.session.Close)
	return h
}

func (h *harness) tick(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.True(t, h.clock.Tick(tickWait), "tick %d was not delivered", i+1)
	}
}

func selection(name string) media.Selection {
	return *media.NewSelection(media.Candidate{Name: name, Size: 1024, ContentType: "video/mp4"}, name+".blob")
}

func TestSession_StartEmptyQueue(t *testing.T) {
	h := newHarness(t, 1)

	err := h.session.Start()
	require.ErrorIs(t, err, ErrEmptyTrainingSet)

	st := h.session.Status()
	assert.Equal(t, 0.0, st.Progress)
	assert.False(t, st.Complete)
	assert.False(t, st.Running)
	assert.Empty(t, st.Logs)

	all := h.rec.All()
	require.Len(t, all, 1)
	assert.Equal(t, notify.LevelError, all[0].Level)
	assert.Equal(t, "Please upload at least one video for training", all[0].Title)
	assert.Equal(t, "empty training set", err.Error())
	assert.Equal(t, 0, h.clock.Tickers())
}

func TestSession_RunsToCompletion(t *testing.T) {
	h := newHarness(t, 7)
	require.NoError(t, h.session.Enqueue(selection("drive.mp4")))
	h.rec.Drain()

	require.NoError(t, h.session.Start())
	assert.True(t, h.session.Status().Running)

	h.tick(t, 99)
	require.Eventually(t, func() bool { return h.session.Status().Step == 99 }, tickWait, time.Millisecond)
	st := h.session.Status()
	assert.False(t, st.Complete)
	assert.InDelta(t, 99.0, st.Progress, 1e-9)

	h.tick(t, 1)
	h.session.Wait()

	st = h.session.Status()
	assert.True(t, st.Complete)
	assert.False(t, st.Running)
	assert.Equal(t, 100, st.Step)
	assert.Equal(t, 100.0, st.Progress)

	// step 1 plus every tenth step, then the completion line
	require.Len(t, st.Logs, 12)
	assert.Equal(t, CompletionLine, st.Logs[len(st.Logs)-1])
	assert.Contains(t, st.Logs[0], "[1/100]")
	assert.Contains(t, st.Logs[10], "[100/100]")

	assert.True(t, h.clock.Stopped())
	assert.False(t, h.clock.Tick(20*time.Millisecond), "ticker must not run after completion")
	assert.Equal(t, 100, h.session.Status().Step)

	all := h.rec.All()
	require.Len(t, all, 1)
	assert.Equal(t, notify.Success("Model training complete!", ""), all[0])

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.runs, 1)
	assert.Equal(t, models.RunCompleted, h.runs[0].Status)
	assert.Equal(t, ModelName, h.runs[0].ModelName)
	assert.Equal(t, 1, h.runs[0].VideoCount)
}

func TestSession_LogLinesUseTemplates(t *testing.T) {
	h := newHarness(t, 3)
	require.NoError(t, h.session.Enqueue(selection("a.mp4")))
	require.NoError(t, h.session.Start())
	h.tick(t, 100)
	h.session.Wait()

	steps := []int{1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	logs := h.session.Status().Logs
	for i, step := range steps {
		matched := false
		for _, tmpl := range logTemplates {
			if logs[i] == fmt.Sprintf(tmpl, step, 100) {
				matched = true
			}
		}
		assert.True(t, matched, "unexpected log line %q", logs[i])
	}
}

func TestSession_SeededRandIsDeterministic(t *testing.T) {
	run := func() []string {
		h := newHarness(t, 42)
		require.NoError(t, h.session.Enqueue(selection("a.mp4")))
		require.NoError(t, h.session.Start())
		h.tick(t, 100)
		h.session.Wait()
		return h.session.Status().Logs
	}

	assert.Equal(t, run(), run())
}

func TestSession_ResetMidRun(t *testing.T) {
	h := newHarness(t, 5)
	require.NoError(t, h.session.Enqueue(selection("a.mp4"), selection("a.mp4")))
	require.NoError(t, h.session.Start())

	h.tick(t, 15)
	h.session.Reset()

	st := h.session.Status()
	assert.Empty(t, st.Videos)
	assert.Empty(t, st.Logs)
	assert.Equal(t, 0, st.Step)
	assert.Equal(t, 0.0, st.Progress)
	assert.False(t, st.Complete)
	assert.False(t, st.Running)

	assert.True(t, h.clock.Stopped())
	assert.False(t, h.clock.Tick(20*time.Millisecond), "no tick may be delivered after reset")
	assert.Equal(t, 0, h.session.Status().Step)

	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Len(t, h.released, 2)
	require.Len(t, h.runs, 1)
	assert.Equal(t, models.RunCancelled, h.runs[0].Status)
	assert.GreaterOrEqual(t, h.runs[0].Steps, 14)
}

func TestSession_ResetAfterCompletion(t *testing.T) {
	h := newHarness(t, 9)
	require.NoError(t, h.session.Enqueue(selection("a.mp4")))
	require.NoError(t, h.session.Start())
	h.tick(t, 100)
	h.session.Wait()

	h.session.Reset()
	st := h.session.Status()
	assert.False(t, st.Complete)
	assert.Empty(t, st.Logs)
	assert.Empty(t, st.Videos)

	h.mu.Lock()
	assert.Len(t, h.runs, 1, "reset after completion records no cancelled run")
	h.mu.Unlock()

	// a fresh session can be started again after new uploads
	require.NoError(t, h.session.Enqueue(selection("b.mp4")))
	require.NoError(t, h.session.Start())
	h.tick(t, 1)
	require.Eventually(t, func() bool { return h.session.Status().Step == 1 }, tickWait, time.Millisecond)
}

func TestSession_QueueEditing(t *testing.T) {
	h := newHarness(t, 1)
	require.NoError(t, h.session.Enqueue(selection("a.mp4"), selection("b.mp4")))
	require.NoError(t, h.session.Enqueue(selection("a.mp4")))

	videos := h.session.Status().Videos
	require.Len(t, videos, 3)
	assert.Equal(t, []string{"a.mp4", "b.mp4", "a.mp4"}, []string{videos[0].Name, videos[1].Name, videos[2].Name})

	require.NoError(t, h.session.Remove(1))
	videos = h.session.Status().Videos
	require.Len(t, videos, 2)
	assert.Equal(t, "a.mp4", videos[1].Name)
	assert.ErrorIs(t, h.session.Remove(5), ErrNoSuchVideo)

	require.NoError(t, h.session.Start())
	assert.ErrorIs(t, h.session.Enqueue(selection("c.mp4")), ErrRunning)
	assert.ErrorIs(t, h.session.Remove(0), ErrRunning)
	assert.ErrorIs(t, h.session.Start(), ErrRunning)

	successes := h.rec.Count(notify.LevelSuccess)
	assert.Equal(t, 2, successes)
}

func TestSession_ProgressMonotonic(t *testing.T) {
	h := newHarness(t, 11)
	events, cancel := h.session.Subscribe(256)
	defer cancel()

	require.NoError(t, h.session.Enqueue(selection("a.mp4")))
	require.NoError(t, h.session.Start())
	h.tick(t, 100)
	h.session.Wait()

	last := -1.0
	var sawComplete bool
	timeout := time.After(tickWait)
	for !sawComplete {
		select {
		case ev := <-events:
			switch ev.Type {
			case EventProgress:
				assert.GreaterOrEqual(t, ev.Progress, last)
				assert.LessOrEqual(t, ev.Progress, 100.0)
				last = ev.Progress
			case EventComplete:
				sawComplete = true
				require.NotNil(t, ev.Status)
				assert.True(t, ev.Status.Complete)
			}
		case <-timeout:
			t.Fatal("did not observe completion event")
		}
	}
	assert.Equal(t, 100.0, last)
}

func TestStatusPhase(t *testing.T) {
	assert.Equal(t, "Not Started", Status{}.Phase())
	assert.Equal(t, "Training...", Status{Running: true}.Phase())
	assert.Equal(t, "Complete!", Status{Complete: true}.Phase())
}

func TestManager(t *testing.T) {
	clock := NewManualClock(time.Now())
	m := NewManager(ManagerConfig{Clock: clock})
	defer m.Close()

	a := m.Session("a")
	assert.Same(t, a, m.Session("a"))
	got, ok := m.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	fresh := m.Session("")
	assert.NotEmpty(t, fresh.ID())
	assert.NotEqual(t, "a", fresh.ID())

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestHandle_StopIsIdempotent(t *testing.T) {
	clock := NewManualClock(time.Now())
	var n int
	var mu sync.Mutex
	h := every(clock.NewTicker(time.Second), func() bool {
		mu.Lock()
		n++
		mu.Unlock()
		return true
	})

	require.True(t, clock.Tick(tickWait))
	h.Stop()
	h.Stop()

	select {
	case <-h.Done():
	default:
		t.Fatal("handle not done after Stop")
	}
	assert.False(t, clock.Tick(20*time.Millisecond))
	assert.True(t, clock.Stopped())
}

func TestManager_Remove(t *testing.T) {
	clock := NewManualClock(time.Now())
	var mu sync.Mutex
	var released []string
	var runs []*models.TrainingRun
	m := NewManager(ManagerConfig{
		Clock: clock,
		Release: func(sel media.Selection) {
			mu.Lock()
			released = append(released, sel.Name)
			mu.Unlock()
		},
		Finished: func(run *models.TrainingRun) {
			mu.Lock()
			runs = append(runs, run)
			mu.Unlock()
		},
	})
	defer m.Close()

	s := m.Session("idle")
	require.NoError(t, s.Enqueue(selection("a.mp4")))
	require.NoError(t, s.Start())
	require.True(t, clock.Tick(tickWait))
	m.Session("other")
	require.Equal(t, 2, m.Len())

	assert.True(t, m.Remove("idle"))
	assert.False(t, m.Remove("idle"))
	assert.Equal(t, 1, m.Len())
	assert.True(t, clock.Stopped())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.mp4"}, released)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunCancelled, runs[0].Status)
}
