package training

import (
	"sync"
	"time"
)

// ManualClock is a Clock whose tickers only fire when Tick is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (m *ManualClock) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTicker{c: make(chan time.Time), interval: d}
	m.tickers = append(m.tickers, t)
	return t
}

func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward without firing any ticker.
func (m *ManualClock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Tick advances the clock by the newest ticker's interval and delivers one
// tick to it. It reports false if nothing received the tick within wait.
func (m *ManualClock) Tick(wait time.Duration) bool {
	m.mu.Lock()
	if len(m.tickers) == 0 {
		m.mu.Unlock()
		return false
	}
	t := m.tickers[len(m.tickers)-1]
	m.now = m.now.Add(t.interval)
	now := m.now
	m.mu.Unlock()

	select {
	case t.c <- now:
		return true
	case <-time.After(wait):
		return false
	}
}

// Tickers returns how many tickers were created so far.
func (m *ManualClock) Tickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tickers)
}

// Stopped reports whether every ticker created so far has been stopped.
func (m *ManualClock) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tickers {
		if !t.isStopped() {
			return false
		}
	}
	return true
}

type manualTicker struct {
	c        chan time.Time
	interval time.Duration
	mu       sync.Mutex
	stopped  bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}
