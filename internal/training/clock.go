package training

import (
	"sync"
	"time"
)

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates the periodic trigger that drives a training run.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	Now() time.Time
}

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }
func (realClock) Now() time.Time                   { return time.Now() }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Handle is a running periodic task. Stop is idempotent and returns only
// after the task goroutine has exited, so no tick is delivered afterwards.
type Handle struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// every calls fn on each tick until fn returns false or Stop is called.
func every(t Ticker, fn func() bool) *Handle {
	h := &Handle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer t.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-t.C():
				select {
				case <-h.stop:
					return
				default:
				}
				if !fn() {
					return
				}
			}
		}
	}()

	return h
}

func (h *Handle) Stop() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

// Done is closed once the task has exited, either by Stop or on its own.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
