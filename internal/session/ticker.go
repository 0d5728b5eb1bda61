package session

import (
	"sync"
	"time"
)

// Ticker drives a controller's countdown with one callback per interval.
// Stop releases the goroutine and is safe to call more than once.
type Ticker struct {
	stop     chan struct{}
	stopOnce sync.Once
}

// StartTicker invokes fn once per interval until Stop is called. Callbacks run
// sequentially on a single goroutine, so ticks never overlap.
func StartTicker(interval time.Duration, fn func()) *Ticker {
	t := &Ticker{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-t.stop:
				return
			}
		}
	}()

	return t
}

func (t *Ticker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
}
