package tracker

import (
	"sync"
	"time"
)

// task is a named periodic job owned by the tracker. Each timer the tracker
// runs (idle check, presentation refresh) is its own task so it can be
// cancelled independently. Cancellation is idempotent.
type task struct {
	done chan struct{}
	once sync.Once
}

// startTask runs fn every interval until cancelled.
func startTask(interval time.Duration, fn func()) *task {
	t := &task{done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

// cancel stops the task. Safe to call more than once and safe on nil.
func (t *task) cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.done) })
}
