package execution

import (
	"sync"
	"time"

	"github.com/hyeonwoo-dev/qcgate/internal/logging"
)

// DefaultAutoSaveDelay matches the debounce the execution screens have
// always used.
const DefaultAutoSaveDelay = 500 * time.Millisecond

// SaveFunc persists one progress snapshot.
type SaveFunc func(Progress) error

// AutoSaver debounces progress writes for one session with a single
// latest-pending slot: rapid updates reset the timer, and while a write is
// in flight newer snapshots overwrite the slot instead of queueing, so at
// most one write is ever outstanding. Save failures are logged and
// swallowed; the next update tries again.
type AutoSaver struct {
	mu       sync.Mutex
	delay    time.Duration
	save     SaveFunc
	logger   logging.Printf
	timer    *time.Timer
	pending  *Progress
	inFlight bool
	closed   bool
	idle     sync.WaitGroup
}

// NewAutoSaver builds a saver around the persistence function. A
// non-positive delay falls back to the default.
func NewAutoSaver(delay time.Duration, save SaveFunc, logger logging.Printf) *AutoSaver {
	if delay <= 0 {
		delay = DefaultAutoSaveDelay
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &AutoSaver{delay: delay, save: save, logger: logger}
}

// Schedule replaces the pending snapshot and (re)arms the debounce timer.
func (a *AutoSaver) Schedule(progress Progress) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = &progress
	if a.inFlight {
		// The running write picks this up when it finishes.
		return
	}
	if a.timer != nil {
		if a.timer.Stop() {
			a.idle.Done()
		}
		a.timer = nil
	}
	a.idle.Add(1)
	a.timer = time.AfterFunc(a.delay, a.fire)
}

func (a *AutoSaver) fire() {
	defer a.idle.Done()
	a.mu.Lock()
	a.timer = nil
	if a.inFlight || a.pending == nil {
		a.mu.Unlock()
		return
	}
	progress := *a.pending
	a.pending = nil
	a.inFlight = true
	a.mu.Unlock()

	if err := a.save(progress); err != nil {
		a.logger.Printf("execution: auto-save %s: %v", progress.RequestID, err)
	}

	a.mu.Lock()
	a.inFlight = false
	again := a.pending != nil && !a.closed
	if again {
		a.idle.Add(1)
		a.timer = time.AfterFunc(0, a.fire)
	}
	a.mu.Unlock()
}

// Flush writes any pending snapshot immediately and waits for in-flight
// work to settle.
func (a *AutoSaver) Flush() {
	for {
		a.mu.Lock()
		if a.timer != nil && a.timer.Stop() {
			a.idle.Done()
			a.timer = nil
		}
		if a.inFlight {
			a.mu.Unlock()
			a.idle.Wait()
			continue
		}
		pending := a.pending
		a.pending = nil
		a.mu.Unlock()

		if pending != nil {
			if err := a.save(*pending); err != nil {
				a.logger.Printf("execution: auto-save %s: %v", pending.RequestID, err)
			}
		}
		a.idle.Wait()
		return
	}
}

// Close flushes and stops accepting further snapshots.
func (a *AutoSaver) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.Flush()
}
