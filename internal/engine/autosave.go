package engine

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is the persisted slice of a live session: the answer store, the
// flagged set, the active section and its remaining seconds.
type Snapshot struct {
	AttemptID        uint                     `json:"attemptId"`
	Subtes           string                   `json:"subtes"`
	RemainingSeconds int                      `json:"remainingSeconds"`
	Answers          map[uint]json.RawMessage `json:"answers"`
	Flagged          []uint                   `json:"flagged"`
}

// SaveFunc pushes a snapshot to the persistent store. It must honor ctx.
type SaveFunc func(ctx context.Context, snap Snapshot) error

// Autosave keeps the persistent copy of a session eventually consistent with
// the in-memory copy without blocking user interaction. Saves are triggered
// reactively on every mutation and additionally on a fixed interval. A failed
// or timed-out save leaves local state authoritative; the next trigger retries
// with the latest snapshot (last-write-wins, no queue buildup).
type Autosave struct {
	snapshot func() Snapshot
	save     SaveFunc
	timeout  time.Duration
	interval time.Duration

	trigger chan struct{}
	stop    chan struct{}
	done    chan struct{}

	saving   atomic.Bool
	stopOnce sync.Once

	mu      sync.Mutex
	lastErr error
	onErr   func(error)
}

// NewAutosave starts the agent's worker goroutine. interval <= 0 disables the
// periodic save, leaving only reactive triggers.
func NewAutosave(snapshot func() Snapshot, save SaveFunc, timeout, interval time.Duration) *Autosave {
	a := &Autosave{
		snapshot: snapshot,
		save:     save,
		timeout:  timeout,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// OnError registers an observer for save failures (metrics, logging).
func (a *Autosave) OnError(fn func(error)) {
	a.mu.Lock()
	a.onErr = fn
	a.mu.Unlock()
}

// Trigger requests a save of the latest state. Coalesces: a trigger arriving
// while one is already pending is absorbed, the pending save picks up the
// newest snapshot anyway.
func (a *Autosave) Trigger() {
	select {
	case a.trigger <- struct{}{}:
	default:
	}
}

// Saving reports whether a save is currently in flight.
func (a *Autosave) Saving() bool {
	return a.saving.Load()
}

// LastErr returns the failure of the most recent save, nil after a success.
func (a *Autosave) LastErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Flush performs one synchronous save with the caller's context. Used for the
// best-effort final save when a session closes.
func (a *Autosave) Flush(ctx context.Context) error {
	return a.doSave(ctx)
}

// Close stops the worker. It does not flush; callers flush first.
func (a *Autosave) Close() {
	a.stopOnce.Do(func() {
		close(a.stop)
	})
	<-a.done
}

func (a *Autosave) run() {
	defer close(a.done)

	var tick <-chan time.Time
	if a.interval > 0 {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-a.stop:
			return
		case <-a.trigger:
		case <-tick:
		}

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		_ = a.doSave(ctx)
		cancel()
	}
}

func (a *Autosave) doSave(ctx context.Context) error {
	a.saving.Store(true)
	err := a.save(ctx, a.snapshot())
	a.saving.Store(false)

	a.mu.Lock()
	a.lastErr = err
	onErr := a.onErr
	a.mu.Unlock()

	if err != nil && onErr != nil {
		onErr(err)
	}
	return err
}
