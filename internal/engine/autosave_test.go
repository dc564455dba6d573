package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// saveRecorder is a SaveFunc that records every snapshot it receives and can
// be switched into a failure mode.
type saveRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
	calls chan struct{}
}

func newSaveRecorder() *saveRecorder {
	return &saveRecorder{calls: make(chan struct{}, 16)}
}

func (r *saveRecorder) save(ctx context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
	select {
	case r.calls <- struct{}{}:
	default:
	}
	return r.err
}

func (r *saveRecorder) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

func (r *saveRecorder) last() (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

func (r *saveRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.calls:
	case <-time.After(time.Second):
		t.Fatal("save never invoked")
	}
}

func TestAutosaveTriggerPicksUpLatestState(t *testing.T) {
	var mu sync.Mutex
	remaining := 100

	rec := newSaveRecorder()
	snapshot := func() Snapshot {
		mu.Lock()
		defer mu.Unlock()
		return Snapshot{AttemptID: 1, RemainingSeconds: remaining}
	}

	a := NewAutosave(snapshot, rec.save, time.Second, 0)
	defer a.Close()

	a.Trigger()
	rec.wait(t)

	mu.Lock()
	remaining = 50
	mu.Unlock()
	a.Trigger()
	rec.wait(t)

	snap, ok := rec.last()
	if !ok || snap.RemainingSeconds != 50 {
		t.Errorf("last saved snapshot = %+v, want RemainingSeconds 50", snap)
	}
	if a.LastErr() != nil {
		t.Errorf("LastErr() = %v after successful save", a.LastErr())
	}
}

func TestAutosaveFailureRetainsLocalStateAndRetries(t *testing.T) {
	var mu sync.Mutex
	answers := map[uint]json.RawMessage{1: json.RawMessage(`0`)}

	rec := newSaveRecorder()
	snapshot := func() Snapshot {
		mu.Lock()
		defer mu.Unlock()
		copied := make(map[uint]json.RawMessage, len(answers))
		for k, v := range answers {
			copied[k] = v
		}
		return Snapshot{AttemptID: 1, Answers: copied}
	}

	a := NewAutosave(snapshot, rec.save, time.Second, 0)
	defer a.Close()

	var observed error
	var obsMu sync.Mutex
	a.OnError(func(err error) {
		obsMu.Lock()
		observed = err
		obsMu.Unlock()
	})

	saveErr := errors.New("store unavailable")
	rec.fail(saveErr)
	a.Trigger()
	rec.wait(t)

	if !errors.Is(a.LastErr(), saveErr) {
		t.Errorf("LastErr() = %v, want the save failure", a.LastErr())
	}
	obsMu.Lock()
	if !errors.Is(observed, saveErr) {
		t.Errorf("observer got %v, want the save failure", observed)
	}
	obsMu.Unlock()

	// local answers keep accumulating while saves fail
	mu.Lock()
	answers[2] = json.RawMessage(`"baru"`)
	mu.Unlock()

	rec.fail(nil)
	a.Trigger()
	rec.wait(t)

	snap, _ := rec.last()
	if len(snap.Answers) != 2 {
		t.Errorf("retry snapshot has %d answers, want 2", len(snap.Answers))
	}
	if a.LastErr() != nil {
		t.Errorf("LastErr() = %v after recovery", a.LastErr())
	}
}

func TestAutosaveTimeoutSurfacesContextError(t *testing.T) {
	slow := func(ctx context.Context, snap Snapshot) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}

	a := NewAutosave(func() Snapshot { return Snapshot{} }, slow, 10*time.Millisecond, 0)
	defer a.Close()

	a.Trigger()

	deadline := time.Now().Add(time.Second)
	for {
		if errors.Is(a.LastErr(), context.DeadlineExceeded) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("LastErr() = %v, want deadline exceeded", a.LastErr())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAutosavePeriodicInterval(t *testing.T) {
	rec := newSaveRecorder()
	a := NewAutosave(func() Snapshot { return Snapshot{AttemptID: 1} }, rec.save, time.Second, 10*time.Millisecond)
	defer a.Close()

	// no explicit trigger, the ticker alone drives saves
	rec.wait(t)
	rec.wait(t)
}

func TestAutosaveFlushUsesCallerContext(t *testing.T) {
	rec := newSaveRecorder()
	a := NewAutosave(func() Snapshot { return Snapshot{AttemptID: 7} }, rec.save, time.Second, 0)
	defer a.Close()

	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	snap, ok := rec.last()
	if !ok || snap.AttemptID != 7 {
		t.Errorf("flushed snapshot = %+v", snap)
	}
}
