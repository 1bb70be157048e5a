package sqlitestep

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// RunSteps is the durable.Step view of one cascade run. All step names
// are deduplicated within the run; sleeps are numbered in call order so
// a replayed run resumes the same wake deadlines.
type RunSteps struct {
	db    *DB
	runID string

	mu       sync.Mutex
	sleepSeq int

	// now is swappable for tests.
	now func() time.Time
}

// ForRun returns the step host view for the given run ID. Re-invoking
// with the same run ID after a restart replays the run's checkpoints.
func (db *DB) ForRun(runID string) *RunSteps {
	return &RunSteps{
		db:    db,
		runID: runID,
		now:   time.Now,
	}
}

// RunID returns the run this view belongs to.
func (r *RunSteps) RunID() string {
	return r.runID
}

// Do executes fn durably under the given name. If a result for the name
// is already persisted it is returned without running fn. A callback
// error is not persisted: the step stays open and runs again on the
// next invocation, giving at-least-once execution.
func (r *RunSteps) Do(ctx context.Context, name string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if raw, ok, err := r.lookup(name); err != nil {
		return nil, err
	} else if ok {
		return raw, nil
	}

	raw, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.persist(name, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// lookup fetches a persisted step result.
func (r *RunSteps) lookup(name string) ([]byte, bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var raw []byte
	row := r.db.conn.QueryRow("SELECT result FROM steps WHERE run_id = ? AND name = ?", r.runID, name)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("lookup step %s: %w", name, err)
	}
	return raw, true, nil
}

// persist stores a completed step result. A concurrent writer winning
// the race is fine: the stored payload is authoritative either way.
func (r *RunSteps) persist(name string, raw []byte) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	_, err := r.db.conn.Exec(`
		INSERT OR IGNORE INTO steps (run_id, name, result, created_at)
		VALUES (?, ?, ?, ?)
	`, r.runID, name, raw, formatTime(r.now()))
	if err != nil {
		return fmt.Errorf("persist step %s: %w", name, err)
	}
	return nil
}

// Sleep suspends the run for the given duration. The wake deadline is
// persisted on first call, so a restarted process waits only the
// remainder instead of starting over.
func (r *RunSteps) Sleep(ctx context.Context, d time.Duration) error {
	return r.SleepUntil(ctx, r.now().Add(d))
}

// SleepUntil suspends the run until the given time, surviving restarts
// via the persisted wake deadline.
func (r *RunSteps) SleepUntil(ctx context.Context, t time.Time) error {
	r.mu.Lock()
	r.sleepSeq++
	seq := r.sleepSeq
	r.mu.Unlock()

	wake, err := r.wakeDeadline(seq, t)
	if err != nil {
		return err
	}

	remaining := time.Until(wake)
	if remaining <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wakeDeadline returns the persisted wake time for this sleep sequence,
// storing the proposed deadline if none exists yet.
func (r *RunSteps) wakeDeadline(seq int, proposed time.Time) (time.Time, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var stored string
	row := r.db.conn.QueryRow("SELECT wake_at FROM sleeps WHERE run_id = ? AND seq = ?", r.runID, seq)
	err := row.Scan(&stored)
	if err == nil {
		t, perr := parseTime(stored)
		if perr != nil {
			return time.Time{}, fmt.Errorf("parse wake deadline: %w", perr)
		}
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("lookup sleep %d: %w", seq, err)
	}

	if _, err := r.db.conn.Exec(`
		INSERT OR IGNORE INTO sleeps (run_id, seq, wake_at)
		VALUES (?, ?, ?)
	`, r.runID, seq, formatTime(proposed)); err != nil {
		return time.Time{}, fmt.Errorf("persist sleep %d: %w", seq, err)
	}
	return proposed, nil
}
