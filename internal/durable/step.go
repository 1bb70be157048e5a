// Package durable reimplements the cascade drive loop on top of an
// externally checkpointed step primitive, so a long-running cascade
// (including a human tier that may wait days) survives process restarts.
package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Step is the contract required from a durable execution host. Do must
// guarantee at-least-once, replay-deduplicated execution per distinct
// name: re-invoking a name whose callback already completed returns the
// persisted payload instead of running the callback again. Sleep and
// SleepUntil suspend without consuming process time across restarts.
type Step interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error)
	Sleep(ctx context.Context, d time.Duration) error
	SleepUntil(ctx context.Context, t time.Time) error
}

// Do executes fn through the step host with a JSON round-trip, so typed
// results can be checkpointed and replayed.
func Do[T any](ctx context.Context, step Step, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := step.Do(ctx, name, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode step %s result: %w", name, err)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("decode step %s result: %w", name, err)
	}
	return out, nil
}
