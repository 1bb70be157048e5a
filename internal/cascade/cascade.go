// Package cascade implements a tiered escalation executor: an ordered
// chain of execution strategies (code, generative, agentic, human) that
// tries cheaper tiers first and escalates on failure.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// Cascade executes tiers in the fixed escalation order for one input
// per Execute call. A Cascade holds no cross-run state beyond its
// configuration; concurrent Execute calls are independent.
type Cascade[I, O any] struct {
	cfg Config[I, O]
}

// New creates a Cascade from the given configuration.
func New[I, O any](cfg Config[I, O]) (*Cascade[I, O], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("cascade name is required")
	}
	configured := 0
	for _, tier := range models.TierOrder {
		if def := cfg.Tiers.Get(tier); def != nil {
			if def.Execute == nil {
				return nil, fmt.Errorf("tier %s: execute function is required", tier)
			}
			configured++
		}
	}
	if configured == 0 {
		return nil, fmt.Errorf("cascade %s: at least one tier must be configured", cfg.Name)
	}
	return &Cascade[I, O]{cfg: cfg}, nil
}

// Name returns the cascade name.
func (c *Cascade[I, O]) Name() string {
	return c.cfg.Name
}

// Execute runs the cascade for one input. It returns the first accepted
// tier output, or an *AllTiersFailedError when every configured tier is
// exhausted, or a *CascadeTimeoutError when the total timeout elapses
// first. A timed-out run does not preempt an in-flight tier body; the
// body may continue running in the background until it observes its
// context.
func (c *Cascade[I, O]) Execute(ctx context.Context, input I) (*models.ExecutionResult[O], error) {
	start := time.Now()
	c.emit(models.Event{What: models.EventCascadeStart})

	res, err := c.runWithDeadline(ctx, input, start)

	c.emit(models.Event{
		What: models.EventCascadeComplete,
		How:  map[string]any{"status": errorKind(err)},
	})
	return res, err
}

// runWithDeadline races the tier loop against the configured total
// timeout, if any.
func (c *Cascade[I, O]) runWithDeadline(ctx context.Context, input I, start time.Time) (*models.ExecutionResult[O], error) {
	if c.cfg.TotalTimeout <= 0 {
		return c.run(ctx, input)
	}

	type outcome struct {
		res *models.ExecutionResult[O]
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := c.run(ctx, input)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(c.cfg.TotalTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.res, o.err
	case <-timer.C:
		return nil, &CascadeTimeoutError{
			Cascade:  c.cfg.Name,
			Elapsed:  time.Since(start),
			Deadline: c.cfg.TotalTimeout,
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run iterates tiers in the fixed order, applying skip conditions,
// retry, timeouts, and escalation.
func (c *Cascade[I, O]) run(ctx context.Context, input I) (*models.ExecutionResult[O], error) {
	var history []models.TierAttemptRecord
	var skipped []models.Tier
	var prevErrors []models.TierError

	for _, tier := range models.TierOrder {
		def := c.cfg.Tiers.Get(tier)
		if def == nil {
			skipped = append(skipped, tier)
			continue
		}
		if cond := c.cfg.Skip.Get(tier); cond != nil && cond(input) {
			log.Printf("[cascade] %s: skipping tier %s (skip condition)", c.cfg.Name, tier)
			skipped = append(skipped, tier)
			continue
		}

		value, attempts, err := c.runTier(ctx, tier, def, input, prevErrors)
		if err == nil {
			history = append(history, models.TierAttemptRecord{
				Tier:     tier,
				Success:  true,
				Attempts: attempts,
			})
			return &models.ExecutionResult[O]{
				Value:        value,
				Tier:         tier,
				History:      history,
				SkippedTiers: skipped,
			}, nil
		}

		// Caller cancellation aborts the run rather than escalating.
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil, err
		}

		history = append(history, models.TierAttemptRecord{
			Tier:     tier,
			Success:  false,
			Attempts: attempts,
			Error:    err.Error(),
		})
		prevErrors = append(prevErrors, models.TierError{Tier: tier, Message: err.Error()})

		if def.OnError != nil {
			def.OnError(err, tier)
		}

		log.Printf("[cascade] %s: tier %s failed after %d attempt(s): %v", c.cfg.Name, tier, attempts, err)

		if next, ok := c.cfg.NextConfigured(tier); ok {
			c.emit(models.Event{
				What: models.EscalationEventKind(next),
				Why:  err.Error(),
				How:  map[string]any{"from": string(tier), "attempts": attempts},
			})
		}
	}

	return nil, &AllTiersFailedError{Cascade: c.cfg.Name, History: history}
}

// runTier executes one tier under its retry policy. It returns the
// accepted output, the number of attempts taken, and the terminal error
// if the tier failed.
func (c *Cascade[I, O]) runTier(ctx context.Context, tier models.Tier, def *TierDefinition[I, O], input I, prevErrors []models.TierError) (O, int, error) {
	spec := c.cfg.RetryFor(tier)
	timeout := c.cfg.TierTimeout(tier)
	maxAttempts := 1 + spec.MaxRetries

	var zero O
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tc := c.tierContext(tier, attempt, prevErrors)

		out, err := c.attempt(ctx, def, input, tc, timeout)
		if err == nil {
			if def.SuccessCondition == nil || def.SuccessCondition(out) {
				return out, attempt, nil
			}
			err = fmt.Errorf("tier %s: output rejected by success condition", tier)
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}

		if attempt < maxAttempts {
			delay := spec.BaseDelay * time.Duration(attempt)
			log.Printf("[cascade] %s: tier %s attempt %d failed, retrying in %s: %v", c.cfg.Name, tier, attempt, delay, err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return zero, attempt, ctx.Err()
			}
		}
	}

	return zero, maxAttempts, lastErr
}

// tierContext builds the fresh context for one tier attempt.
func (c *Cascade[I, O]) tierContext(tier models.Tier, attempt int, prevErrors []models.TierError) *TierContext {
	tc := &TierContext{
		Cascade:        c.cfg.Name,
		Tier:           tier,
		Attempt:        attempt,
		PreviousErrors: append([]models.TierError(nil), prevErrors...),
		AI:             c.cfg.AI,
	}
	if c.cfg.Review != nil {
		handler := c.cfg.Review
		tc.RequestHumanReview = func(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
			return handler.Request(ctx, req)
		}
	}
	return tc
}

// attempt runs the tier body once, bounded by the per-attempt timeout.
// The timeout cancels only the wait: the body keeps running until it
// observes the canceled context.
func (c *Cascade[I, O]) attempt(ctx context.Context, def *TierDefinition[I, O], input I, tc *TierContext, timeout time.Duration) (O, error) {
	var zero O

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		out O
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("tier %s panicked: %v", tc.Tier, r)}
			}
		}()
		out, err := def.Execute(runCtx, input, tc)
		done <- result{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-runCtx.Done():
		if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("tier %s: attempt timed out after %s", tc.Tier, timeout)
		}
		return zero, ctx.Err()
	}
}

// emit sends an event to the configured sink, filling in the cascade
// identity and default timestamp.
func (c *Cascade[I, O]) emit(ev models.Event) {
	if c.cfg.OnEvent == nil {
		return
	}
	ev.Where = c.cfg.Name
	ev.Who = c.cfg.Actor
	if ev.When.IsZero() {
		ev.When = time.Now()
	}
	c.cfg.OnEvent(ev)
}
