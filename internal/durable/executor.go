package durable

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/cascade/internal/ai"
	"github.com/ShayCichocki/cascade/internal/cascade"
	"github.com/ShayCichocki/cascade/internal/review"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// Executor runs a cascade with every tier attempt checkpointed through
// a Step host. Tier ordering, skip, retry, success-condition, and error
// semantics match the in-process engine; the difference is that the
// sequence of attempts is replay-safe. Events are re-emitted on replay
// since the sink is in-process.
type Executor[I, O any] struct {
	cfg cascade.Config[I, O]

	mu     sync.RWMutex
	ai     ai.Invoker
	review review.Handler
}

// New creates a durable Executor from the same configuration the
// in-process engine takes. The Review handler is invoked durably via
// the step primitive; the AI capability may also be attached later via
// SetAI.
func New[I, O any](cfg cascade.Config[I, O]) (*Executor[I, O], error) {
	// Reuse the engine's construction checks.
	if _, err := cascade.New(cfg); err != nil {
		return nil, err
	}
	return &Executor[I, O]{
		cfg:    cfg,
		ai:     cfg.AI,
		review: cfg.Review,
	}, nil
}

// SetAI attaches the model-invocation capability. Once attached it is
// visible to every tier's context for the remainder of the executor's
// lifetime.
func (e *Executor[I, O]) SetAI(inv ai.Invoker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ai = inv
}

// SetReviewHandler attaches the human-review handler.
func (e *Executor[I, O]) SetReviewHandler(h review.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.review = h
}

// attemptOutcome is the checkpointed result of one tier attempt. Tier
// failures are persisted as data, not as step errors, so replay returns
// the recorded failure instead of re-running the attempt.
type attemptOutcome[O any] struct {
	Output *O     `json:"output,omitempty"`
	Err    string `json:"error,omitempty"`
}

// StepName returns the deterministic checkpoint name for one tier
// attempt of a cascade, so replay reuses the correct checkpoint.
func StepName(cascadeName string, tier models.Tier, attempt int) string {
	return fmt.Sprintf("%s/%s/attempt-%d", cascadeName, tier, attempt)
}

// reviewStepName is the checkpoint name for the human-review call made
// during one tier attempt.
func reviewStepName(cascadeName string, tier models.Tier, attempt int) string {
	return StepName(cascadeName, tier, attempt) + "/review"
}

// Run executes the cascade for one input through the step host. On
// restart, re-invoking Run with the same step host replays completed
// attempts from their checkpoints and resumes where the previous
// process stopped.
func (e *Executor[I, O]) Run(ctx context.Context, step Step, input I) (*models.ExecutionResult[O], error) {
	start := time.Now()
	e.emit(models.Event{What: models.EventCascadeStart})

	runCtx := ctx
	if e.cfg.TotalTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, start.Add(e.cfg.TotalTimeout))
		defer cancel()
	}

	res, err := e.run(runCtx, step, input)

	// A deadline hit anywhere inside the loop surfaces as the cascade
	// timeout, matching the in-process engine's error model.
	if err != nil && e.cfg.TotalTimeout > 0 && runCtx.Err() != nil && ctx.Err() == nil {
		err = &cascade.CascadeTimeoutError{
			Cascade:  e.cfg.Name,
			Elapsed:  time.Since(start),
			Deadline: e.cfg.TotalTimeout,
		}
	}

	e.emit(models.Event{
		What: models.EventCascadeComplete,
		How:  map[string]any{"status": completionStatus(err)},
	})
	return res, err
}

func (e *Executor[I, O]) run(ctx context.Context, step Step, input I) (*models.ExecutionResult[O], error) {
	var history []models.TierAttemptRecord
	var skipped []models.Tier
	var prevErrors []models.TierError

	for _, tier := range models.TierOrder {
		def := e.cfg.Tiers.Get(tier)
		if def == nil {
			skipped = append(skipped, tier)
			continue
		}
		if cond := e.cfg.Skip.Get(tier); cond != nil && cond(input) {
			log.Printf("[durable] %s: skipping tier %s (skip condition)", e.cfg.Name, tier)
			skipped = append(skipped, tier)
			continue
		}

		value, attempts, err := e.runTier(ctx, step, tier, def, input, prevErrors)
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

		log.Printf("[durable] %s: tier %s failed after %d attempt(s): %v", e.cfg.Name, tier, attempts, err)

		if next, ok := e.cfg.NextConfigured(tier); ok {
			e.emit(models.Event{
				What: models.EscalationEventKind(next),
				Why:  err.Error(),
				How:  map[string]any{"from": string(tier), "attempts": attempts},
			})
		}
	}

	return nil, &cascade.AllTiersFailedError{Cascade: e.cfg.Name, History: history}
}

// runTier executes one tier under its retry policy, with each attempt
// checkpointed under its deterministic step name and inter-retry delays
// taken through the step host's durable sleep.
func (e *Executor[I, O]) runTier(ctx context.Context, step Step, tier models.Tier, def *cascade.TierDefinition[I, O], input I, prevErrors []models.TierError) (O, int, error) {
	spec := e.cfg.RetryFor(tier)
	timeout := e.cfg.TierTimeout(tier)
	maxAttempts := 1 + spec.MaxRetries

	var zero O
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tc := e.tierContext(ctx, step, tier, attempt, prevErrors)

		outcome, err := Do(ctx, step, StepName(e.cfg.Name, tier, attempt), func(ctx context.Context) (attemptOutcome[O], error) {
			return e.attempt(ctx, def, input, tc, timeout), nil
		})
		if err != nil {
			// Step host failure propagates as an ordinary tier failure
			// for the tier being attempted when it occurred.
			lastErr = fmt.Errorf("durable step failed: %w", err)
			if ctx.Err() != nil {
				return zero, attempt, ctx.Err()
			}
		} else if outcome.Err == "" {
			if outcome.Output != nil {
				return *outcome.Output, attempt, nil
			}
			return zero, attempt, nil
		} else {
			lastErr = errors.New(outcome.Err)
		}

		if attempt < maxAttempts {
			delay := spec.BaseDelay * time.Duration(attempt)
			log.Printf("[durable] %s: tier %s attempt %d failed, retrying in %s: %v", e.cfg.Name, tier, attempt, delay, lastErr)
			if err := step.Sleep(ctx, delay); err != nil {
				return zero, attempt, err
			}
		}
	}

	return zero, maxAttempts, lastErr
}

// attempt runs the tier body once inside a step callback, bounded by the
// per-attempt timeout. Failures, including timeouts and rejected
// outputs, are returned as data so the checkpoint records them.
func (e *Executor[I, O]) attempt(ctx context.Context, def *cascade.TierDefinition[I, O], input I, tc *cascade.TierContext, timeout time.Duration) attemptOutcome[O] {
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
		if r.err != nil {
			return attemptOutcome[O]{Err: r.err.Error()}
		}
		if def.SuccessCondition != nil && !def.SuccessCondition(r.out) {
			return attemptOutcome[O]{Err: fmt.Sprintf("tier %s: output rejected by success condition", tc.Tier)}
		}
		return attemptOutcome[O]{Output: &r.out}
	case <-runCtx.Done():
		if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return attemptOutcome[O]{Err: fmt.Sprintf("tier %s: attempt timed out after %s", tc.Tier, timeout)}
		}
		return attemptOutcome[O]{Err: runCtx.Err().Error()}
	}
}

// tierContext builds the fresh context for one tier attempt, wiring the
// late-bound AI capability and the durably invoked review handler.
func (e *Executor[I, O]) tierContext(_ context.Context, step Step, tier models.Tier, attempt int, prevErrors []models.TierError) *cascade.TierContext {
	e.mu.RLock()
	inv := e.ai
	handler := e.review
	e.mu.RUnlock()

	tc := &cascade.TierContext{
		Cascade:        e.cfg.Name,
		Tier:           tier,
		Attempt:        attempt,
		PreviousErrors: append([]models.TierError(nil), prevErrors...),
		AI:             inv,
	}

	if handler != nil {
		name := reviewStepName(e.cfg.Name, tier, attempt)
		tc.RequestHumanReview = func(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
			if req.ID == "" {
				req.ID = review.NewReviewID()
			}
			return Do(ctx, step, name, func(ctx context.Context) (models.ReviewResult, error) {
				return handler.Request(ctx, req)
			})
		}
	}

	return tc
}

// emit sends an event to the configured sink.
func (e *Executor[I, O]) emit(ev models.Event) {
	if e.cfg.OnEvent == nil {
		return
	}
	ev.Where = e.cfg.Name
	ev.Who = e.cfg.Actor
	if ev.When.IsZero() {
		ev.When = time.Now()
	}
	e.cfg.OnEvent(ev)
}

// completionStatus mirrors the in-process engine's cascade-complete
// status field.
func completionStatus(err error) string {
	if err == nil {
		return cascade.StatusCompleted
	}
	type kinder interface{ Kind() string }
	if k, ok := err.(kinder); ok {
		return k.Kind()
	}
	return "error"
}
