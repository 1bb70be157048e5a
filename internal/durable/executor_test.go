package durable

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/cascade/internal/ai"
	"github.com/ShayCichocki/cascade/internal/cascade"
	"github.com/ShayCichocki/cascade/internal/review"
	"github.com/ShayCichocki/cascade/pkg/models"
)

type fakeInvoker struct{}

func (fakeInvoker) Run(ctx context.Context, model string, params ai.Params) (*ai.Result, error) {
	return &ai.Result{Response: "ok"}, nil
}

// memStep is an in-memory Step host. Sleeps return immediately but are
// recorded so tests can assert on the requested delays.
type memStep struct {
	mu     sync.Mutex
	store  map[string][]byte
	calls  map[string]int
	sleeps []time.Duration

	// failNames makes Do fail as a host error for matching names.
	failNames map[string]bool
}

func newMemStep() *memStep {
	return &memStep{
		store:     make(map[string][]byte),
		calls:     make(map[string]int),
		failNames: make(map[string]bool),
	}
}

func (m *memStep) Do(ctx context.Context, name string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	m.mu.Lock()
	if m.failNames[name] {
		m.mu.Unlock()
		return nil, fmt.Errorf("host unavailable for %s", name)
	}
	if raw, ok := m.store[name]; ok {
		m.mu.Unlock()
		return raw, nil
	}
	m.calls[name]++
	m.mu.Unlock()

	raw, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.store[name] = raw
	m.mu.Unlock()
	return raw, nil
}

func (m *memStep) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	m.sleeps = append(m.sleeps, d)
	m.mu.Unlock()
	return ctx.Err()
}

func (m *memStep) SleepUntil(ctx context.Context, t time.Time) error {
	return m.Sleep(ctx, time.Until(t))
}

func (m *memStep) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memStep) has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.store[name]
	return ok
}

func TestStepName(t *testing.T) {
	got := StepName("orders", models.TierGenerative, 2)
	if got != "orders/generative/attempt-2" {
		t.Errorf("StepName = %q", got)
	}
	if rn := reviewStepName("orders", models.TierHuman, 1); rn != "orders/human/attempt-1/review" {
		t.Errorf("reviewStepName = %q", rn)
	}
}

func TestRun_CodeTierSucceeds(t *testing.T) {
	ex, err := New(cascade.Config[int, int]{
		Name: "double",
		Tiers: cascade.Tiers[int, int]{
			Code: &cascade.TierDefinition[int, int]{
				Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
					return input * 2, nil
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	step := newMemStep()
	res, err := ex.Run(context.Background(), step, 21)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Value != 42 || res.Tier != models.TierCode {
		t.Errorf("got tier %v value %d, want code 42", res.Tier, res.Value)
	}
	if !step.has("double/code/attempt-1") {
		t.Error("attempt checkpoint was not persisted")
	}
}

func TestRun_ReplayDoesNotRerunAttempts(t *testing.T) {
	cfg := func(codeCalls, genCalls *int) cascade.Config[int, int] {
		return cascade.Config[int, int]{
			Name: "replayed",
			Tiers: cascade.Tiers[int, int]{
				Code: &cascade.TierDefinition[int, int]{
					Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
						*codeCalls++
						return 0, errors.New("code broke")
					},
				},
				Generative: &cascade.TierDefinition[int, int]{
					Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
						*genCalls++
						return input * 3, nil
					},
				},
			},
		}
	}

	step := newMemStep()

	var code1, gen1 int
	ex, err := New(cfg(&code1, &gen1))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := ex.Run(context.Background(), step, 10)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Value != 30 || code1 != 1 || gen1 != 1 {
		t.Fatalf("first run: value %d, code calls %d, gen calls %d", res.Value, code1, gen1)
	}

	// A fresh executor over the same step host replays checkpoints and
	// never re-runs the bodies, yet returns the same result including
	// the recorded code failure.
	var code2, gen2 int
	ex2, err := New(cfg(&code2, &gen2))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res2, err := ex2.Run(context.Background(), step, 10)
	if err != nil {
		t.Fatalf("replay Run() error: %v", err)
	}
	if code2 != 0 || gen2 != 0 {
		t.Errorf("replay re-ran bodies: code %d, gen %d", code2, gen2)
	}
	if res2.Value != 30 || res2.Tier != models.TierGenerative {
		t.Errorf("replay result = tier %v value %d", res2.Tier, res2.Value)
	}
	if len(res2.History) != 2 || res2.History[0].Error != "code broke" {
		t.Errorf("replay history = %+v, want recorded code failure", res2.History)
	}
}

func TestRun_RetryUsesDurableSleep(t *testing.T) {
	var calls int
	ex, err := New(cascade.Config[int, int]{
		Name: "flaky",
		Tiers: cascade.Tiers[int, int]{
			Code: &cascade.TierDefinition[int, int]{
				Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
					calls++
					if calls < 3 {
						return 0, errors.New("transient")
					}
					return input, nil
				},
			},
		},
		Retry: &cascade.RetryConfig{
			Code: &cascade.RetrySpec{MaxRetries: 2, BaseDelay: 50 * time.Millisecond},
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	step := newMemStep()
	res, err := ex.Run(context.Background(), step, 9)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.History[0].Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.History[0].Attempts)
	}

	// Linear backoff: 50ms then 100ms, taken through the step host.
	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}
	if len(step.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", step.sleeps, want)
	}
	for i := range want {
		if step.sleeps[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, step.sleeps[i], want[i])
		}
	}

	// Each attempt has its own checkpoint name.
	for i := 1; i <= 3; i++ {
		if !step.has(StepName("flaky", models.TierCode, i)) {
			t.Errorf("missing checkpoint for attempt %d", i)
		}
	}
}

func TestRun_StepHostFailureEscalates(t *testing.T) {
	ex, err := New(cascade.Config[int, int]{
		Name: "hostfail",
		Tiers: cascade.Tiers[int, int]{
			Code: &cascade.TierDefinition[int, int]{
				Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
					return input, nil
				},
			},
			Generative: &cascade.TierDefinition[int, int]{
				Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
					return input * 3, nil
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	step := newMemStep()
	step.failNames[StepName("hostfail", models.TierCode, 1)] = true

	res, err := ex.Run(context.Background(), step, 10)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Tier != models.TierGenerative {
		t.Errorf("Tier = %v, want generative after host failure on code", res.Tier)
	}
	if !strings.Contains(res.History[0].Error, "durable step failed") {
		t.Errorf("History[0].Error = %q", res.History[0].Error)
	}
}

func TestRun_SetAIVisibleToTiers(t *testing.T) {
	var sawAI bool
	ex, err := New(cascade.Config[int, int]{
		Name: "late-ai",
		Tiers: cascade.Tiers[int, int]{
			Generative: &cascade.TierDefinition[int, int]{
				Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
					sawAI = tc.AI != nil
					return input, nil
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ex.SetAI(fakeInvoker{})

	if _, err := ex.Run(context.Background(), newMemStep(), 1); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !sawAI {
		t.Error("tier context did not see the late-bound AI capability")
	}
}

func TestRun_HumanReviewIsCheckpointed(t *testing.T) {
	handler := review.NewMemoryHandler()

	mkExec := func(reviewCalls *int) *Executor[int, string] {
		ex, err := New(cascade.Config[int, string]{
			Name: "approval",
			Tiers: cascade.Tiers[int, string]{
				Human: &cascade.TierDefinition[int, string]{
					Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (string, error) {
						*reviewCalls++
						res, err := tc.RequestHumanReview(ctx, models.ReviewRequest{
							ID:      "rv-fixed",
							Cascade: tc.Cascade,
							Summary: "manual check",
						})
						if err != nil {
							return "", err
						}
						if !res.Approved() {
							return "", fmt.Errorf("review rejected: %s", res.Comment)
						}
						return res.Comment, nil
					},
				},
			},
			Review: handler,
		})
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		return ex
	}

	// Answer the review as soon as it shows up.
	go func() {
		for {
			if ids := handler.Pending(); len(ids) > 0 {
				handler.Respond(models.ReviewResult{
					ReviewID: ids[0],
					Status:   models.ReviewStatusApproved,
					Comment:  "ship it",
				})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	step := newMemStep()
	var calls1 int
	res, err := mkExec(&calls1).Run(context.Background(), step, 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Value != "ship it" || res.Tier != models.TierHuman {
		t.Errorf("got tier %v value %q", res.Tier, res.Value)
	}
	if !step.has("approval/human/attempt-1/review") {
		t.Error("review decision was not checkpointed")
	}

	// Replay: the decision comes from the checkpoint, so nobody waits on
	// the handler again.
	var calls2 int
	res2, err := mkExec(&calls2).Run(context.Background(), step, 1)
	if err != nil {
		t.Fatalf("replay Run() error: %v", err)
	}
	if calls2 != 0 {
		t.Errorf("replay re-ran the human tier body %d time(s)", calls2)
	}
	if res2.Value != "ship it" {
		t.Errorf("replay value = %q, want %q", res2.Value, "ship it")
	}
}

func TestRun_TotalTimeout(t *testing.T) {
	ex, err := New(cascade.Config[int, int]{
		Name:         "deadline",
		TotalTimeout: 30 * time.Millisecond,
		Tiers: cascade.Tiers[int, int]{
			Code: &cascade.TierDefinition[int, int]{
				Execute: func(ctx context.Context, input int, tc *cascade.TierContext) (int, error) {
					select {
					case <-time.After(5 * time.Second):
						return input, nil
					case <-ctx.Done():
						return 0, ctx.Err()
					}
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	_, err = ex.Run(context.Background(), newMemStep(), 1)
	var cte *cascade.CascadeTimeoutError
	if !errors.As(err, &cte) {
		t.Fatalf("Run() error = %v, want *CascadeTimeoutError", err)
	}
	if cte.Deadline != 30*time.Millisecond {
		t.Errorf("Deadline = %v", cte.Deadline)
	}
}
