package cascade

import (
	"context"
	"time"

	"github.com/ShayCichocki/cascade/internal/ai"
	"github.com/ShayCichocki/cascade/internal/review"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// DefaultBaseDelay is the inter-retry delay used when a tier has
// retries configured without an explicit base delay.
const DefaultBaseDelay = 100 * time.Millisecond

// TierDefinition describes the behavior of a single tier.
type TierDefinition[I, O any] struct {
	// Label is a human-readable tier label used in logs.
	Label string
	// Execute produces an output from the input. Required.
	Execute func(ctx context.Context, input I, tc *TierContext) (O, error)
	// SuccessCondition judges an output that Execute produced without
	// error. Nil means any produced output is accepted. Returning false
	// is treated identically to Execute returning an error.
	SuccessCondition func(output O) bool
	// OnError is invoked once when the tier terminally fails, after
	// retries are exhausted. Optional.
	OnError func(err error, tier models.Tier)
}

// Tiers holds the per-tier behaviors of a cascade. A nil slot means the
// tier is not configured and is skipped without being treated as failed.
// One explicit field per tier keeps the four fixed tiers exhaustive at
// compile time.
type Tiers[I, O any] struct {
	Code       *TierDefinition[I, O]
	Generative *TierDefinition[I, O]
	Agentic    *TierDefinition[I, O]
	Human      *TierDefinition[I, O]
}

// Get returns the definition for the given tier, or nil if unconfigured.
func (t *Tiers[I, O]) Get(tier models.Tier) *TierDefinition[I, O] {
	switch tier {
	case models.TierCode:
		return t.Code
	case models.TierGenerative:
		return t.Generative
	case models.TierAgentic:
		return t.Agentic
	case models.TierHuman:
		return t.Human
	default:
		return nil
	}
}

// SkipConditions holds optional per-tier predicates over the input.
// A predicate returning true bypasses its tier for that run.
type SkipConditions[I any] struct {
	Code       func(input I) bool
	Generative func(input I) bool
	Agentic    func(input I) bool
	Human      func(input I) bool
}

// Get returns the skip condition for the given tier, or nil.
func (s *SkipConditions[I]) Get(tier models.Tier) func(I) bool {
	if s == nil {
		return nil
	}
	switch tier {
	case models.TierCode:
		return s.Code
	case models.TierGenerative:
		return s.Generative
	case models.TierAgentic:
		return s.Agentic
	case models.TierHuman:
		return s.Human
	default:
		return nil
	}
}

// RetrySpec configures retries for one tier. The attempt count is
// 1 + MaxRetries; the delay before retry n is BaseDelay * n.
type RetrySpec struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry. Defaults to
	// DefaultBaseDelay when zero and retries are configured.
	BaseDelay time.Duration
}

// RetryConfig holds optional per-tier retry specs. A nil slot means
// no retries for that tier.
type RetryConfig struct {
	Code       *RetrySpec
	Generative *RetrySpec
	Agentic    *RetrySpec
	Human      *RetrySpec
}

// Get returns the retry spec for the given tier, or nil.
func (r *RetryConfig) Get(tier models.Tier) *RetrySpec {
	if r == nil {
		return nil
	}
	switch tier {
	case models.TierCode:
		return r.Code
	case models.TierGenerative:
		return r.Generative
	case models.TierAgentic:
		return r.Agentic
	case models.TierHuman:
		return r.Human
	default:
		return nil
	}
}

// Timeouts holds explicit per-tier attempt timeouts. Zero means
// unbounded for that tier unless the cascade opts into defaults.
type Timeouts struct {
	Code       time.Duration
	Generative time.Duration
	Agentic    time.Duration
	Human      time.Duration
}

// Get returns the timeout for the given tier.
func (t *Timeouts) Get(tier models.Tier) time.Duration {
	if t == nil {
		return 0
	}
	switch tier {
	case models.TierCode:
		return t.Code
	case models.TierGenerative:
		return t.Generative
	case models.TierAgentic:
		return t.Agentic
	case models.TierHuman:
		return t.Human
	default:
		return 0
	}
}

// Config describes one cascade: its name, tier behaviors, and policy.
// A Config is captured at construction and never mutated by the engine.
type Config[I, O any] struct {
	// Name identifies the cascade and is used as the event "where".
	// Required.
	Name string
	// Actor is an optional identity reported as the event "who".
	Actor string
	// Tiers holds the per-tier behaviors. At least one tier must be set.
	Tiers Tiers[I, O]
	// Skip holds optional per-tier skip conditions.
	Skip *SkipConditions[I]
	// Retry holds optional per-tier retry specs.
	Retry *RetryConfig
	// Timeouts holds explicit per-tier attempt timeouts.
	Timeouts *Timeouts
	// UseDefaultTimeouts applies models.DefaultTierTimeouts to any tier
	// without an explicit timeout.
	UseDefaultTimeouts bool
	// TotalTimeout bounds the whole run. Zero means unbounded. This is a
	// best-effort deadline on the observable result, not a preemption of
	// an in-flight tier body.
	TotalTimeout time.Duration
	// OnEvent receives lifecycle events. Invoked synchronously. Optional.
	OnEvent func(models.Event)
	// AI is the model-invocation capability exposed to tier bodies.
	// Optional.
	AI ai.Invoker
	// Review is the human-review handler exposed to tier bodies via
	// TierContext.RequestHumanReview. Optional.
	Review review.Handler
}

// TierTimeout resolves the effective attempt timeout for a tier:
// the explicit value, else the fixed default when opted in, else zero.
func (c *Config[I, O]) TierTimeout(tier models.Tier) time.Duration {
	if d := c.Timeouts.Get(tier); d > 0 {
		return d
	}
	if c.UseDefaultTimeouts {
		return models.DefaultTierTimeouts[tier]
	}
	return 0
}

// RetryFor resolves the effective retry spec for a tier. The zero
// spec means a single attempt.
func (c *Config[I, O]) RetryFor(tier models.Tier) RetrySpec {
	spec := c.Retry.Get(tier)
	if spec == nil {
		return RetrySpec{}
	}
	out := *spec
	if out.MaxRetries > 0 && out.BaseDelay <= 0 {
		out.BaseDelay = DefaultBaseDelay
	}
	return out
}

// NextConfigured returns the first configured tier after the given one.
func (c *Config[I, O]) NextConfigured(tier models.Tier) (models.Tier, bool) {
	for next, ok := tier.Next(); ok; next, ok = next.Next() {
		if c.Tiers.Get(next) != nil {
			return next, true
		}
	}
	return "", false
}
