package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/cascade/internal/cascade"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// Duration wraps time.Duration with YAML support for "5s"-style values.
type Duration time.Duration

// UnmarshalYAML parses a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("invalid duration value at line %d", value.Line)
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Policy is a per-cascade policy file: named retry, timeout, and skip
// settings for each tier, loaded from YAML. It configures policy only;
// tier behaviors are supplied in code.
type Policy struct {
	// Name is the cascade name.
	Name string `yaml:"name"`
	// Actor is the event actor identity.
	Actor string `yaml:"actor"`
	// TotalTimeout bounds the whole run.
	TotalTimeout Duration `yaml:"total_timeout"`
	// UseDefaultTimeouts applies the fixed per-tier timeout table.
	UseDefaultTimeouts bool `yaml:"use_default_timeouts"`
	// Tiers holds per-tier policy keyed by tier name.
	Tiers map[string]TierPolicy `yaml:"tiers"`
}

// TierPolicy holds policy for one tier.
type TierPolicy struct {
	// Label is a human-readable tier label.
	Label string `yaml:"label"`
	// Timeout bounds each attempt. Zero means unbounded.
	Timeout Duration `yaml:"timeout"`
	// MaxRetries is the retry count after the first attempt.
	MaxRetries int `yaml:"max_retries"`
	// BaseDelay is the delay before the first retry.
	BaseDelay Duration `yaml:"base_delay"`
}

// LoadPolicy reads and validates a cascade policy file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	if p.Name == "" {
		return nil, fmt.Errorf("policy file %s: name is required", path)
	}
	for tierName := range p.Tiers {
		if !models.Tier(tierName).Valid() {
			return nil, fmt.Errorf("policy file %s: unknown tier %q", path, tierName)
		}
	}

	return &p, nil
}

// Timeouts converts the policy's per-tier timeouts.
func (p *Policy) Timeouts() *cascade.Timeouts {
	t := &cascade.Timeouts{}
	for tierName, tp := range p.Tiers {
		switch models.Tier(tierName) {
		case models.TierCode:
			t.Code = tp.Timeout.Std()
		case models.TierGenerative:
			t.Generative = tp.Timeout.Std()
		case models.TierAgentic:
			t.Agentic = tp.Timeout.Std()
		case models.TierHuman:
			t.Human = tp.Timeout.Std()
		}
	}
	return t
}

// Retry converts the policy's per-tier retry settings. Tiers without
// retries configured get no spec.
func (p *Policy) Retry() *cascade.RetryConfig {
	r := &cascade.RetryConfig{}
	for tierName, tp := range p.Tiers {
		if tp.MaxRetries <= 0 {
			continue
		}
		spec := &cascade.RetrySpec{
			MaxRetries: tp.MaxRetries,
			BaseDelay:  tp.BaseDelay.Std(),
		}
		switch models.Tier(tierName) {
		case models.TierCode:
			r.Code = spec
		case models.TierGenerative:
			r.Generative = spec
		case models.TierAgentic:
			r.Agentic = spec
		case models.TierHuman:
			r.Human = spec
		}
	}
	return r
}
