package models

import "time"

// Tier represents one escalation stage of a cascade.
// Tiers are ordered cheapest-to-most-expensive and the order never changes.
type Tier string

const (
	// TierCode is deterministic code execution, tried first.
	TierCode Tier = "code"
	// TierGenerative is a single model invocation.
	TierGenerative Tier = "generative"
	// TierAgentic is a multi-step agent loop.
	TierAgentic Tier = "agentic"
	// TierHuman is human review, the last resort.
	TierHuman Tier = "human"
)

// TierOrder is the fixed escalation order. Callers may rely on the
// exact contents and ordering of this list.
var TierOrder = []Tier{TierCode, TierGenerative, TierAgentic, TierHuman}

// DefaultTierTimeouts is the fixed per-tier attempt timeout table used
// when a cascade opts into default timeouts. Callers may rely on the
// exact values.
var DefaultTierTimeouts = map[Tier]time.Duration{
	TierCode:       5 * time.Second,
	TierGenerative: 30 * time.Second,
	TierAgentic:    5 * time.Minute,
	TierHuman:      24 * time.Hour,
}

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierCode, TierGenerative, TierAgentic, TierHuman:
		return true
	default:
		return false
	}
}

// String returns the tier name.
func (t Tier) String() string {
	return string(t)
}

// Index returns the tier's position in the escalation order,
// or -1 for an unknown tier.
func (t Tier) Index() int {
	for i, tier := range TierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// Next returns the tier that follows t in the escalation order.
// The second return value is false when t is the last tier or unknown.
func (t Tier) Next() (Tier, bool) {
	idx := t.Index()
	if idx < 0 || idx >= len(TierOrder)-1 {
		return "", false
	}
	return TierOrder[idx+1], true
}
