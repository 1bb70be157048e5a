package models

// TierError records a failed tier and its terminal error message.
// The ordered list of these is handed to later tiers as context.
type TierError struct {
	// Tier is the tier that failed.
	Tier Tier `json:"tier"`
	// Message is the terminal error message after retries were exhausted.
	Message string `json:"message"`
}

// TierAttemptRecord is one history entry for a tier that was actually
// attempted during a run. Records are append-only for the duration of
// a run and are never mutated after being appended.
type TierAttemptRecord struct {
	// Tier is the tier this record describes.
	Tier Tier `json:"tier"`
	// Success is true if the tier produced an accepted output.
	Success bool `json:"success"`
	// Attempts is the number of attempts taken, including the final one.
	Attempts int `json:"attempts"`
	// Error is the terminal error message if the tier failed.
	Error string `json:"error,omitempty"`
}

// ExecutionResult is the outcome of a successful cascade run.
type ExecutionResult[O any] struct {
	// Value is the output of the tier that succeeded.
	Value O `json:"value"`
	// Tier names the tier that produced Value.
	Tier Tier `json:"tier"`
	// History lists every tier that was attempted, in order.
	// Skipped tiers are not included here.
	History []TierAttemptRecord `json:"history"`
	// SkippedTiers names tiers bypassed via skip condition or absence
	// from the tier set.
	SkippedTiers []Tier `json:"skippedTiers"`
}
