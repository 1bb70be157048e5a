package models

import "time"

// EventKind is the fixed vocabulary of cascade lifecycle events.
type EventKind string

const (
	// EventCascadeStart is emitted once before the first tier is attempted.
	EventCascadeStart EventKind = "cascade-start"
	// EventCascadeComplete is emitted once immediately before a run settles.
	EventCascadeComplete EventKind = "cascade-complete"
)

// EscalationEventKind returns the event kind emitted when a cascade
// escalates to the given tier.
func EscalationEventKind(t Tier) EventKind {
	return EventKind("escalate-to-" + string(t))
}

// Event is a 5W+H record of a cascade lifecycle transition.
type Event struct {
	// What is the event kind.
	What EventKind `json:"what"`
	// Who is the configured actor, if any.
	Who string `json:"who,omitempty"`
	// When is the event time. Defaults to the emission time.
	When time.Time `json:"when"`
	// Where is the cascade name.
	Where string `json:"where"`
	// Why carries the escalation reason (the prior tier's error message)
	// when applicable.
	Why string `json:"why,omitempty"`
	// How carries structured status detail, e.g. {"status": "completed"}.
	How map[string]any `json:"how,omitempty"`
}
