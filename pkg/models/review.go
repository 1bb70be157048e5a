package models

import (
	"encoding/json"
	"time"
)

// ReviewStatus represents the state of a human review request.
type ReviewStatus string

const (
	// ReviewStatusPending indicates the request is waiting for a decision.
	ReviewStatusPending ReviewStatus = "pending"
	// ReviewStatusApproved indicates the reviewer approved the request.
	ReviewStatusApproved ReviewStatus = "approved"
	// ReviewStatusRejected indicates the reviewer rejected the request.
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Valid returns true if the status is a known value.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return true
	default:
		return false
	}
}

// ReviewRequest is handed to a human-review handler by the human tier.
type ReviewRequest struct {
	// ID is the unique identifier for this review.
	ID string `json:"id"`
	// Cascade is the name of the cascade requesting review.
	Cascade string `json:"cascade"`
	// Summary is a human-readable description of what needs review.
	Summary string `json:"summary"`
	// Input is the cascade input, serialized for the reviewer.
	Input json.RawMessage `json:"input,omitempty"`
	// PreviousErrors lists every earlier tier failure in this run.
	PreviousErrors []TierError `json:"previous_errors,omitempty"`
	// CreatedAt is when the request was created.
	CreatedAt time.Time `json:"created_at"`
}

// ReviewResult is the reviewer's decision.
type ReviewResult struct {
	// ReviewID is the ID of the request this result answers.
	ReviewID string `json:"review_id"`
	// Status is the decision status.
	Status ReviewStatus `json:"status"`
	// Reviewer identifies who decided, if known.
	Reviewer string `json:"reviewer,omitempty"`
	// Comment contains any free-form feedback from the reviewer.
	Comment string `json:"comment,omitempty"`
	// DecidedAt is when the decision was made.
	DecidedAt time.Time `json:"decided_at"`
}

// Approved returns true if the reviewer approved the request.
func (r ReviewResult) Approved() bool {
	return r.Status == ReviewStatusApproved
}
