package cascade

import (
	"context"

	"github.com/ShayCichocki/cascade/internal/ai"
	"github.com/ShayCichocki/cascade/pkg/models"
)

// TierContext is assembled fresh for every tier attempt and passed to
// the tier's Execute function. Tier bodies treat it as read-only apart
// from invoking the injected capabilities.
type TierContext struct {
	// Cascade is the name of the running cascade.
	Cascade string
	// Tier is the tier currently executing.
	Tier models.Tier
	// Attempt is the 1-indexed attempt number within this tier.
	Attempt int
	// PreviousErrors lists, in order, every earlier tier in this run
	// that was attempted and did not succeed.
	PreviousErrors []models.TierError
	// AI is the injected model-invocation capability, or nil.
	AI ai.Invoker
	// RequestHumanReview delivers a review request and blocks for the
	// decision. Nil unless a review handler is configured.
	RequestHumanReview func(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error)
}
