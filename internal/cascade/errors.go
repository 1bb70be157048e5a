package cascade

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// Error kind strings used for the "how.status" field of the
// cascade-complete event.
const (
	// StatusCompleted indicates the run produced an accepted result.
	StatusCompleted = "completed"
	// KindAllTiersFailed is the error kind for AllTiersFailedError.
	KindAllTiersFailed = "all-tiers-failed"
	// KindCascadeTimeout is the error kind for CascadeTimeoutError.
	KindCascadeTimeout = "cascade-timeout"
)

// AllTiersFailedError is returned when every configured tier was
// exhausted without producing an accepted result. History carries the
// complete per-tier failure record so callers can distinguish which
// tier failed with which error.
type AllTiersFailedError struct {
	// Cascade is the name of the cascade that failed.
	Cascade string
	// History lists every attempted tier, in order. All entries have
	// Success == false.
	History []models.TierAttemptRecord
}

// Error returns a summary including each tier's terminal error.
func (e *AllTiersFailedError) Error() string {
	parts := make([]string, 0, len(e.History))
	for _, rec := range e.History {
		parts = append(parts, fmt.Sprintf("%s: %s", rec.Tier, rec.Error))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("cascade %s: no tiers configured", e.Cascade)
	}
	return fmt.Sprintf("cascade %s: all tiers failed: %s", e.Cascade, strings.Join(parts, "; "))
}

// Kind returns the stable error kind string.
func (e *AllTiersFailedError) Kind() string {
	return KindAllTiersFailed
}

// CascadeTimeoutError is returned when the configured total timeout
// elapsed before any tier produced an accepted result. It carries no
// per-tier history: the deadline may fire before any tier settles.
type CascadeTimeoutError struct {
	// Cascade is the name of the cascade that timed out.
	Cascade string
	// Elapsed is how long the run had been going when the deadline fired.
	Elapsed time.Duration
	// Deadline is the configured total timeout.
	Deadline time.Duration
}

// Error describes the missed deadline.
func (e *CascadeTimeoutError) Error() string {
	return fmt.Sprintf("cascade %s: timed out after %s (deadline %s)", e.Cascade, e.Elapsed, e.Deadline)
}

// Kind returns the stable error kind string.
func (e *CascadeTimeoutError) Kind() string {
	return KindCascadeTimeout
}

// errorKind maps an error to the status string reported on the
// cascade-complete event.
func errorKind(err error) string {
	if err == nil {
		return StatusCompleted
	}
	type kinder interface{ Kind() string }
	if k, ok := err.(kinder); ok {
		return k.Kind()
	}
	return "error"
}
