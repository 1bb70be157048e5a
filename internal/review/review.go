// Package review provides human-review handlers for the human tier.
// Handlers own the delivery boundary: the cascade engine only hands
// them a request and waits for a decision.
package review

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// Handler delivers a review request and blocks until a decision is made,
// the context is canceled, or the handler gives up.
type Handler interface {
	Request(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error)

// Request calls f.
func (f HandlerFunc) Request(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
	return f(ctx, req)
}

// MemoryHandler is an in-process Handler driven by Respond calls.
// It is intended for tests and embedded approval flows.
type MemoryHandler struct {
	mu      sync.Mutex
	pending map[string]chan models.ReviewResult
}

// NewMemoryHandler creates an empty MemoryHandler.
func NewMemoryHandler() *MemoryHandler {
	return &MemoryHandler{
		pending: make(map[string]chan models.ReviewResult),
	}
}

// Request registers the review and waits for a matching Respond call.
func (h *MemoryHandler) Request(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
	ch := make(chan models.ReviewResult, 1)

	h.mu.Lock()
	h.pending[req.ID] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, req.ID)
		h.mu.Unlock()
	}()

	select {
	case res := <-ch:
		return res, nil
	case <-ctx.Done():
		return models.ReviewResult{}, ctx.Err()
	}
}

// Respond delivers a decision for a pending review.
func (h *MemoryHandler) Respond(res models.ReviewResult) error {
	h.mu.Lock()
	ch, ok := h.pending[res.ReviewID]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending review with id %s", res.ReviewID)
	}

	select {
	case ch <- res:
		return nil
	default:
		return fmt.Errorf("review %s already answered", res.ReviewID)
	}
}

// Pending returns the IDs of reviews currently waiting for a decision.
func (h *MemoryHandler) Pending() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.pending))
	for id := range h.pending {
		ids = append(ids, id)
	}
	return ids
}
