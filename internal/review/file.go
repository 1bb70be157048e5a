package review

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/ShayCichocki/cascade/pkg/models"
)

// FileHandler is a file-based review queue. A request is written to
// <dir>/pending/<id>.json and the handler waits for a decision file to
// appear at <dir>/decisions/<id>.json. How the pending file reaches a
// reviewer (notification, sync, external system) is up to the deployment.
type FileHandler struct {
	dir string

	// pollInterval is the fallback poll cadence when the watcher
	// misses events or cannot be created.
	pollInterval time.Duration
}

// NewFileHandler creates a file-based review handler rooted at dir.
// The pending and decisions subdirectories are created if missing.
func NewFileHandler(dir string) (*FileHandler, error) {
	for _, sub := range []string{PendingDir(dir), DecisionsDir(dir)} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, fmt.Errorf("create review directory: %w", err)
		}
	}

	return &FileHandler{
		dir:          dir,
		pollInterval: 2 * time.Second,
	}, nil
}

// PendingDir returns the directory holding open review requests.
func PendingDir(root string) string {
	return filepath.Join(root, "pending")
}

// DecisionsDir returns the directory watched for review decisions.
func DecisionsDir(root string) string {
	return filepath.Join(root, "decisions")
}

// NewReviewID returns a fresh review request ID.
func NewReviewID() string {
	return fmt.Sprintf("rv-%s", uuid.New().String()[:8])
}

// Request writes the review request and blocks until a decision file
// for it appears, or the context is canceled.
func (h *FileHandler) Request(ctx context.Context, req models.ReviewRequest) (models.ReviewResult, error) {
	if req.ID == "" {
		req.ID = NewReviewID()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	pendingPath := filepath.Join(PendingDir(h.dir), req.ID+".json")
	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return models.ReviewResult{}, fmt.Errorf("encode review request: %w", err)
	}
	if err := os.WriteFile(pendingPath, data, 0644); err != nil {
		return models.ReviewResult{}, fmt.Errorf("write review request: %w", err)
	}

	res, err := h.waitForDecision(ctx, req.ID)
	if err != nil {
		return models.ReviewResult{}, err
	}

	// The request is settled; clear it from the pending queue.
	os.Remove(pendingPath)

	return res, nil
}

// waitForDecision watches the decisions directory for <id>.json.
// A polling fallback covers missed events and watcher failures.
func (h *FileHandler) waitForDecision(ctx context.Context, id string) (models.ReviewResult, error) {
	decisionPath := filepath.Join(DecisionsDir(h.dir), id+".json")

	// The decision may already exist, e.g. after a process restart.
	if res, ok := h.readDecision(decisionPath, id); ok {
		return res, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(DecisionsDir(h.dir)); err != nil {
			watcher.Close()
			watcher = nil
		}
	} else {
		watcher = nil
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		if watcher != nil {
			select {
			case <-ctx.Done():
				return models.ReviewResult{}, ctx.Err()
			case event, ok := <-watcher.Events:
				if !ok {
					watcher = nil
					continue
				}
				if filepath.Base(event.Name) != id+".json" {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if res, ok := h.readDecision(decisionPath, id); ok {
					return res, nil
				}
			case <-watcher.Errors:
				// Ignore errors, the poll ticker covers us.
			case <-ticker.C:
				if res, ok := h.readDecision(decisionPath, id); ok {
					return res, nil
				}
			}
			continue
		}

		select {
		case <-ctx.Done():
			return models.ReviewResult{}, ctx.Err()
		case <-ticker.C:
			if res, ok := h.readDecision(decisionPath, id); ok {
				return res, nil
			}
		}
	}
}

// readDecision loads and validates a decision file. Incomplete files
// (e.g. mid-write) are treated as not present yet.
func (h *FileHandler) readDecision(path, id string) (models.ReviewResult, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ReviewResult{}, false
	}

	var res models.ReviewResult
	if err := json.Unmarshal(data, &res); err != nil {
		return models.ReviewResult{}, false
	}
	if !res.Status.Valid() || res.Status == models.ReviewStatusPending {
		return models.ReviewResult{}, false
	}

	if res.ReviewID == "" {
		res.ReviewID = id
	}
	if res.DecidedAt.IsZero() {
		res.DecidedAt = time.Now()
	}
	return res, true
}

// ListPending returns all open review requests under the handler root.
func ListPending(root string) ([]models.ReviewRequest, error) {
	entries, err := os.ReadDir(PendingDir(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending directory: %w", err)
	}

	var reqs []models.ReviewRequest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(PendingDir(root), entry.Name()))
		if err != nil {
			continue
		}
		var req models.ReviewRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

// Decide writes a decision file for the given review ID.
func Decide(root, id string, status models.ReviewStatus, reviewer, comment string) error {
	if !status.Valid() || status == models.ReviewStatusPending {
		return fmt.Errorf("invalid decision status: %s", status)
	}

	res := models.ReviewResult{
		ReviewID:  id,
		Status:    status,
		Reviewer:  reviewer,
		Comment:   comment,
		DecidedAt: time.Now(),
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}

	if err := os.MkdirAll(DecisionsDir(root), 0755); err != nil {
		return fmt.Errorf("create decisions directory: %w", err)
	}
	path := filepath.Join(DecisionsDir(root), id+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}
