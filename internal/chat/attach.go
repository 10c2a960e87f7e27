package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/raphaelgruber/fsechat/internal/db"
)

// DocumentLookup reports which document indices exist.
// *db.Client implements it.
type DocumentLookup interface {
	ExistingDocumentIndices(ctx context.Context, indices []int) ([]int, error)
}

// Attacher links assistant messages to the documents used to answer them.
type Attacher struct {
	w      Writer
	lookup DocumentLookup
	logger *slog.Logger
}

// NewAttacher creates an attacher. lookup is optional and only used to
// report skipped indices.
func NewAttacher(w Writer, lookup DocumentLookup, logger *slog.Logger) *Attacher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Attacher{w: w, lookup: lookup, logger: logger}
}

// AttachContext links messageID to every document in indices. Duplicate
// indices are ignored, unknown ones are skipped and logged, and links that
// already exist are kept as they are. An empty set does nothing.
func (a *Attacher) AttachContext(ctx context.Context, messageID string, indices []int) error {
	unique := dedupe(indices)
	if len(unique) == 0 {
		return nil
	}

	a.logSkipped(ctx, messageID, unique)

	err := a.w.Execute(ctx, db.OpAttachContext, map[string]any{
		"message_id": messageID,
		"indices":    unique,
	})
	if err != nil {
		return fmt.Errorf("attach context to %s: %w", messageID, err)
	}

	a.logger.Debug("context attached", "message", messageID, "indices", unique)
	return nil
}

func (a *Attacher) logSkipped(ctx context.Context, messageID string, indices []int) {
	if a.lookup == nil {
		return
	}
	existing, err := a.lookup.ExistingDocumentIndices(ctx, indices)
	if err != nil {
		a.logger.Warn("context lookup failed", "message", messageID, "error", err)
		return
	}
	var skipped []int
	for _, idx := range indices {
		if !slices.Contains(existing, idx) {
			skipped = append(skipped, idx)
		}
	}
	if len(skipped) > 0 {
		a.logger.Info("context attach skipped", "message", messageID, "missing_indices", skipped)
	}
}

// dedupe returns the distinct indices in ascending order.
func dedupe(indices []int) []int {
	out := slices.Clone(indices)
	slices.Sort(out)
	return slices.Compact(out)
}
