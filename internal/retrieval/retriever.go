// Package retrieval finds context documents for a question by vector similarity.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/fsechat/internal/metrics"
	"github.com/raphaelgruber/fsechat/internal/models"
)

// Searcher runs a nearest-neighbour query over stored documents.
// *db.Client implements it.
type Searcher interface {
	SearchDocuments(ctx context.Context, embedding []float32, limit int) ([]models.Document, error)
}

// Retriever returns the documents closest to a question embedding.
type Retriever struct {
	search      Searcher
	maxDistance float64
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithMaxDistance drops documents farther than d from the question.
// Zero keeps every result.
func WithMaxDistance(d float64) Option {
	return func(r *Retriever) { r.maxDistance = d }
}

// New creates a retriever over s.
func New(s Searcher, logger *slog.Logger, mc *metrics.Collector, opts ...Option) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{search: s, logger: logger, metrics: mc}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns at most limit documents, closest first.
func (r *Retriever) Retrieve(ctx context.Context, embedding []float32, limit int) (_ []models.Document, err error) {
	if len(embedding) == 0 || limit <= 0 {
		return []models.Document{}, nil
	}
	start := time.Now()
	defer r.metrics.Observe(metrics.OpRetrieval, start, &err)

	docs, err := r.search.SearchDocuments(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	if r.maxDistance > 0 {
		kept := docs[:0]
		for _, d := range docs {
			if d.Distance <= r.maxDistance {
				kept = append(kept, d)
			}
		}
		docs = kept
	}

	r.logger.Debug("context retrieved", "documents", len(docs), "limit", limit, "duration_ms", time.Since(start).Milliseconds())
	return docs, nil
}
