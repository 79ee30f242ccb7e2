// Package retriever adapts similarity search to the agent loop: it shapes
// the query per retrieval pass and normalizes passage metadata.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/knoguchi/supportagent/internal/apperr"
	"github.com/knoguchi/supportagent/internal/model"
	"github.com/knoguchi/supportagent/internal/vectorstore"
)

// Hit is one search result. Source and Category are empty when the store
// has no such metadata.
type Hit struct {
	Text     string
	Source   string
	Category string
}

// Searcher is a diversity-aware similarity search with a bounded result count.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Retriever wraps a Searcher for use by the agent loop.
type Retriever struct {
	searcher Searcher
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTimeout bounds each search call.
func WithTimeout(d time.Duration) Option {
	return func(r *Retriever) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

func New(searcher Searcher, opts ...Option) *Retriever {
	r := &Retriever{searcher: searcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ShapeQuery builds the text sent to the searcher. The first pass
// (iteration 0) is prefixed with the intent tag, e.g. "[billing] my bill is
// wrong"; later passes send the raw query to widen the candidate set.
func ShapeQuery(query string, intent model.Category, iteration int) string {
	if iteration == 0 && intent != "" {
		return "[" + string(intent) + "] " + query
	}
	return query
}

// Retrieve runs one retrieval pass. A store that is missing or unreachable
// is reported as apperr.KindRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string, intent model.Category, iteration int) ([]model.Passage, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	shaped := ShapeQuery(query, intent, iteration)
	hits, err := r.searcher.Search(ctx, shaped)
	if err != nil {
		if errors.Is(err, vectorstore.ErrNotReady) ||
			errors.Is(err, vectorstore.ErrUnavailable) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.RetrievalUnavailable("knowledge base unavailable", err)
		}
		return nil, fmt.Errorf("retrieving passages: %w", err)
	}

	passages := make([]model.Passage, len(hits))
	for i, h := range hits {
		passages[i] = model.Passage{
			Text:     h.Text,
			Source:   valueOr(h.Source, model.DefaultSource),
			Category: valueOr(h.Category, model.DefaultCategory),
		}
	}

	r.logger.Debug("retrieved passages",
		"iteration", iteration,
		"query", shaped,
		"count", len(passages),
	)
	return passages, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
