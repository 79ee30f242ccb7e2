package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knoguchi/supportagent/internal/embedder"
	"github.com/knoguchi/supportagent/internal/vectorstore"
)

const (
	DefaultK      = 5
	DefaultFetchK = 15
	DefaultLambda = 0.7
)

// MMRSearcher embeds a query, fetches a candidate pool from the vector
// store and narrows it to a diverse result set.
type MMRSearcher struct {
	embedder embedder.Embedder
	store    vectorstore.VectorStore
	k        int
	fetchK   int
	lambda   float64
	logger   *slog.Logger
}

// MMROption configures an MMRSearcher.
type MMROption func(*MMRSearcher)

// WithK sets the number of results returned.
func WithK(k int) MMROption {
	return func(s *MMRSearcher) { s.k = k }
}

// WithFetchK sets the candidate pool size fetched before MMR selection.
func WithFetchK(n int) MMROption {
	return func(s *MMRSearcher) { s.fetchK = n }
}

// WithLambda sets the relevance/diversity weight.
func WithLambda(l float64) MMROption {
	return func(s *MMRSearcher) { s.lambda = l }
}

// WithSearchLogger sets the logger.
func WithSearchLogger(l *slog.Logger) MMROption {
	return func(s *MMRSearcher) { s.logger = l }
}

func NewMMRSearcher(e embedder.Embedder, store vectorstore.VectorStore, opts ...MMROption) *MMRSearcher {
	s := &MMRSearcher{
		embedder: e,
		store:    store,
		k:        DefaultK,
		fetchK:   DefaultFetchK,
		lambda:   DefaultLambda,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetchK < s.k {
		s.fetchK = s.k
	}
	return s
}

// Search returns at most k hits for query.
func (s *MMRSearcher) Search(ctx context.Context, query string) ([]Hit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := s.store.Search(ctx, vec, s.fetchK)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.store.Collection(), err)
	}

	selected := SelectMMR(vec, candidates, s.k, s.lambda)
	s.logger.Debug("mmr search",
		"candidates", len(candidates),
		"selected", len(selected),
		"lambda", s.lambda,
	)

	hits := make([]Hit, len(selected))
	for i, c := range selected {
		hits[i] = Hit{Text: c.Content, Source: c.Source, Category: c.Category}
	}
	return hits, nil
}
