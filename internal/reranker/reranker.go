// Package reranker re-orders retrieved passages by a finer relevance signal
// before they reach the answer generator.
//
// The LLM reranker asks the model to grade each passage against the query
// on a 1-10 scale, one call per passage.
//
// # Trade-offs
//
//   - Latency: one extra model call per candidate; calls run concurrently,
//     bounded by the configured concurrency.
//   - Fault tolerance: a failed or unparseable grade becomes the neutral
//     score 5.0, so a single bad call never discards the other grades.
//   - Determinism: scores are collected by candidate index and sorted
//     stably, so ties keep retrieval order however calls complete.
package reranker

import (
	"context"

	"github.com/knoguchi/supportagent/internal/model"
)

// Reranker defines the interface for re-ranking retrieved passages.
type Reranker interface {
	// Rerank returns at most topN passages ordered by descending Score.
	// topN <= 0 selects the implementation default.
	Rerank(ctx context.Context, query string, candidates []model.Passage, topN int) ([]model.Passage, error)
}
