package reranker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knoguchi/supportagent/internal/apperr"
	"github.com/knoguchi/supportagent/internal/llm"
	"github.com/knoguchi/supportagent/internal/model"
)

const (
	// DefaultTopN is the number of passages kept when the caller does not say.
	DefaultTopN = 3

	// NeutralScore is assigned when a passage cannot be graded.
	NeutralScore = 5.0

	// DefaultConcurrency bounds in-flight scoring calls.
	DefaultConcurrency = 4

	// maxExcerptChars is the passage prefix shown to the grader.
	maxExcerptChars = 500
)

// LLMReranker grades each query-passage pair with a separate model call.
type LLMReranker struct {
	llmClient    llm.LLM
	topN         int
	concurrency  int
	scoreTimeout time.Duration
	logger       *slog.Logger
}

// LLMRerankerOption is a functional option for configuring LLMReranker.
type LLMRerankerOption func(*LLMReranker)

// WithTopN sets the default number of passages returned.
func WithTopN(n int) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.topN = n
	}
}

// WithConcurrency bounds the number of concurrent scoring calls.
func WithConcurrency(n int) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.concurrency = n
	}
}

// WithScoreTimeout bounds each scoring call. A timeout scores NeutralScore.
func WithScoreTimeout(d time.Duration) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.scoreTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) LLMRerankerOption {
	return func(r *LLMReranker) {
		r.logger = l
	}
}

// NewLLMReranker creates a new LLM-based reranker.
func NewLLMReranker(llmClient llm.LLM, opts ...LLMRerankerOption) *LLMReranker {
	r := &LLMReranker{
		llmClient:   llmClient,
		topN:        DefaultTopN,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency <= 0 {
		r.concurrency = 1
	}

	return r
}

// Rerank scores every candidate and returns the best topN. An empty input
// returns an empty result without calling the model. Scoring failures never
// surface as errors.
func (r *LLMReranker) Rerank(ctx context.Context, query string, candidates []model.Passage, topN int) ([]model.Passage, error) {
	if len(candidates) == 0 {
		return []model.Passage{}, nil
	}
	if topN <= 0 {
		topN = r.topN
	}

	scored := make([]model.Passage, len(candidates))
	copy(scored, candidates)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range scored {
		g.Go(func() error {
			score, err := r.score(ctx, query, scored[i].Text)
			if err != nil {
				r.logger.Warn("passage scoring failed, using neutral score",
					"source", scored[i].Source,
					"error", err,
				)
				score = NeutralScore
			}
			scored[i].Score = score
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if len(scored) > topN {
		scored = scored[:topN]
	}

	r.logger.Info("reranked passages",
		"candidates", len(candidates),
		"kept", len(scored),
		"top_score", scored[0].Score,
	)

	return scored, nil
}

// score asks the model for a single 1-10 grade.
func (r *LLMReranker) score(ctx context.Context, query, text string) (float64, error) {
	if r.scoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.scoreTimeout)
		defer cancel()
	}

	resp, err := r.llmClient.Complete(ctx, []llm.Message{
		{Role: model.RoleUser, Content: buildScorePrompt(query, text)},
	}, llm.WithTemperature(0), llm.WithMaxTokens(4))
	if err != nil {
		return 0, apperr.New(apperr.KindScoringFailure, "scoring call failed", err)
	}

	return parseScore(resp)
}

// parseScore accepts a bare number, allowing surrounding whitespace.
func parseScore(resp string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperr.New(apperr.KindScoringFailure, fmt.Sprintf("unparseable score %q", resp), err)
	}
	return v, nil
}

func buildScorePrompt(query, text string) string {
	var sb strings.Builder
	sb.WriteString("Rate how relevant the text below is for answering the customer's query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\nText: ")
	sb.WriteString(truncate(text, maxExcerptChars))
	sb.WriteString("\n\nReply with a single integer from 1 to 10 and nothing else.\n")
	sb.WriteString("10 = answers the query completely, 1 = unrelated.\n")
	sb.WriteString("Score:")
	return sb.String()
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

var _ Reranker = (*LLMReranker)(nil)
