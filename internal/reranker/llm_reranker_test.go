package reranker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/supportagent/internal/llm"
	"github.com/knoguchi/supportagent/internal/model"
)

// gradeByText answers each scoring prompt with the grade registered for the
// passage text it contains.
type gradeByText struct {
	grades map[string]string
	fail   map[string]bool
	calls  atomic.Int32
	delay  time.Duration
}

func (g *gradeByText) Complete(ctx context.Context, messages []llm.Message, _ ...llm.Option) (string, error) {
	g.calls.Add(1)
	prompt := messages[len(messages)-1].Content
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	for text, grade := range g.grades {
		if strings.Contains(prompt, "Text: "+text) {
			if g.fail[text] {
				return "", errors.New("provider error")
			}
			return grade, nil
		}
	}
	return "", errors.New("unknown passage")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func passages(texts ...string) []model.Passage {
	out := make([]model.Passage, len(texts))
	for i, t := range texts {
		out[i] = model.Passage{Text: t, Source: t + ".md", Category: "billing"}
	}
	return out
}

func texts(ps []model.Passage) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Text
	}
	return out
}

func TestRerankEmptyMakesNoCalls(t *testing.T) {
	g := &gradeByText{}
	r := NewLLMReranker(g, WithLogger(quietLogger()))

	out, err := r.Rerank(context.Background(), "my bill", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NotNil(t, out)
	assert.Zero(t, g.calls.Load())
}

func TestRerankOrdersByScoreAndKeepsTopN(t *testing.T) {
	g := &gradeByText{grades: map[string]string{
		"a": "3", "b": "9", "c": "7", "d": " 10\n", "e": "1",
	}}
	r := NewLLMReranker(g, WithLogger(quietLogger()))

	out, err := r.Rerank(context.Background(), "my bill", passages("a", "b", "c", "d", "e"), 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"d", "b", "c"}, texts(out))
	assert.Equal(t, int32(5), g.calls.Load())
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score, out[i].Score)
	}
}

func TestRerankTiesKeepRetrievalOrder(t *testing.T) {
	g := &gradeByText{grades: map[string]string{
		"first": "8", "second": "8", "third": "8", "fourth": "9",
	}}
	r := NewLLMReranker(g, WithConcurrency(4), WithLogger(quietLogger()))

	for i := 0; i < 20; i++ {
		out, err := r.Rerank(context.Background(), "q", passages("first", "second", "third", "fourth"), 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"fourth", "first", "second", "third"}, texts(out))
	}
}

func TestRerankFailuresScoreNeutral(t *testing.T) {
	g := &gradeByText{
		grades: map[string]string{"good": "8", "broken": "x", "garbage": "very relevant", "low": "2"},
		fail:   map[string]bool{"broken": true},
	}
	r := NewLLMReranker(g, WithLogger(quietLogger()))

	out, err := r.Rerank(context.Background(), "q", passages("low", "broken", "garbage", "good"), 4)
	require.NoError(t, err)

	assert.Equal(t, []string{"good", "broken", "garbage", "low"}, texts(out))
	assert.Equal(t, NeutralScore, out[1].Score)
	assert.Equal(t, NeutralScore, out[2].Score)
}

func TestRerankTimeoutScoresNeutral(t *testing.T) {
	g := &gradeByText{grades: map[string]string{"slow": "10"}, delay: 200 * time.Millisecond}
	r := NewLLMReranker(g, WithScoreTimeout(10*time.Millisecond), WithLogger(quietLogger()))

	out, err := r.Rerank(context.Background(), "q", passages("slow"), 3)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, NeutralScore, out[0].Score)
}

func TestRerankDefaultTopN(t *testing.T) {
	g := &gradeByText{grades: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}}
	r := NewLLMReranker(g, WithLogger(quietLogger()))

	out, err := r.Rerank(context.Background(), "q", passages("a", "b", "c", "d", "e"), 0)
	require.NoError(t, err)
	assert.Len(t, out, DefaultTopN)
}

func TestRerankDoesNotMutateInput(t *testing.T) {
	g := &gradeByText{grades: map[string]string{"a": "1", "b": "9"}}
	in := passages("a", "b")

	_, err := NewLLMReranker(g, WithLogger(quietLogger())).Rerank(context.Background(), "q", in, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts(in))
	assert.Zero(t, in[1].Score)
}

func TestScorePromptTruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("é", 800)
	prompt := buildScorePrompt("roaming", long)

	assert.Contains(t, prompt, "Query: roaming")
	assert.Contains(t, prompt, strings.Repeat("é", 500))
	assert.NotContains(t, prompt, strings.Repeat("é", 501))
}

func TestParseScore(t *testing.T) {
	v, err := parseScore(" 7 ")
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	v, err = parseScore("6.5")
	require.NoError(t, err)
	assert.Equal(t, 6.5, v)

	for _, bad := range []string{"", "seven", "7/10", "NaN", "Inf"} {
		_, err := parseScore(bad)
		assert.Error(t, err, bad)
	}
}
