// Package agent runs the support conversation loop:
//
//	ClassifyIntent -> Retrieve -> Rerank -> Generate -> (Retrieve | Done)
//
// Generate loops back to Retrieve only when the answer signals low
// confidence and fewer than MaxRetrievalPasses retrieval passes have run,
// so every run ends after one or two passes.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/knoguchi/supportagent/internal/apperr"
	"github.com/knoguchi/supportagent/internal/model"
)

const tracerName = "github.com/knoguchi/supportagent/internal/agent"

// Classifier maps a query to an intent category.
type Classifier interface {
	Classify(ctx context.Context, query string) (model.Category, error)
}

// Retriever runs one retrieval pass. iteration is the number of passes
// already completed.
type Retriever interface {
	Retrieve(ctx context.Context, query string, intent model.Category, iteration int) ([]model.Passage, error)
}

// Reranker orders candidates by relevance and keeps at most topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []model.Passage, topN int) ([]model.Passage, error)
}

// Generator writes the answer and decides escalation.
type Generator interface {
	Generate(ctx context.Context, query string, passages []model.Passage, history []model.Turn) (model.Generation, error)
}

// Agent sequences the pipeline components for a single turn.
type Agent struct {
	classifier Classifier
	retriever  Retriever
	reranker   Reranker
	generator  Generator

	topN          int
	lowConfidence []string
	now           func() time.Time
	tracer        trace.Tracer
	logger        *slog.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithTopN sets the rerank cut-off. Zero leaves it to the reranker.
func WithTopN(n int) Option {
	return func(a *Agent) { a.topN = n }
}

// WithLowConfidencePhrases replaces the phrases that trigger a retry.
func WithLowConfidencePhrases(phrases []string) Option {
	return func(a *Agent) { a.lowConfidence = lowerAll(phrases) }
}

// WithClock sets the time source for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithTracer sets the tracer used for per-step spans.
func WithTracer(t trace.Tracer) Option {
	return func(a *Agent) { a.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

func New(c Classifier, r Retriever, rr Reranker, g Generator, opts ...Option) *Agent {
	a := &Agent{
		classifier:    c,
		retriever:     r,
		reranker:      rr,
		generator:     g,
		lowConfidence: DefaultLowConfidencePhrases,
		now:           time.Now,
		tracer:        otel.Tracer(tracerName),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run drives state from StepClassifyIntent to StepDone and returns the
// final state with the new turn appended to its history. On failure it
// returns a zero State and a single *apperr.Error; partial state is never
// returned. A cancelled ctx stops the loop before the next transition.
func (a *Agent) Run(ctx context.Context, state State) (State, error) {
	ctx, span := a.tracer.Start(ctx, "agent.run",
		trace.WithAttributes(attribute.String("session.id", state.SessionID)))
	defer span.End()

	state = state.withStep(StepClassifyIntent)
	for !state.Step.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return State{}, a.fail(span, state.Step, err)
		}

		next, err := a.transition(ctx, state)
		if err != nil {
			return State{}, a.fail(span, state.Step, err)
		}
		state = next
	}

	state = state.withTurnAppended(
		model.Turn{Role: model.RoleUser, Content: state.UserQuery, Timestamp: a.now()},
		model.Turn{Role: model.RoleAssistant, Content: state.Answer, Timestamp: a.now()},
	)

	span.SetAttributes(
		attribute.String("agent.intent", string(state.Intent)),
		attribute.Int("agent.iterations", state.IterationCount),
		attribute.Bool("agent.escalate", state.NeedsEscalation),
	)
	a.logger.Info("agent run completed",
		"session_id", state.SessionID,
		"intent", state.Intent,
		"iterations", state.IterationCount,
		"passages", len(state.SelectedPassages),
		"escalate", state.NeedsEscalation,
	)
	return state, nil
}

// transition executes the current step and returns the state positioned
// at the next one.
func (a *Agent) transition(ctx context.Context, s State) (State, error) {
	ctx, span := a.tracer.Start(ctx, "agent."+s.Step.String(),
		trace.WithAttributes(attribute.Int("agent.iteration", s.IterationCount)))
	defer span.End()

	a.logger.Debug("agent step", "session_id", s.SessionID, "step", s.Step, "iteration", s.IterationCount)

	var (
		next State
		err  error
	)
	switch s.Step {
	case StepClassifyIntent:
		next, err = a.classify(ctx, s)
	case StepRetrieve:
		next, err = a.retrieve(ctx, s)
	case StepRerank:
		next, err = a.rerank(ctx, s)
	case StepGenerate:
		next, err = a.generate(ctx, s)
	default:
		err = fmt.Errorf("no transition from step %s", s.Step)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	return next, err
}

func (a *Agent) classify(ctx context.Context, s State) (State, error) {
	intent, err := a.classifier.Classify(ctx, s.UserQuery)
	if err != nil {
		return State{}, err
	}
	return s.withIntent(model.ParseCategory(string(intent))).withStep(StepRetrieve), nil
}

func (a *Agent) retrieve(ctx context.Context, s State) (State, error) {
	passages, err := a.retriever.Retrieve(ctx, s.UserQuery, s.Intent, s.IterationCount)
	if err != nil {
		return State{}, err
	}
	return s.withRetrieved(passages).withStep(StepRerank), nil
}

// rerank never fails the run. If the reranker itself errors the leading
// retrieved passages are used in retrieval order.
func (a *Agent) rerank(ctx context.Context, s State) (State, error) {
	selected, err := a.reranker.Rerank(ctx, s.UserQuery, s.RetrievedPassages, a.topN)
	if err != nil {
		a.logger.Warn("rerank failed, keeping retrieval order", "session_id", s.SessionID, "error", err)
		selected = s.RetrievedPassages
		if a.topN > 0 && len(selected) > a.topN {
			selected = selected[:a.topN]
		}
	}
	if selected == nil {
		selected = []model.Passage{}
	}
	return s.withSelected(selected).withStep(StepGenerate), nil
}

func (a *Agent) generate(ctx context.Context, s State) (State, error) {
	gen, err := a.generator.Generate(ctx, s.UserQuery, s.SelectedPassages, s.History)
	if err != nil {
		return State{}, err
	}
	next := s.withGeneration(gen)

	if shouldRetry(next.Answer, next.IterationCount, a.lowConfidence) {
		a.logger.Info("low confidence answer, retrying retrieval without intent",
			"session_id", s.SessionID,
			"iteration", next.IterationCount,
		)
		return next.withStep(StepRetrieve), nil
	}
	return next.withStep(StepDone), nil
}

// fail categorizes err: errors already carrying a kind keep it, anything
// else becomes a generation failure.
func (a *Agent) fail(span trace.Span, step Step, err error) error {
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
	a.logger.Error("agent run aborted", "step", step, "error", err)

	if apperr.KindOf(err) != "" {
		return err
	}
	return apperr.GenerationFailure(fmt.Sprintf("agent step %s failed", step), err)
}
