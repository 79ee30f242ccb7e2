// Package service exposes the support agent as conversation-level
// operations: run a turn, clear a session, report stats.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/knoguchi/supportagent/internal/agent"
	"github.com/knoguchi/supportagent/internal/apperr"
	"github.com/knoguchi/supportagent/internal/events"
	"github.com/knoguchi/supportagent/internal/model"
	"github.com/knoguchi/supportagent/internal/session"
)

const (
	// DefaultMaxQueryLength bounds a single customer message, in runes.
	DefaultMaxQueryLength = 2000
	// MaxSessionIDLength bounds session identifiers, in runes.
	MaxSessionIDLength = 128
)

// Runner executes one agent turn.
type Runner interface {
	Run(ctx context.Context, state agent.State) (agent.State, error)
}

// Index reports on the knowledge base behind retrieval.
type Index interface {
	Ready(ctx context.Context) (bool, error)
	Count(ctx context.Context) (uint64, error)
	Collection() string
}

// TurnResult is the outcome of one successful conversation turn.
type TurnResult struct {
	SessionID       string
	Answer          string
	Sources         []model.Passage
	Intent          model.Category
	NeedsEscalation bool
	Iterations      int
	Duration        time.Duration
}

// Stats is the operator view of the running service.
type Stats struct {
	TotalChunks    uint64 `json:"total_chunks"`
	CollectionName string `json:"collection_name"`
	EmbeddingModel string `json:"embedding_model"`
	ChatModel      string `json:"chat_model"`
	ActiveSessions int    `json:"active_sessions"`
}

// Health summarises dependency readiness.
type Health struct {
	VectorStoreReady bool
	DocumentsIndexed uint64
}

// ChatService owns the conversation lifecycle around the agent loop.
type ChatService struct {
	runner    Runner
	sessions  session.Store
	index     Index
	publisher events.Publisher

	maxQueryLength int
	embeddingModel string
	chatModel      string
	logger         *slog.Logger
}

// ChatServiceOption is a functional option for configuring ChatService.
type ChatServiceOption func(*ChatService)

// WithPublisher sets where conversation events are sent.
func WithPublisher(p events.Publisher) ChatServiceOption {
	return func(s *ChatService) { s.publisher = p }
}

func WithMaxQueryLength(n int) ChatServiceOption {
	return func(s *ChatService) { s.maxQueryLength = n }
}

// WithModelNames records the model names reported by Stats.
func WithModelNames(embedding, chat string) ChatServiceOption {
	return func(s *ChatService) {
		s.embeddingModel = embedding
		s.chatModel = chat
	}
}

func WithLogger(l *slog.Logger) ChatServiceOption {
	return func(s *ChatService) { s.logger = l }
}

// NewChatService creates a new ChatService
func NewChatService(runner Runner, sessions session.Store, index Index, opts ...ChatServiceOption) *ChatService {
	s := &ChatService{
		runner:         runner,
		sessions:       sessions,
		index:          index,
		maxQueryLength: DefaultMaxQueryLength,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunTurn answers one customer message within a session. The stored
// history changes only when the turn succeeds.
func (s *ChatService) RunTurn(ctx context.Context, sessionID, query string) (TurnResult, error) {
	start := time.Now()

	if err := validateSessionID(sessionID); err != nil {
		return TurnResult{}, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return TurnResult{}, apperr.InvalidInput("message must not be empty")
	}
	if n := utf8.RuneCountInString(query); n > s.maxQueryLength {
		return TurnResult{}, apperr.InvalidInput(
			fmt.Sprintf("message is %d characters, limit is %d", n, s.maxQueryLength))
	}

	// A turn answered without its history is not written back: storing
	// it would replace the conversation the read failed to return.
	history, err := s.sessions.Get(ctx, sessionID)
	persist := err == nil
	if err != nil {
		s.logger.Warn("failed to load session history, answering without it",
			"session_id", sessionID, "error", err)
		history = nil
	}

	final, err := s.runner.Run(ctx, agent.NewState(sessionID, query, history))
	if err != nil {
		s.logger.Error("turn failed", "session_id", sessionID, "kind", apperr.KindOf(err), "error", err)
		return TurnResult{}, categorize(err)
	}

	if persist {
		if err := s.sessions.Put(ctx, sessionID, final.History); err != nil {
			s.logger.Error("failed to save session history", "session_id", sessionID, "error", err)
		}
	}

	result := TurnResult{
		SessionID:       sessionID,
		Answer:          final.Answer,
		Sources:         final.SelectedPassages,
		Intent:          final.Intent,
		NeedsEscalation: final.NeedsEscalation,
		Iterations:      final.IterationCount,
		Duration:        time.Since(start),
	}

	data := map[string]any{
		"intent":     string(result.Intent),
		"query":      query,
		"iterations": result.Iterations,
		"sources":    len(result.Sources),
		"escalate":   result.NeedsEscalation,
	}
	s.publish(ctx, events.New(events.TypeTurnCompleted, sessionID, data))
	if result.NeedsEscalation {
		s.publish(ctx, events.New(events.TypeTurnEscalated, sessionID, data))
	}

	return result, nil
}

// ClearSession forgets a session's history. It reports whether the
// session existed.
func (s *ChatService) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	if err := validateSessionID(sessionID); err != nil {
		return false, err
	}
	existed, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to clear session: %w", err)
	}
	s.publish(ctx, events.New(events.TypeSessionCleared, sessionID, map[string]any{"existed": existed}))
	return existed, nil
}

// Stats reports index size, configured models and live sessions. An
// unreachable index reports zero chunks rather than failing.
func (s *ChatService) Stats(ctx context.Context) (Stats, error) {
	active, err := s.sessions.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count sessions: %w", err)
	}
	health := s.Health(ctx)
	return Stats{
		TotalChunks:    health.DocumentsIndexed,
		CollectionName: s.index.Collection(),
		EmbeddingModel: s.embeddingModel,
		ChatModel:      s.chatModel,
		ActiveSessions: active,
	}, nil
}

// Health checks the vector store.
func (s *ChatService) Health(ctx context.Context) Health {
	ready, err := s.index.Ready(ctx)
	if err != nil {
		s.logger.Warn("vector store readiness check failed", "error", err)
		return Health{}
	}
	if !ready {
		return Health{}
	}
	count, err := s.index.Count(ctx)
	if err != nil {
		s.logger.Warn("vector store count failed", "error", err)
		return Health{VectorStoreReady: true}
	}
	return Health{VectorStoreReady: true, DocumentsIndexed: count}
}

// ChatModel returns the configured chat model name.
func (s *ChatService) ChatModel() string {
	return s.chatModel
}

func (s *ChatService) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "type", event.Type, "session_id", event.SessionID, "error", err)
	}
}

func validateSessionID(id string) error {
	n := utf8.RuneCountInString(id)
	if strings.TrimSpace(id) == "" {
		return apperr.InvalidInput("session_id must not be empty")
	}
	if n > MaxSessionIDLength {
		return apperr.InvalidInput(fmt.Sprintf("session_id is %d characters, limit is %d", n, MaxSessionIDLength))
	}
	return nil
}

// categorize keeps RetrievalUnavailable and folds every other failure,
// including cancellation, into GenerationFailure.
func categorize(err error) error {
	if errors.Is(err, apperr.ErrRetrievalUnavailable) {
		return err
	}
	if errors.Is(err, apperr.ErrGenerationFailure) {
		return err
	}
	return apperr.GenerationFailure("failed to generate a response", err)
}
