package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/supportagent/internal/agent"
	"github.com/knoguchi/supportagent/internal/auth"
	"github.com/knoguchi/supportagent/internal/config"
	"github.com/knoguchi/supportagent/internal/embedder"
	"github.com/knoguchi/supportagent/internal/events"
	"github.com/knoguchi/supportagent/internal/generator"
	"github.com/knoguchi/supportagent/internal/intent"
	"github.com/knoguchi/supportagent/internal/llm"
	"github.com/knoguchi/supportagent/internal/logging"
	"github.com/knoguchi/supportagent/internal/repository/postgres"
	"github.com/knoguchi/supportagent/internal/reranker"
	"github.com/knoguchi/supportagent/internal/retriever"
	"github.com/knoguchi/supportagent/internal/server"
	"github.com/knoguchi/supportagent/internal/service"
	"github.com/knoguchi/supportagent/internal/session"
	"github.com/knoguchi/supportagent/internal/tracing"
	"github.com/knoguchi/supportagent/internal/vectorstore"
)

const readinessInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser := logging.Setup(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("failed to run server", "error", err)
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("starting support agent",
		"app", cfg.AppName,
		"version", cfg.AppVersion,
		"grpc_port", cfg.GRPCPort,
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:        cfg.OTelEnabled,
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    "support-agent",
		ServiceVersion: cfg.AppVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}()

	// PostgreSQL backs pgvector retrieval and/or the postgres session store.
	var db *postgres.DB
	if cfg.VectorStore == "pgvector" || cfg.SessionStore == "postgres" {
		var opts []postgres.Option
		if cfg.VectorStore == "pgvector" {
			opts = append(opts, postgres.WithVectorTypes())
		}
		db, err = postgres.New(ctx, cfg.DatabaseURL, opts...)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		slog.Info("connected to PostgreSQL")
	}

	store, closeStore, err := newVectorStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	embed, err := embedder.New(embedder.Config{
		Provider: cfg.EmbeddingProvider,
		Model:    cfg.EmbeddingModel,
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  providerBaseURL(cfg, cfg.EmbeddingProvider),
	})
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	slog.Info("initialized embedder", "provider", cfg.EmbeddingProvider, "model", embed.ModelName())

	llmClient, err := llm.New(ctx, llm.ProviderConfig{
		Provider:    cfg.LLMProvider,
		Model:       cfg.ChatModel,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		APIKey:      providerAPIKey(cfg),
		BaseURL:     providerBaseURL(cfg, cfg.LLMProvider),
		CallTimeout: cfg.LLMCallTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	slog.Info("initialized LLM", "provider", cfg.LLMProvider, "model", cfg.ChatModel)

	searcher := retriever.NewMMRSearcher(embed, store,
		retriever.WithK(cfg.RetrieverK),
		retriever.WithFetchK(cfg.RetrieverFetchK),
		retriever.WithLambda(cfg.RetrieverLambda),
		retriever.WithSearchLogger(logger),
	)
	loop := agent.New(
		intent.NewClassifier(llmClient, intent.WithLogger(logger)),
		retriever.New(searcher, retriever.WithTimeout(cfg.RetrievalTimeout), retriever.WithLogger(logger)),
		reranker.NewLLMReranker(llmClient,
			reranker.WithTopN(cfg.RerankerTopN),
			reranker.WithConcurrency(cfg.RerankerConcurrency),
			reranker.WithLogger(logger),
		),
		generator.New(llmClient, generator.WithLogger(logger)),
		agent.WithTopN(cfg.RerankerTopN),
		agent.WithLogger(logger),
	)

	sessions, err := newSessionStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer sessions.Close()
	slog.Info("initialized session store", "backend", cfg.SessionStore, "max_messages", cfg.MaxHistoryMessages())

	publisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	chatSvc := service.NewChatService(loop, sessions, store,
		service.WithPublisher(publisher),
		service.WithMaxQueryLength(cfg.MaxQueryLength),
		service.WithModelNames(embed.ModelName(), cfg.ChatModel),
		service.WithLogger(logger),
	)

	jwtManager := newJWTManager(cfg)
	if jwtManager == nil {
		slog.Warn("JWT_SECRET is not set; operator tokens are disabled")
	}
	guard := auth.NewGuard(cfg.AdminAPIKey, jwtManager)
	if cfg.AdminAPIKey == "" {
		slog.Warn("ADMIN_API_KEY is not set; admin routes will reject every request")
	}

	grpcServer := server.NewGRPCServer(server.GRPCServerConfig{
		Port:   cfg.GRPCPort,
		Logger: logger,
		Guard:  guard,
	})
	go grpcServer.WatchReadiness(ctx, readinessInterval, func(ctx context.Context) bool {
		return chatSvc.Health(ctx).VectorStoreReady
	})

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:               cfg.HTTPPort,
		Logger:             logger,
		AllowedOrigins:     cfg.CORSOrigins,
		AppName:            cfg.AppName,
		Version:            cfg.AppVersion,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		StreamDelay:        cfg.StreamDelay,
		Guard:              guard,
		JWT:                jwtManager,
	}, chatSvc)

	// Start servers
	errCh := make(chan error, 2)

	go func() {
		if err := grpcServer.Start(); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	slog.Info("shutting down servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown gRPC server", "error", err)
	}

	slog.Info("servers stopped")
	return nil
}

func newVectorStore(ctx context.Context, cfg *config.Config, db *postgres.DB) (vectorstore.VectorStore, func(), error) {
	switch cfg.VectorStore {
	case "pgvector":
		slog.Info("using pgvector store", "table", cfg.CollectionName)
		return vectorstore.NewPgVectorStore(db, cfg.CollectionName), func() {}, nil
	default:
		qs, err := vectorstore.NewQdrantStore(ctx, cfg.QdrantURL, cfg.CollectionName)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		slog.Info("connected to Qdrant", "collection", cfg.CollectionName)
		return qs, func() { _ = qs.Close() }, nil
	}
}

func newSessionStore(ctx context.Context, cfg *config.Config, db *postgres.DB) (session.Store, error) {
	maxMessages := cfg.MaxHistoryMessages()
	switch cfg.SessionStore {
	case "redis":
		s, err := session.NewRedisStore(ctx, cfg.RedisURL, maxMessages, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := session.NewPostgresStore(ctx, db, maxMessages, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare session table: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := session.NewSQLiteStore(cfg.SQLitePath, maxMessages, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite session store: %w", err)
		}
		return s, nil
	default:
		return session.NewMemoryStore(maxMessages, cfg.SessionTTL), nil
	}
}

// newPublisher sends events to NATS when configured. Otherwise events stay
// in process and escalations are announced in the log.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL != "" {
		p, err := events.NewNATSPublisher(ctx, cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		slog.Info("publishing events to NATS", "url", cfg.NATSURL)
		return p, nil
	}

	bus := events.NewChannelBus(logger)
	if err := events.ConsumeEscalations(ctx, bus, events.LogHandoff(logger), logger); err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to subscribe to escalations: %w", err)
	}
	return bus, nil
}

// newJWTManager returns nil when no signing secret is configured, which
// disables operator tokens in the guard and the token endpoint.
func newJWTManager(cfg *config.Config) *auth.JWTManager {
	if cfg.JWTSecret == "" {
		return nil
	}
	jwtCfg := auth.DefaultJWTConfig(cfg.JWTSecret)
	jwtCfg.Expiry = cfg.JWTExpiry
	return auth.NewJWTManager(jwtCfg)
}

func providerAPIKey(cfg *config.Config) string {
	switch cfg.LLMProvider {
	case "anthropic":
		return cfg.AnthropicAPIKey
	case "gemini":
		return cfg.GeminiAPIKey
	default:
		return cfg.OpenAIAPIKey
	}
}

func providerBaseURL(cfg *config.Config, provider string) string {
	if provider == "ollama" {
		return cfg.OllamaURL
	}
	if provider == "openai" {
		return cfg.OpenAIBaseURL
	}
	return ""
}

// Ensure interfaces are satisfied at compile time
var (
	_ vectorstore.VectorStore = (*vectorstore.QdrantStore)(nil)
	_ vectorstore.VectorStore = (*vectorstore.PgVectorStore)(nil)
	_ embedder.Embedder       = (*embedder.OllamaEmbedder)(nil)
	_ embedder.Embedder       = (*embedder.OpenAIEmbedder)(nil)
	_ llm.LLM                 = (*llm.OllamaClient)(nil)
	_ session.Store           = (*session.MemoryStore)(nil)
	_ session.Store           = (*session.RedisStore)(nil)
	_ session.Store           = (*session.PostgresStore)(nil)
	_ session.Store           = (*session.SQLiteStore)(nil)
	_ service.Runner          = (*agent.Agent)(nil)
	_ server.ChatService      = (*service.ChatService)(nil)
)
