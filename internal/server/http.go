package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/knoguchi/supportagent/internal/auth"
	"github.com/knoguchi/supportagent/internal/service"
)

// ChatService is what the transport layer needs from the service layer.
type ChatService interface {
	RunTurn(ctx context.Context, sessionID, query string) (service.TurnResult, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
	Stats(ctx context.Context) (service.Stats, error)
	Health(ctx context.Context) service.Health
	ChatModel() string
}

// HTTPServer serves the chat and admin JSON API.
type HTTPServer struct {
	server *http.Server
	router *chi.Mux
	logger *slog.Logger
	port   int
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port           int
	Logger         *slog.Logger
	AllowedOrigins []string // CORS allowed origins
	AppName        string
	Version        string

	// RateLimitPerMinute caps chat requests per client IP. Zero disables it.
	RateLimitPerMinute int
	// StreamDelay paces word events on the streaming endpoints.
	StreamDelay time.Duration

	Guard *auth.Guard
	JWT   *auth.JWTManager
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg HTTPServerConfig, svc ChatService) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Guard == nil {
		cfg.Guard = auth.NewGuard("", cfg.JWT)
	}

	h := &handlers{
		svc:            svc,
		logger:         logger,
		appName:        cfg.AppName,
		version:        cfg.Version,
		streamDelay:    cfg.StreamDelay,
		allowedOrigins: cfg.AllowedOrigins,
		guard:          cfg.Guard,
		jwt:            cfg.JWT,
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(corsMiddleware(cfg.AllowedOrigins))

	router.Get("/healthz", h.liveness)
	router.Get("/readyz", h.readiness)
	router.Get("/health", h.health)

	if cfg.RateLimitPerMinute > 0 {
		h.limiter = newIPRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	router.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(rateLimitMiddleware(h.limiter))
		}
		r.Post("/chat", h.chat)
		r.Post("/chat/stream", h.chatStream)
		r.Get("/chat/ws", h.chatWebSocket)
	})
	router.Delete("/session/{sessionID}", h.clearSession)

	router.Route("/admin", func(r chi.Router) {
		r.With(h.requireOperator).Get("/stats", h.adminStats)
		r.With(h.requireAdminKey).Post("/token", h.issueToken)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(router, "support-agent-http"),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // Long LLM turns plus paced streaming
		IdleTimeout:  120 * time.Second,
	}

	return &HTTPServer{
		server: server,
		router: router,
		logger: logger,
		port:   cfg.Port,
	}
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Handler returns the routed handler without the server wrapper.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration,
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", auth.APIKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}
