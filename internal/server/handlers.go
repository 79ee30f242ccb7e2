package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/knoguchi/supportagent/internal/apperr"
	"github.com/knoguchi/supportagent/internal/auth"
	"github.com/knoguchi/supportagent/internal/model"
	"github.com/knoguchi/supportagent/internal/service"
)

const (
	maxSourceChars = 300

	confidenceWithSources    = 0.9
	confidenceWithoutSources = 0.4
)

type chatRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
	Message   string `json:"message" validate:"required"`
}

type sourceDocument struct {
	Content        string  `json:"content"`
	SourceFile     string  `json:"source_file"`
	Category       string  `json:"category"`
	RelevanceScore float64 `json:"relevance_score"`
}

type chatResponse struct {
	SessionID        string           `json:"session_id"`
	Answer           string           `json:"answer"`
	Sources          []sourceDocument `json:"sources"`
	Intent           string           `json:"intent"`
	NeedsEscalation  bool             `json:"needs_escalation"`
	Confidence       float64          `json:"confidence"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
}

// streamEvent is one line of the NDJSON stream or one websocket frame.
type streamEvent struct {
	Token string `json:"token,omitempty"`
	Done  bool   `json:"done,omitempty"`
	*chatResponse
}

type sessionClearedResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type healthResponse struct {
	Status           string `json:"status"`
	AppName          string `json:"app_name"`
	Version          string `json:"version"`
	VectorStoreReady bool   `json:"vector_store_ready"`
	DocumentsIndexed uint64 `json:"documents_indexed"`
	Model            string `json:"model"`
}

type tokenRequest struct {
	Operator string `json:"operator" validate:"required,max=64"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type handlers struct {
	svc            ChatService
	logger         *slog.Logger
	appName        string
	version        string
	streamDelay    time.Duration
	allowedOrigins []string
	guard          *auth.Guard
	jwt            *auth.JWTManager
	limiter        *ipRateLimiter
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.RunTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(res))
}

// chatStream runs the whole turn, then replays the answer word by word as
// newline-delimited JSON followed by a done event.
func (h *handlers) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.RunTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	err = h.replay(r.Context(), res, func(ev streamEvent) error {
		if err := enc.Encode(ev); err != nil {
			return err
		}
		_ = rc.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("stream aborted", "session_id", req.SessionID, "error", err)
	}
}

func (h *handlers) chatWebSocket(w http.ResponseWriter, r *http.Request) {
	// The server write timeout must not cut long-lived sockets.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.logger.Error("failed to accept websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("failed to close websocket", "error", closeErr)
		}
	}()

	ctx := r.Context()
	ip := clientIP(r)
	for {
		var req chatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		if err := h.serveFrame(ctx, conn, ip, req); err != nil {
			h.logger.Debug("websocket write error", "error", err)
			return
		}
	}
}

// serveFrame answers one chat frame. Each frame draws from the same
// per-IP budget as a POST /chat.
func (h *handlers) serveFrame(ctx context.Context, conn *websocket.Conn, ip string, req chatRequest) error {
	if h.limiter != nil && !h.limiter.Allow(ip) {
		return wsjson.Write(ctx, conn, rateLimited)
	}
	if err := validateStruct(&req); err != nil {
		return wsjson.Write(ctx, conn, toErrorResponse(err))
	}
	res, err := h.svc.RunTurn(ctx, req.SessionID, req.Message)
	if err != nil {
		return wsjson.Write(ctx, conn, toErrorResponse(err))
	}
	return h.replay(ctx, res, func(ev streamEvent) error {
		return wsjson.Write(ctx, conn, ev)
	})
}

func (h *handlers) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, origin := range h.allowedOrigins {
		if origin == "*" {
			opts.InsecureSkipVerify = true
			continue
		}
		// Patterns match the origin host, without the scheme.
		if _, host, ok := strings.Cut(origin, "://"); ok {
			origin = host
		}
		opts.OriginPatterns = append(opts.OriginPatterns, origin)
	}
	return opts
}

// replay emits one token event per word, paced by streamDelay, then the
// done event carrying the full result.
func (h *handlers) replay(ctx context.Context, res service.TurnResult, emit func(streamEvent) error) error {
	for _, word := range strings.Fields(res.Answer) {
		if err := emit(streamEvent{Token: word + " "}); err != nil {
			return err
		}
		if h.streamDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.streamDelay):
			}
		}
	}
	resp := toChatResponse(res)
	return emit(streamEvent{Done: true, chatResponse: &resp})
}

func (h *handlers) clearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	existed, err := h.svc.ClearSession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to clear session", "session_id", sessionID, "error", err)
		writeError(w, err)
		return
	}
	msg := "Session not found."
	if existed {
		msg = "Session cleared."
	}
	writeJSON(w, http.StatusOK, sessionClearedResponse{SessionID: sessionID, Message: msg})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	hs := h.svc.Health(r.Context())
	status := "healthy"
	if !hs.VectorStoreReady {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           status,
		AppName:          h.appName,
		Version:          h.version,
		VectorStoreReady: hs.VectorStoreReady,
		DocumentsIndexed: hs.DocumentsIndexed,
		Model:            h.svc.ChatModel(),
	})
}

func (h *handlers) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *handlers) readiness(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Health(r.Context()).VectorStoreReady {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) adminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to collect stats", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	if h.jwt == nil {
		writeError(w, apperr.NotFound("token issuing is disabled"))
		return
	}
	var req tokenRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, expires, err := h.jwt.GenerateToken(req.Operator)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		writeError(w, err)
		return
	}
	h.logger.Info("issued operator token", "operator", req.Operator, "expires_at", expires)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expires})
}

// requireOperator admits the admin key or an operator bearer token.
func (h *handlers) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := h.guard.AuthenticateRequest(r)
		if err != nil {
			h.logger.Warn("unauthorized admin access attempt", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
			writeError(w, apperr.Unauthorized("Provide X-API-Key header or an operator bearer token."))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOperator(r.Context(), op)))
	})
}

// requireAdminKey admits only the static admin key.
func (h *handlers) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op, err := h.guard.CheckAPIKey(r.Header.Get(auth.APIKeyHeader))
		if err != nil {
			h.logger.Warn("unauthorized admin access attempt", "path", r.URL.Path, "remote_addr", r.RemoteAddr, "error", err)
			writeError(w, apperr.Unauthorized("Provide X-API-Key header."))
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithOperator(r.Context(), op)))
	})
}

func toChatResponse(res service.TurnResult) chatResponse {
	sources := make([]sourceDocument, 0, len(res.Sources))
	for _, p := range res.Sources {
		sources = append(sources, toSource(p))
	}
	confidence := confidenceWithoutSources
	if len(sources) > 0 {
		confidence = confidenceWithSources
	}
	return chatResponse{
		SessionID:        res.SessionID,
		Answer:           res.Answer,
		Sources:          sources,
		Intent:           string(res.Intent),
		NeedsEscalation:  res.NeedsEscalation,
		Confidence:       confidence,
		ProcessingTimeMS: res.Duration.Milliseconds(),
	}
}

func toSource(p model.Passage) sourceDocument {
	content := p.Text
	if r := []rune(content); len(r) > maxSourceChars {
		content = string(r[:maxSourceChars])
	}
	score := p.Score / 10
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}
	return sourceDocument{
		Content:        content,
		SourceFile:     p.Source,
		Category:       p.Category,
		RelevanceScore: score,
	}
}
