package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knoguchi/supportagent/internal/auth"
	"github.com/knoguchi/supportagent/internal/config"
	"github.com/knoguchi/supportagent/internal/server"
	"github.com/knoguchi/supportagent/internal/service"
)

type statsOnlyChat struct{}

func (statsOnlyChat) RunTurn(context.Context, string, string) (service.TurnResult, error) {
	return service.TurnResult{}, nil
}
func (statsOnlyChat) ClearSession(context.Context, string) (bool, error) { return false, nil }
func (statsOnlyChat) Stats(context.Context) (service.Stats, error) {
	return service.Stats{TotalChunks: 120}, nil
}
func (statsOnlyChat) Health(context.Context) service.Health { return service.Health{} }
func (statsOnlyChat) ChatModel() string                     { return "gpt-4o-mini" }

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ADMIN_API_KEY", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestNewJWTManagerDisabledWithoutSecret(t *testing.T) {
	cfg := loadDefaults(t)
	assert.Empty(t, cfg.JWTSecret)
	assert.Nil(t, newJWTManager(cfg))
}

func TestDefaultConfigRejectsForgedOperatorToken(t *testing.T) {
	cfg := loadDefaults(t)
	jwtManager := newJWTManager(cfg)

	forged, _, err := auth.NewJWTManager(auth.DefaultJWTConfig("change-this-in-production")).GenerateToken("mallory")
	require.NoError(t, err)

	srv := server.NewHTTPServer(server.HTTPServerConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Guard:  auth.NewGuard(cfg.AdminAPIKey, jwtManager),
		JWT:    jwtManager,
	}, statsOnlyChat{})

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewJWTManagerUsesConfiguredSecret(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	m := newJWTManager(cfg)
	require.NotNil(t, m)

	tok, _, err := m.GenerateToken("dana")
	require.NoError(t, err)
	claims, err := m.ValidateToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "dana", claims.Operator)
}
