package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.ChatModel)
	assert.InDelta(t, 0.1, cfg.Temperature, 1e-6)
	assert.Equal(t, 1024, cfg.MaxTokens)
	assert.Equal(t, 5, cfg.RetrieverK)
	assert.Equal(t, 15, cfg.RetrieverFetchK)
	assert.InDelta(t, 0.7, cfg.RetrieverLambda, 1e-9)
	assert.Equal(t, 3, cfg.RerankerTopN)
	assert.Equal(t, 10, cfg.MaxHistoryTurns)
	assert.Equal(t, 20, cfg.MaxHistoryMessages())
	assert.Equal(t, 30*time.Second, cfg.LLMCallTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("RERANKER_TOP_N", "5")
	t.Setenv("SESSION_STORE", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.LLMProvider)
	assert.Equal(t, 5, cfg.RerankerTopN)
	assert.Equal(t, "sqlite", cfg.SessionStore)
}

func TestValidateRejectsInconsistentRetrieval(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RETRIEVER_K", "10")
	t.Setenv("RETRIEVER_FETCH_K", "4")
	t.Setenv("RETRIEVER_LAMBDA", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETRIEVER_FETCH_K")
	assert.Contains(t, err.Error(), "RETRIEVER_LAMBDA")
}

func TestValidateRejectsUnknownBackends(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SESSION_STORE", "memcached")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_STORE")
}

func TestValidateRejectsShortJWTSecret(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "change-this-in-production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestJWTSecretDefaultsToEmpty(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
}
