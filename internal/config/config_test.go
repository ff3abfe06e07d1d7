package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"STORE_BACKEND", "STATE_TABLE", "DATABASE_URL", "PARAM_PREFIX",
	"LLM_PROVIDER", "OPENAI_MODEL", "OPENAI_BASE_URL", "OPENAI_API_KEY", "GEMINI_API_KEY", "GEMINI_MODEL",
	"OPENSEA_BASE_URL", "OPENSEA_API_KEY", "POOLS_BASE_URL", "POOLS_API_KEY",
	"HISTORY_LIMIT", "MAX_MESSAGE_LENGTH", "CALL_TIMEOUT", "SUGGESTION_TTL",
	"HTTP_PORT", "JWT_SECRET", "CORS_ORIGINS", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATE_TABLE", "scooby-state")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreDynamoDB, cfg.StoreBackend)
	require.Equal(t, "scooby-state", cfg.StateTable)
	require.Equal(t, "scooby.db", cfg.DatabaseURL)
	require.Equal(t, ProviderOpenAI, cfg.LLMProvider)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	require.Equal(t, 20, cfg.HistoryLimit)
	require.Equal(t, 2000, cfg.MaxMessageLength)
	require.Equal(t, 20*time.Second, cfg.CallTimeout)
	require.Equal(t, 30*time.Minute, cfg.SuggestionTTL)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Nil(t, cfg.CORSOrigins)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DATABASE_URL", "/tmp/chat.db")
	t.Setenv("PARAM_PREFIX", "/scooby/prod/")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("HISTORY_LIMIT", "8")
	t.Setenv("MAX_MESSAGE_LENGTH", "not-a-number")
	t.Setenv("CALL_TIMEOUT", "5s")
	t.Setenv("SUGGESTION_TTL", "-1m")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://scooby.app ,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, StoreSQLite, cfg.StoreBackend)
	require.Equal(t, "/tmp/chat.db", cfg.DatabaseURL)
	require.Equal(t, "/scooby/prod", cfg.ParamPrefix)
	require.Equal(t, ProviderGemini, cfg.LLMProvider)
	require.Equal(t, 8, cfg.HistoryLimit)
	require.Equal(t, 2000, cfg.MaxMessageLength)
	require.Equal(t, 5*time.Second, cfg.CallTimeout)
	require.Equal(t, 30*time.Minute, cfg.SuggestionTTL)
	require.Equal(t, []string{"http://localhost:3000", "https://scooby.app"}, cfg.CORSOrigins)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "dynamodb without table", env: map[string]string{}},
		{name: "unknown store", env: map[string]string{"STORE_BACKEND": "redis"}},
		{name: "unknown provider", env: map[string]string{"STATE_TABLE": "t", "LLM_PROVIDER": "llama"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
