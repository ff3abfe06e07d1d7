// Package config reads process configuration from the environment, loading a
// local .env file first when one exists.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDynamoDB = "dynamodb"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	StoreBackend string
	StateTable   string
	DatabaseURL  string
	ParamPrefix  string

	LLMProvider   string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	GeminiAPIKey  string
	GeminiModel   string

	OpenSeaBaseURL string
	OpenSeaAPIKey  string
	PoolsBaseURL   string
	PoolsAPIKey    string

	HistoryLimit     int
	MaxMessageLength int
	CallTimeout      time.Duration
	SuggestionTTL    time.Duration

	HTTPPort    string
	JWTSecret   string
	CORSOrigins []string

	LogLevel slog.Level
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Config{
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreDynamoDB)),
		StateTable:   getEnv("STATE_TABLE", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "scooby.db"),
		ParamPrefix:  strings.TrimRight(getEnv("PARAM_PREFIX", ""), "/"),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		OpenSeaBaseURL: getEnv("OPENSEA_BASE_URL", ""),
		OpenSeaAPIKey:  getEnv("OPENSEA_API_KEY", ""),
		PoolsBaseURL:   getEnv("POOLS_BASE_URL", ""),
		PoolsAPIKey:    getEnv("POOLS_API_KEY", ""),

		HistoryLimit:     getEnvAsInt("HISTORY_LIMIT", 20),
		MaxMessageLength: getEnvAsInt("MAX_MESSAGE_LENGTH", 2000),
		CallTimeout:      getEnvAsDuration("CALL_TIMEOUT", 20*time.Second),
		SuggestionTTL:    getEnvAsDuration("SUGGESTION_TTL", 30*time.Minute),

		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "")),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "INFO")),
	}

	switch cfg.StoreBackend {
	case StoreDynamoDB:
		if cfg.StateTable == "" {
			return Config{}, errors.New("config: STATE_TABLE is required for the dynamodb store")
		}
	case StoreSQLite, StorePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("config: DATABASE_URL is required for the sql store")
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.LLMProvider != ProviderOpenAI && cfg.LLMProvider != ProviderGemini {
		return Config{}, fmt.Errorf("config: unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
