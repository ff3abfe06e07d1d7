// Package app wires configuration, gateways and the store into a chat
// service. Both entrypoints build through here; they differ only in where API
// tokens come from.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"scooby-agent/internal/config"
	"scooby-agent/internal/integrations/gemini"
	"scooby-agent/internal/integrations/openai"
	"scooby-agent/internal/integrations/opensea"
	"scooby-agent/internal/integrations/paramstore"
	"scooby-agent/internal/integrations/pools"
	"scooby-agent/internal/repository"
	"scooby-agent/internal/usecase"
)

// Token parameter keys under PARAM_PREFIX.
const (
	KeyOpenAI  = "open-ai-token"
	KeyOpenSea = "opensea-token"
	KeyPools   = "pools-token"
	KeyGemini  = "gemini-token"
)

const openAITemperature = 0.3

// TokenFunc returns the credential source for key. envValue is the value of
// the matching environment variable. A nil source means no credential.
type TokenFunc func(key, envValue string) (paramstore.TokenSource, error)

// EnvTokens serves credentials straight from the environment.
func EnvTokens(_ string, envValue string) (paramstore.TokenSource, error) {
	if envValue == "" {
		return nil, nil
	}
	return paramstore.StaticToken(envValue), nil
}

// SSMTokens serves credentials from JSON {"token"} parameters under prefix.
func SSMTokens(getter paramstore.Getter, prefix string) TokenFunc {
	return func(key, _ string) (paramstore.TokenSource, error) {
		return paramstore.NewSecretToken(getter, prefix, key)
	}
}

type Deps struct {
	Tokens TokenFunc
	// AWS is reused for DynamoDB when set; otherwise the default chain is loaded.
	AWS *aws.Config
}

type App struct {
	Chat    *usecase.ChatService
	closers []func() error
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func Build(ctx context.Context, cfg config.Config, d Deps) (*App, error) {
	if d.Tokens == nil {
		return nil, errors.New("app: token func must not be nil")
	}
	a := &App{}

	store, err := a.openStore(ctx, cfg, d.AWS)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	llm, err := a.newLLM(ctx, cfg, d.Tokens)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	openseaToken, err := d.Tokens(KeyOpenSea, cfg.OpenSeaAPIKey)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("app: opensea token: %w", err)
	}
	deps := usecase.Deps{
		Store:   store,
		OpenSea: opensea.NewClient(openseaToken, opensea.WithBaseURL(cfg.OpenSeaBaseURL)),
	}
	if llm != nil {
		deps.LLM = llm
	}

	if cfg.PoolsBaseURL != "" {
		poolsToken, err := d.Tokens(KeyPools, cfg.PoolsAPIKey)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: pools token: %w", err)
		}
		pc, err := pools.NewClient(cfg.PoolsBaseURL, poolsToken)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		deps.Pools = pc
	} else {
		slog.Warn("POOLS_BASE_URL not set, pool actions will return manual instructions")
	}

	chat, err := usecase.NewChatService(deps, usecase.Options{
		HistoryLimit:     cfg.HistoryLimit,
		MaxMessageLength: cfg.MaxMessageLength,
		CallTimeout:      cfg.CallTimeout,
		SuggestionTTL:    cfg.SuggestionTTL,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Chat = chat
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config, awsCfg *aws.Config) (usecase.ConversationStore, error) {
	switch cfg.StoreBackend {
	case config.StoreDynamoDB:
		if awsCfg == nil {
			loaded, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("app: load AWS config: %w", err)
			}
			awsCfg = &loaded
		}
		return repository.New(awsdynamodb.NewFromConfig(*awsCfg), cfg.StateTable)
	case config.StoreSQLite, config.StorePostgres:
		driver := repository.DriverSQLite
		if cfg.StoreBackend == config.StorePostgres {
			driver = repository.DriverPostgres
		}
		s, err := repository.OpenSQL(ctx, driver, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
	return nil, fmt.Errorf("app: unsupported store backend %q", cfg.StoreBackend)
}

// newLLM returns nil without error when no credential is configured; every
// LLM caller has a local fallback.
func (a *App) newLLM(ctx context.Context, cfg config.Config, tokens TokenFunc) (usecase.LLM, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		tok, err := tokens(KeyGemini, cfg.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("app: gemini token: %w", err)
		}
		if tok == nil {
			slog.Warn("no Gemini credential configured, running without an LLM")
			return nil, nil
		}
		c, err := gemini.NewClient(ctx, tok, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		return c, nil
	default:
		tok, err := tokens(KeyOpenAI, cfg.OpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("app: openai token: %w", err)
		}
		if tok == nil {
			slog.Warn("no OpenAI credential configured, running without an LLM")
			return nil, nil
		}
		return openai.NewClient(tok,
			openai.WithModel(cfg.OpenAIModel),
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithTemperature(openAITemperature),
		)
	}
}
