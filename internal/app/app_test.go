package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"scooby-agent/internal/config"
	"scooby-agent/internal/domain"
	"scooby-agent/internal/integrations/paramstore"
	"scooby-agent/internal/usecase"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StoreBackend: config.StoreSQLite,
		DatabaseURL:  filepath.Join(t.TempDir(), "scooby.db"),
		LLMProvider:  config.ProviderOpenAI,
	}
}

func TestEnvTokens(t *testing.T) {
	tok, err := EnvTokens(KeyOpenAI, "")
	require.NoError(t, err)
	require.Nil(t, tok)

	tok, err = EnvTokens(KeyOpenAI, "sk-test")
	require.NoError(t, err)
	v, err := tok.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-test", v)
}

type mapGetter map[string]string

func (m mapGetter) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

func TestSSMTokens(t *testing.T) {
	tokens := SSMTokens(mapGetter{"/scooby/opensea-token": `{"token":"os-key"}`}, "/scooby")

	tok, err := tokens(KeyOpenSea, "ignored")
	require.NoError(t, err)
	v, err := tok.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "os-key", v)

	tok, err = tokens(KeyPools, "")
	require.NoError(t, err)
	_, err = tok.Token(context.Background())
	require.Error(t, err)
}

func TestBuild_RequiresTokens(t *testing.T) {
	_, err := Build(context.Background(), sqliteConfig(t), Deps{})
	require.Error(t, err)
}

func TestBuild_TokenError(t *testing.T) {
	failing := func(string, string) (paramstore.TokenSource, error) {
		return nil, errors.New("bad prefix")
	}
	_, err := Build(context.Background(), sqliteConfig(t), Deps{Tokens: failing})
	require.Error(t, err)
}

func TestBuild_SQLiteWithoutCredentials(t *testing.T) {
	a, err := Build(context.Background(), sqliteConfig(t), Deps{Tokens: EnvTokens})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	out, err := a.Chat.Send(context.Background(), usecase.SendInput{Message: "create a pool", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, domain.IntentCreatePool, out.Intent)
	require.Contains(t, out.Reply, "What name do we give to the pool?")

	turns, err := a.Chat.History(context.Background(), "conv-1", "")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, domain.IntentCreatePool, turns[0].Intent)
}

func TestBuild_WithOpenAIAndPools(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.OpenAIAPIKey = "sk-test"
	cfg.PoolsBaseURL = "http://localhost:3000/api"

	a, err := Build(context.Background(), cfg, Deps{Tokens: EnvTokens})
	require.NoError(t, err)
	require.NotNil(t, a.Chat)
	require.NoError(t, a.Close())
}

func TestBuild_UnsupportedStore(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.StoreBackend = "redis"
	_, err := Build(context.Background(), cfg, Deps{Tokens: EnvTokens})
	require.Error(t, err)
}
