package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"scooby-agent/internal/domain"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "scooby.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.now = stepClock()
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("user-%d", n)
	}
	return s
}

func TestOpenSQL_Validation(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "x")
	require.ErrorContains(t, err, "unsupported sql driver")
	_, err = OpenSQL(context.Background(), DriverSQLite, " ")
	require.ErrorContains(t, err, "dsn must not be empty")
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driver: DriverPostgres}
	require.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.rebind("SELECT 1 WHERE a = ? AND b = ?"))
	lite := &SQLStore{driver: DriverSQLite}
	require.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestSQLStore_AppendAndHistory(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		turn, err := s.AppendTurn(ctx, domain.ConversationTurn{
			ConversationID: "c", UserID: "u1", UserQuestion: fmt.Sprintf("q%d", i),
			Intent: domain.IntentCreatePool, AIAnswer: fmt.Sprintf("a%d", i),
		})
		require.NoError(t, err)
		require.Equal(t, int64(i), turn.MessageID)
	}
	_, err := s.AppendTurn(ctx, domain.ConversationTurn{ConversationID: "c", UserQuestion: "anon"})
	require.NoError(t, err)

	turns, err := s.GetHistory(ctx, "c", "", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	require.Equal(t, "q3", turns[0].UserQuestion)
	require.Equal(t, "anon", turns[2].UserQuestion)
	require.Empty(t, turns[2].UserID)
	require.Empty(t, turns[2].Intent)
	require.True(t, turns[0].CreatedAt.Before(turns[1].CreatedAt))

	mine, err := s.GetHistory(ctx, "c", "u1", 0)
	require.NoError(t, err)
	require.Len(t, mine, 4)
	require.Equal(t, domain.IntentCreatePool, mine[0].Intent)
	require.Equal(t, "a1", mine[0].AIAnswer)

	none, err := s.GetHistory(ctx, "missing", "", 5)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSQLStore_AppendValidation(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.AppendTurn(context.Background(), domain.ConversationTurn{UserQuestion: "hi"})
	require.Error(t, err)
	_, err = s.AppendTurn(context.Background(), domain.ConversationTurn{ConversationID: "c"})
	require.Error(t, err)
}

func TestSQLStore_ListConversations(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	add := func(conv, user, q string) {
		_, err := s.AppendTurn(ctx, domain.ConversationTurn{ConversationID: conv, UserID: user, UserQuestion: q})
		require.NoError(t, err)
	}
	add("a", "u1", "first in a")
	add("b", "u1", "first in b")
	add("a", "u1", strings.Repeat("é", 100))
	add("c", "u2", "someone else")

	mine, err := s.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	require.Equal(t, "a", mine[0].ConversationID)
	require.Equal(t, 80, len([]rune(mine[0].Preview)))
	require.Equal(t, "b", mine[1].ConversationID)
	require.Equal(t, "first in b", mine[1].Preview)

	all, err := s.ListConversations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "c", all[0].ConversationID)
	require.True(t, all[0].LastMessageAt.After(all[1].LastMessageAt))

	empty, err := s.ListConversations(ctx, "nobody")
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestSQLStore_ResolveWallet_Idempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	first, err := s.ResolveWallet(ctx, " 0xABC  ")
	require.NoError(t, err)
	second, err := s.ResolveWallet(ctx, "0xabc")
	require.NoError(t, err)

	require.Equal(t, "user-1", first.UserID)
	require.Equal(t, first.UserID, second.UserID)
	require.Equal(t, "0xabc", second.WalletAddress)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt))

	other, err := s.ResolveWallet(ctx, "0xdef")
	require.NoError(t, err)
	require.NotEqual(t, first.UserID, other.UserID)

	_, err = s.ResolveWallet(ctx, "")
	require.ErrorIs(t, err, ErrInvalidWallet)
}
