package repository

import (
	"context"
	"errors"

	"scooby-agent/internal/domain"
)

const defaultHistoryLimit = 20

// ErrInvalidWallet is returned by ResolveWallet for a blank address.
var ErrInvalidWallet = errors.New("repository: wallet address is required")

// Store is the persistence surface of the chat service. Turns are append only.
type Store interface {
	// AppendTurn assigns MessageID and CreatedAt and persists the turn.
	AppendTurn(ctx context.Context, turn domain.ConversationTurn) (domain.ConversationTurn, error)
	// GetHistory returns the last limit turns oldest first. A non-empty
	// userID restricts the result to that user's turns.
	GetHistory(ctx context.Context, conversationID, userID string, limit int) ([]domain.ConversationTurn, error)
	// ListConversations returns one summary per conversation, newest first.
	ListConversations(ctx context.Context, userID string) ([]domain.ConversationSummary, error)
	// ResolveWallet returns the identity for a wallet, creating it on first use.
	ResolveWallet(ctx context.Context, walletAddress string) (domain.Identity, error)
}

var (
	_ Store = (*Client)(nil)
	_ Store = (*SQLStore)(nil)
)

func reverseTurns(turns []domain.ConversationTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
