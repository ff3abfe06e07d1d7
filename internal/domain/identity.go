package domain

import (
	"strings"
	"time"
)

// Identity is the minimal user record created on first wallet interaction.
type Identity struct {
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizeWallet trims and lower-cases a wallet address so that every
// spelling of the same address maps to one identity.
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
