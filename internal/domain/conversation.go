package domain

import "time"

// ConversationTurn is a single persisted question/answer exchange.
// MessageID and CreatedAt are assigned by the store.
type ConversationTurn struct {
	MessageID         int64     `json:"message_id"`
	UserID            string    `json:"user_id,omitempty"`
	ConversationID    string    `json:"conversation_id"`
	UserQuestion      string    `json:"user_question"`
	RewrittenQuestion string    `json:"rewritten_question,omitempty"`
	Intent            Intent    `json:"intent,omitempty"`
	AIAnswer          string    `json:"ai_answer,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	LastMessageAt  time.Time `json:"last_message_at"`
	Preview        string    `json:"preview"`
}

const previewLength = 80

// Preview truncates a question to the listing preview length on a rune boundary.
func Preview(question string) string {
	r := []rune(question)
	if len(r) <= previewLength {
		return question
	}
	return string(r[:previewLength])
}
