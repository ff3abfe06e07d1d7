package domain

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one entry of a transcript. LLM integrations receive the same
// shape, so it stays provider agnostic.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the ordered user/assistant history of a conversation, oldest first.
type Transcript []ChatMessage

// TranscriptFromTurns expands persisted turns into alternating user and
// assistant entries. Turns without an answer contribute only the user entry.
func TranscriptFromTurns(turns []ConversationTurn) Transcript {
	out := make(Transcript, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out, ChatMessage{Role: RoleUser, Content: t.UserQuestion})
		if t.AIAnswer != "" {
			out = append(out, ChatMessage{Role: RoleAssistant, Content: t.AIAnswer})
		}
	}
	return out
}

// LastAssistant returns the most recent assistant entry, if any.
func (t Transcript) LastAssistant() (string, bool) {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Role == RoleAssistant {
			return t[i].Content, true
		}
	}
	return "", false
}

// WithUser returns a copy of t with a trailing user entry.
func (t Transcript) WithUser(text string) Transcript {
	out := make(Transcript, len(t), len(t)+1)
	copy(out, t)
	return append(out, ChatMessage{Role: RoleUser, Content: text})
}
