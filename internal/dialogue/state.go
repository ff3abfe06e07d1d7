package dialogue

import "scooby-agent/internal/domain"

// FlowState is the dialogue state reconstructed from persisted history.
type FlowState struct {
	ActiveIntent domain.Intent
	Slots        Slots
	LastPrompt   Slot
}

// Active reports whether a flow is waiting for an answer.
func (s FlowState) Active() bool {
	return s.ActiveIntent != domain.IntentNone
}

// DeriveFlowState rebuilds the flow state from history alone. A flow is
// active only while its last assistant reply is one of its prompts. A
// terminal reply (result, failure or cancellation) leaves no active flow.
func DeriveFlowState(turns []domain.ConversationTurn) FlowState {
	if len(turns) == 0 {
		return FlowState{}
	}
	last := turns[len(turns)-1]

	flow, ok := activeFlow(last.Intent, last.AIAnswer)
	if !ok {
		return FlowState{}
	}

	prompt, _ := flow.PromptSlot(last.AIAnswer)
	return FlowState{
		ActiveIntent: flow.Intent,
		Slots:        extract(flow, domain.TranscriptFromTurns(turns)),
		LastPrompt:   prompt,
	}
}
