package dialogue

import "fmt"

// StepKind is the controller decision for a turn.
type StepKind int

const (
	StepAsk StepKind = iota + 1
	StepCancelled
	StepExecute
)

func (k StepKind) String() string {
	switch k {
	case StepAsk:
		return "ask"
	case StepCancelled:
		return "cancelled"
	case StepExecute:
		return "execute"
	}
	return "unknown"
}

// Step is the next action of a flow. Prompt is set for StepAsk, Message for
// StepCancelled.
type Step struct {
	Kind    StepKind
	Slot    Slot
	Prompt  string
	Message string
}

// NextStep asks for the first unsatisfied slot in order, or executes when
// every slot is present.
func (f *Flow) NextStep(slots Slots) Step {
	for _, s := range f.slots {
		if !slots.Has(s.slot) {
			return Step{Kind: StepAsk, Slot: s.slot, Prompt: s.prompt}
		}
	}
	return Step{Kind: StepExecute}
}

// Cancelled acknowledges that the user abandoned the flow.
func (f *Flow) Cancelled() Step {
	return Step{
		Kind:    StepCancelled,
		Message: fmt.Sprintf("No problem, I've cancelled the %s. Let me know if there's anything else I can help with!", f.label),
	}
}

const retryPrefix = "Sorry, I couldn't read that. "

// Reprompt prefixes a repeated question so the user sees the previous answer
// was not accepted. The slot's phrases are kept, so the repeat still counts as
// the same prompt.
func Reprompt(step Step) Step {
	step.Prompt = retryPrefix + step.Prompt
	return step
}
