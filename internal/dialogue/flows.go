// Package dialogue holds the slot-filling engine: flow definitions, slot
// extraction, intent tracking and classification. Everything here is pure
// except the classifier's optional LLM call.
package dialogue

import (
	"strings"

	"scooby-agent/internal/domain"
)

// Slot names a single field a flow must collect before acting.
type Slot string

const (
	SlotPoolName          Slot = "pool_name"
	SlotOpenSeaLink       Slot = "opensea_link"
	SlotCreatorFee        Slot = "creator_fee"
	SlotBuyPrice          Slot = "buy_price"
	SlotSellPrice         Slot = "sell_price"
	SlotPoolID            Slot = "pool_id"
	SlotAmount            Slot = "amount"
	SlotCollectionAddress Slot = "collection_address"
	SlotCollectionSlug    Slot = "collection_slug"
)

type slotKind int

const (
	kindText slotKind = iota
	kindNumber
	kindLink
	kindPoolID
	kindAddress
	kindSlug
)

type slotSpec struct {
	slot    Slot
	kind    slotKind
	prompt  string
	phrases []string
}

// Flow is the definition of one multi-turn intent: its ordered slots, the
// prompts that ask for them and the phrases that switch into it.
type Flow struct {
	Intent domain.Intent
	label  string
	slots  []slotSpec
	// scanMessage lets the slot be read from any user message in the
	// segment, not only from answers to its prompt.
	scanMessage   bool
	switchPhrases []string
}

var (
	createPoolFlow = &Flow{
		Intent: domain.IntentCreatePool,
		label:  "pool creation",
		slots: []slotSpec{
			{
				slot:    SlotPoolName,
				kind:    kindText,
				prompt:  "Let's create a pool! What name do we give to the pool?",
				phrases: []string{"what name do we give to the pool"},
			},
			{
				slot:    SlotOpenSeaLink,
				kind:    kindLink,
				prompt:  "Nice! Please share the OpenSea collection link of the NFTs this pool will trade (e.g. https://opensea.io/collection/pudgypenguins).",
				phrases: []string{"opensea collection link of the nfts"},
			},
			{
				slot:    SlotCreatorFee,
				kind:    kindNumber,
				prompt:  "What creator fee (in %) should the pool charge?",
				phrases: []string{"what creator fee (in %)"},
			},
			{
				slot:    SlotBuyPrice,
				kind:    kindNumber,
				prompt:  "What is the buying price (in ETH) for the pool?",
				phrases: []string{"what is the buying price (in eth)"},
			},
			{
				slot:    SlotSellPrice,
				kind:    kindNumber,
				prompt:  "And what is the selling price (in ETH)?",
				phrases: []string{"what is the selling price (in eth)"},
			},
		},
		switchPhrases: []string{"create a pool", "create pool", "new pool", "make a pool"},
	}

	poolInvestFlow = &Flow{
		Intent: domain.IntentPoolInvest,
		label:  "investment",
		slots: []slotSpec{
			{
				slot:    SlotPoolID,
				kind:    kindPoolID,
				prompt:  "Which pool would you like to invest in? Please share the pool id (e.g. pool id: clx1abc234).",
				phrases: []string{"which pool would you like to invest in"},
			},
			{
				slot:    SlotAmount,
				kind:    kindNumber,
				prompt:  "How much ETH would you like to invest?",
				phrases: []string{"how much eth would you like to invest"},
			},
		},
		switchPhrases: []string{"invest"},
	}

	retrievePoolsFlow = &Flow{
		Intent: domain.IntentRetrievePools,
		label:  "pool search",
		slots: []slotSpec{
			{
				slot:    SlotCollectionAddress,
				kind:    kindAddress,
				prompt:  "Please share the OpenSea collection link (e.g. https://opensea.io/collection/pudgypenguins) and I'll look up its pools.",
				phrases: []string{"i'll look up its pools"},
			},
		},
		scanMessage:   true,
		switchPhrases: []string{"show pools", "list pools", "find pools", "existing pools", "pools for"},
	}

	statisticsFlow = &Flow{
		Intent: domain.IntentStatistics,
		label:  "stats lookup",
		slots: []slotSpec{
			{
				slot:    SlotCollectionSlug,
				kind:    kindSlug,
				prompt:  "Which collection would you like stats for? Share its OpenSea link or its name.",
				phrases: []string{"which collection would you like stats for"},
			},
		},
		scanMessage:   true,
		switchPhrases: []string{"stats", "statistics", "floor price"},
	}

	// flowOrder fixes evaluation order wherever several flows could match.
	flowOrder = []*Flow{createPoolFlow, poolInvestFlow, retrievePoolsFlow, statisticsFlow}
)

// FlowFor returns the flow definition driving intent.
func FlowFor(intent domain.Intent) (*Flow, bool) {
	for _, f := range flowOrder {
		if f.Intent == intent {
			return f, true
		}
	}
	return nil, false
}

// Slots returns the flow's slot names in asking order.
func (f *Flow) Slots() []Slot {
	out := make([]Slot, len(f.slots))
	for i, s := range f.slots {
		out[i] = s.slot
	}
	return out
}

// Prompt returns the question that asks for slot.
func (f *Flow) Prompt(slot Slot) string {
	for _, s := range f.slots {
		if s.slot == slot {
			return s.prompt
		}
	}
	return ""
}

// PromptSlot reports which of the flow's slots an assistant text asks for.
// Later slots are checked first so a prompt that quotes an earlier phrase
// still resolves to the furthest stage.
func (f *Flow) PromptSlot(text string) (Slot, bool) {
	idx, ok := f.promptIndex(text)
	if !ok {
		return "", false
	}
	return f.slots[idx].slot, true
}

func (f *Flow) promptIndex(text string) (int, bool) {
	lower := strings.ToLower(text)
	for i := len(f.slots) - 1; i >= 0; i-- {
		for _, p := range f.slots[i].phrases {
			if strings.Contains(lower, p) {
				return i, true
			}
		}
	}
	return 0, false
}

func (f *Flow) matchesSwitch(lowerMessage string) bool {
	for _, p := range f.switchPhrases {
		if strings.Contains(lowerMessage, p) {
			return true
		}
	}
	return false
}

// activeFlow returns the flow still waiting for an answer after an assistant
// reply recorded under lastIntent. A recorded flow is active only while the
// reply is one of its own prompts. The prompt scan applies only to replies
// with no recorded intent.
func activeFlow(lastIntent domain.Intent, lastAnswer string) (*Flow, bool) {
	if f, ok := FlowFor(lastIntent); ok {
		if _, asking := f.promptIndex(lastAnswer); asking {
			return f, true
		}
		return nil, false
	}
	if lastIntent != domain.IntentNone {
		return nil, false
	}
	return flowForPrompt(lastAnswer)
}

// flowForPrompt finds the flow whose prompt phrases appear in an assistant text.
func flowForPrompt(text string) (*Flow, bool) {
	for _, f := range flowOrder {
		if _, ok := f.promptIndex(text); ok {
			return f, true
		}
	}
	return nil, false
}
