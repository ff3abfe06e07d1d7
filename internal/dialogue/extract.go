package dialogue

import (
	"strings"

	"scooby-agent/internal/domain"
)

// Params carries structured hints from the request that can satisfy a
// single-slot flow without asking.
type Params struct {
	Slug    string
	Address string
}

// Extract collects the flow's slots from the transcript plus the current
// message. A value is accepted only as the answer to the slot's own prompt
// (single-slot flows also scan the message itself). Once a later prompt has
// been shown, earlier unanswered slots count as satisfied and are never asked
// again.
func Extract(flow *Flow, transcript domain.Transcript, message string, params Params) Slots {
	slots := extract(flow, transcript.WithUser(message))
	applyParams(flow, slots, params)
	return slots
}

func extract(flow *Flow, transcript domain.Transcript) Slots {
	entries := segment(flow, transcript)
	slots := Slots{}
	furthest := -1
	for i, e := range entries {
		if e.Role == domain.RoleAssistant {
			if idx, ok := flow.promptIndex(e.Content); ok && idx > furthest {
				furthest = idx
			}
			continue
		}
		answered := -1
		if i > 0 && entries[i-1].Role == domain.RoleAssistant {
			if idx, ok := flow.promptIndex(entries[i-1].Content); ok {
				answered = idx
			}
		}
		if answered >= 0 {
			spec := flow.slots[answered]
			if v, ok := parseSlot(spec, e.Content, true); ok {
				slots[spec.slot] = v
			}
			continue
		}
		if flow.scanMessage {
			for _, spec := range flow.slots {
				if slots.Has(spec.slot) {
					continue
				}
				if v, ok := parseSlot(spec, e.Content, false); ok {
					slots[spec.slot] = v
				}
			}
		}
	}
	for i := 0; i < furthest; i++ {
		if !slots.Has(flow.slots[i].slot) {
			slots[flow.slots[i].slot] = ""
		}
	}
	return slots
}

// segment returns the trailing part of the transcript that belongs to the
// current run of this flow: everything after the last assistant entry that
// is not one of the flow's prompts.
func segment(flow *Flow, transcript domain.Transcript) domain.Transcript {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role != domain.RoleAssistant {
			continue
		}
		if _, ok := flow.promptIndex(transcript[i].Content); !ok {
			return transcript[i+1:]
		}
	}
	return transcript
}

func applyParams(flow *Flow, slots Slots, p Params) {
	switch flow.Intent {
	case domain.IntentStatistics:
		if slug := strings.TrimSpace(p.Slug); slug != "" {
			slots[SlotCollectionSlug] = strings.ToLower(slug)
		}
	case domain.IntentRetrievePools:
		if addr := strings.TrimSpace(p.Address); addr != "" {
			slots[SlotCollectionAddress] = strings.ToLower(addr)
		} else if slug := strings.TrimSpace(p.Slug); slug != "" && !slots.Has(SlotCollectionAddress) {
			slots[SlotCollectionAddress] = LinkValue(strings.ToLower(slug))
		}
	}
}

// LastPrompt returns the slot the most recent assistant entry asked for, when
// that entry is one of the flow's prompts.
func LastPrompt(flow *Flow, transcript domain.Transcript) (Slot, bool) {
	text, ok := transcript.LastAssistant()
	if !ok {
		return "", false
	}
	return flow.PromptSlot(text)
}
