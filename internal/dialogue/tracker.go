package dialogue

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"scooby-agent/internal/domain"
)

// IntentClassifier labels a fresh utterance.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) domain.Intent
}

// Resolution is the tracker's decision for a turn.
type Resolution struct {
	Intent    domain.Intent
	Cancelled bool
	Rule      string
}

const (
	RuleCancel     = "cancel"
	RuleSwitch     = "switch"
	RuleSticky     = "sticky"
	RulePromptScan = "prompt_scan"
	RuleClassifier = "classifier"
)

// TrackInput is everything the tracker looks at for one turn.
type TrackInput struct {
	Transcript domain.Transcript
	Message    string
	// Rewritten is what the classifier sees; the raw Message drives the
	// keyword rules.
	Rewritten string
	// LastIntent is the intent recorded with the previous turn, if any.
	LastIntent domain.Intent
}

var cancelRe = regexp.MustCompile(`(?i)\b(cancel\w*|stop|abort)\b`)

// IsCancel reports whether the message asks to abandon the current flow.
func IsCancel(message string) bool {
	return cancelRe.MatchString(message)
}

// Tracker decides which intent a turn continues or starts.
type Tracker struct {
	classifier IntentClassifier
}

func NewTracker(c IntentClassifier) (*Tracker, error) {
	if c == nil {
		return nil, errors.New("dialogue: classifier must not be nil")
	}
	return &Tracker{classifier: c}, nil
}

// Resolve applies, in order: cancellation of the active flow, an explicit
// switch to another flow, stickiness of the last flow, a scan of the last
// assistant prompt, and finally the classifier.
func (t *Tracker) Resolve(ctx context.Context, in TrackInput) Resolution {
	active := domain.IntentNone
	if text, ok := in.Transcript.LastAssistant(); ok {
		if f, ok := activeFlow(in.LastIntent, text); ok {
			active = f.Intent
		}
	}

	if active != domain.IntentNone && IsCancel(in.Message) {
		return Resolution{Intent: active, Cancelled: true, Rule: RuleCancel}
	}

	if active != domain.IntentNone {
		lower := strings.ToLower(in.Message)
		for _, f := range flowOrder {
			if f.Intent != active && f.matchesSwitch(lower) {
				return Resolution{Intent: f.Intent, Rule: RuleSwitch}
			}
		}
	}

	if active != domain.IntentNone {
		if active == in.LastIntent {
			return Resolution{Intent: active, Rule: RuleSticky}
		}
		return Resolution{Intent: active, Rule: RulePromptScan}
	}

	text := in.Rewritten
	if strings.TrimSpace(text) == "" {
		text = in.Message
	}
	return Resolution{Intent: t.classifier.Classify(ctx, text), Rule: RuleClassifier}
}
