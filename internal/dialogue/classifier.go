package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scooby-agent/internal/domain"
)

// Generator is the LLM text facade.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

var retrieveVerbs = map[string]bool{
	"get": true, "provide": true, "check": true, "show": true,
	"list": true, "find": true, "see": true, "view": true,
}

// Heuristic applies the keyword rules that run before the LLM.
func Heuristic(text string) (domain.Intent, bool) {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "pool") {
		return domain.IntentNone, false
	}
	if strings.Contains(lower, "create") {
		return domain.IntentCreatePool, true
	}
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if retrieveVerbs[w] {
			return domain.IntentRetrievePools, true
		}
	}
	if strings.Contains(lower, "invest") {
		return domain.IntentPoolInvest, true
	}
	return domain.IntentNone, false
}

// Classifier maps an utterance to an intent: heuristics first, then the LLM,
// and small_talk whenever the LLM fails or answers outside the label set.
type Classifier struct {
	llm Generator
}

// NewClassifier accepts a nil generator, in which case only heuristics run.
func NewClassifier(llm Generator) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, text string) domain.Intent {
	if in, ok := Heuristic(text); ok {
		return in
	}
	if c.llm == nil {
		return domain.IntentSmallTalk
	}
	raw, err := c.llm.Generate(ctx, classifierSystemPrompt(), fmt.Sprintf("Classify this user message into an intent: %q. Return only the label.", text))
	if err != nil {
		slog.WarnContext(ctx, "intent classification failed", "err", err)
		return domain.IntentSmallTalk
	}
	if in, ok := parseLabel(raw); ok {
		return in
	}
	slog.WarnContext(ctx, "intent classifier returned unknown label", "label", raw)
	return domain.IntentSmallTalk
}

func parseLabel(raw string) (domain.Intent, bool) {
	label := strings.Trim(strings.TrimSpace(raw), "\"'`.!,;: \n")
	return domain.ParseIntent(label)
}

func classifierSystemPrompt() string {
	return strings.Join([]string{
		"You are an intent classifier for an NFT assistant named Scooby.",
		"Return ONLY one of: small_talk, opensea_trending, opensea_volume, opensea_collections, nft_statistics, create_pool, retrieve_pools, pool_invest.",
		"small_talk is for greetings or generic questions.",
		"opensea_trending is for queries about trending collections in ~24h.",
		"opensea_volume is for queries about collection volume over N days.",
		"opensea_collections is for custom sorting or filters like market cap, num owners, floor change.",
		"nft_statistics is for stats of one specific collection (floor price, owners, market cap).",
		"create_pool is for creating a new pool for a collection.",
		"retrieve_pools is for finding existing pools of a collection.",
		"pool_invest is for investing an amount into an existing pool.",
	}, "\n")
}
