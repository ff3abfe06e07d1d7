package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scooby-agent/internal/domain"
	"scooby-agent/internal/integrations/opensea"
)

const (
	trendingLimit     = 20
	volumeLimit       = 50
	collectionsLimit  = 50
	defaultVolumeDays = 5
	defaultMinVolume  = 3_000_000.0

	defaultCollectionsOrder = "market_cap"

	openSeaUnavailable = "OpenSea is unavailable right now, please try again in a moment."
)

// runLookup answers single-turn intents.
func (s *ChatService) runLookup(ctx context.Context, intent domain.Intent, t turn) (string, any) {
	switch intent {
	case domain.IntentTrending:
		return s.trending(ctx, t)
	case domain.IntentVolume:
		return s.volume(ctx, t)
	case domain.IntentCollections:
		return s.collections(ctx, t)
	default:
		return s.smallTalk(ctx, t), nil
	}
}

func (s *ChatService) trending(ctx context.Context, t turn) (string, any) {
	limit := t.params.Limit
	if limit <= 0 {
		limit = trendingLimit
	}
	list, ok := s.listCollections(ctx, t, opensea.ListQuery{
		OrderBy:   "one_day_change",
		Direction: "desc",
		Limit:     limit,
		Chain:     t.params.Chain,
	})
	if !ok {
		return openSeaUnavailable, nil
	}

	header := fmt.Sprintf("Here are the top %d trending NFT collections in ~24h by volume.", len(list.Collections))
	return s.summarize(ctx, t, trendingSystemPrompt(), header, list), list
}

func (s *ChatService) volume(ctx context.Context, t turn) (string, any) {
	days := t.params.Days
	if days <= 0 {
		days = defaultVolumeDays
	}
	minVolume := defaultMinVolume
	if t.params.MinVolumeETH != nil {
		minVolume = *t.params.MinVolumeETH
	}
	limit := t.params.Limit
	if limit <= 0 {
		limit = volumeLimit
	}

	list, ok := s.listCollections(ctx, t, opensea.ListQuery{
		OrderBy:   "seven_day_volume",
		Direction: "desc",
		Limit:     limit,
		Chain:     t.params.Chain,
	})
	if !ok {
		return openSeaUnavailable, nil
	}
	list = list.FilterByVolume(minVolume)
	s.suggestions.Put(t.suggestionKey(), list.Slugs())

	header := fmt.Sprintf("Collections with at least %s ETH volume in the last %d days.", formatFloat(minVolume), days)
	return s.summarize(ctx, t, volumeSystemPrompt(), header, list), list
}

func (s *ChatService) collections(ctx context.Context, t turn) (string, any) {
	orderBy := strings.ToLower(strings.TrimSpace(t.params.OrderBy))
	if orderBy == "" {
		orderBy = defaultCollectionsOrder
	}
	if !opensea.ValidOrderBy(orderBy) {
		return fmt.Sprintf("I can't sort collections by %q. Supported values are: %s.",
			orderBy, strings.Join(opensea.OrderByFields, ", ")), nil
	}
	direction := strings.ToLower(strings.TrimSpace(t.params.OrderDirection))
	if direction != "asc" {
		direction = "desc"
	}
	limit := t.params.Limit
	if limit <= 0 {
		limit = collectionsLimit
	}

	list, ok := s.listCollections(ctx, t, opensea.ListQuery{
		OrderBy:   orderBy,
		Direction: direction,
		Limit:     limit,
		Chain:     t.params.Chain,
	})
	if !ok {
		return openSeaUnavailable, nil
	}

	header := fmt.Sprintf("Top %d collections ordered by %s (%s).", len(list.Collections), orderBy, direction)
	return s.summarize(ctx, t, collectionsSystemPrompt(), header, list), list
}

// listCollections queries OpenSea and remembers the listed slugs for
// ordinal follow-ups.
func (s *ChatService) listCollections(ctx context.Context, t turn, q opensea.ListQuery) (opensea.CollectionList, bool) {
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	list, err := s.opensea.ListCollections(cctx, q)
	if err != nil {
		slog.WarnContext(ctx, "opensea list failed", "order_by", q.OrderBy, "err", err)
		return opensea.CollectionList{}, false
	}
	s.suggestions.Put(t.suggestionKey(), list.Slugs())
	return list, true
}

// summarize asks the LLM to present the list and falls back to a numbered
// listing under header.
func (s *ChatService) summarize(ctx context.Context, t turn, systemPrompt, header string, list opensea.CollectionList) string {
	if reply, err := s.generate(ctx, systemPrompt, dataPrompt(t.message, header, list.Collections)); err == nil {
		return reply
	}
	return renderCollections(header, list)
}

func renderCollections(header string, list opensea.CollectionList) string {
	if len(list.Collections) == 0 {
		return header + "\nNo collections matched."
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for i, c := range list.Collections {
		name := c.Name
		if name == "" {
			name = c.Slug
		}
		fmt.Fprintf(&b, "\n%d. **%s**", i+1, name)
		if c.OpenSeaURL != "" {
			fmt.Fprintf(&b, " (%s)", c.OpenSeaURL)
		}
	}
	return b.String()
}

func (s *ChatService) smallTalk(ctx context.Context, t turn) string {
	reply, err := s.generate(ctx, smallTalkSystemPrompt(), smallTalkUserPrompt(t.message, t.history))
	if err != nil {
		return smallTalkFallback
	}
	return reply
}
