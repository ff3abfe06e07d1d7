package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"scooby-agent/internal/dialogue"
	"scooby-agent/internal/domain"
	"scooby-agent/internal/integrations/opensea"
	"scooby-agent/internal/integrations/pools"
)

const poolsShown = 5

// runFlow asks for the next missing slot or executes the flow.
func (s *ChatService) runFlow(ctx context.Context, intent domain.Intent, t turn) (string, any, dialogue.StepKind) {
	flow, _ := dialogue.FlowFor(intent)

	params := dialogue.Params{Slug: t.params.Slug, Address: t.params.Address}
	if intent == domain.IntentStatistics && strings.TrimSpace(params.Slug) == "" {
		if n, ok := dialogue.ParseOrdinal(t.message); ok {
			if slug, ok := s.suggestions.Pick(t.suggestionKey(), n); ok {
				params.Slug = slug
			}
		}
	}

	slots := dialogue.Extract(flow, t.transcript, t.message, params)
	step := flow.NextStep(slots)
	if step.Kind == dialogue.StepAsk {
		if last, ok := dialogue.LastPrompt(flow, t.transcript); ok && last == step.Slot {
			step = dialogue.Reprompt(step)
		}
		return step.Prompt, nil, step.Kind
	}

	var reply string
	var data any
	switch intent {
	case domain.IntentCreatePool:
		reply, data = s.executeCreatePool(ctx, slots, t)
	case domain.IntentPoolInvest:
		reply, data = s.executeInvest(ctx, slots, t)
	case domain.IntentRetrievePools:
		reply, data = s.executeRetrievePools(ctx, slots)
	case domain.IntentStatistics:
		reply, data = s.executeStats(ctx, slots, t)
	}
	return reply, data, step.Kind
}

// contractFor resolves a collection slug to its first contract. The returned
// string is a user-facing failure message when ok is false.
func (s *ChatService) contractFor(ctx context.Context, slug string) (opensea.Contract, string, bool) {
	if slug == "" {
		return opensea.Contract{}, "I don't have an OpenSea collection to work with. Please try again with a collection link like https://opensea.io/collection/pudgypenguins.", false
	}
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	col, err := s.opensea.GetCollection(cctx, slug)
	if err != nil {
		slog.WarnContext(ctx, "opensea collection lookup failed", "slug", slug, "err", err)
		return opensea.Contract{}, fmt.Sprintf("I couldn't look up the collection %q on OpenSea (%s). Please try a different collection link.", slug, failureReason(err)), false
	}
	contract, ok := col.ContractAddress()
	if !ok {
		return opensea.Contract{}, fmt.Sprintf("I couldn't find a contract address for %q on OpenSea. Please try a different collection link.", slug), false
	}
	return contract, "", true
}

func (s *ChatService) executeCreatePool(ctx context.Context, slots dialogue.Slots, t turn) (string, any) {
	slug := slots[dialogue.SlotOpenSeaLink]
	contract, msg, ok := s.contractFor(ctx, slug)
	if !ok {
		return msg, nil
	}

	fee, _ := slots.Float(dialogue.SlotCreatorFee)
	buy, _ := slots.Float(dialogue.SlotBuyPrice)
	sell, _ := slots.Float(dialogue.SlotSellPrice)
	req := pools.CreateRequest{
		Name:                 slots[dialogue.SlotPoolName],
		NFTCollectionAddress: contract.Address,
		CreatorFee:           fee,
		BuyPrice:             buy,
		SellPrice:            sell,
		ChainID:              pools.ChainID(contract.Chain),
		CollectionSlug:       slug,
		WalletAddress:        t.wallet,
	}

	var pool pools.Pool
	var err error
	if s.pools == nil {
		err = errPoolsNotConfigured
	} else {
		cctx, cancel := s.withTimeout(ctx)
		pool, err = s.pools.Create(cctx, req)
		cancel()
	}
	if err != nil {
		slog.WarnContext(ctx, "pool create failed, returning manual payload", "slug", slug, "err", err)
		payload, _ := json.MarshalIndent(req, "", "  ")
		reply := fmt.Sprintf(
			"I couldn't create the pool automatically: %s\nYou can submit it manually with this payload:\n```json\n%s\n```",
			failureReason(err), payload,
		)
		return reply, map[string]any{"payload": req}
	}

	name := pool.Name
	if name == "" {
		name = req.Name
	}
	reply := fmt.Sprintf("Your pool %q for %s is created! Pool id: %s\nBuy: %s ETH · Sell: %s ETH · Creator fee: %s%%",
		name, slug, pool.ID, formatFloat(buy), formatFloat(sell), formatFloat(fee))
	return reply, map[string]any{"pool": pool}
}

func (s *ChatService) executeInvest(ctx context.Context, slots dialogue.Slots, t turn) (string, any) {
	poolID := slots[dialogue.SlotPoolID]
	amount, ok := slots.Float(dialogue.SlotAmount)
	if poolID == "" || !ok || amount <= 0 {
		return "I need a pool id and a positive ETH amount to invest. Say \"invest\" to start over.", nil
	}
	if t.wallet == "" {
		return "Please connect your wallet first so I can invest on your behalf.", nil
	}
	if s.pools == nil {
		return fmt.Sprintf("Sorry, the investment in pool %s failed: %s", poolID, failureReason(errPoolsNotConfigured)), nil
	}

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.pools.Invest(cctx, pools.InvestRequest{PoolID: poolID, Amount: amount, WalletAddress: t.wallet})
	if err != nil {
		slog.WarnContext(ctx, "pool invest failed", "pool_id", poolID, "err", err)
		return fmt.Sprintf("Sorry, the investment in pool %s failed: %s", poolID, failureReason(err)), nil
	}

	reply := fmt.Sprintf("Done! You invested %s ETH in pool %s.", formatFloat(amount), poolID)
	if res.Investment.TxHash != "" {
		reply += " Transaction: " + res.Investment.TxHash
	}
	return reply, map[string]any{"investment": res.Investment}
}

func (s *ChatService) executeRetrievePools(ctx context.Context, slots dialogue.Slots) (string, any) {
	address := slots[dialogue.SlotCollectionAddress]
	if slug, ok := dialogue.SplitLinkValue(address); ok {
		contract, msg, ok := s.contractFor(ctx, slug)
		if !ok {
			return msg, nil
		}
		address = strings.ToLower(contract.Address)
	}
	if address == "" {
		return "I need a collection address or an OpenSea collection link to search for pools.", nil
	}
	if s.pools == nil {
		return fmt.Sprintf("Sorry, I couldn't fetch pools for %s: %s", address, failureReason(errPoolsNotConfigured)), nil
	}

	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	list, err := s.pools.ListByCollection(cctx, address)
	if err != nil {
		slog.WarnContext(ctx, "pool listing failed", "address", address, "err", err)
		return fmt.Sprintf("Sorry, I couldn't fetch pools for %s: %s", address, failureReason(err)), nil
	}
	if list.TotalPools == 0 && len(list.Pools) == 0 {
		return "No pools found for this collection yet. Want to create one? Just say \"create a pool\".", list
	}
	return renderPools(address, list), list
}

func renderPools(address string, list pools.CollectionPools) string {
	total := list.TotalPools
	if total < len(list.Pools) {
		total = len(list.Pools)
	}
	shown := list.Pools
	if len(shown) > poolsShown {
		shown = shown[:poolsShown]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "### Pools for `%s`\n\n", address)
	for i, p := range shown {
		fmt.Fprintf(&b, "%d. **%s** (id: `%s`)\n", i+1, p.Name, p.ID)
		fmt.Fprintf(&b, "   Buy: %s ETH · Sell: %s ETH · Fee: %s%% · Participants: %d\n",
			orNA(p.BuyPriceETH), orNA(p.SellPriceETH), formatFloat(p.CreatorFee), p.Stats.TotalParticipants)
	}
	if total > len(shown) {
		fmt.Fprintf(&b, "\nShowing %d of %d pools.", len(shown), total)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *ChatService) executeStats(ctx context.Context, slots dialogue.Slots, t turn) (string, any) {
	slug := slots[dialogue.SlotCollectionSlug]
	if slug == "" {
		return "I need a collection name or an OpenSea link to look up stats.", nil
	}

	cctx, cancel := s.withTimeout(ctx)
	stats, err := s.opensea.GetCollectionStats(cctx, slug)
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "opensea stats failed", "slug", slug, "err", err)
		return fmt.Sprintf("OpenSea is unavailable right now, so I couldn't fetch stats for %s (%s).", slug, failureReason(err)), nil
	}

	data := map[string]any{"slug": slug, "stats": stats}
	reply, err := s.generate(ctx, statsSystemPrompt(), dataPrompt(t.message, "Collection: "+slug, stats))
	if err != nil {
		return statsFallback(slug, stats), data
	}
	return reply, data
}

// statsFallback is the template reply used when the LLM is unavailable.
func statsFallback(slug string, stats opensea.CollectionStats) string {
	floor, owners, mcap := "N/A", "N/A", "N/A"
	if v := stats.Total.FloorPrice; v != nil && *v != 0 {
		floor = formatFloat(*v) + " ETH"
	}
	if v := stats.Total.NumOwners; v != nil && *v != 0 {
		owners = groupThousands(*v)
	}
	if v := stats.Total.MarketCap; v != nil && *v != 0 {
		mcap = formatFloat(*v)
	}
	return fmt.Sprintf("Stats for %s: Floor price: %s • Owners: %s • Market cap: %s", slug, floor, owners, mcap)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
