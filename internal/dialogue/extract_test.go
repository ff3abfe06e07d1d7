package dialogue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"scooby-agent/internal/domain"
)

func user(text string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleUser, Content: text}
}

func assistant(text string) domain.ChatMessage {
	return domain.ChatMessage{Role: domain.RoleAssistant, Content: text}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"0,75", "0.75", true},
		{"creator fee: 1.5%", "1.5", true},
		{"2.0", "2.0", true},
		{"about 3 ETH", "3", true},
		{"no idea", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		require.Equal(t, tc.ok, ok, "in=%q", tc.in)
		require.Equal(t, tc.want, got, "in=%q", tc.in)
	}
}

func TestParseOpenSeaSlug(t *testing.T) {
	slug, ok := ParseOpenSeaSlug("here: https://opensea.io/collection/pudgypenguins thanks")
	require.True(t, ok)
	require.Equal(t, "pudgypenguins", slug)

	slug, ok = ParseOpenSeaSlug("HTTPS://OpenSea.io/collection/Bored-Ape")
	require.True(t, ok)
	require.Equal(t, "bored-ape", slug)

	_, ok = ParseOpenSeaSlug("it's the pudgy penguins collection")
	require.False(t, ok)
}

func TestParsePoolID(t *testing.T) {
	id, ok := ParsePoolID("pool id: clx1abc234")
	require.True(t, ok)
	require.Equal(t, "clx1abc234", id)

	id, ok = ParsePoolID("  clx9zzz000  ")
	require.True(t, ok)
	require.Equal(t, "clx9zzz000", id)

	id, ok = ParsePoolID("the pool id is abc123")
	require.True(t, ok)
	require.Equal(t, "abc123", id)

	_, ok = ParsePoolID("short")
	require.False(t, ok)

	_, ok = ParsePoolID("not sure which one")
	require.False(t, ok)
}

func TestParseSlugPhrase(t *testing.T) {
	slug, ok := ParseSlugPhrase("Show me the stats for Pudgy Penguins?")
	require.True(t, ok)
	require.Equal(t, "pudgypenguins", slug)

	slug, ok = ParseSlugPhrase("floor price of the azuki collection")
	require.True(t, ok)
	require.Equal(t, "azuki", slug)

	_, ok = ParseSlugPhrase("give me some stats")
	require.False(t, ok)
}

func TestParseOrdinal(t *testing.T) {
	for in, want := range map[string]int{
		"#2":                  2,
		"number 3 please":     3,
		"stats for the first": 1,
		"the fifth one":       5,
	} {
		got, ok := ParseOrdinal(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
	_, ok := ParseOrdinal("azuki")
	require.False(t, ok)
}

func TestCreatePool_AsksSlotsInFixedOrder(t *testing.T) {
	var transcript domain.Transcript
	answers := []string{"create a pool", "MyPool", "https://opensea.io/collection/pudgypenguins", "0.5", "1.2"}
	want := []Slot{SlotPoolName, SlotOpenSeaLink, SlotCreatorFee, SlotBuyPrice, SlotSellPrice}

	for i, answer := range answers {
		step := createPoolFlow.NextStep(Extract(createPoolFlow, transcript, answer, Params{}))
		require.Equal(t, StepAsk, step.Kind, "turn %d", i+1)
		require.Equal(t, want[i], step.Slot, "turn %d", i+1)
		transcript = append(transcript, user(answer), assistant(step.Prompt))
	}

	slots := Extract(createPoolFlow, transcript, "2.0", Params{})
	require.Equal(t, StepExecute, createPoolFlow.NextStep(slots).Kind)
	require.Equal(t, "MyPool", slots[SlotPoolName])
	require.Equal(t, "pudgypenguins", slots[SlotOpenSeaLink])
	fee, ok := slots.Float(SlotCreatorFee)
	require.True(t, ok)
	require.Equal(t, 0.5, fee)
	sell, _ := slots.Float(SlotSellPrice)
	require.Equal(t, 2.0, sell)
}

func TestExtract_CommaDecimalAnswer(t *testing.T) {
	transcript := domain.Transcript{
		user("create a pool"),
		assistant(createPoolFlow.Prompt(SlotBuyPrice)),
	}
	slots := Extract(createPoolFlow, transcript, "0,75", Params{})
	price, ok := slots.Float(SlotBuyPrice)
	require.True(t, ok)
	require.Equal(t, 0.75, price)
}

func TestExtract_DoesNotBacktrackPastLaterPrompt(t *testing.T) {
	transcript := domain.Transcript{
		user("create a pool"),
		assistant(createPoolFlow.Prompt(SlotSellPrice)),
	}
	slots := Extract(createPoolFlow, transcript, "hmm", Params{})
	for _, s := range []Slot{SlotPoolName, SlotOpenSeaLink, SlotCreatorFee, SlotBuyPrice} {
		require.True(t, slots.Has(s), "slot %s should count as satisfied", s)
	}
	step := createPoolFlow.NextStep(slots)
	require.Equal(t, StepAsk, step.Kind)
	require.Equal(t, SlotSellPrice, step.Slot)
}

func TestExtract_InvalidAnswerKeepsSlotOpen(t *testing.T) {
	transcript := domain.Transcript{
		user("create a pool"),
		assistant(createPoolFlow.Prompt(SlotPoolName)),
		user("MyPool"),
		assistant(createPoolFlow.Prompt(SlotOpenSeaLink)),
	}
	slots := Extract(createPoolFlow, transcript, "the penguins one", Params{})
	require.False(t, slots.Has(SlotOpenSeaLink))
	step := createPoolFlow.NextStep(slots)
	require.Equal(t, SlotOpenSeaLink, step.Slot)

	last, ok := LastPrompt(createPoolFlow, transcript)
	require.True(t, ok)
	require.Equal(t, step.Slot, last)

	// The repeated prompt is still recognised as the same question.
	repeated := Reprompt(step)
	transcript = append(transcript, user("the penguins one"), assistant(repeated.Prompt))
	slots = Extract(createPoolFlow, transcript, "https://opensea.io/collection/pudgypenguins", Params{})
	require.Equal(t, "pudgypenguins", slots[SlotOpenSeaLink])
}

func TestExtract_IgnoresNumbersOutsideAnswers(t *testing.T) {
	slots := Extract(createPoolFlow, nil, "create a pool with 5% fee for 2 ETH", Params{})
	require.Empty(t, slots)
}

func TestExtract_PreviousRunIsNotReused(t *testing.T) {
	transcript := domain.Transcript{
		user("create a pool"),
		assistant(createPoolFlow.Prompt(SlotPoolName)),
		user("OldPool"),
		assistant("Your pool OldPool has been created!"),
	}
	slots := Extract(createPoolFlow, transcript, "create a pool", Params{})
	require.Empty(t, slots)
}

func TestExtract_PoolInvest(t *testing.T) {
	transcript := domain.Transcript{
		user("I want to invest in a pool"),
		assistant(poolInvestFlow.Prompt(SlotPoolID)),
		user("pool id: clx1abc234"),
		assistant(poolInvestFlow.Prompt(SlotAmount)),
	}
	slots := Extract(poolInvestFlow, transcript, "0,25 ETH", Params{})
	require.Equal(t, "clx1abc234", slots[SlotPoolID])
	amount, ok := slots.Float(SlotAmount)
	require.True(t, ok)
	require.Equal(t, 0.25, amount)
	require.Equal(t, StepExecute, poolInvestFlow.NextStep(slots).Kind)
}

func TestExtract_RetrievePoolsFromMessage(t *testing.T) {
	slots := Extract(retrievePoolsFlow, nil, "show pools for https://opensea.io/collection/azuki", Params{})
	slug, ok := SplitLinkValue(slots[SlotCollectionAddress])
	require.True(t, ok)
	require.Equal(t, "azuki", slug)

	slots = Extract(retrievePoolsFlow, nil, "list pools for 0x3bf2922f4520a8ba0c2efc3d2a1539678dad5e9d", Params{})
	require.Equal(t, "0x3bf2922f4520a8ba0c2efc3d2a1539678dad5e9d", slots[SlotCollectionAddress])

	slots = Extract(retrievePoolsFlow, nil, "show me pools", Params{Address: "0xABC"})
	require.Equal(t, "0xabc", slots[SlotCollectionAddress])

	slots = Extract(retrievePoolsFlow, nil, "show me pools for azuki", Params{})
	require.Equal(t, StepAsk, retrievePoolsFlow.NextStep(slots).Kind)
}

func TestExtract_StatisticsSlug(t *testing.T) {
	slots := Extract(statisticsFlow, nil, "what are the stats for pudgy penguins", Params{})
	require.Equal(t, "pudgypenguins", slots[SlotCollectionSlug])

	transcript := domain.Transcript{
		user("show me some statistics"),
		assistant(statisticsFlow.Prompt(SlotCollectionSlug)),
	}
	slots = Extract(statisticsFlow, transcript, "Azuki", Params{})
	require.Equal(t, "azuki", slots[SlotCollectionSlug])

	slots = Extract(statisticsFlow, nil, "stats please", Params{Slug: "Doodles-Official"})
	require.Equal(t, "doodles-official", slots[SlotCollectionSlug])
}
