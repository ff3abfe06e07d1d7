package dialogue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"scooby-agent/internal/domain"
)

type fakeClassifier struct {
	intent domain.Intent
	calls  int
	last   string
}

func (f *fakeClassifier) Classify(_ context.Context, text string) domain.Intent {
	f.calls++
	f.last = text
	return f.intent
}

func newTestTracker(t *testing.T, c IntentClassifier) *Tracker {
	t.Helper()
	tr, err := NewTracker(c)
	require.NoError(t, err)
	return tr
}

func TestNewTracker_NilClassifier(t *testing.T) {
	_, err := NewTracker(nil)
	require.Error(t, err)
}

func TestResolve_StickyFlowIgnoresClassifier(t *testing.T) {
	c := &fakeClassifier{intent: domain.IntentSmallTalk}
	tr := newTestTracker(t, c)

	res := tr.Resolve(context.Background(), TrackInput{
		Transcript: domain.Transcript{user("create a pool"), assistant(createPoolFlow.Prompt(SlotCreatorFee))},
		Message:    "0.5",
		Rewritten:  "0.5",
		LastIntent: domain.IntentCreatePool,
	})
	require.Equal(t, domain.IntentCreatePool, res.Intent)
	require.False(t, res.Cancelled)
	require.Equal(t, RuleSticky, res.Rule)
	require.Zero(t, c.calls)
}

func TestResolve_CancelForEveryFlow(t *testing.T) {
	for _, f := range flowOrder {
		t.Run(string(f.Intent), func(t *testing.T) {
			c := &fakeClassifier{intent: domain.IntentSmallTalk}
			tr := newTestTracker(t, c)
			for _, slot := range f.Slots() {
				res := tr.Resolve(context.Background(), TrackInput{
					Transcript: domain.Transcript{user("start"), assistant(f.Prompt(slot))},
					Message:    "Please CANCEL this",
					LastIntent: f.Intent,
				})
				require.True(t, res.Cancelled)
				require.Equal(t, f.Intent, res.Intent)
				require.Equal(t, StepCancelled, f.Cancelled().Kind)
			}
			require.Zero(t, c.calls)
		})
	}
}

func TestResolve_CancelWithoutActiveFlowIsClassified(t *testing.T) {
	c := &fakeClassifier{intent: domain.IntentSmallTalk}
	tr := newTestTracker(t, c)
	res := tr.Resolve(context.Background(), TrackInput{Message: "stop", Rewritten: "stop"})
	require.False(t, res.Cancelled)
	require.Equal(t, domain.IntentSmallTalk, res.Intent)
	require.Equal(t, 1, c.calls)
}

func TestResolve_ExplicitSwitch(t *testing.T) {
	tr := newTestTracker(t, &fakeClassifier{intent: domain.IntentSmallTalk})
	res := tr.Resolve(context.Background(), TrackInput{
		Transcript: domain.Transcript{user("create a pool"), assistant(createPoolFlow.Prompt(SlotBuyPrice))},
		Message:    "actually I'd rather invest in an existing one",
		LastIntent: domain.IntentCreatePool,
	})
	require.Equal(t, domain.IntentPoolInvest, res.Intent)
	require.Equal(t, RuleSwitch, res.Rule)
}

func TestResolve_PromptScanWithoutRecordedIntent(t *testing.T) {
	c := &fakeClassifier{intent: domain.IntentSmallTalk}
	tr := newTestTracker(t, c)
	res := tr.Resolve(context.Background(), TrackInput{
		Transcript: domain.Transcript{user("invest"), assistant(poolInvestFlow.Prompt(SlotAmount))},
		Message:    "1",
	})
	require.Equal(t, domain.IntentPoolInvest, res.Intent)
	require.Equal(t, RulePromptScan, res.Rule)
	require.Zero(t, c.calls)
}

func TestResolve_RecordedSmallTalkIsClassifiedFresh(t *testing.T) {
	c := &fakeClassifier{intent: domain.IntentTrending}
	tr := newTestTracker(t, c)
	res := tr.Resolve(context.Background(), TrackInput{
		Transcript: domain.Transcript{
			user("what is a pool?"),
			assistant("Pools let you co-invest. And what is the selling price (in ETH)? You decide!"),
		},
		Message:    "what's trending today?",
		Rewritten:  "what's trending today?",
		LastIntent: domain.IntentSmallTalk,
	})
	require.Equal(t, domain.IntentTrending, res.Intent)
	require.Equal(t, RuleClassifier, res.Rule)
	require.Equal(t, 1, c.calls)
}

func TestResolve_FinishedFlowIsNotSticky(t *testing.T) {
	c := &fakeClassifier{intent: domain.IntentVolume}
	tr := newTestTracker(t, c)
	res := tr.Resolve(context.Background(), TrackInput{
		Transcript: domain.Transcript{user("cancel"), assistant(createPoolFlow.Cancelled().Message)},
		Message:    "volume over the last week",
		LastIntent: domain.IntentCreatePool,
	})
	require.Equal(t, domain.IntentVolume, res.Intent)
	require.Equal(t, RuleClassifier, res.Rule)
}

func TestPromptPhrasesIgnoreLooseMentions(t *testing.T) {
	_, ok := flowForPrompt("Pick a buying price and a selling price, then choose a name for the pool and a creator fee.")
	require.False(t, ok)
	for _, slot := range createPoolFlow.Slots() {
		step := Reprompt(Step{Kind: StepAsk, Slot: slot, Prompt: createPoolFlow.Prompt(slot)})
		got, ok := createPoolFlow.PromptSlot(step.Prompt)
		require.True(t, ok)
		require.Equal(t, slot, got)
	}
}

func TestResolve_FreshTurnUsesRewrittenText(t *testing.T) {
	c := &fakeClassifier{intent: domain.IntentTrending}
	tr := newTestTracker(t, c)
	res := tr.Resolve(context.Background(), TrackInput{
		Transcript: domain.Transcript{user("hi"), assistant("Hey there! :)")},
		Message:    "what's hot",
		Rewritten:  "Which NFT collections are trending in the past 24 hours?",
	})
	require.Equal(t, domain.IntentTrending, res.Intent)
	require.Equal(t, RuleClassifier, res.Rule)
	require.Equal(t, "Which NFT collections are trending in the past 24 hours?", c.last)
}

type fakeGenerator struct {
	out    string
	err    error
	calls  int
	system string
}

func (f *fakeGenerator) Generate(_ context.Context, system, _ string) (string, error) {
	f.calls++
	f.system = system
	return f.out, f.err
}

func TestHeuristic(t *testing.T) {
	cases := []struct {
		text string
		want domain.Intent
		ok   bool
	}{
		{"I want to create a pool", domain.IntentCreatePool, true},
		{"Can you show me pools for azuki?", domain.IntentRetrievePools, true},
		{"list the pools", domain.IntentRetrievePools, true},
		{"I'd like to invest in a pool", domain.IntentPoolInvest, true},
		{"what is trending", domain.IntentNone, false},
		{"targets for my pool", domain.IntentNone, false},
	}
	for _, tc := range cases {
		got, ok := Heuristic(tc.text)
		require.Equal(t, tc.ok, ok, tc.text)
		require.Equal(t, tc.want, got, tc.text)
	}
}

func TestClassify_HeuristicSkipsLLM(t *testing.T) {
	g := &fakeGenerator{out: "small_talk"}
	got := NewClassifier(g).Classify(context.Background(), "create a new pool please")
	require.Equal(t, domain.IntentCreatePool, got)
	require.Zero(t, g.calls)
}

func TestClassify_LLMLabels(t *testing.T) {
	cases := []struct {
		name string
		out  string
		err  error
		want domain.Intent
	}{
		{name: "plain", out: "opensea_volume", want: domain.IntentVolume},
		{name: "decorated", out: " \"NFT_Statistics\".\n", want: domain.IntentStatistics},
		{name: "unknown label", out: "weather", want: domain.IntentSmallTalk},
		{name: "garbage", out: "I think it is about volume", want: domain.IntentSmallTalk},
		{name: "err", err: errors.New("timeout"), want: domain.IntentSmallTalk},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &fakeGenerator{out: tc.out, err: tc.err}
			got := NewClassifier(g).Classify(context.Background(), "tell me something")
			require.Equal(t, tc.want, got)
			require.Equal(t, 1, g.calls)
			require.Contains(t, g.system, "intent classifier")
		})
	}
}

func TestClassify_NoLLM(t *testing.T) {
	require.Equal(t, domain.IntentSmallTalk, NewClassifier(nil).Classify(context.Background(), "hello"))
}
