package domain

import "strings"

// Intent is the routing label of a chat turn.
type Intent string

const (
	IntentNone          Intent = ""
	IntentSmallTalk     Intent = "small_talk"
	IntentTrending      Intent = "opensea_trending"
	IntentVolume        Intent = "opensea_volume"
	IntentCollections   Intent = "opensea_collections"
	IntentStatistics    Intent = "nft_statistics"
	IntentCreatePool    Intent = "create_pool"
	IntentRetrievePools Intent = "retrieve_pools"
	IntentPoolInvest    Intent = "pool_invest"
)

// Intents lists every routable label.
var Intents = []Intent{
	IntentSmallTalk,
	IntentTrending,
	IntentVolume,
	IntentCollections,
	IntentStatistics,
	IntentCreatePool,
	IntentRetrievePools,
	IntentPoolInvest,
}

// ParseIntent maps a label to an Intent. Unknown labels report false.
func ParseIntent(s string) (Intent, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, in := range Intents {
		if string(in) == s {
			return in, true
		}
	}
	return IntentNone, false
}

// IsFlow reports whether the intent drives a multi-turn slot-filling flow.
func (i Intent) IsFlow() bool {
	switch i {
	case IntentCreatePool, IntentPoolInvest, IntentRetrievePools, IntentStatistics:
		return true
	}
	return false
}
