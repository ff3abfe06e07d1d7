package dialogue

import (
	"regexp"
	"strconv"
	"strings"
)

// Slots maps a slot to its collected value. A present key means the slot is
// satisfied; the value is empty when a later prompt superseded the slot
// before it was answered.
type Slots map[Slot]string

// Has reports whether slot is satisfied.
func (s Slots) Has(slot Slot) bool {
	_, ok := s[slot]
	return ok
}

// Float parses a numeric slot value.
func (s Slots) Float(slot Slot) (float64, bool) {
	v, ok := s[slot]
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var (
	numberRe      = regexp.MustCompile(`[0-9]+(\.[0-9]+)?`)
	openSeaLinkRe = regexp.MustCompile(`https?://(?:www\.)?opensea\.io/collection/([a-z0-9-]+)`)
	poolIDRe      = regexp.MustCompile(`(?i)\bpool[\s_-]*id\s*(?:[:#=]|\bis\b)?\s*([a-z0-9_-]{3,})`)
	bareTokenRe   = regexp.MustCompile(`^[A-Za-z0-9]{8,}$`)
	addressRe     = regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`)
	slugPhraseRe  = regexp.MustCompile(`\b(?:of|for)\s+([a-z0-9\- ]+)`)
	slugAnswerRe  = regexp.MustCompile(`^[a-z0-9\- ]+$`)
	ordinalRe     = regexp.MustCompile(`(?:#|\bnumber\s*|\bno\.?\s*)(\d{1,2})\b`)
)

// ParseNumber extracts the first decimal number, accepting a comma as the
// decimal separator.
func ParseNumber(text string) (string, bool) {
	m := numberRe.FindString(strings.ReplaceAll(text, ",", "."))
	return m, m != ""
}

// ParseOpenSeaSlug extracts the collection slug from an OpenSea collection link.
func ParseOpenSeaSlug(text string) (string, bool) {
	m := openSeaLinkRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParsePoolID accepts either an explicit "pool id: X" or a message that is a
// single alphanumeric token of at least eight characters.
func ParsePoolID(text string) (string, bool) {
	if m := poolIDRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	t := strings.TrimSpace(text)
	if bareTokenRe.MatchString(t) {
		return t, true
	}
	return "", false
}

// ParseAddress extracts an EVM contract address.
func ParseAddress(text string) (string, bool) {
	m := addressRe.FindString(text)
	return strings.ToLower(m), m != ""
}

// ParseSlugPhrase reads a collection name from "stats of X" or "floor for X".
func ParseSlugPhrase(text string) (string, bool) {
	m := slugPhraseRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	return normalizeSlug(m[1])
}

// ParseOrdinal reads a list position such as "#2", "number 3" or "the second one".
func ParseOrdinal(text string) (int, bool) {
	lower := strings.ToLower(text)
	if m := ordinalRe.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, true
		}
	}
	for i, w := range []string{"first", "second", "third", "fourth", "fifth"} {
		if strings.Contains(lower, "the "+w) {
			return i + 1, true
		}
	}
	return 0, false
}

func normalizeSlug(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "the ")
	for _, suffix := range []string{" collection", " nfts", " nft"} {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.Join(strings.Fields(s), "")
	return s, s != ""
}

// parseSlot reads a value for spec from a user message. answered is true when
// the message directly follows the slot's own prompt.
func parseSlot(spec slotSpec, text string, answered bool) (string, bool) {
	switch spec.kind {
	case kindText:
		t := strings.TrimSpace(text)
		return t, t != ""
	case kindNumber:
		return ParseNumber(text)
	case kindLink:
		return ParseOpenSeaSlug(text)
	case kindPoolID:
		return ParsePoolID(text)
	case kindAddress:
		if a, ok := ParseAddress(text); ok {
			return a, true
		}
		if slug, ok := ParseOpenSeaSlug(text); ok {
			return LinkValue(slug), true
		}
		return "", false
	case kindSlug:
		if slug, ok := ParseOpenSeaSlug(text); ok {
			return slug, true
		}
		if slug, ok := ParseSlugPhrase(text); ok {
			return slug, true
		}
		if answered {
			lower := strings.ToLower(strings.TrimSpace(text))
			if slugAnswerRe.MatchString(lower) {
				return normalizeSlug(lower)
			}
		}
		return "", false
	}
	return "", false
}

const linkPrefix = "opensea:"

// LinkValue marks a collection_address slot that still needs resolving from
// an OpenSea slug.
func LinkValue(slug string) string {
	return linkPrefix + slug
}

// SplitLinkValue reports whether v is an unresolved OpenSea slug.
func SplitLinkValue(v string) (string, bool) {
	if strings.HasPrefix(v, linkPrefix) {
		return strings.TrimPrefix(v, linkPrefix), true
	}
	return "", false
}
