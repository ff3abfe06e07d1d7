package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSuggestionCache_PickAndExpire(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c := newSuggestionCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Put("u1", []string{"azuki", "pudgypenguins", "doodles-official"})
	slug, ok := c.Pick("u1", 2)
	require.True(t, ok)
	require.Equal(t, "pudgypenguins", slug)

	_, ok = c.Pick("u1", 0)
	require.False(t, ok)
	_, ok = c.Pick("u1", 4)
	require.False(t, ok)
	_, ok = c.Pick("u2", 1)
	require.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Pick("u1", 1)
	require.False(t, ok)
	require.Empty(t, c.entries)
}

func TestSuggestionCache_PutEvictsExpired(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c := newSuggestionCache(time.Minute)
	c.now = func() time.Time { return now }

	c.Put("old", []string{"a"})
	now = now.Add(5 * time.Minute)
	c.Put("new", []string{"b"})
	require.Len(t, c.entries, 1)

	c.Put("", []string{"x"})
	c.Put("empty", nil)
	require.Len(t, c.entries, 1)
}
