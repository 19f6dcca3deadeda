package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestFetchCachesUntilExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(clk.now)

	loads := 0
	load := func() (int, error) {
		loads++
		return loads, nil
	}

	v, err := Fetch(c, "players::a", Long, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clk.t = clk.t.Add(Long - time.Second)
	v, _ = Fetch(c, "players::a", Long, load)
	assert.Equal(t, 1, v, "still fresh")

	clk.t = clk.t.Add(2 * time.Second)
	v, _ = Fetch(c, "players::a", Long, load)
	assert.Equal(t, 2, v, "expired entries reload")

	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c := New(nil)
	calls := 0
	_, err := Fetch(c, "k", Short, func() (string, error) {
		calls++
		return "", errors.New("timeout")
	})
	assert.Error(t, err)

	v, err := Fetch(c, "k", Short, func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestCachesAreIndependent(t *testing.T) {
	a, b := New(nil), New(nil)
	a.Set("k", 1, Short)
	_, ok := b.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, a.Len())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "stats::p1::20", Key("stats", "p1", "", "20"))
	assert.Equal(t, "games", Key("games"))
}
