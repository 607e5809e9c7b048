package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/100PercentTuna/the-undertow-sub000/types"
)

func TestKey_DeterministicAcrossMapOrder(t *testing.T) {
	t.Parallel()

	a := map[string]any{"summary": "s", "actors": []string{"A", "B"}, "zone": "Z"}
	b := map[string]any{"zone": "Z", "actors": []string{"A", "B"}, "summary": "s"}

	assert.Equal(t, Key("agent", a, 0.1), Key("agent", b, 0.1),
		"JSON normalization must make logically equal inputs collide")
}

func TestKey_Discriminators(t *testing.T) {
	t.Parallel()

	input := map[string]any{"summary": "s"}

	assert.NotEqual(t, Key("agent_a", input, 0.1), Key("agent_b", input, 0.1))
	assert.NotEqual(t, Key("agent_a", input, 0.1), Key("agent_a", input, 0.2),
		"different temperature buckets must not collide")
	assert.Equal(t, Key("agent_a", input, 0.11), Key("agent_a", input, 0.12),
		"temperatures in the same tenth bucket share a key")
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	lru := NewLRUCache(2, time.Minute)
	lru.Set("a", &Entry{AgentID: "a"})
	lru.Set("b", &Entry{AgentID: "b"})

	_, ok := lru.Get("a") // refresh a
	require.True(t, ok)

	lru.Set("c", &Entry{AgentID: "c"}) // evicts b

	_, ok = lru.Get("b")
	assert.False(t, ok, "least recently used entry must be evicted")
	_, ok = lru.Get("a")
	assert.True(t, ok)
	_, ok = lru.Get("c")
	assert.True(t, ok)

	size, capacity := lru.Stats()
	assert.Equal(t, 2, size)
	assert.Equal(t, 2, capacity)
}

func TestLRUCache_OverwriteDeleteClear(t *testing.T) {
	t.Parallel()

	lru := NewLRUCache(2, time.Minute)
	lru.Set("a", &Entry{AgentID: "a", Quality: 0.5})
	lru.Set("a", &Entry{AgentID: "a", Quality: 0.9})

	got, ok := lru.Get("a")
	require.True(t, ok)
	assert.InDelta(t, 0.9, got.Quality, 1e-9, "overwrite replaces the stored entry")
	size, _ := lru.Stats()
	assert.Equal(t, 1, size, "overwriting a key must not grow the cache")

	lru.Delete("a")
	_, ok = lru.Get("a")
	assert.False(t, ok)

	lru.Set("b", &Entry{AgentID: "b"})
	lru.Clear()
	size, _ = lru.Stats()
	assert.Equal(t, 0, size)
	_, ok = lru.Get("b")
	assert.False(t, ok)
}

func TestLRUCache_TTLExpiry(t *testing.T) {
	t.Parallel()

	lru := NewLRUCache(10, 10*time.Millisecond)
	lru.Set("a", &Entry{AgentID: "a"})

	_, ok := lru.Get("a")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = lru.Get("a")
	assert.False(t, ok, "expired entries must not be served")
}

func TestMultiLevelCache_LocalOnly(t *testing.T) {
	t.Parallel()

	c := NewMultiLevelCache(nil, &Config{
		LocalMaxSize: 10,
		LocalTTL:     time.Minute,
		RedisTTL:     time.Minute,
		EnableLocal:  true,
		EnableRedis:  false,
	}, nil)

	ctx := context.Background()
	_, err := c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))

	require.NoError(t, c.Set(ctx, "k", &Entry{AgentID: "agent", Quality: 0.9}))

	entry, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "agent", entry.AgentID)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestMultiLevelCache_RedisFallthroughAndBackfill(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &Config{
		LocalMaxSize: 10,
		LocalTTL:     time.Minute,
		RedisTTL:     time.Minute,
		EnableLocal:  true,
		EnableRedis:  true,
	}

	writer := NewMultiLevelCache(rdb, cfg, nil)
	reader := NewMultiLevelCache(rdb, cfg, nil) // cold local level

	ctx := context.Background()
	out, _ := json.Marshal(&types.ArticleDraft{Title: "t", Body: "b", WordCount: 2})
	require.NoError(t, writer.Set(ctx, "k", &Entry{
		AgentID: "writer",
		Kind:    "article_draft",
		Output:  out,
		Quality: 0.88,
	}))

	entry, err := reader.Get(ctx, "k")
	require.NoError(t, err, "entry must be served from redis")
	assert.Equal(t, 0.88, entry.Quality)

	decoded, err := types.DecodeOutput(entry.Kind, entry.Output)
	require.NoError(t, err)
	draft, ok := decoded.(*types.ArticleDraft)
	require.True(t, ok)
	assert.Equal(t, "t", draft.Title)

	// Second read hits the backfilled local level even with redis gone.
	mr.Close()
	entry, err = reader.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "writer", entry.AgentID)
}

func TestDecodeOutput_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := types.DecodeOutput("mystery", []byte(`{}`))
	assert.Error(t, err)
}
