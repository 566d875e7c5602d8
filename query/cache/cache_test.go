package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	c := New(10, time.Minute, nil)

	c.Put("k1", []string{"a", "b"}, "authors", []string{"authors"}, time.Now(), 0)

	v, ok := c.Get("k1")
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, v)

	_, ok = c.Get("missing")
	require.False(t, ok)

	stats := c.GetStats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, time.Minute, nil)

	c.Put("short", "value", "r", nil, time.Now(), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	require.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	c := New(2, time.Minute, nil)

	c.Put("a", 1, "r", nil, time.Now(), 0)
	c.Put("b", 2, "r", nil, time.Now(), 0)
	_, ok := c.Get("a") // a becomes most recently used
	require.True(t, ok)

	c.Put("c", 3, "r", nil, time.Now(), 0)

	_, ok = c.Get("b")
	require.False(t, ok)
	_, ok = c.Get("a")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, int64(1), c.GetStats().Evictions)
}

func TestInvalidateRegion(t *testing.T) {
	c := New(10, time.Minute, nil)

	c.Put("k1", 1, "authors", nil, time.Now(), 0)
	c.Put("k2", 2, "authors", nil, time.Now(), 0)
	c.Put("k3", 3, "books", nil, time.Now(), 0)

	c.InvalidateRegion("authors")

	_, ok := c.Get("k1")
	require.False(t, ok)
	_, ok = c.Get("k2")
	require.False(t, ok)
	_, ok = c.Get("k3")
	require.True(t, ok)
}

func TestStaleEntryNotServed(t *testing.T) {
	tracker := NewTimestampTracker()
	c := New(10, time.Minute, tracker)

	c.Put("k1", "cached", "authors", []string{"authors"}, time.Now(), 0)

	// A write to a synced table after caching makes the entry stale.
	tracker.Touch("authors")

	_, ok := c.Get("k1")
	require.False(t, ok)
	require.Equal(t, int64(1), c.GetStats().Stale)
}

func TestWriteBetweenReadAndPutMakesEntryStale(t *testing.T) {
	tracker := NewTimestampTracker()
	c := New(10, time.Minute, tracker)

	// The data was read before the write, but only stored afterwards.
	readAt := time.Now()
	tracker.Touch("authors")
	c.Put("k1", "cached", "authors", []string{"authors"}, readAt, 0)

	_, ok := c.Get("k1")
	require.False(t, ok)
	require.Equal(t, int64(1), c.GetStats().Stale)
}

func TestUnrelatedWriteKeepsEntryFresh(t *testing.T) {
	tracker := NewTimestampTracker()
	c := New(10, time.Minute, tracker)

	c.Put("k1", "cached", "authors", []string{"authors"}, time.Now(), 0)
	tracker.Touch("books")

	v, ok := c.Get("k1")
	require.True(t, ok)
	require.Equal(t, "cached", v)
}

func TestTrackerWrittenSince(t *testing.T) {
	tracker := NewTimestampTracker()

	before := time.Now().Add(-time.Second)
	require.False(t, tracker.WrittenSince([]string{"authors"}, before))

	tracker.Touch("authors")
	require.True(t, tracker.WrittenSince([]string{"authors"}, before))
	require.False(t, tracker.WrittenSince([]string{"authors"}, time.Now().Add(time.Second)))
	require.False(t, tracker.LastUpdate("books").After(time.Time{}))
}

type alwaysStale struct{}

func (alwaysStale) WrittenSince([]string, time.Time) bool { return true }

func TestCustomStalenessPolicy(t *testing.T) {
	c := New(10, time.Minute, alwaysStale{})

	c.Put("k1", "cached", "authors", []string{"authors"}, time.Now(), 0)

	_, ok := c.Get("k1")
	require.False(t, ok)
	require.Equal(t, int64(1), c.GetStats().Stale)
}

func TestGenerateKey(t *testing.T) {
	k1 := GenerateKey("authors", "SELECT 1", []any{1})
	k2 := GenerateKey("authors", "SELECT 1", []any{2})
	k3 := GenerateKey("authors", "SELECT 1", []any{1})

	require.NotEqual(t, k1, k2)
	require.Equal(t, k1, k3)
	require.Contains(t, k1, "authors:")
}

func TestClearResetsEverything(t *testing.T) {
	c := New(10, time.Minute, nil)
	c.Put("k1", 1, "r", nil, time.Now(), 0)
	c.Get("k1")

	c.Clear()

	_, ok := c.Get("k1")
	require.False(t, ok)
	stats := c.GetStats()
	require.Equal(t, 0, stats.Size)
	require.Equal(t, int64(0), stats.Hits)
}
