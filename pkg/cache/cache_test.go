package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cohortlab/cohort/pkg/models"
)

func smallDataset(t *testing.T, rows int) *models.Dataset {
	t.Helper()
	col := models.NewColumn("x", models.TypeNumeric)
	for i := 0; i < rows; i++ {
		col.AppendNumber(float64(i))
	}
	ds, err := models.NewDataset("d", "test", []*models.Column{col})
	require.NoError(t, err)
	return ds
}

func TestMemoryCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	ds := smallDataset(t, 10)
	require.NoError(t, c.Put(ctx, "k1", ds))

	got, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Same(t, ds, got)

	miss, err := c.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Nil(t, miss)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Greater(t, stats.Bytes, int64(0))
}

func TestMemoryCache_Eviction(t *testing.T) {
	ctx := context.Background()
	ds := smallDataset(t, 10) // 90 bytes approx
	c := NewMemoryCache(200)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "a", ds))
	require.NoError(t, c.Put(ctx, "b", ds))
	// Touch "b" so "a" is the LRU victim.
	_, err := c.Get(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "c", ds))

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got, "oldest entry evicted")
	assert.GreaterOrEqual(t, c.Stats().Evictions, int64(1))
}

func TestMemoryCache_OversizedEntrySkipped(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(10)
	defer c.Close()

	require.NoError(t, c.Put(ctx, "big", smallDataset(t, 100)))
	got, err := c.Get(ctx, "big")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryCache_InvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1 << 20)
	defer c.Close()

	ds := smallDataset(t, 5)
	require.NoError(t, c.Put(ctx, "ds1|f1", ds))
	require.NoError(t, c.Put(ctx, "ds1|f2", ds))
	require.NoError(t, c.Put(ctx, "ds2|f1", ds))

	require.NoError(t, c.InvalidatePrefix(ctx, "ds1|"))

	for key, want := range map[string]bool{"ds1|f1": false, "ds1|f2": false, "ds2|f1": true} {
		got, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got != nil, key)
	}
}

func TestViewKey(t *testing.T) {
	spec := models.FilterSpec{Categories: map[string][]string{"state": {"CA"}}}
	assert.Equal(t, ViewKey("abc", spec), ViewKey("abc", spec))
	assert.NotEqual(t, ViewKey("abc", spec), ViewKey("def", spec))
	assert.NotEqual(t, ViewKey("abc", spec), ViewKey("abc", models.FilterSpec{}))
}

func TestMemoryCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(1 << 20)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Put(ctx, fmt.Sprintf("k%d", i), smallDataset(t, 2)))
	}
	require.NoError(t, c.Clear(ctx))

	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Bytes)
}
