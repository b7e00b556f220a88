// ABOUTME: Tests for the badger page cache
// ABOUTME: Runs against an in-memory badger instance
package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSaveLoadAndKeys(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SavePage(ctx, "meetings", "companyId=c1", []byte("one")))
	require.NoError(t, c.SavePage(ctx, "meetings", "companyId=c1&page=2", []byte("two")))
	require.NoError(t, c.SavePage(ctx, "leads", "companyId=c1", []byte("three")))

	data, err := c.LoadPage(ctx, "meetings", "companyId=c1&page=2")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)

	keys, err := c.Keys("meetings")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"companyId=c1", "companyId=c1&page=2"}, keys)
}

func TestLoadMissingPage(t *testing.T) {
	c := newTestCache(t)

	data, err := c.LoadPage(context.Background(), "tasks", "nothing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestClearDropsPages(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.SavePage(ctx, "calls", "k", []byte("x")))

	require.NoError(t, c.Clear(ctx))

	data, err := c.LoadPage(ctx, "calls", "k")
	require.NoError(t, err)
	assert.Nil(t, data)
}
