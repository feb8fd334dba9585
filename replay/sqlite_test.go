// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/oidcrp/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteCache(t *testing.T) {
	t.Parallel()
	testCacheBehavior(t, func(t *testing.T, clock *testClock) jwt.ReplayCache {
		c, err := NewSQLiteCache(context.Background(), ":memory:", WithNow(clock.Now))
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestNewSQLiteCache(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	_, err := NewSQLiteCache(context.Background(), "")
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidParameter))
}

func TestSQLiteCache_Persistence(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	clock := newTestClock()
	path := filepath.Join(t.TempDir(), "replay.db")

	c, err := NewSQLiteCache(ctx, path, WithNow(clock.Now))
	require.NoError(err)
	added, err := c.TryAdd(ctx, "jti-1", clock.Now().Add(time.Hour))
	require.NoError(err)
	assert.True(added)
	require.NoError(c.Close())

	c, err = NewSQLiteCache(ctx, path, WithNow(clock.Now))
	require.NoError(err)
	defer c.Close()
	found, err := c.TryFind(ctx, "jti-1")
	require.NoError(err)
	assert.True(found)
}

func TestSQLiteCache_Prune(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	clock := newTestClock()
	c, err := NewSQLiteCache(ctx, ":memory:", WithNow(clock.Now), WithPruneInterval(time.Hour*24))
	require.NoError(err)
	defer c.Close()

	for _, id := range []string{"a", "b"} {
		_, err := c.TryAdd(ctx, id, clock.Now().Add(time.Minute))
		require.NoError(err)
	}
	_, err = c.TryAdd(ctx, "c", clock.Now().Add(2*time.Hour))
	require.NoError(err)

	clock.Advance(time.Hour)
	n, err := c.Prune(ctx)
	require.NoError(err)
	assert.Equal(int64(2), n)

	found, err := c.TryFind(ctx, "c")
	require.NoError(err)
	assert.True(found)
}
