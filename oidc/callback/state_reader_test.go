// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/oidcrp/oidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleStateReader_Read(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := oidc.NewAuthorizeState(testRedirect)
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		got, err := (&SingleStateReader{State: s}).Read(ctx, s.State())
		require.NoError(err)
		assert.Equal(s, got)
	})
	t.Run("not-found", func(t *testing.T) {
		assert := assert.New(t)
		got, err := (&SingleStateReader{State: s}).Read(ctx, "not-it")
		assert.Nil(got)
		assert.True(errors.Is(err, oidc.ErrNotFound))
	})
	t.Run("nil-state", func(t *testing.T) {
		assert := assert.New(t)
		_, err := (&SingleStateReader{}).Read(ctx, s.State())
		assert.True(errors.Is(err, oidc.ErrNotFound))
	})
}

func TestStateCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()

	t.Run("add-read-once", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		sc := NewStateCache()
		s, err := oidc.NewAuthorizeState(testRedirect)
		require.NoError(err)
		require.NoError(sc.Add(s))
		assert.Equal(1, sc.Len())

		got, err := sc.Read(ctx, s.State())
		require.NoError(err)
		assert.Equal(s, got)
		assert.Equal(0, sc.Len())

		_, err = sc.Read(ctx, s.State())
		assert.True(errors.Is(err, oidc.ErrNotFound))
	})
	t.Run("add-errors", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		sc := NewStateCache()
		err := sc.Add(nil)
		assert.Truef(errors.Is(err, oidc.ErrNilParameter), "wanted \"%s\" but got \"%s\"", oidc.ErrNilParameter, err)

		s, err := oidc.NewAuthorizeState(testRedirect)
		require.NoError(err)
		require.NoError(sc.Add(s))
		err = sc.Add(s)
		assert.Truef(errors.Is(err, oidc.ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", oidc.ErrInvalidParameter, err)
	})
	t.Run("expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		sc := NewStateCache()
		sc.now = func() time.Time { return now.Add(time.Hour) }
		s, err := oidc.NewAuthorizeState(testRedirect, oidc.WithNow(func() time.Time { return now }), oidc.WithExpiry(time.Minute))
		require.NoError(err)
		require.NoError(sc.Add(s))

		got, err := sc.Read(ctx, s.State())
		assert.Nil(got)
		assert.Truef(errors.Is(err, oidc.ErrExpiredState), "wanted \"%s\" but got \"%s\"", oidc.ErrExpiredState, err)
		assert.Equal(0, sc.Len())
	})
	t.Run("delete-expired", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		sc := NewStateCache()
		sc.now = func() time.Time { return now.Add(time.Hour) }
		expired, err := oidc.NewAuthorizeState(testRedirect, oidc.WithNow(func() time.Time { return now }), oidc.WithExpiry(time.Minute))
		require.NoError(err)
		live, err := oidc.NewAuthorizeState(testRedirect, oidc.WithNow(func() time.Time { return now }), oidc.WithExpiry(2*time.Hour))
		require.NoError(err)
		forever, err := oidc.NewAuthorizeState(testRedirect)
		require.NoError(err)
		for _, s := range []*oidc.AuthorizeState{expired, live, forever} {
			require.NoError(sc.Add(s))
		}
		sc.DeleteExpired()
		assert.Equal(2, sc.Len())
		_, err = sc.Read(ctx, expired.State())
		assert.True(errors.Is(err, oidc.ErrNotFound))
		_, err = sc.Read(ctx, live.State())
		assert.NoError(err)
	})
}
