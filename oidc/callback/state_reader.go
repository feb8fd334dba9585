// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/oidcrp/oidc"
)

// StateReader defines an interface for finding and reading an
// oidc.AuthorizeState. Implementations must be concurrently safe, since the
// reader will likely be used within a concurrent http.Handler
type StateReader interface {
	// Read an existing AuthorizeState entry. A nil state and nil error means
	// the state wasn't found.
	Read(ctx context.Context, state string) (*oidc.AuthorizeState, error)
}

// SingleStateReader implements the StateReader interface for a single state.
// It is concurrently safe.
type SingleStateReader struct {
	State *oidc.AuthorizeState
}

// Read() will return it's single-state if the state matches its State(),
// otherwise it returns an error of oidc.ErrNotFound. It satisfies the
// StateReader interface. Read() is concurrently safe.
func (s *SingleStateReader) Read(_ context.Context, state string) (*oidc.AuthorizeState, error) {
	if s.State == nil || s.State.State() != state {
		return nil, oidc.ErrNotFound
	}
	return s.State, nil
}

// StateCache is a StateReader holding pending logins in memory. Read removes
// the state it returns, so each AuthorizeState is handed out at most once.
type StateCache struct {
	mu  sync.Mutex
	c   map[string]*oidc.AuthorizeState
	now func() time.Time
}

// NewStateCache creates an empty StateCache.
func NewStateCache() *StateCache {
	return &StateCache{
		c:   map[string]*oidc.AuthorizeState{},
		now: time.Now,
	}
}

// Add stores s until it's read or expires.
func (sc *StateCache) Add(s *oidc.AuthorizeState) error {
	const op = "StateCache.Add"
	if s == nil {
		return fmt.Errorf("%s: state is nil: %w", op, oidc.ErrNilParameter)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.c[s.State()]; ok {
		return fmt.Errorf("%s: state %q already exists: %w", op, s.State(), oidc.ErrInvalidParameter)
	}
	sc.c[s.State()] = s
	return nil
}

// Read implements the StateReader interface and will delete the state
// before returning. Expired states are deleted and never returned.
func (sc *StateCache) Read(_ context.Context, state string) (*oidc.AuthorizeState, error) {
	const op = "StateCache.Read"
	sc.mu.Lock()
	defer sc.mu.Unlock()
	s, ok := sc.c[state]
	if !ok {
		return nil, fmt.Errorf("%s: state %q: %w", op, state, oidc.ErrNotFound)
	}
	delete(sc.c, state)
	if s.IsExpired(sc.now()) {
		return nil, fmt.Errorf("%s: state %q is expired: %w", op, state, oidc.ErrExpiredState)
	}
	return s, nil
}

// Len returns the number of pending states, expired ones included.
func (sc *StateCache) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.c)
}

// DeleteExpired removes every expired state.
func (sc *StateCache) DeleteExpired() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	now := sc.now()
	for k, s := range sc.c {
		if s.IsExpired(now) {
			delete(sc.c, k)
		}
	}
}
