// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"time"
)

// ReplayCache remembers token ids until they expire. Implementations must be
// safe for concurrent use and TryAdd must be an atomic add-if-absent: of two
// concurrent calls with the same id, at most one returns true.
type ReplayCache interface {
	// TryFind reports whether id is present and not yet expired.
	TryFind(ctx context.Context, id string) (bool, error)

	// TryAdd records id until expiry. It returns false if id is already
	// present and not yet expired.
	TryAdd(ctx context.Context, id string, expiry time.Time) (bool, error)
}
