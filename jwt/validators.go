// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ValidateAudience succeeds when at least one of the token's audiences
// exactly matches one of validAudiences. It fails closed: when no valid
// audience is configured, or the token has no usable audience, the token is
// rejected. Empty and whitespace-only token audiences are ignored.
func ValidateAudience(tokenAudiences []string, validAudiences []string) error {
	const op = "jwt.ValidateAudience"
	if len(tokenAudiences) == 0 {
		return fmt.Errorf("%s: token has no audience: %w", op, ErrInvalidAudience)
	}
	configured := false
	for _, v := range validAudiences {
		if strings.TrimSpace(v) != "" {
			configured = true
			break
		}
	}
	if !configured {
		return fmt.Errorf("%s: no valid audiences configured: %w", op, ErrInvalidAudience)
	}
	for _, aud := range tokenAudiences {
		if strings.TrimSpace(aud) == "" {
			continue
		}
		for _, v := range validAudiences {
			if aud == v {
				return nil
			}
		}
	}
	return fmt.Errorf("%s: audiences %q not in %q: %w", op, tokenAudiences, validAudiences, ErrInvalidAudience)
}

// ValidateIssuer succeeds when issuer exactly matches one of validIssuers.
// The comparison is ordinal: no case folding, no prefix or trailing slash
// normalization. It fails closed when no issuer is configured.
func ValidateIssuer(issuer string, validIssuers []string) error {
	const op = "jwt.ValidateIssuer"
	if strings.TrimSpace(issuer) == "" {
		return fmt.Errorf("%s: token has no issuer: %w", op, ErrInvalidIssuer)
	}
	configured := false
	for _, v := range validIssuers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		configured = true
		if v == issuer {
			return nil
		}
	}
	if !configured {
		return fmt.Errorf("%s: no valid issuers configured: %w", op, ErrInvalidIssuer)
	}
	return fmt.Errorf("%s: issuer %q not in %q: %w", op, issuer, validIssuers, ErrInvalidIssuer)
}

// ValidateLifetime checks the token's validity window. A zero notBefore or
// expires means the claim is absent. The clock skew is applied to both ends
// of the window.
//
// Supported options:
//   - WithClockSkew (default DefaultClockSkew; must not be negative)
//   - WithNow
//   - WithRequireExpiration (default true)
func ValidateLifetime(notBefore, expires time.Time, opt ...Option) error {
	const op = "jwt.ValidateLifetime"
	opts := getLifetimeOpts(opt...)
	if opts.withClockSkew < 0 {
		return fmt.Errorf("%s: clock skew %s is negative: %w", op, opts.withClockSkew, ErrInvalidParameter)
	}
	if expires.IsZero() && opts.withRequireExpiration {
		return fmt.Errorf("%s: %w", op, ErrNoExpiration)
	}
	if !notBefore.IsZero() && !expires.IsZero() && notBefore.After(expires) {
		return fmt.Errorf("%s: not before %s is after expiry %s: %w", op, notBefore.UTC(), expires.UTC(), ErrInvalidLifetime)
	}
	now := opts.withNow()
	if !notBefore.IsZero() && now.Before(notBefore.Add(-opts.withClockSkew)) {
		return fmt.Errorf("%s: not before %s, now %s: %w", op, notBefore.UTC(), now.UTC(), ErrNotYetValid)
	}
	if !expires.IsZero() && now.After(expires.Add(opts.withClockSkew)) {
		return fmt.Errorf("%s: expired %s, now %s: %w", op, expires.UTC(), now.UTC(), ErrExpired)
	}
	return nil
}

// ValidateReplay records tokenID in cache and fails if it was already
// recorded. It does nothing when cache is nil, including a typed nil. The
// expiry is required so the cache knows how long to remember the id, and a
// failure to record the id is a hard failure. The id is remembered until expiry plus the clock skew,
// the last instant ValidateLifetime accepts the token.
//
// Supported options:
//   - WithClockSkew (default DefaultClockSkew)
func ValidateReplay(ctx context.Context, tokenID string, expiry time.Time, cache ReplayCache, opt ...Option) error {
	const op = "jwt.ValidateReplay"
	if isNil(cache) {
		return nil
	}
	if tokenID == "" {
		return fmt.Errorf("%s: token id is empty: %w", op, ErrInvalidParameter)
	}
	if expiry.IsZero() {
		return fmt.Errorf("%s: %w", op, ErrReplayNoExpiration)
	}
	found, err := cache.TryFind(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("%s: lookup failed: %w: %s", op, ErrReplayAddFailed, err.Error())
	}
	if found {
		return fmt.Errorf("%s: %w", op, ErrTokenReplayed)
	}
	opts := getLifetimeOpts(opt...)
	if opts.withClockSkew > 0 {
		expiry = expiry.Add(opts.withClockSkew)
	}
	added, err := cache.TryAdd(ctx, tokenID, expiry)
	if err != nil {
		return fmt.Errorf("%s: %w: %s", op, ErrReplayAddFailed, err.Error())
	}
	if !added {
		// TryAdd is add-if-absent, so a concurrent caller may have won the
		// race between the lookup and the add.
		if found, err := cache.TryFind(ctx, tokenID); err == nil && found {
			return fmt.Errorf("%s: %w", op, ErrTokenReplayed)
		}
		return fmt.Errorf("%s: %w", op, ErrReplayAddFailed)
	}
	return nil
}
