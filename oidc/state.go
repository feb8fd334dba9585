// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// codeVerifierLength is the number of random bytes in a generated PKCE code
// verifier, which encodes to 43 characters.
const codeVerifierLength = 32

// AuthorizeState represents one login attempt. It carries the values sent in
// the authorization request which the response must be correlated with. The
// State() and Nonce() cannot be equal.
//
// An AuthorizeState is immutable. It is meant to be used exactly once:
// rejecting a second use is the caller's job.
type AuthorizeState struct {
	state        string
	nonce        string
	codeVerifier string
	redirectURI  string
	createdAt    time.Time
	expiration   time.Time
}

// NewAuthorizeState creates a new AuthorizeState for a login whose response
// will be delivered to redirectURI. Unless provided, the state, nonce and
// PKCE code verifier are randomly generated.
//
// Supported options:
//   - WithState
//   - WithNonce
//   - WithCodeVerifier
//   - WithExpiry
//   - WithNow
func NewAuthorizeState(redirectURI string, opt ...Option) (*AuthorizeState, error) {
	const op = "oidc.NewAuthorizeState"
	if redirectURI == "" {
		return nil, fmt.Errorf("%s: redirect URI is empty: %w", op, ErrInvalidParameter)
	}
	opts := getStOpts(opt...)
	if opts.withExpiry < 0 {
		return nil, fmt.Errorf("%s: expiry is negative: %w", op, ErrInvalidParameter)
	}

	var err error
	s := &AuthorizeState{
		state:        opts.withState,
		nonce:        opts.withNonce,
		codeVerifier: opts.withCodeVerifier,
		redirectURI:  redirectURI,
		createdAt:    opts.withNow(),
	}
	if s.state == "" {
		if s.state, err = NewID("st"); err != nil {
			return nil, fmt.Errorf("%s: unable to generate a state: %w", op, err)
		}
	}
	if s.nonce == "" {
		if s.nonce, err = NewID("n"); err != nil {
			return nil, fmt.Errorf("%s: unable to generate a nonce: %w", op, err)
		}
	}
	if s.codeVerifier == "" {
		if s.codeVerifier, err = randomString(codeVerifierLength); err != nil {
			return nil, fmt.Errorf("%s: unable to generate a code verifier: %w: %s", op, ErrIdGeneratorFailed, err.Error())
		}
	}
	if s.state == s.nonce {
		return nil, fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if opts.withExpiry > 0 {
		s.expiration = s.createdAt.Add(opts.withExpiry)
	}
	return s, nil
}

// State is the opaque value used to correlate the response with the request.
func (s *AuthorizeState) State() string { return s.state }

// Nonce is the value bound into the id_token.
func (s *AuthorizeState) Nonce() string { return s.nonce }

// CodeVerifier is the PKCE secret sent when redeeming the code.
func (s *AuthorizeState) CodeVerifier() string { return s.codeVerifier }

// RedirectURI is the redirect_uri of the authorization request.
func (s *AuthorizeState) RedirectURI() string { return s.redirectURI }

// CreatedAt is when the state was created.
func (s *AuthorizeState) CreatedAt() time.Time { return s.createdAt }

// Expiration is when the state expires. It is zero when the state doesn't
// expire.
func (s *AuthorizeState) Expiration() time.Time { return s.expiration }

// CodeChallenge returns the S256 PKCE code challenge derived from the code
// verifier.
func (s *AuthorizeState) CodeChallenge() string {
	sum := sha256.Sum256([]byte(s.codeVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// DefaultStateExpirySkew defines a default time skew when checking a State's
// expiration.
const DefaultStateExpirySkew = 1 * time.Second

// IsExpired returns true if the state has an expiration and it has passed as
// of now, allowing for DefaultStateExpirySkew.
func (s *AuthorizeState) IsExpired(now time.Time) bool {
	if s.expiration.IsZero() {
		return false
	}
	return s.expiration.Before(now.Add(DefaultStateExpirySkew))
}

// stOptions is the set of available options for AuthorizeState functions
type stOptions struct {
	withState        string
	withNonce        string
	withCodeVerifier string
	withExpiry       time.Duration
	withNow          func() time.Time
}

// stDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func stDefaults() stOptions {
	return stOptions{
		withNow: time.Now,
	}
}

// getStOpts gets the state defaults and applies the opt overrides passed in
func getStOpts(opt ...Option) stOptions {
	opts := stDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithState provides an explicit state value instead of a generated one.
func WithState(state string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withState = state
		}
	}
}

// WithNonce provides an explicit nonce instead of a generated one.
func WithNonce(nonce string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withNonce = nonce
		}
	}
}

// WithCodeVerifier provides an explicit PKCE code verifier instead of a
// generated one.
func WithCodeVerifier(verifier string) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withCodeVerifier = verifier
		}
	}
}

// WithExpiry makes the state expire the given duration after it's created.
func WithExpiry(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*stOptions); ok {
			o.withExpiry = d
		}
	}
}
