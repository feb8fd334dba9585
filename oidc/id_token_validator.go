// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/jwt"
)

// IdentityTokenResult is a successfully validated id_token.
type IdentityTokenResult struct {
	// Claims are the token's claims in payload order.
	Claims *jwt.ClaimSet

	// Algorithm is the algorithm the signature was verified with.
	Algorithm jwt.Alg

	// KeyID identifies the key which verified the signature.
	KeyID string

	// Expiry is the token's "exp".
	Expiry time.Time
}

// Subject returns the "sub" claim, or "" when there is none.
func (r *IdentityTokenResult) Subject() string {
	if r == nil {
		return ""
	}
	return r.Claims.Value(jwt.ClaimSubject)
}

// IdentityTokenValidator verifies an id_token's signature and claims. It
// holds no mutable state besides its optional replay cache and is safe for
// concurrent use.
type IdentityTokenValidator struct {
	verifier *jwt.SignatureVerifier
	replay   jwt.ReplayCache
	now      func() time.Time
	logger   hclog.Logger
}

// NewIdentityTokenValidator creates an IdentityTokenValidator.
//
// Supported options:
//   - WithPrimitive
//   - WithReplayCache
//   - WithNow
//   - WithLogger
func NewIdentityTokenValidator(opt ...Option) *IdentityTokenValidator {
	opts := getValidatorOpts(opt...)
	return &IdentityTokenValidator{
		verifier: jwt.NewSignatureVerifier(jwt.WithPrimitive(opts.withPrimitive), jwt.WithLogger(opts.withLogger)),
		replay:   opts.withReplayCache,
		now:      opts.withNow,
		logger:   opts.withLogger,
	}
}

// Validate verifies rawToken's signature against info.KeySet and the
// policy's algorithm allow-list, then checks in order: the issuer equals
// info.IssuerName, the audience contains clientID, the subject is present
// when the policy requires it, the token's lifetime, and (when a replay
// cache is configured) that the token hasn't been seen before.
//
// Failures are *ValidationError. Invalid parameters are reported with
// ErrInvalidParameter or ErrNilParameter.
func (v *IdentityTokenValidator) Validate(ctx context.Context, rawToken IdToken, clientID string, info *ProviderInformation, policy Policy) (*IdentityTokenResult, error) {
	const op = "IdentityTokenValidator.Validate"
	switch {
	case info == nil:
		return nil, fmt.Errorf("%s: provider information is nil: %w", op, ErrNilParameter)
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rawToken == "" {
		return nil, NewValidationError(op, ReasonMalformedToken, "id_token is empty", nil)
	}

	verified, err := v.verifier.Verify(string(rawToken), info.KeySet, policy.ValidSignatureAlgorithms)
	if err != nil {
		return nil, v.fromJWTError(op, "signature verification failed", err)
	}
	claims, err := jwt.ParseClaims(verified.Payload)
	if err != nil {
		return nil, v.fromJWTError(op, "unable to parse claims", err)
	}
	for _, typ := range singleStringClaims {
		if _, _, err := claims.String(typ); err != nil {
			return nil, v.fromJWTError(op, "", err)
		}
	}

	if err := jwt.ValidateIssuer(claims.Value(jwt.ClaimIssuer), []string{info.IssuerName}); err != nil {
		return nil, v.fromJWTError(op, "", err)
	}
	audiences := claims.Values(jwt.ClaimAudience)
	if err := jwt.ValidateAudience(audiences, []string{clientID}); err != nil {
		return nil, v.fromJWTError(op, "", err)
	}
	if azp, ok := claims.FindFirst(jwt.ClaimAuthorizedParty); ok && len(audiences) > 1 && azp.Value != clientID {
		return nil, v.fail(op, ReasonInvalidAudience, fmt.Sprintf("authorized party %q is not the client", azp.Value), nil)
	}
	if policy.RequireSubject && strings.TrimSpace(claims.Value(jwt.ClaimSubject)) == "" {
		return nil, v.fail(op, ReasonMissingSubject, "", nil)
	}

	nbf, _, err := claims.Time(jwt.ClaimNotBefore)
	if err != nil {
		return nil, v.fromJWTError(op, "", err)
	}
	exp, _, err := claims.Time(jwt.ClaimExpiration)
	if err != nil {
		return nil, v.fromJWTError(op, "", err)
	}
	if err := jwt.ValidateLifetime(nbf, exp, jwt.WithClockSkew(policy.ClockSkew), jwt.WithNow(v.now)); err != nil {
		return nil, v.fromJWTError(op, "", err)
	}

	if v.replay != nil {
		if err := jwt.ValidateReplay(ctx, replayKey(rawToken, claims), exp, v.replay, jwt.WithClockSkew(policy.ClockSkew)); err != nil {
			return nil, v.fromJWTError(op, "", err)
		}
	}

	v.logger.Trace("id_token validated", "op", op, "kid", verified.KeyID, "alg", verified.Algorithm)
	return &IdentityTokenResult{
		Claims:    claims,
		Algorithm: verified.Algorithm,
		KeyID:     verified.KeyID,
		Expiry:    exp,
	}, nil
}

// singleStringClaims must each hold one JSON string when present.
var singleStringClaims = []string{
	jwt.ClaimIssuer,
	jwt.ClaimSubject,
	jwt.ClaimNonce,
	jwt.ClaimAuthorizedParty,
	jwt.ClaimAuthorizationCodeHash,
	jwt.ClaimAccessTokenHash,
	jwt.ClaimJWTID,
}

// replayKey is the token's "jti" or, when it has none, the hex SHA-256 of the
// raw token.
func replayKey(rawToken IdToken, claims *jwt.ClaimSet) string {
	if jti := claims.Value(jwt.ClaimJWTID); jti != "" {
		return jti
	}
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

func (v *IdentityTokenValidator) fail(op string, r Reason, msg string, wrapped error) *ValidationError {
	v.logger.Debug("id_token rejected", "op", op, "reason", r)
	return NewValidationError(op, r, msg, wrapped)
}

func (v *IdentityTokenValidator) fromJWTError(op, msg string, err error) error {
	r, ok := jwtReason(err)
	if !ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return v.fail(op, r, msg, err)
}

// jwtReasons maps the jwt package's sentinel errors to reasons.
var jwtReasons = []struct {
	err    error
	reason Reason
}{
	{jwt.ErrMalformedToken, ReasonMalformedToken},
	{jwt.ErrMissingKeyID, ReasonMissingKeyID},
	{jwt.ErrUnsupportedAlgorithm, ReasonUnsupportedAlgorithm},
	{jwt.ErrKeyNotFound, ReasonKeyNotFound},
	{jwt.ErrInvalidSignature, ReasonSignatureInvalid},
	{jwt.ErrMalformedClaims, ReasonMalformedClaims},
	{jwt.ErrInvalidIssuer, ReasonInvalidIssuer},
	{jwt.ErrInvalidAudience, ReasonInvalidAudience},
	{jwt.ErrNoExpiration, ReasonNoExpiration},
	{jwt.ErrInvalidLifetime, ReasonInvalidLifetime},
	{jwt.ErrNotYetValid, ReasonNotYetValid},
	{jwt.ErrExpired, ReasonExpired},
	{jwt.ErrReplayNoExpiration, ReasonReplayNoExpiration},
	{jwt.ErrTokenReplayed, ReasonTokenReplayed},
	{jwt.ErrReplayAddFailed, ReasonReplayAddFailed},
}

func jwtReason(err error) (Reason, bool) {
	for _, m := range jwtReasons {
		if errors.Is(err, m.err) {
			return m.reason, true
		}
	}
	return "", false
}
