// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNilParameter     = errors.New("nil parameter")

	// signature errors

	ErrMalformedToken       = errors.New("malformed token")
	ErrMissingKeyID         = errors.New("missing key id")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrKeyNotFound          = errors.New("signing key not found")
	ErrInvalidSignature     = errors.New("invalid signature")

	// claim errors

	ErrMalformedClaims = errors.New("malformed claims")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")

	// lifetime errors

	ErrNoExpiration    = errors.New("token has no expiration")
	ErrInvalidLifetime = errors.New("invalid token lifetime")
	ErrNotYetValid     = errors.New("token is not yet valid")
	ErrExpired         = errors.New("token is expired")

	// replay errors

	ErrReplayNoExpiration = errors.New("replay cache requires a token expiration")
	ErrTokenReplayed      = errors.New("token replay detected")
	ErrReplayAddFailed    = errors.New("unable to record token in replay cache")
)
