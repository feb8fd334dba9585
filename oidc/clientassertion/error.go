// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import "errors"

var (
	// these may happen due to user error

	ErrMissingClientID    = errors.New("missing client ID")
	ErrMissingAudience    = errors.New("missing audience")
	ErrMissingKeyID       = errors.New("missing key ID")
	ErrMissingKeyOrSecret = errors.New("missing private key or client secret")
	ErrReservedHeader     = errors.New("reserved header")
	ErrInvalidLifetime    = errors.New("invalid lifetime")

	// if these happen, either the user directly instantiated &JWT{}
	// or there's a bug somewhere.

	ErrNotInitialized = errors.New("jwt not initialized; please use NewJWTWithKey() or NewJWTWithHMAC()")
	ErrCreatingSigner = errors.New("error creating jwt signer")

	// algorithm errors

	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	ErrInvalidSecretLength  = errors.New("invalid secret length for algorithm")
	ErrNilPrivateKey        = errors.New("nil private key")
	ErrKeyMismatch          = errors.New("private key doesn't match algorithm")
)
