// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strconv"
)

// Alg represents a signing algorithm.
type Alg string

// JOSE signing algorithm values as defined by RFC 7518.
// See: https://tools.ietf.org/html/rfc7518#section-3.1
const (
	HS256 Alg = "HS256" // HMAC using SHA-256
	HS384 Alg = "HS384" // HMAC using SHA-384
	HS512 Alg = "HS512" // HMAC using SHA-512
	RS256 Alg = "RS256" // RSASSA-PKCS-v1.5 using SHA-256
	RS384 Alg = "RS384" // RSASSA-PKCS-v1.5 using SHA-384
	RS512 Alg = "RS512" // RSASSA-PKCS-v1.5 using SHA-512
	ES256 Alg = "ES256" // ECDSA using P-256 and SHA-256
	ES384 Alg = "ES384" // ECDSA using P-384 and SHA-384
	ES512 Alg = "ES512" // ECDSA using P-521 and SHA-512
	PS256 Alg = "PS256" // RSASSA-PSS using SHA256 and MGF1-SHA256
	PS384 Alg = "PS384" // RSASSA-PSS using SHA384 and MGF1-SHA384
	PS512 Alg = "PS512" // RSASSA-PSS using SHA512 and MGF1-SHA512
	EdDSA Alg = "EdDSA" // Ed25519 using SHA-512

	// None is the unsecured JWS algorithm. It is never a supported
	// algorithm and can't be placed in an allow-list.
	None Alg = "none"
)

var supportedAlgorithms = map[Alg]bool{
	HS256: true,
	HS384: true,
	HS512: true,
	RS256: true,
	RS384: true,
	RS512: true,
	ES256: true,
	ES384: true,
	ES512: true,
	PS256: true,
	PS384: true,
	PS512: true,
	EdDSA: true,
}

// SupportedSigningAlgorithm returns an error if any of the given Algs
// are not supported signing algorithms.
func SupportedSigningAlgorithm(algs ...Alg) error {
	const op = "jwt.SupportedSigningAlgorithm"
	for _, a := range algs {
		if !supportedAlgorithms[a] {
			return fmt.Errorf("%s: %q: %w", op, a, ErrUnsupportedAlgorithm)
		}
	}
	return nil
}

// HashWidth returns the digest width in bits that goes with the algorithm:
// the numeric suffix for the HS, RS, ES and PS families and 512 for EdDSA
// (Ed25519 is defined over SHA-512).
func (a Alg) HashWidth() (int, error) {
	const op = "Alg.HashWidth"
	if !supportedAlgorithms[a] {
		return 0, fmt.Errorf("%s: %q: %w", op, a, ErrUnsupportedAlgorithm)
	}
	if a == EdDSA {
		return 512, nil
	}
	bits, err := strconv.Atoi(string(a)[2:])
	if err != nil {
		return 0, fmt.Errorf("%s: %q has no numeric suffix: %w", op, a, ErrUnsupportedAlgorithm)
	}
	switch bits {
	case 256, 384, 512:
		return bits, nil
	default:
		return 0, fmt.Errorf("%s: %q: unexpected width %d: %w", op, a, bits, ErrUnsupportedAlgorithm)
	}
}

// NewHash returns a new hash.Hash of the SHA-2 family member selected by
// the algorithm's HashWidth.
func (a Alg) NewHash() (hash.Hash, error) {
	const op = "Alg.NewHash"
	bits, err := a.HashWidth()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	switch bits {
	case 384:
		return sha512.New384(), nil
	case 512:
		return sha512.New(), nil
	default:
		return sha256.New(), nil
	}
}
