// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"

	"github.com/hashicorp/oidcrp/jwt"
)

// validateSecret checks that alg is an HMAC algorithm and that the secret
// is at least as long as its digest:
//   - HS256: >= 32 bytes
//   - HS384: >= 48 bytes
//   - HS512: >= 64 bytes
func validateSecret(alg jwt.Alg, secret string) error {
	const op = "validateSecret"
	switch alg {
	case jwt.HS256, jwt.HS384, jwt.HS512:
	default:
		return fmt.Errorf("%s: %w %q for client secret", op, ErrUnsupportedAlgorithm, alg)
	}
	if secret == "" {
		return fmt.Errorf("%s: %w: empty", op, ErrInvalidSecretLength)
	}
	bits, err := alg.HashWidth()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(secret) < bits/8 {
		return fmt.Errorf("%s: %w: %q must be %d bytes long", op, ErrInvalidSecretLength, alg, bits/8)
	}
	return nil
}

// validateKey checks that key is a private key alg can sign with.
func validateKey(alg jwt.Alg, key crypto.Signer) error {
	const op = "validateKey"
	if key == nil {
		return fmt.Errorf("%s: %w", op, ErrNilPrivateKey)
	}
	switch alg {
	case jwt.RS256, jwt.RS384, jwt.RS512, jwt.PS256, jwt.PS384, jwt.PS512:
		k, ok := key.(*rsa.PrivateKey)
		if !ok {
			return fmt.Errorf("%s: %w: %q requires an RSA key, got %T", op, ErrKeyMismatch, alg, key)
		}
		if err := k.Validate(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	case jwt.ES256, jwt.ES384, jwt.ES512:
		k, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return fmt.Errorf("%s: %w: %q requires an ECDSA key, got %T", op, ErrKeyMismatch, alg, key)
		}
		if k.Curve != curveFor(alg) {
			return fmt.Errorf("%s: %w: %q requires curve %s", op, ErrKeyMismatch, alg, curveFor(alg).Params().Name)
		}
	case jwt.EdDSA:
		if _, ok := key.(ed25519.PrivateKey); !ok {
			return fmt.Errorf("%s: %w: %q requires an ed25519 key, got %T", op, ErrKeyMismatch, alg, key)
		}
	default:
		return fmt.Errorf("%s: %w %q for private key", op, ErrUnsupportedAlgorithm, alg)
	}
	return nil
}

func curveFor(alg jwt.Alg) elliptic.Curve {
	switch alg {
	case jwt.ES384:
		return elliptic.P384()
	case jwt.ES512:
		return elliptic.P521()
	default:
		return elliptic.P256()
	}
}
