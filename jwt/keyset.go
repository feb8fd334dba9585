// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// StaticKey is a locally configured PEM-encoded public key along with the
// key id tokens will reference it by.
type StaticKey struct {
	// KeyID must match the "kid" header of tokens signed by the key.
	KeyID string

	// Algorithm optionally restricts the key to one signing algorithm.
	Algorithm Alg

	// PEM is a PEM-encoded x509 certificate or PKIX public key.
	PEM string
}

// NewStaticKeySet returns a key set built from PEM-encoded public keys. Every
// key needs a key id, since keys are only ever selected by exact "kid"
// match.
func NewStaticKeySet(keys ...StaticKey) (*jose.JSONWebKeySet, error) {
	const op = "jwt.NewStaticKeySet"
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: no keys: %w", op, ErrInvalidParameter)
	}
	set := &jose.JSONWebKeySet{}
	seen := map[string]bool{}
	for _, k := range keys {
		if k.KeyID == "" {
			return nil, fmt.Errorf("%s: key id is empty: %w", op, ErrInvalidParameter)
		}
		if seen[k.KeyID] {
			return nil, fmt.Errorf("%s: duplicate key id %q: %w", op, k.KeyID, ErrInvalidParameter)
		}
		seen[k.KeyID] = true
		if k.Algorithm != "" {
			if err := SupportedSigningAlgorithm(k.Algorithm); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		pub, err := ParsePublicKeyPEM([]byte(k.PEM))
		if err != nil {
			return nil, fmt.Errorf("%s: key %q: %w", op, k.KeyID, err)
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       pub,
			KeyID:     k.KeyID,
			Algorithm: string(k.Algorithm),
			Use:       "sig",
		})
	}
	return set, nil
}

// ParsePublicKeyPEM is used to parse RSA, ECDSA and Ed25519 public keys from
// PEMs. It returns a *rsa.PublicKey, *ecdsa.PublicKey or ed25519.PublicKey.
func ParsePublicKeyPEM(data []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block != nil {
		var rawKey interface{}
		var err error
		if rawKey, err = x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
				rawKey = cert.PublicKey
			} else {
				return nil, err
			}
		}

		switch k := rawKey.(type) {
		case *rsa.PublicKey:
			return k, nil
		case *ecdsa.PublicKey:
			return k, nil
		case ed25519.PublicKey:
			return k, nil
		}
	}

	return nil, errors.New("data does not contain any valid RSA, ECDSA or Ed25519 public keys")
}
