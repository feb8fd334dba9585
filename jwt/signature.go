// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/go-jose/go-jose/v4"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
)

// Primitive is the cryptographic capability a SignatureVerifier delegates
// to. VerifySignature reports whether signature is valid for signingInput
// (the ASCII "header.payload" of a compact JWS) under key and alg. An error
// means the verification could not be attempted at all, for example because
// the key type doesn't fit the algorithm.
type Primitive interface {
	VerifySignature(signingInput, signature []byte, key interface{}, alg Alg) (bool, error)
}

// PrimitiveFunc adapts an ordinary function to the Primitive interface.
type PrimitiveFunc func(signingInput, signature []byte, key interface{}, alg Alg) (bool, error)

// VerifySignature implements the Primitive interface.
func (f PrimitiveFunc) VerifySignature(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
	return f(signingInput, signature, key, alg)
}

// DefaultPrimitive returns the Primitive backed by the signing methods of
// github.com/golang-jwt/jwt/v5.
func DefaultPrimitive() Primitive {
	return PrimitiveFunc(golangJWTVerify)
}

func golangJWTVerify(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
	const op = "jwt.golangJWTVerify"
	method := gojwt.GetSigningMethod(string(alg))
	if method == nil {
		return false, fmt.Errorf("%s: %q: %w", op, alg, ErrUnsupportedAlgorithm)
	}
	err := method.Verify(string(signingInput), signature, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gojwt.ErrInvalidKeyType), errors.Is(err, gojwt.ErrInvalidKey), errors.Is(err, gojwt.ErrHashUnavailable):
		return false, fmt.Errorf("%s: %w", op, err)
	default:
		return false, nil
	}
}

// Header is the subset of the JOSE protected header used for key selection.
type Header struct {
	Algorithm Alg
	KeyID     string
	Type      string
}

// VerifiedToken is the result of a successful signature verification.
type VerifiedToken struct {
	// Header is the token's protected header.
	Header Header

	// Payload is the decoded JWS payload.
	Payload []byte

	// KeyID identifies the key which verified the signature.
	KeyID string

	// Algorithm is the algorithm the signature was verified with. It
	// determines the hash width used for c_hash and at_hash binding.
	Algorithm Alg
}

// SignatureVerifier verifies JWS compact serialized tokens against a set of
// candidate keys. It holds no mutable state and is safe for concurrent use.
type SignatureVerifier struct {
	primitive Primitive
	logger    hclog.Logger
}

// NewSignatureVerifier creates a SignatureVerifier.
//
// Supported options:
//   - WithPrimitive
//   - WithLogger
func NewSignatureVerifier(opt ...Option) *SignatureVerifier {
	opts := getVerifierOpts(opt...)
	return &SignatureVerifier{
		primitive: opts.withPrimitive,
		logger:    opts.withLogger,
	}
}

// Verify checks the token's signature and returns its payload along with the
// key id and algorithm used. The header's "kid" is required, the header's
// "alg" must be in allowed, and the key is chosen by exact kid match. Keys
// which declare a different "alg", or a "use" other than "sig", are never
// candidates.
func (v *SignatureVerifier) Verify(token string, keys *jose.JSONWebKeySet, allowed []Alg) (*VerifiedToken, error) {
	const op = "SignatureVerifier.Verify"
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%s: expected 3 segments and got %d: %w", op, len(parts), ErrMalformedToken)
	}
	hdr, err := ParseHeader(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if hdr.KeyID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingKeyID)
	}
	if !algAllowed(hdr.Algorithm, allowed) {
		return nil, fmt.Errorf("%s: %q is not an allowed algorithm: %w", op, hdr.Algorithm, ErrUnsupportedAlgorithm)
	}

	key, ok := findKey(keys, hdr.KeyID, hdr.Algorithm)
	if !ok {
		return nil, fmt.Errorf("%s: kid %q: %w", op, hdr.KeyID, ErrKeyNotFound)
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil || len(signature) == 0 {
		return nil, fmt.Errorf("%s: unable to decode signature: %w", op, ErrInvalidSignature)
	}
	signingInput := []byte(parts[0] + "." + parts[1])
	valid, err := v.verify(signingInput, signature, key, hdr.Algorithm)
	if err != nil {
		v.logger.Debug("signature primitive failed", "op", op, "kid", hdr.KeyID, "alg", hdr.Algorithm, "error", err)
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidSignature, err.Error())
	}
	if !valid {
		return nil, fmt.Errorf("%s: kid %q: %w", op, hdr.KeyID, ErrInvalidSignature)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%s: unable to decode payload: %w", op, ErrMalformedToken)
	}
	return &VerifiedToken{
		Header:    *hdr,
		Payload:   payload,
		KeyID:     hdr.KeyID,
		Algorithm: hdr.Algorithm,
	}, nil
}

// verify calls the primitive, converting a panic into an error.
func (v *SignatureVerifier) verify(signingInput, signature []byte, key interface{}, alg Alg) (valid bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			valid, err = false, fmt.Errorf("signature primitive panicked: %v", r)
		}
	}()
	return v.primitive.VerifySignature(signingInput, signature, key, alg)
}

// ParseHeader decodes the protected header of a compact serialized JWS
// without verifying anything. Tokens carrying a "crit" header are rejected
// since no critical extensions are understood.
func ParseHeader(token string) (*Header, error) {
	const op = "jwt.ParseHeader"
	seg, _, found := strings.Cut(token, ".")
	if !found || seg == "" {
		return nil, fmt.Errorf("%s: missing header: %w", op, ErrMalformedToken)
	}
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return nil, fmt.Errorf("%s: header is not base64url: %w", op, ErrMalformedToken)
	}
	if _, dataType, _, err := jsonparser.Get(raw); err != nil || dataType != jsonparser.Object {
		return nil, fmt.Errorf("%s: header is not a JSON object: %w", op, ErrMalformedToken)
	}
	if _, _, _, err := jsonparser.Get(raw, "crit"); err == nil {
		return nil, fmt.Errorf("%s: unsupported critical header: %w", op, ErrMalformedToken)
	}

	var h Header
	for field, dst := range map[string]*string{"kid": &h.KeyID, "typ": &h.Type} {
		v, err := optionalString(raw, field)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, field, ErrMalformedToken)
		}
		*dst = v
	}
	alg, err := optionalString(raw, "alg")
	if err != nil {
		return nil, fmt.Errorf("%s: alg: %w", op, ErrMalformedToken)
	}
	h.Algorithm = Alg(alg)
	return &h, nil
}

func optionalString(data []byte, key string) (string, error) {
	s, err := jsonparser.GetString(data, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return "", nil
	}
	return s, err
}

func algAllowed(alg Alg, allowed []Alg) bool {
	if !supportedAlgorithms[alg] {
		return false
	}
	for _, a := range allowed {
		if a == alg {
			return true
		}
	}
	return false
}

// findKey returns the raw verification key for kid. Private keys found in a
// key set are reduced to their public half.
func findKey(keys *jose.JSONWebKeySet, kid string, alg Alg) (interface{}, bool) {
	if keys == nil {
		return nil, false
	}
	for _, k := range keys.Key(kid) {
		if k.KeyID != kid {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if k.Algorithm != "" && k.Algorithm != string(alg) {
			continue
		}
		if k.Key == nil {
			continue
		}
		if !k.IsPublic() {
			if pub := k.Public(); pub.Valid() {
				return pub.Key, true
			}
		}
		return k.Key, true
	}
	return nil, false
}
