// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureVerifier_Verify(t *testing.T) {
	t.Parallel()
	claims := testClaims(t)

	rsaKeys := testKeySet(jose.JSONWebKey{Key: &testRSAKey.PublicKey, KeyID: testKeyID, Use: "sig"})
	allKeys := testKeySet(
		jose.JSONWebKey{Key: &testRSAKey.PublicKey, KeyID: "rsa"},
		jose.JSONWebKey{Key: &testEC256Key.PublicKey, KeyID: "ec256", Algorithm: string(ES256)},
		jose.JSONWebKey{Key: &testEC384Key.PublicKey, KeyID: "ec384"},
		jose.JSONWebKey{Key: testEdKey.Public(), KeyID: "ed"},
		jose.JSONWebKey{Key: testHMACKey, KeyID: "hmac"},
		// private keys are reduced to their public half
		jose.JSONWebKey{Key: testRSAKey2, KeyID: "rsa-private"},
	)

	tests := []struct {
		name      string
		token     string
		keys      *jose.JSONWebKeySet
		allowed   []Alg
		wantKid   string
		wantAlg   Alg
		wantErr   bool
		wantErrIs error
	}{
		{
			name:    "RS256",
			token:   testSignJWT(t, testRSAKey, RS256, claims, testKeyID),
			keys:    rsaKeys,
			allowed: []Alg{RS256},
			wantKid: testKeyID,
			wantAlg: RS256,
		},
		{
			name:    "PS384",
			token:   testSignJWT(t, testRSAKey, PS384, claims, "rsa"),
			keys:    allKeys,
			allowed: []Alg{RS256, PS384},
			wantKid: "rsa",
			wantAlg: PS384,
		},
		{
			name:    "ES256",
			token:   testSignJWT(t, testEC256Key, ES256, claims, "ec256"),
			keys:    allKeys,
			allowed: []Alg{ES256},
			wantKid: "ec256",
			wantAlg: ES256,
		},
		{
			name:    "ES384",
			token:   testSignJWT(t, testEC384Key, ES384, claims, "ec384"),
			keys:    allKeys,
			allowed: []Alg{ES384},
			wantKid: "ec384",
			wantAlg: ES384,
		},
		{
			name:    "EdDSA",
			token:   testSignJWT(t, testEdKey, EdDSA, claims, "ed"),
			keys:    allKeys,
			allowed: []Alg{EdDSA},
			wantKid: "ed",
			wantAlg: EdDSA,
		},
		{
			name:    "HS256",
			token:   testSignJWT(t, testHMACKey, HS256, claims, "hmac"),
			keys:    allKeys,
			allowed: []Alg{HS256},
			wantKid: "hmac",
			wantAlg: HS256,
		},
		{
			name:    "private-key-in-set",
			token:   testSignJWT(t, testRSAKey2, RS256, claims, "rsa-private"),
			keys:    allKeys,
			allowed: []Alg{RS256},
			wantKid: "rsa-private",
			wantAlg: RS256,
		},
		{
			name:      "two-segments",
			token:     "eyJhbGciOiJSUzI1NiJ9.e30",
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrMalformedToken,
		},
		{
			name:      "header-not-base64",
			token:     "!!!.e30.c2ln",
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrMalformedToken,
		},
		{
			name:      "header-not-object",
			token:     base64.RawURLEncoding.EncodeToString([]byte(`["RS256"]`)) + ".e30.c2ln",
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrMalformedToken,
		},
		{
			name:      "crit-header",
			token:     testUnsignedJWT(t, map[string]interface{}{"alg": "RS256", "kid": testKeyID, "crit": []string{"exp"}}, claims) + "c2ln",
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrMalformedToken,
		},
		{
			name:      "missing-kid",
			token:     testSignJWT(t, testRSAKey, RS256, claims, ""),
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrMissingKeyID,
		},
		{
			name:      "alg-none",
			token:     testUnsignedJWT(t, map[string]interface{}{"alg": "none", "kid": testKeyID}, claims),
			keys:      rsaKeys,
			allowed:   []Alg{RS256, None},
			wantErr:   true,
			wantErrIs: ErrUnsupportedAlgorithm,
		},
		{
			name:      "alg-not-allowed",
			token:     testSignJWT(t, testRSAKey, RS384, claims, testKeyID),
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrUnsupportedAlgorithm,
		},
		{
			name:      "empty-allowed",
			token:     testSignJWT(t, testRSAKey, RS256, claims, testKeyID),
			keys:      rsaKeys,
			wantErr:   true,
			wantErrIs: ErrUnsupportedAlgorithm,
		},
		{
			name:      "unknown-kid",
			token:     testSignJWT(t, testRSAKey, RS256, claims, "unknown"),
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrKeyNotFound,
		},
		{
			name:      "nil-keys",
			token:     testSignJWT(t, testRSAKey, RS256, claims, testKeyID),
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrKeyNotFound,
		},
		{
			name:      "key-alg-mismatch",
			token:     testSignJWT(t, testEC256Key, ES256, claims, "ec256"),
			keys:      testKeySet(jose.JSONWebKey{Key: &testEC256Key.PublicKey, KeyID: "ec256", Algorithm: string(ES384)}),
			allowed:   []Alg{ES256},
			wantErr:   true,
			wantErrIs: ErrKeyNotFound,
		},
		{
			name:      "encryption-key",
			token:     testSignJWT(t, testRSAKey, RS256, claims, testKeyID),
			keys:      testKeySet(jose.JSONWebKey{Key: &testRSAKey.PublicKey, KeyID: testKeyID, Use: "enc"}),
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrKeyNotFound,
		},
		{
			name:      "wrong-key",
			token:     testSignJWT(t, testRSAKey2, RS256, claims, testKeyID),
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrInvalidSignature,
		},
		{
			name:      "key-type-mismatch",
			token:     testSignJWT(t, testRSAKey, RS256, claims, "ec384"),
			keys:      testKeySet(jose.JSONWebKey{Key: &testEC384Key.PublicKey, KeyID: "ec384"}),
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrInvalidSignature,
		},
		{
			name:      "empty-signature",
			token:     testUnsignedJWT(t, map[string]interface{}{"alg": "RS256", "kid": testKeyID}, claims),
			keys:      rsaKeys,
			allowed:   []Alg{RS256},
			wantErr:   true,
			wantErrIs: ErrInvalidSignature,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			v := NewSignatureVerifier()
			got, err := v.Verify(tt.token, tt.keys, tt.allowed)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(got)
				if tt.wantErrIs != nil {
					assert.Truef(errors.Is(err, tt.wantErrIs), "wanted \"%s\" but got \"%s\"", tt.wantErrIs, err)
				}
				return
			}
			require.NoError(err)
			assert.Equal(tt.wantKid, got.KeyID)
			assert.Equal(tt.wantAlg, got.Algorithm)
			assert.Equal(tt.wantAlg, got.Header.Algorithm)
			cs, err := ParseClaims(got.Payload)
			require.NoError(err)
			assert.Equal("alice@example.com", cs.Value(ClaimSubject))
		})
	}
}

func TestSignatureVerifier_TamperedPayload(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	keys := testKeySet(jose.JSONWebKey{Key: &testRSAKey.PublicKey, KeyID: testKeyID})
	token := testSignJWT(t, testRSAKey, RS256, testClaims(t), testKeyID)

	parts := strings.Split(token, ".")
	other := testClaims(t)
	other["sub"] = "mallory@example.com"
	forged := strings.Split(testSignJWT(t, testRSAKey2, RS256, other, testKeyID), ".")
	tampered := strings.Join([]string{parts[0], forged[1], parts[2]}, ".")

	_, err := NewSignatureVerifier().Verify(tampered, keys, []Alg{RS256})
	require.Error(err)
	assert.True(errors.Is(err, ErrInvalidSignature))
}

func TestSignatureVerifier_Primitive(t *testing.T) {
	t.Parallel()
	keys := testKeySet(jose.JSONWebKey{Key: &testRSAKey.PublicKey, KeyID: testKeyID})
	token := testSignJWT(t, testRSAKey, RS256, testClaims(t), testKeyID)

	tests := []struct {
		name      string
		primitive Primitive
		wantErr   bool
	}{
		{
			name: "accepts",
			primitive: PrimitiveFunc(func(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
				return true, nil
			}),
		},
		{
			name: "rejects",
			primitive: PrimitiveFunc(func(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
				return false, nil
			}),
			wantErr: true,
		},
		{
			name: "errors",
			primitive: PrimitiveFunc(func(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
				return false, fmt.Errorf("hsm unavailable")
			}),
			wantErr: true,
		},
		{
			name: "panics",
			primitive: PrimitiveFunc(func(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
				panic("boom")
			}),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			var gotInput string
			var gotAlg Alg
			p := PrimitiveFunc(func(signingInput, signature []byte, key interface{}, alg Alg) (bool, error) {
				gotInput, gotAlg = string(signingInput), alg
				return tt.primitive.VerifySignature(signingInput, signature, key, alg)
			})
			_, err := NewSignatureVerifier(WithPrimitive(p)).Verify(token, keys, []Alg{RS256})
			assert.Equal(token[:strings.LastIndex(token, ".")], gotInput)
			assert.Equal(RS256, gotAlg)
			if tt.wantErr {
				require.Error(err)
				assert.True(errors.Is(err, ErrInvalidSignature))
				return
			}
			require.NoError(err)
		})
	}
}

func TestParseHeader(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	h, err := ParseHeader(testSignJWT(t, testEC256Key, ES256, testClaims(t), "ec"))
	require.NoError(err)
	assert.Equal(ES256, h.Algorithm)
	assert.Equal("ec", h.KeyID)
	assert.Equal("JWT", h.Type)

	_, err = ParseHeader("")
	require.Error(err)
	assert.True(errors.Is(err, ErrMalformedToken))

	bad := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":42}`)) + ".e30.c2ln"
	_, err = ParseHeader(bad)
	require.Error(err)
	assert.True(errors.Is(err, ErrMalformedToken))
}
