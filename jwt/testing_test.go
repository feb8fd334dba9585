// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

const testKeyID = "test-key"

var (
	testRSAKey   *rsa.PrivateKey
	testRSAKey2  *rsa.PrivateKey
	testEC256Key *ecdsa.PrivateKey
	testEC384Key *ecdsa.PrivateKey
	testEdKey    ed25519.PrivateKey
	testHMACKey  = []byte("0123456789abcdef0123456789abcdef")
)

func init() {
	// Generating RSA keys can be slow, so the test keys are generated once.
	var err error
	if testRSAKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		panic(err)
	}
	if testRSAKey2, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		panic(err)
	}
	if testEC256Key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader); err != nil {
		panic(err)
	}
	if testEC384Key, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader); err != nil {
		panic(err)
	}
	if _, testEdKey, err = ed25519.GenerateKey(rand.Reader); err != nil {
		panic(err)
	}
}

// testSignJWT signs claims with key, putting kid in the header when it's not
// empty.
func testSignJWT(t *testing.T, key interface{}, alg Alg, claims interface{}, kid string) string {
	t.Helper()
	require := require.New(t)

	signingKey := jose.SigningKey{Algorithm: jose.SignatureAlgorithm(alg), Key: key}
	if kid != "" {
		signingKey.Key = jose.JSONWebKey{Key: key, KeyID: kid}
	}
	sig, err := jose.NewSigner(signingKey, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(err)

	raw, err := josejwt.Signed(sig).Claims(claims).Serialize()
	require.NoError(err)
	return raw
}

// testUnsignedJWT builds a compact token with an arbitrary header and an
// empty signature.
func testUnsignedJWT(t *testing.T, header map[string]interface{}, claims interface{}) string {
	t.Helper()
	require := require.New(t)
	h, err := json.Marshal(header)
	require.NoError(err)
	c, err := json.Marshal(claims)
	require.NoError(err)
	return base64.RawURLEncoding.EncodeToString(h) + "." + base64.RawURLEncoding.EncodeToString(c) + "."
}

func testClaims(t *testing.T) map[string]interface{} {
	t.Helper()
	now := time.Now()
	return map[string]interface{}{
		"iss": "https://example.com/",
		"sub": "alice@example.com",
		"aud": "www.example.com",
		"iat": float64(now.Unix()),
		"nbf": float64(now.Unix()),
		"exp": float64(now.Add(time.Minute).Unix()),
	}
}

func testKeySet(keys ...jose.JSONWebKey) *jose.JSONWebKeySet {
	return &jose.JSONWebKeySet{Keys: keys}
}
