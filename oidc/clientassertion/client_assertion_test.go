// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package clientassertion

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/oidcrp/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "test-client-id"
	testSecret   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" // 64 bytes
)

var testAudience = []string{"https://server.example.com/token"}

func TestNewJWTWithKey(t *testing.T) {
	t.Parallel()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	p256, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name      string
		clientID  string
		audience  []string
		alg       jwt.Alg
		key       crypto.Signer
		opt       []Option
		wantErr   bool
		wantIsErr error
	}{
		{name: "rs256", clientID: testClientID, audience: testAudience, alg: jwt.RS256, key: rsaKey},
		{name: "ps384", clientID: testClientID, audience: testAudience, alg: jwt.PS384, key: rsaKey},
		{name: "es256", clientID: testClientID, audience: testAudience, alg: jwt.ES256, key: p256},
		{name: "es384", clientID: testClientID, audience: testAudience, alg: jwt.ES384, key: p384},
		{name: "eddsa", clientID: testClientID, audience: testAudience, alg: jwt.EdDSA, key: edKey},
		{
			name: "with-options", clientID: testClientID, audience: testAudience, alg: jwt.RS256, key: rsaKey,
			opt: []Option{WithKeyID("alice-key"), WithHeaders(map[string]string{"x5t": "thumb"}), WithLifetime(time.Minute)},
		},
		{name: "nil-key", clientID: testClientID, audience: testAudience, alg: jwt.RS256, wantErr: true, wantIsErr: ErrNilPrivateKey},
		{name: "rsa-alg-ec-key", clientID: testClientID, audience: testAudience, alg: jwt.RS256, key: p256, wantErr: true, wantIsErr: ErrKeyMismatch},
		{name: "wrong-curve", clientID: testClientID, audience: testAudience, alg: jwt.ES384, key: p256, wantErr: true, wantIsErr: ErrKeyMismatch},
		{name: "eddsa-rsa-key", clientID: testClientID, audience: testAudience, alg: jwt.EdDSA, key: rsaKey, wantErr: true, wantIsErr: ErrKeyMismatch},
		{name: "hmac-alg", clientID: testClientID, audience: testAudience, alg: jwt.HS256, key: rsaKey, wantErr: true, wantIsErr: ErrUnsupportedAlgorithm},
		{name: "none-alg", clientID: testClientID, audience: testAudience, alg: jwt.None, key: rsaKey, wantErr: true, wantIsErr: ErrUnsupportedAlgorithm},
		{name: "missing-client-id", audience: testAudience, alg: jwt.RS256, key: rsaKey, wantErr: true, wantIsErr: ErrMissingClientID},
		{name: "missing-audience", clientID: testClientID, alg: jwt.RS256, key: rsaKey, wantErr: true, wantIsErr: ErrMissingAudience},
		{
			name: "reserved-header", clientID: testClientID, audience: testAudience, alg: jwt.RS256, key: rsaKey,
			opt: []Option{WithHeaders(map[string]string{"alg": "none"})}, wantErr: true, wantIsErr: ErrReservedHeader,
		},
		{
			name: "empty-key-id", clientID: testClientID, audience: testAudience, alg: jwt.RS256, key: rsaKey,
			opt: []Option{WithKeyID("")}, wantErr: true, wantIsErr: ErrMissingKeyID,
		},
		{
			name: "bad-lifetime", clientID: testClientID, audience: testAudience, alg: jwt.RS256, key: rsaKey,
			opt: []Option{WithLifetime(0)}, wantErr: true, wantIsErr: ErrInvalidLifetime,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewJWTWithKey(tt.clientID, tt.audience, tt.alg, tt.key, tt.opt...)
			if tt.wantErr {
				require.Error(err)
				assert.Nil(got)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.alg, got.Alg())

			signed, err := got.Serialize()
			require.NoError(err)
			tok, err := josejwt.ParseSigned(signed, []jose.SignatureAlgorithm{jose.SignatureAlgorithm(tt.alg)})
			require.NoError(err)
			var claims josejwt.Claims
			require.NoError(tok.Claims(tt.key.Public(), &claims))
			assert.Equal(tt.clientID, claims.Issuer)
			assert.Equal(tt.clientID, claims.Subject)
			assert.Equal(josejwt.Audience(tt.audience), claims.Audience)
			assert.NotEmpty(claims.ID)
			assert.Equal("JWT", tok.Headers[0].ExtraHeaders[jose.HeaderType])
		})
	}
}

func TestNewJWTWithHMAC(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		alg       jwt.Alg
		secret    string
		wantErr   bool
		wantIsErr error
	}{
		{name: "hs256", alg: jwt.HS256, secret: testSecret[:32]},
		{name: "hs384", alg: jwt.HS384, secret: testSecret[:48]},
		{name: "hs512", alg: jwt.HS512, secret: testSecret},
		{name: "short-hs256", alg: jwt.HS256, secret: testSecret[:31], wantErr: true, wantIsErr: ErrInvalidSecretLength},
		{name: "short-hs512", alg: jwt.HS512, secret: testSecret[:48], wantErr: true, wantIsErr: ErrInvalidSecretLength},
		{name: "empty", alg: jwt.HS256, wantErr: true, wantIsErr: ErrInvalidSecretLength},
		{name: "rsa-alg", alg: jwt.RS256, secret: testSecret, wantErr: true, wantIsErr: ErrUnsupportedAlgorithm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewJWTWithHMAC(testClientID, testAudience, tt.alg, tt.secret)
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			signed, err := got.Serialize()
			require.NoError(err)
			tok, err := josejwt.ParseSigned(signed, []jose.SignatureAlgorithm{jose.SignatureAlgorithm(tt.alg)})
			require.NoError(err)
			var claims josejwt.Claims
			require.NoError(tok.Claims([]byte(tt.secret), &claims))
			assert.Equal(testClientID, claims.Subject)
		})
	}
}

func TestJWT_Serialize(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	j, err := NewJWTWithHMAC(testClientID, testAudience, jwt.HS256, testSecret, WithLifetime(time.Minute), WithKeyID("alice-key"))
	require.NoError(err)
	j.now = func() time.Time { return now }

	first, err := j.Serialize()
	require.NoError(err)
	second, err := j.Serialize()
	require.NoError(err)
	assert.NotEqual(first, second)

	tok, err := josejwt.ParseSigned(first, []jose.SignatureAlgorithm{jose.HS256})
	require.NoError(err)
	assert.Equal("alice-key", tok.Headers[0].KeyID)
	var claims josejwt.Claims
	require.NoError(tok.Claims([]byte(testSecret), &claims))
	assert.Equal(now.Add(time.Minute), claims.Expiry.Time().UTC())
	assert.Equal(now, claims.IssuedAt.Time().UTC())
	assert.Equal(now.Add(-time.Second), claims.NotBefore.Time().UTC())

	t.Run("gen-id-error", func(t *testing.T) {
		j.genID = func() (string, error) { return "", errors.New("no entropy") }
		_, err := j.Serialize()
		assert.Error(err)
	})
	t.Run("bare", func(t *testing.T) {
		_, err := (&JWT{}).Serialize()
		assert.True(errors.Is(err, ErrNotInitialized))
	})
}
