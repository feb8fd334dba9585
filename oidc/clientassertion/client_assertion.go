// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package clientassertion signs the JWTs a client presents to a token
// endpoint in place of a client secret: private_key_jwt when signed with a
// private key and client_secret_jwt when signed with an HMAC secret.
// reference: https://www.rfc-editor.org/rfc/rfc7523.html
package clientassertion

import (
	"crypto"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-uuid"
	"github.com/hashicorp/oidcrp/jwt"
)

const (
	// JWTTypeParam is the proper value for client_assertion_type.
	// https://www.rfc-editor.org/rfc/rfc7523.html#section-2.2
	JWTTypeParam = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

	// DefaultLifetime is how long a serialized assertion is valid for.
	DefaultLifetime = 5 * time.Minute
)

// NewJWTWithKey creates a private_key_jwt assertion signed with key.
// key must match alg: an *rsa.PrivateKey for RS and PS algorithms, an
// *ecdsa.PrivateKey on alg's curve for ES algorithms and an
// ed25519.PrivateKey for EdDSA.
//
// Supported Options:
//   - WithKeyID
//   - WithHeaders
//   - WithLifetime
func NewJWTWithKey(clientID string, audience []string, alg jwt.Alg, key crypto.Signer, opt ...Option) (*JWT, error) {
	const op = "NewJWTWithKey"
	if err := validateKey(alg, key); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	j, err := newJWT(clientID, audience, alg, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	j.key = key
	if _, err := j.Serialize(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return j, nil
}

// NewJWTWithHMAC creates a client_secret_jwt assertion signed with secret.
// The secret must be at least as long as alg's digest.
//
// Supported Options:
//   - WithKeyID
//   - WithHeaders
//   - WithLifetime
func NewJWTWithHMAC(clientID string, audience []string, alg jwt.Alg, secret string, opt ...Option) (*JWT, error) {
	const op = "NewJWTWithHMAC"
	if err := validateSecret(alg, secret); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	j, err := newJWT(clientID, audience, alg, opt...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	j.secret = secret
	if _, err := j.Serialize(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return j, nil
}

func newJWT(clientID string, audience []string, alg jwt.Alg, opt ...Option) (*JWT, error) {
	var errs []error
	if clientID == "" {
		errs = append(errs, ErrMissingClientID)
	}
	if len(audience) == 0 {
		errs = append(errs, ErrMissingAudience)
	}
	j := &JWT{
		clientID: clientID,
		audience: audience,
		alg:      alg,
		headers:  make(map[string]string),
		lifetime: DefaultLifetime,
		genID:    uuid.GenerateUUID,
		now:      time.Now,
	}
	for _, o := range opt {
		if err := o(j); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return j, nil
}

// JWT is used to create a client assertion JWT, a special JWT used by an OAuth
// 2.0 or OIDC client to authenticate themselves to an authorization server.
// Every Serialize produces a new token with its own jti.
type JWT struct {
	clientID string
	audience []string
	headers  map[string]string
	lifetime time.Duration

	alg jwt.Alg
	// exactly one of key and secret is set
	key    crypto.Signer
	secret string

	// these are overwritten for testing
	genID func() (string, error)
	now   func() time.Time
}

// Alg returns the algorithm the assertion is signed with.
func (j *JWT) Alg() jwt.Alg { return j.alg }

// Serialize returns a newly signed client assertion JWT which can be used by
// an OAuth 2.0 or OIDC client to authenticate themselves to an authorization
// server
func (j *JWT) Serialize() (string, error) {
	const op = "JWT.Serialize"
	if j.genID == nil || j.now == nil {
		return "", fmt.Errorf("%s: %w", op, ErrNotInitialized)
	}
	signer, err := j.signer()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	id, err := j.genID()
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate token id: %w", op, err)
	}
	token, err := josejwt.Signed(signer).Claims(j.claims(id)).Serialize()
	if err != nil {
		return "", fmt.Errorf("%s: failed to serialize token: %w", op, err)
	}
	return token, nil
}

func (j *JWT) signer() (jose.Signer, error) {
	const op = "signer"
	sKey := jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(j.alg),
	}
	switch {
	case j.key != nil:
		sKey.Key = j.key
	case j.secret != "":
		sKey.Key = []byte(j.secret)
	default:
		return nil, fmt.Errorf("%s: %w", op, ErrMissingKeyOrSecret)
	}

	sOpts := &jose.SignerOptions{
		ExtraHeaders: make(map[jose.HeaderKey]interface{}, len(j.headers)),
	}
	for k, v := range j.headers {
		sOpts.ExtraHeaders[jose.HeaderKey(k)] = v
	}
	signer, err := jose.NewSigner(sKey, sOpts.WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrCreatingSigner, err)
	}
	return signer, nil
}

// claims for RFC 7523 section 3: the client is both issuer and subject.
func (j *JWT) claims(id string) *josejwt.Claims {
	now := j.now().UTC()
	return &josejwt.Claims{
		Issuer:    j.clientID,
		Subject:   j.clientID,
		Audience:  j.audience,
		Expiry:    josejwt.NewNumericDate(now.Add(j.lifetime)),
		NotBefore: josejwt.NewNumericDate(now.Add(-1 * time.Second)),
		IssuedAt:  josejwt.NewNumericDate(now),
		ID:        id,
	}
}
