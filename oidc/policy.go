// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/oidcrp/jwt"
	"gopkg.in/yaml.v3"
)

// Policy configures how strictly responses are validated. It's loaded once
// and treated as immutable for the lifetime of a client.
type Policy struct {
	// RequireSubject rejects id_tokens without a "sub" claim.
	RequireSubject bool

	// RequireAuthorizationCodeHash rejects hybrid front channel id_tokens
	// without a "c_hash" claim. When false a present c_hash is still
	// checked.
	RequireAuthorizationCodeHash bool

	// RequireAccessTokenHash rejects back channel id_tokens without an
	// "at_hash" claim. When false a present at_hash is still checked.
	RequireAccessTokenHash bool

	// AllowTokenOnlyResponse accepts token responses without an id_token.
	// The zero value rejects them, and the hybrid flow always requires one.
	AllowTokenOnlyResponse bool

	// ValidSignatureAlgorithms is the explicit allow-list of signing
	// algorithms. It can never include "none".
	ValidSignatureAlgorithms []jwt.Alg

	// ClockSkew is the symmetric tolerance applied to the not before and
	// expiry checks.
	ClockSkew time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		RequireSubject:           true,
		ValidSignatureAlgorithms: []jwt.Alg{jwt.RS256},
		ClockSkew:                jwt.DefaultClockSkew,
	}
}

// Validate reports every problem with the policy.
func (p Policy) Validate() error {
	const op = "Policy.Validate"
	var result *multierror.Error
	if len(p.ValidSignatureAlgorithms) == 0 {
		result = multierror.Append(result, fmt.Errorf("no valid signature algorithms: %w", ErrInvalidParameter))
	}
	for _, a := range p.ValidSignatureAlgorithms {
		if a == jwt.None {
			result = multierror.Append(result, fmt.Errorf("%q is never a valid signature algorithm: %w", a, ErrInvalidParameter))
			continue
		}
		if err := jwt.SupportedSigningAlgorithm(a); err != nil {
			result = multierror.Append(result, fmt.Errorf("%q is not supported: %w", a, ErrInvalidParameter))
		}
	}
	if p.ClockSkew < 0 {
		result = multierror.Append(result, fmt.Errorf("clock skew %s is negative: %w", p.ClockSkew, ErrInvalidParameter))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// policyFile is the YAML form of a Policy. Unset fields keep the value from
// DefaultPolicy.
type policyFile struct {
	RequireSubject               *bool    `yaml:"require_subject"`
	RequireAuthorizationCodeHash *bool    `yaml:"require_authorization_code_hash"`
	RequireAccessTokenHash       *bool    `yaml:"require_access_token_hash"`
	AllowTokenOnlyResponse       *bool    `yaml:"allow_token_only_response"`
	ValidSignatureAlgorithms     []string `yaml:"valid_signature_algorithms"`
	ClockSkew                    string   `yaml:"clock_skew"`
}

// LoadPolicy reads a YAML policy over DefaultPolicy and validates the
// result. Unknown fields are an error. For example:
//
//	require_access_token_hash: true
//	valid_signature_algorithms: [RS256, ES256]
//	clock_skew: 2m
func LoadPolicy(r io.Reader) (Policy, error) {
	const op = "oidc.LoadPolicy"
	p := DefaultPolicy()
	if r == nil {
		return Policy{}, fmt.Errorf("%s: reader is nil: %w", op, ErrNilParameter)
	}
	var f policyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("%s: unable to decode policy: %w: %s", op, ErrInvalidParameter, err.Error())
	}

	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.RequireSubject, f.RequireSubject)
	set(&p.RequireAuthorizationCodeHash, f.RequireAuthorizationCodeHash)
	set(&p.RequireAccessTokenHash, f.RequireAccessTokenHash)
	set(&p.AllowTokenOnlyResponse, f.AllowTokenOnlyResponse)
	if f.ValidSignatureAlgorithms != nil {
		p.ValidSignatureAlgorithms = make([]jwt.Alg, 0, len(f.ValidSignatureAlgorithms))
		for _, a := range f.ValidSignatureAlgorithms {
			p.ValidSignatureAlgorithms = append(p.ValidSignatureAlgorithms, jwt.Alg(a))
		}
	}
	if f.ClockSkew != "" {
		d, err := time.ParseDuration(f.ClockSkew)
		if err != nil {
			return Policy{}, fmt.Errorf("%s: clock_skew: %w: %s", op, ErrInvalidParameter, err.Error())
		}
		p.ClockSkew = d
	}
	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// LoadPolicyFile is LoadPolicy for a file.
func LoadPolicyFile(path string) (Policy, error) {
	const op = "oidc.LoadPolicyFile"
	f, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()
	return LoadPolicy(f)
}
