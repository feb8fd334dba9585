// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/oidcrp/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)
	p := DefaultPolicy()
	assert.True(p.RequireSubject)
	assert.False(p.AllowTokenOnlyResponse)
	assert.False(p.RequireAuthorizationCodeHash)
	assert.False(p.RequireAccessTokenHash)
	assert.Equal([]jwt.Alg{jwt.RS256}, p.ValidSignatureAlgorithms)
	assert.Equal(5*time.Minute, p.ClockSkew)
	assert.NoError(p.Validate())
}

func TestPolicy_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		policy  func(p *Policy)
		wantErr bool
	}{
		{name: "default", policy: func(p *Policy) {}},
		{name: "several-algs", policy: func(p *Policy) { p.ValidSignatureAlgorithms = []jwt.Alg{jwt.RS256, jwt.ES384, jwt.EdDSA} }},
		{name: "zero-skew", policy: func(p *Policy) { p.ClockSkew = 0 }},
		{name: "no-algs", policy: func(p *Policy) { p.ValidSignatureAlgorithms = nil }, wantErr: true},
		{name: "none", policy: func(p *Policy) { p.ValidSignatureAlgorithms = []jwt.Alg{jwt.RS256, jwt.None} }, wantErr: true},
		{name: "unsupported", policy: func(p *Policy) { p.ValidSignatureAlgorithms = []jwt.Alg{"RS1"} }, wantErr: true},
		{name: "negative-skew", policy: func(p *Policy) { p.ClockSkew = -time.Second }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			p := DefaultPolicy()
			tt.policy(&p)
			err := p.Validate()
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, ErrInvalidParameter), "wanted \"%s\" but got \"%s\"", ErrInvalidParameter, err)
				return
			}
			require.NoError(err)
		})
	}
	t.Run("reports-every-problem", func(t *testing.T) {
		assert := assert.New(t)
		p := Policy{ValidSignatureAlgorithms: []jwt.Alg{jwt.None}, ClockSkew: -time.Second}
		err := p.Validate()
		assert.Error(err)
		assert.Contains(err.Error(), "none")
		assert.Contains(err.Error(), "negative")
	})
}

func TestLoadPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		yaml      string
		want      func() Policy
		wantErr   bool
		wantIsErr error
	}{
		{
			name: "empty",
			yaml: "",
			want: DefaultPolicy,
		},
		{
			name: "overrides",
			yaml: `
require_subject: false
require_authorization_code_hash: true
require_access_token_hash: true
valid_signature_algorithms: [ES256, PS512]
clock_skew: 30s
`,
			want: func() Policy {
				return Policy{
					RequireSubject:               false,
					RequireAuthorizationCodeHash: true,
					RequireAccessTokenHash:       true,
					ValidSignatureAlgorithms:     []jwt.Alg{jwt.ES256, jwt.PS512},
					ClockSkew:                    30 * time.Second,
				}
			},
		},
		{
			name: "partial",
			yaml: "allow_token_only_response: true\n",
			want: func() Policy {
				p := DefaultPolicy()
				p.AllowTokenOnlyResponse = true
				return p
			},
		},
		{
			name:      "old-require-identity-token-field",
			yaml:      "require_identity_token: false\n",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "unknown-field",
			yaml:      "require_everything: true\n",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "bad-skew",
			yaml:      "clock_skew: soon\n",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "none-alg",
			yaml:      "valid_signature_algorithms: [none]\n",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
		{
			name:      "empty-algs",
			yaml:      "valid_signature_algorithms: []\n",
			wantErr:   true,
			wantIsErr: ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := LoadPolicy(strings.NewReader(tt.yaml))
			if tt.wantErr {
				require.Error(err)
				assert.Truef(errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
				return
			}
			require.NoError(err)
			assert.Equal(tt.want(), got)
		})
	}
	t.Run("nil-reader", func(t *testing.T) {
		assert := assert.New(t)
		_, err := LoadPolicy(nil)
		assert.True(errors.Is(err, ErrNilParameter))
	})
}

func TestLoadPolicyFile(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(os.WriteFile(path, []byte("valid_signature_algorithms: [EdDSA]\n"), 0o600))

	got, err := LoadPolicyFile(path)
	require.NoError(err)
	assert.Equal([]jwt.Alg{jwt.EdDSA}, got.ValidSignatureAlgorithms)

	_, err = LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(err)
}
