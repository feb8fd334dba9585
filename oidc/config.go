// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/jwt"
)

// ClientSecret is an oauth client secret.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config is the relying party's configuration.
type Config struct {
	// ClientID is the relying party id. It must be in the audience of every
	// id_token.
	ClientID string

	// ClientSecret is the relying party secret. It may be empty for public
	// clients, which rely on PKCE.
	ClientSecret ClientSecret

	// RedirectURL is where the provider sends the authorization response.
	RedirectURL string

	// Scopes is a list of additional oidc scopes to request of the provider.
	// The required "openid" scope is always requested.
	Scopes []string

	// Flow is the OIDC flow the client uses.
	Flow Flow

	// Policy controls how strictly responses are validated.
	Policy Policy

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// LoadProfile fetches the userinfo endpoint's claims after a successful
	// login and adds those whose type the id_token doesn't have.
	LoadProfile bool

	// FilteredClaims are removed from an identity's claims before it's
	// returned. Nil keeps every claim.
	FilteredClaims []string
}

// DefaultFilteredClaims are the protocol claims WithFilterClaims removes
// when no types are given.
var DefaultFilteredClaims = []string{
	jwt.ClaimIssuer,
	jwt.ClaimExpiration,
	jwt.ClaimNotBefore,
	jwt.ClaimAudience,
	jwt.ClaimNonce,
	jwt.ClaimIssuedAt,
	"auth_time",
	jwt.ClaimAuthorizationCodeHash,
	jwt.ClaimAccessTokenHash,
}

// NewConfig composes a new config. The flow defaults to
// FlowAuthorizationCode and the policy to DefaultPolicy.
//
// Supported options:
//   - WithScopes
//   - WithFlow
//   - WithPolicy
//   - WithProviderCA
//   - WithLoadProfile
//   - WithFilterClaims
func NewConfig(clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       opts.withScopes,
		Flow:         opts.withFlow,
		Policy:       opts.withPolicy,
		ProviderCA:   opts.withProviderCA,

		LoadProfile:    opts.withLoadProfile,
		FilteredClaims: opts.withFilteredClaims,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}
	return c, nil
}

// Validate reports every problem with the configuration.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("redirect URL is empty: %w", ErrInvalidParameter))
	} else if u, err := url.Parse(c.RedirectURL); err != nil || !strutils.StrListContains([]string{"https", "http"}, u.Scheme) {
		result = multierror.Append(result, fmt.Errorf("redirect URL %q is not an http(s) URL: %w", c.RedirectURL, ErrInvalidParameter))
	}
	if !c.Flow.Valid() {
		result = multierror.Append(result, fmt.Errorf("unknown flow %s: %w", c.Flow, ErrInvalidParameter))
	}
	if err := c.Policy.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.ProviderCA != "" {
		if _, err := newHTTPClient(nil, c.ProviderCA); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HTTPClient is a helper function that creates a new http client trusting
// the configured ProviderCA.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := newHTTPClient(nil, c.ProviderCA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

// scopes returns "openid" followed by the configured scopes without
// duplicates.
func (c *Config) scopes() []string {
	return strutils.RemoveDuplicatesStable(append([]string{"openid"}, c.Scopes...), false)
}

// configOptions is the set of available options for Config functions
type configOptions struct {
	withScopes     []string
	withFlow       Flow
	withPolicy     Policy
	withProviderCA string

	withLoadProfile    bool
	withFilteredClaims []string
}

func configDefaults() configOptions {
	return configOptions{
		withFlow:   FlowAuthorizationCode,
		withPolicy: DefaultPolicy(),
	}
}

func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes.
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithFlow provides the OIDC flow.
func WithFlow(f Flow) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withFlow = f
		}
	}
}

// WithPolicy provides the validation policy.
func WithPolicy(p Policy) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPolicy = p
		}
	}
}

// WithLoadProfile makes the Client merge the userinfo endpoint's claims into
// each identity.
func WithLoadProfile() Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLoadProfile = true
		}
	}
}

// WithFilterClaims removes claims of the given types from each identity.
// With no types DefaultFilteredClaims are removed.
func WithFilterClaims(types ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			if len(types) == 0 {
				types = DefaultFilteredClaims
			}
			o.withFilteredClaims = append([]string(nil), types...)
		}
	}
}
