// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/jwt"
	"github.com/hashicorp/oidcrp/oidc/clientassertion"
	"golang.org/x/oauth2"
)

// Client is a relying party bound to one provider. It prepares
// authorization requests and validates their responses. It is safe for
// concurrent use.
type Client struct {
	config      *Config
	info        *ProviderInformation
	oauth       oauth2.Config
	validator   *ResponseValidator
	tokenClient TokenClient
	httpClient  *http.Client
	logger      hclog.Logger
}

// NewClient creates a Client. Unless WithTokenClient is used, codes are
// redeemed with an OAuth2TokenClient trusting the config's ProviderCA.
//
// Supported options:
//   - WithTokenClient
//   - WithReplayCache
//   - WithPrimitive
//   - WithNow
//   - WithLogger
//   - WithClientAssertion
//
// A config with LoadProfile requires info to have a userinfo endpoint.
func NewClient(c *Config, info *ProviderInformation, opt ...Option) (*Client, error) {
	const op = "oidc.NewClient"
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c.LoadProfile && info.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("%s: load profile requires a userinfo endpoint: %w", op, ErrInvalidParameter)
	}
	opts := getClientOpts(opt...)

	httpClient, err := c.HTTPClient()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	tc := opts.withTokenClient
	if tc == nil {
		if tc, err = NewOAuth2TokenClient(c.ClientID, c.ClientSecret, info,
			WithHTTPClient(httpClient),
			WithLogger(opts.withLogger),
			WithClientAssertion(opts.withClientAssertion),
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	v, err := NewResponseValidator(c.ClientID, c.Flow, tc,
		WithReplayCache(opts.withReplayCache),
		WithPrimitive(opts.withPrimitive),
		WithNow(opts.withNow),
		WithLogger(opts.withLogger),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Client{
		config: c,
		info:   info,
		oauth: oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: string(c.ClientSecret),
			RedirectURL:  c.RedirectURL,
			Scopes:       c.scopes(),
			Endpoint: oauth2.Endpoint{
				AuthURL:  info.AuthorizeEndpoint,
				TokenURL: info.TokenEndpoint,
			},
		},
		validator:   v,
		tokenClient: tc,
		httpClient:  httpClient,
		logger:      opts.withLogger,
	}, nil
}

// Config returns the client's configuration.
func (c *Client) Config() *Config { return c.config }

// ProviderInformation returns the client's provider.
func (c *Client) ProviderInformation() *ProviderInformation { return c.info }

// PrepareLogin creates a new AuthorizeState and the authorization URL the
// user agent should be sent to. The URL carries the state, the nonce, the
// S256 PKCE challenge and the flow's response_type. The caller stores the
// state until the response arrives.
//
// Supported options are those of NewAuthorizeState and WithResponseMode.
func (c *Client) PrepareLogin(opt ...Option) (*AuthorizeState, string, error) {
	const op = "Client.PrepareLogin"
	state, err := NewAuthorizeState(c.config.RedirectURL, opt...)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	opts := getLoginOpts(opt...)
	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", c.config.Flow.ResponseType()),
		oauth2.SetAuthURLParam("nonce", state.Nonce()),
		oauth2.S256ChallengeOption(state.CodeVerifier()),
	}
	if opts.withResponseMode != "" {
		params = append(params, oauth2.SetAuthURLParam("response_mode", opts.withResponseMode))
	}
	authURL := c.oauth.AuthCodeURL(state.State(), params...)
	c.logger.Trace("prepared login", "op", op, "flow", c.config.Flow)
	return state, authURL, nil
}

// ProcessResponse validates the authorization response for state with the
// client's policy. When the config says so the userinfo claims are merged
// in and the filtered claims are removed.
func (c *Client) ProcessResponse(ctx context.Context, resp *AuthorizeResponse, state *AuthorizeState) (*Identity, error) {
	id, err := c.validator.ValidateAuthorizationResponse(ctx, resp, state, c.config.Policy, c.info)
	if err != nil {
		return nil, err
	}
	if c.config.LoadProfile {
		if err := c.loadProfile(ctx, id); err != nil {
			return nil, err
		}
	}
	id.Claims = id.Claims.Without(c.config.FilteredClaims...)
	return id, nil
}

// loadProfile adds the userinfo claims whose type id doesn't have. The
// userinfo "sub" must equal the id_token's.
func (c *Client) loadProfile(ctx context.Context, id *Identity) error {
	const op = "Client.loadProfile"
	profile, err := c.UserInfo(ctx, id.TokenResponse.AccessToken)
	if err != nil {
		return err
	}
	sub, _, err := profile.String(jwt.ClaimSubject)
	switch {
	case err != nil:
		return NewValidationError(op, ReasonMalformedClaims, "userinfo", err)
	case sub == "":
		return NewValidationError(op, ReasonMissingSubject, "userinfo response has no sub", nil)
	case id.Claims.Has(jwt.ClaimSubject) && !strutils.ConstantTimeEqual(sub, id.Subject()):
		return NewValidationError(op, ReasonSubjectMismatch, "userinfo sub doesn't match the id_token", nil)
	}
	c.logger.Trace("loaded profile", "op", op, "claims", profile.Len())
	id.Claims = id.Claims.Merge(profile)
	return nil
}

// UserInfo returns the claims the provider's userinfo endpoint holds for
// accessToken. Signed (application/jwt) userinfo responses aren't
// supported.
func (c *Client) UserInfo(ctx context.Context, accessToken AccessToken) (*jwt.ClaimSet, error) {
	const op = "Client.UserInfo"
	switch {
	case accessToken == "":
		return nil, fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	case c.info.UserInfoEndpoint == "":
		return nil, fmt.Errorf("%s: provider has no userinfo endpoint: %w", op, ErrInvalidParameter)
	}
	ctx = gooidc.ClientContext(ctx, c.httpClient)
	provider := (&gooidc.ProviderConfig{
		IssuerURL:   c.info.IssuerName,
		AuthURL:     c.info.AuthorizeEndpoint,
		TokenURL:    c.info.TokenEndpoint,
		UserInfoURL: c.info.UserInfoEndpoint,
	}).NewProvider(ctx)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: string(accessToken), TokenType: "Bearer"})
	info, err := provider.UserInfo(ctx, ts)
	if err != nil {
		return nil, NewValidationError(op, ReasonUserInfoFailed, "", err)
	}
	var raw json.RawMessage
	if err := info.Claims(&raw); err != nil {
		return nil, NewValidationError(op, ReasonUserInfoFailed, "unable to read claims", err)
	}
	claims, err := jwt.ParseClaims(raw)
	if err != nil {
		return nil, NewValidationError(op, ReasonMalformedClaims, "userinfo", err)
	}
	return claims, nil
}

// Refresh redeems refreshToken for new tokens. The token client must
// implement TokenRefresher. A returned id_token is validated as at login,
// without the nonce check, and its "sub" must equal subject unless subject
// is empty. The identity holds the refreshed id_token's claims, filtered as
// ProcessResponse does, or none when no id_token was issued.
func (c *Client) Refresh(ctx context.Context, refreshToken RefreshToken, subject string) (*Identity, error) {
	const op = "Client.Refresh"
	r, ok := c.tokenClient.(TokenRefresher)
	switch {
	case !ok:
		return nil, fmt.Errorf("%s: token client can't refresh tokens: %w", op, ErrInvalidParameter)
	case refreshToken == "":
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	tr, err := r.RefreshToken(ctx, refreshToken)
	if tr, err = checkTokenResponse(op, tr, err); err != nil {
		c.logger.Debug("refresh failed", "op", op, "reason", ReasonOf(err))
		return nil, err
	}
	back, err := c.validator.ValidateRefreshResponse(ctx, tr, c.config.Policy, c.info)
	if err != nil {
		c.logger.Debug("refreshed tokens rejected", "op", op, "reason", ReasonOf(err))
		return nil, err
	}
	if subject != "" && back.Claims.Has(jwt.ClaimSubject) && !strutils.ConstantTimeEqual(subject, back.Subject()) {
		return nil, NewValidationError(op, ReasonSubjectMismatch, "refreshed id_token is for another subject", nil)
	}
	id := newIdentity(back, tr, nil)
	id.Claims = id.Claims.Without(c.config.FilteredClaims...)
	return id, nil
}

// ProcessRedirect parses the URL the provider redirected the user agent to
// and validates it as ProcessResponse does.
func (c *Client) ProcessRedirect(ctx context.Context, redirectURL string, state *AuthorizeState) (*Identity, error) {
	const op = "Client.ProcessRedirect"
	resp, err := ParseAuthorizeResponseURL(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c.ProcessResponse(ctx, resp, state)
}

type clientOptions struct {
	withTokenClient TokenClient
	withReplayCache jwt.ReplayCache
	withPrimitive   jwt.Primitive
	withNow         func() time.Time
	withLogger      hclog.Logger

	withClientAssertion *clientassertion.JWT
}

func clientDefaults() clientOptions {
	return clientOptions{
		withNow:    time.Now,
		withLogger: hclog.NewNullLogger(),
	}
}

func getClientOpts(opt ...Option) clientOptions {
	opts := clientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithTokenClient provides the TokenClient a Client redeems codes with.
func WithTokenClient(tc TokenClient) Option {
	return func(o interface{}) {
		if o, ok := o.(*clientOptions); ok && !isNil(tc) {
			o.withTokenClient = tc
		}
	}
}

type loginOptions struct {
	withResponseMode string
}

func getLoginOpts(opt ...Option) loginOptions {
	var opts loginOptions
	ApplyOpts(&opts, opt...)
	return opts
}

// WithResponseMode sets the response_mode of the authorization request. A
// hybrid flow client served by a callback handler uses "form_post", since a
// fragment never reaches the server.
func WithResponseMode(mode string) Option {
	return func(o interface{}) {
		if o, ok := o.(*loginOptions); ok {
			o.withResponseMode = mode
		}
	}
}
