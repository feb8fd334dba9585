// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/internal/httpclient"
	"github.com/hashicorp/oidcrp/oidc/clientassertion"
	"golang.org/x/oauth2"
)

// DefaultTokenTimeout bounds a code redemption when WithTimeout isn't used.
const DefaultTokenTimeout = 30 * time.Second

var (
	_ TokenClient    = (*OAuth2TokenClient)(nil)
	_ TokenRefresher = (*OAuth2TokenClient)(nil)
)

// OAuth2TokenClient is a TokenClient backed by golang.org/x/oauth2.
type OAuth2TokenClient struct {
	config    oauth2.Config
	client    *http.Client
	assertion *clientassertion.JWT
	timeout   time.Duration
	logger    hclog.Logger
}

// NewOAuth2TokenClient creates a client which redeems codes at the token
// endpoint in info, authenticating as clientID.
//
// Supported options:
//   - WithHTTPClient
//   - WithProviderCA
//   - WithTimeout (default DefaultTokenTimeout)
//   - WithLogger
//   - WithClientAssertion
func NewOAuth2TokenClient(clientID string, clientSecret ClientSecret, info *ProviderInformation, opt ...Option) (*OAuth2TokenClient, error) {
	const op = "oidc.NewOAuth2TokenClient"
	switch {
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	case info == nil:
		return nil, fmt.Errorf("%s: provider information is nil: %w", op, ErrNilParameter)
	case info.TokenEndpoint == "":
		return nil, fmt.Errorf("%s: token endpoint is empty: %w", op, ErrInvalidParameter)
	}
	opts := getTokenClientOpts(opt...)
	client, err := opts.httpClient()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// The auth style is fixed: oauth2's auto detection retries a failed
	// exchange, which would send the code twice.
	authStyle := oauth2.AuthStyleInHeader
	switch {
	case opts.withClientAssertion != nil:
		// the assertion replaces the secret
		clientSecret = ""
		authStyle = oauth2.AuthStyleInParams
	case clientSecret == "":
		authStyle = oauth2.AuthStyleInParams
	}
	return &OAuth2TokenClient{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: string(clientSecret),
			Endpoint: oauth2.Endpoint{
				AuthURL:   info.AuthorizeEndpoint,
				TokenURL:  info.TokenEndpoint,
				AuthStyle: authStyle,
			},
		},
		client:    client,
		assertion: opts.withClientAssertion,
		timeout:   opts.withTimeout,
		logger:    opts.withLogger,
	}, nil
}

// RedeemAuthorizationCode exchanges code for tokens. Confidential clients
// authenticate with HTTP basic auth (client_secret_basic) or, when
// configured, a freshly signed client assertion (private_key_jwt). Public
// clients send only their client_id. The PKCE code verifier
// is sent when it isn't empty. The request is made exactly once and errors,
// including the provider's oauth error responses as *oauth2.RetrieveError,
// are returned as is.
func (c *OAuth2TokenClient) RedeemAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	const op = "OAuth2TokenClient.RedeemAuthorizationCode"
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx = gooidc.ClientContext(ctx, c.client)

	cfg := c.config
	cfg.RedirectURL = redirectURI
	var authOpts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		authOpts = append(authOpts, oauth2.VerifierOption(codeVerifier))
	}
	if c.assertion != nil {
		signed, err := c.assertion.Serialize()
		if err != nil {
			return nil, fmt.Errorf("%s: unable to sign client assertion: %w", op, err)
		}
		authOpts = append(authOpts,
			oauth2.SetAuthURLParam("client_assertion_type", clientassertion.JWTTypeParam),
			oauth2.SetAuthURLParam("client_assertion", signed),
		)
	}

	c.logger.Trace("redeeming authorization code", "op", op, "token_endpoint", cfg.Endpoint.TokenURL)
	tok, err := cfg.Exchange(ctx, code, authOpts...)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			c.logger.Debug("token endpoint returned an error", "op", op, "status", re.Response.StatusCode, "error", re.ErrorCode)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return newTokenResponse(tok), nil
}

// RefreshToken redeems refreshToken with the refresh_token grant. Clients
// authenticate as they do for RedeemAuthorizationCode. When the provider
// doesn't rotate the refresh token the one given is returned.
func (c *OAuth2TokenClient) RefreshToken(ctx context.Context, refreshToken RefreshToken) (*TokenResponse, error) {
	const op = "OAuth2TokenClient.RefreshToken"
	if refreshToken == "" {
		return nil, fmt.Errorf("%s: refresh token is empty: %w", op, ErrInvalidParameter)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx = gooidc.ClientContext(ctx, c.client)

	c.logger.Trace("refreshing tokens", "op", op, "token_endpoint", c.config.Endpoint.TokenURL)
	var tok *oauth2.Token
	var err error
	if c.assertion != nil {
		tok, err = c.refreshWithAssertion(ctx, string(refreshToken))
	} else {
		tok, err = c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: string(refreshToken)}).Token()
	}
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			c.logger.Debug("token endpoint returned an error", "op", op, "status", re.Response.StatusCode, "error", re.ErrorCode)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = string(refreshToken)
	}
	return newTokenResponse(tok), nil
}

// refreshWithAssertion posts a refresh_token grant authenticated with a
// freshly signed client assertion.
func (c *OAuth2TokenClient) refreshWithAssertion(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	signed, err := c.assertion.Serialize()
	if err != nil {
		return nil, fmt.Errorf("unable to sign client assertion: %w", err)
	}
	form := url.Values{
		"grant_type":            {"refresh_token"},
		"refresh_token":         {refreshToken},
		"client_id":             {c.config.ClientID},
		"client_assertion_type": {clientassertion.JWTTypeParam},
		"client_assertion":      {signed},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	if err != nil {
		return nil, err
	}

	var reply struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		RefreshToken     string `json:"refresh_token"`
		ExpiresIn        int64  `json:"expires_in"`
		IDToken          string `json:"id_token"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}
	decodeErr := json.Unmarshal(body, &reply)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &oauth2.RetrieveError{
			Response:         resp,
			Body:             body,
			ErrorCode:        reply.Error,
			ErrorDescription: reply.ErrorDescription,
			ErrorURI:         reply.ErrorURI,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("unable to decode token response: %w", decodeErr)
	}
	if reply.AccessToken == "" {
		return nil, errors.New("server response missing access_token")
	}
	tok := &oauth2.Token{
		AccessToken:  reply.AccessToken,
		TokenType:    reply.TokenType,
		RefreshToken: reply.RefreshToken,
	}
	if reply.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(reply.ExpiresIn) * time.Second)
	}
	extra := map[string]interface{}{}
	if reply.IDToken != "" {
		extra["id_token"] = reply.IDToken
	}
	return tok.WithExtra(extra), nil
}

// maxTokenResponseSize bounds how much of a token response is read.
const maxTokenResponseSize = 1 << 20

func newTokenResponse(tok *oauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  AccessToken(tok.AccessToken),
		RefreshToken: RefreshToken(tok.RefreshToken),
		TokenType:    tok.TokenType,
	}
	// oauth2 turns expires_in into an absolute expiry
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = time.Until(tok.Expiry).Round(time.Second)
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		resp.IdentityToken = IdToken(idToken)
	}
	return resp
}

type tokenClientOptions struct {
	withHTTPClient      *http.Client
	withProviderCA      string
	withTimeout         time.Duration
	withLogger          hclog.Logger
	withClientAssertion *clientassertion.JWT
}

func tokenClientDefaults() tokenClientOptions {
	return tokenClientOptions{
		withTimeout: DefaultTokenTimeout,
		withLogger:  hclog.NewNullLogger(),
	}
}

func getTokenClientOpts(opt ...Option) tokenClientOptions {
	opts := tokenClientDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

func (o tokenClientOptions) httpClient() (*http.Client, error) {
	return newHTTPClient(o.withHTTPClient, o.withProviderCA)
}

// newHTTPClient returns c when it's set, otherwise a new client trusting
// caPEM (or the system roots).
func newHTTPClient(c *http.Client, caPEM string) (*http.Client, error) {
	if c != nil {
		return c, nil
	}
	client, err := httpclient.New(caPEM, 0)
	if err != nil {
		if errors.Is(err, httpclient.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("could not parse CA PEM value: %w", ErrInvalidCACert)
		}
		return nil, fmt.Errorf("could not get an http client: %w", err)
	}
	return client, nil
}

// WithClientAssertion authenticates code redemptions with a signed JWT
// instead of the client secret. It applies to NewOAuth2TokenClient and
// NewClient.
func WithClientAssertion(j *clientassertion.JWT) Option {
	return func(o interface{}) {
		switch o := o.(type) {
		case *tokenClientOptions:
			o.withClientAssertion = j
		case *clientOptions:
			o.withClientAssertion = j
		}
	}
}
