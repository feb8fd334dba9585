// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"net/url"
	"time"
)

// AuthorizeResponse is the front channel response delivered to the redirect
// URI.
type AuthorizeResponse struct {
	// Code is the authorization code.
	Code AuthorizationCode

	// State is the state echoed back by the provider.
	State string

	// IdentityToken is only present in the hybrid flow.
	IdentityToken IdToken

	// AccessToken is only present in hybrid flows which request a token from
	// the authorization endpoint.
	AccessToken AccessToken

	// Error, ErrorDescription and ErrorURI carry an oauth error response.
	Error            string
	ErrorDescription string
	ErrorURI         string
}

// IsError reports whether the response is an oauth error response.
func (r *AuthorizeResponse) IsError() bool {
	return r != nil && r.Error != ""
}

// ParseAuthorizeResponse builds an AuthorizeResponse from the callback
// parameters.
func ParseAuthorizeResponse(v url.Values) *AuthorizeResponse {
	return &AuthorizeResponse{
		Code:             AuthorizationCode(v.Get("code")),
		State:            v.Get("state"),
		IdentityToken:    IdToken(v.Get("id_token")),
		AccessToken:      AccessToken(v.Get("access_token")),
		Error:            v.Get("error"),
		ErrorDescription: v.Get("error_description"),
		ErrorURI:         v.Get("error_uri"),
	}
}

// ParseAuthorizeResponseURL parses the redirect URL the provider sent the
// user agent to. Parameters are read from the fragment when it holds any
// (the hybrid flow's default response mode), otherwise from the query.
func ParseAuthorizeResponseURL(redirect string) (*AuthorizeResponse, error) {
	const op = "oidc.ParseAuthorizeResponseURL"
	u, err := url.Parse(redirect)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrInvalidParameter, err.Error())
	}
	if u.Fragment != "" {
		v, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to parse fragment: %w: %s", op, ErrInvalidParameter, err.Error())
		}
		return ParseAuthorizeResponse(v), nil
	}
	return ParseAuthorizeResponse(u.Query()), nil
}

// TokenResponse is the result of redeeming an authorization code at the
// token endpoint.
type TokenResponse struct {
	AccessToken   AccessToken
	IdentityToken IdToken
	RefreshToken  RefreshToken
	TokenType     string
	ExpiresIn     time.Duration

	// Error and ErrorDescription carry an oauth error response from the
	// token endpoint.
	Error            string
	ErrorDescription string
}

// IsError reports whether the response is an oauth error response.
func (r *TokenResponse) IsError() bool {
	return r != nil && r.Error != ""
}
