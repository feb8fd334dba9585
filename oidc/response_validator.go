// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/jwt"
)

// TokenClient redeems authorization codes at the provider's token endpoint.
// Implementations must honor ctx cancellation and must not retry: a code is
// single use.
type TokenClient interface {
	RedeemAuthorizationCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error)
}

// TokenRefresher redeems refresh tokens at the provider's token endpoint.
// A TokenClient which also implements it lets a Client refresh tokens.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken RefreshToken) (*TokenResponse, error)
}

// Identity is the result of a successfully validated authorization response.
type Identity struct {
	// Claims are the back channel id_token's claims. The set is empty when
	// the policy allowed a token response without an id_token.
	Claims *jwt.ClaimSet

	// Algorithm and KeyID describe the back channel id_token's signature.
	Algorithm jwt.Alg
	KeyID     string

	// TokenResponse is the token endpoint's response.
	TokenResponse *TokenResponse

	// AuthorizeResponse is the front channel response.
	AuthorizeResponse *AuthorizeResponse
}

// Subject returns the identity's "sub" claim.
func (i *Identity) Subject() string {
	if i == nil {
		return ""
	}
	return i.Claims.Value(jwt.ClaimSubject)
}

// flowInput is what every flow handler validates.
type flowInput struct {
	resp   *AuthorizeResponse
	state  *AuthorizeState
	policy Policy
	info   *ProviderInformation
}

type flowHandler func(ctx context.Context, in *flowInput) (*Identity, error)

// ResponseValidator turns an authorization response into a verified
// Identity. The flow is fixed when the validator is created. It is safe for
// concurrent use.
type ResponseValidator struct {
	clientID    string
	flow        Flow
	tokenClient TokenClient
	idTokens    *IdentityTokenValidator
	handle      flowHandler
	now         func() time.Time
	logger      hclog.Logger
}

// NewResponseValidator creates a ResponseValidator for clientID using flow.
// Codes are redeemed through tc.
//
// Supported options:
//   - WithPrimitive
//   - WithReplayCache
//   - WithNow
//   - WithLogger
func NewResponseValidator(clientID string, flow Flow, tc TokenClient, opt ...Option) (*ResponseValidator, error) {
	const op = "oidc.NewResponseValidator"
	switch {
	case clientID == "":
		return nil, fmt.Errorf("%s: client id is empty: %w", op, ErrInvalidParameter)
	case tc == nil:
		return nil, fmt.Errorf("%s: token client is nil: %w", op, ErrNilParameter)
	case !flow.Valid():
		return nil, fmt.Errorf("%s: %s: %w", op, flow, ErrInvalidParameter)
	}
	opts := getValidatorOpts(opt...)
	v := &ResponseValidator{
		clientID:    clientID,
		flow:        flow,
		tokenClient: tc,
		idTokens:    NewIdentityTokenValidator(opt...),
		now:         opts.withNow,
		logger:      opts.withLogger,
	}
	switch flow {
	case FlowHybrid:
		v.handle = v.hybridFlow
	default:
		v.handle = v.authorizationCodeFlow
	}
	return v, nil
}

// Flow returns the validator's flow.
func (v *ResponseValidator) Flow() Flow { return v.flow }

// ValidateAuthorizationResponse validates resp against the stored state and
// returns the verified identity. Validation stops at the first failure,
// which is returned as a *ValidationError. Invalid parameters are reported
// with ErrInvalidParameter or ErrNilParameter.
func (v *ResponseValidator) ValidateAuthorizationResponse(ctx context.Context, resp *AuthorizeResponse, state *AuthorizeState, policy Policy, info *ProviderInformation) (*Identity, error) {
	const op = "ResponseValidator.ValidateAuthorizationResponse"
	switch {
	case resp == nil:
		return nil, fmt.Errorf("%s: authorize response is nil: %w", op, ErrNilParameter)
	case state == nil:
		return nil, fmt.Errorf("%s: authorize state is nil: %w", op, ErrNilParameter)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	v.logger.Trace("validating authorization response", "op", op, "flow", v.flow)

	id, err := v.handle(ctx, &flowInput{resp: resp, state: state, policy: policy, info: info})
	if err != nil {
		v.logger.Debug("authorization response rejected", "op", op, "flow", v.flow, "reason", ReasonOf(err), "category", ReasonOf(err).Category())
		return nil, err
	}
	v.logger.Debug("authorization response accepted", "op", op, "flow", v.flow, "kid", id.KeyID)
	return id, nil
}

// ValidateTokenResponse validates a token endpoint response for the given
// state: the access token is required, the id_token is required when the
// policy says so (and always in the hybrid flow) and, when present, it's
// validated and bound to the access token through at_hash.
func (v *ResponseValidator) ValidateTokenResponse(ctx context.Context, tr *TokenResponse, state *AuthorizeState, policy Policy, info *ProviderInformation) (*IdentityTokenResult, error) {
	const op = "ResponseValidator.ValidateTokenResponse"
	switch {
	case tr == nil:
		return nil, fmt.Errorf("%s: token response is nil: %w", op, ErrNilParameter)
	case state == nil:
		return nil, fmt.Errorf("%s: authorize state is nil: %w", op, ErrNilParameter)
	}
	return v.validateTokenResponse(ctx, tr, state, policy, info, !policy.AllowTokenOnlyResponse || v.flow == FlowHybrid)
}

// ValidateRefreshResponse validates the response to a refresh_token grant.
// The access token is required and the id_token is optional. A present
// id_token is validated as ValidateTokenResponse does, except that there is
// no nonce to check.
func (v *ResponseValidator) ValidateRefreshResponse(ctx context.Context, tr *TokenResponse, policy Policy, info *ProviderInformation) (*IdentityTokenResult, error) {
	const op = "ResponseValidator.ValidateRefreshResponse"
	if tr == nil {
		return nil, fmt.Errorf("%s: token response is nil: %w", op, ErrNilParameter)
	}
	return v.validateTokenResponse(ctx, tr, nil, policy, info, false)
}

func (v *ResponseValidator) authorizationCodeFlow(ctx context.Context, in *flowInput) (*Identity, error) {
	if err := v.validateFrontChannel(in.resp, in.state); err != nil {
		return nil, err
	}
	tr, err := v.redeem(ctx, in.resp.Code, in.state)
	if err != nil {
		return nil, err
	}
	back, err := v.validateTokenResponse(ctx, tr, in.state, in.policy, in.info, !in.policy.AllowTokenOnlyResponse)
	if err != nil {
		return nil, err
	}
	return newIdentity(back, tr, in.resp), nil
}

func (v *ResponseValidator) hybridFlow(ctx context.Context, in *flowInput) (*Identity, error) {
	const op = "ResponseValidator.hybridFlow"
	if err := v.validateFrontChannel(in.resp, in.state); err != nil {
		return nil, err
	}
	if in.resp.IdentityToken == "" {
		return nil, NewValidationError(op, ReasonMissingIdentityToken, "front channel response has no id_token", nil)
	}
	front, err := v.idTokens.Validate(ctx, in.resp.IdentityToken, v.clientID, in.info, in.policy)
	if err != nil {
		return nil, err
	}
	nonce, ok := front.Claims.FindFirst(jwt.ClaimNonce)
	if !ok || !strutils.ConstantTimeEqual(nonce.Value, in.state.Nonce()) {
		return nil, NewValidationError(op, ReasonInvalidNonce, "front channel id_token nonce doesn't match", nil)
	}
	cHash, ok := front.Claims.FindFirst(jwt.ClaimAuthorizationCodeHash)
	switch {
	case !ok && in.policy.RequireAuthorizationCodeHash:
		return nil, NewValidationError(op, ReasonMissingCodeHash, "", nil)
	case ok && !ValidateHash(string(in.resp.Code), cHash.Value, front.Algorithm):
		return nil, NewValidationError(op, ReasonInvalidCodeHash, "", nil)
	}

	tr, err := v.redeem(ctx, in.resp.Code, in.state)
	if err != nil {
		return nil, err
	}
	back, err := v.validateTokenResponse(ctx, tr, in.state, in.policy, in.info, true)
	if err != nil {
		return nil, err
	}

	// An absent subject on either side never matches.
	frontSub, backSub := front.Subject(), back.Subject()
	if frontSub == "" || backSub == "" || frontSub != backSub {
		return nil, NewValidationError(op, ReasonSubjectMismatch, "front and back channel subjects differ", nil)
	}
	return newIdentity(back, tr, in.resp), nil
}

// validateFrontChannel checks the response's error, code and state before
// any cryptography is attempted.
func (v *ResponseValidator) validateFrontChannel(resp *AuthorizeResponse, state *AuthorizeState) error {
	const op = "ResponseValidator.validateFrontChannel"
	switch {
	case resp.IsError():
		msg := resp.Error
		if resp.ErrorDescription != "" {
			msg = fmt.Sprintf("%s: %s", resp.Error, resp.ErrorDescription)
		}
		return NewValidationError(op, ReasonAuthorizationError, msg, nil)
	case resp.Code == "":
		return NewValidationError(op, ReasonMissingCode, "", nil)
	case resp.State == "":
		return NewValidationError(op, ReasonMissingState, "", nil)
	case state.State() == "":
		return NewValidationError(op, ReasonInvalidState, "stored state is empty", nil)
	case !strutils.ConstantTimeEqual(resp.State, state.State()):
		return NewValidationError(op, ReasonInvalidState, "response state doesn't match", nil)
	case state.IsExpired(v.now()):
		return NewValidationError(op, ReasonExpiredState, "", nil)
	}
	return nil
}

// redeem makes exactly one call to the token client.
func (v *ResponseValidator) redeem(ctx context.Context, code AuthorizationCode, state *AuthorizeState) (*TokenResponse, error) {
	const op = "ResponseValidator.redeem"
	tr, err := v.tokenClient.RedeemAuthorizationCode(ctx, string(code), state.RedirectURI(), state.CodeVerifier())
	return checkTokenResponse(op, tr, err)
}

// checkTokenResponse turns a failed token endpoint call into a
// RedemptionFailed error.
func checkTokenResponse(op string, tr *TokenResponse, err error) (*TokenResponse, error) {
	switch {
	case err != nil:
		return nil, NewValidationError(op, ReasonRedemptionFailed, "", err)
	case tr == nil:
		return nil, NewValidationError(op, ReasonRedemptionFailed, "token client returned no response", nil)
	case tr.IsError():
		msg := tr.Error
		if tr.ErrorDescription != "" {
			msg = fmt.Sprintf("%s: %s", tr.Error, tr.ErrorDescription)
		}
		return nil, NewValidationError(op, ReasonRedemptionFailed, msg, nil)
	}
	return tr, nil
}

func (v *ResponseValidator) validateTokenResponse(ctx context.Context, tr *TokenResponse, state *AuthorizeState, policy Policy, info *ProviderInformation, requireIDToken bool) (*IdentityTokenResult, error) {
	const op = "ResponseValidator.validateTokenResponse"
	if tr.AccessToken == "" {
		return nil, NewValidationError(op, ReasonMissingAccessToken, "", nil)
	}
	if tr.IdentityToken == "" {
		if requireIDToken {
			return nil, NewValidationError(op, ReasonMissingIdentityToken, "token response has no id_token", nil)
		}
		return &IdentityTokenResult{Claims: jwt.NewClaimSet()}, nil
	}
	back, err := v.idTokens.Validate(ctx, tr.IdentityToken, v.clientID, info, policy)
	if err != nil {
		return nil, err
	}
	if nonce, ok := back.Claims.FindFirst(jwt.ClaimNonce); ok && state != nil && !strutils.ConstantTimeEqual(nonce.Value, state.Nonce()) {
		return nil, NewValidationError(op, ReasonInvalidNonce, "back channel id_token nonce doesn't match", nil)
	}
	atHash, ok := back.Claims.FindFirst(jwt.ClaimAccessTokenHash)
	switch {
	case !ok && policy.RequireAccessTokenHash:
		return nil, NewValidationError(op, ReasonMissingAccessTokenHash, "", nil)
	case ok && !ValidateHash(string(tr.AccessToken), atHash.Value, back.Algorithm):
		return nil, NewValidationError(op, ReasonInvalidAccessTokenHash, "", nil)
	}
	return back, nil
}

func newIdentity(back *IdentityTokenResult, tr *TokenResponse, resp *AuthorizeResponse) *Identity {
	return &Identity{
		Claims:            back.Claims,
		Algorithm:         back.Algorithm,
		KeyID:             back.KeyID,
		TokenResponse:     tr,
		AuthorizeResponse: resp,
	}
}
