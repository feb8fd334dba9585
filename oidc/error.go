// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"strings"
)

var (
	ErrInvalidParameter  = errors.New("invalid parameter")
	ErrNilParameter      = errors.New("nil parameter")
	ErrInvalidCACert     = errors.New("invalid CA certificate")
	ErrIdGeneratorFailed = errors.New("id generation failed")
	ErrNotFound          = errors.New("not found")
	ErrDiscoveryFailed   = errors.New("provider discovery failed")
)

// Reason is the machine-readable code of a ValidationError. Callers branch
// on the reason, never on the message text.
type Reason string

const (
	// protocol

	ReasonAuthorizationError   Reason = "AuthorizationError"
	ReasonMissingCode          Reason = "MissingCode"
	ReasonMissingState         Reason = "MissingState"
	ReasonInvalidState         Reason = "InvalidState"
	ReasonExpiredState         Reason = "ExpiredState"
	ReasonMissingIdentityToken Reason = "MissingIdentityToken"
	ReasonMissingAccessToken   Reason = "MissingAccessToken"

	// signature

	ReasonMissingKeyID         Reason = "MissingKeyId"
	ReasonUnsupportedAlgorithm Reason = "UnsupportedAlgorithm"
	ReasonKeyNotFound          Reason = "KeyNotFound"
	ReasonSignatureInvalid     Reason = "SignatureInvalid"
	ReasonMalformedToken       Reason = "MalformedToken"

	// claims

	ReasonInvalidIssuer   Reason = "InvalidIssuer"
	ReasonInvalidAudience Reason = "InvalidAudience"
	ReasonMissingSubject  Reason = "MissingSubject"
	ReasonSubjectMismatch Reason = "SubjectMismatch"
	ReasonMalformedClaims Reason = "MalformedClaims"

	// binding

	ReasonInvalidNonce           Reason = "InvalidNonce"
	ReasonMissingCodeHash        Reason = "MissingCodeHash"
	ReasonInvalidCodeHash        Reason = "InvalidCodeHash"
	ReasonMissingAccessTokenHash Reason = "MissingAccessTokenHash"
	ReasonInvalidAccessTokenHash Reason = "InvalidAccessTokenHash"

	// lifetime

	ReasonNoExpiration    Reason = "NoExpiration"
	ReasonInvalidLifetime Reason = "InvalidLifetime"
	ReasonNotYetValid     Reason = "NotYetValid"
	ReasonExpired         Reason = "Expired"

	// replay

	ReasonTokenReplayed      Reason = "TokenReplayed"
	ReasonReplayAddFailed    Reason = "ReplayAddFailed"
	ReasonReplayNoExpiration Reason = "ReplayNoExpiration"

	// transport

	ReasonRedemptionFailed Reason = "RedemptionFailed"
	ReasonUserInfoFailed   Reason = "UserInfoFailed"
)

// Category groups reasons into the failure taxonomy.
type Category string

const (
	CategoryUnknown         Category = "UnknownError"
	CategoryProtocol        Category = "ProtocolError"
	CategorySignature       Category = "SignatureError"
	CategoryClaimValidation Category = "ClaimValidationError"
	CategoryBinding         Category = "BindingError"
	CategoryLifetime        Category = "LifetimeError"
	CategoryReplay          Category = "ReplayError"
	CategoryTransport       Category = "TransportError"
)

var reasonCategories = map[Reason]Category{
	ReasonAuthorizationError:   CategoryProtocol,
	ReasonMissingCode:          CategoryProtocol,
	ReasonMissingState:         CategoryProtocol,
	ReasonInvalidState:         CategoryProtocol,
	ReasonExpiredState:         CategoryProtocol,
	ReasonMissingIdentityToken: CategoryProtocol,
	ReasonMissingAccessToken:   CategoryProtocol,

	ReasonMissingKeyID:         CategorySignature,
	ReasonUnsupportedAlgorithm: CategorySignature,
	ReasonKeyNotFound:          CategorySignature,
	ReasonSignatureInvalid:     CategorySignature,
	ReasonMalformedToken:       CategorySignature,

	ReasonInvalidIssuer:   CategoryClaimValidation,
	ReasonInvalidAudience: CategoryClaimValidation,
	ReasonMissingSubject:  CategoryClaimValidation,
	ReasonSubjectMismatch: CategoryClaimValidation,
	ReasonMalformedClaims: CategoryClaimValidation,

	ReasonInvalidNonce:           CategoryBinding,
	ReasonMissingCodeHash:        CategoryBinding,
	ReasonInvalidCodeHash:        CategoryBinding,
	ReasonMissingAccessTokenHash: CategoryBinding,
	ReasonInvalidAccessTokenHash: CategoryBinding,

	ReasonNoExpiration:    CategoryLifetime,
	ReasonInvalidLifetime: CategoryLifetime,
	ReasonNotYetValid:     CategoryLifetime,
	ReasonExpired:         CategoryLifetime,

	ReasonTokenReplayed:      CategoryReplay,
	ReasonReplayAddFailed:    CategoryReplay,
	ReasonReplayNoExpiration: CategoryReplay,

	ReasonRedemptionFailed: CategoryTransport,
	ReasonUserInfoFailed:   CategoryTransport,
}

// Category returns the reason's category.
func (r Reason) Category() Category {
	if c, ok := reasonCategories[r]; ok {
		return c
	}
	return CategoryUnknown
}

// ValidationError is the single tagged failure returned by every validation
// stage.
type ValidationError struct {
	// Op is the operation which raised the error.
	Op string

	// Reason is the machine-readable failure code.
	Reason Reason

	// Msg is a human-readable description.
	Msg string

	// Wrapped is the underlying error, if any. For RedemptionFailed it is
	// the token client's error, unchanged.
	Wrapped error
}

// NewValidationError creates a ValidationError.
func NewValidationError(op string, r Reason, msg string, wrapped error) *ValidationError {
	return &ValidationError{
		Op:      op,
		Reason:  r,
		Msg:     msg,
		Wrapped: wrapped,
	}
}

// Category returns the category of the error's reason.
func (e *ValidationError) Category() Category {
	return e.Reason.Category()
}

// Error satisfies the error interface.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(string(e.Reason))
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	if e.Wrapped != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Wrapped.Error())
	}
	return sb.String()
}

// Unwrap returns the wrapped error.
func (e *ValidationError) Unwrap() error {
	return e.Wrapped
}

// Is matches another *ValidationError by reason, so the Err* values below
// can be used with errors.Is. A MissingState error also matches
// ErrInvalidState.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	if t.Reason == e.Reason {
		return true
	}
	return t.Reason == ReasonInvalidState && e.Reason == ReasonMissingState
}

// ReasonOf returns the reason of the first ValidationError in err's chain,
// or "" if there is none.
func ReasonOf(err error) Reason {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Reason
	}
	return ""
}

func reasonSentinel(r Reason) *ValidationError {
	return &ValidationError{Reason: r}
}

var (
	ErrAuthorizationError   = reasonSentinel(ReasonAuthorizationError)
	ErrMissingCode          = reasonSentinel(ReasonMissingCode)
	ErrMissingState         = reasonSentinel(ReasonMissingState)
	ErrInvalidState         = reasonSentinel(ReasonInvalidState)
	ErrExpiredState         = reasonSentinel(ReasonExpiredState)
	ErrMissingIdToken       = reasonSentinel(ReasonMissingIdentityToken)
	ErrMissingAccessToken   = reasonSentinel(ReasonMissingAccessToken)
	ErrMissingKeyID         = reasonSentinel(ReasonMissingKeyID)
	ErrUnsupportedAlgorithm = reasonSentinel(ReasonUnsupportedAlgorithm)
	ErrKeyNotFound          = reasonSentinel(ReasonKeyNotFound)
	ErrInvalidSignature     = reasonSentinel(ReasonSignatureInvalid)
	ErrMalformedToken       = reasonSentinel(ReasonMalformedToken)
	ErrInvalidIssuer        = reasonSentinel(ReasonInvalidIssuer)
	ErrInvalidAudience      = reasonSentinel(ReasonInvalidAudience)
	ErrMissingSubject       = reasonSentinel(ReasonMissingSubject)
	ErrSubjectMismatch      = reasonSentinel(ReasonSubjectMismatch)
	ErrMalformedClaims      = reasonSentinel(ReasonMalformedClaims)
	ErrInvalidNonce         = reasonSentinel(ReasonInvalidNonce)
	ErrMissingCodeHash      = reasonSentinel(ReasonMissingCodeHash)
	ErrInvalidCodeHash      = reasonSentinel(ReasonInvalidCodeHash)
	ErrMissingAtHash        = reasonSentinel(ReasonMissingAccessTokenHash)
	ErrInvalidAtHash        = reasonSentinel(ReasonInvalidAccessTokenHash)
	ErrNoExpiration         = reasonSentinel(ReasonNoExpiration)
	ErrInvalidLifetime      = reasonSentinel(ReasonInvalidLifetime)
	ErrNotYetValid          = reasonSentinel(ReasonNotYetValid)
	ErrExpiredToken         = reasonSentinel(ReasonExpired)
	ErrTokenReplayed        = reasonSentinel(ReasonTokenReplayed)
	ErrReplayAddFailed      = reasonSentinel(ReasonReplayAddFailed)
	ErrReplayNoExpiration   = reasonSentinel(ReasonReplayNoExpiration)
	ErrRedemptionFailed     = reasonSentinel(ReasonRedemptionFailed)
	ErrUserInfoFailed       = reasonSentinel(ReasonUserInfoFailed)
)
