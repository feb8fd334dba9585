// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-multierror"
)

// ProviderInformation is the resolved metadata of an OIDC provider. It is
// long lived, refreshed out of band (see Discover) and shared read only by
// every validation in flight.
type ProviderInformation struct {
	// IssuerName must exactly equal the "iss" claim of the provider's tokens.
	IssuerName string

	AuthorizeEndpoint  string
	TokenEndpoint      string
	UserInfoEndpoint   string
	EndSessionEndpoint string

	// KeySet holds the provider's verification keys.
	KeySet *jose.JSONWebKeySet
}

// Validate checks that the issuer, the authorize and token endpoints and at
// least one key are present.
func (p *ProviderInformation) Validate() error {
	const op = "ProviderInformation.Validate"
	if p == nil {
		return fmt.Errorf("%s: provider information is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if strings.TrimSpace(p.IssuerName) == "" {
		result = multierror.Append(result, fmt.Errorf("issuer name is empty: %w", ErrInvalidParameter))
	}
	if p.AuthorizeEndpoint == "" {
		result = multierror.Append(result, fmt.Errorf("authorize endpoint is empty: %w", ErrInvalidParameter))
	}
	if p.TokenEndpoint == "" {
		result = multierror.Append(result, fmt.Errorf("token endpoint is empty: %w", ErrInvalidParameter))
	}
	if p.KeySet == nil || len(p.KeySet.Keys) == 0 {
		result = multierror.Append(result, fmt.Errorf("key set is empty: %w", ErrInvalidParameter))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
