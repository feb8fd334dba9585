// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
oidc is a package for OIDC relying parties: it prepares authorization
requests and validates the provider's responses for the authorization code
and hybrid flows.

Primary types provided by the package

* AuthorizeState: represents one login attempt. It carries the state, nonce
and PKCE code verifier sent with the authorization request and is consumed
when the response is validated.

* ProviderInformation: the provider's issuer name, endpoints and signing keys,
usually created with Discover.

* Policy: controls how strictly responses are validated (required claims,
allowed signature algorithms, clock skew, c_hash/at_hash requirements). It
can be loaded from YAML with LoadPolicy.

* IdentityTokenValidator: verifies an id_token's signature against the
provider's keys and checks its issuer, audience, lifetime and replay.

* ResponseValidator: validates an authorization response end to end:
state correlation, front channel id_token (hybrid), code redemption and the
back channel token response, producing an Identity.

* Client: binds a Config to one provider and wraps the above.

* ValidationError: every validation failure, carrying a Reason and a
Category.

The oidc/callback package

The callback package includes the ability to create a http.HandlerFunc which
can be used for the redirect leg of the flow, where the authorization code
is redeemed for tokens and validated.
*/
package oidc
