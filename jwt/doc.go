// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package jwt verifies JWS compact serialized tokens against a set of candidate
keys and provides the stateless claim validators (issuer, audience, lifetime
and replay) used when accepting an OIDC id_token.

Primary types provided by the package:

  - SignatureVerifier: finds the key named by the token's "kid" header,
    enforces an explicit signing algorithm allow-list and verifies the
    signature through a pluggable Primitive.

  - ClaimSet: an ordered collection of claims decoded from a verified
    payload. Duplicate claim types are allowed.

  - ReplayCache: the storage contract used by ValidateReplay.
*/
package jwt
