// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// oidcrp provides the packages an OpenID Connect relying party needs to
// validate authorization responses and verify id_tokens: oidc for the flows,
// jwt for signature and claim checks and replay for token replay caches.
package oidcrp
