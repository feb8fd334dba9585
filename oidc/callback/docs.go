// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
callback is a package that provides callbacks (in the form of http.HandlerFunc)
for handling OIDC provider responses to authorization code flow and hybrid
flow authentication attempts. Pending attempts are looked up through a
StateReader, such as a StateCache.
*/
package callback
