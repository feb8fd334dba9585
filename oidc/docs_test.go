// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/oidcrp/jwt"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/replay"
)

func Example() {
	ctx := context.Background()

	// Discover the provider's endpoints and signing keys
	info, err := oidc.Discover(ctx, "https://your-issuer.com")
	if err != nil {
		// handle error
	}

	// Create a new Config
	cfg, err := oidc.NewConfig(
		"your_client_id",
		"your_client_secret",
		"http://your_redirect_url/callback",
		oidc.WithScopes("email"),
	)
	if err != nil {
		// handle error
	}

	// Create a client which rejects replayed id_tokens
	c, err := oidc.NewClient(cfg, info, oidc.WithReplayCache(replay.NewMemoryCache()))
	if err != nil {
		// handle error
	}

	// Create the state for a user's authentication attempt and the URL to
	// send the user to.
	state, authURL, err := c.PrepareLogin(oidc.WithExpiry(2 * time.Minute))
	if err != nil {
		// handle error
	}
	fmt.Println("open url to kick-off authentication: ", authURL)

	// Create a http.Handler for OIDC authentication response redirects
	callbackHandler := func(w http.ResponseWriter, r *http.Request) {
		// Validate the response: the state is checked, the code redeemed
		// and the id_token verified.
		id, err := c.ProcessRedirect(r.Context(), r.URL.String(), state)
		if err != nil {
			// handle error, oidc.ReasonOf(err) tells why it failed
			return
		}
		fmt.Println("subject: ", id.Subject())
		fmt.Println("email: ", id.Claims.Value("email"))
	}
	http.HandleFunc("/callback", callbackHandler)
}

func ExampleNewConfig() {
	// Create a new Config for a hybrid flow client
	cfg, err := oidc.NewConfig(
		"your_client_id",
		"your_client_secret",
		"http://your_redirect_url/callback",
		oidc.WithFlow(oidc.FlowHybrid),
		oidc.WithScopes("email", "profile"),
	)
	if err != nil {
		// handle error
	}
	fmt.Println(cfg.Flow.ResponseType())

	// Output:
	// code id_token
}

func ExampleLoadPolicy() {
	p, err := oidc.LoadPolicy(strings.NewReader(`
require_access_token_hash: true
valid_signature_algorithms: [RS256, ES256]
clock_skew: 2m
`))
	if err != nil {
		// handle error
	}
	fmt.Println(p.RequireAccessTokenHash, p.ValidSignatureAlgorithms, p.ClockSkew)

	// Output:
	// true [RS256 ES256] 2m0s
}

func ExampleIdentityTokenValidator_Validate() {
	ctx := context.Background()
	info, err := oidc.Discover(ctx, "https://your-issuer.com")
	if err != nil {
		// handle error
	}
	p := oidc.DefaultPolicy()
	p.ValidSignatureAlgorithms = []jwt.Alg{jwt.RS256, jwt.ES256}

	v := oidc.NewIdentityTokenValidator()
	res, err := v.Validate(ctx, oidc.IdToken("raw-id-token"), "your_client_id", info, p)
	if err != nil {
		// handle error
		return
	}
	fmt.Println(res.Subject())
}
