// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/oidcrp/oidc"
)

func ExampleAuthCode() {
	ctx := context.Background()

	// Discover the provider and create a client for it
	info, _ := oidc.Discover(ctx, "https://your-issuer.com")
	cfg, _ := oidc.NewConfig(
		"your_client_id",
		"your_client_secret",
		"http://your_redirect_url/auth-code-callback",
	)
	c, _ := oidc.NewClient(cfg, info)

	// Create and store the state for a user's authentication attempt, then
	// send the user agent to authURL.
	states := NewStateCache()
	state, authURL, _ := c.PrepareLogin(oidc.WithExpiry(2 * time.Minute))
	_ = states.Add(state)
	fmt.Println(authURL != "")

	// A function to handle successful attempts.
	successFn := func(
		state string,
		id *oidc.Identity,
		w http.ResponseWriter,
		req *http.Request,
	) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("welcome %s", id.Subject())))
	}
	// A function to handle errors and failed attempts.
	errorFn := func(
		state string,
		r *AuthenErrorResponse,
		e error,
		w http.ResponseWriter,
		req *http.Request,
	) {
		if e != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(oidc.ReasonOf(e)))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}
	// create the authorization code callback and register it for use.
	http.HandleFunc("/auth-code-callback", AuthCode(ctx, c, states, successFn, errorFn))
}
