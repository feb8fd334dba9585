// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcrp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/callback"
	"github.com/hashicorp/oidcrp/replay"
)

func Example_oidc() {
	ctx := context.Background()

	// Discover the provider
	info, err := oidc.Discover(ctx, "https://your-issuer.com")
	if err != nil {
		// handle error
	}

	// Create a new Config
	cfg, err := oidc.NewConfig(
		"your_client_id",
		"your_client_secret",
		"http://your_redirect_url/callback",
	)
	if err != nil {
		// handle error
	}

	// Keep the ids of accepted id_tokens in sqlite so they can't be
	// replayed, even across restarts.
	cache, err := replay.NewSQLiteCache(ctx, "replay.db")
	if err != nil {
		// handle error
	}
	defer cache.Close()

	// Create a client
	c, err := oidc.NewClient(cfg, info, oidc.WithReplayCache(cache))
	if err != nil {
		// handle error
	}

	// Create the state for a user's authentication attempt and an auth URL
	states := callback.NewStateCache()
	state, authURL, err := c.PrepareLogin(oidc.WithExpiry(2 * time.Minute))
	if err != nil {
		// handle error
	}
	if err := states.Add(state); err != nil {
		// handle error
	}
	fmt.Println("open url to kick-off authentication: ", authURL)

	// Create a http.Handler for OIDC authentication response redirects
	success := func(state string, id *oidc.Identity, w http.ResponseWriter, req *http.Request) {
		claims := map[string]string{}
		for _, cl := range id.Claims.Claims() {
			claims[cl.Type] = cl.Value
		}
		enc := json.NewEncoder(w)
		if err := enc.Encode(claims); err != nil {
			// handle error
		}
	}
	failed := func(state string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	http.HandleFunc("/callback", callback.AuthCode(ctx, c, states, success, failed))
}
