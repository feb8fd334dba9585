// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/oidcrp/oidc"
)

// AuthCode creates an oidc callback handler for the client's flow which
// uses a StateReader to read the stored oidc.AuthorizeState via the
// response's "state" parameter as a key for the lookup.
//
// The response parameters are read from the request body or query, so a
// hybrid flow client should prepare its logins with
// oidc.WithResponseMode("form_post"): a fragment never reaches the server.
//
// The SuccessResponseFunc is used to create a response when callback is
// successful. The ErrorResponseFunc is to create a response when the callback
// fails.
func AuthCode(ctx context.Context, c *oidc.Client, sr StateReader, sFn SuccessResponseFunc, eFn ErrorResponseFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		const op = "callback.AuthCode"
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found
		reqState := req.FormValue("state")
		switch {
		case c == nil:
			eFn(reqState, nil, fmt.Errorf("%s: client is nil: %w", op, oidc.ErrNilParameter), w, req)
			return
		case sr == nil:
			eFn(reqState, nil, fmt.Errorf("%s: state reader is nil: %w", op, oidc.ErrNilParameter), w, req)
			return
		}
		resp := oidc.ParseAuthorizeResponse(req.Form)
		if resp.IsError() {
			eFn(reqState, &AuthenErrorResponse{
				Error:       resp.Error,
				Description: resp.ErrorDescription,
				Uri:         resp.ErrorURI,
			}, nil, w, req)
			return
		}

		state, err := sr.Read(ctx, reqState)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: unable to read auth code state: %w", op, err), w, req)
			return
		}
		if state == nil {
			// could have expired or it could be invalid... no way to known for sure
			eFn(reqState, nil, fmt.Errorf("%s: auth code state not found: %w", op, oidc.ErrNotFound), w, req)
			return
		}

		id, err := c.ProcessResponse(ctx, resp, state)
		if err != nil {
			eFn(reqState, nil, fmt.Errorf("%s: %w", op, err), w, req)
			return
		}
		sFn(reqState, id, w, req)
	}
}
