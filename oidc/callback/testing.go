// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hashicorp/oidcrp/jwt"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/stretchr/testify/require"
)

// testSuccessFn is a test SuccessResponseFunc
func testSuccessFn(state string, id *oidc.Identity, w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("login successful: " + id.Subject()))
}

// testFailFn is a test ErrorResponseFunc
func testFailFn(state string, r *AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
	if e != nil {
		w.WriteHeader(http.StatusInternalServerError)
		j, _ := json.Marshal(&AuthenErrorResponse{
			Error:       string(oidc.ReasonOf(e)),
			Description: e.Error(),
		})
		_, _ = w.Write(j)
		return
	}
	if r != nil {
		w.WriteHeader(http.StatusUnauthorized)
		j, _ := json.Marshal(r)
		_, _ = w.Write(j)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	j, _ := json.Marshal(&AuthenErrorResponse{
		Error: "unknown-callback-error",
	})
	_, _ = w.Write(j)
}

// testNewClient creates a new Client. It uses the TestProvider (tp) to
// properly construct the client's configuration and provider information.
// This is helpful internally, but intentionally not exported.
func testNewClient(t *testing.T, clientID, clientSecret, redirectURL string, tp *oidc.TestProvider, flow oidc.Flow) *oidc.Client {
	const op = "testNewClient"
	t.Helper()
	require := require.New(t)
	require.NotEmptyf(clientID, "%s: client id is empty", op)
	require.NotEmptyf(clientSecret, "%s: client secret is empty", op)
	require.NotEmptyf(redirectURL, "%s: redirect URL is empty", op)

	tp.SetClientCreds(clientID, clientSecret)
	tp.SetAllowedRedirectURIs([]string{redirectURL})
	_, _, _, alg := tp.SigningKeys()
	p := oidc.DefaultPolicy()
	p.ValidSignatureAlgorithms = []jwt.Alg{alg}
	cfg, err := oidc.NewConfig(
		clientID,
		oidc.ClientSecret(clientSecret),
		redirectURL,
		oidc.WithProviderCA(tp.CACert()),
		oidc.WithPolicy(p),
		oidc.WithFlow(flow),
	)
	require.NoError(err)
	info, err := oidc.Discover(context.Background(), tp.Addr(), oidc.WithProviderCA(tp.CACert()))
	require.NoError(err)
	c, err := oidc.NewClient(cfg, info)
	require.NoError(err)
	return c
}
