// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/jwt"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/callback"
	"github.com/hashicorp/oidcrp/oidc/clientassertion"
	"github.com/hashicorp/oidcrp/replay"
)

// List of required configuration environment variables
const (
	clientID     = "OIDC_CLIENT_ID"
	clientSecret = "OIDC_CLIENT_SECRET"
	issuer       = "OIDC_ISSUER"
	port         = "OIDC_PORT"
)

const attemptExp = 2 * time.Minute

func envConfig(secretNotRequired bool) (map[string]string, error) {
	const op = "envConfig"
	env := map[string]string{
		clientID:     os.Getenv(clientID),
		clientSecret: os.Getenv(clientSecret),
		issuer:       os.Getenv(issuer),
		port:         os.Getenv(port),
	}
	for k, v := range env {
		switch {
		case k == clientSecret && secretNotRequired:
			env[k] = "" // unsetting the secret which isn't required
		case k == clientSecret && v == "":
			return nil, fmt.Errorf("%s: %s is empty.\n\n   Did you intend to use the -public or -assertion-key options?", op, k)
		case v == "":
			return nil, fmt.Errorf("%s: %s is empty", op, k)
		}
	}
	return env, nil
}

func main() {
	useHybrid := flag.Bool("hybrid", false, "use the hybrid flow (code id_token) with response_mode=form_post")
	public := flag.Bool("public", false, "authenticate as a public client which relies on PKCE alone")
	scopes := flag.String("scopes", "", "comma separated list of additional scopes to requests")
	policyFile := flag.String("policy", "", "YAML validation policy file")
	replayDB := flag.String("replay-db", "", "sqlite file used to detect replayed id_tokens (default: in memory)")
	assertionKey := flag.String("assertion-key", "", "PEM PKCS #8 private key for private_key_jwt client authentication")
	assertionAlg := flag.String("assertion-alg", string(jwt.RS256), "signing algorithm for the client assertion")
	assertionKeyID := flag.String("assertion-kid", "", "key id of the client assertion key")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "oidc-login",
		Level:  hclog.LevelFromString(*logLevel),
		Output: os.Stderr,
	})

	env, err := envConfig(*public || *assertionKey != "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n\n", err)
		return
	}

	// handle ctrl-c while waiting for the callback
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt)
	defer signal.Stop(sigintCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var configOptions []oidc.Option
	if *scopes != "" {
		optScopes := strings.Split(*scopes, ",")
		for i := range optScopes {
			optScopes[i] = strings.TrimSpace(optScopes[i])
		}
		configOptions = append(configOptions, oidc.WithScopes(optScopes...))
	}
	if *useHybrid {
		configOptions = append(configOptions, oidc.WithFlow(oidc.FlowHybrid))
	}
	if *policyFile != "" {
		p, err := oidc.LoadPolicyFile(*policyFile)
		if err != nil {
			fmt.Fprint(os.Stderr, err.Error())
			return
		}
		configOptions = append(configOptions, oidc.WithPolicy(p))
	}

	redirectURL := fmt.Sprintf("http://localhost:%s/callback", env[port])
	cfg, err := oidc.NewConfig(env[clientID], oidc.ClientSecret(env[clientSecret]), redirectURL, configOptions...)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	info, err := oidc.Discover(ctx, env[issuer], oidc.WithLogger(logger.Named("discovery")))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	clientOptions := []oidc.Option{oidc.WithLogger(logger)}
	if *replayDB != "" {
		cache, err := replay.NewSQLiteCache(ctx, *replayDB, replay.WithLogger(logger.Named("replay")))
		if err != nil {
			fmt.Fprint(os.Stderr, err.Error())
			return
		}
		defer cache.Close()
		clientOptions = append(clientOptions, oidc.WithReplayCache(cache))
	} else {
		clientOptions = append(clientOptions, oidc.WithReplayCache(replay.NewMemoryCache()))
	}
	if *assertionKey != "" {
		j, err := newClientAssertion(env[clientID], info.TokenEndpoint, *assertionKey, jwt.Alg(*assertionAlg), *assertionKeyID)
		if err != nil {
			fmt.Fprint(os.Stderr, err.Error())
			return
		}
		clientOptions = append(clientOptions, oidc.WithClientAssertion(j))
	}

	c, err := oidc.NewClient(cfg, info, clientOptions...)
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}

	loginOptions := []oidc.Option{oidc.WithExpiry(attemptExp)}
	if *useHybrid {
		loginOptions = append(loginOptions, oidc.WithResponseMode("form_post"))
	}
	state, authURL, err := c.PrepareLogin(loginOptions...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error preparing login: %s", err)
		return
	}

	successFn, successCh := success()
	errorFn, failedCh := failed()

	// Set up callback handler
	http.HandleFunc("/callback", callback.AuthCode(ctx, c, &callback.SingleStateReader{State: state}, successFn, errorFn))

	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%s", env[port]))
	if err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		return
	}
	defer listener.Close()

	fmt.Fprintf(os.Stderr, "Complete the login via your OIDC provider. Open this URL in your browser:\n\n    %s\n\n\n", authURL)

	srvCh := make(chan error)
	// Start local server
	go func() {
		err := http.Serve(listener, nil)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvCh <- err
		}
	}()

	// Wait for either the callback to finish, SIGINT to be received or up to 2 minutes
	select {
	case err := <-srvCh:
		fmt.Fprintf(os.Stderr, "server closed with error: %s", err.Error())
		return
	case resp := <-successCh:
		if resp.Error != nil {
			fmt.Fprintf(os.Stderr, "channel received success with error: %s", resp.Error)
			return
		}
		printToken(resp.Identity)
		printClaims(resp.Identity)
		return
	case err := <-failedCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "channel received error: %s (reason: %s)\n", err, oidc.ReasonOf(err))
			return
		}
		fmt.Fprint(os.Stderr, "missing error from error channel.  try again?\n")
		return
	case <-sigintCh:
		fmt.Fprintf(os.Stderr, "Interrupted")
		return
	case <-time.After(attemptExp):
		fmt.Fprintf(os.Stderr, "Timed out waiting for response from provider")
		return
	}
}

// newClientAssertion reads a PKCS #8 private key from path and returns an
// assertion for the provider's token endpoint.
func newClientAssertion(clientID, tokenEndpoint, path string, alg jwt.Alg, keyID string) (*clientassertion.JWT, error) {
	const op = "newClientAssertion"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%s: %s is not PEM encoded", op, path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%s: %T is not a signing key", op, key)
	}
	var opts []clientassertion.Option
	if keyID != "" {
		opts = append(opts, clientassertion.WithKeyID(keyID))
	}
	j, err := clientassertion.NewJWTWithKey(clientID, []string{tokenEndpoint}, alg, signer, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return j, nil
}

type successResp struct {
	Identity *oidc.Identity // Identity is populated when the callback successfully validates the response.
	Error    error          // Error is populated when there's an error during the callback
}

func success() (callback.SuccessResponseFunc, <-chan successResp) {
	const op = "success"
	doneCh := make(chan successResp)
	return func(state string, id *oidc.Identity, w http.ResponseWriter, req *http.Request) {
		var responseErr error
		defer func() {
			doneCh <- successResp{id, responseErr}
			close(doneCh)
		}()
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(successHTML)); err != nil {
			responseErr = fmt.Errorf("%s: %w", op, err)
			fmt.Fprintf(os.Stderr, "error writing successful response: %s", err)
		}
	}, doneCh
}

func failed() (callback.ErrorResponseFunc, <-chan error) {
	const op = "failed"
	doneCh := make(chan error)
	return func(state string, r *callback.AuthenErrorResponse, e error, w http.ResponseWriter, req *http.Request) {
		var responseErr error
		defer func() {
			if _, err := w.Write([]byte(responseErr.Error())); err != nil {
				fmt.Fprintf(os.Stderr, "%s: error writing failed response: %s", op, err)
			}
			doneCh <- responseErr
			close(doneCh)
		}()

		if e != nil {
			responseErr = e
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if r != nil {
			responseErr = fmt.Errorf("%s: callback error from oidc provider: %s: %s", op, r.Error, r.Description)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		responseErr = fmt.Errorf("%s: unknown error from callback", op)
		w.WriteHeader(http.StatusInternalServerError)
	}, doneCh
}

func printClaims(id *oidc.Identity) {
	const op = "printClaims"
	claims := map[string]interface{}{}
	for _, cl := range id.Claims.Claims() {
		var v interface{} = cl.Value
		if cl.ValueType == jwt.ValueTypeJSON {
			v = json.RawMessage(cl.Value)
		}
		switch existing := claims[cl.Type].(type) {
		case nil:
			claims[cl.Type] = v
		case []interface{}:
			claims[cl.Type] = append(existing, v)
		default:
			claims[cl.Type] = []interface{}{existing, v}
		}
	}
	idData, err := json.MarshalIndent(claims, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
		return
	}
	fmt.Fprintf(os.Stderr, "IDToken claims (%s, kid %q):%s\n", id.Algorithm, id.KeyID, idData)
}

type respToken struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

func printToken(id *oidc.Identity) {
	const op = "printToken"
	tr := id.TokenResponse
	// plain strings, since the token types redact themselves when marshaled
	tokenData, err := json.MarshalIndent(respToken{
		IDToken:      string(tr.IdentityToken),
		AccessToken:  string(tr.AccessToken),
		RefreshToken: string(tr.RefreshToken),
		ExpiresIn:    tr.ExpiresIn,
	}, "", "    ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s", op, err)
		return
	}
	fmt.Fprintf(os.Stderr, "channel received success.\nToken:%s\n", tokenData)
}
