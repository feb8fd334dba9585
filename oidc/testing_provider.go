// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	josejwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/jwt"
	"github.com/hashicorp/oidcrp/oidc/clientassertion"
	"github.com/stretchr/testify/require"
)

// TestProvider is a local TLS server implementing the provider side of the
// authorization code and hybrid flows: discovery, JWKS, authorization, token
// and userinfo endpoints. It makes writing tests much easier.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks    *jose.JSONWebKeySet
	pubKey  crypto.PublicKey
	privKey crypto.PrivateKey
	keyID   string
	alg     jwt.Alg

	t *testing.T

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	assertionKey        crypto.PublicKey
	assertionAlg        jwt.Alg
	allowedRedirectURIs []string
	expectedAuthCode    string
	nonce               string
	codeChallenge       string
	replySubject        string
	customClaims        map[string]interface{}
	customAudience      string
	omitIDToken         bool
	omitAtHash          bool
	tokenRequests       int
	refreshToken        string
	replyUserinfo       map[string]interface{}
	disableUserInfo     bool
	accessTokens        map[string]bool
}

// StartTestProvider creates a disposable TestProvider. It's stopped when the
// test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t:     t,
		keyID: "test-provider-key",
		alg:   jwt.ES256,
		allowedRedirectURIs: []string{
			"https://example.com/callback",
		},
		replySubject:     "r3qXcK2bix9eFECzsU3Sbmh0K16fatW6@clients",
		expectedAuthCode: "test-auth-code",
		refreshToken:     "test-refresh-token",
		replyUserinfo: map[string]interface{}{
			"color":       "red",
			"temperature": "76",
			"flavor":      "umami",
		},
		accessTokens: map[string]bool{},
	}
	p.pubKey, p.privKey = TestGenerateKeys(t)
	p.jwks = TestKeySet(t, p.pubKey, p.alg, p.keyID)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running
// webserver. It's also the provider's issuer.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// HTTPClient returns an http client which trusts the provider and doesn't
// follow redirects, so the authorization endpoint's redirect can be
// inspected.
func (p *TestProvider) HTTPClient() *http.Client {
	c := p.httpServer.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// SigningKeys returns the test provider's keys used to sign JWTs along with
// their key id and algorithm.
func (p *TestProvider) SigningKeys() (crypto.PublicKey, crypto.PrivateKey, string, jwt.Alg) {
	return p.pubKey, p.privKey, p.keyID, p.alg
}

// ProviderInformation returns the provider's metadata without going through
// discovery.
func (p *TestProvider) ProviderInformation() *ProviderInformation {
	info := &ProviderInformation{
		IssuerName:        p.Addr(),
		AuthorizeEndpoint: p.Addr() + "/authorize",
		TokenEndpoint:     p.Addr() + "/token",
		KeySet:            p.jwks,
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.disableUserInfo {
		info.UserInfoEndpoint = p.Addr() + "/userinfo"
	}
	return info
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetClientAssertionKey makes the token endpoint authenticate clients with
// a client assertion verified with pub instead of the client secret.
func (p *TestProvider) SetClientAssertionKey(pub crypto.PublicKey, alg jwt.Alg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertionKey = pub
	p.assertionAlg = alg
}

// SetExpectedAuthCode configures the auth code to return from /authorize and
// the allowed auth code for /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedAuthNonce configures the nonce put in issued id_tokens. It's
// normally taken from the /authorize request.
func (p *TestProvider) SetExpectedAuthNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nonce = nonce
}

// SetPKCEVerifier configures the code verifier /token requires. It's
// normally derived from the /authorize request's code_challenge.
func (p *TestProvider) SetPKCEVerifier(verifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sum := sha256.Sum256([]byte(verifier))
	p.codeChallenge = base64.RawURLEncoding.EncodeToString(sum[:])
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. If not configured "https://example.com/callback" is
// used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetSubject configures the "sub" of issued id_tokens.
func (p *TestProvider) SetSubject(sub string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replySubject = sub
}

// SetCustomClaims lets you set claims to return in the id_tokens. A nil
// value removes the claim.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetCustomAudience configures what audience value to embed in the id_tokens.
func (p *TestProvider) SetCustomAudience(customAudience string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customAudience = customAudience
}

// OmitIDTokens forces an error state where the /token endpoint does not return
// id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// OmitAtHash makes /token issue id_tokens without an at_hash.
func (p *TestProvider) OmitAtHash() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitAtHash = true
}

// SetUserInfoReply configures the claims /userinfo returns. The "sub" claim
// defaults to the configured subject unless reply sets it.
func (p *TestProvider) SetUserInfoReply(reply map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = reply
}

// DisableUserInfo makes the userinfo endpoint return 404 and omits it from the
// discovery config.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// SetRefreshToken configures the refresh token /token issues and accepts.
func (p *TestProvider) SetRefreshToken(rt string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshToken = rt
}

// TokenRequests returns how many requests /token has received.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// authenticateClient checks the token request's client credentials: the
// client assertion when an assertion key is set, otherwise the secret sent
// with basic auth or in the form. p.mu must be held.
func (p *TestProvider) authenticateClient(req *http.Request) bool {
	if p.assertionKey != nil {
		if req.FormValue("client_assertion_type") != clientassertion.JWTTypeParam {
			return false
		}
		if id := req.FormValue("client_id"); id != "" && id != p.clientID {
			return false
		}
		tok, err := josejwt.ParseSigned(req.FormValue("client_assertion"), []jose.SignatureAlgorithm{jose.SignatureAlgorithm(p.assertionAlg)})
		if err != nil {
			return false
		}
		var claims josejwt.Claims
		if err := tok.Claims(p.assertionKey, &claims); err != nil {
			return false
		}
		err = claims.ValidateWithLeeway(josejwt.Expected{
			Issuer:      p.clientID,
			Subject:     p.clientID,
			AnyAudience: josejwt.Audience{p.Addr() + "/token"},
			Time:        time.Now(),
		}, 0)
		return err == nil && claims.ID != ""
	}

	clientID, clientSecret, ok := req.BasicAuth()
	if ok {
		clientID, _ = url.QueryUnescape(clientID)
		clientSecret, _ = url.QueryUnescape(clientSecret)
	} else {
		clientID, clientSecret = req.FormValue("client_id"), req.FormValue("client_secret")
	}
	return clientID == p.clientID && clientSecret == p.clientSecret
}

// issueIDToken signs an id_token. p.mu must be held.
func (p *TestProvider) issueIDToken(hashClaim, hashValue string) (string, error) {
	now := time.Now()
	claims := map[string]interface{}{
		"iss": p.Addr(),
		"sub": p.replySubject,
		"aud": p.clientID,
		"iat": now.Unix(),
		"nbf": now.Add(-5 * time.Second).Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	if p.customAudience != "" {
		claims["aud"] = p.customAudience
	}
	if p.nonce != "" {
		claims["nonce"] = p.nonce
	}
	if hashClaim != "" {
		h, err := ComputeHash(hashValue, p.alg)
		if err != nil {
			return "", err
		}
		claims[hashClaim] = h
	}
	for k, v := range p.customClaims {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}
	return testSignJWT(p.privKey, p.alg, claims, p.keyID)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer           string   `json:"issuer"`
			AuthEndpoint     string   `json:"authorization_endpoint"`
			TokenEndpoint    string   `json:"token_endpoint"`
			UserinfoEndpoint string   `json:"userinfo_endpoint,omitempty"`
			JWKSURI          string   `json:"jwks_uri"`
			Algs             []string `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:           p.Addr(),
			AuthEndpoint:     p.Addr() + "/authorize",
			TokenEndpoint:    p.Addr() + "/token",
			UserinfoEndpoint: p.Addr() + "/userinfo",
			JWKSURI:          p.Addr() + "/certs",
			Algs:             []string{string(p.alg)},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/certs_invalid":
		_, _ = w.Write([]byte("It's not a keyset!"))

	case "/authorize":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.serveAuthorize(w, req)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.tokenRequests++
		p.serveToken(w, req)

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.serveUserInfo(w, req)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *TestProvider) serveAuthorize(w http.ResponseWriter, req *http.Request) {
	qv := req.URL.Query()

	responseType := qv.Get("response_type")
	if responseType != "code" && responseType != "code id_token" {
		p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
		return
	}
	if !strutils.StrListContains(strings.Fields(qv.Get("scope")), "openid") {
		p.writeAuthErrorResponse(w, req, "invalid_scope", "")
		return
	}
	if qv.Get("client_id") != p.clientID {
		p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
		return
	}
	if p.expectedAuthCode == "" {
		p.writeAuthErrorResponse(w, req, "access_denied", "")
		return
	}
	state := qv.Get("state")
	if state == "" {
		p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
		return
	}
	redirectURI := qv.Get("redirect_uri")
	if !strutils.StrListContains(p.allowedRedirectURIs, redirectURI) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if challenge := qv.Get("code_challenge"); challenge != "" {
		if qv.Get("code_challenge_method") != "S256" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "code_challenge_method must be S256")
			return
		}
		p.codeChallenge = challenge
	}
	p.nonce = qv.Get("nonce")

	params := url.Values{}
	params.Set("state", state)
	params.Set("code", p.expectedAuthCode)
	if responseType == "code" {
		http.Redirect(w, req, redirectURI+"?"+params.Encode(), http.StatusFound)
		return
	}
	idToken, err := p.issueIDToken(jwt.ClaimAuthorizationCodeHash, p.expectedAuthCode)
	if err != nil {
		p.writeAuthErrorResponse(w, req, "server_error", err.Error())
		return
	}
	params.Set("id_token", idToken)
	http.Redirect(w, req, redirectURI+"#"+params.Encode(), http.StatusFound)
}

func (p *TestProvider) serveToken(w http.ResponseWriter, req *http.Request) {
	if !p.authenticateClient(req) {
		_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "bad client credentials")
		return
	}

	switch req.FormValue("grant_type") {
	case "authorization_code":
	case "refresh_token":
		p.serveRefresh(w, req)
		return
	default:
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
		return
	}
	switch {
	case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
		return
	case req.FormValue("code") != p.expectedAuthCode:
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
		return
	}
	if p.codeChallenge != "" {
		sum := sha256.Sum256([]byte(req.FormValue("code_verifier")))
		if base64.RawURLEncoding.EncodeToString(sum[:]) != p.codeChallenge {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier doesn't match")
			return
		}
	}

	p.writeTokens(w)
}

// serveRefresh answers a refresh_token grant. Refreshed id_tokens carry no
// nonce. p.mu must be held.
func (p *TestProvider) serveRefresh(w http.ResponseWriter, req *http.Request) {
	if p.refreshToken == "" || req.FormValue("refresh_token") != p.refreshToken {
		_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
		return
	}
	nonce := p.nonce
	p.nonce = ""
	defer func() { p.nonce = nonce }()
	p.writeTokens(w)
}

// writeTokens issues a new access token, the refresh token and, unless
// omitted, an id_token. p.mu must be held.
func (p *TestProvider) writeTokens(w http.ResponseWriter) {
	accessToken, err := NewID("at")
	if err != nil {
		_ = p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	p.accessTokens[accessToken] = true
	reply := struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token,omitempty"`
		IDToken      string `json:"id_token,omitempty"`
	}{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    3600,
		RefreshToken: p.refreshToken,
	}
	if !p.omitIDToken {
		hashClaim := jwt.ClaimAccessTokenHash
		if p.omitAtHash {
			hashClaim = ""
		}
		if reply.IDToken, err = p.issueIDToken(hashClaim, accessToken); err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusInternalServerError, "server_error", err.Error())
			return
		}
	}
	_ = p.writeJSON(w, &reply)
}

// serveUserInfo requires a bearer access token issued by /token. p.mu must
// be held.
func (p *TestProvider) serveUserInfo(w http.ResponseWriter, req *http.Request) {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || !p.accessTokens[token] {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	reply := map[string]interface{}{"sub": p.replySubject}
	for k, v := range p.replyUserinfo {
		reply[k] = v
	}
	_ = p.writeJSON(w, reply)
}
