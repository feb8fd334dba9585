// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// DefaultDiscoveryTimeout bounds each discovery request when WithTimeout
// isn't used.
const DefaultDiscoveryTimeout = 30 * time.Second

// maxJWKSSize limits how much of a JWKS response is read.
const maxJWKSSize = 1 << 20

// DiscoveryPolicy controls which discovery documents Discover accepts.
type DiscoveryPolicy struct {
	// RequireHTTPS requires the issuer and every endpoint to use https.
	RequireHTTPS bool

	// AllowHTTPOnLoopback allows http for loopback hosts even when
	// RequireHTTPS is set.
	AllowHTTPOnLoopback bool

	// ValidateIssuerName requires the document's issuer to be identical to
	// the issuer it was requested for.
	ValidateIssuerName bool

	// ValidateEndpoints requires every endpoint to share the issuer's
	// scheme and host.
	ValidateEndpoints bool

	// RequireKeySet requires the key set to hold at least one usable key.
	RequireKeySet bool
}

// DefaultDiscoveryPolicy returns the strictest policy, allowing http only on
// loopback hosts.
func DefaultDiscoveryPolicy() DiscoveryPolicy {
	return DiscoveryPolicy{
		RequireHTTPS:        true,
		AllowHTTPOnLoopback: true,
		ValidateIssuerName:  true,
		ValidateEndpoints:   true,
		RequireKeySet:       true,
	}
}

// discoveryDocument is the subset of the provider metadata used here.
type discoveryDocument struct {
	Issuer             string `json:"issuer"`
	AuthURL            string `json:"authorization_endpoint"`
	TokenURL           string `json:"token_endpoint"`
	UserInfoURL        string `json:"userinfo_endpoint"`
	EndSessionEndpoint string `json:"end_session_endpoint"`
	JWKSURL            string `json:"jwks_uri"`
}

// Discover resolves the provider's discovery document and key set.
//
// Supported options:
//   - WithDiscoveryPolicy (default DefaultDiscoveryPolicy)
//   - WithHTTPClient
//   - WithProviderCA
//   - WithTimeout (default DefaultDiscoveryTimeout)
//   - WithLogger
func Discover(ctx context.Context, issuer string, opt ...Option) (*ProviderInformation, error) {
	const op = "oidc.Discover"
	if issuer == "" {
		return nil, fmt.Errorf("%s: issuer is empty: %w", op, ErrInvalidParameter)
	}
	opts := getDiscoveryOpts(opt...)
	policy := opts.withDiscoveryPolicy
	if err := policy.checkScheme(issuer); err != nil {
		return nil, fmt.Errorf("%s: issuer: %w: %s", op, ErrDiscoveryFailed, err.Error())
	}
	client, err := newHTTPClient(opts.withHTTPClient, opts.withProviderCA)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if opts.withTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.withTimeout)
		defer cancel()
	}

	ctx = gooidc.ClientContext(ctx, client)
	if !policy.ValidateIssuerName {
		ctx = gooidc.InsecureIssuerURLContext(ctx, issuer)
	}
	provider, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrDiscoveryFailed, err.Error())
	}
	var doc discoveryDocument
	if err := provider.Claims(&doc); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery document: %w: %s", op, ErrDiscoveryFailed, err.Error())
	}
	if err := policy.checkEndpoints(issuer, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrDiscoveryFailed, err.Error())
	}

	keys := &jose.JSONWebKeySet{}
	if doc.JWKSURL != "" {
		if keys, err = fetchKeySet(ctx, client, doc.JWKSURL, opts.withLogger); err != nil {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrDiscoveryFailed, err.Error())
		}
	}
	if policy.RequireKeySet && len(keys.Keys) == 0 {
		return nil, fmt.Errorf("%s: provider has no usable keys: %w", op, ErrDiscoveryFailed)
	}

	opts.withLogger.Debug("provider discovered", "op", op, "issuer", doc.Issuer, "keys", len(keys.Keys))
	return &ProviderInformation{
		IssuerName:         doc.Issuer,
		AuthorizeEndpoint:  doc.AuthURL,
		TokenEndpoint:      doc.TokenURL,
		UserInfoEndpoint:   doc.UserInfoURL,
		EndSessionEndpoint: doc.EndSessionEndpoint,
		KeySet:             keys,
	}, nil
}

// fetchKeySet downloads and decodes a JWKS. Keys which can't be decoded
// (unknown key types, for example) are skipped.
func fetchKeySet(ctx context.Context, client *http.Client, jwksURL string, logger hclog.Logger) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, fmt.Errorf("unable to read key set: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key set request failed: %s", resp.Status)
	}

	if _, dataType, _, err := jsonparser.Get(body, "keys"); err != nil || dataType != jsonparser.Array {
		return nil, fmt.Errorf("key set has no keys array")
	}
	set := &jose.JSONWebKeySet{}
	i := 0
	_, err = jsonparser.ArrayEach(body, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		defer func() { i++ }()
		var key jose.JSONWebKey
		if err := key.UnmarshalJSON(value); err != nil {
			logger.Warn("skipping undecodable key", "index", i, "error", err)
			return
		}
		set.Keys = append(set.Keys, key)
	}, "keys")
	if err != nil {
		return nil, fmt.Errorf("unable to decode key set: %w", err)
	}
	return set, nil
}

func (p DiscoveryPolicy) checkScheme(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q is not a url: %w", raw, err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if !p.RequireHTTPS {
			return nil
		}
		if p.AllowHTTPOnLoopback && isLoopback(u.Hostname()) {
			return nil
		}
		return fmt.Errorf("%q: https is required", raw)
	default:
		return fmt.Errorf("%q: scheme %q is not supported", raw, u.Scheme)
	}
}

func (p DiscoveryPolicy) checkEndpoints(issuer string, doc *discoveryDocument) error {
	iu, err := url.Parse(issuer)
	if err != nil {
		return err
	}
	endpoints := map[string]string{
		"authorization_endpoint": doc.AuthURL,
		"token_endpoint":         doc.TokenURL,
		"userinfo_endpoint":      doc.UserInfoURL,
		"end_session_endpoint":   doc.EndSessionEndpoint,
		"jwks_uri":               doc.JWKSURL,
	}
	var result *multierror.Error
	for _, name := range []string{"authorization_endpoint", "token_endpoint", "userinfo_endpoint", "end_session_endpoint", "jwks_uri"} {
		ep := endpoints[name]
		if ep == "" {
			continue
		}
		if err := p.checkScheme(ep); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if !p.ValidateEndpoints {
			continue
		}
		eu, err := url.Parse(ep)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if eu.Scheme != iu.Scheme || !strings.EqualFold(eu.Host, iu.Host) {
			result = multierror.Append(result, fmt.Errorf("%s %q is not on the issuer's authority", name, ep))
		}
	}
	return result.ErrorOrNil()
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type discoveryOptions struct {
	withDiscoveryPolicy DiscoveryPolicy
	withHTTPClient      *http.Client
	withProviderCA      string
	withTimeout         time.Duration
	withLogger          hclog.Logger
}

func discoveryDefaults() discoveryOptions {
	return discoveryOptions{
		withDiscoveryPolicy: DefaultDiscoveryPolicy(),
		withTimeout:         DefaultDiscoveryTimeout,
		withLogger:          hclog.NewNullLogger(),
	}
}

func getDiscoveryOpts(opt ...Option) discoveryOptions {
	opts := discoveryDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithDiscoveryPolicy provides the policy used by Discover.
func WithDiscoveryPolicy(p DiscoveryPolicy) Option {
	return func(o interface{}) {
		if o, ok := o.(*discoveryOptions); ok {
			o.withDiscoveryPolicy = p
		}
	}
}
