// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/jwt"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

// WithNow provides an optional func for determining what the current time it
// is for: AuthorizeState, IdentityTokenValidator, ResponseValidator, Client
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if now == nil {
			return
		}
		switch v := o.(type) {
		case *stOptions:
			v.withNow = now
		case *validatorOptions:
			v.withNow = now
		case *clientOptions:
			v.withNow = now
		}
	}
}

// WithLogger provides an optional logger for: IdentityTokenValidator,
// ResponseValidator, OAuth2TokenClient, Discover, Client
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if isNil(l) {
			return
		}
		switch v := o.(type) {
		case *validatorOptions:
			v.withLogger = l
		case *tokenClientOptions:
			v.withLogger = l
		case *discoveryOptions:
			v.withLogger = l
		case *clientOptions:
			v.withLogger = l
		}
	}
}

// WithReplayCache enables replay detection for: IdentityTokenValidator,
// ResponseValidator, Client
func WithReplayCache(c jwt.ReplayCache) Option {
	return func(o interface{}) {
		if isNil(c) {
			return
		}
		switch v := o.(type) {
		case *validatorOptions:
			v.withReplayCache = c
		case *clientOptions:
			v.withReplayCache = c
		}
	}
}

// WithPrimitive provides the signature primitive for: IdentityTokenValidator,
// ResponseValidator, Client
func WithPrimitive(p jwt.Primitive) Option {
	return func(o interface{}) {
		if isNil(p) {
			return
		}
		switch v := o.(type) {
		case *validatorOptions:
			v.withPrimitive = p
		case *clientOptions:
			v.withPrimitive = p
		}
	}
}

// WithHTTPClient provides the http client for: OAuth2TokenClient, Discover.
// It takes precedence over WithProviderCA.
func WithHTTPClient(c *http.Client) Option {
	return func(o interface{}) {
		if c == nil {
			return
		}
		switch v := o.(type) {
		case *tokenClientOptions:
			v.withHTTPClient = c
		case *discoveryOptions:
			v.withHTTPClient = c
		}
	}
}

// WithProviderCA provides an optional PEM-encoded CA certificate used to
// trust the provider for: OAuth2TokenClient, Discover, Config
func WithProviderCA(caPEM string) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenClientOptions:
			v.withProviderCA = caPEM
		case *discoveryOptions:
			v.withProviderCA = caPEM
		case *configOptions:
			v.withProviderCA = caPEM
		}
	}
}

// WithTimeout bounds each outbound request for: OAuth2TokenClient, Discover
func WithTimeout(d time.Duration) Option {
	return func(o interface{}) {
		switch v := o.(type) {
		case *tokenClientOptions:
			v.withTimeout = d
		case *discoveryOptions:
			v.withTimeout = d
		}
	}
}

type validatorOptions struct {
	withLogger      hclog.Logger
	withPrimitive   jwt.Primitive
	withReplayCache jwt.ReplayCache
	withNow         func() time.Time
}

func validatorDefaults() validatorOptions {
	return validatorOptions{
		withLogger:    hclog.NewNullLogger(),
		withPrimitive: jwt.DefaultPrimitive(),
		withNow:       time.Now,
	}
}

func getValidatorOpts(opt ...Option) validatorOptions {
	opts := validatorDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
