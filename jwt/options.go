// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"time"

	"github.com/hashicorp/go-hclog"
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

// DefaultClockSkew is the skew ValidateLifetime applies when WithClockSkew
// isn't used.
const DefaultClockSkew = 5 * time.Minute

type lifetimeOptions struct {
	withClockSkew         time.Duration
	withNow               func() time.Time
	withRequireExpiration bool
}

func lifetimeDefaults() lifetimeOptions {
	return lifetimeOptions{
		withClockSkew:         DefaultClockSkew,
		withNow:               time.Now,
		withRequireExpiration: true,
	}
}

func getLifetimeOpts(opt ...Option) lifetimeOptions {
	opts := lifetimeDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

type verifierOptions struct {
	withPrimitive Primitive
	withLogger    hclog.Logger
}

func verifierDefaults() verifierOptions {
	return verifierOptions{
		withPrimitive: DefaultPrimitive(),
		withLogger:    hclog.NewNullLogger(),
	}
}

func getVerifierOpts(opt ...Option) verifierOptions {
	opts := verifierDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithClockSkew provides the symmetric tolerance applied to both the
// not-before and the expiry checks. ValidateReplay extends how long it
// remembers an id by the same amount.
func WithClockSkew(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*lifetimeOptions); ok {
			o.withClockSkew = d
		}
	}
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*lifetimeOptions); ok && now != nil {
			o.withNow = now
		}
	}
}

// WithRequireExpiration controls whether a missing expiry is a failure.
// Expiration is required by default.
func WithRequireExpiration(required bool) Option {
	return func(o interface{}) {
		if o, ok := o.(*lifetimeOptions); ok {
			o.withRequireExpiration = required
		}
	}
}

// WithPrimitive provides the signature primitive a SignatureVerifier
// delegates to.
func WithPrimitive(p Primitive) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok && p != nil {
			o.withPrimitive = p
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*verifierOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
