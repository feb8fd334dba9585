// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package replay

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

// DefaultPruneInterval is how often expired entries are removed.
const DefaultPruneInterval = time.Minute

type cacheOptions struct {
	withNow           func() time.Time
	withPruneInterval time.Duration
	withLogger        hclog.Logger
}

func cacheDefaults() cacheOptions {
	return cacheOptions{
		withNow:           time.Now,
		withPruneInterval: DefaultPruneInterval,
		withLogger:        hclog.NewNullLogger(),
	}
}

func getCacheOpts(opt ...Option) cacheOptions {
	opts := cacheDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithNow provides an optional func for determining what the current time it
// is.
func WithNow(now func() time.Time) Option {
	return func(o interface{}) {
		if o, ok := o.(*cacheOptions); ok && now != nil {
			o.withNow = now
		}
	}
}

// WithPruneInterval sets how often expired entries are removed. A value <= 0
// removes them on every add.
func WithPruneInterval(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*cacheOptions); ok {
			o.withPruneInterval = d
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*cacheOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
