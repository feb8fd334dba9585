// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "fmt"

// Flow is the OIDC flow a client uses. A ResponseValidator picks the handler
// for its flow once, when it's created.
type Flow int

const (
	// FlowAuthorizationCode returns only a code from the authorization
	// endpoint (response_type=code).
	FlowAuthorizationCode Flow = iota

	// FlowHybrid returns a code and an id_token from the authorization
	// endpoint (response_type=code id_token).
	FlowHybrid
)

// String returns the flow's name.
func (f Flow) String() string {
	switch f {
	case FlowAuthorizationCode:
		return "authorization_code"
	case FlowHybrid:
		return "hybrid"
	default:
		return fmt.Sprintf("unknown(%d)", int(f))
	}
}

// ResponseType returns the response_type parameter for the flow.
func (f Flow) ResponseType() string {
	switch f {
	case FlowHybrid:
		return "code id_token"
	default:
		return "code"
	}
}

// Valid reports whether f is a known flow.
func (f Flow) Valid() bool {
	return f == FlowAuthorizationCode || f == FlowHybrid
}

// ParseFlow parses a flow name as returned by Flow.String.
func ParseFlow(s string) (Flow, error) {
	const op = "oidc.ParseFlow"
	switch s {
	case "authorization_code", "code":
		return FlowAuthorizationCode, nil
	case "hybrid":
		return FlowHybrid, nil
	default:
		return 0, fmt.Errorf("%s: unknown flow %q: %w", op, s, ErrInvalidParameter)
	}
}
