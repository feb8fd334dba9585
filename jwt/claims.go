// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
)

// Registered and OIDC claim names used by this module.
const (
	ClaimIssuer                = "iss"
	ClaimSubject               = "sub"
	ClaimAudience              = "aud"
	ClaimExpiration            = "exp"
	ClaimNotBefore             = "nbf"
	ClaimIssuedAt              = "iat"
	ClaimJWTID                 = "jti"
	ClaimNonce                 = "nonce"
	ClaimAuthorizedParty       = "azp"
	ClaimAuthorizationCodeHash = "c_hash"
	ClaimAccessTokenHash       = "at_hash"
)

// ValueType describes the JSON type a claim value was decoded from.
type ValueType string

const (
	ValueTypeString  ValueType = "string"
	ValueTypeNumber  ValueType = "number"
	ValueTypeBoolean ValueType = "boolean"
	// ValueTypeJSON is used for objects and for arrays nested within arrays;
	// the value holds the raw JSON text.
	ValueTypeJSON ValueType = "json"
)

// Claim is a single (type, value) assertion.
type Claim struct {
	Type      string
	Value     string
	ValueType ValueType
}

// Equal reports whether the claims have the same type, value and value type.
func (c Claim) Equal(o Claim) bool {
	return c.Type == o.Type && c.Value == o.Value && c.ValueType == o.ValueType
}

// ClaimSet is an ordered collection of claims. It is not a map: a claim type
// may appear more than once (a JSON array of roles becomes one claim per
// role) and the order of the token payload is preserved.
type ClaimSet struct {
	claims []Claim
	// types decoded from a JSON array
	arrays map[string]bool
}

// NewClaimSet returns a ClaimSet holding claims in the order given.
func NewClaimSet(claims ...Claim) *ClaimSet {
	c := make([]Claim, len(claims))
	copy(c, claims)
	return &ClaimSet{claims: c}
}

// ParseClaims decodes a JSON object payload into a ClaimSet. Top level
// arrays are flattened into repeated claims and null members are dropped.
func ParseClaims(payload []byte) (*ClaimSet, error) {
	const op = "jwt.ParseClaims"
	if _, dataType, _, err := jsonparser.Get(payload); err != nil || dataType != jsonparser.Object {
		return nil, fmt.Errorf("%s: payload is not a JSON object: %w", op, ErrMalformedClaims)
	}
	cs := &ClaimSet{}
	err := jsonparser.ObjectEach(payload, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		typ, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		if dataType != jsonparser.Array {
			return cs.add(typ, value, dataType)
		}
		cs.markArray(typ)
		var elemErr error
		_, err = jsonparser.ArrayEach(value, func(elem []byte, elemType jsonparser.ValueType, _ int, err error) {
			if elemErr != nil {
				return
			}
			if err != nil {
				elemErr = err
				return
			}
			elemErr = cs.add(typ, elem, elemType)
		})
		if err != nil {
			return err
		}
		return elemErr
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrMalformedClaims, err.Error())
	}
	return cs, nil
}

func (c *ClaimSet) add(typ string, value []byte, dataType jsonparser.ValueType) error {
	claim := Claim{Type: typ}
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return err
		}
		claim.Value, claim.ValueType = s, ValueTypeString
	case jsonparser.Number:
		claim.Value, claim.ValueType = string(value), ValueTypeNumber
	case jsonparser.Boolean:
		claim.Value, claim.ValueType = string(value), ValueTypeBoolean
	case jsonparser.Object, jsonparser.Array:
		claim.Value, claim.ValueType = string(value), ValueTypeJSON
	case jsonparser.Null:
		return nil
	default:
		return fmt.Errorf("unsupported value for claim %q", typ)
	}
	c.claims = append(c.claims, claim)
	return nil
}

// Len returns the number of claims in the set.
func (c *ClaimSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.claims)
}

// Claims returns a copy of all claims in order.
func (c *ClaimSet) Claims() []Claim {
	if c == nil {
		return nil
	}
	out := make([]Claim, len(c.claims))
	copy(out, c.claims)
	return out
}

// FindFirst returns the first claim of the given type.
func (c *ClaimSet) FindFirst(typ string) (Claim, bool) {
	if c == nil {
		return Claim{}, false
	}
	for _, cl := range c.claims {
		if cl.Type == typ {
			return cl, true
		}
	}
	return Claim{}, false
}

// FindAll returns every claim of the given type in order.
func (c *ClaimSet) FindAll(typ string) []Claim {
	if c == nil {
		return nil
	}
	var out []Claim
	for _, cl := range c.claims {
		if cl.Type == typ {
			out = append(out, cl)
		}
	}
	return out
}

// Value returns the value of the first claim of the given type, or "" when
// there is none.
func (c *ClaimSet) Value(typ string) string {
	cl, _ := c.FindFirst(typ)
	return cl.Value
}

// Values returns the values of every claim of the given type.
func (c *ClaimSet) Values(typ string) []string {
	var out []string
	for _, cl := range c.FindAll(typ) {
		out = append(out, cl.Value)
	}
	return out
}

// Has reports whether a claim of the given type is present.
func (c *ClaimSet) Has(typ string) bool {
	_, ok := c.FindFirst(typ)
	return ok
}

// Merge returns a new set holding c's claims followed by the claims of
// other whose type c doesn't have.
func (c *ClaimSet) Merge(other *ClaimSet) *ClaimSet {
	out := c.copy(nil)
	if other == nil {
		return out
	}
	for _, cl := range other.claims {
		if c.Has(cl.Type) {
			continue
		}
		out.claims = append(out.claims, cl)
		if other.arrays[cl.Type] {
			out.markArray(cl.Type)
		}
	}
	return out
}

// Without returns a new set without the claims of the given types.
func (c *ClaimSet) Without(types ...string) *ClaimSet {
	drop := make(map[string]bool, len(types))
	for _, t := range types {
		drop[t] = true
	}
	return c.copy(func(cl Claim) bool { return !drop[cl.Type] })
}

// copy returns the claims of c for which keep returns true, or all of them
// when keep is nil.
func (c *ClaimSet) copy(keep func(Claim) bool) *ClaimSet {
	out := &ClaimSet{}
	if c == nil {
		return out
	}
	for _, cl := range c.claims {
		if keep != nil && !keep(cl) {
			continue
		}
		out.claims = append(out.claims, cl)
		if c.arrays[cl.Type] {
			out.markArray(cl.Type)
		}
	}
	return out
}

func (c *ClaimSet) markArray(typ string) {
	if c.arrays == nil {
		c.arrays = map[string]bool{}
	}
	c.arrays[typ] = true
}

// NumericDate bounds accepted by Time: 0001-01-01 through 9999-12-31 UTC.
const (
	minNumericDate = -62135596800
	maxNumericDate = 253402300799
)

// String returns the single string value of the given claim type. ok is
// false when the claim is absent; an error is returned when it was an array,
// appears more than once or isn't a JSON string.
func (c *ClaimSet) String(typ string) (s string, ok bool, err error) {
	const op = "ClaimSet.String"
	cl, found, err := c.single(typ)
	switch {
	case err != nil:
		return "", true, fmt.Errorf("%s: %w", op, err)
	case !found:
		return "", false, nil
	case cl.ValueType != ValueTypeString:
		return "", true, fmt.Errorf("%s: %q is not a string: %w", op, typ, ErrMalformedClaims)
	}
	return cl.Value, true, nil
}

// Time returns the claim of the given type as a NumericDate (seconds since
// the epoch, fractions allowed). ok is false when the claim is absent; an
// error is returned when it is present but repeated, not a finite number or
// outside years 1 through 9999.
func (c *ClaimSet) Time(typ string) (t time.Time, ok bool, err error) {
	const op = "ClaimSet.Time"
	cl, found, err := c.single(typ)
	switch {
	case err != nil:
		return time.Time{}, true, fmt.Errorf("%s: %w", op, err)
	case !found:
		return time.Time{}, false, nil
	case cl.ValueType != ValueTypeNumber:
		return time.Time{}, true, fmt.Errorf("%s: %q is not a number: %w", op, typ, ErrMalformedClaims)
	}
	f, err := strconv.ParseFloat(cl.Value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, true, fmt.Errorf("%s: %q is not a valid numeric date: %w", op, typ, ErrMalformedClaims)
	}
	if f < minNumericDate || f > maxNumericDate {
		return time.Time{}, true, fmt.Errorf("%s: %q is out of range: %w", op, typ, ErrMalformedClaims)
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true, nil
}

func (c *ClaimSet) single(typ string) (Claim, bool, error) {
	all := c.FindAll(typ)
	switch {
	case c != nil && c.arrays[typ]:
		return Claim{}, true, fmt.Errorf("%q is an array: %w", typ, ErrMalformedClaims)
	case len(all) == 0:
		return Claim{}, false, nil
	case len(all) == 1:
		return all[0], true, nil
	default:
		return Claim{}, true, fmt.Errorf("%q appears %d times: %w", typ, len(all), ErrMalformedClaims)
	}
}
