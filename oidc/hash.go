// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/jwt"
)

// ComputeHash returns the c_hash or at_hash value for value: the left half of
// its digest, base64url encoded without padding. The digest is the hash used
// by alg (SHA-256 for *256, SHA-384 for *384, SHA-512 for *512 and EdDSA).
func ComputeHash(value string, alg jwt.Alg) (string, error) {
	const op = "oidc.ComputeHash"
	h, err := alg.NewHash()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	_, _ = h.Write([]byte(value))
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}

// ValidateHash reports whether expectedHashClaim is the hash of value for
// alg. The comparison is constant time and doesn't leak the length of
// either side. An unsupported alg or an empty claim never validates.
func ValidateHash(value, expectedHashClaim string, alg jwt.Alg) bool {
	if expectedHashClaim == "" {
		return false
	}
	got, err := ComputeHash(value, alg)
	if err != nil {
		return false
	}
	return strutils.ConstantTimeEqual(got, expectedHashClaim)
}
