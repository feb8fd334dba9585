// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// DefaultIDLength is the number of random bytes in an id generated by NewID.
const DefaultIDLength = 20

// NewID generates a random, url safe ID with an optional prefix. The ID
// generated is suitable for a state or nonce.
func NewID(optionalPrefix string) (string, error) {
	const op = "oidc.NewID"
	id, err := randomString(DefaultIDLength)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", op, ErrIdGeneratorFailed, err.Error())
	}
	if optionalPrefix != "" {
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	}
	return id, nil
}

func randomString(n int) (string, error) {
	b, err := uuid.GenerateRandomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
