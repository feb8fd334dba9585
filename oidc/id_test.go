// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	t.Parallel()
	idLen := base64.RawURLEncoding.EncodedLen(DefaultIDLength)
	tests := []struct {
		name       string
		prefix     string
		wantPrefix string
		wantLen    int
	}{
		{
			name:    "no-prefix",
			wantLen: idLen,
		},
		{
			name:       "with-prefix",
			prefix:     "alice",
			wantPrefix: "alice_",
			wantLen:    idLen + len("alice_"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			got, err := NewID(tt.prefix)
			require.NoError(err)
			if tt.wantPrefix != "" {
				assert.Truef(strings.HasPrefix(got, tt.wantPrefix), "NewID() = %v and wanted prefix %s", got, tt.wantPrefix)
			}
			assert.Equalf(tt.wantLen, len(got), "NewID() = %v, with len of %d and wanted len of %v", got, len(got), tt.wantLen)

			again, err := NewID(tt.prefix)
			require.NoError(err)
			assert.NotEqual(got, again)
		})
	}
}
