// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package replay

import "errors"

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrClosed           = errors.New("replay cache is closed")
)
