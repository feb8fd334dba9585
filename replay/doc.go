// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package replay provides jwt.ReplayCache implementations: MemoryCache for a
// single process and SQLiteCache for caches which must survive a restart or
// be shared by processes on one host.
package replay
