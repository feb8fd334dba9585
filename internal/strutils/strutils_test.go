// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package strutils

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrutil_ListContains(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	haystack := []string{
		"dev",
		"ops",
		"prod",
		"root",
	}
	require.False(StrListContains(haystack, "tubez"))
	require.True(StrListContains(haystack, "root"))
	require.False(StrListContains(haystack, "ROOT"))
}

func TestStrUtil_RemoveDuplicatesStable(t *testing.T) {
	type tCase struct {
		input           []string
		expect          []string
		caseInsensitive bool
	}

	tCases := []tCase{
		{[]string{}, []string{}, false},
		{[]string{}, []string{}, true},
		{[]string{"a", "b", "a"}, []string{"a", "b"}, false},
		{[]string{"A", "b", "a"}, []string{"A", "b", "a"}, false},
		{[]string{"A", "b", "a"}, []string{"A", "b"}, true},
		{[]string{" ", "d", "c", "d"}, []string{"d", "c"}, false},
		{[]string{"Z ", " z", " z ", "y"}, []string{"Z ", "y"}, true},
		{[]string{"Z ", " z", " z ", "y"}, []string{"Z ", " z", "y"}, false},
	}

	for _, tc := range tCases {
		actual := RemoveDuplicatesStable(tc.input, tc.caseInsensitive)

		if !reflect.DeepEqual(actual, tc.expect) {
			t.Fatalf("Bad testcase %#v, expected %v, got %v", tc, tc.expect, actual)
		}
	}
}

func TestConstantTimeEqual(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "equal", a: "xyz", b: "xyz", want: true},
		{name: "both-empty", a: "", b: "", want: true},
		{name: "different", a: "xyz", b: "xyZ", want: false},
		{name: "prefix", a: "xyz", b: "xy", want: false},
		{name: "one-empty", a: "", b: "xyz", want: false},
		{name: "case", a: "ABC", b: "abc", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := assert.New(t)
			assert.Equal(tt.want, ConstantTimeEqual(tt.a, tt.b))
		})
	}
}
