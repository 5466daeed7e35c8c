package pricecache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatternScopes(t *testing.T) {
	require.Equal(t, "price:*", Pattern("price"))
	require.Equal(t, "price:공통자재:*", Pattern("price", "공통자재"))
	require.Equal(t, "price:공통자재:봉강:*", Pattern("price", "공통자재", "봉강"))
}

func TestPatternNarrowsMonotonically(t *testing.T) {
	all := Pattern("price")
	major := Pattern("price", "공통자재")
	middle := Pattern("price", "공통자재", "봉강")

	// each narrower scope is a refinement of the wider one
	require.Contains(t, major, all[:len(all)-1])
	require.Contains(t, middle, major[:len(major)-1])
}
