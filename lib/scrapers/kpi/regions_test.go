package kpi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyHeader(t *testing.T) {
	region, known := ClassifyHeader("서울")
	require.True(t, known)
	require.Equal(t, "서울", region)

	region, known = ClassifyHeader(" 부산 ")
	require.True(t, known)
	require.Equal(t, "부산", region)

	region, known = ClassifyHeader("평균단가")
	require.True(t, known)
	require.Equal(t, RegionNationwide, region)

	region, known = ClassifyHeader("수도권")
	require.False(t, known)
	require.Equal(t, RegionNationwide, region)
}

func TestClosestRegionIsDeterministic(t *testing.T) {
	first, sim := ClosestRegion("전라북도")
	require.NotEmpty(t, first)
	require.Greater(t, sim, 0.0)
	for i := 0; i < 10; i++ {
		again, _ := ClosestRegion("전라북도")
		require.Equal(t, first, again)
	}
}
