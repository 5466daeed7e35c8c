package specmatch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRebarUnitAssignment(t *testing.T) {
	cfg := DefaultConfig()
	products := []ProductRow{
		{Name: "고장력철근", SpecificationText: "D10, 0.560", Unit: "원/톤"},
	}
	specs := []SpecificationOption{
		{
			Value:               "1",
			ProductName:         "고장력철근",
			SpecificationDetail: "D10, 0.560",
			FullText:            "고장력철근 - D10, 0.560",
		},
	}

	got := Match(cfg, products, specs)
	require.Len(t, got, 1)
	require.True(t, got[0].Matched)
	require.Equal(t, "원/톤", got[0].Unit)
	require.Greater(t, got[0].Confidence, cfg.Threshold)
	require.LessOrEqual(t, got[0].Confidence, 1.0)
}

func TestEmptyProductsYieldsNullUnits(t *testing.T) {
	cfg := DefaultConfig()
	specs := []SpecificationOption{
		{ProductName: "철근", SpecificationDetail: "D13", FullText: "철근 - D13"},
		{ProductName: "시멘트", SpecificationDetail: "1종", FullText: "시멘트 - 1종"},
	}

	got := Match(cfg, nil, specs)
	require.Len(t, got, 2)
	for _, m := range got {
		require.False(t, m.Matched)
		require.Empty(t, m.Unit)
		require.Zero(t, m.Confidence)
	}
}

func TestDeterminism(t *testing.T) {
	cfg := DefaultConfig()
	products := []ProductRow{
		{Name: "이형철근", SpecificationText: "D13, 0.995", Unit: "원/톤"},
		{Name: "고장력철근", SpecificationText: "D10, 0.560", Unit: "원/kg"},
		{Name: "원형철근", SpecificationText: "D10", Unit: "원/본"},
	}
	specs := []SpecificationOption{
		{ProductName: "고장력철근", SpecificationDetail: "D10, 0.560", FullText: "고장력철근 - D10, 0.560"},
		{ProductName: "원형철근", SpecificationDetail: "D10", FullText: "원형철근 - D10"},
	}

	first := Match(cfg, products, specs)
	for i := 0; i < 10; i++ {
		again := Match(cfg, products, specs)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatal(diff)
		}
	}
}

func TestTieKeepsFirstRow(t *testing.T) {
	cfg := DefaultConfig()
	// two identical rows with different units: the first must win
	products := []ProductRow{
		{Name: "철근", SpecificationText: "D10", Unit: "원/톤"},
		{Name: "철근", SpecificationText: "D10", Unit: "원/kg"},
	}
	specs := []SpecificationOption{
		{ProductName: "철근", SpecificationDetail: "D10", FullText: "철근 - D10"},
	}

	got := Match(cfg, products, specs)
	require.Len(t, got, 1)
	require.True(t, got[0].Matched)
	require.Equal(t, "원/톤", got[0].Unit)
}

func TestBelowThresholdLeavesUnitNull(t *testing.T) {
	cfg := DefaultConfig()
	products := []ProductRow{
		{Name: "시멘트", SpecificationText: "보통 포틀랜드 1종", Unit: "원/포"},
	}
	specs := []SpecificationOption{
		{ProductName: "고장력철근", SpecificationDetail: "D25", FullText: "고장력철근 - D25"},
	}

	got := Match(cfg, products, specs)
	require.Len(t, got, 1)
	require.False(t, got[0].Matched)
	require.Empty(t, got[0].Unit)
	require.LessOrEqual(t, got[0].Confidence, cfg.Threshold)
}

func TestDomainTokenBonus(t *testing.T) {
	cfg := DefaultConfig()
	opt := SpecificationOption{
		ProductName:         "철근",
		SpecificationDetail: "D10",
		FullText:            "철근 - D10",
	}
	with := ProductRow{Name: "철근", SpecificationText: "D10"}
	without := ProductRow{Name: "철근", SpecificationText: "기타"}

	require.Greater(t, Score(cfg, opt, with), Score(cfg, opt, without))
}

func TestScoreCappedAtOne(t *testing.T) {
	cfg := DefaultConfig()
	opt := SpecificationOption{
		ProductName:         "고장력철근",
		SpecificationDetail: "D10 D13 D16 D19",
		FullText:            "고장력철근 - D10 D13 D16 D19",
	}
	row := ProductRow{Name: "고장력철근", SpecificationText: "D10 D13 D16 D19", Unit: "원/톤"}

	// weighted sum alone is 1.3, plus four token bonuses
	require.Equal(t, 1.0, Score(cfg, opt, row))
}

func TestScoreMonotonicUnderSharedTokens(t *testing.T) {
	cfg := DefaultConfig()
	base := Score(cfg,
		SpecificationOption{ProductName: "철근", SpecificationDetail: "봉강", FullText: "철근 봉강"},
		ProductRow{Name: "철근", SpecificationText: "형강"},
	)
	grown := Score(cfg,
		SpecificationOption{ProductName: "철근 특수", SpecificationDetail: "봉강 특수", FullText: "철근 봉강 특수"},
		ProductRow{Name: "철근 특수", SpecificationText: "형강 특수"},
	)
	require.GreaterOrEqual(t, grown, base)
}
