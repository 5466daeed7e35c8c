package crawler

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"pricewatch-backend/lib/specmatch"
	"pricewatch-backend/services/pricedb"

	"github.com/stretchr/testify/require"
)

func TestRecordRejectsMalformedPath(t *testing.T) {
	agg := NewAggregator()
	require.Error(t, agg.Record("", "봉강", "철근", SubResult{}))
	require.Error(t, agg.Record("공통자재", "", "철근", SubResult{}))
	require.Error(t, agg.Record("공통자재", "봉강", "", SubResult{}))
	require.Empty(t, agg.Snapshot(StatusInProgress).Categories)
}

func TestFailedSiblingDoesNotLoseOthers(t *testing.T) {
	agg := NewAggregator()

	subs := []string{"철근", "형강", "강판", "선재"}
	failing := "강판"

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub string) {
			defer wg.Done()
			res := SubResult{
				Records: []pricedb.PriceRecord{{
					Major: "공통자재", Middle: "봉강", Sub: sub,
					Specification: sub, Region: "서울",
					Date: "2024-01", Price: 1000,
				}},
			}
			if sub == failing {
				res = SubResult{Err: errors.New("tab crashed")}
			}
			require.NoError(t, agg.Record("공통자재", "봉강", sub, res))
		}(sub)
	}
	wg.Wait()

	snap := agg.Snapshot(StatusComplete)
	got := snap.Categories["공통자재"]["봉강"]
	require.Len(t, got, len(subs))
	for _, sub := range subs {
		if sub == failing {
			require.Equal(t, "tab crashed", got[sub].Error)
			require.Zero(t, got[sub].RecordCount)
			continue
		}
		require.Empty(t, got[sub].Error)
		require.Equal(t, 1, got[sub].RecordCount)
	}
	require.Equal(t, StatusComplete, snap.ExtractionInfo.Status)
	require.Equal(t, 1, snap.ExtractionInfo.MajorCount)
	require.Equal(t, 1, snap.ExtractionInfo.MiddleCount)
	require.Equal(t, len(subs), snap.ExtractionInfo.SubCount)
}

func TestSnapshotCounters(t *testing.T) {
	agg := NewAggregator()

	matched := specmatch.MatchedSpecification{
		Specification: "고장력철근", ProductName: "고장력철근",
		Unit: "원/톤", Matched: true, Confidence: 0.8,
	}
	unmatched := specmatch.MatchedSpecification{
		Specification: "이형철근", Confidence: 0.1,
	}

	require.NoError(t, agg.Record("공통자재", "봉강", "철근", SubResult{
		Matched: []specmatch.MatchedSpecification{matched, unmatched},
	}))
	require.NoError(t, agg.Record("공통자재", "봉강", "형강", SubResult{
		Matched: []specmatch.MatchedSpecification{matched},
	}))

	info := agg.Snapshot(StatusInProgress).ExtractionInfo
	require.Equal(t, 3, info.TotalSpecifications)
	require.Equal(t, 2, info.MatchedUnits)
	require.InDelta(t, 2.0/3.0, info.MatchRate, 1e-9)

	specs := agg.Snapshot(StatusInProgress).Categories["공통자재"]["봉강"]["철근"].Specifications
	require.Len(t, specs, 2)
	require.NotNil(t, specs[0].Unit)
	require.Equal(t, "원/톤", *specs[0].Unit)
	require.Nil(t, specs[1].Unit)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record("공통자재", "봉강", "철근", SubResult{}))

	snap := agg.Snapshot(StatusInProgress)
	snap.Categories["공통자재"]["봉강"]["철근"] = subSnapshot{Error: "mutated"}
	delete(snap.Categories["공통자재"], "봉강")

	got := agg.Snapshot(StatusInProgress)
	require.Contains(t, got.Categories["공통자재"], "봉강")
	require.Empty(t, got.Categories["공통자재"]["봉강"]["철근"].Error)
}

func TestMatchRateZeroWhenNoSpecifications(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record("공통자재", "봉강", "철근", SubResult{
		Err: fmt.Errorf("no options"),
	}))
	require.Zero(t, agg.Snapshot(StatusComplete).ExtractionInfo.MatchRate)
}
