package crawler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"pricewatch-backend/lib/scrapers/kpi"
	"pricewatch-backend/services/pricedb"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

func testSubs(names ...string) []kpi.CategoryNode {
	middle := &kpi.CategoryNode{
		Name:   "봉강",
		Depth:  kpi.DepthMiddle,
		Parent: &kpi.CategoryNode{Name: "공통자재", Depth: kpi.DepthMajor},
	}
	subs := make([]kpi.CategoryNode, 0, len(names))
	for _, name := range names {
		subs = append(subs, kpi.CategoryNode{Name: name, Depth: kpi.DepthSub, Parent: middle})
	}
	return subs
}

func TestRunUnitsSettlesEveryUnit(t *testing.T) {
	subs := testSubs("철근", "형강", "강판", "선재")
	boom := errors.New("tab crashed")

	work := func(_ context.Context, sub kpi.CategoryNode) SubResult {
		if sub.Name == "강판" {
			return SubResult{Err: boom}
		}
		return SubResult{Records: []pricedb.PriceRecord{{Sub: sub.Name}}}
	}

	var mu sync.Mutex
	got := map[string]SubResult{}
	runUnits(context.Background(), semaphore.NewWeighted(2), subs, work,
		func(sub kpi.CategoryNode, res SubResult) {
			mu.Lock()
			got[sub.Name] = res
			mu.Unlock()
		})

	require.Len(t, got, len(subs))
	require.ErrorIs(t, got["강판"].Err, boom)
	for _, name := range []string{"철근", "형강", "선재"} {
		require.NoError(t, got[name].Err)
		require.Len(t, got[name].Records, 1)
	}
}

func TestRunUnitsBoundsConcurrency(t *testing.T) {
	subs := testSubs("철근", "형강", "강판", "선재", "특수강")
	const limit = 2

	var inflight, peak atomic.Int32
	work := func(_ context.Context, _ kpi.CategoryNode) SubResult {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return SubResult{}
	}

	runUnits(context.Background(), semaphore.NewWeighted(limit), subs, work,
		func(kpi.CategoryNode, SubResult) {})

	require.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestRunUnitsCancelledContext(t *testing.T) {
	subs := testSubs("철근", "형강")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	settled := 0
	runUnits(ctx, semaphore.NewWeighted(1), subs, func(ctx context.Context, _ kpi.CategoryNode) SubResult {
		return SubResult{Err: ctx.Err()}
	}, func(_ kpi.CategoryNode, res SubResult) {
		settled++
		require.Error(t, res.Err)
	})
	require.Equal(t, len(subs), settled)
}

func TestRunUnitsRecoversWorkerPanic(t *testing.T) {
	subs := testSubs("철근", "형강")

	var names []string
	runUnits(context.Background(), semaphore.NewWeighted(2), subs,
		func(_ context.Context, sub kpi.CategoryNode) SubResult {
			if sub.Name == "철근" {
				panic("nil dereference in parser")
			}
			return SubResult{}
		},
		func(sub kpi.CategoryNode, res SubResult) {
			names = append(names, sub.Name)
			if sub.Name == "철근" {
				require.ErrorContains(t, res.Err, "worker panic")
			} else {
				require.NoError(t, res.Err)
			}
		})

	sort.Strings(names)
	require.Equal(t, []string{"철근", "형강"}, names)
}

func TestCategoryPathOf(t *testing.T) {
	subs := testSubs("철근")
	major, middle := categoryPathOf(subs[0])
	require.Equal(t, "공통자재", major)
	require.Equal(t, "봉강", middle)

	orphan := kpi.CategoryNode{Name: "철근"}
	major, middle = categoryPathOf(orphan)
	require.Empty(t, major)
	require.Empty(t, middle)
}
