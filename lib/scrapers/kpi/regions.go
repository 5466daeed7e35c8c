package kpi

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// RegionNationwide is the sentinel region for price columns that carry
// no regional breakdown.
const RegionNationwide = "전국"

// regionNames is the enumerated set of region headers the source
// catalog is known to render. The list is not verified to be
// exhaustive; headers outside it are flagged by the parser instead of
// being silently bucketed.
var regionNames = map[string]struct{}{
	"서울": {}, "부산": {}, "대구": {}, "인천": {},
	"광주": {}, "대전": {}, "울산": {}, "세종": {},
	"경기": {}, "강원": {}, "충북": {}, "충남": {},
	"전북": {}, "전남": {}, "경북": {}, "경남": {},
	"제주": {}, "전국": {},
}

// priceIndicators mark columns that are a plain price series rather
// than a region.
var priceIndicators = []string{"가격", "단가", "물가"}

// ClassifyHeader maps a table column header to a region. known is false
// only for headers that are neither a listed region nor a price
// indicator; those default to nationwide but should be flagged by the
// caller.
func ClassifyHeader(header string) (region string, known bool) {
	header = strings.TrimSpace(header)
	if _, ok := regionNames[header]; ok {
		return header, true
	}
	for _, indicator := range priceIndicators {
		if strings.Contains(header, indicator) {
			return RegionNationwide, true
		}
	}
	return RegionNationwide, false
}

// ClosestRegion suggests the best-known region name for an unmatched
// header, for diagnostics only.
func ClosestRegion(header string) (string, float64) {
	header = strings.TrimSpace(header)
	var best string
	var bestSim float64
	for name := range regionNames {
		sim := matchr.JaroWinkler(header, name, false)
		if sim > bestSim || (sim == bestSim && (best == "" || name < best)) {
			best = name
			bestSim = sim
		}
	}
	return best, bestSim
}
