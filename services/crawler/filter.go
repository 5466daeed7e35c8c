package crawler

import (
	"strings"

	"pricewatch-backend/lib/configutil"
)

// commentMarker excludes an entry, and its whole subtree, from the
// crawl without deleting it from the file.
const commentMarker = "#"

// InclusionFilter declares exactly which part of the catalog tree a run
// may touch: major → middle → sub-category → allowed specification
// names. A node absent from the filter is skipped, never defaulted to
// "include". Loaded once at startup, read-only afterward.
type InclusionFilter struct {
	majors map[string]map[string]map[string][]string
}

// LoadFilter reads the nested filter document. A missing or empty file
// yields an empty filter (zero crawl targets); callers should warn, not
// fail.
func LoadFilter(path string) (InclusionFilter, error) {
	raw, err := configutil.ReadConfig[map[string]map[string]map[string][]string](path)
	if err != nil {
		return InclusionFilter{majors: map[string]map[string]map[string][]string{}}, err
	}
	return newFilter(raw), nil
}

func newFilter(raw map[string]map[string]map[string][]string) InclusionFilter {
	majors := map[string]map[string]map[string][]string{}
	for major, middles := range raw {
		if strings.HasPrefix(major, commentMarker) {
			continue
		}
		prunedMiddles := map[string]map[string][]string{}
		for middle, subs := range middles {
			if strings.HasPrefix(middle, commentMarker) {
				continue
			}
			prunedSubs := map[string][]string{}
			for sub, specs := range subs {
				if strings.HasPrefix(sub, commentMarker) {
					continue
				}
				var prunedSpecs []string
				for _, spec := range specs {
					if strings.HasPrefix(spec, commentMarker) {
						continue
					}
					prunedSpecs = append(prunedSpecs, spec)
				}
				prunedSubs[sub] = prunedSpecs
			}
			prunedMiddles[middle] = prunedSubs
		}
		majors[major] = prunedMiddles
	}
	return InclusionFilter{majors: majors}
}

// Empty reports whether the filter declares no crawl targets at all.
func (f InclusionFilter) Empty() bool {
	return len(f.majors) == 0
}

func (f InclusionFilter) HasMajor(major string) bool {
	_, ok := f.majors[major]
	return ok
}

func (f InclusionFilter) HasMiddle(major, middle string) bool {
	middles, ok := f.majors[major]
	if !ok {
		return false
	}
	_, ok = middles[middle]
	return ok
}

func (f InclusionFilter) HasSub(major, middle, sub string) bool {
	middles, ok := f.majors[major]
	if !ok {
		return false
	}
	subs, ok := middles[middle]
	if !ok {
		return false
	}
	_, ok = subs[sub]
	return ok
}

// AllowedSpecs returns the allowed specification names under a
// sub-category. An empty list means every specification is allowed.
func (f InclusionFilter) AllowedSpecs(major, middle, sub string) []string {
	middles, ok := f.majors[major]
	if !ok {
		return nil
	}
	subs, ok := middles[middle]
	if !ok {
		return nil
	}
	return subs[sub]
}

// AllowsSpec checks one specification's product name against the
// sub-category's allowed list.
func (f InclusionFilter) AllowsSpec(major, middle, sub, name string) bool {
	allowed := f.AllowedSpecs(major, middle, sub)
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == name {
			return true
		}
	}
	return false
}
