package crawler

import (
	"fmt"
	"sync"
	"time"

	"pricewatch-backend/lib/specmatch"
	"pricewatch-backend/services/pricedb"
)

// SubResult is the outcome of one sub-category unit of work. A failed
// unit carries its error and contributes an empty result; it never
// aborts siblings.
type SubResult struct {
	Matched []specmatch.MatchedSpecification
	Records []pricedb.PriceRecord
	Err     error
}

type subSnapshot struct {
	Specifications []specSnapshot `json:"specifications"`
	RecordCount    int            `json:"record_count"`
	Error          string         `json:"error,omitempty"`
}

type specSnapshot struct {
	Specification     string  `json:"specification"`
	ProductName       string  `json:"product_name"`
	FullSpecification string  `json:"full_specification"`
	Unit              *string `json:"unit"`
	Confidence        float64 `json:"confidence"`
}

// Aggregator is the single owner of the accumulated result tree.
// Concurrent sub-category workers report through Record; nothing else
// mutates the tree, so one lock suffices.
type Aggregator struct {
	mu sync.Mutex

	startedAt time.Time
	majors    map[string]map[string]map[string]subSnapshot

	middleSeen map[string]map[string]struct{}
	subCount   int
	totalSpecs int
	matched    int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		startedAt:  time.Now(),
		majors:     map[string]map[string]map[string]subSnapshot{},
		middleSeen: map[string]map[string]struct{}{},
	}
}

// Record stores one settled sub-category result under its category
// path. Malformed paths are rejected at the boundary instead of
// producing dangling tree entries.
func (a *Aggregator) Record(major, middle, sub string, res SubResult) error {
	if major == "" || middle == "" || sub == "" {
		return fmt.Errorf("malformed category path %q/%q/%q", major, middle, sub)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	middles, ok := a.majors[major]
	if !ok {
		middles = map[string]map[string]subSnapshot{}
		a.majors[major] = middles
		a.middleSeen[major] = map[string]struct{}{}
	}
	subs, ok := middles[middle]
	if !ok {
		subs = map[string]subSnapshot{}
		middles[middle] = subs
		a.middleSeen[major][middle] = struct{}{}
	}

	snapshot := subSnapshot{RecordCount: len(res.Records)}
	if res.Err != nil {
		snapshot.Error = res.Err.Error()
	}
	for _, m := range res.Matched {
		spec := specSnapshot{
			Specification:     m.Specification,
			ProductName:       m.ProductName,
			FullSpecification: m.FullSpecification,
			Confidence:        m.Confidence,
		}
		if m.Matched {
			unit := m.Unit
			spec.Unit = &unit
			a.matched++
		}
		snapshot.Specifications = append(snapshot.Specifications, spec)
		a.totalSpecs++
	}
	subs[sub] = snapshot
	a.subCount++

	return nil
}

type extractionInfo struct {
	Timestamp           string  `json:"timestamp"`
	Status              string  `json:"status"`
	MajorCount          int     `json:"major_count"`
	MiddleCount         int     `json:"middle_count"`
	SubCount            int     `json:"sub_count"`
	TotalSpecifications int     `json:"total_specifications"`
	MatchedUnits        int     `json:"matched_units"`
	MatchRate           float64 `json:"match_rate"`
}

// Progress is the serialized checkpoint document: summary counters plus
// the full result tree. It is rewritten wholesale after every settled
// unit of work.
type Progress struct {
	ExtractionInfo extractionInfo                                `json:"extraction_info"`
	Categories     map[string]map[string]map[string]subSnapshot `json:"categories"`
}

const (
	StatusInProgress = "in-progress"
	StatusComplete   = "complete"
)

// Snapshot captures the current accumulated state. The returned tree is
// a deep copy so progress serialization never races with workers.
func (a *Aggregator) Snapshot(status string) Progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	middleCount := 0
	for _, middles := range a.middleSeen {
		middleCount += len(middles)
	}

	rate := 0.0
	if a.totalSpecs > 0 {
		rate = float64(a.matched) / float64(a.totalSpecs)
	}

	categories := make(map[string]map[string]map[string]subSnapshot, len(a.majors))
	for major, middles := range a.majors {
		mcopy := make(map[string]map[string]subSnapshot, len(middles))
		for middle, subs := range middles {
			scopy := make(map[string]subSnapshot, len(subs))
			for sub, snap := range subs {
				scopy[sub] = snap
			}
			mcopy[middle] = scopy
		}
		categories[major] = mcopy
	}

	return Progress{
		ExtractionInfo: extractionInfo{
			Timestamp:           a.startedAt.Format(time.RFC3339),
			Status:              status,
			MajorCount:          len(a.majors),
			MiddleCount:         middleCount,
			SubCount:            a.subCount,
			TotalSpecifications: a.totalSpecs,
			MatchedUnits:        a.matched,
			MatchRate:           rate,
		},
		Categories: categories,
	}
}
