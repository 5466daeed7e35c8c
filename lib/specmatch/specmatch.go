// Package specmatch reconciles the two independently-rendered views of a
// sub-category: the tabular product listing, which carries a unit of
// measure, and the specification dropdown, which carries richer text but
// no unit. There is no join key between the two, so units are assigned by
// a scored text match.
package specmatch

import (
	"strings"

	"pricewatch-backend/lib/textutil"
)

// ProductRow is one row of the tabular listing view. Unit may be empty.
type ProductRow struct {
	Name              string
	SpecificationText string
	Unit              string
}

// SpecificationOption is one entry of the specification dropdown.
// ProductName/SpecificationDetail may be empty when the source text has
// no delimiter; FullText is always present.
type SpecificationOption struct {
	Value               string
	ProductName         string
	SpecificationDetail string
	FullText            string
}

// MatchedSpecification is the reconciled record, one per option. Unit is
// only set when Matched is true, which in turn requires Confidence to
// strictly exceed the configured threshold.
type MatchedSpecification struct {
	Specification     string
	ProductName       string
	FullSpecification string
	Unit              string
	Matched           bool
	Confidence        float64
}

// Config holds the matcher's tunable constants. The defaults reproduce
// observed behavior; they are settings, not derived truths.
type Config struct {
	NameWeight       float64
	DetailWeight     float64
	FullTextWeight   float64
	DomainTokenBonus float64
	Threshold        float64
	// DomainTokens are alphanumeric grade codes (rebar diameters, steel
	// grades) whose verbatim presence on both sides is strong evidence.
	DomainTokens []string
}

func DefaultConfig() Config {
	return Config{
		NameWeight:       0.4,
		DetailWeight:     0.6,
		FullTextWeight:   0.3,
		DomainTokenBonus: 0.1,
		Threshold:        0.2,
		DomainTokens: []string{
			"D10", "D13", "D16", "D19", "D22", "D25", "D29", "D32",
			"SD400", "SD500",
		},
	}
}

// Score rates how well a product row explains a specification option.
// The weights intentionally do not sum to 1: the result is an
// unnormalized ranking score, clamped into [0, 1].
func Score(cfg Config, opt SpecificationOption, row ProductRow) float64 {
	rowFull := row.Name + " " + row.SpecificationText

	s := cfg.NameWeight*textutil.Jaccard(opt.ProductName, row.Name) +
		cfg.DetailWeight*textutil.Jaccard(opt.SpecificationDetail, row.SpecificationText) +
		cfg.FullTextWeight*textutil.Jaccard(opt.FullText, rowFull)

	for _, tok := range cfg.DomainTokens {
		if strings.Contains(opt.FullText, tok) && strings.Contains(rowFull, tok) {
			s += cfg.DomainTokenBonus
		}
	}

	if s > 1 {
		s = 1
	}
	return s
}

// Match assigns every specification option the unit of its best-scoring
// product row, when that score clears the threshold. Ties keep the first
// maximal row in product order, making the result deterministic for
// identical inputs. Pure: no I/O, no mutation of inputs.
func Match(cfg Config, products []ProductRow, specs []SpecificationOption) []MatchedSpecification {
	out := make([]MatchedSpecification, 0, len(specs))

	for _, opt := range specs {
		best := -1
		bestScore := 0.0
		for i, row := range products {
			score := Score(cfg, opt, row)
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}

		matched := MatchedSpecification{
			Specification:     opt.SpecificationDetail,
			ProductName:       opt.ProductName,
			FullSpecification: opt.FullText,
			Confidence:        bestScore,
		}
		if best >= 0 && bestScore > cfg.Threshold {
			matched.Unit = products[best].Unit
			matched.Matched = true
		}
		out = append(out, matched)
	}

	return out
}
