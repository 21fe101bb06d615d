package classify

import "strings"

const (
	defaultHardWeight = 3.0

	priorUniform    = 0.25
	verdictStrength = 0.15
	expertStrength  = 0.12

	confidenceFloor = 0.0
	confidenceCeil  = 1.0
	weightFloor     = 0.5
	weightCeil      = 4.0
)

// Verdict is the raw classifier output before posterior resolution.
type Verdict struct {
	Category   Category
	Region     Region
	Platform   Platform
	Summary    string
	Tags       []string
	Confidence float64
}

// Priors carries the source-level evidence that conditions the verdict.
// HardWeight is the trust threshold above which a declared single-expertise
// source pins its category outright; zero or negative falls back to the
// default.
type Priors struct {
	Weight     float64
	Expertise  []string
	HardWeight float64
}

// expertiseCategory maps a human-readable expertise tag to a bucket for the
// soft blend. Matching is by substring so variants like "方法论" and
// "方法分享" both hit.
func expertiseCategory(tag string) (Category, bool) {
	switch {
	case strings.Contains(tag, "要闻"):
		return CategoryNews, true
	case strings.Contains(tag, "产品"):
		return CategoryProduct, true
	case strings.Contains(tag, "方法"):
		return CategoryMethod, true
	case strings.Contains(tag, "市场数据"):
		return CategoryMarket, true
	}
	return "", false
}

// overrideCategory maps a declared expertise tag to the bucket a trusted
// single-expertise source pins outright. Market data is deliberately absent:
// a pure market-data source still goes through the soft blend.
func overrideCategory(tag string) (Category, bool) {
	switch {
	case strings.Contains(tag, "要闻"):
		return CategoryNews, true
	case strings.Contains(tag, "产品"):
		return CategoryProduct, true
	case strings.Contains(tag, "方法"):
		return CategoryMethod, true
	}
	return "", false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Resolve blends the raw verdict with source priors and returns the final
// category plus the posterior distribution over the four buckets. A source
// that declares exactly one expertise tag and carries weight at or above the
// hard threshold pins the result to that tag's bucket with a one-hot
// distribution. Otherwise every bucket starts from a uniform prior, the
// verdict's own label gets a confidence-scaled boost, each recognized
// expertise tag gets a weight-scaled boost, the scores are normalized to sum
// to 1, and the arg-max wins with ties broken by the fixed bucket order.
// Items tagged as market data never land in product or method; that final
// adjustment does not reshape the returned distribution.
func Resolve(v Verdict, p Priors) (Category, map[Category]float64) {
	hardWeight := p.HardWeight
	if hardWeight <= 0 {
		hardWeight = defaultHardWeight
	}

	if len(p.Expertise) == 1 && p.Weight >= hardWeight {
		if cat, ok := overrideCategory(p.Expertise[0]); ok {
			scores := make(map[Category]float64, len(categoryOrder))
			for _, c := range categoryOrder {
				scores[c] = 0
			}
			scores[cat] = 1.0
			return marketTagged(v.Tags, cat), scores
		}
	}

	scores := make(map[Category]float64, len(categoryOrder))
	for _, cat := range categoryOrder {
		scores[cat] = priorUniform
	}
	if _, ok := scores[v.Category]; ok {
		scores[v.Category] += verdictStrength * clamp(v.Confidence, confidenceFloor, confidenceCeil)
	}
	boost := expertStrength * clamp(p.Weight, weightFloor, weightCeil)
	for _, tag := range p.Expertise {
		if cat, ok := expertiseCategory(tag); ok {
			scores[cat] += boost
		}
	}

	var total float64
	for _, s := range scores {
		total += s
	}
	best := categoryOrder[0]
	for _, cat := range categoryOrder {
		scores[cat] /= total
		if scores[cat] > scores[best] {
			best = cat
		}
	}
	return marketTagged(v.Tags, best), scores
}

// marketTagged reroutes product and method results to market when the verdict
// carries the market-data tag.
func marketTagged(tags []string, final Category) Category {
	if HasMarketDataTag(tags) && (final == CategoryProduct || final == CategoryMethod) {
		return CategoryMarket
	}
	return final
}
