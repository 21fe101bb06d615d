// Package classify resolves an item's final category by blending the raw
// classifier verdict with source-level expertise priors, with a deterministic
// keyword fallback when the external classifier is unavailable.
package classify

import "strings"

// Category is one of the four report buckets. "ignore" exists only at the
// oracle boundary and never survives posterior resolution.
type Category string

const (
	CategoryNews    Category = "news"
	CategoryProduct Category = "product"
	CategoryMarket  Category = "market"
	CategoryMethod  Category = "method"
	CategoryIgnore  Category = "ignore"
)

// categoryOrder is the fixed first-seen bucket order used for arg-max
// tie-breaking. Map iteration order is never relied on.
var categoryOrder = []Category{CategoryNews, CategoryProduct, CategoryMarket, CategoryMethod}

// Region is the cn / overseas / none tag.
type Region string

const (
	RegionCN       Region = "cn"
	RegionOverseas Region = "overseas"
	RegionNone     Region = "none"
)

// Platform is the platform-type enum carried through to the store.
type Platform int

const (
	PlatformUnknown Platform = 0
	PlatformMobile  Platform = 1
	PlatformPC      Platform = 2
	PlatformConsole Platform = 3
)

// ParseCategory coerces a raw label into the closed set; anything else maps
// to method, or to market when the tag set carries the market-data marker.
func ParseCategory(raw string, tags []string, allowIgnore bool) Category {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryNews:
		return CategoryNews
	case CategoryProduct:
		return CategoryProduct
	case CategoryMarket:
		return CategoryMarket
	case CategoryMethod:
		return CategoryMethod
	case CategoryIgnore:
		if allowIgnore {
			return CategoryIgnore
		}
	}
	if HasMarketDataTag(tags) {
		return CategoryMarket
	}
	return CategoryMethod
}

// ParseRegion coerces a raw region label into the closed set.
func ParseRegion(raw string) Region {
	switch Region(strings.ToLower(strings.TrimSpace(raw))) {
	case RegionCN:
		return RegionCN
	case RegionOverseas:
		return RegionOverseas
	default:
		return RegionNone
	}
}

// ParsePlatform coerces an integer platform code into the enum.
func ParsePlatform(raw int) Platform {
	switch Platform(raw) {
	case PlatformMobile, PlatformPC, PlatformConsole:
		return Platform(raw)
	default:
		return PlatformUnknown
	}
}

// HasMarketDataTag reports whether the tag set carries the market-data
// marker, the most specific applicable label.
func HasMarketDataTag(tags []string) bool {
	for _, tag := range tags {
		if tag == "市场数据" || strings.EqualFold(strings.TrimSpace(tag), "market") {
			return true
		}
	}
	return false
}
