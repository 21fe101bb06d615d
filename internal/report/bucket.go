package report

import (
	"sort"
	"time"

	"horse.fit/weekly/internal/classify"
)

// Entry is one accepted item ready for bucketing.
type Entry struct {
	Category classify.Category
	Region   classify.Region
	Platform classify.Platform
	GameType string
	Summary  string
	Link     string
	Date     *time.Time
}

// Line is one rendered bullet.
type Line struct {
	Text     string
	GameType string
}

// Buckets groups the digest's sections. News splits by region; product
// splits by platform, with unknown platforms shelved with mobile.
type Buckets struct {
	NewsCN           []Line
	NewsOverseas     []Line
	Market           []Line
	ProductMobile    []Line
	ProductPCConsole []Line
	Method           []Line
}

// Bucketize sorts news newest-first and distributes entries to sections.
func Bucketize(entries []Entry) Buckets {
	var news, rest []Entry
	for _, e := range entries {
		if e.Category == classify.CategoryNews {
			news = append(news, e)
		} else {
			rest = append(rest, e)
		}
	}
	sort.SliceStable(news, func(i, j int) bool {
		di, dj := news[i].Date, news[j].Date
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false
		case dj == nil:
			return true
		}
		return di.After(*dj)
	})

	var b Buckets
	for _, e := range news {
		line := Line{Text: FormatLine(e.Date, e.Summary, e.Link, true)}
		if e.Region == classify.RegionCN {
			b.NewsCN = append(b.NewsCN, line)
		} else {
			b.NewsOverseas = append(b.NewsOverseas, line)
		}
	}
	for _, e := range rest {
		line := Line{
			Text:     FormatLine(e.Date, e.Summary, e.Link, false),
			GameType: e.GameType,
		}
		switch e.Category {
		case classify.CategoryMarket:
			b.Market = append(b.Market, line)
		case classify.CategoryProduct:
			if e.Platform == classify.PlatformPC || e.Platform == classify.PlatformConsole {
				b.ProductPCConsole = append(b.ProductPCConsole, line)
			} else {
				b.ProductMobile = append(b.ProductMobile, line)
			}
		default:
			b.Method = append(b.Method, line)
		}
	}
	return b
}

// Total counts the bucketed lines.
func (b Buckets) Total() int {
	return len(b.NewsCN) + len(b.NewsOverseas) + len(b.Market) +
		len(b.ProductMobile) + len(b.ProductPCConsole) + len(b.Method)
}
