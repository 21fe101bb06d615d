package store

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	recencyWeight    = 0.6
	brevityWeight    = 0.2
	brevityCapRunes  = 400
	recencyHalfSlope = 3.0
	hoursPerDay      = 24.0
)

// UID derives the stable content identity: SHA-1 of the normalized link, or
// of the body text when the item has no link at all.
func UID(urlNorm, body string) string {
	basis := strings.TrimSpace(urlNorm)
	if basis == "" {
		basis = body
	}
	sum := sha1.Sum([]byte(basis))
	return hex.EncodeToString(sum[:])
}

// WID is a short per-source handle for logs and exports.
func WID(sourceID, uid string) string {
	short := uid
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s-%s", sourceID, short)
}

// WeekTag renders the ISO week of t as YYYY-W##.
func WeekTag(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// RankScore combines recency, a category bonus, and summary brevity.
// Undated items score as infinitely old on the recency axis.
func RankScore(now time.Time, publishedAt *time.Time, category, summary string) float64 {
	return recencyWeight*Recency(now, publishedAt) + CategoryBonus(category) + brevityWeight*Brevity(summary)
}

// Recency decays hyperbolically with age in days: 1 today, 1/2 after three
// days, 1/3 after six.
func Recency(now time.Time, publishedAt *time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	ageDays := now.Sub(*publishedAt).Hours() / hoursPerDay
	if ageDays < 0 {
		ageDays = 0
	}
	return 1.0 / (1.0 + ageDays/recencyHalfSlope)
}

// CategoryBonus rewards the categories the report leads with.
func CategoryBonus(category string) float64 {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "market":
		return 0.30
	case "product":
		return 0.20
	case "news":
		return 0.15
	case "method":
		return 0.10
	default:
		return 0.0
	}
}

// Brevity rates how close the summary is to the 400-rune display budget;
// longer summaries saturate at 1.
func Brevity(summary string) float64 {
	n := utf8.RuneCountInString(summary)
	if n > brevityCapRunes {
		n = brevityCapRunes
	}
	return float64(n) / float64(brevityCapRunes)
}
