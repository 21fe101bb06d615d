// Package textsim provides the normalized-text representation and the two
// similarity primitives the dedup passes are built on: rune-shingle Jaccard
// overlap and a 64-bit locality-sensitive fingerprint compared by Hamming
// distance. Everything here is deterministic; Han characters pass through
// unchanged and similarity operates at the rune n-gram level, so no word
// segmentation is ever performed.
package textsim

import (
	"hash/fnv"
	"math/bits"
	"regexp"
	"strings"
)

// DefaultShingleWidth is the rune width of the n-grams fed to Jaccard.
const DefaultShingleWidth = 8

var (
	brTagRe       = regexp.MustCompile(`(?i)<br\s*/?>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	parentheticRe = regexp.MustCompile(`（[^）]*）|\([^)]*\)`)
	// % stays: ％ folds to % first and percentages are signal, not noise.
	punctuationRe  = regexp.MustCompile(`[\s~!@#$^&*()_+\-=\[\]{}|;:'",.<>/?，。！、；：‘’“”…（）【】—-]+`)
	fullWidthPairs = strings.NewReplacer("％", "%", "，", ",", "。", ".")
)

// Normalize produces the canonical lower-cased text two items are compared
// on: markup stripped, parenthetical asides removed, the fixed punctuation
// class replaced by spaces, and runs of whitespace collapsed.
func Normalize(title, text string) string {
	s := strings.TrimSpace(title + " " + text)
	if s == "" {
		return ""
	}
	s = brTagRe.ReplaceAllString(s, " ")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = parentheticRe.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = fullWidthPairs.Replace(s)
	s = punctuationRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Shingles returns the set of sliding rune n-grams of width k over the
// whitespace-stripped input. An input shorter than k yields itself as the
// single shingle; empty input yields an empty set.
func Shingles(s string, k int) map[string]struct{} {
	if k <= 0 {
		k = DefaultShingleWidth
	}
	stripped := strings.ReplaceAll(s, " ", "")
	if stripped == "" {
		return map[string]struct{}{}
	}
	runes := []rune(stripped)
	if len(runes) <= k {
		return map[string]struct{}{stripped: {}}
	}
	set := make(map[string]struct{}, len(runes)-k+1)
	for i := 0; i+k <= len(runes); i++ {
		set[string(runes[i:i+k])] = struct{}{}
	}
	return set
}

// Jaccard computes |A∩B| / |A∪B|. Defined as 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	intersection := 0
	for shingle := range a {
		if _, ok := b[shingle]; ok {
			intersection++
		}
	}
	if intersection == 0 {
		return 0
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// Fingerprint computes the 64-bit locality-sensitive hash of the normalized
// string: overlapping 2-rune tokens vote their frequency for or against each
// bit of the output depending on the corresponding bit of a stable per-token
// hash. Similar texts land within a small Hamming distance; collisions are
// expected and acceptable.
func Fingerprint(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	runes := []rune(s)
	counts := make(map[string]int, len(runes))
	if len(runes) < 2 {
		counts[s] = 1
	} else {
		for i := 0; i+2 <= len(runes); i++ {
			counts[string(runes[i:i+2])]++
		}
	}

	var weights [64]int
	for token, freq := range counts {
		h := hashToken64(token)
		for bit := 0; bit < 64; bit++ {
			if h&(uint64(1)<<bit) != 0 {
				weights[bit] += freq
			} else {
				weights[bit] -= freq
			}
		}
	}

	var out uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			out |= uint64(1) << bit
		}
	}
	return out
}

// Hamming returns the number of differing bits between two fingerprints.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func hashToken64(token string) uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(token))
	return hasher.Sum64()
}
