// Package dedup implements near-duplicate removal: the greedy within-source
// and cross-source scans used during a pipeline run, and the offline batch
// clusterer used for post-hoc cleanup of an already-rendered collection.
// Both build on the textsim primitives. The greedy scans are order-dependent
// set-cover approximations; their sort keys are part of the contract and must
// not be substituted.
package dedup

import (
	"time"

	"horse.fit/weekly/internal/textsim"
)

// Item is one dedup candidate. Identity is an explicit ID (content-identity
// hash upstream), never object identity. Prepare must be called before the
// item enters any pass.
type Item struct {
	ID       string
	SourceID string
	Title    string
	Text     string
	URL      string
	Date     *time.Time
	Weight   float64

	norm        string
	fingerprint uint64
	shingles    map[string]struct{}
	prepared    bool
}

// Prepare computes the derived representation (normalized text, fingerprint,
// shingle set). Idempotent.
func (it *Item) Prepare() {
	if it == nil || it.prepared {
		return
	}
	it.norm = textsim.Normalize(it.Title, it.Text)
	it.fingerprint = textsim.Fingerprint(it.norm)
	it.shingles = textsim.Shingles(it.norm, textsim.DefaultShingleWidth)
	it.prepared = true
}

// Normalized returns the normalized comparison text.
func (it *Item) Normalized() string {
	it.Prepare()
	return it.norm
}

// Fingerprint returns the 64-bit locality-sensitive hash.
func (it *Item) Fingerprint() uint64 {
	it.Prepare()
	return it.fingerprint
}

func (it *Item) shingleSet() map[string]struct{} {
	it.Prepare()
	return it.shingles
}

func (it *Item) normLen() int {
	return len([]rune(it.Normalized()))
}

func (it *Item) textLen() int {
	return len([]rune(it.Text))
}
