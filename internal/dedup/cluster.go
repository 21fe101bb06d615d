package dedup

import (
	"context"
	"net/url"
	"sort"

	"horse.fit/weekly/internal/config"
	"horse.fit/weekly/internal/textsim"
)

// Confirmer is the optional semantic-duplicate oracle. It decides whether two
// items describe the same underlying event and explains why. Implementations
// are injected so the clustering algorithm stays independently testable.
type Confirmer interface {
	Confirm(ctx context.Context, a, b *Item) (duplicate bool, reason string, err error)
}

// BatchOptions tunes the offline clusterer. Zero values fall back to the
// documented defaults.
type BatchOptions struct {
	JaccardThreshold float64
	HammingThreshold int
	LengthDiffCap    int
	GlobalPairCap    int
	MaxConfirmPairs  int
	StrongJaccard    float64
	KeepPolicy       config.KeepPolicy
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.JaccardThreshold <= 0 {
		o.JaccardThreshold = 0.62
	}
	if o.HammingThreshold <= 0 {
		o.HammingThreshold = 8
	}
	if o.LengthDiffCap <= 0 {
		o.LengthDiffCap = 200
	}
	if o.GlobalPairCap <= 0 {
		o.GlobalPairCap = 400
	}
	if o.MaxConfirmPairs <= 0 {
		o.MaxConfirmPairs = 200
	}
	if o.StrongJaccard <= 0 {
		o.StrongJaccard = 0.8
	}
	if o.KeepPolicy == "" {
		o.KeepPolicy = config.KeepEarliest
	}
	return o
}

// Merge records one dropped member of a cluster for the audit trail.
type Merge struct {
	KeptID       string
	KeptTitle    string
	DroppedID    string
	DroppedTitle string
	Reason       string
}

// ConfirmFailure records an oracle call that could not produce a verdict.
// The pair is treated as not duplicate (fail-open).
type ConfirmFailure struct {
	AID    string
	BID    string
	Reason string
}

// BatchResult is the outcome of one offline clustering pass.
type BatchResult struct {
	Kept      []*Item
	Merges    []Merge
	Pairs     int
	Confirmed int
	Failures  []ConfirmFailure
}

type pairKey struct{ a, b int }

// Cluster runs the offline near-duplicate pass: recall candidate pairs by
// URL-host bucket (plus a global sweep for small collections), confirm edges
// by the strong same-host rule or the semantic oracle, merge transitively
// with union-find, and keep one canonical survivor per cluster.
func Cluster(ctx context.Context, items []*Item, confirmer Confirmer, opts BatchOptions) BatchResult {
	opts = opts.withDefaults()
	result := BatchResult{}
	if len(items) == 0 {
		return result
	}
	for _, it := range items {
		it.Prepare()
	}

	pairs := candidatePairs(items, opts)
	result.Pairs = len(pairs)

	type edge struct {
		a, b   int
		reason string
	}
	edges := make([]edge, 0, len(pairs))
	confirmCalls := 0

	for _, p := range pairs {
		a, b := items[p.a], items[p.b]
		if urlHost(a.URL) != "" && urlHost(a.URL) == urlHost(b.URL) &&
			textsim.Jaccard(a.shingleSet(), b.shingleSet()) >= opts.StrongJaccard {
			edges = append(edges, edge{p.a, p.b, "同域高相似"})
			continue
		}
		if confirmer == nil || confirmCalls >= opts.MaxConfirmPairs {
			continue
		}
		confirmCalls++
		duplicate, reason, err := confirmer.Confirm(ctx, a, b)
		if err != nil {
			result.Failures = append(result.Failures, ConfirmFailure{AID: a.ID, BID: b.ID, Reason: err.Error()})
			continue
		}
		if duplicate {
			if reason == "" {
				reason = "语义判定重复"
			}
			edges = append(edges, edge{p.a, p.b, reason})
			result.Confirmed++
		}
	}

	uf := newUnionFind(len(items))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}

	clusters := make(map[int][]int)
	for i := range items {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	keep := make(map[int]struct{}, len(clusters))
	roots := make([]int, 0, len(clusters))
	for root := range clusters {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	for _, root := range roots {
		members := clusters[root]
		if len(members) == 1 {
			keep[members[0]] = struct{}{}
			continue
		}

		group := make([]*Item, 0, len(members))
		for _, idx := range members {
			group = append(group, items[idx])
		}
		sortForBatchPolicy(group, opts.KeepPolicy)
		keptItem := group[0]
		keptIdx := indexOf(items, keptItem)
		keep[keptIdx] = struct{}{}

		for _, idx := range members {
			if idx == keptIdx {
				continue
			}
			reason := "同簇合并"
			for _, e := range edges {
				if (e.a == keptIdx && e.b == idx) || (e.b == keptIdx && e.a == idx) {
					reason = e.reason
					break
				}
			}
			result.Merges = append(result.Merges, Merge{
				KeptID:       keptItem.ID,
				KeptTitle:    keptItem.Title,
				DroppedID:    items[idx].ID,
				DroppedTitle: items[idx].Title,
				Reason:       reason,
			})
		}
	}

	result.Kept = make([]*Item, 0, len(keep))
	for i, it := range items {
		if _, ok := keep[i]; ok {
			result.Kept = append(result.Kept, it)
		}
	}
	return result
}

// candidatePairs recalls likely-duplicate pairs: same-host buckets first,
// then a full quadratic sweep when the collection is small enough for the
// fallback to stay cheap. A pair survives recall only when the length gap,
// shingle Jaccard, and fingerprint Hamming distance all pass.
func candidatePairs(items []*Item, opts BatchOptions) []pairKey {
	seen := make(map[pairKey]struct{})
	pairs := make([]pairKey, 0)

	tryPair := func(i, j int) {
		if i > j {
			i, j = j, i
		}
		key := pairKey{i, j}
		if _, dup := seen[key]; dup {
			return
		}
		a, b := items[i], items[j]
		diff := a.normLen() - b.normLen()
		if diff < 0 {
			diff = -diff
		}
		if diff > opts.LengthDiffCap {
			return
		}
		if textsim.Jaccard(a.shingleSet(), b.shingleSet()) < opts.JaccardThreshold {
			return
		}
		if textsim.Hamming(a.Fingerprint(), b.Fingerprint()) > opts.HammingThreshold {
			return
		}
		seen[key] = struct{}{}
		pairs = append(pairs, key)
	}

	buckets := make(map[string][]int)
	for i, it := range items {
		buckets[urlHost(it.URL)] = append(buckets[urlHost(it.URL)], i)
	}
	hosts := make([]string, 0, len(buckets))
	for host := range buckets {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		idxs := buckets[host]
		if len(idxs) < 2 {
			continue
		}
		for a := 0; a < len(idxs); a++ {
			for b := a + 1; b < len(idxs); b++ {
				tryPair(idxs[a], idxs[b])
			}
		}
	}

	if len(items) <= opts.GlobalPairCap {
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				tryPair(i, j)
			}
		}
	}
	return pairs
}

// sortForBatchPolicy orders one cluster by the survivor rule. Unlike the
// greedy feed passes, an undated member sorts first under earliest and last
// under latest, so a missing date wins the earliest slot instead of losing
// to every dated near-duplicate. Longest compares normalized text length.
func sortForBatchPolicy(group []*Item, policy config.KeepPolicy) {
	switch policy {
	case config.KeepLatest:
		sort.SliceStable(group, func(i, j int) bool {
			return dateOrSentinel(group[i].Date, false).After(dateOrSentinel(group[j].Date, false))
		})
	case config.KeepLongest:
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].normLen() > group[j].normLen()
		})
	default: // earliest
		sort.SliceStable(group, func(i, j int) bool {
			return dateOrSentinel(group[i].Date, false).Before(dateOrSentinel(group[j].Date, false))
		})
	}
}

func urlHost(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func indexOf(items []*Item, target *Item) int {
	for i, it := range items {
		if it == target {
			return i
		}
	}
	return -1
}

// unionFind is a plain disjoint-set with path halving; clusters are the
// transitive closure of confirmed duplicate edges.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
