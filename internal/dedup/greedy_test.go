package dedup

import (
	"testing"
	"time"

	"horse.fit/weekly/internal/config"
)

func day(d int) *time.Time {
	ts := time.Date(2026, 8, d, 10, 0, 0, 0, time.UTC)
	return &ts
}

const reportText = "某大型发行商公布第三季度财报，移动端收入同比增长十二个百分点，主要增长来自东南亚与拉美新兴市场的买量投放回收效率提升"

func TestDropWithinSource_TrailingPromoPhrase(t *testing.T) {
	t.Parallel()

	// the trailing promotional phrase sits in a parenthetical aside, so the
	// normalized texts coincide and the pair is a guaranteed near-duplicate
	items := []*Item{
		{ID: "a", SourceID: "src-1", Title: "季度财报解读", Text: reportText, Date: day(3)},
		{ID: "b", SourceID: "src-1", Title: "季度财报解读", Text: reportText + "（点击报名线下分享会）", Date: day(3)},
		{ID: "c", SourceID: "src-2", Title: "独立游戏立项方法", Text: "完全不同的一篇方法论文章，讨论小团队如何验证核心玩法循环", Date: day(4)},
	}

	kept, dropped := DropWithinSource(items, 4, config.KeepEarliest)
	if dropped != 1 {
		t.Fatalf("expected 1 drop, got %d", dropped)
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(kept))
	}
	// input order is preserved and the earliest-sorted scan keeps the first
	if kept[0].ID != "a" || kept[1].ID != "c" {
		t.Fatalf("unexpected survivors: %s, %s", kept[0].ID, kept[1].ID)
	}
}

func TestDropWithinSource_LatestPolicyKeepsNewest(t *testing.T) {
	t.Parallel()

	items := []*Item{
		{ID: "old", SourceID: "src-1", Title: "政策更新", Text: reportText, Date: day(1)},
		{ID: "new", SourceID: "src-1", Title: "政策更新", Text: reportText, Date: day(5)},
	}

	kept, dropped := DropWithinSource(items, 4, config.KeepLatest)
	if dropped != 1 || len(kept) != 1 {
		t.Fatalf("expected exactly one survivor, kept=%d dropped=%d", len(kept), dropped)
	}
	if kept[0].ID != "new" {
		t.Fatalf("latest policy should keep the newest item, kept %s", kept[0].ID)
	}
}

func TestDropWithinSource_SingletonSourcesPassThrough(t *testing.T) {
	t.Parallel()

	items := []*Item{
		{ID: "a", SourceID: "s1", Title: "一", Text: reportText},
		{ID: "b", SourceID: "s2", Title: "二", Text: reportText},
	}
	kept, dropped := DropWithinSource(items, 4, config.KeepEarliest)
	if dropped != 0 || len(kept) != 2 {
		t.Fatalf("cross-source pairs must not merge here: kept=%d dropped=%d", len(kept), dropped)
	}
}

func TestDropAcrossSources_WeightPolicy(t *testing.T) {
	t.Parallel()

	items := []*Item{
		{ID: "low", SourceID: "blog", Title: "财报", Text: reportText, Date: day(1), Weight: 1.0},
		{ID: "high", SourceID: "official", Title: "财报", Text: reportText, Date: day(2), Weight: 4.5},
	}

	kept, dropped := DropAcrossSources(items, 4, config.KeepWeightThenEarliest)
	if dropped != 1 || len(kept) != 1 {
		t.Fatalf("expected exactly one survivor, kept=%d dropped=%d", len(kept), dropped)
	}
	if kept[0].ID != "high" {
		t.Fatalf("weight policy should keep the trusted source, kept %s", kept[0].ID)
	}
}

func TestDropAcrossSources_EarliestUndatedSortsLast(t *testing.T) {
	t.Parallel()

	items := []*Item{
		{ID: "undated", SourceID: "s1", Title: "财报", Text: reportText},
		{ID: "dated", SourceID: "s2", Title: "财报", Text: reportText, Date: day(2)},
	}
	kept, _ := DropAcrossSources(items, 4, config.KeepEarliest)
	if len(kept) != 1 || kept[0].ID != "dated" {
		t.Fatalf("dated item should win under earliest, kept %v", kept)
	}
}

func TestGreedyScan_Deterministic(t *testing.T) {
	t.Parallel()

	build := func() []*Item {
		return []*Item{
			{ID: "a", SourceID: "s", Title: "财报", Text: reportText, Date: day(1)},
			{ID: "b", SourceID: "s", Title: "财报", Text: reportText, Date: day(2)},
			{ID: "c", SourceID: "s", Title: "财报", Text: reportText, Date: day(3)},
		}
	}

	first, _ := DropWithinSource(build(), 4, config.KeepEarliest)
	second, _ := DropWithinSource(build(), 4, config.KeepEarliest)
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("survivor not reproducible: %v vs %v", first, second)
	}
	if first[0].ID != "a" {
		t.Fatalf("earliest policy should keep a, kept %s", first[0].ID)
	}
}
