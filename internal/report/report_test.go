package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"horse.fit/weekly/internal/classify"
)

func aug(day int) *time.Time {
	t := time.Date(2026, 8, day, 10, 0, 0, 0, time.UTC)
	return &t
}

func TestMDDate(t *testing.T) {
	t.Parallel()

	if got := MDDate(aug(3)); got != "8月3日" {
		t.Fatalf("MDDate() = %q, want 8月3日", got)
	}
	if got := MDDate(nil); got != "" {
		t.Fatalf("MDDate(nil) = %q", got)
	}
}

func TestHideLinks(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"摘要。 https://example.com/a", "摘要。 [原文](https://example.com/a)"},
		{"摘要。（https://example.com/a）", "摘要。[原文](https://example.com/a)"},
		{"摘要。（[原文](https://example.com/a)）", "摘要。[原文](https://example.com/a)"},
		{"摘要。[原文]([原文](https://example.com/a))", "摘要。[原文](https://example.com/a)"},
		// An already-canonical suffix is a fixed point.
		{"摘要。[原文](https://example.com/a)", "摘要。[原文](https://example.com/a)"},
		{"无链接的摘要。", "无链接的摘要。"},
	}
	for _, tc := range cases {
		if got := HideLinks(tc.in); got != tc.want {
			t.Fatalf("HideLinks(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatLine(t *testing.T) {
	t.Parallel()

	dated := FormatLine(aug(17), "政策调整落地。", "https://example.com/a", true)
	if dated != "8月17日，政策调整落地。 [原文](https://example.com/a)" {
		t.Fatalf("dated line = %q", dated)
	}

	plain := FormatLine(aug(17), "市场数据出炉。", "https://example.com/b", false)
	if plain != "市场数据出炉。 [原文](https://example.com/b)" {
		t.Fatalf("plain line = %q", plain)
	}

	noLink := FormatLine(nil, "无链接条目。", "", true)
	if noLink != "无链接条目。" {
		t.Fatalf("no-link line = %q", noLink)
	}
}

func TestBucketize(t *testing.T) {
	t.Parallel()

	entries := []Entry{
		{Category: classify.CategoryNews, Region: classify.RegionCN, Summary: "旧国内要闻。", Link: "https://example.com/1", Date: aug(15)},
		{Category: classify.CategoryNews, Region: classify.RegionCN, Summary: "新国内要闻。", Link: "https://example.com/2", Date: aug(18)},
		{Category: classify.CategoryNews, Region: classify.RegionOverseas, Summary: "海外要闻。", Link: "https://example.com/3", Date: aug(16)},
		{Category: classify.CategoryMarket, Summary: "市场数据。", Link: "https://example.com/4", Date: aug(16)},
		{Category: classify.CategoryProduct, Platform: classify.PlatformMobile, GameType: "SLG", Summary: "手游分析。", Link: "https://example.com/5"},
		{Category: classify.CategoryProduct, Platform: classify.PlatformPC, Summary: "PC 新作。", Link: "https://example.com/6"},
		{Category: classify.CategoryMethod, Summary: "方法论分享。", Link: "https://example.com/7"},
	}

	b := Bucketize(entries)
	if b.Total() != len(entries) {
		t.Fatalf("Total() = %d, want %d", b.Total(), len(entries))
	}
	if len(b.NewsCN) != 2 || !strings.HasPrefix(b.NewsCN[0].Text, "8月18日") {
		t.Fatalf("NewsCN = %+v, want newest first", b.NewsCN)
	}
	if len(b.ProductMobile) != 1 || b.ProductMobile[0].GameType != "SLG" {
		t.Fatalf("ProductMobile = %+v", b.ProductMobile)
	}
	if len(b.ProductPCConsole) != 1 {
		t.Fatalf("ProductPCConsole = %+v", b.ProductPCConsole)
	}
	// News lines carry a date prefix; other sections do not.
	if strings.HasPrefix(b.Market[0].Text, "8月") {
		t.Fatalf("Market line unexpectedly dated: %q", b.Market[0].Text)
	}
}

func TestRenderAndWriteDocs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 18, 0, 0, 0, time.UTC)
	buckets := Bucketize([]Entry{
		{Category: classify.CategoryNews, Region: classify.RegionCN, Summary: "要闻。", Link: "https://example.com/1", Date: aug(18)},
	})
	ctx := BuildContext("行业周报", "Asia/Shanghai", now, now.AddDate(0, 0, -7), now, buckets)

	md, err := Render(ctx)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(md, "# 行业周报 · 2026 年第 34 周") {
		t.Fatalf("header missing: %q", md[:120])
	}
	if !strings.Contains(md, "- 8月18日，要闻。 [原文](https://example.com/1)") {
		t.Fatalf("news bullet missing:\n%s", md)
	}
	if !strings.Contains(md, "- 本周暂无。") {
		t.Fatalf("empty-section placeholder missing:\n%s", md)
	}

	dir := t.TempDir()
	path, err := WriteDocs(dir, md, 2026, 34)
	if err != nil {
		t.Fatalf("WriteDocs() error: %v", err)
	}
	if filepath.Base(path) != "2026-W34.md" {
		t.Fatalf("doc path = %q", path)
	}

	// Writing twice must not duplicate the index line.
	if _, err := WriteDocs(dir, md, 2026, 34); err != nil {
		t.Fatalf("WriteDocs() second error: %v", err)
	}
	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if got := strings.Count(string(index), "2026-W34.md"); got != 1 {
		t.Fatalf("index mentions doc %d times, want 1", got)
	}
}

func TestParseMarkdownItems(t *testing.T) {
	t.Parallel()

	md := strings.Join([]string{
		"# 标题",
		"",
		"- 8月17日，某厂商发布新政策，影响渠道分成。[原文](https://example.com/a)",
		"- 一条没有链接也没有日期的记录。",
		"不是列表行",
	}, "\n")

	items, err := ParseMarkdownItems(strings.NewReader(md), "2026-W34")
	if err != nil {
		t.Fatalf("ParseMarkdownItems() error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}

	first := items[0]
	if first.Item.URL != "https://example.com/a" {
		t.Fatalf("URL = %q", first.Item.URL)
	}
	if first.Item.Date == nil || first.Item.Date.Day() != 17 {
		t.Fatalf("Date = %v, want the 17th", first.Item.Date)
	}
	if first.Item.Title != "8月17日" {
		t.Fatalf("Title = %q, want date segment before first separator", first.Item.Title)
	}
	if !strings.HasPrefix(first.Raw, "- 8月17日") {
		t.Fatalf("Raw = %q", first.Raw)
	}

	second := items[1]
	if second.Item.URL != "" || second.Item.Date != nil {
		t.Fatalf("second = %+v, want no URL and no date", second.Item)
	}
	if len(second.Item.ID) != 12 {
		t.Fatalf("ID = %q, want 12 hex chars", second.Item.ID)
	}
}
