package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/weekly/internal/classify"
	"horse.fit/weekly/internal/config"
	"horse.fit/weekly/internal/feed"
	"horse.fit/weekly/internal/globaltime"
	"horse.fit/weekly/internal/oracle"
	"horse.fit/weekly/internal/sources"
	"horse.fit/weekly/internal/store"
)

type fakeWarehouse struct {
	raw        []*store.RawItem
	cleaned    []store.CleanedUpsert
	aggregates int
	ranked     int
}

func (f *fakeWarehouse) InsertRaw(_ context.Context, row *store.RawItem) error {
	f.raw = append(f.raw, row)
	return nil
}

func (f *fakeWarehouse) UpsertCleaned(_ context.Context, in store.CleanedUpsert) (string, error) {
	f.cleaned = append(f.cleaned, in)
	return store.UID(in.URLNorm, in.Text), nil
}

func (f *fakeWarehouse) RefreshAggregates(context.Context, int) error {
	f.aggregates++
	return nil
}

func (f *fakeWarehouse) RefreshRanked(context.Context, int, int) error {
	f.ranked++
	return nil
}

func (f *fakeWarehouse) byStatus(status int) []store.CleanedUpsert {
	var out []store.CleanedUpsert
	for _, c := range f.cleaned {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out
}

type fakeCollector struct {
	items map[string][]feed.Item
	errs  map[string]error
}

func (f *fakeCollector) FetchSource(_ context.Context, sourceID string) ([]feed.Item, error) {
	if err := f.errs[sourceID]; err != nil {
		return nil, err
	}
	return f.items[sourceID], nil
}

type fakeAnalyzer struct {
	byTitle map[string]*oracle.Analysis
	err     error
	calls   int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, title, _ string, _ []string) (*oracle.Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.byTitle[title]; ok {
		return a, nil
	}
	return &oracle.Analysis{
		Category:   classify.CategoryNews,
		Region:     classify.RegionCN,
		Summary:    "默认摘要",
		Confidence: 0.7,
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Timezone:              "UTC",
		DaysBack:              7,
		MinTextLength:         20,
		EnableAdFilter:        true,
		AdScoreThreshold:      5,
		EnableLLMIgnore:       true,
		EnableNearDupDrop:     true,
		HammingThreshold:      4,
		NearDupKeepPolicy:     "earliest",
		EnableCrossDupDrop:    true,
		CrossKeepPolicy:       "prefer_weight_then_earliest",
		AggregateLookbackDays: 60,
		RankedLookbackDays:    30,
		PerWeekCap:            200,
	}
}

func testSources() *sources.Config {
	return &sources.Config{Weights: map[string]sources.Source{
		"alpha": {Weight: 3.5, Expertise: []string{"要闻"}},
		"beta":  {Weight: 1.0},
	}}
}

func datedItem(sourceID, title, link, text string, published time.Time) feed.Item {
	d := published
	return feed.Item{
		SourceID: sourceID,
		Title:    title,
		Link:     link,
		URLNorm:  feed.NormalizeURL(link),
		Date:     &d,
		Text:     text,
	}
}

func longText(seed string) string {
	return strings.Repeat(seed+"，", 5) + "相关细节见原文。"
}

func TestServiceRunHappyPath(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{
		"alpha": {
			datedItem("alpha", "政策发布", "https://a.example/policy?utm=1", longText("监管政策调整"), now.Add(-24*time.Hour)),
			// Same normalized URL as the first item.
			datedItem("alpha", "政策发布转载", "https://a.example/policy#frag", longText("监管政策调整转载"), now.Add(-20*time.Hour)),
			datedItem("alpha", "旧闻", "https://a.example/old", longText("窗口之外的旧新闻"), now.Add(-30*24*time.Hour)),
		},
		"beta": {
			datedItem("beta", "短讯", "https://b.example/short", "太短", now.Add(-2*time.Hour)),
			datedItem("beta", "新游上线", "https://b.example/launch", longText("某新作正式上线并公布玩法细节"), now.Add(-3*time.Hour)),
			{SourceID: "beta", Title: "无日期", Link: "https://b.example/undated", URLNorm: "https://b.example/undated", Text: longText("缺少发布时间")},
		},
	}}
	an := &fakeAnalyzer{byTitle: map[string]*oracle.Analysis{
		"政策发布": {
			Category:   classify.CategoryNews,
			Region:     classify.RegionCN,
			Summary:    "监管政策调整落地",
			Tags:       []string{"政策"},
			Confidence: 0.9,
		},
		"新游上线": {
			Category:   classify.CategoryProduct,
			Region:     classify.RegionCN,
			Platform:   classify.PlatformMobile,
			Summary:    "新作上线并公布玩法",
			Confidence: 0.8,
			GameType:   "MMO",
		},
	}}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, an, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Fetched != 6 {
		t.Fatalf("Fetched = %d, want 6", res.Fetched)
	}
	if res.InWindow != 4 {
		t.Fatalf("InWindow = %d, want 4 (old and undated items excluded)", res.InWindow)
	}
	if res.URLDuplicates != 1 {
		t.Fatalf("URLDuplicates = %d, want 1", res.URLDuplicates)
	}
	if res.TooShort != 1 {
		t.Fatalf("TooShort = %d, want 1", res.TooShort)
	}
	if res.Accepted != 2 {
		t.Fatalf("Accepted = %d, want 2", res.Accepted)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("Entries = %d, want 2", len(res.Entries))
	}

	if len(wh.raw) != 6 {
		t.Fatalf("raw rows = %d, want every fetched item recorded", len(wh.raw))
	}
	if got := len(wh.byStatus(store.StatusTooShort)); got != 1 {
		t.Fatalf("too-short rows = %d, want 1", got)
	}
	accepted := wh.byStatus(store.StatusAccepted)
	if len(accepted) != 2 {
		t.Fatalf("accepted rows = %d, want 2", len(accepted))
	}
	for _, row := range accepted {
		if row.URLNorm == "https://b.example/launch" {
			if row.GameType != "MMO" {
				t.Fatalf("game type = %q, want MMO for a mobile product", row.GameType)
			}
			if row.Category != string(classify.CategoryProduct) {
				t.Fatalf("category = %q, want product", row.Category)
			}
		}
		if row.URLNorm == "https://a.example/policy" {
			if !strings.Contains(row.Summary, "8月19日") {
				t.Fatalf("news summary %q should carry the date prefix", row.Summary)
			}
			if !strings.Contains(row.Summary, "[原文](https://a.example/policy)") {
				t.Fatalf("news summary %q should link the normalized URL", row.Summary)
			}
		}
	}

	if wh.aggregates != 1 || wh.ranked != 1 {
		t.Fatalf("refresh calls = (%d, %d), want (1, 1)", wh.aggregates, wh.ranked)
	}
}

func TestServiceRunFetchErrorContinues(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	wh := &fakeWarehouse{}
	coll := &fakeCollector{
		items: map[string][]feed.Item{
			"beta": {datedItem("beta", "正常条目", "https://b.example/ok", longText("照常发布的行业消息"), now.Add(-time.Hour))},
		},
		errs: map[string]error{"alpha": errors.New("connection refused")},
	}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, &fakeAnalyzer{}, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FetchErrors != 1 {
		t.Fatalf("FetchErrors = %d, want 1", res.FetchErrors)
	}
	if res.Accepted != 1 {
		t.Fatalf("Accepted = %d, want the surviving source's item", res.Accepted)
	}
}

func TestServiceRunAnalyzerFallback(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	wh := &fakeWarehouse{}
	text := "版号审批政策再次收紧" + strings.Repeat("，市场关注后续影响", 5) + "。"
	coll := &fakeCollector{items: map[string][]feed.Item{
		"beta": {datedItem("beta", "政策收紧", "https://b.example/policy", text, now.Add(-time.Hour))},
	}}
	an := &fakeAnalyzer{err: errors.New("upstream 500")}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, an, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Fallbacks != 1 {
		t.Fatalf("Fallbacks = %d, want 1", res.Fallbacks)
	}
	if res.Accepted != 1 {
		t.Fatalf("Accepted = %d, want 1", res.Accepted)
	}
	row := wh.byStatus(store.StatusAccepted)[0]
	if row.Category != string(classify.CategoryNews) {
		t.Fatalf("fallback category = %q, want news for a policy headline", row.Category)
	}
}

func TestServiceRunNilAnalyzerUsesFallback(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{
		"beta": {datedItem("beta", "普通消息", "https://b.example/plain", longText("没有明显关键词的内容"), now.Add(-time.Hour))},
	}}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, nil, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Fallbacks != 1 || res.Accepted != 1 {
		t.Fatalf("Fallbacks = %d, Accepted = %d, want 1 and 1", res.Fallbacks, res.Accepted)
	}
}

func TestServiceRunIgnoreVerdict(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{
		"beta": {datedItem("beta", "无关内容", "https://b.example/offtopic", longText("与行业无关的杂谈内容"), now.Add(-time.Hour))},
	}}
	an := &fakeAnalyzer{byTitle: map[string]*oracle.Analysis{
		"无关内容": {Category: classify.CategoryIgnore, Summary: "无关", Confidence: 0.9},
	}}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, an, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IgnoreDrops != 1 {
		t.Fatalf("IgnoreDrops = %d, want 1", res.IgnoreDrops)
	}
	if res.Accepted != 0 {
		t.Fatalf("Accepted = %d, want 0", res.Accepted)
	}
	if got := len(wh.byStatus(store.StatusNotRelevant)); got != 1 {
		t.Fatalf("not-relevant rows = %d, want 1", got)
	}
}

func TestServiceRunAdFilter(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	promo := "限时优惠！！充值返利，加微信咨询 https://promo.example/buy 立即抢购，名额有限！！"
	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{
		"beta": {datedItem("beta", "超值礼包", "https://b.example/promo", promo+strings.Repeat("速来速购", 10), now.Add(-time.Hour))},
	}}
	an := &fakeAnalyzer{}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, an, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.AdDrops != 1 {
		t.Fatalf("AdDrops = %d, want 1", res.AdDrops)
	}
	if an.calls != 0 {
		t.Fatalf("analyzer calls = %d, want 0 for an ad-gated item", an.calls)
	}
	if got := len(wh.byStatus(store.StatusAdLike)); got != 1 {
		t.Fatalf("ad-like rows = %d, want 1", got)
	}
}

func TestServiceRunNearDuplicateWithinSource(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	// Same raw summary, different article bodies: the within-source pass
	// hashes the summary, so the pair still merges.
	now := globaltime.Now()
	summary := "某公司发布第二季度财报，营收同比增长，其中移动端贡献过半"
	first := datedItem("beta", "财报发布", "https://b.example/q2", longText("财报正文甲包含完整分项数据"), now.Add(-5*time.Hour))
	first.SummaryRaw = summary
	second := datedItem("beta", "财报发布（更新）", "https://b.example/q2-update", longText("财报正文乙补充了电话会议纪要"), now.Add(-2*time.Hour))
	second.SummaryRaw = summary

	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{"beta": {first, second}}}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, &fakeAnalyzer{}, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WithinSourceDrops != 1 {
		t.Fatalf("WithinSourceDrops = %d, want 1", res.WithinSourceDrops)
	}
	if res.Accepted != 1 {
		t.Fatalf("Accepted = %d, want 1", res.Accepted)
	}
	row := wh.byStatus(store.StatusAccepted)[0]
	if row.URLNorm != "https://b.example/q2" {
		t.Fatalf("kept %q, want the earliest arrival", row.URLNorm)
	}
}

func TestServiceRunNearDupComparesSummariesNotBodies(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	// Identical bodies but clearly different summaries stay separate: both
	// passes compare the raw summary when one is present.
	now := globaltime.Now()
	body := longText("两篇报道引用了同一份通稿正文")
	first := datedItem("beta", "新作定档", "https://b.example/date", body, now.Add(-5*time.Hour))
	first.SummaryRaw = longText("某新作宣布十月上线并开启预约")
	second := datedItem("beta", "海外营收", "https://b.example/revenue", body, now.Add(-2*time.Hour))
	second.SummaryRaw = longText("第三方报告显示海外市场营收创新高")

	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{"beta": {first, second}}}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, &fakeAnalyzer{}, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WithinSourceDrops != 0 || res.CrossSourceDrops != 0 {
		t.Fatalf("drops = (%d, %d), want none for distinct summaries", res.WithinSourceDrops, res.CrossSourceDrops)
	}
	if res.Accepted != 2 {
		t.Fatalf("Accepted = %d, want 2", res.Accepted)
	}
}

func TestServiceRunEmptyIdentitySkipped(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	now := globaltime.Now()
	noURL := feed.Item{
		SourceID: "beta",
		Title:    "缺失链接",
		Text:     longText("条目没有可用的规范化链接"),
		Date:     &now,
	}
	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{
		"beta": {
			noURL,
			datedItem("beta", "正常条目", "https://b.example/ok", longText("带有正常链接的行业消息"), now.Add(-time.Hour)),
		},
	}}

	svc := New(testConfig(), zerolog.Nop(), wh, coll, &fakeAnalyzer{}, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.EmptyIdentity != 1 {
		t.Fatalf("EmptyIdentity = %d, want 1", res.EmptyIdentity)
	}
	if res.Accepted != 1 {
		t.Fatalf("Accepted = %d, want only the identified item", res.Accepted)
	}
}

func TestServiceRunHardWeightFromConfig(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	// At weight 1.0 the default threshold keeps the verdict (news); lowering
	// HARD_WEIGHT to 1.0 pins the source's declared expertise instead.
	now := globaltime.Now()
	srcs := &sources.Config{Weights: map[string]sources.Source{
		"gamma": {Weight: 1.0, Expertise: []string{"产品"}},
	}}
	an := &fakeAnalyzer{byTitle: map[string]*oracle.Analysis{
		"评测文章": {Category: classify.CategoryNews, Summary: "一篇产品评测", Confidence: 0.9},
	}}
	cfg := testConfig()
	cfg.HardWeight = 1.0

	wh := &fakeWarehouse{}
	coll := &fakeCollector{items: map[string][]feed.Item{
		"gamma": {datedItem("gamma", "评测文章", "https://g.example/review", longText("围绕新产品的深入评测"), now.Add(-time.Hour))},
	}}

	svc := New(cfg, zerolog.Nop(), wh, coll, an, srcs)
	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	row := wh.byStatus(store.StatusAccepted)[0]
	if row.Category != string(classify.CategoryProduct) {
		t.Fatalf("category = %q, want the pinned expertise bucket", row.Category)
	}
}

func TestServiceRunBadTimezone(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus"
	svc := New(cfg, zerolog.Nop(), &fakeWarehouse{}, &fakeCollector{}, nil, testSources())
	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatalf("Run with a bad timezone should fail")
	}
}

func TestServiceRunWindowBounds(t *testing.T) {
	globaltime.SetMockTime(time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC))
	t.Cleanup(globaltime.ResetTime)

	svc := New(testConfig(), zerolog.Nop(), &fakeWarehouse{}, &fakeCollector{}, nil, testSources())
	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := res.WindowEnd.Sub(res.WindowStart); got != 7*24*time.Hour {
		t.Fatalf("window span = %v, want 7 days", got)
	}
	if res.Fetched != 0 {
		t.Fatalf("Fetched = %d, want 0 with no sources returning items", res.Fetched)
	}
}
