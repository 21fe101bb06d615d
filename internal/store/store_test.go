package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/weekly/internal/config"
	"horse.fit/weekly/internal/globaltime"
)

// newTestStore connects to the database named by DATABASE_URL, skipping the
// test when none is configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping database-backed test")
	}

	cfg := &config.Config{DatabaseURL: dsn, DBMinConns: 1, DBMaxConns: 4}
	pool, err := NewPool(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	return New(pool, zerolog.Nop())
}

func TestWarehouseRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	globaltime.SetMockTime(now)
	t.Cleanup(globaltime.ResetTime)

	published := now.AddDate(0, 0, -2)
	link := "https://example.com/roundtrip-" + now.Format("20060102150405")

	if err := s.InsertRaw(ctx, &RawItem{
		SourceID:  "test-source",
		Title:     "测试标题",
		Link:      link,
		URLNorm:   link,
		Published: &published,
		Text:      "title:测试标题|summary:|content:正文",
	}); err != nil {
		t.Fatalf("InsertRaw() error: %v", err)
	}

	uid, err := s.UpsertCleaned(ctx, CleanedUpsert{
		SourceID:    "test-source",
		Title:       "测试标题",
		Summary:     "一句话摘要。",
		Text:        "正文内容",
		Link:        link,
		URLNorm:     link,
		Category:    "market",
		Region:      "cn",
		Tags:        []string{"市场数据"},
		PublishedAt: &published,
		Status:      StatusAccepted,
	})
	if err != nil {
		t.Fatalf("UpsertCleaned() error: %v", err)
	}

	// Second upsert with the same link must update in place.
	uid2, err := s.UpsertCleaned(ctx, CleanedUpsert{
		SourceID:    "test-source",
		Title:       "测试标题（改）",
		Summary:     "更新后的摘要。",
		Text:        "正文内容",
		Link:        link,
		URLNorm:     link,
		Category:    "market",
		Region:      "cn",
		PublishedAt: &published,
		Status:      StatusAccepted,
	})
	if err != nil {
		t.Fatalf("UpsertCleaned() second error: %v", err)
	}
	if uid != uid2 {
		t.Fatalf("uid changed across upserts: %s vs %s", uid, uid2)
	}

	if err := s.RefreshAggregates(ctx, 60); err != nil {
		t.Fatalf("RefreshAggregates() error: %v", err)
	}
	if err := s.RefreshRanked(ctx, 30, 200); err != nil {
		t.Fatalf("RefreshRanked() error: %v", err)
	}

	week := WeekTag(published)
	aggs, err := s.WeekAggregates(ctx, week)
	if err != nil {
		t.Fatalf("WeekAggregates() error: %v", err)
	}
	found := false
	for _, a := range aggs {
		if a.SourceID == "test-source" && a.Category == "market" && a.Count >= 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("aggregate row missing for %s: %+v", week, aggs)
	}

	top, err := s.WeekTop(ctx, week, 50)
	if err != nil {
		t.Fatalf("WeekTop() error: %v", err)
	}
	seen := false
	for _, r := range top {
		if r.UID == uid {
			seen = true
			if r.Title != "测试标题（改）" {
				t.Fatalf("ranked title = %q, want updated title", r.Title)
			}
		}
	}
	if !seen {
		t.Fatalf("uid %s missing from week top", uid)
	}

	// Refreshing again must be idempotent: both layers rebuild to the same
	// rows in the same order.
	if err := s.RefreshAggregates(ctx, 60); err != nil {
		t.Fatalf("RefreshAggregates() second error: %v", err)
	}
	if err := s.RefreshRanked(ctx, 30, 200); err != nil {
		t.Fatalf("RefreshRanked() second error: %v", err)
	}
	aggs2, err := s.WeekAggregates(ctx, week)
	if err != nil {
		t.Fatalf("WeekAggregates() after second refresh: %v", err)
	}
	if len(aggs2) != len(aggs) {
		t.Fatalf("aggregate rows changed across refreshes: %d vs %d", len(aggs), len(aggs2))
	}
	top2, err := s.WeekTop(ctx, week, 50)
	if err != nil {
		t.Fatalf("WeekTop() after second refresh: %v", err)
	}
	if len(top2) != len(top) {
		t.Fatalf("ranked rows changed across refreshes: %d vs %d", len(top), len(top2))
	}
	for i := range top {
		if top[i].UID != top2[i].UID || top[i].Rank != top2[i].Rank || top[i].Score != top2[i].Score {
			t.Fatalf("ranked row %d changed across refreshes: %+v vs %+v", i, top[i], top2[i])
		}
	}

	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error: %v", err)
	}
	if counts.CleanedItems < 1 || counts.ByStatus[StatusAccepted] < 1 {
		t.Fatalf("Counts() = %+v, want at least one accepted item", counts)
	}
}
