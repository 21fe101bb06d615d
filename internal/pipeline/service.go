// Package pipeline runs the weekly collection: fetch feeds, window and
// deduplicate, filter, classify, persist, and hand the survivors to the
// report renderer.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/weekly/internal/classify"
	"horse.fit/weekly/internal/config"
	"horse.fit/weekly/internal/dedup"
	"horse.fit/weekly/internal/feed"
	"horse.fit/weekly/internal/filter"
	"horse.fit/weekly/internal/globaltime"
	"horse.fit/weekly/internal/oracle"
	"horse.fit/weekly/internal/report"
	"horse.fit/weekly/internal/sources"
	"horse.fit/weekly/internal/store"
)

// Warehouse is the slice of the store the pipeline writes to.
type Warehouse interface {
	InsertRaw(ctx context.Context, row *store.RawItem) error
	UpsertCleaned(ctx context.Context, in store.CleanedUpsert) (string, error)
	RefreshAggregates(ctx context.Context, lookbackDays int) error
	RefreshRanked(ctx context.Context, lookbackDays, perWeekCap int) error
}

// Collector fetches one source's feed items.
type Collector interface {
	FetchSource(ctx context.Context, sourceID string) ([]feed.Item, error)
}

// Analyzer classifies and summarizes one article. nil means the run uses the
// deterministic fallback for every item.
type Analyzer interface {
	Analyze(ctx context.Context, title, text string, priorExpertise []string) (*oracle.Analysis, error)
}

// RunResult counts what happened at each stage of one run.
type RunResult struct {
	Fetched           int
	FetchErrors       int
	InWindow          int
	EmptyIdentity     int
	URLDuplicates     int
	TooShort          int
	WithinSourceDrops int
	CrossSourceDrops  int
	AdDrops           int
	IgnoreDrops       int
	Fallbacks         int
	Accepted          int

	WindowStart time.Time
	WindowEnd   time.Time
	Entries     []report.Entry
}

type Service struct {
	cfg       *config.Config
	log       zerolog.Logger
	warehouse Warehouse
	collector Collector
	analyzer  Analyzer
	sources   *sources.Config
}

func New(cfg *config.Config, log zerolog.Logger, wh Warehouse, coll Collector, an Analyzer, srcs *sources.Config) *Service {
	return &Service{
		cfg:       cfg,
		log:       log.With().Str("component", "pipeline").Logger(),
		warehouse: wh,
		collector: coll,
		analyzer:  an,
		sources:   srcs,
	}
}

// Run executes one full collection pass and refreshes the derived layers.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
	}
	start, end := globaltime.Window(loc, s.cfg.DaysBack)

	result := &RunResult{WindowStart: start, WindowEnd: end}

	collected, err := s.collect(ctx, result)
	if err != nil {
		return nil, err
	}

	windowed := s.window(collected, start, end, result)
	unique := s.dropURLDuplicates(windowed, result)
	longEnough, err := s.dropShort(ctx, unique, result)
	if err != nil {
		return nil, err
	}
	survivors := s.dropNearDuplicates(longEnough, result)

	if err := s.classifyAndStore(ctx, survivors, result); err != nil {
		return nil, err
	}

	if err := s.warehouse.RefreshAggregates(ctx, s.cfg.AggregateLookbackDays); err != nil {
		return nil, fmt.Errorf("refresh aggregates: %w", err)
	}
	if err := s.warehouse.RefreshRanked(ctx, s.cfg.RankedLookbackDays, s.cfg.PerWeekCap); err != nil {
		return nil, fmt.Errorf("refresh ranking: %w", err)
	}

	s.log.Info().
		Int("fetched", result.Fetched).
		Int("in_window", result.InWindow).
		Int("url_duplicates", result.URLDuplicates).
		Int("too_short", result.TooShort).
		Int("near_dup_within", result.WithinSourceDrops).
		Int("near_dup_across", result.CrossSourceDrops).
		Int("ad_drops", result.AdDrops).
		Int("ignored", result.IgnoreDrops).
		Int("fallbacks", result.Fallbacks).
		Int("accepted", result.Accepted).
		Msg("pipeline run complete")
	return result, nil
}

// collect pulls every configured source and appends each arrival to the raw
// layer. A failing source is logged and skipped; the run continues.
func (s *Service) collect(ctx context.Context, result *RunResult) ([]feed.Item, error) {
	var all []feed.Item
	for _, sourceID := range s.sources.IDs() {
		items, err := s.collector.FetchSource(ctx, sourceID)
		if err != nil {
			result.FetchErrors++
			s.log.Warn().Err(err).Str("source", sourceID).Msg("source fetch failed")
			continue
		}
		for i := range items {
			if err := s.warehouse.InsertRaw(ctx, &store.RawItem{
				SourceID:   items[i].SourceID,
				Title:      items[i].Title,
				Link:       items[i].Link,
				URLNorm:    items[i].URLNorm,
				Published:  items[i].Date,
				Text:       items[i].Text,
				SummaryRaw: items[i].SummaryRaw,
			}); err != nil {
				return nil, fmt.Errorf("record raw arrival: %w", err)
			}
		}
		all = append(all, items...)
	}
	result.Fetched = len(all)
	return all, nil
}

// window keeps dated items inside [start, end]; undated items are out.
func (s *Service) window(items []feed.Item, start, end time.Time, result *RunResult) []feed.Item {
	kept := items[:0:0]
	for _, it := range items {
		if it.Date == nil {
			continue
		}
		if it.Date.Before(start) || it.Date.After(end) {
			continue
		}
		kept = append(kept, it)
	}
	result.InWindow = len(kept)
	return kept
}

// dropURLDuplicates keeps the first arrival per normalized URL. Items with
// no usable identity are counted and skipped rather than failing the run.
func (s *Service) dropURLDuplicates(items []feed.Item, result *RunResult) []feed.Item {
	seen := make(map[string]struct{}, len(items))
	kept := items[:0:0]
	for _, it := range items {
		if it.URLNorm == "" {
			result.EmptyIdentity++
			continue
		}
		if _, dup := seen[it.URLNorm]; dup {
			result.URLDuplicates++
			continue
		}
		seen[it.URLNorm] = struct{}{}
		kept = append(kept, it)
	}
	return kept
}

// dropShort records under-length items with the too-short status.
func (s *Service) dropShort(ctx context.Context, items []feed.Item, result *RunResult) ([]feed.Item, error) {
	kept := items[:0:0]
	for _, it := range items {
		if filter.TooShort(it.Text, s.cfg.MinTextLength) {
			result.TooShort++
			if err := s.storeFiltered(ctx, it, store.StatusTooShort); err != nil {
				return nil, err
			}
			continue
		}
		kept = append(kept, it)
	}
	return kept, nil
}

// dropNearDuplicates runs the within-source and cross-source greedy passes.
// The within-source pass compares raw summaries only; the cross-source pass
// falls back to the full text for feeds that carry no summary.
func (s *Service) dropNearDuplicates(items []feed.Item, result *RunResult) []feed.Item {
	if len(items) == 0 {
		return items
	}

	if s.cfg.EnableNearDupDrop {
		policy, _ := config.ParseKeepPolicy(s.cfg.NearDupKeepPolicy)
		kept, dropped := dedup.DropWithinSource(s.dedupItems(items, false), s.cfg.HammingThreshold, policy)
		result.WithinSourceDrops = dropped
		items = survivorsByURL(items, kept)
	}
	if s.cfg.EnableCrossDupDrop {
		policy, _ := config.ParseKeepPolicy(s.cfg.CrossKeepPolicy)
		kept, dropped := dedup.DropAcrossSources(s.dedupItems(items, true), s.cfg.CrossHammingThreshold(), policy)
		result.CrossSourceDrops = dropped

		// Survivors stay in policy order here; downstream stages see the
		// preferred item of each neighborhood first.
		byURL := make(map[string]feed.Item, len(items))
		for _, it := range items {
			byURL[it.URLNorm] = it
		}
		out := items[:0:0]
		for _, d := range kept {
			out = append(out, byURL[d.ID])
		}
		items = out
	}
	return items
}

// dedupItems projects feed items into the comparison shape. URL dedup has
// already run, so the normalized URL is a unique identity here.
func (s *Service) dedupItems(items []feed.Item, fallbackToText bool) []*dedup.Item {
	out := make([]*dedup.Item, 0, len(items))
	for _, it := range items {
		text := it.SummaryRaw
		if fallbackToText && text == "" {
			text = it.Text
		}
		weight, _ := s.sources.PriorsFor(it.SourceID)
		out = append(out, &dedup.Item{
			ID:       it.URLNorm,
			SourceID: it.SourceID,
			Title:    it.Title,
			Text:     text,
			URL:      it.Link,
			Date:     it.Date,
			Weight:   weight,
		})
	}
	return out
}

func survivorsByURL(items []feed.Item, kept []*dedup.Item) []feed.Item {
	keep := make(map[string]struct{}, len(kept))
	for _, d := range kept {
		keep[d.ID] = struct{}{}
	}
	out := items[:0:0]
	for _, it := range items {
		if _, ok := keep[it.URLNorm]; ok {
			out = append(out, it)
		}
	}
	return out
}

// classifyAndStore runs the per-item tail of the pipeline: ad gate, oracle
// or fallback classification, posterior resolution, and the accepted upsert.
func (s *Service) classifyAndStore(ctx context.Context, items []feed.Item, result *RunResult) error {
	for _, it := range items {
		if s.cfg.EnableAdFilter {
			if score := filter.AdScore(it.Title, it.Text); score >= s.cfg.AdScoreThreshold {
				result.AdDrops++
				s.log.Debug().Str("title", it.Title).Int("score", score).Msg("promotional item dropped")
				if err := s.storeFiltered(ctx, it, store.StatusAdLike); err != nil {
					return err
				}
				continue
			}
		}

		weight, expertise := s.sources.PriorsFor(it.SourceID)
		analysis := s.analyze(ctx, it, expertise, result)

		if s.cfg.EnableLLMIgnore && analysis.Category == classify.CategoryIgnore {
			result.IgnoreDrops++
			if err := s.storeFiltered(ctx, it, store.StatusNotRelevant); err != nil {
				return err
			}
			continue
		}

		final, _ := classify.Resolve(classify.Verdict{
			Category:   analysis.Category,
			Region:     analysis.Region,
			Tags:       analysis.Tags,
			Confidence: analysis.Confidence,
		}, classify.Priors{Weight: weight, Expertise: expertise, HardWeight: s.cfg.HardWeight})

		gameType := ""
		if final == classify.CategoryProduct && analysis.Platform == classify.PlatformMobile {
			gameType = analysis.GameType
		}

		line := report.FormatLine(it.Date, analysis.Summary, it.URLNorm, final == classify.CategoryNews)

		if _, err := s.warehouse.UpsertCleaned(ctx, store.CleanedUpsert{
			SourceID:     it.SourceID,
			Title:        it.Title,
			Summary:      line,
			Text:         it.Text,
			Link:         it.Link,
			URLNorm:      it.URLNorm,
			Category:     string(final),
			Region:       string(analysis.Region),
			Tags:         analysis.Tags,
			PublishedAt:  it.Date,
			Status:       store.StatusAccepted,
			Confidence:   map[string]float64{"category": analysis.Confidence},
			Reason:       analysis.Reason,
			PlatformType: int(analysis.Platform),
			GameType:     gameType,
		}); err != nil {
			return fmt.Errorf("store accepted item: %w", err)
		}

		result.Accepted++
		result.Entries = append(result.Entries, report.Entry{
			Category: final,
			Region:   analysis.Region,
			Platform: analysis.Platform,
			GameType: gameType,
			Summary:  analysis.Summary,
			Link:     it.URLNorm,
			Date:     it.Date,
		})
	}
	return nil
}

// analyze consults the oracle when one is wired, falling back to the keyword
// classifier on error or when no oracle is configured.
func (s *Service) analyze(ctx context.Context, it feed.Item, expertise []string, result *RunResult) *oracle.Analysis {
	if s.analyzer != nil {
		analysis, err := s.analyzer.Analyze(ctx, it.Title, feed.SanitizeForOracle(it.Text), expertise)
		if err == nil {
			return analysis
		}
		s.log.Warn().Err(err).Str("title", it.Title).Msg("classification fell back to keywords")
	}
	result.Fallbacks++
	v := classify.FallbackVerdict(it.Title, it.Text)
	return &oracle.Analysis{
		Category:   v.Category,
		Region:     v.Region,
		Platform:   v.Platform,
		Summary:    v.Summary,
		Tags:       v.Tags,
		Confidence: v.Confidence,
	}
}

func (s *Service) storeFiltered(ctx context.Context, it feed.Item, status int) error {
	if _, err := s.warehouse.UpsertCleaned(ctx, store.CleanedUpsert{
		SourceID:    it.SourceID,
		Title:       it.Title,
		Summary:     it.SummaryRaw,
		Text:        it.Text,
		Link:        it.Link,
		URLNorm:     it.URLNorm,
		PublishedAt: it.Date,
		Status:      status,
	}); err != nil {
		return fmt.Errorf("store filtered item (status %d): %w", status, err)
	}
	return nil
}
