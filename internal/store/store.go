package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"horse.fit/weekly/internal/globaltime"
)

// Store exposes the warehouse operations the pipeline and the HTTP API use.
type Store struct {
	pool *Pool
	log  zerolog.Logger
}

func New(pool *Pool, log zerolog.Logger) *Store {
	return &Store{
		pool: pool,
		log:  log.With().Str("component", "store").Logger(),
	}
}

// InsertRaw appends one arrival to the raw layer. No dedup, no filtering.
func (s *Store) InsertRaw(ctx context.Context, row *RawItem) error {
	if err := s.pool.GORM().WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert raw item: %w", err)
	}
	return nil
}

// CleanedUpsert is the input to UpsertCleaned; identity fields are derived
// here so callers never hand-compute uid or week tags.
type CleanedUpsert struct {
	SourceID     string
	Title        string
	Summary      string
	Text         string
	Link         string
	URLNorm      string
	Category     string
	Region       string
	Tags         []string
	PublishedAt  *time.Time
	Status       int
	Confidence   map[string]float64
	Reason       string
	PlatformType int
	GameType     string
}

// UpsertCleaned writes one cleaned record, replacing any previous row with
// the same content identity.
func (s *Store) UpsertCleaned(ctx context.Context, in CleanedUpsert) (string, error) {
	url := in.URLNorm
	if url == "" {
		url = in.Link
	}
	uid := UID(url, in.Text)

	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	conf := in.Confidence
	if conf == nil {
		conf = map[string]float64{}
	}
	confJSON, err := json.Marshal(conf)
	if err != nil {
		return "", fmt.Errorf("marshal confidence: %w", err)
	}

	weekTag := ""
	if in.PublishedAt != nil {
		weekTag = WeekTag(*in.PublishedAt)
	}

	row := CleanedItem{
		UID:          uid,
		WID:          WID(in.SourceID, uid),
		Title:        in.Title,
		Summary:      in.Summary,
		Text:         in.Text,
		URL:          url,
		SourceID:     in.SourceID,
		Category:     in.Category,
		Region:       in.Region,
		Tags:         string(tagsJSON),
		PublishedAt:  in.PublishedAt,
		Status:       in.Status,
		WeekTag:      weekTag,
		Confidence:   string(confJSON),
		Reason:       in.Reason,
		PlatformType: in.PlatformType,
		GameType:     in.GameType,
	}

	err = s.pool.GORM().WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"wid", "title", "summary", "text", "url", "source_id", "category",
			"region", "tags", "published_at", "status", "week_tag",
			"confidence", "reason", "platform_type", "game_type", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("upsert cleaned item %s: %w", uid, err)
	}
	return uid, nil
}

// RefreshAggregates recomputes the weekly counts for every week touched in
// the lookback window, delete-then-insert so the refresh is idempotent.
func (s *Store) RefreshAggregates(ctx context.Context, lookbackDays int) error {
	since := globaltime.Now().AddDate(0, 0, -lookbackDays)

	return s.pool.GORM().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		weeks, err := touchedWeeks(tx, since, false)
		if err != nil {
			return fmt.Errorf("list touched weeks: %w", err)
		}
		if len(weeks) == 0 {
			return nil
		}
		if err := tx.Where("year_week IN ?", weeks).Delete(&AggregateRow{}).Error; err != nil {
			return fmt.Errorf("clear aggregates: %w", err)
		}

		insert := `
			INSERT INTO weekly_aggregates (year_week, source_id, category, cnt)
			SELECT week_tag,
			       source_id,
			       COALESCE(NULLIF(LOWER(category), ''), 'unknown'),
			       COUNT(*)
			FROM cleaned_items
			WHERE status = ? AND week_tag IN ?
			GROUP BY 1, 2, 3`
		if err := tx.Exec(insert, StatusAccepted, weeks).Error; err != nil {
			return fmt.Errorf("rebuild aggregates: %w", err)
		}
		s.log.Debug().Strs("weeks", weeks).Msg("weekly aggregates refreshed")
		return nil
	})
}

// RefreshRanked rebuilds the per-week ranking for the lookback window.
// Scores are computed in Go so the formula is testable without a database;
// ties break by score, then published date, then uid.
func (s *Store) RefreshRanked(ctx context.Context, lookbackDays, perWeekCap int) error {
	now := globaltime.Now()
	since := now.AddDate(0, 0, -lookbackDays)

	return s.pool.GORM().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		weeks, err := touchedWeeks(tx, since, true)
		if err != nil {
			return fmt.Errorf("list touched weeks: %w", err)
		}
		if len(weeks) == 0 {
			return nil
		}

		var items []CleanedItem
		err = tx.
			Where("status = ? AND week_tag IN ?", StatusAccepted, weeks).
			Find(&items).Error
		if err != nil {
			return fmt.Errorf("load accepted items: %w", err)
		}

		ranked := rankItems(now, items, perWeekCap)

		if err := tx.Where("year_week IN ?", weeks).Delete(&RankedItem{}).Error; err != nil {
			return fmt.Errorf("clear ranked items: %w", err)
		}
		if len(ranked) > 0 {
			if err := tx.CreateInBatches(ranked, 200).Error; err != nil {
				return fmt.Errorf("insert ranked items: %w", err)
			}
		}
		s.log.Debug().Strs("weeks", weeks).Int("items", len(ranked)).Msg("weekly ranking refreshed")
		return nil
	})
}

// touchedWeeks lists the distinct week tags of cleaned items published since
// the cutoff. acceptedOnly narrows to status 1 for the ranking refresh.
func touchedWeeks(tx *gorm.DB, since time.Time, acceptedOnly bool) ([]string, error) {
	q := tx.Model(&CleanedItem{}).
		Distinct("week_tag").
		Where("published_at >= ? AND week_tag <> ''", since)
	if acceptedOnly {
		q = q.Where("status = ?", StatusAccepted)
	}
	var weeks []string
	if err := q.Pluck("week_tag", &weeks).Error; err != nil {
		return nil, err
	}
	sort.Strings(weeks)
	return weeks, nil
}

// rankItems scores and orders accepted items week by week, keeping at most
// perWeekCap per week.
func rankItems(now time.Time, items []CleanedItem, perWeekCap int) []RankedItem {
	byWeek := make(map[string][]CleanedItem)
	weekOrder := make([]string, 0)
	for _, it := range items {
		if _, seen := byWeek[it.WeekTag]; !seen {
			weekOrder = append(weekOrder, it.WeekTag)
		}
		byWeek[it.WeekTag] = append(byWeek[it.WeekTag], it)
	}
	sort.Strings(weekOrder)

	out := make([]RankedItem, 0, len(items))
	for _, week := range weekOrder {
		group := byWeek[week]
		scores := make(map[string]float64, len(group))
		for _, it := range group {
			scores[it.UID] = RankScore(now, it.PublishedAt, it.Category, it.Summary)
		}
		sort.SliceStable(group, func(i, j int) bool {
			si, sj := scores[group[i].UID], scores[group[j].UID]
			if si != sj {
				return si > sj
			}
			pi, pj := group[i].PublishedAt, group[j].PublishedAt
			switch {
			case pi != nil && pj != nil && !pi.Equal(*pj):
				return pi.After(*pj)
			case pi != nil && pj == nil:
				return true
			case pi == nil && pj != nil:
				return false
			}
			return group[i].UID < group[j].UID
		})
		if perWeekCap > 0 && len(group) > perWeekCap {
			group = group[:perWeekCap]
		}
		for i, it := range group {
			out = append(out, RankedItem{
				YearWeek:    week,
				UID:         it.UID,
				Title:       it.Title,
				URL:         it.URL,
				Summary:     it.Summary,
				Category:    it.Category,
				SourceID:    it.SourceID,
				PublishedAt: it.PublishedAt,
				Score:       scores[it.UID],
				Rank:        i + 1,
			})
		}
	}
	return out
}
