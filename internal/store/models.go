// Package store is the four-layer warehouse behind the weekly pipeline:
// append-only raw arrivals, cleaned items keyed by content identity, weekly
// per-source aggregates, and a scored per-week ranking.
package store

import (
	"time"
)

// Cleaned-item statuses. Accepted rows feed the aggregate and ranked layers;
// the rest record why an item was filtered.
const (
	StatusAccepted    = 1
	StatusTooShort    = 2
	StatusAdLike      = 3
	StatusNotRelevant = 4
)

// RawItem is one feed entry exactly as collected. Duplicates are kept so
// upstream behavior stays traceable.
type RawItem struct {
	ID         int64      `gorm:"column:id;primaryKey;autoIncrement"`
	SourceID   string     `gorm:"column:source_id;type:text;not null;index:idx_raw_source"`
	Title      string     `gorm:"column:title;type:text;not null;default:''"`
	Link       string     `gorm:"column:link;type:text;not null;default:''"`
	URLNorm    string     `gorm:"column:url_norm;type:text;not null;default:'';index:idx_raw_url"`
	Published  *time.Time `gorm:"column:published_at;type:timestamptz;index:idx_raw_published"`
	Text       string     `gorm:"column:text;type:text;not null;default:''"`
	SummaryRaw string     `gorm:"column:summary_raw;type:text;not null;default:''"`
	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (RawItem) TableName() string { return "raw_items" }

// CleanedItem is the post-filter, post-classification record. uid is the
// SHA-1 of the normalized link (or of the body when no link exists), so
// re-runs upsert instead of duplicating.
type CleanedItem struct {
	UID          string     `gorm:"column:uid;type:char(40);primaryKey"`
	WID          string     `gorm:"column:wid;type:text;not null;default:''"`
	Title        string     `gorm:"column:title;type:text;not null"`
	Summary      string     `gorm:"column:summary;type:text;not null;default:''"`
	Text         string     `gorm:"column:text;type:text;not null;default:''"`
	URL          string     `gorm:"column:url;type:text;not null"`
	SourceID     string     `gorm:"column:source_id;type:text;not null;index:idx_cleaned_source"`
	Category     string     `gorm:"column:category;type:text;not null;default:'';index:idx_cleaned_category"`
	Region       string     `gorm:"column:region;type:text;not null;default:''"`
	Tags         string     `gorm:"column:tags;type:jsonb;not null;default:'[]'"`
	PublishedAt  *time.Time `gorm:"column:published_at;type:timestamptz;index:idx_cleaned_published"`
	Status       int        `gorm:"column:status;type:integer;not null;index:idx_cleaned_status"`
	WeekTag      string     `gorm:"column:week_tag;type:text;not null;default:'';index:idx_cleaned_week"`
	Confidence   string     `gorm:"column:confidence;type:jsonb;not null;default:'{}'"`
	Reason       string     `gorm:"column:reason;type:text;not null;default:''"`
	PlatformType int        `gorm:"column:platform_type;type:integer;not null;default:0;index:idx_cleaned_platform"`
	GameType     string     `gorm:"column:game_type;type:text;not null;default:''"`
	CreatedAt    time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (CleanedItem) TableName() string { return "cleaned_items" }

// AggregateRow counts accepted items per week, source, and category.
type AggregateRow struct {
	YearWeek string `gorm:"column:year_week;type:text;primaryKey"`
	SourceID string `gorm:"column:source_id;type:text;primaryKey"`
	Category string `gorm:"column:category;type:text;primaryKey"`
	Count    int    `gorm:"column:cnt;type:integer;not null"`
}

func (AggregateRow) TableName() string { return "weekly_aggregates" }

// RankedItem is one scored entry of a week's ranking.
type RankedItem struct {
	YearWeek    string     `gorm:"column:year_week;type:text;primaryKey"`
	UID         string     `gorm:"column:uid;type:char(40);primaryKey"`
	Title       string     `gorm:"column:title;type:text;not null"`
	URL         string     `gorm:"column:url;type:text;not null"`
	Summary     string     `gorm:"column:summary;type:text;not null;default:''"`
	Category    string     `gorm:"column:category;type:text;not null"`
	SourceID    string     `gorm:"column:source_id;type:text;not null"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz"`
	Score       float64    `gorm:"column:score;type:double precision;not null"`
	Rank        int        `gorm:"column:rank;type:integer;not null"`
}

func (RankedItem) TableName() string { return "ranked_items" }

func autoMigrateModels() []any {
	return []any{
		&RawItem{},
		&CleanedItem{},
		&AggregateRow{},
		&RankedItem{},
	}
}
