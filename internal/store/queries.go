package store

import (
	"context"
	"fmt"
)

// LayerCounts summarizes warehouse health for the stats command and the
// status endpoint.
type LayerCounts struct {
	RawItems     int64          `json:"raw_items"`
	CleanedItems int64          `json:"cleaned_items"`
	ByStatus     map[int]int64  `json:"by_status"`
	Aggregates   int64          `json:"aggregates"`
	RankedItems  int64          `json:"ranked_items"`
	Weeks        map[string]int `json:"weeks"`
}

func (s *Store) Counts(ctx context.Context) (*LayerCounts, error) {
	out := &LayerCounts{
		ByStatus: make(map[int]int64),
		Weeks:    make(map[string]int),
	}

	db := s.pool.GORM().WithContext(ctx)
	if err := db.Model(&RawItem{}).Count(&out.RawItems).Error; err != nil {
		return nil, fmt.Errorf("count raw items: %w", err)
	}
	if err := db.Model(&CleanedItem{}).Count(&out.CleanedItems).Error; err != nil {
		return nil, fmt.Errorf("count cleaned items: %w", err)
	}
	if err := db.Model(&AggregateRow{}).Count(&out.Aggregates).Error; err != nil {
		return nil, fmt.Errorf("count aggregates: %w", err)
	}
	if err := db.Model(&RankedItem{}).Count(&out.RankedItems).Error; err != nil {
		return nil, fmt.Errorf("count ranked items: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM cleaned_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status int
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	weekRows, err := s.pool.Query(ctx,
		`SELECT week_tag, COUNT(*) FROM cleaned_items WHERE status = ? AND week_tag <> '' GROUP BY week_tag ORDER BY week_tag`,
		StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("count by week: %w", err)
	}
	defer weekRows.Close()
	for weekRows.Next() {
		var week string
		var n int
		if err := weekRows.Scan(&week, &n); err != nil {
			return nil, fmt.Errorf("scan week count: %w", err)
		}
		out.Weeks[week] = n
	}
	if err := weekRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate week counts: %w", err)
	}

	return out, nil
}

// WeekTop returns the top-ranked items of one week, rank ascending.
func (s *Store) WeekTop(ctx context.Context, yearWeek string, limit int) ([]RankedItem, error) {
	if limit <= 0 {
		limit = 20
	}
	var items []RankedItem
	err := s.pool.GORM().WithContext(ctx).
		Where("year_week = ?", yearWeek).
		Order("rank ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load week top: %w", err)
	}
	return items, nil
}

// WeekAggregates returns the per-source per-category counts of one week.
func (s *Store) WeekAggregates(ctx context.Context, yearWeek string) ([]AggregateRow, error) {
	var rows []AggregateRow
	err := s.pool.GORM().WithContext(ctx).
		Where("year_week = ?", yearWeek).
		Order("source_id ASC, category ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load week aggregates: %w", err)
	}
	return rows, nil
}

// AcceptedByWeek loads the accepted cleaned items of one week for rendering.
func (s *Store) AcceptedByWeek(ctx context.Context, yearWeek string) ([]CleanedItem, error) {
	var items []CleanedItem
	err := s.pool.GORM().WithContext(ctx).
		Where("status = ? AND week_tag = ?", StatusAccepted, yearWeek).
		Order("published_at ASC, uid ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load accepted items for %s: %w", yearWeek, err)
	}
	return items, nil
}
