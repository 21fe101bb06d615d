package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"horse.fit/weekly/internal/dedup"
)

// WriteAudit emits the merge trail of an offline clustering pass as CSV:
// which item survived, which was folded into it, and why.
func WriteAudit(w io.Writer, merges []dedup.Merge) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"kept_id", "kept_title", "dropped_id", "dropped_title", "reason"}); err != nil {
		return fmt.Errorf("write audit header: %w", err)
	}
	for _, m := range merges {
		record := []string{m.KeptID, m.KeptTitle, m.DroppedID, m.DroppedTitle, m.Reason}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write audit row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush audit: %w", err)
	}
	return nil
}
