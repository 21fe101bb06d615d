package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"horse.fit/weekly/internal/cli"
	"horse.fit/weekly/internal/store"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "stats does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("stats failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	st := store.New(pool, logger)
	counts, err := st.Counts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query layer counts: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(counts); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	layerRows := [][]string{
		{"raw_items", fmt.Sprintf("%d", counts.RawItems)},
		{"cleaned_items", fmt.Sprintf("%d", counts.CleanedItems)},
		{"weekly_aggregates", fmt.Sprintf("%d", counts.Aggregates)},
		{"ranked_items", fmt.Sprintf("%d", counts.RankedItems)},
	}
	if err := writeTable([]string{"layer", "rows"}, layerRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render layer table: %v\n", err)
		return 1
	}

	statusRows := make([][]string, 0, len(counts.ByStatus))
	for _, status := range []int{store.StatusAccepted, store.StatusTooShort, store.StatusAdLike, store.StatusNotRelevant} {
		statusRows = append(statusRows, []string{
			statusName(status),
			fmt.Sprintf("%d", counts.ByStatus[status]),
		})
	}
	fmt.Println()
	if err := writeTable([]string{"status", "items"}, statusRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render status table: %v\n", err)
		return 1
	}

	weeks := make([]string, 0, len(counts.Weeks))
	for week := range counts.Weeks {
		weeks = append(weeks, week)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(weeks)))
	weekRows := make([][]string, 0, len(weeks))
	for _, week := range weeks {
		weekRows = append(weekRows, []string{week, fmt.Sprintf("%d", counts.Weeks[week])})
	}
	fmt.Println()
	if err := writeTable([]string{"week", "accepted"}, weekRows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render week table: %v\n", err)
		return 1
	}

	return 0
}

func statusName(status int) string {
	switch status {
	case store.StatusAccepted:
		return "accepted"
	case store.StatusTooShort:
		return "too_short"
	case store.StatusAdLike:
		return "ad_like"
	case store.StatusNotRelevant:
		return "not_relevant"
	default:
		return fmt.Sprintf("status_%d", status)
	}
}
