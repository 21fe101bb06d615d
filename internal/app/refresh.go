package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/weekly/internal/cli"
	"horse.fit/weekly/internal/store"
)

func runRefresh(args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Minute, "Command timeout")
	aggregateDays := fs.Int("aggregate-days", 0, "Aggregate lookback days (0 uses config)")
	rankedDays := fs.Int("ranked-days", 0, "Ranking lookback days (0 uses config)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "refresh does not accept positional arguments")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *aggregateDays <= 0 {
		*aggregateDays = cfg.AggregateLookbackDays
	}
	if *rankedDays <= 0 {
		*rankedDays = cfg.RankedLookbackDays
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("refresh failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.RefreshAggregates(ctx, *aggregateDays); err != nil {
		logger.Error().Err(err).Msg("refresh aggregates failed")
		fmt.Fprintf(os.Stderr, "Failed to refresh aggregates: %v\n", err)
		return 1
	}
	if err := st.RefreshRanked(ctx, *rankedDays, cfg.PerWeekCap); err != nil {
		logger.Error().Err(err).Msg("refresh ranking failed")
		fmt.Fprintf(os.Stderr, "Failed to refresh ranking: %v\n", err)
		return 1
	}

	fmt.Println("aggregate and ranked layers refreshed")
	return 0
}
