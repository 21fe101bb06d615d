package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/weekly/internal/cli"
	"horse.fit/weekly/internal/feed"
	"horse.fit/weekly/internal/globaltime"
	"horse.fit/weekly/internal/oracle"
	"horse.fit/weekly/internal/pipeline"
	"horse.fit/weekly/internal/report"
	"horse.fit/weekly/internal/sources"
	"horse.fit/weekly/internal/store"
)

func runPipeline(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Minute, "Overall run timeout")
	skipDocs := fs.Bool("skip-docs", false, "Skip rendering the markdown digest")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "run does not accept positional arguments")
		return 2
	}

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if strings.TrimSpace(cfg.BaseFeed) == "" {
		fmt.Fprintln(os.Stderr, "BASE_FEED is required to run the pipeline")
		return 2
	}

	srcs, err := sources.Load(cfg.SourcesFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load sources: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := store.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("run failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	st := store.New(pool, logger)
	fetcher := feed.NewFetcher(logger, cfg.BaseFeed,
		feed.WithFullText(feed.NewFullTextFetcher(nil, "")))

	var analyzer pipeline.Analyzer
	if cfg.UseLLM {
		client, err := oracle.New(logger, oracle.Options{
			Endpoint:     cfg.LLMBaseURL,
			Model:        cfg.LLMModel,
			APIKey:       cfg.LLMAPIKey,
			TextMaxLen:   cfg.TextMaxLen,
			EnableIgnore: cfg.EnableLLMIgnore,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("classification falls back to keywords")
		} else {
			analyzer = client
		}
	}

	svc := pipeline.New(cfg, logger, st, fetcher, analyzer, srcs)
	res, err := svc.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("pipeline run failed")
		fmt.Fprintf(os.Stderr, "Pipeline run failed: %v\n", err)
		return 1
	}

	fmt.Printf("fetched=%d in_window=%d accepted=%d url_dups=%d near_dups=%d ads=%d ignored=%d fallbacks=%d\n",
		res.Fetched, res.InWindow, res.Accepted,
		res.URLDuplicates, res.WithinSourceDrops+res.CrossSourceDrops,
		res.AdDrops, res.IgnoreDrops, res.Fallbacks)

	if *skipDocs {
		return 0
	}

	buckets := report.Bucketize(res.Entries)
	rc := report.BuildContext(cfg.SiteTitle, cfg.Timezone, globaltime.Now(), res.WindowStart, res.WindowEnd, buckets)
	md, err := report.Render(rc)
	if err != nil {
		logger.Error().Err(err).Msg("render digest failed")
		fmt.Fprintf(os.Stderr, "Failed to render digest: %v\n", err)
		return 1
	}

	path, err := report.WriteDocs(cfg.DocsDir, md, rc.Year, rc.Week)
	if err != nil {
		logger.Error().Err(err).Msg("write digest failed")
		fmt.Fprintf(os.Stderr, "Failed to write digest: %v\n", err)
		return 1
	}

	fmt.Printf("digest written to %s\n", path)
	return 0
}
