package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"horse.fit/weekly/internal/cli"
	"horse.fit/weekly/internal/config"
	"horse.fit/weekly/internal/dedup"
	"horse.fit/weekly/internal/oracle"
	"horse.fit/weekly/internal/report"
)

func runDedupMD(args []string) int {
	fs := flag.NewFlagSet("dedup-md", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	output := fs.String("output", "", "Output path (defaults to <input>.dedup.md)")
	audit := fs.String("audit", "", "Audit CSV path (defaults to <input>.dedup.audit.csv)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "dedup-md expects exactly one markdown file")
		return 2
	}
	input := fs.Arg(0)

	cfg, logger, err := loadRuntime(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	f, err := os.Open(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", input, err)
		return 1
	}
	sourceID := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	parsed, err := report.ParseMarkdownItems(f, sourceID)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse %s: %v\n", input, err)
		return 1
	}
	if len(parsed) == 0 {
		fmt.Fprintf(os.Stderr, "No list items found in %s\n", input)
		return 1
	}

	var confirmer dedup.Confirmer
	if cfg.UseLLM {
		client, err := oracle.New(logger, oracle.Options{
			Endpoint:   cfg.LLMBaseURL,
			Model:      cfg.LLMModel,
			APIKey:     cfg.LLMAPIKey,
			TextMaxLen: cfg.TextMaxLen,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("clustering runs without semantic confirmation")
		} else {
			confirmer = client
		}
	}

	policy, err := config.ParseKeepPolicy(cfg.BatchKeepPolicy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid keep policy: %v\n", err)
		return 2
	}

	items := make([]*dedup.Item, 0, len(parsed))
	for _, p := range parsed {
		items = append(items, p.Item)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result := dedup.Cluster(ctx, items, confirmer, dedup.BatchOptions{
		JaccardThreshold: cfg.JaccardThreshold,
		HammingThreshold: cfg.BatchHammingThreshold,
		GlobalPairCap:    cfg.GlobalPairCap,
		MaxConfirmPairs:  cfg.MaxConfirmPairs,
		KeepPolicy:       policy,
	})

	outPath := strings.TrimSpace(*output)
	if outPath == "" {
		outPath = stripMDExt(input) + ".dedup.md"
	}
	lines := keptLines(parsed, result.Kept)
	if err := os.WriteFile(outPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outPath, err)
		return 1
	}

	auditPath := strings.TrimSpace(*audit)
	if auditPath == "" {
		auditPath = stripMDExt(input) + ".dedup.audit.csv"
	}
	auditFile, err := os.Create(auditPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create %s: %v\n", auditPath, err)
		return 1
	}
	if err := report.WriteAudit(auditFile, result.Merges); err != nil {
		auditFile.Close()
		fmt.Fprintf(os.Stderr, "Failed to write audit: %v\n", err)
		return 1
	}
	if err := auditFile.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close audit: %v\n", err)
		return 1
	}

	for _, failure := range result.Failures {
		logger.Warn().Str("a", failure.AID).Str("b", failure.BID).Str("reason", failure.Reason).Msg("confirmation failed, pair kept")
	}

	fmt.Printf("items=%d kept=%d merged=%d pairs=%d confirmed=%d\n",
		len(parsed), len(result.Kept), len(result.Merges), result.Pairs, result.Confirmed)
	fmt.Printf("output written to %s (audit: %s)\n", outPath, auditPath)
	return 0
}

// keptLines re-emits the verbatim source line of every surviving item.
// Membership is by item identity, not derived ID: two byte-identical bullets
// share an ID, and only the survivor's line may come back.
func keptLines(parsed []report.MarkdownItem, kept []*dedup.Item) []string {
	keep := make(map[*dedup.Item]struct{}, len(kept))
	for _, it := range kept {
		keep[it] = struct{}{}
	}
	lines := make([]string, 0, len(kept))
	for _, p := range parsed {
		if _, ok := keep[p.Item]; ok {
			lines = append(lines, p.Raw)
		}
	}
	return lines
}

func stripMDExt(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".md") {
		return strings.TrimSuffix(path, filepath.Ext(path))
	}
	return path
}
