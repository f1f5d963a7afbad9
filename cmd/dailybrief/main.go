package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkeller/dailybrief/internal/archive"
	"github.com/jkeller/dailybrief/internal/cache"
	"github.com/jkeller/dailybrief/internal/collect"
	"github.com/jkeller/dailybrief/internal/config"
	"github.com/jkeller/dailybrief/internal/dedup"
	"github.com/jkeller/dailybrief/internal/enrich"
	"github.com/jkeller/dailybrief/internal/feed"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "dailybrief",
	Short:   "Ranked daily news collection",
	Long:    "dailybrief fetches configured feeds concurrently, scores and filters the entries, deduplicates across runs, and produces a ranked per-category digest input.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dailybrief", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/dailybrief/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure categories, sources, and keyword lists.")
		return nil
	},
}

// --- run command ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, score, dedup, and rank all configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := cfg.GetDataDir()
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		col := cfg.Collector
		fetcher := feed.NewFetcher(
			&http.Client{Timeout: col.FetchTimeout()},
			feed.RetryPolicy{
				MaxAttempts:   col.MaxAttempts,
				Backoff:       col.Backoff(),
				RetryStatuses: feed.DefaultRetryPolicy().RetryStatuses,
			},
			time.Duration(col.MaxAgeHours)*time.Hour,
		)
		if cfg.Cache.Enabled {
			responses := cache.Open(filepath.Join(dataDir, "cache"), time.Duration(cfg.Cache.TTLHours)*time.Hour)
			fetcher = fetcher.WithCache(responses, 0)
		}

		ledger := dedup.Open(filepath.Join(dataDir, "seen.json"), dedup.RetentionWindow)

		collector := collect.New(cfg, fetcher, ledger)
		if col.EnrichContent {
			collector = collector.WithEnricher(enrich.New(nil))
		}

		result, err := collector.Run(context.Background())
		if err != nil {
			return err
		}

		printResult(result)

		db, err := archive.Open(filepath.Join(dataDir, "dailybrief.db"))
		if err != nil {
			// History is optional; the run already succeeded.
			log.Printf("Archive unavailable: %v", err)
			return nil
		}
		defer db.Close()
		if _, err := db.RecordRun(result); err != nil {
			log.Printf("Failed to record run: %v", err)
		}
		return nil
	},
}

func printResult(result *collect.Result) {
	names := make([]string, 0, len(result.Categories))
	for name := range result.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		articles := result.Categories[name]
		fmt.Printf("\n%s (%d):\n", name, len(articles))
		for i, a := range articles {
			when := "unknown"
			if a.Published != nil {
				when = a.Published.Local().Format("Jan 2 15:04")
			}
			fmt.Printf("  %2d. [%.2f] %s\n      %s  (%s, %s)\n", i+1, a.Relevance, a.Title, a.Link, a.Source, when)
		}
	}

	s := result.Stats
	fmt.Printf("\nSources: %d attempted, %d succeeded, %d failed\n", s.Attempted, s.Succeeded, s.Failed)
	fmt.Printf("Articles: %d in %.2fs\n", s.Records, s.Elapsed.Seconds())

	if len(result.Failures) > 0 {
		fmt.Println("\nFailed sources:")
		for _, f := range result.Failures {
			fmt.Printf("  %s (%s): %s\n", f.Source, f.Category, f.Kind)
		}
	}
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run history and source health",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := archive.Open(filepath.Join(cfg.GetDataDir(), "dailybrief.db"))
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.RunCount()
		if err != nil {
			return fmt.Errorf("getting run count: %w", err)
		}
		fmt.Printf("Configured sources: %d\n", cfg.SourceCount())
		fmt.Printf("Recorded runs: %d\n", runs)

		last, err := db.LastRun()
		if err != nil {
			return fmt.Errorf("getting last run: %w", err)
		}
		if last != nil {
			fmt.Printf("\nLast run: %s\n", last.StartedAt.Local().Format(time.RFC1123))
			fmt.Printf("  Sources: %d attempted, %d succeeded, %d failed\n", last.Attempted, last.Succeeded, last.Failed)
			fmt.Printf("  Articles: %d in %.2fs\n", last.Records, last.Elapsed.Seconds())
		}

		statuses, err := db.SourceStatuses()
		if err != nil {
			return fmt.Errorf("getting source status: %w", err)
		}
		if len(statuses) > 0 {
			fmt.Println("\nSource health:")
			for _, s := range statuses {
				line := fmt.Sprintf("  %s: ", s.Name)
				if s.ConsecutiveFailures > 0 {
					line += fmt.Sprintf("failing (%d in a row", s.ConsecutiveFailures)
					if s.LastError != nil {
						line += ", " + *s.LastError
					}
					line += ")"
				} else if s.LastSuccess != nil {
					line += "ok, last success " + s.LastSuccess.Local().Format("Jan 2 15:04")
				} else {
					line += "no data"
				}
				fmt.Println(line)
			}
		}
		return nil
	},
}

// --- cache command ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cache.Open(filepath.Join(cfg.GetDataDir(), "cache"), 0)
		stats := c.Stats()
		fmt.Printf("Entries: %d\n", stats.Items)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := cache.Open(filepath.Join(cfg.GetDataDir(), "cache"), 0)
		removed := c.Clear()
		fmt.Printf("Cleared %d entries\n", removed)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
