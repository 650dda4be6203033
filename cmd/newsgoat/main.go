package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/NewsGoat/internal/config"
	"github.com/IshaanNene/NewsGoat/internal/observability"
	"github.com/IshaanNene/NewsGoat/internal/parser"
	"github.com/IshaanNene/NewsGoat/pkg/newsgoat"
)

var (
	cfgFile    string
	verbose    bool
	windowDays int
	sourceList string
	outputPath string
	outputType string
	noAI       bool
	noRender   bool
	withMetric bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsgoat",
		Short: "NewsGoat — Polish education news crawler",
		Long: `NewsGoat collects recent news from Polish education portals, keeps the
articles published inside a rolling date window, optionally rewrites them
with an LLM and saves the result as JSON.

Sources:
  • listing pages with link filters (edunews.pl, frse.org.pl, ibe.edu.pl)
  • sitemaps with lastmod pre-filtering (youth.europa.eu)
  • RSS/Atom feeds
  • headless-browser fallback for script-built listings`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(enrichCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&windowDays, "window", "w", 0, "days back from today to keep (1-30, default from config)")
	cmd.Flags().StringVarP(&sourceList, "sources", "s", "", "comma-separated source names to crawl (default: all enabled)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output directory")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: json, jsonl, csv, none")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "skip LLM enrichment")
	cmd.Flags().BoolVar(&noRender, "no-render", false, "disable the headless-browser fallback")
	cmd.Flags().BoolVar(&withMetric, "metrics", false, "serve metrics while running")
}

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl all sources once, enrich and save",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runOnce(ctx, cfg, logger)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func runOnce(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer observability.Shutdown(context.Background(), srv)
	}

	crawler, err := newsgoat.New(cfg, logger, newsgoat.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer crawler.Close()

	start := time.Now()
	report, err := crawler.Run(ctx, splitList(sourceList)...)
	if report != nil {
		printReport(os.Stdout, report, time.Since(start))
	}
	return err
}

// enrichCmd creates the "enrich" subcommand for re-enriching a saved run.
func enrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich FILE",
		Short: "Enrich items in a saved JSON run that lack rewritten fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closeLog()
			cfg.Render.Enabled = false

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			items, err := loadItems(args[0])
			if err != nil {
				return err
			}

			crawler, err := newsgoat.New(cfg, logger)
			if err != nil {
				return err
			}
			defer crawler.Close()

			stats, enrichErr := crawler.Enrich(ctx, items)
			if err := saveItems(args[0], items); err != nil {
				return err
			}
			fmt.Printf("Enriched %d, cached %d, skipped %d, failed %d → %s\n",
				stats.Enriched, stats.Cached, stats.Skipped, stats.Failed, args[0])
			return enrichErr
		},
	}
}

// sourcesCmd creates the "sources" subcommand.
func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			rows := [][]string{{"NAME", "TYPE", "ENABLED", "URL"}}
			for _, s := range cfg.Sources {
				rows = append(rows, []string{s.Name, s.Type, fmt.Sprint(!s.Disabled), s.URL})
			}
			renderTable(os.Stdout, rows)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("NewsGoat %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Crawl:\n")
			fmt.Printf("  Window Days:        %d\n", cfg.Crawl.WindowDays)
			fmt.Printf("  Max Links:          %d\n", cfg.Crawl.MaxLinks)
			fmt.Printf("  Min Body Length:    %d\n", cfg.Crawl.MinBodyLength)
			fmt.Printf("  Concurrency:        %d (sources: %d)\n", cfg.Crawl.Concurrency, cfg.Crawl.SourceConcurrency)
			fmt.Printf("  Respect robots.txt: %v\n", cfg.Crawl.RespectRobotsTxt)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Timeout:            %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Politeness Delay:   %s\n", cfg.Fetcher.PolitenessDelay)
			fmt.Printf("  Max Retries:        %d\n", cfg.Fetcher.MaxRetries)
			fmt.Printf("\nRender:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.Render.Enabled)
			fmt.Printf("  Wait Selector:      %s\n", cfg.Render.WaitSelector)
			reg, err := parser.NewRegistryFromConfig(&cfg.Extraction)
			if err != nil {
				return err
			}
			fmt.Printf("  Extraction Rules:   %s\n", strings.Join(reg.Domains(), ", "))
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Enabled:            %v\n", cfg.AI.Enabled)
			fmt.Printf("  Provider:           %s (%s)\n", cfg.AI.Provider, cfg.AI.Model)
			fmt.Printf("  API Key:            %s\n", maskSecret(cfg.AI.APIKey))
			fmt.Printf("  Cache:              %v (%s)\n", cfg.Cache.Enabled, cfg.Cache.Addr)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:               %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:        %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  MongoDB:            %v\n", cfg.Storage.Mongo.Enabled)
			fmt.Printf("\nSchedule:             %s\n", cfg.Schedule.Cron)
			fmt.Printf("Sources:              %d configured, %d enabled\n", len(cfg.Sources), len(cfg.EnabledSources()))
			return nil
		},
	}
}

// loadRuntime loads config, applies flag overrides, validates and builds
// the logger. The returned func closes the log file, if any.
func loadRuntime() (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := setupLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if windowDays > 0 {
		cfg.Crawl.WindowDays = windowDays
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if noAI {
		cfg.AI.Enabled = false
	}
	if noRender {
		cfg.Render.Enabled = false
	}
	if withMetric {
		cfg.Metrics.Enabled = true
	}
}

// setupLogger creates a structured logger. A file output is teed to stderr.
func setupLogger(cfg *config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closeFn, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskSecret(s string) string {
	switch {
	case s == "":
		return "(not set)"
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "…" + s[len(s)-2:]
	}
}
