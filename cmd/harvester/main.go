package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/keys"
	"github.com/aluiziolira/go-harvest-apps/lineset"
	"github.com/aluiziolira/go-harvest-apps/logging"
	"github.com/aluiziolira/go-harvest-apps/models"
	"github.com/aluiziolira/go-harvest-apps/pipeline"
	"github.com/aluiziolira/go-harvest-apps/postprocess"
	"github.com/aluiziolira/go-harvest-apps/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg := config.DefaultConfig()
	if err := applyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid environment: %v\n", err)
		os.Exit(1)
	}

	startDate := flag.String("start", cfg.StartDate.Format(time.DateOnly), "First day to search, walking backwards (YYYY-MM-DD or \"17 Aug 2024\")")
	endDate := flag.String("end", "", "Last day to search, inclusive (empty for no limit)")
	flag.IntVar(&cfg.MaxDays, "max-days", cfg.MaxDays, "Stop after this many days (0 for no limit)")
	layouts := flag.StringSlice("layouts", []string{"short", "full"}, "Date spellings to query: short (17 Aug 2024), full (17 August 2024)")
	flag.StringVar(&cfg.EngineID, "engine-id", cfg.EngineID, "Custom search engine id")
	flag.StringVar(&cfg.Country, "country", cfg.Country, "Country restriction passed as gl")
	flag.StringVar(&cfg.SearchURL, "search-url", cfg.SearchURL, "Search API endpoint")
	flag.DurationVar(&cfg.PageDelay, "page-delay", cfg.PageDelay, "Minimum delay between page requests")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flag.StringVar(&cfg.KeysFile, "keys", cfg.KeysFile, "File with one API key per line")
	flag.StringVar(&cfg.CorruptKeysFile, "corrupt-keys", cfg.CorruptKeysFile, "File that forbidden keys are appended to")
	flag.StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "Identifier file, appended to")
	flag.StringVar(&cfg.UniqueOutputFile, "unique-output", cfg.UniqueOutputFile, "Also copy the de-duplicated identifiers here (empty disables)")
	flag.IntVar(&cfg.RecentCacheSize, "recent-cache", cfg.RecentCacheSize, "Skip identifiers seen among the last N written (0 disables)")
	flag.StringArrayVar(&cfg.PostCommands, "post", cfg.PostCommands, "Command to run after the harvest (repeatable)")
	noPost := flag.Bool("no-post", false, "Skip post-processing commands")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Append JSON logs to this file (empty disables)")
	flag.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	logFile, err := logging.Setup(cfg.Verbose, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := applyFlags(cfg, *startDate, *endDate, *layouts); err != nil {
		slog.Error("invalid arguments", slog.Any("error", err))
		os.Exit(1)
	}
	if *noPost {
		cfg.PostCommands = nil
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := scraper.NewMetrics()
	fetcher, err := scraper.NewFetcher(cfg, metrics)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing current request")
	}()

	code := run(ctx, cfg, fetcher, metrics)
	stop()
	logFile.Close()
	os.Exit(code)
}

// run harvests, rewrites the identifier file without duplicates and runs the post
// commands. It returns the process exit code; post command failures never change it.
func run(ctx context.Context, cfg *config.Config, fetcher scraper.PageFetcher, metrics *scraper.Metrics) int {
	store, err := keys.Load(cfg.KeysFile, cfg.CorruptKeysFile)
	if err != nil {
		slog.Error("loading API keys", slog.Any("error", err))
		return 1
	}

	sink, err := pipeline.NewIDWriter(cfg.OutputFile, cfg.RecentCacheSize)
	if err != nil {
		slog.Error("opening identifier file", slog.Any("error", err))
		return 1
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics)

	slog.Info("starting harvest",
		slog.String("start", cfg.StartDate.Format(time.DateOnly)),
		slog.Int("keys", store.Len()),
		slog.Int("queries_per_day", len(cfg.DateLayouts)*len(cfg.Buckets)*len(cfg.Conditions)),
		slog.String("output", cfg.OutputFile),
	)

	h := scraper.NewHarvester(cfg, fetcher, store, sink, metrics)
	result, runErr := h.Run(ctx)

	if err := sink.Close(); err != nil {
		slog.Error("closing identifier file", slog.Any("error", err))
		runErr = errors.Join(runErr, err)
	}
	stopMetricsServer(metricsServer)

	written, skipped := sink.Counts()
	printSummary(result, cfg.OutputFile, skipped)

	if runErr != nil {
		slog.Error("harvest failed", slog.Any("error", runErr), slog.Int("ids_written", written))
		return 1
	}

	if err := dedupeOutput(cfg); err != nil {
		slog.Error("de-duplicating identifiers", slog.Any("error", err))
		return 1
	}

	postprocess.NewRunner().Run(ctx, cfg.PostCommands...)
	return 0
}

// dedupeOutput rewrites the identifier file in place, since the downstream scraper
// reads it, and optionally copies the result to UniqueOutputFile.
func dedupeOutput(cfg *config.Config) error {
	stats, err := lineset.DedupeFile(cfg.OutputFile, cfg.OutputFile, false)
	if err != nil {
		return err
	}
	slog.Info("identifier file de-duplicated",
		slog.String("file", cfg.OutputFile),
		slog.Int("read", stats.Read),
		slog.Int("unique", stats.Written),
	)

	if cfg.UniqueOutputFile == "" || cfg.UniqueOutputFile == cfg.OutputFile {
		return nil
	}
	if _, err := lineset.DedupeFile(cfg.OutputFile, cfg.UniqueOutputFile, false); err != nil {
		return err
	}
	slog.Info("unique identifiers copied", slog.String("file", cfg.UniqueOutputFile))
	return nil
}

func applyEnv(cfg *config.Config) error {
	if value, ok := config.EnvString("HARVEST_ENGINE_ID"); ok {
		cfg.EngineID = value
	}
	if value, ok := config.EnvString("HARVEST_KEYS_FILE"); ok {
		cfg.KeysFile = value
	}
	if value, ok := config.EnvString("HARVEST_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("HARVEST_METRICS_ADDR"); ok {
		cfg.MetricsAddr = value
	}
	if value, ok := config.EnvString("HARVEST_START"); ok {
		start, err := config.ParseDate(value)
		if err != nil {
			return fmt.Errorf("HARVEST_START: %w", err)
		}
		cfg.StartDate = start
	}
	if value, ok, err := config.EnvInt("HARVEST_MAX_DAYS"); err != nil {
		return err
	} else if ok {
		cfg.MaxDays = value
	}
	if value, ok, err := config.EnvDuration("HARVEST_PAGE_DELAY"); err != nil {
		return err
	} else if ok {
		cfg.PageDelay = value
	}
	return nil
}

func applyFlags(cfg *config.Config, start, end string, layouts []string) error {
	startDate, err := config.ParseDate(start)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	cfg.StartDate = startDate

	endDate, err := config.ParseDate(end)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}
	cfg.EndDate = endDate

	cfg.DateLayouts = nil
	for _, name := range layouts {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "short":
			cfg.DateLayouts = append(cfg.DateLayouts, config.LayoutShort)
		case "full":
			cfg.DateLayouts = append(cfg.DateLayouts, config.LayoutFull)
		default:
			return fmt.Errorf("--layouts: unknown layout %q", name)
		}
	}
	return nil
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.HarvestResult, outputFile string, skipped int) {
	if result == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Harvest complete")

	fmt.Printf("  Stop reason:   %s\n", result.StopReason)
	fmt.Printf("  Days:          %d\n", len(result.Days))
	if !result.LastSearchedOn.IsZero() {
		fmt.Printf("  Last day:      %s\n", result.LastSearchedOn.Format(time.DateOnly))
	}
	fmt.Printf("  Queries:       %d\n", result.QueryCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Results:       %d\n", result.TotalResults)
	fmt.Printf("  IDs written:   %d\n", result.IDsWritten)
	if skipped > 0 {
		fmt.Printf("  IDs skipped:   %d\n", skipped)
	}
	fmt.Printf("  Key rotations: %d\n", result.KeyRotations)
	fmt.Printf("  Corrupt keys:  %d\n", result.CorruptKeys)
	fmt.Printf("  Failed:        %d\n", result.FailedQueries)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}
