package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-harvest-apps/config"
	"github.com/aluiziolira/go-harvest-apps/logging"
	"github.com/aluiziolira/go-harvest-apps/pipeline"
	"github.com/aluiziolira/go-harvest-apps/postprocess"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg := config.DefaultExportConfig()
	if value, ok := config.EnvString("EMAILS_INPUT_DIR"); ok {
		cfg.InputDir = value
	}
	if value, ok, err := config.EnvInt("EMAILS_WORKERS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid EMAILS_WORKERS: %v\n", err)
		os.Exit(1)
	} else if ok {
		cfg.Workers = value
	}

	flag.StringVarP(&cfg.InputDir, "input", "i", cfg.InputDir, "Directory of downloaded metadata files")
	flag.StringVar(&cfg.Extension, "ext", cfg.Extension, "Metadata file extension")
	flag.StringVar(&cfg.Field, "field", cfg.Field, "JSON path of the value to export")
	flag.StringVar(&cfg.Placeholder, "placeholder", cfg.Placeholder, "Value treated as missing")
	flag.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of parallel workers")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "Records per writer batch")
	flag.StringVarP(&cfg.OutputFile, "output", "o", "", "Output file (default <input>.csv)")
	flag.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "Output format: csv, json, or dual")
	flag.StringArrayVar(&cfg.PostCommands, "post", cfg.PostCommands, "Command to run after the export (repeatable)")
	noPost := flag.Bool("no-post", false, "Skip post-processing commands")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Append JSON logs to this file (empty disables)")
	flag.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable verbose logging")
	flag.Parse()

	logFile, err := logging.Setup(cfg.Verbose, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	if cfg.OutputFile == "" {
		cfg.OutputFile = defaultOutput(cfg.InputDir, cfg.OutputFormat)
	}
	if *noPost {
		cfg.PostCommands = nil
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startTime := time.Now()
	paths, err := pipeline.CollectFiles(cfg.InputDir, cfg.Extension)
	if err != nil {
		slog.Error("listing metadata files", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("starting export",
		slog.String("input", cfg.InputDir),
		slog.Int("files", len(paths)),
		slog.Int("workers", cfg.Workers),
	)

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	p := pipeline.NewPipeline(ctx, writer, cfg)
	p.Start(cfg.Workers)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	processErr := p.Process(paths...)
	closeErr := p.Close()
	if err := writer.Close(); err != nil {
		slog.Error("close writer", slog.Any("error", err))
		os.Exit(1)
	}
	if processErr != nil {
		slog.Error("export interrupted", slog.Any("error", processErr))
		os.Exit(1)
	}
	if closeErr != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", closeErr))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	stats := p.Stats()
	printSummary(stats, len(paths), time.Since(startTime), cfg.OutputFile)

	postprocess.NewRunner().Run(ctx, cfg.PostCommands...)
}

func defaultOutput(inputDir, format string) string {
	base := filepath.Base(filepath.Clean(inputDir))
	if base == "." || base == string(filepath.Separator) {
		base = "emails"
	}
	if format == "json" {
		return base + ".jsonl"
	}
	return base + ".csv"
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".jsonl"
		return pipeline.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(stats pipeline.Stats, listed int, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Export complete")

	fmt.Printf("  Files listed:    %d\n", listed)
	fmt.Printf("  Files parsed:    %d\n", stats.Files)
	fmt.Printf("  Decode failures: %d\n", stats.DecodeFailures)
	fmt.Printf("  Read failures:   %d\n", stats.ReadFailures)
	fmt.Printf("  Missing value:   %d\n", stats.Missing)
	fmt.Printf("  Duplicates:      %d\n", stats.Duplicates)
	fmt.Printf("  Unique emails:   %d\n", stats.Unique)
	fmt.Printf("  Duration:        %v\n", duration.Round(time.Millisecond))
	fmt.Printf("  Output file:     %s\n", outputFile)
	fmt.Println(separator)
}
