package config

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"
)

// DefaultLogFile is appended to by every command unless disabled.
const DefaultLogFile = "script.log"

// DateLayout values for the two textual forms the search index uses for a day.
const (
	LayoutShort = "02 Jan 2006"
	LayoutFull  = "02 January 2006"
)

// Config holds harvester configuration.
type Config struct {
	SearchURL   string
	EngineID    string
	Country     string
	SiteScope   string
	Buckets     []string
	Conditions  []string
	DateLayouts []string

	StartDate time.Time
	EndDate   time.Time // zero means no end date
	MaxDays   int       // 0 means unbounded

	PageSize   int
	MaxResults int
	PageDelay  time.Duration
	Timeout    time.Duration
	UserAgent  string

	KeysFile         string
	CorruptKeysFile  string
	OutputFile       string
	UniqueOutputFile string // optional extra copy of the de-duplicated identifiers
	RecentCacheSize  int

	PostCommands []string
	MetricsAddr  string
	LogFile      string
	Verbose      bool
}

// DefaultConfig returns the defaults used against the Play Store detail pages.
func DefaultConfig() *Config {
	return &Config{
		SearchURL: "https://www.googleapis.com/customsearch/v1",
		EngineID:  "c5f7cde4c5c08421d",
		Country:   "us",
		SiteScope: "site:https://play.google.com/store/apps/details",
		Buckets: []string{
			"0+", "1+", "5+", "10+", "50+", "100+", "500+",
			"1K+", "10K+", "50K+", "100K+", "500K+", "1M+", "5M+", "10M+",
		},
		Conditions:      []string{"game", "-game"},
		DateLayouts:     []string{LayoutShort, LayoutFull},
		StartDate:       time.Date(2024, time.August, 17, 0, 0, 0, 0, time.UTC),
		PageSize:        10,
		MaxResults:      100,
		PageDelay:       time.Second,
		Timeout:         30 * time.Second,
		UserAgent:       "go-harvest-apps/1.0",
		KeysFile:        "api_keys.txt",
		CorruptKeysFile: "corrupt_api.txt",
		OutputFile:      "bundleIds.txt",
		PostCommands:    []string{"node appSearchGP.js --bundleIds"},
		LogFile:         DefaultLogFile,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.SearchURL == "" {
		return fmt.Errorf("search URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.SearchURL)
	if err != nil {
		return fmt.Errorf("invalid search URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("search URL must include a host")
	}

	if strings.TrimSpace(c.EngineID) == "" {
		return fmt.Errorf("engine id cannot be empty")
	}
	if len(c.Buckets) == 0 {
		return fmt.Errorf("at least one install bucket is required")
	}
	if len(c.Conditions) == 0 {
		return fmt.Errorf("at least one condition is required")
	}
	if len(c.DateLayouts) == 0 {
		return fmt.Errorf("at least one date layout is required")
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	if !c.EndDate.IsZero() && c.EndDate.After(c.StartDate) {
		return fmt.Errorf("end date (%s) cannot be after start date (%s)",
			c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}
	if c.MaxDays < 0 {
		return fmt.Errorf("max days cannot be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.MaxResults < c.PageSize {
		return fmt.Errorf("max results (%d) cannot be below page size (%d)", c.MaxResults, c.PageSize)
	}
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.KeysFile == "" {
		return fmt.Errorf("keys file cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.RecentCacheSize < 0 {
		return fmt.Errorf("recent cache size cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// ExportConfig holds configuration for the metadata email export.
type ExportConfig struct {
	InputDir     string
	Extension    string
	Field        string
	Placeholder  string
	Workers      int
	BufferSize   int
	BatchSize    int
	OutputFile   string
	OutputFormat string // csv, json, or dual
	PostCommands []string
	LogFile      string
	Verbose      bool
}

// DefaultExportConfig returns defaults matching the files written by the app scraper.
func DefaultExportConfig() *ExportConfig {
	return &ExportConfig{
		InputDir:     "apps",
		Extension:    ".txt",
		Field:        "developerEmail",
		Placeholder:  "N/A",
		Workers:      runtime.NumCPU(),
		BufferSize:   256,
		BatchSize:    64,
		OutputFormat: "csv",
		PostCommands: []string{"./batch_zip_clean.sh"},
		LogFile:      DefaultLogFile,
	}
}

// Validate ensures all export configuration values are coherent.
func (c *ExportConfig) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory cannot be empty")
	}
	if c.Extension == "" {
		return fmt.Errorf("extension cannot be empty")
	}
	if c.Field == "" {
		return fmt.Errorf("field cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer size cannot be negative")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}
