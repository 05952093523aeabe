package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty search url",
			mutate: func(cfg *Config) {
				cfg.SearchURL = ""
			},
			wantErr: "search URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.SearchURL = "http://"
			},
			wantErr: "search URL",
		},
		{
			name: "no buckets",
			mutate: func(cfg *Config) {
				cfg.Buckets = nil
			},
			wantErr: "bucket",
		},
		{
			name: "no layouts",
			mutate: func(cfg *Config) {
				cfg.DateLayouts = nil
			},
			wantErr: "date layout",
		},
		{
			name: "end after start",
			mutate: func(cfg *Config) {
				cfg.EndDate = cfg.StartDate.AddDate(0, 0, 1)
			},
			wantErr: "end date",
		},
		{
			name: "zero page size",
			mutate: func(cfg *Config) {
				cfg.PageSize = 0
			},
			wantErr: "page size",
		},
		{
			name: "max results below page size",
			mutate: func(cfg *Config) {
				cfg.MaxResults = 5
			},
			wantErr: "max results",
		},
		{
			name: "negative delay",
			mutate: func(cfg *Config) {
				cfg.PageDelay = -1 * time.Second
			},
			wantErr: "page delay",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "empty keys file",
			mutate: func(cfg *Config) {
				cfg.KeysFile = ""
			},
			wantErr: "keys file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if got := len(cfg.Buckets) * len(cfg.Conditions) * len(cfg.DateLayouts); got != 60 {
		t.Fatalf("queries per day = %d, want 60", got)
	}
}

func TestExportConfigValidate(t *testing.T) {
	cfg := DefaultExportConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default export config should validate, got %v", err)
	}

	cfg.OutputFormat = "xml"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "output format") {
		t.Fatalf("expected output format error, got %v", err)
	}

	cfg = DefaultExportConfig()
	cfg.Workers = 0
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "workers") {
		t.Fatalf("expected workers error, got %v", err)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("HARVEST_TEST_INT", " 42 ")
	t.Setenv("HARVEST_TEST_BAD", "forty")
	t.Setenv("HARVEST_TEST_DELAY", "250ms")
	t.Setenv("HARVEST_TEST_EMPTY", "   ")

	if v, ok, err := EnvInt("HARVEST_TEST_INT"); err != nil || !ok || v != 42 {
		t.Fatalf("EnvInt = %d, %v, %v; want 42, true, nil", v, ok, err)
	}
	if _, _, err := EnvInt("HARVEST_TEST_BAD"); err == nil {
		t.Fatalf("expected parse error for non-numeric value")
	}
	if v, ok, err := EnvDuration("HARVEST_TEST_DELAY"); err != nil || !ok || v != 250*time.Millisecond {
		t.Fatalf("EnvDuration = %v, %v, %v; want 250ms, true, nil", v, ok, err)
	}
	if _, ok := EnvString("HARVEST_TEST_EMPTY"); ok {
		t.Fatalf("blank value should be treated as unset")
	}
	if _, ok, err := EnvInt("HARVEST_TEST_MISSING"); ok || err != nil {
		t.Fatalf("missing key should be unset without error")
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.August, 17, 0, 0, 0, 0, time.UTC)
	for _, input := range []string{"2024-08-17", "17 Aug 2024", "17 August 2024"} {
		got, err := ParseDate(input)
		if err != nil {
			t.Fatalf("ParseDate(%q): %v", input, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v, want %v", input, got, want)
		}
	}

	if got, err := ParseDate(""); err != nil || !got.IsZero() {
		t.Fatalf("ParseDate(\"\") = %v, %v; want zero time", got, err)
	}
	if _, err := ParseDate("Aug the 17th"); err == nil {
		t.Fatalf("expected error for unrecognised date")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "HARVEST_TEST_DOTENV=from-file\nHARVEST_TEST_PRESET=from-file\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	// Register restores, then make the first key genuinely unset.
	t.Setenv("HARVEST_TEST_DOTENV", "")
	os.Unsetenv("HARVEST_TEST_DOTENV")
	t.Setenv("HARVEST_TEST_PRESET", "from-env")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if v, _ := EnvString("HARVEST_TEST_DOTENV"); v != "from-file" {
		t.Fatalf("HARVEST_TEST_DOTENV = %q, want from-file", v)
	}
	if v, _ := EnvString("HARVEST_TEST_PRESET"); v != "from-env" {
		t.Fatalf("existing variable was overridden: %q", v)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}
