package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.Provider != "google" || cfg.Search.MaxResults != 30 || cfg.Search.Language != "es" {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.Fetch.Timeout != 10*time.Second || cfg.Fetch.Fingerprint != "chrome" || cfg.Fetch.Concurrency != 1 {
		t.Errorf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Extract.PhoneMinDigits != 10 || len(cfg.Extract.PhoneKeywords) != 4 {
		t.Errorf("unexpected extract defaults: %+v", cfg.Extract)
	}
	if cfg.Output.Dir != "output" || cfg.Output.Ext != ".txt" {
		t.Errorf("unexpected output defaults: %+v", cfg.Output)
	}
	opts := cfg.ExtractOptions()
	if opts.PhoneMinDigits != 10 || opts.PhoneKeywords[2] != "telefono" {
		t.Errorf("unexpected extract options: %+v", opts)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contactscout.yaml")
	yaml := `
search:
  provider: file
  file: seeds.txt
  max_results: 5
fetch:
  timeout: 3s
  concurrency: 4
extract:
  phone_keywords: [tel, movil]
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONTACTSCOUT_SEARCH_MAX_RESULTS", "7")
	t.Setenv("CONTACTSCOUT_OUTPUT_EXPORT", "csv")

	cfg, err := Load(viper.New(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.Provider != "file" || cfg.Search.File != "seeds.txt" {
		t.Errorf("file settings not applied: %+v", cfg.Search)
	}
	if cfg.Search.MaxResults != 7 {
		t.Errorf("expected env to override file, got %d", cfg.Search.MaxResults)
	}
	if cfg.Fetch.Timeout != 3*time.Second || cfg.Fetch.Concurrency != 4 {
		t.Errorf("unexpected fetch settings: %+v", cfg.Fetch)
	}
	if strings.Join(cfg.Extract.PhoneKeywords, ",") != "tel,movil" {
		t.Errorf("unexpected keywords: %v", cfg.Extract.PhoneKeywords)
	}
	if cfg.Output.Export != "csv" {
		t.Errorf("expected csv export from env, got %q", cfg.Output.Export)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(viper.New(), "")
		if err != nil {
			t.Fatalf("defaults invalid: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"provider", func(c *Config) { c.Search.Provider = "bing" }, "search.provider"},
		{"searx url", func(c *Config) { c.Search.Provider = "searxng" }, "search.searx_url"},
		{"file path", func(c *Config) { c.Search.Provider = "file" }, "search.file"},
		{"max results", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"language", func(c *Config) { c.Search.Language = "@@" }, "search.language"},
		{"timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"fingerprint", func(c *Config) { c.Fetch.Fingerprint = "netscape" }, "fetch.fingerprint"},
		{"concurrency", func(c *Config) { c.Fetch.Concurrency = 0 }, "fetch.concurrency"},
		{"jitter", func(c *Config) { c.Fetch.Jitter = 2 }, "fetch.jitter"},
		{"ua rotation", func(c *Config) { c.Fetch.UARotation = "shuffle" }, "fetch.ua_rotation"},
		{"digits", func(c *Config) { c.Extract.PhoneMinDigits = -1 }, "extract.phone_min_digits"},
		{"export", func(c *Config) { c.Output.Export = "xml" }, "output.export"},
		{"port", func(c *Config) { c.Metrics.Port = 70000 }, "metrics.port"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("debug"); err != nil || lvl != slog.LevelDebug {
		t.Errorf("expected debug, got %v, %v", lvl, err)
	}
	if lvl, err := ParseLevel("WARN"); err != nil || lvl != slog.LevelWarn {
		t.Errorf("expected warn, got %v, %v", lvl, err)
	}
}
