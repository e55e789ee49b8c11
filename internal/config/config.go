// Package config loads run settings from defaults, an optional YAML file,
// CONTACTSCOUT_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/contactscout/internal/extract"
	"github.com/FranksOps/contactscout/internal/fingerprint"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix namespaces environment overrides, e.g. CONTACTSCOUT_FETCH_TIMEOUT.
const EnvPrefix = "CONTACTSCOUT"

type Search struct {
	Provider   string `mapstructure:"provider"`
	MaxResults int    `mapstructure:"max_results"`
	Language   string `mapstructure:"language"`
	SearxURL   string `mapstructure:"searx_url"`
	SearxKey   string `mapstructure:"searx_key"`
	File       string `mapstructure:"file"`
}

type Fetch struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	MaxRedirects  int           `mapstructure:"max_redirects"`
	ProxyFile     string        `mapstructure:"proxy_file"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	RPS           float64       `mapstructure:"rps"`
	Jitter        float64       `mapstructure:"jitter"`
	Concurrency   int           `mapstructure:"concurrency"`
	UserAgents    []string      `mapstructure:"user_agents"`
	// UARotation is "sequential" or "random".
	UARotation string `mapstructure:"ua_rotation"`
}

type Extract struct {
	PhoneMinDigits      int      `mapstructure:"phone_min_digits"`
	PhoneKeywords       []string `mapstructure:"phone_keywords"`
	PhoneRegion         string   `mapstructure:"phone_region"`
	EmailIgnoreSuffixes []string `mapstructure:"email_ignore_suffixes"`
}

type Output struct {
	Dir    string `mapstructure:"dir"`
	Ext    string `mapstructure:"ext"`
	Export string `mapstructure:"export"`
}

type Metrics struct {
	Port int `mapstructure:"port"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the full set of run settings.
type Config struct {
	Search  Search  `mapstructure:"search"`
	Fetch   Fetch   `mapstructure:"fetch"`
	Extract Extract `mapstructure:"extract"`
	Output  Output  `mapstructure:"output"`
	Metrics Metrics `mapstructure:"metrics"`
	Log     Log     `mapstructure:"log"`
}

// SetDefaults registers every key so env overrides and Unmarshal see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.max_results", 30)
	v.SetDefault("search.language", "es")
	v.SetDefault("search.searx_url", "")
	v.SetDefault("search.searx_key", "")
	v.SetDefault("search.file", "")

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("fetch.max_redirects", 10)
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.rps", 0.0)
	v.SetDefault("fetch.jitter", 0.0)
	v.SetDefault("fetch.concurrency", 1)
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.ua_rotation", "sequential")

	v.SetDefault("extract.phone_min_digits", 10)
	v.SetDefault("extract.phone_keywords", extract.DefaultPhoneKeywords)
	v.SetDefault("extract.phone_region", "")
	v.SetDefault("extract.email_ignore_suffixes", extract.DefaultEmailIgnoreSuffixes)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.ext", ".txt")
	v.SetDefault("output.export", "")

	v.SetDefault("metrics.port", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration into a Config. file may be empty. Flags must
// already be bound to v by the caller.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, cfg.Validate()
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	switch c.Search.Provider {
	case "google":
	case "searxng":
		if c.Search.SearxURL == "" {
			bad("search.searx_url is required for the searxng provider")
		}
	case "file":
		if c.Search.File == "" {
			bad("search.file is required for the file provider")
		}
	default:
		bad("search.provider %q is not one of google, searxng, file", c.Search.Provider)
	}
	if c.Search.MaxResults <= 0 {
		bad("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if _, err := language.Parse(c.Search.Language); err != nil {
		bad("search.language %q: %v", c.Search.Language, err)
	}

	if c.Fetch.Timeout <= 0 {
		bad("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		bad("fetch.fingerprint: %v", err)
	}
	if c.Fetch.Concurrency <= 0 {
		bad("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.RPS < 0 {
		bad("fetch.rps must not be negative, got %v", c.Fetch.RPS)
	}
	switch c.Fetch.UARotation {
	case "sequential", "random":
	default:
		bad("fetch.ua_rotation %q is not one of sequential, random", c.Fetch.UARotation)
	}
	if c.Fetch.Jitter < 0 || c.Fetch.Jitter > 1 {
		bad("fetch.jitter must be within [0,1], got %v", c.Fetch.Jitter)
	}

	if c.Extract.PhoneMinDigits <= 0 {
		bad("extract.phone_min_digits must be positive, got %d", c.Extract.PhoneMinDigits)
	}

	switch c.Output.Export {
	case "", "ndjson", "csv":
	default:
		bad("output.export %q is not one of ndjson, csv", c.Output.Export)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		bad("metrics.port %d out of range", c.Metrics.Port)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		bad("log.format %q is not one of text, json", c.Log.Format)
	}

	return errors.Join(errs...)
}

// ExtractOptions maps the extract section onto extract.Options.
func (c *Config) ExtractOptions() extract.Options {
	return extract.Options{
		PhoneMinDigits:      c.Extract.PhoneMinDigits,
		PhoneKeywords:       c.Extract.PhoneKeywords,
		PhoneRegion:         c.Extract.PhoneRegion,
		EmailIgnoreSuffixes: c.Extract.EmailIgnoreSuffixes,
	}
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return lvl, nil
}
