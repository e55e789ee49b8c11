// Command contactscout searches the web for a query and writes the public
// emails and phone numbers it finds to a report file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/contactscout/internal/config"
	"github.com/FranksOps/contactscout/internal/contact"
	"github.com/FranksOps/contactscout/internal/dedup"
	"github.com/FranksOps/contactscout/internal/extract"
	"github.com/FranksOps/contactscout/internal/fingerprint"
	"github.com/FranksOps/contactscout/internal/metrics"
	"github.com/FranksOps/contactscout/internal/pipeline"
	"github.com/FranksOps/contactscout/internal/report"
	"github.com/FranksOps/contactscout/internal/scraper"
	"github.com/FranksOps/contactscout/internal/serp"
	"github.com/FranksOps/contactscout/internal/storage"
	"github.com/FranksOps/contactscout/internal/storage/csvbackend"
	"github.com/FranksOps/contactscout/internal/storage/jsonbackend"
	"github.com/FranksOps/contactscout/pkg/proxy"
	"github.com/FranksOps/contactscout/pkg/ratelimit"
	"github.com/FranksOps/contactscout/pkg/useragent"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configFile string
	verbose    bool
	summary    string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "contactscout <query>",
		Short: "Find public contact emails and phone numbers for a search query",
		Example: `  contactscout "wedding planners malaga"
  contactscout --provider searxng --searx-url http://localhost:8080 "dentistas valencia"`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				fmt.Fprint(stderr, cmd.UsageString())
				return err
			}
			return nil
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, opts.configFile)
			if err != nil {
				return err
			}
			if opts.verbose {
				cfg.Log.Level = "debug"
			}
			switch opts.summary {
			case "text", "json", "none":
			default:
				return fmt.Errorf("--summary %q is not one of text, json, none", opts.summary)
			}

			logger, err := newLogger(stderr, cfg.Log)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], opts.summary, stdout, stderr, logger)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprint(stderr, c.UsageString())
		return err
	})

	f := cmd.Flags()
	f.StringVar(&opts.configFile, "config", "", "YAML config file")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	f.StringVar(&opts.summary, "summary", "text", "run summary format: text, json or none")

	f.String("provider", "google", "search provider: google, searxng or file")
	f.Int("max-results", 30, "maximum candidate URLs")
	f.String("lang", "es", "search language (BCP 47)")
	f.String("searx-url", "", "SearxNG base URL")
	f.String("results-file", "", "results file for the file provider")
	f.Duration("timeout", 10*time.Second, "per-page fetch timeout")
	f.String("fingerprint", string(fingerprint.ProfileChrome), "TLS fingerprint: chrome, firefox, safari, random or go")
	f.String("proxy-file", "", "file with one proxy URL per line")
	f.String("ua-rotation", "sequential", "user agent rotation: sequential or random")
	f.Bool("respect-robots", false, "skip pages disallowed by robots.txt")
	f.Float64("rps", 0, "maximum requests per second (0 = unlimited)")
	f.Int("concurrency", 1, "pages fetched in parallel")
	f.String("phone-region", "", "region for E.164 phone normalisation, e.g. ES")
	f.String("output-dir", "output", "report directory")
	f.String("export", "", "also export entries as ndjson or csv")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port during the run")
	f.String("log-format", "text", "log format: text or json")

	for key, flag := range map[string]string{
		"search.provider":      "provider",
		"search.max_results":   "max-results",
		"search.language":      "lang",
		"search.searx_url":     "searx-url",
		"search.file":          "results-file",
		"fetch.timeout":        "timeout",
		"fetch.fingerprint":    "fingerprint",
		"fetch.proxy_file":     "proxy-file",
		"fetch.ua_rotation":    "ua-rotation",
		"fetch.respect_robots": "respect-robots",
		"fetch.rps":            "rps",
		"fetch.concurrency":    "concurrency",
		"extract.phone_region": "phone-region",
		"output.dir":           "output-dir",
		"output.export":        "export",
		"metrics.port":         "metrics-port",
		"log.format":           "log-format",
	} {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
	return cmd
}

func newLogger(w io.Writer, cfg config.Log) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

func newFetcher(cfg *config.Config, logger *slog.Logger) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.Fetch.Fingerprint)
	if err != nil {
		return nil, err
	}
	fc := scraper.FetchConfig{
		Timeout:       cfg.Fetch.Timeout,
		MaxRedirects:  cfg.Fetch.MaxRedirects,
		UseCookieJar:  true,
		Language:      cfg.Search.Language,
		UAPool:        useragent.NewPool(cfg.Fetch.UserAgents),
		Fingerprint:   profile,
		RandomUA:      cfg.Fetch.UARotation == "random",
		RespectRobots: cfg.Fetch.RespectRobots,
		Logger:        logger,
	}
	if cfg.Fetch.ProxyFile != "" {
		pool := proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(cfg.Fetch.ProxyFile); err != nil {
			return nil, err
		}
		logger.Info("proxies loaded", "count", pool.Len())
		fc.ProxyPool = pool
	}
	if cfg.Fetch.RPS > 0 {
		fc.Limiter = ratelimit.NewLimiter(cfg.Fetch.RPS, cfg.Fetch.Jitter)
	}
	return scraper.NewFetcher(fc)
}

func run(ctx context.Context, cfg *config.Config, query, summaryFormat string, stdout, stderr io.Writer, logger *slog.Logger) error {
	start := time.Now()
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	if cfg.Metrics.Port > 0 {
		srv, err := metrics.Start(cfg.Metrics.Port, logger)
		if err != nil {
			return err
		}
		logger.Info("metrics server listening", "addr", srv.Addr())
		defer srv.Stop(context.Background())
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup fetcher: %w", err)
	}
	defer fetcher.Close()

	provider, err := serp.New(serp.Config{
		Provider: cfg.Search.Provider,
		SearxURL: cfg.Search.SearxURL,
		SearxKey: cfg.Search.SearxKey,
		File:     cfg.Search.File,
		Pages:    fetcher,
	})
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Config{
		MaxResults:  cfg.Search.MaxResults,
		Language:    cfg.Search.Language,
		Concurrency: cfg.Fetch.Concurrency,
	}, provider, fetcher, extract.New(cfg.ExtractOptions()), logger)

	entries, err := p.Run(ctx, query)
	if err != nil {
		logger.Error("run aborted", "err", err)
		return err
	}

	state := dedup.NewState()
	survivors := dedup.Aggregate(entries, state)

	// stdout carries only the summary when it is JSON.
	status := stdout
	if summaryFormat == "json" {
		status = stderr
	}

	persister := report.NewPersister(cfg.Output.Dir, cfg.Output.Ext)
	reportPath, err := persister.Persist(survivors, query)
	switch {
	case errors.Is(err, report.ErrNoEntries):
		fmt.Fprintln(status, "No contacts found; no file created.")
	case err != nil:
		return fmt.Errorf("persist report: %w", err)
	default:
		fmt.Fprintf(status, "Report written to %s\n", reportPath)
	}

	var (
		exportPath string
		exported   int
	)
	if cfg.Output.Export != "" && len(survivors) > 0 {
		exportPath, exported, err = export(ctx, persister, cfg.Output.Export, runID, query, survivors)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "Export written to %s\n", exportPath)
	}

	summary := report.GenerateSummary(query, p.Stats(), state, start, time.Now())
	summary.RunID = runID
	summary.Provider = provider.Name()
	summary.ReportPath = reportPath
	summary.ExportPath = exportPath
	summary.Exported = exported

	switch summaryFormat {
	case "json":
		return report.WriteJSON(stdout, summary)
	case "text":
		return report.WriteText(stderr, summary)
	}
	return nil
}

// export writes entries next to the report and reads the run's records back,
// returning how many landed in the file.
func export(ctx context.Context, persister *report.Persister, format, runID, query string, entries []contact.Entry) (string, int, error) {
	f, path, err := persister.Create(report.SanitizeFilename(query), "."+format)
	if err != nil {
		return "", 0, err
	}
	f.Close()

	var backend storage.Backend
	if format == "csv" {
		backend, err = csvbackend.New(path)
	} else {
		backend, err = jsonbackend.New(path)
	}
	if err != nil {
		return "", 0, err
	}
	defer backend.Close()

	if err := storage.SaveAll(ctx, backend, storage.Records(runID, query, entries, time.Now())); err != nil {
		return "", 0, fmt.Errorf("export entries: %w", err)
	}
	recs, err := backend.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		return "", 0, fmt.Errorf("verify export: %w", err)
	}
	if len(recs) != len(entries) {
		return "", 0, fmt.Errorf("verify export: wrote %d entries, read back %d", len(entries), len(recs))
	}
	return path, len(recs), nil
}
