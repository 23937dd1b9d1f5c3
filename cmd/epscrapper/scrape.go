package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/epscrapper/epscrapper/internal/browser"
	"github.com/epscrapper/epscrapper/internal/config"
	"github.com/epscrapper/epscrapper/internal/database"
	"github.com/epscrapper/epscrapper/internal/log"
	"github.com/epscrapper/epscrapper/internal/model"
	"github.com/epscrapper/epscrapper/internal/origin"
	"github.com/epscrapper/epscrapper/internal/pipeline"
	"github.com/epscrapper/epscrapper/internal/report"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [login-url]",
		Short: "Collect endpoints from an authenticated web application",
		Long: `Scrape opens the login page in a browser window and waits for you to log in.

Once the browser lands on the dashboard URL, the session is considered
authenticated and endpoint collection begins:
- Links, form actions, and asset references in the rendered DOM
- Network requests the pages fire (XHR, fetch, documents, assets)
- Optionally, the same-origin pages linked from the dashboard (--crawl)

The scheme defaults to https when omitted from either URL.

Examples:
  # Log in by hand, harvest the dashboard
  epscrapper scrape app.example.com/login --dashboard app.example.com/home

  # Crawl two levels of same-origin links after login
  epscrapper scrape app.example.com/login -d app.example.com/home --crawl

  # Keep only API-like requests, write CSV
  epscrapper scrape app.example.com/login -d app.example.com/home \
    --only-api -f csv -o endpoints.csv

  # Reuse a browser profile so the saved session skips login
  epscrapper scrape app.example.com/login -d app.example.com/home \
    --profile-dir ~/.cache/epscrapper/profile

Configuration file (.epscrapper) example:
  sites:
    app.example.com:
      cookie: "session_id=abc123"
      headers:
        X-Requested-With: "epscrapper"
      depth: 3
      ignorePatterns:
        - "/logout*"`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScrapeCmd,
	}

	// Target flags
	cmd.Flags().StringP("dashboard", "d", "",
		"Post-login URL that signals authentication succeeded (required)")

	// Wait behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultWaitTimeout,
		"Maximum time to wait for login to complete")
	cmd.Flags().DurationP("stay", "s", config.DefaultStay,
		"Time to stay on the dashboard before harvesting")

	// Browser flags
	cmd.Flags().Bool("headless", false,
		"Run the browser without a window (login must not need human input)")
	cmd.Flags().String("profile-dir", "",
		"Browser profile directory; reuse across runs to keep the session")
	cmd.Flags().String("user-agent", "",
		"Override the browser User-Agent header")
	cmd.Flags().Bool("ignore-cert-errors", false,
		"Accept invalid TLS certificates (self-signed or expired)")

	// Filtering flags
	cmd.Flags().Bool("any-origin", false,
		"Record endpoints from all origins, not just the dashboard's")
	cmd.Flags().Bool("only-api", false,
		"Keep only API-like endpoints, dropping static assets")

	// Crawl flags
	cmd.Flags().Bool("crawl", false,
		"Crawl same-origin links found on the dashboard after harvesting")
	cmd.Flags().Int("depth", config.DefaultCrawlDepth,
		"Maximum link depth to follow when crawling")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to visit per session")
	cmd.Flags().Duration("crawl-delay", config.DefaultCrawlDelay,
		"Delay between page visits when crawling")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency,
		"Number of browser tabs used when crawling")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"File the collected endpoints are written to")
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Output format: json, csv, txt, or md")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .epscrapper in current or home directory)")

	// Database flags
	cmd.Flags().Bool("no-save", false,
		"Do not save the session to the history database")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildScrapeConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	// Handle interrupt signals so SIGINT during login tears the browser down.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runScrape(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildScrapeConfig creates a Config from cobra command flags.
func buildScrapeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if len(args) > 0 {
		normalized, err := origin.Normalize(args[0])
		if err != nil {
			return nil, fmt.Errorf("invalid login URL: %w", err)
		}
		cfg.LoginURL = normalized
	}

	dashboard, err := cmd.Flags().GetString("dashboard")
	if err != nil {
		return nil, err
	}
	if dashboard != "" {
		normalized, err := origin.Normalize(dashboard)
		if err != nil {
			return nil, fmt.Errorf("invalid dashboard URL: %w", err)
		}
		cfg.DashboardURL = normalized
	}

	cfg.WaitTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Stay, err = cmd.Flags().GetDuration("stay")
	if err != nil {
		return nil, err
	}

	cfg.Headless, err = cmd.Flags().GetBool("headless")
	if err != nil {
		return nil, err
	}

	cfg.ProfileDir, err = cmd.Flags().GetString("profile-dir")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = cmd.Flags().GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.IgnoreCertErrors, err = cmd.Flags().GetBool("ignore-cert-errors")
	if err != nil {
		return nil, err
	}

	anyOrigin, err := cmd.Flags().GetBool("any-origin")
	if err != nil {
		return nil, err
	}
	cfg.SameOriginOnly = !anyOrigin

	onlyAPI, err := cmd.Flags().GetBool("only-api")
	if err != nil {
		return nil, err
	}
	cfg.IncludeStatic = !onlyAPI

	cfg.Crawl, err = cmd.Flags().GetBool("crawl")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDepth, err = cmd.Flags().GetInt("depth")
	if err != nil {
		return nil, err
	}

	cfg.MaxPages, err = cmd.Flags().GetInt("max-pages")
	if err != nil {
		return nil, err
	}

	cfg.CrawlDelay, err = cmd.Flags().GetDuration("crawl-delay")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.Format, err = cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}
	// When --format is left at its default, the output extension decides,
	// so "-o endpoints.csv" writes CSV without needing -f csv.
	if !cmd.Flags().Changed("format") {
		if inferred, ok := formatForExtension(cfg.OutputFile); ok {
			cfg.Format = inferred
		}
	}

	noSave, err := cmd.Flags().GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file.
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// runScrape executes the scrape session end to end.
func runScrape(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	scrapeOrigin, err := origin.Of(cfg.DashboardURL)
	if err != nil {
		return fmt.Errorf("invalid dashboard URL: %w", err)
	}

	// Open database connection if saving is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "dir", cfg.DBDir)
	}

	// chromedp's internal logging is noisy; only route it when verbose.
	var browserLogger *slog.Logger
	if cfg.Verbose {
		browserLogger = logger
	}

	session, err := browser.NewSession(ctx, browser.Options{
		Headless:         cfg.Headless,
		ProfileDir:       cfg.ProfileDir,
		UserAgent:        cfg.UserAgent,
		IgnoreCertErrors: cfg.IgnoreCertErrors,
		Logger:           browserLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer session.Close()

	site := siteConfigFor(cfg, cfg.DashboardURL)

	p, err := pipeline.NewScrapePipeline(session, cfg, site, logger)
	if err != nil {
		return err
	}

	scrapeReport := model.NewScrapeReport(scrapeOrigin)
	scrapeReport.DashboardURL = cfg.DashboardURL

	fmt.Printf("Opening %s\n", cfg.LoginURL)
	fmt.Printf("Waiting up to %s for the browser to reach %s ...\n\n",
		cfg.WaitTimeout, cfg.DashboardURL)

	execErr := p.Execute(ctx, scrapeReport)
	if execErr != nil {
		logger.Error("scrape failed", "origin", scrapeOrigin, "error", execErr)
	}

	if shouldWriteReport(scrapeReport, execErr) {
		if err := outputReport(cfg, scrapeReport); err != nil {
			return err
		}
		if err := saveScrapeReport(ctx, db, scrapeReport, logger); err != nil {
			logger.Error("failed to save session", "origin", scrapeOrigin, "error", err)
		}
	}

	return execErr
}

// shouldWriteReport reports whether the output file gets written for this
// session. A failed or timed-out session still writes whatever was
// collected; only an empty failure skips the file.
func shouldWriteReport(scrapeReport *model.ScrapeReport, execErr error) bool {
	return execErr == nil || len(scrapeReport.Endpoints) > 0
}

// siteConfigFor resolves the site-specific configuration for the dashboard's
// host, merged over the config file's defaults.
func siteConfigFor(cfg *config.Config, dashboardURL string) config.SiteConfig {
	if cfg.SiteConfigs == nil {
		return config.SiteConfig{}
	}
	u, err := url.Parse(dashboardURL)
	if err != nil {
		return cfg.SiteConfigs.Defaults
	}
	return cfg.SiteConfigs.GetSiteConfig(u.Host)
}

// outputReport writes the endpoint file and prints a summary to stdout.
func outputReport(cfg *config.Config, scrapeReport *model.ScrapeReport) error {
	// Create directories if they don't exist
	dir := filepath.Dir(cfg.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Endpoint lists reveal the application's internal surface, so the file
	// is only readable by the owner.
	f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	writer, err := writerForFormat(cfg.Format, f)
	if err != nil {
		return err
	}
	if _, err := writer.Write(scrapeReport); err != nil {
		return fmt.Errorf("failed to write %s output: %w", cfg.Format, err)
	}

	fmt.Printf("Wrote %d endpoints to %s\n\n", len(scrapeReport.Endpoints), cfg.OutputFile)

	summary := report.NewSummaryWriter(os.Stdout, report.WithVerbose(cfg.Verbose))
	if _, err := summary.Write(scrapeReport); err != nil {
		return err
	}

	return nil
}

// formatForExtension maps an output file extension onto a format name.
func formatForExtension(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return config.FormatJSON, true
	case ".csv":
		return config.FormatCSV, true
	case ".txt":
		return config.FormatPlain, true
	case ".md", ".markdown":
		return config.FormatMarkdown, true
	default:
		return "", false
	}
}

// writerForFormat returns the report writer for the configured format.
func writerForFormat(format string, w io.Writer) (report.Writer, error) {
	switch format {
	case config.FormatJSON:
		return report.NewJSONWriter(w, report.WithPrettyPrint()), nil
	case config.FormatCSV:
		return report.NewCSVWriter(w), nil
	case config.FormatPlain:
		return report.NewPlainWriter(w), nil
	case config.FormatMarkdown:
		return report.NewMarkdownWriter(w), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// saveScrapeReport saves the session to the history database.
// If db is nil, this function is a no-op.
func saveScrapeReport(ctx context.Context, db *database.HistoryDB, scrapeReport *model.ScrapeReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled context still allows the save; use a fresh deadline.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	id, err := db.SaveSession(ctx, scrapeReport)
	if err != nil {
		return err
	}

	logger.Info("session saved", "session_id", id, "origin", scrapeReport.Origin)
	fmt.Printf("\nSession saved (id %d). Compare runs with: epscrapper diff %s\n",
		id, scrapeReport.Origin)
	return nil
}
