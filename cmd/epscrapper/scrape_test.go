package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/epscrapper/epscrapper/internal/config"
	"github.com/epscrapper/epscrapper/internal/model"
)

func TestBuildScrapeConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults with positional login URL", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags([]string{"--dashboard", "app.example.com/home"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, []string{"app.example.com/login"})
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}

		if cfg.LoginURL != "https://app.example.com/login" {
			t.Errorf("LoginURL = %q, want https scheme added", cfg.LoginURL)
		}
		if cfg.DashboardURL != "https://app.example.com/home" {
			t.Errorf("DashboardURL = %q, want https scheme added", cfg.DashboardURL)
		}
		if !cfg.SameOriginOnly {
			t.Error("SameOriginOnly should default to true")
		}
		if !cfg.IncludeStatic {
			t.Error("IncludeStatic should default to true")
		}
		if cfg.Headless {
			t.Error("browser should be headed by default")
		}
		if !cfg.SaveToDB {
			t.Error("SaveToDB should default to true")
		}
		if cfg.WaitTimeout != config.DefaultWaitTimeout {
			t.Errorf("WaitTimeout = %v, want %v", cfg.WaitTimeout, config.DefaultWaitTimeout)
		}
	})

	t.Run("filter and crawl flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		err := cmd.ParseFlags([]string{
			"--dashboard", "https://app.example.com/home",
			"--any-origin",
			"--only-api",
			"--crawl",
			"--depth", "3",
			"--max-pages", "10",
			"--crawl-delay", "250ms",
			"--no-save",
			"--headless",
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, []string{"https://app.example.com/login"})
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}

		if cfg.SameOriginOnly {
			t.Error("--any-origin should disable SameOriginOnly")
		}
		if cfg.IncludeStatic {
			t.Error("--only-api should disable IncludeStatic")
		}
		if !cfg.Crawl || cfg.CrawlDepth != 3 || cfg.MaxPages != 10 {
			t.Errorf("crawl settings = %v/%d/%d", cfg.Crawl, cfg.CrawlDepth, cfg.MaxPages)
		}
		if cfg.CrawlDelay != 250*time.Millisecond {
			t.Errorf("CrawlDelay = %v, want 250ms", cfg.CrawlDelay)
		}
		if cfg.SaveToDB {
			t.Error("--no-save should disable SaveToDB")
		}
		if !cfg.Headless {
			t.Error("--headless should enable headless mode")
		}
	})

	t.Run("infers format from output extension", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		err := cmd.ParseFlags([]string{
			"--dashboard", "app.example.com/home",
			"-o", "endpoints.csv",
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, nil)
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}
		if cfg.Format != config.FormatCSV {
			t.Errorf("Format = %q, want %q inferred from .csv extension", cfg.Format, config.FormatCSV)
		}
	})

	t.Run("explicit format wins over extension", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		err := cmd.ParseFlags([]string{
			"--dashboard", "app.example.com/home",
			"-f", "json",
			"-o", "endpoints.csv",
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, nil)
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}
		if cfg.Format != config.FormatJSON {
			t.Errorf("Format = %q, want explicit json to win", cfg.Format)
		}
	})

	t.Run("unknown extension keeps default format", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		err := cmd.ParseFlags([]string{
			"--dashboard", "app.example.com/home",
			"-o", "endpoints.xml",
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, nil)
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}
		if cfg.Format != config.DefaultFormat {
			t.Errorf("Format = %q, want default %q", cfg.Format, config.DefaultFormat)
		}
	})

	t.Run("ignore-cert-errors flag", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		err := cmd.ParseFlags([]string{
			"--dashboard", "app.example.com/home",
			"--ignore-cert-errors",
		})
		if err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, nil)
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}
		if !cfg.IgnoreCertErrors {
			t.Error("--ignore-cert-errors should enable IgnoreCertErrors")
		}

		plain := NewScrapeCmd()
		if err := plain.ParseFlags([]string{"--dashboard", "app.example.com/home"}); err != nil {
			t.Fatal(err)
		}
		plainCfg, err := buildScrapeConfig(plain, nil)
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}
		if plainCfg.IgnoreCertErrors {
			t.Error("IgnoreCertErrors should default to false")
		}
	})

	t.Run("rejects missing explicit config file", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := cmd.ParseFlags([]string{"--dashboard", "app.example.com/home", "-c", missing}); err != nil {
			t.Fatal(err)
		}

		if _, err := buildScrapeConfig(cmd, []string{"app.example.com/login"}); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("validation fails without dashboard", func(t *testing.T) {
		t.Parallel()

		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatal(err)
		}

		cfg, err := buildScrapeConfig(cmd, []string{"app.example.com/login"})
		if err != nil {
			t.Fatalf("buildScrapeConfig() error = %v", err)
		}
		if err := cfg.Validate(); !errors.Is(err, config.ErrNoDashboardURL) {
			t.Errorf("Validate() error = %v, want ErrNoDashboardURL", err)
		}
	})
}

func TestFormatForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{path: "endpoints.json", want: config.FormatJSON, ok: true},
		{path: "out/endpoints.csv", want: config.FormatCSV, ok: true},
		{path: "endpoints.txt", want: config.FormatPlain, ok: true},
		{path: "endpoints.md", want: config.FormatMarkdown, ok: true},
		{path: "ENDPOINTS.JSON", want: config.FormatJSON, ok: true},
		{path: "endpoints.xml", want: "", ok: false},
		{path: "endpoints", want: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			got, ok := formatForExtension(tt.path)
			if got != tt.want || ok != tt.ok {
				t.Errorf("formatForExtension(%q) = (%q, %v), want (%q, %v)",
					tt.path, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestShouldWriteReport(t *testing.T) {
	t.Parallel()

	rep := model.NewScrapeReport("https://app.example.com")
	rep.AddEndpoint(model.Endpoint{URL: "https://app.example.com/api/users", Source: model.SourceNetwork})

	empty := model.NewScrapeReport("https://app.example.com")

	tests := []struct {
		name    string
		report  *model.ScrapeReport
		execErr error
		want    bool
	}{
		{name: "clean session", report: empty, execErr: nil, want: true},
		{name: "failed session with partial endpoints", report: rep, execErr: errors.New("login timed out"), want: true},
		{name: "failed session with nothing collected", report: empty, execErr: errors.New("login timed out"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := shouldWriteReport(tt.report, tt.execErr); got != tt.want {
				t.Errorf("shouldWriteReport() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutputReportTimedOut(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.OutputFile = filepath.Join(t.TempDir(), "endpoints.json")
	cfg.Format = config.FormatJSON

	rep := model.NewScrapeReport("https://app.example.com")
	rep.TimedOut = true
	rep.AddEndpoint(model.Endpoint{URL: "https://app.example.com/api/users", Source: model.SourceNetwork, Type: "xhr"})

	if err := outputReport(cfg, rep); err != nil {
		t.Fatalf("outputReport() error = %v", err)
	}

	data, err := os.ReadFile(cfg.OutputFile)
	if err != nil {
		t.Fatalf("output file not written: %v", err)
	}
	if !strings.Contains(string(data), "https://app.example.com/api/users") {
		t.Errorf("output file missing collected endpoint: %s", data)
	}
}

func TestWriterForFormat(t *testing.T) {
	t.Parallel()

	for _, format := range []string{
		config.FormatJSON, config.FormatCSV, config.FormatPlain, config.FormatMarkdown,
	} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			w, err := writerForFormat(format, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("writerForFormat(%q) error = %v", format, err)
			}
			if w == nil {
				t.Errorf("writerForFormat(%q) returned nil writer", format)
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		if _, err := writerForFormat("xml", &bytes.Buffer{}); err == nil {
			t.Error("expected error for unknown format")
		}
	})
}

func TestSiteConfigFor(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.SiteConfigs = &config.File{
		Defaults: config.SiteConfig{Depth: 1},
		Sites: map[string]config.SiteConfig{
			"app.example.com": {Cookie: "sid=abc", Depth: 4},
		},
	}

	t.Run("matches dashboard host", func(t *testing.T) {
		t.Parallel()

		site := siteConfigFor(cfg, "https://app.example.com/home")
		if site.Cookie != "sid=abc" || site.Depth != 4 {
			t.Errorf("site = %+v, want host-specific settings", site)
		}
	})

	t.Run("falls back to defaults for unknown host", func(t *testing.T) {
		t.Parallel()

		site := siteConfigFor(cfg, "https://other.example.com/home")
		if site.Cookie != "" || site.Depth != 1 {
			t.Errorf("site = %+v, want defaults", site)
		}
	})

	t.Run("nil site configs", func(t *testing.T) {
		t.Parallel()

		empty := config.NewConfig()
		site := siteConfigFor(empty, "https://app.example.com/home")
		if site.Cookie != "" {
			t.Errorf("site = %+v, want zero value", site)
		}
	})
}
