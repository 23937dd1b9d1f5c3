package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/epscrapper/epscrapper/internal/model"
)

func testReport(t *testing.T, origin string) *model.ScrapeReport {
	t.Helper()

	report := model.NewScrapeReport(origin)
	report.LoginURL = origin + "/login"
	report.DashboardURL = origin + "/dashboard"
	report.LandedURL = origin + "/dashboard"
	report.PagesVisited = 3
	report.AuthDuration = 12 * time.Second
	report.AddEndpoints([]model.Endpoint{
		{URL: origin + "/dashboard", Source: model.SourceDOM, Type: model.TypeAnchor, Page: origin + "/dashboard"},
		{URL: origin + "/api/users", Source: model.SourceNetwork, Type: "xhr", Method: "GET", Page: origin + "/dashboard"},
		{URL: origin + "/static/app.js", Source: model.SourceDOM, Type: model.TypeScript, Page: origin + "/dashboard"},
	})
	return report
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database when CreateIfNotExists is true", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		hdb, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer hdb.Close()

		if _, err := os.Stat(filepath.Join(dir, "epscrapper.db")); err != nil {
			t.Errorf("expected database file to exist: %v", err)
		}
	})

	t.Run("fails when database missing and CreateIfNotExists is false", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		opts := Options{CreateIfNotExists: false, EnableWAL: true}
		if _, err := Open(dir, opts); err == nil {
			t.Error("expected error opening non-existent database")
		}
	})

	t.Run("reopens existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		hdb, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if _, err := hdb.SaveSession(context.Background(), testReport(t, "https://app.example.com")); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
		if err := hdb.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		reopened, err := Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("Open() on existing database error = %v", err)
		}
		defer reopened.Close()

		sessions, err := reopened.ListSessions(context.Background(), "", 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 1 {
			t.Errorf("expected 1 session after reopen, got %d", len(sessions))
		}
	})
}

func TestHistoryDBSaveSession(t *testing.T) {
	t.Parallel()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer hdb.Close()

	ctx := context.Background()
	report := testReport(t, "https://app.example.com")

	id, err := hdb.SaveSession(ctx, report)
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive session id, got %d", id)
	}

	sessions, err := hdb.ListSessions(ctx, "https://app.example.com", 0)
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}

	meta := sessions[0]
	if meta.ID != id {
		t.Errorf("session id = %d, want %d", meta.ID, id)
	}
	if meta.Origin != "https://app.example.com" {
		t.Errorf("origin = %q, want %q", meta.Origin, "https://app.example.com")
	}
	if meta.EndpointCount != 3 {
		t.Errorf("endpoint count = %d, want 3", meta.EndpointCount)
	}
	if meta.PagesVisited != 3 {
		t.Errorf("pages visited = %d, want 3", meta.PagesVisited)
	}
}

func TestHistoryDBGetSessionByID(t *testing.T) {
	t.Parallel()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer hdb.Close()

	ctx := context.Background()

	t.Run("round trips a full report", func(t *testing.T) {
		report := testReport(t, "https://app.example.com")
		id, err := hdb.SaveSession(ctx, report)
		if err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}

		got, err := hdb.GetSessionByID(ctx, id)
		if err != nil {
			t.Fatalf("GetSessionByID() error = %v", err)
		}
		if got == nil {
			t.Fatal("expected report, got nil")
		}
		if got.Origin != report.Origin {
			t.Errorf("origin = %q, want %q", got.Origin, report.Origin)
		}
		if len(got.Endpoints) != len(report.Endpoints) {
			t.Errorf("endpoints = %d, want %d", len(got.Endpoints), len(report.Endpoints))
		}
		if got.Endpoints[1].Method != "GET" {
			t.Errorf("method = %q, want GET", got.Endpoints[1].Method)
		}
	})

	t.Run("returns nil for unknown id", func(t *testing.T) {
		got, err := hdb.GetSessionByID(ctx, 99999)
		if err != nil {
			t.Fatalf("GetSessionByID() error = %v", err)
		}
		if got != nil {
			t.Errorf("expected nil report for unknown id, got %+v", got)
		}
	})
}

func TestHistoryDBGetSessionEndpoints(t *testing.T) {
	t.Parallel()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer hdb.Close()

	ctx := context.Background()
	report := testReport(t, "https://app.example.com")
	id, err := hdb.SaveSession(ctx, report)
	if err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	endpoints, err := hdb.GetSessionEndpoints(ctx, id)
	if err != nil {
		t.Fatalf("GetSessionEndpoints() error = %v", err)
	}
	if len(endpoints) != 3 {
		t.Fatalf("expected 3 endpoints, got %d", len(endpoints))
	}
	// Insert order preserved.
	if endpoints[0].URL != "https://app.example.com/dashboard" {
		t.Errorf("first endpoint = %q, want dashboard URL", endpoints[0].URL)
	}
	if endpoints[1].Source != model.SourceNetwork {
		t.Errorf("second endpoint source = %q, want %q", endpoints[1].Source, model.SourceNetwork)
	}
}

func TestHistoryDBListSessions(t *testing.T) {
	t.Parallel()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer hdb.Close()

	ctx := context.Background()
	for _, origin := range []string{"https://a.example.com", "https://a.example.com", "https://b.example.com"} {
		if _, err := hdb.SaveSession(ctx, testReport(t, origin)); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	t.Run("filters by origin", func(t *testing.T) {
		sessions, err := hdb.ListSessions(ctx, "https://a.example.com", 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 2 {
			t.Errorf("expected 2 sessions for origin, got %d", len(sessions))
		}
	})

	t.Run("returns all origins when filter is empty", func(t *testing.T) {
		sessions, err := hdb.ListSessions(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 3 {
			t.Errorf("expected 3 sessions, got %d", len(sessions))
		}
	})

	t.Run("respects limit", func(t *testing.T) {
		sessions, err := hdb.ListSessions(ctx, "", 1)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		if len(sessions) != 1 {
			t.Errorf("expected 1 session with limit, got %d", len(sessions))
		}
	})

	t.Run("most recent first", func(t *testing.T) {
		sessions, err := hdb.ListSessions(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListSessions() error = %v", err)
		}
		for i := 1; i < len(sessions); i++ {
			if sessions[i-1].ID < sessions[i].ID {
				t.Errorf("sessions not ordered most recent first: %d before %d",
					sessions[i-1].ID, sessions[i].ID)
			}
		}
	})
}

func TestHistoryDBListOrigins(t *testing.T) {
	t.Parallel()

	hdb, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer hdb.Close()

	ctx := context.Background()
	for _, origin := range []string{"https://b.example.com", "https://a.example.com", "https://a.example.com"} {
		if _, err := hdb.SaveSession(ctx, testReport(t, origin)); err != nil {
			t.Fatalf("SaveSession() error = %v", err)
		}
	}

	origins, err := hdb.ListOrigins(ctx)
	if err != nil {
		t.Fatalf("ListOrigins() error = %v", err)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(origins) != len(want) {
		t.Fatalf("origins = %v, want %v", origins, want)
	}
	for i := range want {
		if origins[i] != want[i] {
			t.Errorf("origins[%d] = %q, want %q", i, origins[i], want[i])
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "sqlite default format", input: "2026-08-26 10:30:00", valid: true},
		{name: "iso 8601 with Z", input: "2026-08-26T10:30:00Z", valid: true},
		{name: "rfc3339 with offset", input: "2026-08-26T10:30:00+09:00", valid: true},
		{name: "garbage", input: "not a timestamp", valid: false},
		{name: "empty", input: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := parseTimestamp(tt.input)
			if tt.valid && got.IsZero() {
				t.Errorf("parseTimestamp(%q) returned zero time, want valid", tt.input)
			}
			if !tt.valid && !got.IsZero() {
				t.Errorf("parseTimestamp(%q) = %v, want zero time", tt.input, got)
			}
		})
	}
}
