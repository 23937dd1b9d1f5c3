package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/epscrapper/epscrapper/internal/database"
	"github.com/epscrapper/epscrapper/internal/model"
)

func sessionWith(t *testing.T, urls ...string) *model.ScrapeReport {
	t.Helper()

	r := model.NewScrapeReport("https://app.example.com")
	r.DateScraped = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	for _, u := range urls {
		r.AddEndpoint(model.Endpoint{URL: u, Source: model.SourceDOM, Type: model.TypeAnchor})
	}
	return r
}

func TestDiffSessions(t *testing.T) {
	t.Parallel()

	t.Run("detects added and removed endpoints", func(t *testing.T) {
		t.Parallel()

		previous := sessionWith(t,
			"https://app.example.com/a",
			"https://app.example.com/b",
			"https://app.example.com/old",
		)
		current := sessionWith(t,
			"https://app.example.com/a",
			"https://app.example.com/b",
			"https://app.example.com/new1",
			"https://app.example.com/new2",
		)

		diff := diffSessions(previous, current)

		if len(diff.Added) != 2 {
			t.Errorf("Added = %d, want 2", len(diff.Added))
		}
		if len(diff.Removed) != 1 {
			t.Errorf("Removed = %d, want 1", len(diff.Removed))
		}
		if diff.UnchangedCount != 2 {
			t.Errorf("UnchangedCount = %d, want 2", diff.UnchangedCount)
		}
		if diff.Direction != surfaceDirectionGrew {
			t.Errorf("Direction = %q, want %q", diff.Direction, surfaceDirectionGrew)
		}
		if diff.Removed[0].URL != "https://app.example.com/old" {
			t.Errorf("Removed[0] = %q", diff.Removed[0].URL)
		}
	})

	t.Run("identical sessions", func(t *testing.T) {
		t.Parallel()

		previous := sessionWith(t, "https://app.example.com/a")
		current := sessionWith(t, "https://app.example.com/a")

		diff := diffSessions(previous, current)
		if len(diff.Added) != 0 || len(diff.Removed) != 0 {
			t.Errorf("expected no changes, got %d added %d removed", len(diff.Added), len(diff.Removed))
		}
		if diff.Direction != surfaceDirectionUnchanged {
			t.Errorf("Direction = %q, want %q", diff.Direction, surfaceDirectionUnchanged)
		}
	})

	t.Run("shrinking surface", func(t *testing.T) {
		t.Parallel()

		previous := sessionWith(t, "https://app.example.com/a", "https://app.example.com/b")
		current := sessionWith(t, "https://app.example.com/a")

		diff := diffSessions(previous, current)
		if diff.Direction != surfaceDirectionShrank {
			t.Errorf("Direction = %q, want %q", diff.Direction, surfaceDirectionShrank)
		}
	})

	t.Run("added endpoints keep first-seen order", func(t *testing.T) {
		t.Parallel()

		previous := sessionWith(t)
		current := sessionWith(t,
			"https://app.example.com/z",
			"https://app.example.com/a",
		)

		diff := diffSessions(previous, current)
		if len(diff.Added) != 2 {
			t.Fatalf("Added = %d, want 2", len(diff.Added))
		}
		if diff.Added[0].URL != "https://app.example.com/z" {
			t.Errorf("Added[0] = %q, want first-seen order preserved", diff.Added[0].URL)
		}
	})
}

func TestRunSessionDiffRejectsLatestSession(t *testing.T) {
	t.Parallel()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.SaveSession(ctx, sessionWith(t, "https://app.example.com/a")); err != nil {
		t.Fatal(err)
	}
	latestID, err := db.SaveSession(ctx, sessionWith(t, "https://app.example.com/a", "https://app.example.com/b"))
	if err != nil {
		t.Fatal(err)
	}

	// Comparing the latest session against itself would always report an
	// unchanged surface, so that ID is rejected.
	err = runSessionDiff(ctx, db, "https://app.example.com", latestID, false)
	if err == nil {
		t.Fatal("expected error when --with-session-id targets the latest session")
	}
	if !strings.Contains(err.Error(), "latest") {
		t.Errorf("error = %v, want mention of the latest session", err)
	}
}
