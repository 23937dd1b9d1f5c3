package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/epscrapper/epscrapper/internal/config"
	"github.com/epscrapper/epscrapper/internal/database"
	"github.com/epscrapper/epscrapper/internal/model"
	"github.com/epscrapper/epscrapper/internal/origin"
)

// Messages for endpoint surface direction.
const (
	surfaceDirectionGrew      = "grew"
	surfaceDirectionShrank    = "shrank"
	surfaceDirectionUnchanged = "unchanged"
)

// NewDiffCmd creates the diff command.
// This command compares scrape sessions stored in the history database.
func NewDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [origin]",
		Short: "Compare endpoint sets between scrape sessions",
		Long: `Diff shows how an application's endpoint surface changed between sessions.

It retrieves stored sessions from the history database and reports:
- Endpoints that appeared since the previous session
- Endpoints that disappeared
- How many endpoints are unchanged

The comparison requires at least two sessions stored for the origin.
Use 'epscrapper scrape' to collect sessions.

Examples:
  # Compare the latest two sessions for an origin
  epscrapper diff app.example.com

  # List stored sessions for an origin
  epscrapper diff --list app.example.com

  # Compare the latest session with a specific older one
  epscrapper diff --with-session-id 5 app.example.com

  # Output the comparison as JSON
  epscrapper diff --json app.example.com

  # List all origins in the database
  epscrapper diff --list-origins`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDiffCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List stored sessions for the specified origin")
	cmd.Flags().BoolP("list-origins", "L", false,
		"List all origins in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-session-id", "i", 0,
		"Compare with a specific session by ID (use --list to see available IDs)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")

	return cmd
}

// runDiffCmd executes the diff command.
func runDiffCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-origins flag first (requires database but no origin)
	listOrigins, err := cmd.Flags().GetBool("list-origins")
	if err != nil {
		return err
	}

	// Validate arguments before opening database (unless --list-origins).
	// This prevents database lock issues when validation fails.
	var targetOrigin string
	if !listOrigins {
		if len(args) == 0 {
			return errors.New("origin is required (use --list-origins to see stored origins)")
		}

		targetOrigin, err = origin.Of(args[0])
		if err != nil {
			return fmt.Errorf("invalid origin: %w", err)
		}
	}

	// Sessions are stored under the XDG data directory by the scrape command.
	db, err := database.Open(config.XDGDataDir(), database.Options{
		CreateIfNotExists: false,
		EnableWAL:         true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	if listOrigins {
		return listStoredOrigins(ctx, db)
	}

	listSessions, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listSessions {
		return listSessionHistory(ctx, db, targetOrigin)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	withSessionID, err := cmd.Flags().GetInt64("with-session-id")
	if err != nil {
		return err
	}

	return runSessionDiff(ctx, db, targetOrigin, withSessionID, jsonOutput)
}

// listStoredOrigins lists all origins that have sessions in the database.
func listStoredOrigins(ctx context.Context, db *database.HistoryDB) error {
	origins, err := db.ListOrigins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list origins: %w", err)
	}

	if len(origins) == 0 {
		fmt.Println("No sessions found in the database.")
		fmt.Println("\nUse 'epscrapper scrape <login-url>' to collect a session.")
		return nil
	}

	fmt.Printf("Stored origins (%d):\n\n", len(origins))
	for _, o := range origins {
		fmt.Printf("  • %s\n", o)
	}
	fmt.Println("\nUse 'epscrapper diff --list <origin>' to see sessions for an origin.")

	return nil
}

// listSessionHistory lists all sessions stored for an origin.
func listSessionHistory(ctx context.Context, db *database.HistoryDB, targetOrigin string) error {
	sessions, err := db.ListSessions(ctx, targetOrigin, 0)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Printf("No sessions found for %s\n", targetOrigin)
		fmt.Println("\nUse 'epscrapper scrape' to collect a session for this origin.")
		return nil
	}

	fmt.Printf("Sessions for %s (%d):\n\n", targetOrigin, len(sessions))
	fmt.Printf("  %-6s  %-20s  %-8s  %s\n", "ID", "Date", "Pages", "Endpoints")
	fmt.Println("  " + strings.Repeat("-", 52))

	for _, meta := range sessions {
		fmt.Printf("  %-6d  %-20s  %-8d  %d\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.PagesVisited,
			meta.EndpointCount,
		)
	}

	fmt.Println("\nUse 'epscrapper diff <origin>' to compare the latest two sessions.")
	fmt.Println("Use 'epscrapper diff --with-session-id <id> <origin>' to compare with a specific session.")

	return nil
}

// runSessionDiff performs the comparison between two stored sessions.
func runSessionDiff(ctx context.Context, db *database.HistoryDB, targetOrigin string, withSessionID int64, jsonOutput bool) error {
	sessions, err := db.ListSessions(ctx, targetOrigin, 0)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		return fmt.Errorf("no sessions found for %s", targetOrigin)
	}
	if len(sessions) < 2 && withSessionID == 0 {
		return fmt.Errorf("at least 2 sessions are required for comparison (found %d)", len(sessions))
	}

	// Latest session is always the current one.
	currentMeta := sessions[0]
	current, err := db.GetSessionByID(ctx, currentMeta.ID)
	if err != nil {
		return fmt.Errorf("failed to load session %d: %w", currentMeta.ID, err)
	}

	var previousMeta database.SessionMetadata
	if withSessionID > 0 {
		if withSessionID == currentMeta.ID {
			return fmt.Errorf("session %d is the latest session; pick an older session to compare against (use --list to see IDs)", withSessionID)
		}
		found := false
		for _, meta := range sessions {
			if meta.ID == withSessionID {
				previousMeta = meta
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("session %d not found for %s", withSessionID, targetOrigin)
		}
	} else {
		previousMeta = sessions[1]
	}

	previous, err := db.GetSessionByID(ctx, previousMeta.ID)
	if err != nil {
		return fmt.Errorf("failed to load session %d: %w", previousMeta.ID, err)
	}
	if previous == nil || current == nil {
		return errors.New("stored session could not be loaded")
	}

	diff := diffSessions(previous, current)
	diff.PreviousSessionID = previousMeta.ID
	diff.CurrentSessionID = currentMeta.ID

	if jsonOutput {
		return outputDiffJSON(diff)
	}
	return outputDiffText(diff)
}

// DiffResult holds the result of comparing two scrape sessions.
type DiffResult struct {
	// Origin is the compared application origin.
	Origin string `json:"origin"`

	// PreviousSessionID and CurrentSessionID identify the compared sessions.
	PreviousSessionID int64 `json:"previous_session_id"`
	CurrentSessionID  int64 `json:"current_session_id"`

	// PreviousDate and CurrentDate are when the sessions were scraped.
	PreviousDate time.Time `json:"previous_date"`
	CurrentDate  time.Time `json:"current_date"`

	// Added contains endpoints present now but not before.
	Added []model.Endpoint `json:"added,omitempty"`

	// Removed contains endpoints present before but gone now.
	Removed []model.Endpoint `json:"removed,omitempty"`

	// UnchangedCount is the number of endpoints present in both sessions.
	UnchangedCount int `json:"unchanged_count"`

	// Direction summarizes the surface change: grew, shrank, or unchanged.
	Direction string `json:"direction"`
}

// diffSessions compares the endpoint sets of two sessions by URL.
func diffSessions(previous, current *model.ScrapeReport) *DiffResult {
	result := &DiffResult{
		Origin:       current.Origin,
		PreviousDate: previous.DateScraped,
		CurrentDate:  current.DateScraped,
	}

	previousSet := make(map[string]model.Endpoint, len(previous.Endpoints))
	for _, ep := range previous.Endpoints {
		previousSet[ep.URL] = ep
	}
	currentSet := make(map[string]model.Endpoint, len(current.Endpoints))
	for _, ep := range current.Endpoints {
		currentSet[ep.URL] = ep
	}

	// Iterate the ordered slices rather than the maps so output order is
	// stable across runs.
	for _, ep := range current.Endpoints {
		if _, exists := previousSet[ep.URL]; !exists {
			result.Added = append(result.Added, ep)
		} else {
			result.UnchangedCount++
		}
	}
	for _, ep := range previous.Endpoints {
		if _, exists := currentSet[ep.URL]; !exists {
			result.Removed = append(result.Removed, ep)
		}
	}

	switch {
	case len(current.Endpoints) > len(previous.Endpoints):
		result.Direction = surfaceDirectionGrew
	case len(current.Endpoints) < len(previous.Endpoints):
		result.Direction = surfaceDirectionShrank
	default:
		result.Direction = surfaceDirectionUnchanged
	}

	return result
}

// outputDiffJSON outputs the comparison result in JSON format.
func outputDiffJSON(result *DiffResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputDiffText outputs the comparison result in human-readable text format.
func outputDiffText(result *DiffResult) error {
	fmt.Printf("Endpoint diff: %s\n", result.Origin)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\nPrevious session: #%d  %s\n",
		result.PreviousSessionID, result.PreviousDate.Format("2006-01-02 15:04:05"))
	fmt.Printf("Current session:  #%d  %s\n",
		result.CurrentSessionID, result.CurrentDate.Format("2006-01-02 15:04:05"))

	fmt.Printf("\nSurface %s: %d added, %d removed, %d unchanged\n",
		result.Direction, len(result.Added), len(result.Removed), result.UnchangedCount)

	if len(result.Added) > 0 {
		fmt.Printf("\nAdded endpoints (%d):\n", len(result.Added))
		for _, ep := range result.Added {
			fmt.Printf("  [+] %s", ep.URL)
			if ep.Method != "" {
				fmt.Printf("  (%s)", ep.Method)
			}
			fmt.Println()
		}
	}

	if len(result.Removed) > 0 {
		fmt.Printf("\nRemoved endpoints (%d):\n", len(result.Removed))
		for _, ep := range result.Removed {
			fmt.Printf("  [-] %s\n", ep.URL)
		}
	}

	if len(result.Added) == 0 && len(result.Removed) == 0 {
		fmt.Println("\nNo endpoint changes between sessions.")
	}

	return nil
}
