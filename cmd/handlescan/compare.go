package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/handlescan/handlescan/internal/config"
	"github.com/handlescan/handlescan/internal/history"
	"github.com/handlescan/handlescan/internal/model"
)

// Constants for footprint direction and the placeholder status of sites
// absent from a run.
const (
	footprintExpanded   = "expanded"
	footprintContracted = "contracted"
	footprintUnchanged  = "unchanged"
	statusAbsent        = "absent"
)

// NewCompareCmd creates the compare command.
// This command compares archived runs for a username from the history
// database.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [username]",
		Short: "Compare archived runs for a username",
		Long: `Compare displays differences between the latest and an earlier archived run.

This command retrieves archived run data from the history database and shows:
- Sites where the username is newly claimed since the baseline run
- Sites where a previously claimed username has been released
- Other classification changes, such as a site becoming unreachable

The comparison requires at least two archived runs for the specified
username. Use 'handlescan scan' to probe and archive runs.

Examples:
  # Compare the latest two runs for a username
  handlescan compare alice

  # List all archived runs for a username
  handlescan compare --list alice

  # Compare with a specific archived run by ID
  handlescan compare --with-run-id 5 alice

  # Compare with the first run after a specific date
  handlescan compare --since "2025-01-01" alice

  # Output the comparison in JSON format
  handlescan compare --json alice

  # List all archived usernames in the database
  handlescan compare --list-users`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCompareCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List archived runs for the specified username")
	cmd.Flags().BoolP("list-users", "L", false,
		"List all archived usernames in the database")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	// Handle --list-users flag first (requires database but no username)
	listUsers, err := cmd.Flags().GetBool("list-users")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database (unless --list-users)
	// This prevents database lock issues when validation fails
	var username string
	if !listUsers {
		// Require a username for other operations
		if len(args) == 0 {
			return errors.New("username is required (use --list-users to see archived usernames)")
		}

		username = model.NormalizeUsername(args[0])
		if err := model.ValidateUsername(username); err != nil {
			return fmt.Errorf("invalid username %q: %w", args[0], err)
		}
	}

	// Runs are archived under the XDG data directory
	db, err := history.Open(config.XDGDataDir(), history.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Handle --list-users flag
	if listUsers {
		return listArchivedUsernames(ctx, db)
	}

	// Handle --list flag
	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, db, username)
	}

	// Get output format flags
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Get comparison target flags
	withRunID, err := cmd.Flags().GetInt64("with-run-id")
	if err != nil {
		return err
	}
	sinceDate, err := cmd.Flags().GetString("since")
	if err != nil {
		return err
	}

	// Perform comparison
	return runComparison(ctx, db, username, withRunID, sinceDate, jsonOutput, markdownOutput)
}

// listArchivedUsernames lists all usernames that have archived runs in the
// database.
func listArchivedUsernames(ctx context.Context, db *history.DB) error {
	usernames, err := db.Usernames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list usernames: %w", err)
	}

	if len(usernames) == 0 {
		fmt.Println("No archived runs found in the database.")
		fmt.Println("\nUse 'handlescan scan <username>' to probe a username.")
		return nil
	}

	fmt.Printf("Archived usernames (%d):\n\n", len(usernames))
	for _, username := range usernames {
		fmt.Printf("  • %s\n", username)
	}
	fmt.Println("\nUse 'handlescan compare --list <username>' to see run history for a username.")

	return nil
}

// listRunHistory lists all archived runs for a specific username.
func listRunHistory(ctx context.Context, db *history.DB, username string) error {
	summaries, err := db.History(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(summaries) == 0 {
		fmt.Printf("No run history found for %s\n", username)
		fmt.Println("\nUse 'handlescan scan' to probe this username.")
		return nil
	}

	fmt.Printf("Run history for %s (%d runs):\n\n", username, len(summaries))
	fmt.Printf("  %-6s  %-20s  %-8s  %-8s  %s\n", "ID", "Date", "Sites", "Claimed", "Duration")
	fmt.Println("  " + strings.Repeat("-", 60))

	for _, s := range summaries {
		fmt.Printf("  %-6d  %-20s  %-8d  %-8d  %s\n",
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.SiteCount,
			s.ClaimedCount,
			s.Duration.Round(time.Millisecond),
		)
	}

	fmt.Println("\nUse 'handlescan compare <username>' to compare the latest two runs.")
	fmt.Println("Use 'handlescan compare --with-run-id <id> <username>' to compare with a specific run.")

	return nil
}

// runComparison performs the actual comparison between archived runs.
func runComparison(ctx context.Context, db *history.DB, username string, withRunID int64, sinceDate string, jsonOutput, markdownOutput bool) error {
	// Get the run history
	summaries, err := db.History(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(summaries) == 0 {
		return fmt.Errorf("no run history found for %s", username)
	}

	if len(summaries) < 2 && withRunID == 0 && sinceDate == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(summaries))
	}

	// The newest run is always the comparison target
	latestID := summaries[0].ID
	latest, err := db.RunByID(ctx, latestID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", latestID, err)
	}
	if latest == nil {
		return fmt.Errorf("run with ID %d not found", latestID)
	}

	// Determine the baseline run to compare against
	var baselineID int64

	if withRunID > 0 {
		baselineID = withRunID
	} else if sinceDate != "" {
		parsedDate, err := time.Parse("2006-01-02", sinceDate)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Summaries are sorted newest first, so iterate in reverse to find
		// the first (oldest) run at or after the date
		for i := len(summaries) - 1; i >= 0; i-- {
			s := summaries[i]
			if s.StartedAt.After(parsedDate) || s.StartedAt.Equal(parsedDate) {
				baselineID = s.ID
				break // Stop at the first (oldest) matching run
			}
		}
		if baselineID == 0 {
			return fmt.Errorf("no runs found since %s", sinceDate)
		}
		// If only one run matches and it's the latest run, we can't compare
		if baselineID == latestID {
			return fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", sinceDate)
		}
	} else {
		// Default: compare with the previous run
		baselineID = summaries[1].ID
	}

	baseline, err := db.RunByID(ctx, baselineID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", baselineID, err)
	}
	if baseline == nil {
		return fmt.Errorf("run with ID %d not found", baselineID)
	}
	// Validate that the run ID belongs to the same username
	if baseline.Username != username {
		return fmt.Errorf("run ID %d belongs to %s, not %s", baselineID, baseline.Username, username)
	}

	// Generate comparison result
	delta := compareRuns(baseline, latest, baselineID, latestID)

	// Output the result
	if jsonOutput {
		return outputDeltaJSON(delta)
	}
	if markdownOutput {
		return outputDeltaMarkdown(delta)
	}
	return outputDeltaText(delta)
}

// RunDelta holds the result of comparing two archived runs.
type RunDelta struct {
	// Username is the handle both runs probed.
	Username string `json:"username"`

	// Baseline contains metadata about the older run.
	Baseline RunInfo `json:"baseline_run"`

	// Latest contains metadata about the newer run.
	Latest RunInfo `json:"latest_run"`

	// NewlyClaimed contains sites that classify as claimed in the latest
	// run but did not in the baseline.
	NewlyClaimed []SiteChange `json:"newly_claimed,omitempty"`

	// NewlyReleased contains sites that classified as claimed in the
	// baseline but no longer do.
	NewlyReleased []SiteChange `json:"newly_released,omitempty"`

	// StatusChanges contains the remaining classification changes, where
	// neither side is claimed.
	StatusChanges []SiteChange `json:"status_changes,omitempty"`

	// UnchangedCount is the number of sites whose classification did not
	// change.
	UnchangedCount int `json:"unchanged_count"`

	// Footprint describes the overall change in the handle's presence.
	Footprint FootprintChange `json:"footprint"`
}

// RunInfo contains metadata about an archived run for comparison display.
type RunInfo struct {
	// ID is the run's database ID.
	ID int64 `json:"id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time of the run.
	Duration time.Duration `json:"duration"`

	// SiteCount is the total number of sites the run probed.
	SiteCount int `json:"site_count"`

	// ClaimedCount is the number of sites classified as claimed.
	ClaimedCount int `json:"claimed_count"`

	// AvailableCount is the number of sites classified as available.
	AvailableCount int `json:"available_count"`

	// UnknownCount is the number of sites whose probe was inconclusive.
	UnknownCount int `json:"unknown_count"`

	// IllegalCount is the number of sites that reject the username format.
	IllegalCount int `json:"illegal_count"`
}

// SiteChange describes one site whose classification differs between runs.
type SiteChange struct {
	// Site is the catalog name of the site.
	Site string `json:"site"`

	// From is the classification in the baseline run, or "absent" when the
	// baseline did not probe the site.
	From string `json:"from"`

	// To is the classification in the latest run, or "absent" when the
	// latest run did not probe the site.
	To string `json:"to"`

	// URL is the profile URL, set for newly claimed sites.
	URL string `json:"url,omitempty"`
}

// FootprintChange describes the change in the handle's presence between runs.
type FootprintChange struct {
	// Direction is "expanded", "contracted", or "unchanged".
	Direction string `json:"direction"`

	// ClaimedDelta is the change in claimed site count.
	ClaimedDelta int `json:"claimed_delta"`

	// AvailableDelta is the change in available site count.
	AvailableDelta int `json:"available_delta"`

	// UnknownDelta is the change in inconclusive probe count.
	UnknownDelta int `json:"unknown_delta"`

	// IllegalDelta is the change in rejected username format count.
	IllegalDelta int `json:"illegal_delta"`
}

// compareRuns compares two archived runs and generates a comparison result.
func compareRuns(baseline, latest *model.Run, baselineID, latestID int64) *RunDelta {
	delta := &RunDelta{
		Username: latest.Username,
		Baseline: runInfo(baselineID, baseline),
		Latest:   runInfo(latestID, latest),
	}

	// Walk the latest run's sites, classifying each against the baseline
	seen := make(map[string]bool)
	for _, res := range latest.Results {
		seen[res.SiteName] = true

		from := statusAbsent
		if prev, ok := baseline.Result(res.SiteName); ok {
			from = prev.Status.String()
		}
		to := res.Status.String()
		if from == to {
			delta.UnchangedCount++
			continue
		}

		change := SiteChange{Site: res.SiteName, From: from, To: to}
		switch {
		case res.Status == model.StatusClaimed:
			change.URL = res.UserURL
			delta.NewlyClaimed = append(delta.NewlyClaimed, change)
		case from == model.StatusClaimed.String():
			delta.NewlyReleased = append(delta.NewlyReleased, change)
		default:
			delta.StatusChanges = append(delta.StatusChanges, change)
		}
	}

	// Sites only the baseline probed. A formerly claimed site dropped from
	// the catalog still shrinks the footprint; anything else is catalog
	// churn, not a change in the handle's presence.
	for _, res := range baseline.Results {
		if seen[res.SiteName] || res.Status != model.StatusClaimed {
			continue
		}
		delta.NewlyReleased = append(delta.NewlyReleased, SiteChange{
			Site: res.SiteName,
			From: res.Status.String(),
			To:   statusAbsent,
		})
	}

	// Calculate the footprint change
	delta.Footprint = footprintChange(delta.Baseline, delta.Latest)

	return delta
}

// runInfo extracts comparison metadata from an archived run.
func runInfo(id int64, run *model.Run) RunInfo {
	counts := run.CountByStatus()
	return RunInfo{
		ID:             id,
		StartedAt:      run.StartedAt,
		Duration:       run.Duration,
		SiteCount:      len(run.Results),
		ClaimedCount:   counts[model.StatusClaimed],
		AvailableCount: counts[model.StatusAvailable],
		UnknownCount:   counts[model.StatusUnknown],
		IllegalCount:   counts[model.StatusIllegal],
	}
}

// footprintChange calculates the change in the handle's presence between two
// runs.
func footprintChange(baseline, latest RunInfo) FootprintChange {
	change := FootprintChange{
		ClaimedDelta:   latest.ClaimedCount - baseline.ClaimedCount,
		AvailableDelta: latest.AvailableCount - baseline.AvailableCount,
		UnknownDelta:   latest.UnknownCount - baseline.UnknownCount,
		IllegalDelta:   latest.IllegalCount - baseline.IllegalCount,
	}

	// The direction follows the claimed count alone; the other statuses
	// describe probe quality, not the handle's presence
	if change.ClaimedDelta > 0 {
		change.Direction = footprintExpanded
	} else if change.ClaimedDelta < 0 {
		change.Direction = footprintContracted
	} else {
		change.Direction = footprintUnchanged
	}

	return change
}

// outputDeltaJSON outputs the comparison result in JSON format.
func outputDeltaJSON(delta *RunDelta) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(delta)
}

// outputDeltaMarkdown outputs the comparison result in Markdown format.
func outputDeltaMarkdown(delta *RunDelta) error {
	fmt.Printf("# Run Comparison: %s\n\n", delta.Username)

	// Footprint summary
	fmt.Println("## Summary")
	fmt.Printf("\n**Footprint:** %s\n\n", formatFootprint(delta.Footprint))

	// Run metadata table
	fmt.Println("| Metric | Baseline | Latest | Change |")
	fmt.Println("|--------|----------|--------|--------|")
	fmt.Printf("| Date | %s | %s | - |\n",
		delta.Baseline.StartedAt.Format("2006-01-02 15:04"),
		delta.Latest.StartedAt.Format("2006-01-02 15:04"))
	fmt.Printf("| Claimed | %d | %d | %s |\n",
		delta.Baseline.ClaimedCount,
		delta.Latest.ClaimedCount,
		formatDelta(delta.Footprint.ClaimedDelta))
	fmt.Printf("| Available | %d | %d | %s |\n",
		delta.Baseline.AvailableCount,
		delta.Latest.AvailableCount,
		formatDelta(delta.Footprint.AvailableDelta))
	fmt.Printf("| Unknown | %d | %d | %s |\n",
		delta.Baseline.UnknownCount,
		delta.Latest.UnknownCount,
		formatDelta(delta.Footprint.UnknownDelta))
	fmt.Printf("| Illegal | %d | %d | %s |\n",
		delta.Baseline.IllegalCount,
		delta.Latest.IllegalCount,
		formatDelta(delta.Footprint.IllegalDelta))
	fmt.Printf("| **Total** | **%d** | **%d** | **%s** |\n",
		delta.Baseline.SiteCount,
		delta.Latest.SiteCount,
		formatDelta(delta.Latest.SiteCount-delta.Baseline.SiteCount))

	// Newly claimed sites
	if len(delta.NewlyClaimed) > 0 {
		fmt.Printf("\n## Newly Claimed (%d)\n\n", len(delta.NewlyClaimed))
		for _, c := range delta.NewlyClaimed {
			fmt.Printf("- **%s**: %s -> %s\n", c.Site, c.From, c.To)
			if c.URL != "" {
				fmt.Printf("  - URL: `%s`\n", c.URL)
			}
		}
	}

	// Newly released sites
	if len(delta.NewlyReleased) > 0 {
		fmt.Printf("\n## Newly Released (%d)\n\n", len(delta.NewlyReleased))
		for _, c := range delta.NewlyReleased {
			fmt.Printf("- ~~**%s**~~: %s -> %s\n", c.Site, c.From, c.To)
		}
	}

	// Other classification changes
	if len(delta.StatusChanges) > 0 {
		fmt.Printf("\n## Other Changes (%d)\n\n", len(delta.StatusChanges))
		for _, c := range delta.StatusChanges {
			fmt.Printf("- **%s**: %s -> %s\n", c.Site, c.From, c.To)
		}
	}

	// Unchanged count
	if delta.UnchangedCount > 0 {
		fmt.Printf("\n---\n\n*%d sites unchanged*\n", delta.UnchangedCount)
	}

	return nil
}

// outputDeltaText outputs the comparison result in human-readable text format.
func outputDeltaText(delta *RunDelta) error {
	fmt.Printf("Run Comparison: %s\n", delta.Username)
	fmt.Println(strings.Repeat("=", 60))

	// Footprint summary
	fmt.Printf("\nFootprint: %s\n", formatFootprint(delta.Footprint))

	// Run dates
	fmt.Printf("\nBaseline run: #%-5d %s\n", delta.Baseline.ID,
		delta.Baseline.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Latest run:   #%-5d %s\n", delta.Latest.ID,
		delta.Latest.StartedAt.Format("2006-01-02 15:04:05"))

	// Summary table
	fmt.Println("\nResults Summary:")
	fmt.Printf("  %-10s  %-10s  %-10s  %-10s\n", "Status", "Baseline", "Latest", "Change")
	fmt.Println("  " + strings.Repeat("-", 45))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Claimed",
		delta.Baseline.ClaimedCount, delta.Latest.ClaimedCount,
		formatDelta(delta.Footprint.ClaimedDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Available",
		delta.Baseline.AvailableCount, delta.Latest.AvailableCount,
		formatDelta(delta.Footprint.AvailableDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Unknown",
		delta.Baseline.UnknownCount, delta.Latest.UnknownCount,
		formatDelta(delta.Footprint.UnknownDelta))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Illegal",
		delta.Baseline.IllegalCount, delta.Latest.IllegalCount,
		formatDelta(delta.Footprint.IllegalDelta))
	fmt.Println("  " + strings.Repeat("-", 45))
	fmt.Printf("  %-10s  %-10d  %-10d  %-10s\n", "Total",
		delta.Baseline.SiteCount, delta.Latest.SiteCount,
		formatDelta(delta.Latest.SiteCount-delta.Baseline.SiteCount))

	// Newly claimed sites
	if len(delta.NewlyClaimed) > 0 {
		fmt.Printf("\nNewly Claimed (%d):\n", len(delta.NewlyClaimed))
		for _, c := range delta.NewlyClaimed {
			fmt.Printf("  [+] %s: %s -> %s\n", c.Site, c.From, c.To)
			if c.URL != "" {
				fmt.Printf("      %s\n", c.URL)
			}
		}
	}

	// Newly released sites
	if len(delta.NewlyReleased) > 0 {
		fmt.Printf("\nNewly Released (%d):\n", len(delta.NewlyReleased))
		for _, c := range delta.NewlyReleased {
			fmt.Printf("  [-] %s: %s -> %s\n", c.Site, c.From, c.To)
		}
	}

	// Other classification changes
	if len(delta.StatusChanges) > 0 {
		fmt.Printf("\nOther Changes (%d):\n", len(delta.StatusChanges))
		for _, c := range delta.StatusChanges {
			fmt.Printf("  [~] %s: %s -> %s\n", c.Site, c.From, c.To)
		}
	}

	// Unchanged count
	if delta.UnchangedCount > 0 {
		fmt.Printf("\nUnchanged: %d sites\n", delta.UnchangedCount)
	}

	return nil
}

// formatFootprint formats the footprint change for display.
func formatFootprint(fp FootprintChange) string {
	switch fp.Direction {
	case footprintExpanded:
		return fmt.Sprintf("EXPANDED (%s claimed sites)", formatDelta(fp.ClaimedDelta))
	case footprintContracted:
		return fmt.Sprintf("CONTRACTED (%s claimed sites)", formatDelta(fp.ClaimedDelta))
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	} else if delta < 0 {
		return strconv.Itoa(delta)
	}
	return "0"
}
