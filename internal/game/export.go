package game

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ExportSummary appends a finished match to a plain text results file.
func ExportSummary(code string, sum *Summary, filename string, at time.Time) error {
	if sum == nil {
		return fmt.Errorf("%w: no summary to export", ErrValidation)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(formatSummary(code, sum, at, fileExists)); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func formatSummary(code string, sum *Summary, at time.Time, separate bool) string {
	var sb strings.Builder
	if separate {
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Cavetalk Game Results - Room %s\n", code))
	sb.WriteString(fmt.Sprintf("Ended: %s\n", at.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("Duration: %s, %d turns\n", sum.GameDuration.Round(time.Second), sum.TotalRounds))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, rs := range sum.RoundStats {
		sb.WriteString(fmt.Sprintf("%s round %d (poet %s): %d points, %d/%d cards, %d skipped\n",
			rs.TeamName, rs.RoundNumber, rs.PoetName, rs.PointsEarned,
			rs.CardsCompleted, rs.CardsAttempted, rs.CardsSkipped))
	}
	if len(sum.RoundStats) > 0 {
		sb.WriteString("\n")
	}

	teams := append([]TeamSummary(nil), sum.Teams...)
	sort.SliceStable(teams, func(i, j int) bool { return teams[i].Score > teams[j].Score })
	sb.WriteString("Final scores:\n")
	for _, t := range teams {
		sb.WriteString(fmt.Sprintf("- %s: %d points\n", t.Name, t.Score))
	}
	if sum.WinningTeamName != "" {
		sb.WriteString(fmt.Sprintf("\nWinner: %s\n", sum.WinningTeamName))
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	return sb.String()
}
