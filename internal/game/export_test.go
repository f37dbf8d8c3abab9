package game

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestExportSummaryAppends(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 1})
	f.engine.StartTurn()
	f.engine.MarkHardPhraseGuessed()
	f.engine.EndTurn(TurnEndTimeUp)
	f.playTurn(t)
	sum, err := f.engine.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	filename := filepath.Join(t.TempDir(), "exports", "results.txt")
	at := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	if err := ExportSummary("ABC234", sum, filename, at); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := ExportSummary("XYZ789", sum, filename, at); err != nil {
		t.Fatalf("second export: %v", err)
	}

	raw, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(raw)
	for _, want := range []string{
		"Cavetalk Game Results - Room ABC234",
		"Cavetalk Game Results - Room XYZ789",
		"Ended: 2024-05-01 13:00:00",
		"Grunters round 1 (poet Alice): 3 points, 1/1 cards, 0 skipped",
		"- Grunters: 3 points",
		"Winner: Grunters",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "- Grunters: 3 points") > strings.Index(out, "- Pointers: 0 points") {
		t.Fatal("final scores should be listed highest first")
	}
}

func TestExportSummaryNil(t *testing.T) {
	if err := ExportSummary("ABC234", nil, filepath.Join(t.TempDir(), "x.txt"), time.Now()); err == nil {
		t.Fatal("expected error for missing summary")
	}
}
