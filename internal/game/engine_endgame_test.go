package game

import (
	"errors"
	"testing"
	"time"
)

func TestGameOverAfterRoundsPerTeam(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 1})
	f.playTurn(t)
	if f.engine.IsGameOver() {
		t.Fatal("game should not be over after one team played")
	}
	if f.engine.State() != StateTurnEnded {
		t.Fatalf("expected TURN_ENDED, got %s", f.engine.State())
	}
	f.playTurn(t)
	if f.engine.State() != StateGameOver || !f.engine.IsGameOver() {
		t.Fatalf("expected GAME_OVER, got %s", f.engine.State())
	}
	if _, err := f.engine.StartTurn(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("no turn may start after game over, got %v", err)
	}
}

func TestGameOverExactlyAtRoundLimit(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 3})
	for i := 1; i <= 6; i++ {
		f.playTurn(t)
		if over := f.engine.IsGameOver(); over != (i == 6) {
			t.Fatalf("after %d turns expected game over=%v, got %v", i, i == 6, over)
		}
	}
}

func TestMaxTurnsCapsGame(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 10, MaxTurns: 3})
	f.playTurn(t)
	f.playTurn(t)
	if f.engine.IsGameOver() {
		t.Fatal("game ended before max turns")
	}
	f.playTurn(t)
	if f.engine.State() != StateGameOver {
		t.Fatalf("expected GAME_OVER after 3 turns, got %s", f.engine.State())
	}
}

func TestWinningTeam(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 1})
	if _, ok := f.engine.WinningTeam(); ok {
		t.Fatal("no winner before game over")
	}
	f.engine.StartTurn()
	f.engine.MarkEasyWordGuessed()
	f.engine.EndTurn(TurnEndTimeUp)
	f.engine.StartTurn()
	f.engine.MarkHardPhraseGuessed()
	f.engine.EndTurn(TurnEndTimeUp)

	w, ok := f.engine.WinningTeam()
	if !ok || w.ID != "blue" {
		t.Fatalf("expected blue to win, got %+v (%v)", w, ok)
	}
}

func TestWinningTeamTieGoesToFirstTeam(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 1})
	f.engine.StartTurn()
	f.engine.MarkEasyWordGuessed()
	f.engine.EndTurn(TurnEndTimeUp)
	f.engine.StartTurn()
	f.engine.MarkEasyWordGuessed()
	f.engine.EndTurn(TurnEndTimeUp)

	w, ok := f.engine.WinningTeam()
	if !ok || w.ID != "red" {
		t.Fatalf("tie should go to the first team, got %+v", w)
	}
}

func TestCanEndManually(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 5})
	if f.engine.CanEndManually() {
		t.Fatal("cannot end before any turn")
	}
	if err := f.engine.EndManually(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	f.playTurn(t)
	if f.engine.CanEndManually() {
		t.Fatal("cannot end with unequal turn counts")
	}
	f.playTurn(t)
	if !f.engine.CanEndManually() {
		t.Fatal("should be able to end with equal non-zero turn counts")
	}
	if err := f.engine.EndManually(); err != nil {
		t.Fatalf("end manually: %v", err)
	}
	if f.engine.State() != StateGameOver {
		t.Fatalf("expected GAME_OVER, got %s", f.engine.State())
	}
	if err := f.engine.EndManually(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("ending twice should be invalid state, got %v", err)
	}
}

func TestEndManuallyDuringTurnFails(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 5})
	f.playTurn(t)
	f.playTurn(t)
	f.engine.StartTurn()
	if err := f.engine.EndManually(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state during a turn, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 2})
	if _, err := f.engine.Summary(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("summary before game over should fail, got %v", err)
	}

	// red: easy, hard, skip
	f.engine.StartTurn()
	f.engine.MarkEasyWordGuessed()
	f.engine.MarkHardPhraseGuessed()
	f.engine.SkipCard()
	f.clock.Advance(60 * time.Second)
	f.engine.EndTurn(TurnEndTimeUp)
	// blue: penalty
	f.engine.StartTurn()
	f.engine.CallNo()
	f.clock.Advance(60 * time.Second)
	f.engine.EndTurn(TurnEndTimeUp)
	f.playTurn(t)
	f.playTurn(t)

	sum, err := f.engine.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TotalRounds != 4 || len(sum.RoundStats) != 4 {
		t.Fatalf("expected 4 rounds, got %d/%d", sum.TotalRounds, len(sum.RoundStats))
	}
	if sum.GameDuration != 180*time.Second {
		t.Fatalf("expected 3m game, got %s", sum.GameDuration)
	}
	r1 := sum.RoundStats[0]
	if r1.RoundNumber != 1 || r1.TeamName != "Grunters" || r1.PoetName != "Alice" {
		t.Fatalf("unexpected first round: %+v", r1)
	}
	if r1.CardsAttempted != 3 || r1.CardsCompleted != 2 || r1.CardsSkipped != 1 || r1.PointsEarned != 3 {
		t.Fatalf("unexpected first round counts: %+v", r1)
	}
	if r1.Duration != 60*time.Second {
		t.Fatalf("expected 60s round, got %s", r1.Duration)
	}
	if r3 := sum.RoundStats[2]; r3.RoundNumber != 2 || r3.TeamID != "red" || r3.PoetName != "Carol" {
		t.Fatalf("unexpected third round: %+v", r3)
	}
	if sum.WinningTeamID != "red" || sum.WinningTeamName != "Grunters" {
		t.Fatalf("unexpected winner %s/%s", sum.WinningTeamID, sum.WinningTeamName)
	}
	red, blue := sum.Teams[0], sum.Teams[1]
	if red.Score != 3 || red.TotalCardsAttempted != 3 || red.TotalCardsCompleted != 2 || red.TotalCardsSkipped != 1 {
		t.Fatalf("unexpected red totals: %+v", red)
	}
	if blue.Score != -1 || blue.TotalCardsSkipped != 1 || blue.TotalCardsCompleted != 0 {
		t.Fatalf("unexpected blue totals: %+v", blue)
	}
}

func TestSummaryUnknownPoet(t *testing.T) {
	f := startedFixture(t, Config{TurnDurationSeconds: 60, RoundsPerTeam: 1})
	f.playTurn(t)
	f.playTurn(t)
	f.players.Remove("a1")
	sum, err := f.engine.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.RoundStats[0].PoetName != "Unknown" {
		t.Fatalf("expected Unknown poet, got %q", sum.RoundStats[0].PoetName)
	}
}
