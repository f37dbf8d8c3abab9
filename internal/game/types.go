package game

import (
	"time"
)

type State string

const (
	StateLobby      State = "LOBBY"
	StatePlaying    State = "PLAYING"
	StateTurnActive State = "TURN_ACTIVE"
	StateTurnEnded  State = "TURN_ENDED"
	StateGameOver   State = "GAME_OVER"
)

type Role string

const (
	RolePoet      Role = "POET"
	RoleJudge     Role = "JUDGE"
	RoleGuesser   Role = "GUESSER"
	RoleSpectator Role = "SPECTATOR"
)

type TurnEndReason string

const (
	TurnEndTimeUp TurnEndReason = "TIME_UP"
)

// Config is copied into every engine; changing a room's config never affects a
// match already in progress.
type Config struct {
	TurnDurationSeconds int `json:"turnDurationSeconds" bson:"turnDurationSeconds"`
	RoundsPerTeam       int `json:"roundsPerTeam" bson:"roundsPerTeam"`
	MaxTurns            int `json:"maxTurns,omitempty" bson:"maxTurns,omitempty"` // 0 = no cap
}

func DefaultConfig() Config {
	return Config{TurnDurationSeconds: 60, RoundsPerTeam: 3}
}

type Card struct {
	ID         string `json:"id" bson:"id" yaml:"id"`
	EasyWord   string `json:"easyWord" bson:"easyWord" yaml:"easyWord"`
	HardPhrase string `json:"hardPhrase" bson:"hardPhrase" yaml:"hardPhrase"`
}

type Player struct {
	ID          string `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	TeamID      string `json:"teamId,omitempty" bson:"teamId,omitempty"`
	Role        Role   `json:"role" bson:"role"`
	IsConnected bool   `json:"isConnected" bson:"isConnected"`
	IsHost      bool   `json:"isHost" bson:"isHost"`
}

type Team struct {
	ID        string   `json:"id" bson:"id"`
	Name      string   `json:"name" bson:"name"`
	PlayerIDs []string `json:"playerIds" bson:"playerIds"`
	Score     int      `json:"score" bson:"score"`
}

// Has reports whether playerID is listed as a member.
func (t *Team) Has(playerID string) bool {
	for _, id := range t.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// Remove drops playerID from the member list, keeping the order of the rest.
func (t *Team) Remove(playerID string) {
	kept := t.PlayerIDs[:0]
	for _, id := range t.PlayerIDs {
		if id != playerID {
			kept = append(kept, id)
		}
	}
	t.PlayerIDs = kept
}

type CardAttempt struct {
	Card              Card `json:"card" bson:"card"`
	EasyWordGuessed   bool `json:"easyWordGuessed" bson:"easyWordGuessed"`
	HardPhraseGuessed bool `json:"hardPhraseGuessed" bson:"hardPhraseGuessed"`
	PointsEarned      int  `json:"pointsEarned" bson:"pointsEarned"`
	Skipped           bool `json:"skipped" bson:"skipped"`
	Penalized         bool `json:"penalized,omitempty" bson:"penalized,omitempty"`
}

// Completed reports whether the card was credited rather than passed over.
func (a CardAttempt) Completed() bool {
	return !a.Skipped && (a.EasyWordGuessed || a.HardPhraseGuessed)
}

type Turn struct {
	TeamID                 string        `json:"teamId" bson:"teamId"`
	PoetID                 string        `json:"poetId" bson:"poetId"`
	JudgeID                string        `json:"judgeId" bson:"judgeId"`
	CurrentCard            Card          `json:"currentCard" bson:"currentCard"`
	CardsAttempted         []CardAttempt `json:"cardsAttempted" bson:"cardsAttempted"`
	CurrentCardEasyGuessed bool          `json:"currentCardEasyGuessed" bson:"currentCardEasyGuessed"`
	CurrentCardHardGuessed bool          `json:"currentCardHardGuessed" bson:"currentCardHardGuessed"`
	StartTime              time.Time     `json:"startTime" bson:"startTime"`
	EndTime                *time.Time    `json:"endTime,omitempty" bson:"endTime,omitempty"`
	EndReason              TurnEndReason `json:"endReason,omitempty" bson:"endReason,omitempty"`
	PointsEarned           int           `json:"pointsEarned" bson:"pointsEarned"`
}

func (t *Turn) clone() *Turn {
	if t == nil {
		return nil
	}
	c := *t
	c.CardsAttempted = append([]CardAttempt(nil), t.CardsAttempted...)
	if t.EndTime != nil {
		end := *t.EndTime
		c.EndTime = &end
	}
	return &c
}

// Duration is zero until the turn has ended.
func (t *Turn) Duration() time.Duration {
	if t.EndTime == nil {
		return 0
	}
	return t.EndTime.Sub(t.StartTime)
}

type RoundStats struct {
	RoundNumber    int           `json:"roundNumber"`
	TeamID         string        `json:"teamId"`
	TeamName       string        `json:"teamName"`
	PoetName       string        `json:"poetName"`
	CardsAttempted int           `json:"cardsAttempted"`
	CardsCompleted int           `json:"cardsCompleted"`
	CardsSkipped   int           `json:"cardsSkipped"`
	PointsEarned   int           `json:"pointsEarned"`
	Duration       time.Duration `json:"duration"`
}

type TeamSummary struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Score               int    `json:"score"`
	TotalCardsAttempted int    `json:"totalCardsAttempted"`
	TotalCardsCompleted int    `json:"totalCardsCompleted"`
	TotalCardsSkipped   int    `json:"totalCardsSkipped"`
}

type Summary struct {
	WinningTeamID   string        `json:"winningTeamId,omitempty"`
	WinningTeamName string        `json:"winningTeamName,omitempty"`
	Teams           []TeamSummary `json:"teams"`
	RoundStats      []RoundStats  `json:"roundStats"`
	TotalRounds     int           `json:"totalRounds"`
	GameDuration    time.Duration `json:"gameDuration"`
}
