package ws

import (
	"errors"
	"fmt"

	"github.com/kiliankoe/cavetalk/internal/game"
	"github.com/kiliankoe/cavetalk/internal/room"
)

// Client to server events.
const (
	EventRoomCreate      = "room:create"
	EventRoomJoin        = "room:join"
	EventRoomLeave       = "room:leave"
	EventRoomWatch       = "room:watch"
	EventTeamAssign      = "team:assign"
	EventTeamShuffle     = "team:shuffle"
	EventGameStart       = "game:start"
	EventGameEnd         = "game:end"
	EventTurnStart       = "turn:start"
	EventTurnCorrectEasy = "turn:correct:easy"
	EventTurnCorrectHard = "turn:correct:hard"
	EventTurnSkip        = "turn:skip"
	EventTurnNo          = "turn:no"
	EventPlayerReconnect = "player:reconnect"
)

// Server to client events.
const (
	EventRoomCreated        = "room:created"
	EventRoomJoined         = "room:joined"
	EventRoomState          = "room:state"
	EventRoomError          = "room:error"
	EventPlayerJoined       = "player:joined"
	EventPlayerLeft         = "player:left"
	EventPlayerDisconnected = "player:disconnected"
	EventPlayerReconnected  = "player:reconnected"
	EventGameStarted        = "game:started"
	EventGameState          = "game:state"
	EventGameEnded          = "game:ended"
	EventTurnStarted        = "turn:started"
	EventTurnCard           = "turn:card"
	EventTurnTimer          = "turn:timer"
	EventTurnTimerWarning   = "turn:timer:warning"
	EventTurnScore          = "turn:score"
	EventTurnEnded          = "turn:ended"
	EventCardRevealed       = "card:revealed"
	EventFeedback           = "feedback"
)

var (
	errNotInRoom     = fmt.Errorf("%w: connection has not joined a room", game.ErrInvalidState)
	errUnknownPlayer = fmt.Errorf("%w: player is not in this room", game.ErrNotFound)
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return "not_found"
	case errors.Is(err, game.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, game.ErrForbidden):
		return "forbidden"
	case errors.Is(err, game.ErrValidation):
		return "validation"
	default:
		return "internal"
	}
}

func errorResponse(err error) ErrorResponse {
	code := errorCode(err)
	msg := err.Error()
	if code == "internal" {
		msg = "internal error"
	}
	return ErrorResponse{Code: code, Message: msg}
}

type RoomStateResponse struct {
	Code      string        `json:"code"`
	HostID    string        `json:"hostId"`
	Players   []game.Player `json:"players"`
	Teams     []game.Team   `json:"teams"`
	GameState game.State    `json:"gameState"`
}

func roomState(s room.Snapshot) RoomStateResponse {
	return RoomStateResponse{
		Code:      s.Code,
		HostID:    s.HostID,
		Players:   s.Players,
		Teams:     s.Teams,
		GameState: s.State,
	}
}

type TurnInfo struct {
	TeamID            string `json:"teamId"`
	PoetID            string `json:"poetId"`
	JudgeID           string `json:"judgeId"`
	EasyWordGuessed   bool   `json:"easyWordGuessed"`
	HardPhraseGuessed bool   `json:"hardPhraseGuessed"`
	PointsEarned      int    `json:"pointsEarned"`
}

// turnInfo leaves out the card so it can go to the whole room.
func turnInfo(t *game.Turn) *TurnInfo {
	if t == nil {
		return nil
	}
	return &TurnInfo{
		TeamID:            t.TeamID,
		PoetID:            t.PoetID,
		JudgeID:           t.JudgeID,
		EasyWordGuessed:   t.CurrentCardEasyGuessed,
		HardPhraseGuessed: t.CurrentCardHardGuessed,
		PointsEarned:      t.PointsEarned,
	}
}

type GameStateResponse struct {
	State          game.State    `json:"state"`
	Teams          []game.Team   `json:"teams"`
	Players        []game.Player `json:"players"`
	CurrentTurn    *TurnInfo     `json:"currentTurn"`
	TurnNumber     int           `json:"turnNumber"`
	TimerRemaining *int          `json:"timerRemaining"`
}

func gameState(s room.Snapshot, remaining *int) GameStateResponse {
	return GameStateResponse{
		State:          s.State,
		Teams:          s.Teams,
		Players:        s.Players,
		CurrentTurn:    turnInfo(s.CurrentTurn),
		TurnNumber:     s.TurnNumber,
		TimerRemaining: remaining,
	}
}

type TurnStartedResponse struct {
	Turn          *TurnInfo `json:"turn"`
	TimerDuration int       `json:"timerDuration"`
}

type ScoreResponse struct {
	Points     int    `json:"points"`
	TotalScore int    `json:"totalScore"`
	Type       string `json:"type"` // easy, hard, penalty or skip
}

type CardRevealedResponse struct {
	Card         game.Card `json:"card"`
	Reason       string    `json:"reason"` // easy, hard, skip or no
	PointsEarned int       `json:"pointsEarned"`
}

type FeedbackResponse struct {
	Type    string `json:"type"` // correct, no, skip or time_up
	Message string `json:"message"`
	TeamID  string `json:"teamId,omitempty"`
}

type TurnEndedResponse struct {
	Reason       game.TurnEndReason `json:"reason"`
	PointsEarned int                `json:"pointsEarned"`
	TeamScore    int                `json:"teamScore"`
	Card         game.Card          `json:"card"`
}

// lastTurn is the most recently finished turn of a running game.
func lastTurn(s room.Snapshot) (game.Turn, bool) {
	if s.Engine == nil || len(s.Engine.History) == 0 {
		return game.Turn{}, false
	}
	return s.Engine.History[len(s.Engine.History)-1], true
}

func turnEnded(s room.Snapshot) (TurnEndedResponse, bool) {
	t, ok := lastTurn(s)
	if !ok {
		return TurnEndedResponse{}, false
	}
	resp := TurnEndedResponse{
		Reason:       t.EndReason,
		PointsEarned: t.PointsEarned,
		Card:         t.CurrentCard,
	}
	for _, team := range s.Teams {
		if team.ID == t.TeamID {
			resp.TeamScore = team.Score
		}
	}
	return resp, true
}

type RoundStatsResponse struct {
	RoundNumber    int    `json:"roundNumber"`
	TeamID         string `json:"teamId"`
	TeamName       string `json:"teamName"`
	PoetName       string `json:"poetName"`
	CardsAttempted int    `json:"cardsAttempted"`
	CardsCompleted int    `json:"cardsCompleted"`
	CardsSkipped   int    `json:"cardsSkipped"`
	PointsEarned   int    `json:"pointsEarned"`
	Duration       int64  `json:"duration"` // milliseconds
}

type GameEndedResponse struct {
	WinningTeamID   *string              `json:"winningTeamId"`
	WinningTeamName *string              `json:"winningTeamName"`
	Teams           []game.TeamSummary   `json:"teams"`
	RoundStats      []RoundStatsResponse `json:"roundStats"`
	TotalRounds     int                  `json:"totalRounds"`
	GameDuration    int64                `json:"gameDuration"` // milliseconds
}

// GameEnded converts a summary to its wire form, with durations in
// milliseconds.
func GameEnded(sum *game.Summary) GameEndedResponse {
	resp := GameEndedResponse{
		Teams:        sum.Teams,
		RoundStats:   make([]RoundStatsResponse, 0, len(sum.RoundStats)),
		TotalRounds:  sum.TotalRounds,
		GameDuration: sum.GameDuration.Milliseconds(),
	}
	if sum.WinningTeamID != "" {
		id, name := sum.WinningTeamID, sum.WinningTeamName
		resp.WinningTeamID, resp.WinningTeamName = &id, &name
	}
	for _, rs := range sum.RoundStats {
		resp.RoundStats = append(resp.RoundStats, RoundStatsResponse{
			RoundNumber:    rs.RoundNumber,
			TeamID:         rs.TeamID,
			TeamName:       rs.TeamName,
			PoetName:       rs.PoetName,
			CardsAttempted: rs.CardsAttempted,
			CardsCompleted: rs.CardsCompleted,
			CardsSkipped:   rs.CardsSkipped,
			PointsEarned:   rs.PointsEarned,
			Duration:       rs.Duration.Milliseconds(),
		})
	}
	return resp
}

// lastAttempt is the card most recently retired in the running turn.
func lastAttempt(s room.Snapshot) (game.CardAttempt, bool) {
	if s.CurrentTurn == nil || len(s.CurrentTurn.CardsAttempted) == 0 {
		return game.CardAttempt{}, false
	}
	a := s.CurrentTurn.CardsAttempted
	return a[len(a)-1], true
}
