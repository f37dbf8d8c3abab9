package room

import (
	"sync"
	"time"

	"github.com/kiliankoe/cavetalk/internal/game"
)

// phase is either lobby or active. The engine only exists inside active, so
// game operations on a room that has not started cannot reach a nil engine.
type phase interface {
	isPhase()
}

type lobby struct{}

type active struct {
	engine *game.Engine
}

func (lobby) isPhase()  {}
func (active) isPhase() {}

type Room struct {
	Code       string
	HostID     string
	Players    *game.Roster
	Teams      []*game.Team
	Config     game.Config
	PackIDs    []string
	CreatedAt  time.Time
	LastActive time.Time

	phase  phase
	closed bool // set once the room is removed; late lockers must treat it as missing
	mu     sync.Mutex
}

// Snapshot is a detached copy of a room, safe to read without the room lock.
type Snapshot struct {
	Code        string        `json:"code"`
	HostID      string        `json:"hostId"`
	Players     []game.Player `json:"players"`
	Teams       []game.Team   `json:"teams"`
	State       game.State    `json:"gameState"`
	Config      game.Config   `json:"config"`
	PackIDs     []string      `json:"packIds,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	LastActive  time.Time     `json:"lastActive"`
	TurnNumber  int           `json:"turnNumber"`
	CurrentTurn *game.Turn    `json:"currentTurn,omitempty"`

	Engine *game.EngineSnapshot `json:"-"`
}

// Snapshot copies the room. The caller must hold the room lock; the manager
// does so for every Repository.Save call.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		Code:       r.Code,
		HostID:     r.HostID,
		Players:    make([]game.Player, 0, r.Players.Len()),
		Teams:      make([]game.Team, 0, len(r.Teams)),
		State:      game.StateLobby,
		Config:     r.Config,
		PackIDs:    append([]string(nil), r.PackIDs...),
		CreatedAt:  r.CreatedAt,
		LastActive: r.LastActive,
	}
	for _, p := range r.Players.All() {
		s.Players = append(s.Players, *p)
	}
	for _, t := range r.Teams {
		c := *t
		c.PlayerIDs = append([]string{}, t.PlayerIDs...)
		s.Teams = append(s.Teams, c)
	}
	if a, ok := r.phase.(active); ok {
		s.State = a.engine.State()
		s.TurnNumber = a.engine.TurnNumber()
		s.CurrentTurn = a.engine.CurrentTurn()
		es := a.engine.Snapshot()
		s.Engine = &es
	}
	return s
}

// Public strips the card in play, which only the poet may see.
func (s Snapshot) Public() Snapshot {
	if s.CurrentTurn != nil {
		t := *s.CurrentTurn
		t.CurrentCard = game.Card{}
		s.CurrentTurn = &t
	}
	s.Engine = nil
	return s
}

func (s Snapshot) Player(id string) (game.Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return game.Player{}, false
}

func (s Snapshot) IsHost(playerID string) bool {
	return playerID != "" && s.HostID == playerID
}
