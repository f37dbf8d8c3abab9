package store

import (
	"time"

	"github.com/kiliankoe/cavetalk/internal/game"
	"github.com/kiliankoe/cavetalk/internal/room"
)

// PlayerEntry keeps the room's player order through storage.
type PlayerEntry struct {
	Key   string      `bson:"key" json:"key"`
	Value game.Player `bson:"value" json:"value"`
}

// RoomDocument is the stored form of a room, shared by every backend.
type RoomDocument struct {
	Code            string               `bson:"_id" json:"code"`
	HostID          string               `bson:"hostId" json:"hostId"`
	Players         []PlayerEntry        `bson:"players" json:"players"`
	Teams           []game.Team          `bson:"teams" json:"teams"`
	GameState       game.State           `bson:"gameState" json:"gameState"`
	Config          game.Config          `bson:"config" json:"config"`
	PackIDs         []string             `bson:"packIds,omitempty" json:"packIds,omitempty"`
	GameEngineState *game.EngineSnapshot `bson:"gameEngineState,omitempty" json:"gameEngineState,omitempty"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt" json:"updatedAt"`
}

type PlayerRoomDocument struct {
	PlayerID string `bson:"_id" json:"playerId"`
	RoomCode string `bson:"roomCode" json:"roomCode"`
}

func FromSnapshot(s room.Snapshot) RoomDocument {
	d := RoomDocument{
		Code:            s.Code,
		HostID:          s.HostID,
		Players:         make([]PlayerEntry, 0, len(s.Players)),
		Teams:           s.Teams,
		GameState:       s.State,
		Config:          s.Config,
		PackIDs:         s.PackIDs,
		GameEngineState: s.Engine,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.LastActive,
	}
	for _, p := range s.Players {
		d.Players = append(d.Players, PlayerEntry{Key: p.ID, Value: p})
	}
	return d
}

// Snapshot converts the document back. Derived fields such as the current
// turn are left for the rebuilt engine to provide.
func (d RoomDocument) Snapshot() room.Snapshot {
	s := room.Snapshot{
		Code:       d.Code,
		HostID:     d.HostID,
		Players:    make([]game.Player, 0, len(d.Players)),
		Teams:      d.Teams,
		State:      d.GameState,
		Config:     d.Config,
		PackIDs:    d.PackIDs,
		CreatedAt:  d.CreatedAt,
		LastActive: d.UpdatedAt,
		Engine:     d.GameEngineState,
	}
	for _, e := range d.Players {
		p := e.Value
		p.ID = e.Key
		s.Players = append(s.Players, p)
	}
	if s.Teams == nil {
		s.Teams = []game.Team{}
	}
	return s
}
