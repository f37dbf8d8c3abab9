package game

import (
	"fmt"
	"time"
)

// SnapshotVersion is the current engine snapshot layout. Snapshots without a
// version predate versioning and share the v1 field set, so they load as v1.
// A later layout must bump this and add a step to migrate.
const SnapshotVersion = 1

// Counter is one entry of a per-team counter table, kept as a list so the
// team order survives storage.
type Counter struct {
	Key   string `json:"key" bson:"key"`
	Value int    `json:"value" bson:"value"`
}

type EngineSnapshot struct {
	Version          int        `json:"version" bson:"version"`
	State            State      `json:"state" bson:"state"`
	Config           Config     `json:"config" bson:"config"`
	TeamIDs          []string   `json:"teamIds" bson:"teamIds"`
	CurrentTurn      *Turn      `json:"currentTurn,omitempty" bson:"currentTurn,omitempty"`
	History          []Turn     `json:"history" bson:"history"`
	TeamIndex        int        `json:"teamIndex" bson:"teamIndex"`
	TurnNumber       int        `json:"turnNumber" bson:"turnNumber"`
	TurnsPerTeam     []Counter  `json:"turnsPerTeam" bson:"turnsPerTeam"`
	PoetIndexPerTeam []Counter  `json:"poetIndexPerTeam" bson:"poetIndexPerTeam"`
	StartedAt        time.Time  `json:"startedAt" bson:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
}

func (e *Engine) Snapshot() EngineSnapshot {
	s := EngineSnapshot{
		Version:          SnapshotVersion,
		State:            e.state,
		Config:           e.config,
		TeamIDs:          make([]string, 0, len(e.teams)),
		CurrentTurn:      e.current.clone(),
		History:          e.History(),
		TeamIndex:        e.teamIndex,
		TurnNumber:       e.turnNumber,
		TurnsPerTeam:     make([]Counter, 0, len(e.teams)),
		PoetIndexPerTeam: make([]Counter, 0, len(e.teams)),
		StartedAt:        e.startedAt,
	}
	for _, t := range e.teams {
		s.TeamIDs = append(s.TeamIDs, t.ID)
		s.TurnsPerTeam = append(s.TurnsPerTeam, Counter{Key: t.ID, Value: e.turnsTaken[t.ID]})
		s.PoetIndexPerTeam = append(s.PoetIndexPerTeam, Counter{Key: t.ID, Value: e.poetIndex[t.ID]})
	}
	if !e.endedAt.IsZero() {
		end := e.endedAt
		s.EndedAt = &end
	}
	return s
}

// RestoreEngine rebuilds an engine from a snapshot. teams must contain every
// team the snapshot names; they are rebound in snapshot order. The deck is
// used as given: card order is not part of the snapshot.
func RestoreEngine(s EngineSnapshot, teams []*Team, players *Roster, deck *Deck, opts ...Option) (*Engine, error) {
	s, err := migrate(s)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	bound := make([]*Team, 0, len(s.TeamIDs))
	for _, id := range s.TeamIDs {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: snapshot references unknown team %s", ErrValidation, id)
		}
		bound = append(bound, t)
	}
	if len(bound) > 0 && (s.TeamIndex < 0 || s.TeamIndex >= len(bound)) {
		return nil, fmt.Errorf("%w: snapshot team index %d out of range", ErrValidation, s.TeamIndex)
	}

	e := NewEngine(bound, players, deck, s.Config, opts...)
	e.state = s.State
	e.current = s.CurrentTurn.clone()
	for i := range s.History {
		e.history = append(e.history, s.History[i].clone())
	}
	e.teamIndex = s.TeamIndex
	e.turnNumber = s.TurnNumber
	for _, c := range s.TurnsPerTeam {
		e.turnsTaken[c.Key] = c.Value
	}
	for _, c := range s.PoetIndexPerTeam {
		e.poetIndex[c.Key] = c.Value
	}
	e.startedAt = s.StartedAt
	if s.EndedAt != nil {
		e.endedAt = *s.EndedAt
	}
	if e.state != StateLobby {
		deck.Reset()
		e.shuffle(deck)
	}
	return e, nil
}

func migrate(s EngineSnapshot) (EngineSnapshot, error) {
	switch s.Version {
	case 0:
		s.Version = 1
		return s, nil
	case SnapshotVersion:
		return s, nil
	default:
		return s, fmt.Errorf("%w: unsupported engine snapshot version %d", ErrValidation, s.Version)
	}
}
