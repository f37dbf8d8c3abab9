package room

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/cavetalk/internal/game"
)

// Restore registers rooms loaded from durable storage. Rooms that cannot be
// rebuilt are logged and skipped; the number restored is returned.
func (m *Manager) Restore(snaps []Snapshot) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, s := range snaps {
		if m.repo.Has(s.Code) {
			continue
		}
		r, err := m.rebuild(s)
		if err != nil {
			log.Warn().Err(err).Str("room", s.Code).Msg("skipping persisted room")
			continue
		}
		r.mu.Lock()
		m.repo.Save(r)
		for _, id := range r.Players.IDs() {
			m.repo.SetPlayerRoom(id, r.Code)
		}
		r.mu.Unlock()
		n++
	}
	return n
}

func (m *Manager) rebuild(s Snapshot) (*Room, error) {
	if len(s.Players) == 0 {
		return nil, fmt.Errorf("%w: room has no players", game.ErrValidation)
	}
	r := &Room{
		Code:       s.Code,
		HostID:     s.HostID,
		Players:    game.NewRoster(),
		Config:     s.Config,
		PackIDs:    append([]string(nil), s.PackIDs...),
		CreatedAt:  s.CreatedAt,
		LastActive: m.now().UTC(),
		phase:      lobby{},
	}
	for _, p := range s.Players {
		p := p
		// every socket is gone after a restart
		p.IsConnected = false
		r.Players.Add(&p)
	}
	for _, t := range s.Teams {
		t := t
		t.PlayerIDs = append([]string{}, t.PlayerIDs...)
		r.Teams = append(r.Teams, &t)
	}
	if s.Engine == nil {
		return r, nil
	}

	cards, err := m.cards.Cards(s.PackIDs...)
	if err != nil {
		return nil, err
	}
	e, err := game.RestoreEngine(*s.Engine, r.Teams, r.Players, game.NewDeck(cards), m.engineOpts...)
	if err != nil {
		return nil, err
	}
	// the timer for a running turn did not survive the restart
	if e.State() == game.StateTurnActive {
		if _, err := e.EndTurn(game.TurnEndTimeUp); err != nil {
			return nil, err
		}
	}
	r.phase = active{engine: e}
	return r, nil
}
