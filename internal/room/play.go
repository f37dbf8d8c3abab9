package room

import (
	"fmt"

	"github.com/kiliankoe/cavetalk/internal/game"
)

// withEngine runs fn against the room's engine under the room lock and saves
// the room when fn succeeds.
func (m *Manager) withEngine(code string, fn func(r *Room, e *game.Engine) error) (Snapshot, error) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	e, err := engineOf(r)
	if err != nil {
		return Snapshot{}, err
	}
	if err := fn(r, e); err != nil {
		return Snapshot{}, err
	}
	m.save(r)
	return r.Snapshot(), nil
}

// inspect is withEngine for reads: nothing is saved.
func (m *Manager) inspect(code string, fn func(e *game.Engine) error) error {
	r, err := m.lock(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	e, err := engineOf(r)
	if err != nil {
		return err
	}
	return fn(e)
}

func engineOf(r *Room) (*game.Engine, error) {
	switch ph := r.phase.(type) {
	case active:
		return ph.engine, nil
	default:
		return nil, fmt.Errorf("%w: game has not started", game.ErrInvalidState)
	}
}

func (m *Manager) StartTurn(code string) (Snapshot, error) {
	return m.withEngine(code, func(_ *Room, e *game.Engine) error {
		_, err := e.StartTurn()
		return err
	})
}

func (m *Manager) MarkEasy(code string) (Snapshot, int, error) {
	var pts int
	s, err := m.withEngine(code, func(_ *Room, e *game.Engine) (err error) {
		pts, err = e.MarkEasyWordGuessed()
		return err
	})
	return s, pts, err
}

func (m *Manager) MarkHard(code string) (Snapshot, int, error) {
	var pts int
	s, err := m.withEngine(code, func(_ *Room, e *game.Engine) (err error) {
		pts, err = e.MarkHardPhraseGuessed()
		return err
	})
	return s, pts, err
}

// SkipCard returns the attempt that was skipped alongside the new room state.
func (m *Manager) SkipCard(code string) (Snapshot, game.CardAttempt, error) {
	return m.retire(code, (*game.Engine).SkipCard)
}

func (m *Manager) CallNo(code string) (Snapshot, game.CardAttempt, error) {
	return m.retire(code, (*game.Engine).CallNo)
}

func (m *Manager) retire(code string, op func(*game.Engine) (game.Card, error)) (Snapshot, game.CardAttempt, error) {
	var last game.CardAttempt
	s, err := m.withEngine(code, func(_ *Room, e *game.Engine) error {
		if _, err := op(e); err != nil {
			return err
		}
		attempts := e.CurrentTurn().CardsAttempted
		last = attempts[len(attempts)-1]
		return nil
	})
	return s, last, err
}

// ExpireTurn ends turn number turn for running out of time. A turn that
// already ended, or a later turn, is left alone and reported as invalid
// state.
func (m *Manager) ExpireTurn(code string, turn int) (Snapshot, error) {
	return m.withEngine(code, func(r *Room, e *game.Engine) error {
		if e.State() != game.StateTurnActive || e.TurnNumber() != turn {
			return fmt.Errorf("%w: turn %d is not running", game.ErrInvalidState, turn)
		}
		if _, err := e.EndTurn(game.TurnEndTimeUp); err != nil {
			return err
		}
		if e.State() == game.StateGameOver {
			m.release.Cleanup(r.Code)
		}
		return nil
	})
}

// EndGameManually lets the host stop a match once every team has played the
// same number of turns.
func (m *Manager) EndGameManually(code, playerID string) (Snapshot, *game.Summary, error) {
	var sum *game.Summary
	s, err := m.withEngine(code, func(r *Room, e *game.Engine) error {
		if r.HostID != playerID {
			return fmt.Errorf("%w: only the host can end the game", game.ErrForbidden)
		}
		if err := e.EndManually(); err != nil {
			return err
		}
		m.release.Cleanup(r.Code)
		var err error
		sum, err = e.Summary()
		return err
	})
	return s, sum, err
}

func (m *Manager) Summary(code string) (*game.Summary, error) {
	var sum *game.Summary
	err := m.inspect(code, func(e *game.Engine) (err error) {
		sum, err = e.Summary()
		return err
	})
	return sum, err
}

// IsGameOver reports whether the room's match has finished, by either path.
func (m *Manager) IsGameOver(code string) (bool, error) {
	var over bool
	err := m.inspect(code, func(e *game.Engine) error {
		over = e.State() == game.StateGameOver
		return nil
	})
	return over, err
}
