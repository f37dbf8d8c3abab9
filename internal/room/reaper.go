package room

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// ReapIdle removes rooms that have seen no activity for longer than the idle
// timeout and returns their codes. It does nothing when no timeout is set.
func (m *Manager) ReapIdle(now time.Time) []string {
	if m.idleTimeout <= 0 {
		return nil
	}
	var reaped []string
	for _, code := range m.repo.Codes() {
		r, err := m.lock(code)
		if err != nil {
			continue
		}
		if now.Sub(r.LastActive) > m.idleTimeout {
			m.remove(r)
			reaped = append(reaped, code)
		}
		r.mu.Unlock()
	}
	return reaped
}

// RunReaper calls ReapIdle every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	if m.idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reaped := m.ReapIdle(m.now()); len(reaped) > 0 {
				log.Info().Strs("rooms", reaped).Msg("reaped idle rooms")
			}
		}
	}
}
