// Package timer runs one countdown per room and reports progress through
// callbacks. It knows nothing about the game; callers decide what expiry
// means.
package timer

import (
	"errors"
	"sync"
	"time"
)

// WarningAt is the remaining count at which the warning callback fires.
const WarningAt = 10

var ErrInvalidDuration = errors.New("timer duration must be positive")

type State struct {
	RoomID    string    `json:"roomId"`
	Remaining int       `json:"remaining"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"startedAt"`
	Duration  int       `json:"duration"`
}

// Callbacks for one countdown. OnTick and OnWarning run while the countdown
// holds its internal lock and must not call Start, Stop or Cleanup for the same
// room. OnExpired runs after the countdown has been retired and may.
type Callbacks struct {
	OnTick    func(remaining int)
	OnExpired func()
	OnWarning func(remaining int)
}

type task struct {
	stop    chan struct{}
	fire    sync.Mutex // held while a callback runs
	stopped bool
}

type Service struct {
	mu       sync.Mutex
	states   map[string]*State
	tasks    map[string]*task
	interval time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithInterval sets the length of one count. Defaults to a second.
func WithInterval(d time.Duration) Option {
	return func(s *Service) { s.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(opts ...Option) *Service {
	s := &Service{
		states:   make(map[string]*State),
		tasks:    make(map[string]*task),
		interval: time.Second,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start replaces any countdown for the room, reports the full duration through
// OnTick and then counts down once per interval. When Start returns no callback
// of a replaced countdown can begin.
func (s *Service) Start(roomID string, duration int, cb Callbacks) error {
	if duration <= 0 {
		return ErrInvalidDuration
	}
	for {
		s.halt(roomID, false)
		s.mu.Lock()
		if _, busy := s.tasks[roomID]; !busy {
			break
		}
		s.mu.Unlock()
	}
	s.states[roomID] = &State{
		RoomID:    roomID,
		Remaining: duration,
		Running:   true,
		StartedAt: s.now(),
		Duration:  duration,
	}
	tk := &task{stop: make(chan struct{})}
	s.tasks[roomID] = tk
	s.mu.Unlock()

	if cb.OnTick != nil {
		cb.OnTick(duration)
	}
	go s.run(roomID, tk, cb)
	return nil
}

func (s *Service) run(roomID string, tk *task, cb Callbacks) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	warned := false
	for {
		select {
		case <-tk.stop:
			return
		case <-ticker.C:
		}

		tk.fire.Lock()
		if tk.stopped {
			tk.fire.Unlock()
			return
		}
		s.mu.Lock()
		st := s.states[roomID]
		if s.tasks[roomID] != tk || st == nil {
			s.mu.Unlock()
			tk.fire.Unlock()
			return
		}
		st.Remaining--
		rem := st.Remaining
		expired := rem <= 0
		if expired {
			st.Remaining = 0
			st.Running = false
			delete(s.tasks, roomID)
			tk.stopped = true
		}
		s.mu.Unlock()

		if expired {
			if cb.OnExpired != nil {
				cb.OnExpired()
			}
			tk.fire.Unlock()
			return
		}
		if cb.OnTick != nil {
			cb.OnTick(rem)
		}
		if cb.OnWarning != nil && !warned && rem == WarningAt {
			warned = true
			cb.OnWarning(rem)
		}
		tk.fire.Unlock()
	}
}

// halt retires the room's countdown and waits out a callback in flight. The
// stored state is dropped when forget is set and kept otherwise.
func (s *Service) halt(roomID string, forget bool) {
	s.mu.Lock()
	tk := s.tasks[roomID]
	delete(s.tasks, roomID)
	if st := s.states[roomID]; st != nil {
		st.Running = false
	}
	if forget {
		delete(s.states, roomID)
	}
	s.mu.Unlock()
	if tk == nil {
		return
	}
	close(tk.stop)
	tk.fire.Lock()
	tk.stopped = true
	tk.fire.Unlock()
}

// Stop pauses the countdown, keeping the remaining count. Unknown rooms are
// ignored.
func (s *Service) Stop(roomID string) {
	s.halt(roomID, false)
}

func (s *Service) State(roomID string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[roomID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Remaining derives the count from elapsed time while running, so a late tick
// does not make the answer stale.
func (s *Service) Remaining(roomID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[roomID]
	if !ok {
		return 0
	}
	if !st.Running {
		return st.Remaining
	}
	elapsed := int(s.now().Sub(st.StartedAt) / s.interval)
	return max(st.Duration-elapsed, 0)
}

// Cleanup stops the countdown and forgets the room.
func (s *Service) Cleanup(roomID string) {
	s.halt(roomID, true)
}

// StopAll retires every countdown, used on shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.halt(id, false)
	}
}

// Active is the number of rooms with a running countdown.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
