package room

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiliankoe/cavetalk/internal/game"
)

const codeLength = 6

var teamNames = []string{"Grunters", "Pointers"}

// CardSource supplies the playable cards for a match. No pack ids means the
// default pack.
type CardSource interface {
	Cards(packIDs ...string) ([]game.Card, error)
}

// Releaser frees per-room resources held outside the manager, such as a
// running turn timer. It is called on every path that ends a game or removes a
// room.
type Releaser interface {
	Cleanup(code string)
}

type nopReleaser struct{}

func (nopReleaser) Cleanup(string) {}

type Manager struct {
	mu    sync.Mutex // serializes code allocation
	repo  Repository
	cards CardSource

	release     Releaser
	defaults    game.Config
	idleTimeout time.Duration
	engineOpts  []game.Option
	now         func() time.Time
	newCode     func() string
	shuffle     func(n int, swap func(i, j int))
}

type Option func(*Manager)

func WithReleaser(r Releaser) Option {
	return func(m *Manager) { m.release = r }
}

// WithDefaults sets the game config new rooms start with.
func WithDefaults(cfg game.Config) Option {
	return func(m *Manager) { m.defaults = cfg }
}

// WithIdleTimeout enables ReapIdle for rooms untouched longer than d.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithEngineOptions is passed to every engine the manager builds.
func WithEngineOptions(opts ...game.Option) Option {
	return func(m *Manager) { m.engineOpts = append(m.engineOpts, opts...) }
}

func NewManager(repo Repository, cards CardSource, opts ...Option) *Manager {
	m := &Manager{
		repo:     repo,
		cards:    cards,
		release:  nopReleaser{},
		defaults: game.DefaultConfig(),
		now:      time.Now,
		newCode:  func() string { return randomCode(codeLength) },
		shuffle:  rand.Shuffle,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) CreateRoom(hostName string) (Snapshot, string, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return Snapshot{}, "", fmt.Errorf("%w: name is required", game.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code := m.newCode()
	for m.repo.Has(code) {
		code = m.newCode()
	}
	now := m.now().UTC()
	host := &game.Player{
		ID:          uuid.NewString(),
		Name:        hostName,
		Role:        game.RoleSpectator,
		IsConnected: true,
		IsHost:      true,
	}
	r := &Room{
		Code:       code,
		HostID:     host.ID,
		Players:    game.NewRoster(),
		Config:     m.defaults,
		CreatedAt:  now,
		LastActive: now,
		phase:      lobby{},
	}
	r.Players.Add(host)
	for _, name := range teamNames {
		r.Teams = append(r.Teams, &game.Team{ID: uuid.NewString(), Name: name, PlayerIDs: []string{}})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	m.repo.Save(r)
	m.repo.SetPlayerRoom(host.ID, code)
	return r.Snapshot(), host.ID, nil
}

func (m *Manager) JoinRoom(code, name string) (Snapshot, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Snapshot{}, "", fmt.Errorf("%w: name is required", game.ErrValidation)
	}
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, "", err
	}
	defer r.mu.Unlock()

	if _, ok := r.phase.(lobby); !ok {
		return Snapshot{}, "", fmt.Errorf("%w: game already in progress", game.ErrInvalidState)
	}
	p := &game.Player{
		ID:          uuid.NewString(),
		Name:        name,
		Role:        game.RoleSpectator,
		IsConnected: true,
	}
	r.Players.Add(p)
	m.repo.SetPlayerRoom(p.ID, r.Code)
	m.save(r)
	return r.Snapshot(), p.ID, nil
}

// LeaveRoom removes a player. It reports false when the room does not exist
// or was deleted because it became empty. An unknown player leaves the room
// unchanged.
func (m *Manager) LeaveRoom(code, playerID string) (Snapshot, bool) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, false
	}
	defer r.mu.Unlock()

	p, ok := r.Players.Get(playerID)
	if !ok {
		return r.Snapshot(), true
	}
	for _, t := range r.Teams {
		t.Remove(playerID)
	}
	r.Players.Remove(playerID)
	m.repo.DeletePlayerRoom(playerID)

	if r.Players.Len() == 0 {
		m.remove(r)
		return Snapshot{}, false
	}
	if p.IsHost {
		next, _ := r.Players.First()
		next.IsHost = true
		r.HostID = next.ID
	}
	m.save(r)
	return r.Snapshot(), true
}

func (m *Manager) AssignTeam(code, playerID, teamID string) (Snapshot, error) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	p, ok := r.Players.Get(playerID)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: player %s not in room %s", game.ErrNotFound, playerID, code)
	}
	var target *game.Team
	for _, t := range r.Teams {
		if t.ID == teamID {
			target = t
		}
	}
	if target == nil {
		return Snapshot{}, fmt.Errorf("%w: team %s", game.ErrNotFound, teamID)
	}
	for _, t := range r.Teams {
		t.Remove(playerID)
	}
	target.PlayerIDs = append(target.PlayerIDs, playerID)
	p.TeamID = teamID
	m.save(r)
	return r.Snapshot(), nil
}

// ShuffleTeams permutes all players and deals them round-robin, so team sizes
// differ by at most one.
func (m *Manager) ShuffleTeams(code string) (Snapshot, error) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	ids := r.Players.IDs()
	m.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	for _, t := range r.Teams {
		t.PlayerIDs = []string{}
	}
	for i, id := range ids {
		t := r.Teams[i%len(r.Teams)]
		t.PlayerIDs = append(t.PlayerIDs, id)
		if p, ok := r.Players.Get(id); ok {
			p.TeamID = t.ID
		}
	}
	m.save(r)
	return r.Snapshot(), nil
}

type StartOptions struct {
	MaxTurns int      // overrides the room config when > 0
	PackIDs  []string // empty means the default pack
}

func (m *Manager) StartGame(code, playerID string, opts StartOptions) (Snapshot, error) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()

	if r.HostID != playerID {
		return Snapshot{}, fmt.Errorf("%w: only the host can start the game", game.ErrForbidden)
	}
	if _, ok := r.phase.(lobby); !ok {
		return Snapshot{}, fmt.Errorf("%w: game already started", game.ErrInvalidState)
	}
	var teams []*game.Team
	for _, t := range r.Teams {
		if len(t.PlayerIDs) > 0 {
			teams = append(teams, t)
		}
	}
	if len(teams) < 2 {
		return Snapshot{}, fmt.Errorf("%w: need at least 2 teams with players", game.ErrValidation)
	}
	cards, err := m.cards.Cards(opts.PackIDs...)
	if err != nil {
		return Snapshot{}, err
	}
	if len(cards) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no cards available", game.ErrValidation)
	}

	cfg := r.Config
	if opts.MaxTurns > 0 {
		cfg.MaxTurns = opts.MaxTurns
	}
	e := game.NewEngine(teams, r.Players, game.NewDeck(cards), cfg, m.engineOpts...)
	if err := e.Start(); err != nil {
		return Snapshot{}, err
	}
	r.Config = cfg
	r.PackIDs = append([]string(nil), opts.PackIDs...)
	r.phase = active{engine: e}
	m.save(r)
	return r.Snapshot(), nil
}

func (m *Manager) ReconnectPlayer(code, playerID string) (Snapshot, bool) {
	return m.setConnected(code, playerID, true)
}

func (m *Manager) MarkPlayerDisconnected(code, playerID string) (Snapshot, bool) {
	return m.setConnected(code, playerID, false)
}

func (m *Manager) setConnected(code, playerID string, connected bool) (Snapshot, bool) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, false
	}
	defer r.mu.Unlock()

	p, ok := r.Players.Get(playerID)
	if !ok {
		return Snapshot{}, false
	}
	p.IsConnected = connected
	m.save(r)
	return r.Snapshot(), true
}

func (m *Manager) Snapshot(code string) (Snapshot, error) {
	r, err := m.lock(code)
	if err != nil {
		return Snapshot{}, err
	}
	defer r.mu.Unlock()
	return r.Snapshot(), nil
}

// RoomOf returns the room a player belongs to.
func (m *Manager) RoomOf(playerID string) (string, bool) {
	return m.repo.PlayerRoom(playerID)
}

// lock finds a room and locks it. The returned room must be unlocked by the
// caller.
func (m *Manager) lock(code string) (*Room, error) {
	r, ok := m.repo.FindByCode(strings.ToUpper(code))
	if !ok {
		return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, code)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: room %s", game.ErrNotFound, code)
	}
	return r, nil
}

func (m *Manager) save(r *Room) {
	r.LastActive = m.now().UTC()
	m.repo.Save(r)
}

// remove deletes a locked room and releases its resources.
func (m *Manager) remove(r *Room) {
	r.closed = true
	for _, id := range r.Players.IDs() {
		m.repo.DeletePlayerRoom(id)
	}
	m.repo.Delete(r.Code)
	m.release.Cleanup(r.Code)
}

func randomCode(n int) string {
	letters := []rune("ABCDEFGHJKLMNPQRSTUVWXYZ23456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.IntN(len(letters))]
	}
	return string(b)
}
