package room

import (
	"sort"
	"sync"
)

// Repository is the room registry. Save is always called while the room is
// locked, so implementations may call Room.Snapshot.
type Repository interface {
	Save(r *Room)
	FindByCode(code string) (*Room, bool)
	Delete(code string)
	Has(code string) bool
	Codes() []string

	SetPlayerRoom(playerID, code string)
	PlayerRoom(playerID string) (string, bool)
	DeletePlayerRoom(playerID string)
}

type MemoryRepository struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	playerRoom map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
	}
}

func (m *MemoryRepository) Save(r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[r.Code] = r
}

func (m *MemoryRepository) FindByCode(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	return r, ok
}

func (m *MemoryRepository) Delete(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
}

func (m *MemoryRepository) Has(code string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[code]
	return ok
}

// Codes lists registered rooms in sorted order.
func (m *MemoryRepository) Codes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryRepository) SetPlayerRoom(playerID, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playerRoom[playerID] = code
}

func (m *MemoryRepository) PlayerRoom(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.playerRoom[playerID]
	return code, ok
}

func (m *MemoryRepository) DeletePlayerRoom(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.playerRoom, playerID)
}
