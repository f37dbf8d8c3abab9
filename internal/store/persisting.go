// Package store persists rooms behind the in-memory registry so they survive
// a restart. Writes are best effort: failures are logged, never returned.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/cavetalk/internal/room"
)

type Backend interface {
	SaveRoom(ctx context.Context, doc RoomDocument) error
	DeleteRoom(ctx context.Context, code string) error
	SetPlayerRoom(ctx context.Context, playerID, code string) error
	DeletePlayerRoom(ctx context.Context, playerID string) error
	LoadRooms(ctx context.Context) ([]RoomDocument, error)
	Close(ctx context.Context) error
}

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

type opKind int

const (
	opSaveRoom opKind = iota
	opDeleteRoom
	opSetPlayer
	opDeletePlayer
)

type op struct {
	kind     opKind
	doc      RoomDocument
	code     string
	playerID string
}

// Persisting is a room.Repository that serves reads from memory and queues
// every write for the backend. A single writer applies the queue in order.
type Persisting struct {
	mem     *room.MemoryRepository
	backend Backend
	queue   chan op

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ room.Repository = (*Persisting)(nil)

func NewPersisting(mem *room.MemoryRepository, backend Backend, queueSize int) *Persisting {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Persisting{
		mem:     mem,
		backend: backend,
		queue:   make(chan op, queueSize),
		done:    make(chan struct{}),
	}
}

// Run applies queued writes until Close is called and the queue is drained.
func (p *Persisting) Run() {
	defer close(p.done)
	for o := range p.queue {
		p.apply(o)
	}
}

// Close stops accepting writes and waits for Run to flush the queue or ctx to
// end.
func (p *Persisting) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persisting) apply(o op) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch o.kind {
	case opSaveRoom:
		err = p.backend.SaveRoom(ctx, o.doc)
	case opDeleteRoom:
		err = p.backend.DeleteRoom(ctx, o.code)
	case opSetPlayer:
		err = p.backend.SetPlayerRoom(ctx, o.playerID, o.code)
	case opDeletePlayer:
		err = p.backend.DeletePlayerRoom(ctx, o.playerID)
	}
	if err != nil {
		log.Error().Err(err).Str("room", o.code).Str("player", o.playerID).Msg("persist failed")
	}
}

func (p *Persisting) enqueue(o op) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Warn().Str("room", o.code).Msg("persist skipped: store closed")
		return
	}
	select {
	case p.queue <- o:
	default:
		log.Warn().Str("room", o.code).Msg("persist queue full, dropping write")
	}
}

func (p *Persisting) Save(r *room.Room) {
	p.mem.Save(r)
	p.enqueue(op{kind: opSaveRoom, doc: FromSnapshot(r.Snapshot()), code: r.Code})
}

func (p *Persisting) Delete(code string) {
	p.mem.Delete(code)
	p.enqueue(op{kind: opDeleteRoom, code: code})
}

func (p *Persisting) SetPlayerRoom(playerID, code string) {
	p.mem.SetPlayerRoom(playerID, code)
	p.enqueue(op{kind: opSetPlayer, playerID: playerID, code: code})
}

func (p *Persisting) DeletePlayerRoom(playerID string) {
	p.mem.DeletePlayerRoom(playerID)
	p.enqueue(op{kind: opDeletePlayer, playerID: playerID})
}

func (p *Persisting) FindByCode(code string) (*room.Room, bool) { return p.mem.FindByCode(code) }

func (p *Persisting) Has(code string) bool { return p.mem.Has(code) }

func (p *Persisting) Codes() []string { return p.mem.Codes() }

func (p *Persisting) PlayerRoom(playerID string) (string, bool) { return p.mem.PlayerRoom(playerID) }

// Load reads every stored room for boot-time recovery.
func (p *Persisting) Load(ctx context.Context) ([]room.Snapshot, error) {
	docs, err := p.backend.LoadRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	out := make([]room.Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Snapshot())
	}
	return out, nil
}
