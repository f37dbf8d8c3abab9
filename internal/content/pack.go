// Package content holds the card packs matches are played with.
package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/kiliankoe/cavetalk/internal/game"
)

const DefaultPackID = "base"

//go:embed data/base-pack.json
var basePackData []byte

type Metadata struct {
	AgeRating string `json:"ageRating" yaml:"ageRating"` // family or adult
	Category  string `json:"category" yaml:"category"`
}

type Pack struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Version  string      `json:"version" yaml:"version"`
	Metadata Metadata    `json:"metadata" yaml:"metadata"`
	Cards    []game.Card `json:"cards" yaml:"cards"`
}

// Repository is the set of loaded packs.
type Repository struct {
	mu    sync.RWMutex
	packs map[string]Pack
}

// NewRepository returns a repository holding the built-in base pack.
func NewRepository() (*Repository, error) {
	r := &Repository{packs: make(map[string]Pack)}
	base, err := basePack()
	if err != nil {
		return nil, err
	}
	if err := r.LoadPack(base); err != nil {
		return nil, err
	}
	return r, nil
}

func basePack() (Pack, error) {
	var entries []struct {
		Easy string `json:"easy"`
		Hard string `json:"hard"`
	}
	if err := json.Unmarshal(basePackData, &entries); err != nil {
		return Pack{}, fmt.Errorf("decode base pack: %w", err)
	}
	p := Pack{
		ID:       DefaultPackID,
		Name:     "Base Game",
		Version:  "1.0.0",
		Metadata: Metadata{AgeRating: "family", Category: "general"},
		Cards:    make([]game.Card, 0, len(entries)),
	}
	for i, e := range entries {
		p.Cards = append(p.Cards, game.Card{
			ID:         fmt.Sprintf("card-%d", i+1),
			EasyWord:   e.Easy,
			HardPhrase: e.Hard,
		})
	}
	return p, nil
}

// LoadPack registers a pack, replacing any pack with the same id. Cards
// without an id get one derived from the pack id and position.
func (r *Repository) LoadPack(p Pack) error {
	if p.ID == "" {
		return fmt.Errorf("%w: pack id is required", game.ErrValidation)
	}
	cards := make([]game.Card, 0, len(p.Cards))
	for i, c := range p.Cards {
		if c.EasyWord == "" || c.HardPhrase == "" {
			return fmt.Errorf("%w: pack %s card %d needs both an easy word and a hard phrase", game.ErrValidation, p.ID, i+1)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s-card-%d", p.ID, i+1)
		}
		cards = append(cards, c)
	}
	p.Cards = cards

	r.mu.Lock()
	defer r.mu.Unlock()
	r.packs[p.ID] = p
	return nil
}

// Cards returns the playable pool for the given packs, or the default pack
// when none are named. A card id present in several packs is dealt once.
func (r *Repository) Cards(packIDs ...string) ([]game.Card, error) {
	if len(packIDs) == 0 {
		packIDs = []string{DefaultPackID}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []game.Card
	for _, id := range packIDs {
		p, ok := r.packs[id]
		if !ok {
			return nil, fmt.Errorf("%w: content pack '%s'", game.ErrNotFound, id)
		}
		for _, c := range p.Cards {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Repository) Pack(id string) (Pack, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packs[id]
	return p, ok
}

// Packs lists loaded packs by id.
func (r *Repository) Packs() []Pack {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Pack, 0, len(r.packs))
	for _, p := range r.packs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
