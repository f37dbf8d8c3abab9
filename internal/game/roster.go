package game

// Roster keeps players in join order. It is not safe for concurrent use; the
// owning room serializes access.
type Roster struct {
	order []string
	byID  map[string]*Player
}

func NewRoster() *Roster {
	return &Roster{byID: make(map[string]*Player)}
}

func (r *Roster) Add(p *Player) {
	if _, ok := r.byID[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.byID[p.ID] = p
}

func (r *Roster) Get(id string) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Roster) Remove(id string) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Roster) Len() int {
	return len(r.order)
}

// All returns the players in join order.
func (r *Roster) All() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Roster) IDs() []string {
	return append([]string(nil), r.order...)
}

// First is the earliest joined player still present.
func (r *Roster) First() (*Player, bool) {
	if len(r.order) == 0 {
		return nil, false
	}
	return r.byID[r.order[0]], true
}

func (r *Roster) Name(id string) string {
	if p, ok := r.byID[id]; ok {
		return p.Name
	}
	return "Unknown"
}
