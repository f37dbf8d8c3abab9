package game

import (
	"math/rand/v2"
)

const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgModulus    = 1<<31 - 1
)

// Deck deals cards from a working copy of a fixed card set. It never refills
// itself: when Draw reports exhaustion the caller decides whether to Reset and
// Shuffle.
type Deck struct {
	original []Card
	cards    []Card
	cursor   int
}

func NewDeck(cards []Card) *Deck {
	return &Deck{
		original: append([]Card(nil), cards...),
		cards:    append([]Card(nil), cards...),
	}
}

// Shuffle permutes the working copy with a non-deterministic source and
// rewinds the cursor.
func (d *Deck) Shuffle() {
	d.shuffle(rand.Float64)
}

// ShuffleSeed permutes the working copy with a linear congruential generator
// so that equal seeds over equally ordered decks deal identical sequences.
func (d *Deck) ShuffleSeed(seed int64) {
	d.shuffle(seededSource(seed))
}

func (d *Deck) shuffle(random func() float64) {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := int(random() * float64(i+1))
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
	d.cursor = 0
}

func (d *Deck) Draw() (Card, bool) {
	if d.cursor >= len(d.cards) {
		return Card{}, false
	}
	c := d.cards[d.cursor]
	d.cursor++
	return c, true
}

func (d *Deck) Remaining() int {
	return len(d.cards) - d.cursor
}

// Reset restores the original card order and rewinds the cursor.
func (d *Deck) Reset() {
	d.cards = append(d.cards[:0], d.original...)
	d.cursor = 0
}

// Size is the number of cards in the fixed set.
func (d *Deck) Size() int {
	return len(d.original)
}

// seededSource yields values in [0,1). The state stays below the modulus, so
// the multiplication fits in an int64.
func seededSource(seed int64) func() float64 {
	state := seed % lcgModulus
	if state < 0 {
		state += lcgModulus
	}
	return func() float64 {
		state = (state*lcgMultiplier + lcgIncrement) % lcgModulus
		return float64(state) / lcgModulus
	}
}
