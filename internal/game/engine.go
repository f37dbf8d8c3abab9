package game

import (
	"fmt"
	"time"
)

// Engine runs one match. It owns no lock: the room holding it must serialize
// every call, including those arriving from timer callbacks.
type Engine struct {
	state   State
	config  Config
	teams   []*Team
	players *Roster
	deck    *Deck
	scoring Scoring
	now     func() time.Time
	shuffle func(*Deck)

	current    *Turn
	history    []*Turn
	teamIndex  int
	turnNumber int
	turnsTaken map[string]int
	poetIndex  map[string]int

	startedAt time.Time
	endedAt   time.Time
}

type Option func(*Engine)

// WithClock replaces time.Now for turn and game timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithScoring(s Scoring) Option {
	return func(e *Engine) { e.scoring = s }
}

// WithSeed makes every shuffle, including reshuffles on exhaustion, use the
// seeded generator.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.shuffle = func(d *Deck) { d.ShuffleSeed(seed) }
	}
}

// NewEngine builds an engine in LOBBY over the given teams. Team pointers and
// the roster are shared with the caller, so scores and roles written by the
// engine are visible through them.
func NewEngine(teams []*Team, players *Roster, deck *Deck, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		state:      StateLobby,
		config:     cfg,
		teams:      teams,
		players:    players,
		deck:       deck,
		scoring:    Scorer{},
		now:        time.Now,
		shuffle:    (*Deck).Shuffle,
		turnsTaken: make(map[string]int, len(teams)),
		poetIndex:  make(map[string]int, len(teams)),
	}
	for _, t := range teams {
		e.turnsTaken[t.ID] = 0
		e.poetIndex[t.ID] = 0
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Start() error {
	if e.state != StateLobby {
		return fmt.Errorf("%w: game already started", ErrInvalidState)
	}
	if len(e.teams) < 2 {
		return fmt.Errorf("%w: need at least 2 teams to start", ErrValidation)
	}
	for _, t := range e.teams {
		if len(t.PlayerIDs) == 0 {
			return fmt.Errorf("%w: team %s has no players", ErrValidation, t.Name)
		}
	}
	e.deck.Reset()
	e.shuffle(e.deck)
	e.startedAt = e.now()
	e.state = StatePlaying
	return nil
}

// StartTurn opens a turn for the next team in rotation and deals its first
// card.
func (e *Engine) StartTurn() (*Turn, error) {
	if e.state != StatePlaying && e.state != StateTurnEnded {
		return nil, fmt.Errorf("%w: cannot start turn in state %s", ErrInvalidState, e.state)
	}
	team := e.teams[e.teamIndex]
	opposing := e.teams[(e.teamIndex+1)%len(e.teams)]
	for _, t := range []*Team{team, opposing} {
		if len(t.PlayerIDs) == 0 {
			return nil, fmt.Errorf("%w: team %s has no players", ErrValidation, t.Name)
		}
	}
	card, ok := e.nextCard()
	if !ok {
		return nil, fmt.Errorf("%w: no cards available", ErrValidation)
	}

	ix := e.poetIndex[team.ID]
	poetID := team.PlayerIDs[ix%len(team.PlayerIDs)]
	e.poetIndex[team.ID] = ix + 1
	judgeID := opposing.PlayerIDs[0]

	for _, p := range e.players.All() {
		switch {
		case p.ID == poetID:
			p.Role = RolePoet
		case p.ID == judgeID:
			p.Role = RoleJudge
		case team.Has(p.ID):
			p.Role = RoleGuesser
		default:
			p.Role = RoleSpectator
		}
	}

	e.current = &Turn{
		TeamID:         team.ID,
		PoetID:         poetID,
		JudgeID:        judgeID,
		CurrentCard:    card,
		CardsAttempted: []CardAttempt{},
		StartTime:      e.now(),
	}
	e.turnNumber++
	e.state = StateTurnActive
	return e.current.clone(), nil
}

func (e *Engine) MarkEasyWordGuessed() (int, error) {
	if err := e.requireActiveTurn(); err != nil {
		return 0, err
	}
	if e.current.CurrentCardEasyGuessed {
		return 0, nil
	}
	e.current.CurrentCardEasyGuessed = true
	pts := e.scoring.EasyWord().Points
	e.credit(pts)
	return pts, nil
}

func (e *Engine) MarkHardPhraseGuessed() (int, error) {
	if err := e.requireActiveTurn(); err != nil {
		return 0, err
	}
	if e.current.CurrentCardHardGuessed {
		return 0, nil
	}
	e.current.CurrentCardHardGuessed = true
	pts := e.scoring.HardPhrase().Points
	e.credit(pts)
	return pts, nil
}

func (e *Engine) credit(pts int) {
	t := e.current
	t.PointsEarned += pts
	var cardPts int
	if t.CurrentCardEasyGuessed {
		cardPts += e.scoring.EasyWord().Points
	}
	if t.CurrentCardHardGuessed {
		cardPts += e.scoring.HardPhrase().Points
	}
	t.CardsAttempted = append(t.CardsAttempted, CardAttempt{
		Card:              t.CurrentCard,
		EasyWordGuessed:   t.CurrentCardEasyGuessed,
		HardPhraseGuessed: t.CurrentCardHardGuessed,
		PointsEarned:      cardPts,
	})
	e.advanceCard()
}

// SkipCard passes on the current card for the skip penalty and returns the
// card now in play.
func (e *Engine) SkipCard() (Card, error) {
	if err := e.requireActiveTurn(); err != nil {
		return Card{}, err
	}
	e.discard(e.scoring.Skip().Points, false)
	return e.current.CurrentCard, nil
}

// CallNo applies the judge's penalty and retires the current card.
func (e *Engine) CallNo() (Card, error) {
	if err := e.requireActiveTurn(); err != nil {
		return Card{}, err
	}
	e.discard(e.scoring.Penalty().Points, true)
	return e.current.CurrentCard, nil
}

func (e *Engine) discard(pts int, penalized bool) {
	t := e.current
	t.PointsEarned += pts
	t.CardsAttempted = append(t.CardsAttempted, CardAttempt{
		Card:              t.CurrentCard,
		EasyWordGuessed:   t.CurrentCardEasyGuessed,
		HardPhraseGuessed: t.CurrentCardHardGuessed,
		PointsEarned:      pts,
		Skipped:           true,
		Penalized:         penalized,
	})
	e.advanceCard()
}

func (e *Engine) advanceCard() {
	next, ok := e.nextCard()
	if !ok {
		return
	}
	e.current.CurrentCard = next
	e.current.CurrentCardEasyGuessed = false
	e.current.CurrentCardHardGuessed = false
}

// nextCard draws, resetting and reshuffling once if the deck ran dry.
func (e *Engine) nextCard() (Card, bool) {
	if c, ok := e.deck.Draw(); ok {
		return c, true
	}
	e.deck.Reset()
	e.shuffle(e.deck)
	return e.deck.Draw()
}

// EndTurn closes the active turn, banks its points and decides whether the
// match is over.
func (e *Engine) EndTurn(reason TurnEndReason) (*Turn, error) {
	if err := e.requireActiveTurn(); err != nil {
		return nil, err
	}
	t := e.current
	end := e.now()
	t.EndTime = &end
	t.EndReason = reason

	if team := e.team(t.TeamID); team != nil {
		team.Score += t.PointsEarned
	}
	e.turnsTaken[t.TeamID]++
	e.history = append(e.history, t.clone())
	for _, p := range e.players.All() {
		p.Role = RoleSpectator
	}
	e.teamIndex = (e.teamIndex + 1) % len(e.teams)
	e.current = nil

	if e.IsGameOver() {
		e.state = StateGameOver
		e.endedAt = end
	} else {
		e.state = StateTurnEnded
	}
	return t.clone(), nil
}

func (e *Engine) requireActiveTurn() error {
	if e.state != StateTurnActive || e.current == nil {
		return fmt.Errorf("%w: no active turn", ErrInvalidState)
	}
	return nil
}

func (e *Engine) IsGameOver() bool {
	if e.config.MaxTurns > 0 && e.turnNumber >= e.config.MaxTurns {
		return true
	}
	for _, t := range e.teams {
		if e.turnsTaken[t.ID] < e.config.RoundsPerTeam {
			return false
		}
	}
	return true
}

// WinningTeam reports the highest scoring team once the game is over. On a
// tie the team listed first wins.
func (e *Engine) WinningTeam() (Team, bool) {
	if e.state != StateGameOver || len(e.teams) == 0 {
		return Team{}, false
	}
	best := e.teams[0]
	for _, t := range e.teams[1:] {
		if t.Score > best.Score {
			best = t
		}
	}
	return copyTeam(best), true
}

func (e *Engine) CanEndManually() bool {
	if len(e.teams) == 0 {
		return false
	}
	first := e.turnsTaken[e.teams[0].ID]
	if first <= 0 {
		return false
	}
	for _, t := range e.teams[1:] {
		if e.turnsTaken[t.ID] != first {
			return false
		}
	}
	return true
}

func (e *Engine) EndManually() error {
	if !e.CanEndManually() {
		return fmt.Errorf("%w: cannot end game manually: teams must have equal number of turns", ErrValidation)
	}
	if e.state != StatePlaying && e.state != StateTurnEnded {
		return fmt.Errorf("%w: cannot end game in state %s", ErrInvalidState, e.state)
	}
	e.state = StateGameOver
	e.endedAt = e.now()
	return nil
}

func (e *Engine) Summary() (*Summary, error) {
	if e.state != StateGameOver {
		return nil, fmt.Errorf("%w: game is not over", ErrInvalidState)
	}
	sum := &Summary{
		Teams:        make([]TeamSummary, 0, len(e.teams)),
		RoundStats:   make([]RoundStats, 0, len(e.history)),
		TotalRounds:  len(e.history),
		GameDuration: e.endedAt.Sub(e.startedAt),
	}
	totals := make(map[string]*TeamSummary, len(e.teams))
	for _, t := range e.teams {
		sum.Teams = append(sum.Teams, TeamSummary{ID: t.ID, Name: t.Name, Score: t.Score})
	}
	for i := range sum.Teams {
		totals[sum.Teams[i].ID] = &sum.Teams[i]
	}

	rounds := make(map[string]int, len(e.teams))
	for _, turn := range e.history {
		rounds[turn.TeamID]++
		rs := RoundStats{
			RoundNumber:    rounds[turn.TeamID],
			TeamID:         turn.TeamID,
			TeamName:       "Unknown",
			PoetName:       e.players.Name(turn.PoetID),
			CardsAttempted: len(turn.CardsAttempted),
			PointsEarned:   turn.PointsEarned,
			Duration:       turn.Duration(),
		}
		for _, a := range turn.CardsAttempted {
			if a.Skipped {
				rs.CardsSkipped++
			}
			if a.Completed() {
				rs.CardsCompleted++
			}
		}
		if ts := totals[turn.TeamID]; ts != nil {
			rs.TeamName = ts.Name
			ts.TotalCardsAttempted += rs.CardsAttempted
			ts.TotalCardsCompleted += rs.CardsCompleted
			ts.TotalCardsSkipped += rs.CardsSkipped
		}
		sum.RoundStats = append(sum.RoundStats, rs)
	}

	if w, ok := e.WinningTeam(); ok {
		sum.WinningTeamID = w.ID
		sum.WinningTeamName = w.Name
	}
	return sum, nil
}

func (e *Engine) State() State { return e.state }

func (e *Engine) Config() Config { return e.config }

func (e *Engine) TurnNumber() int { return e.turnNumber }

// CurrentTurn returns a copy of the turn in progress, or nil between turns.
func (e *Engine) CurrentTurn() *Turn { return e.current.clone() }

func (e *Engine) TurnsTaken(teamID string) int { return e.turnsTaken[teamID] }

func (e *Engine) History() []Turn {
	out := make([]Turn, 0, len(e.history))
	for _, t := range e.history {
		out = append(out, *t.clone())
	}
	return out
}

func (e *Engine) Teams() []Team {
	out := make([]Team, 0, len(e.teams))
	for _, t := range e.teams {
		out = append(out, copyTeam(t))
	}
	return out
}

// NextTeamID is the team that will play the next turn.
func (e *Engine) NextTeamID() string {
	if len(e.teams) == 0 {
		return ""
	}
	return e.teams[e.teamIndex].ID
}

func (e *Engine) StartedAt() time.Time { return e.startedAt }

func (e *Engine) team(id string) *Team {
	for _, t := range e.teams {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func copyTeam(t *Team) Team {
	c := *t
	c.PlayerIDs = append([]string(nil), t.PlayerIDs...)
	return c
}
