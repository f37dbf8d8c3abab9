package game

const (
	easyWordPoints   = 1
	hardPhrasePoints = 3
	penaltyPoints    = -1
	skipPoints       = -1
)

type Score struct {
	Points      int    `json:"points"`
	Description string `json:"description"`
}

// Scoring is the point table the engine consults. Implementations must be
// stateless so a single value can be shared by every room.
type Scoring interface {
	EasyWord() Score
	HardPhrase() Score
	Penalty() Score
	Skip() Score
}

// Scorer is the standard point table.
type Scorer struct{}

func (Scorer) EasyWord() Score {
	return Score{Points: easyWordPoints, Description: "Correct 1-point word"}
}

func (Scorer) HardPhrase() Score {
	return Score{Points: hardPhrasePoints, Description: "Correct 3-point phrase"}
}

func (Scorer) Penalty() Score {
	return Score{Points: penaltyPoints, Description: "NO! penalty"}
}

func (Scorer) Skip() Score {
	return Score{Points: skipPoints, Description: "Card skipped"}
}
