// internal/game/types.go
//
// Core type definitions for the session engine.
// Defines:
//   - Status: life-cycle state of a session (loading/playing/won/lost).
//   - Tile: one word on the board, tied back to its category.
//   - Snapshot: read-only copy of session state handed to view layers.

package game

import (
	"github.com/robalobadob/connections/internal/puzzle"
)

// Status is the coarse life-cycle state of a session.
type Status string

const (
	StatusLoading Status = "loading"
	StatusPlaying Status = "playing"
	StatusWon     Status = "won"
	StatusLost    Status = "lost"
)

// Terminal reports whether the session has finished.
func (s Status) Terminal() bool { return s == StatusWon || s == StatusLost }

const (
	// GroupSize is the number of tiles in a guess and words per category.
	GroupSize = puzzle.WordsPerCategory

	// MaxMistakes is the number of incorrect guesses that ends the game.
	MaxMistakes = 4
)

// Notices shown to the player.
const (
	NoticeOneAway        = "One away..."
	NoticeAlreadyGuessed = "Already guessed!"
)

// Tile is a single word on the board.
type Tile struct {
	ID         string `json:"id"`         // "<category>-<word>", unique within a session
	Word       string `json:"word"`
	Category   string `json:"category"`   // owning category name
	Difficulty int    `json:"difficulty"` // 1–4, copied from the category
}

// TileID derives the tile identifier for word in category.
func TileID(category, word string) string {
	return puzzle.TileID(category, word)
}

// Snapshot is an immutable view of a session. Slices are copies.
type Snapshot struct {
	ID                 string            `json:"id"`
	Board              []Tile            `json:"board"`
	Selection          []string          `json:"selection"`
	Solved             []puzzle.Category `json:"solved"`
	Mistakes           int               `json:"mistakes"`
	MaxMistakes        int               `json:"maxMistakes"`
	Status             Status            `json:"status"`
	Outcome            Status            `json:"outcome,omitempty"` // decided result, set before Status flips
	Notice             string            `json:"notice,omitempty"`
	ResultPanelVisible bool              `json:"resultPanelVisible"`
	LoadError          string            `json:"loadError,omitempty"`
}

// MistakesRemaining is the number of incorrect guesses still allowed.
func (s Snapshot) MistakesRemaining() int { return s.MaxMistakes - s.Mistakes }

// Selected reports whether the tile id is in the current selection.
func (s Snapshot) Selected(id string) bool {
	for _, sel := range s.Selection {
		if sel == id {
			return true
		}
	}
	return false
}
