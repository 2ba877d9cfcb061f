// internal/puzzle/puzzle.go
//
// Puzzle dataset model and CSV parsing.
// Responsibilities:
//   - Define Category (name, difficulty 1–4, exactly four words).
//   - Parse the tabular dataset (category, difficulty, word_1..word_4).
//   - Reject the whole dataset on the first malformed row (no partial pools).
//
// Notes:
//   - Column order is taken from the header row; extra columns are ignored.
//   - Names and words are trimmed; comparisons for duplicates are case-insensitive.

package puzzle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	MinDifficulty    = 1
	MaxDifficulty    = 4
	WordsPerCategory = 4
)

// Category is one hidden group of the puzzle.
type Category struct {
	Name       string                   `json:"name"`
	Difficulty int                      `json:"difficulty"`
	Words      [WordsPerCategory]string `json:"words"`
}

var (
	ErrMissingColumn     = errors.New("missing column")
	ErrMissingField      = errors.New("missing field")
	ErrBadDifficulty     = errors.New("difficulty must be an integer between 1 and 4")
	ErrDuplicateCategory = errors.New("duplicate category name")
	ErrDuplicateWord     = errors.New("duplicate word in category")
	ErrEmptyDataset      = errors.New("dataset has no categories")
	ErrDuplicateTile     = errors.New("tile id collides with another category")
)

// TileID derives the board identifier for word in category.
func TileID(category, word string) string {
	return category + "-" + word
}

// DatasetError reports a malformed or unreadable dataset.
// Line is 1-based (the header is line 1 for CSV sources); zero when the
// failure is not tied to a row.
type DatasetError struct {
	Source string
	Line   int
	Field  string
	Err    error
}

func (e *DatasetError) Error() string {
	var b strings.Builder
	b.WriteString("puzzle dataset")
	if e.Source != "" {
		b.WriteString(" " + e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Field != "" {
		b.WriteString(": " + e.Field)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *DatasetError) Unwrap() error { return e.Err }

// columns lists the required header names in canonical order.
var columns = []string{"category", "difficulty", "word_1", "word_2", "word_3", "word_4"}

// Parse reads a CSV dataset with a header row.
func Parse(r io.Reader) ([]Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &DatasetError{Err: ErrEmptyDataset}
	}
	if err != nil {
		return nil, &DatasetError{Line: 1, Err: err}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			return nil, &DatasetError{Line: 1, Field: c, Err: ErrMissingColumn}
		}
	}

	var b builder
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &DatasetError{Line: pe.Line, Err: pe.Err}
			}
			return nil, &DatasetError{Err: err}
		}
		line, _ := cr.FieldPos(0)

		field := func(name string) string {
			i := index[name]
			if i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		diffText := strings.TrimSpace(field("difficulty"))
		if diffText == "" {
			return nil, &DatasetError{Line: line, Field: "difficulty", Err: ErrMissingField}
		}
		diff, err := strconv.Atoi(diffText)
		if err != nil {
			return nil, &DatasetError{Line: line, Field: "difficulty", Err: ErrBadDifficulty}
		}

		c := Category{Name: field("category"), Difficulty: diff}
		for i := range c.Words {
			c.Words[i] = field(columns[2+i])
		}
		if err := b.add(line, c); err != nil {
			return nil, err
		}
	}
	return b.result()
}

// builder accumulates validated categories and enforces dataset-wide rules.
type builder struct {
	seen  map[string]struct{}
	tiles map[string]struct{} // every TileID produced so far
	out   []Category
}

func (b *builder) add(line int, c Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return &DatasetError{Line: line, Field: "category", Err: ErrMissingField}
	}
	if c.Difficulty < MinDifficulty || c.Difficulty > MaxDifficulty {
		return &DatasetError{Line: line, Field: "difficulty", Err: ErrBadDifficulty}
	}

	words := make(map[string]struct{}, WordsPerCategory)
	for i, w := range c.Words {
		w = strings.TrimSpace(w)
		name := columns[2+i]
		if w == "" {
			return &DatasetError{Line: line, Field: name, Err: ErrMissingField}
		}
		key := strings.ToLower(w)
		if _, dup := words[key]; dup {
			return &DatasetError{Line: line, Field: name, Err: ErrDuplicateWord}
		}
		words[key] = struct{}{}
		c.Words[i] = w
	}

	if b.seen == nil {
		b.seen = make(map[string]struct{})
		b.tiles = make(map[string]struct{})
	}
	key := strings.ToLower(c.Name)
	if _, dup := b.seen[key]; dup {
		return &DatasetError{Line: line, Field: "category", Err: ErrDuplicateCategory}
	}

	// "A-B"+"C" and "A"+"B-C" both give "A-B-C".
	for i, w := range c.Words {
		if _, dup := b.tiles[TileID(c.Name, w)]; dup {
			return &DatasetError{Line: line, Field: columns[2+i], Err: ErrDuplicateTile}
		}
	}
	for _, w := range c.Words {
		b.tiles[TileID(c.Name, w)] = struct{}{}
	}

	b.seen[key] = struct{}{}
	b.out = append(b.out, c)
	return nil
}

func (b *builder) result() ([]Category, error) {
	if len(b.out) == 0 {
		return nil, &DatasetError{Err: ErrEmptyDataset}
	}
	return b.out, nil
}

// ByDifficulty partitions a pool by difficulty level, preserving dataset order.
func ByDifficulty(pool []Category) map[int][]Category {
	out := make(map[int][]Category, MaxDifficulty)
	for _, c := range pool {
		out[c.Difficulty] = append(out[c.Difficulty], c)
	}
	return out
}

// Stats counts categories per difficulty level; every level 1–4 is present.
func Stats(pool []Category) map[int]int {
	out := make(map[int]int, MaxDifficulty)
	for d := MinDifficulty; d <= MaxDifficulty; d++ {
		out[d] = 0
	}
	for _, c := range pool {
		out[c.Difficulty]++
	}
	return out
}
