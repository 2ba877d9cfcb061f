package puzzle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validCSV = `category,difficulty,word_1,word_2,word_3,word_4
Fruits,1,apple,pear,plum,fig
Colors,2,red,blue,teal,gold
Oceans,3,atl,pac,ind,arc
Planets,4,mars,venus,earth,pluto
`

func TestParseValid(t *testing.T) {
	pool, err := Parse(strings.NewReader(validCSV))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pool) != 4 {
		t.Fatalf("expected 4 categories, got %d", len(pool))
	}
	want := Category{Name: "Fruits", Difficulty: 1, Words: [4]string{"apple", "pear", "plum", "fig"}}
	if pool[0] != want {
		t.Errorf("first category = %+v, want %+v", pool[0], want)
	}
	if pool[3].Difficulty != 4 || pool[3].Words[3] != "pluto" {
		t.Errorf("unexpected last category %+v", pool[3])
	}
}

func TestParseHeaderOrderAndWhitespace(t *testing.T) {
	in := "word_4,word_3,word_2,word_1,difficulty,category,notes\n" +
		" fig , plum, pear, apple, 1 , Fruits ,easy\n" +
		"\n"
	pool, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pool) != 1 {
		t.Fatalf("expected 1 category, got %d", len(pool))
	}
	if pool[0].Name != "Fruits" || pool[0].Words != [4]string{"apple", "pear", "plum", "fig"} {
		t.Errorf("unexpected category %+v", pool[0])
	}
}

func TestParseRejectsMalformedRows(t *testing.T) {
	header := "category,difficulty,word_1,word_2,word_3,word_4\n"
	cases := []struct {
		name  string
		input string
		field string
		want  error
		line  int
	}{
		{"missing column", "category,difficulty,word_1,word_2,word_3\nA,1,a,b,c\n", "word_4", ErrMissingColumn, 1},
		{"empty name", header + ",1,a,b,c,d\n", "category", ErrMissingField, 2},
		{"bad difficulty", header + "A,easy,a,b,c,d\n", "difficulty", ErrBadDifficulty, 2},
		{"difficulty out of range", header + "A,5,a,b,c,d\n", "difficulty", ErrBadDifficulty, 2},
		{"missing difficulty", header + "A,,a,b,c,d\n", "difficulty", ErrMissingField, 2},
		{"short row", header + "A,1,a,b,c\n", "word_4", ErrMissingField, 2},
		{"duplicate word", header + "A,1,a,b,B,d\n", "word_3", ErrDuplicateWord, 2},
		{"duplicate category", header + "A,1,a,b,c,d\nB,2,e,f,g,h\na,3,i,j,k,l\n", "category", ErrDuplicateCategory, 4},
		{"colliding tile ids", header + "A-B,1,C,x,y,z\nA,2,p,B-C,q,r\n", "word_2", ErrDuplicateTile, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pool, err := Parse(strings.NewReader(tc.input))
			if pool != nil {
				t.Fatalf("expected no partial pool, got %d categories", len(pool))
			}
			var de *DatasetError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DatasetError, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, de.Err)
			}
			if de.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, de.Field)
			}
			if de.Line != tc.line {
				t.Errorf("expected line %d, got %d", tc.line, de.Line)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "category,difficulty,word_1,word_2,word_3,word_4\n"} {
		_, err := Parse(strings.NewReader(in))
		if !errors.Is(err, ErrEmptyDataset) {
			t.Errorf("Parse(%q): expected ErrEmptyDataset, got %v", in, err)
		}
	}
}

func TestParseUnbalancedQuote(t *testing.T) {
	in := "category,difficulty,word_1,word_2,word_3,word_4\n\"A,1,a,b,c,d\n"
	_, err := Parse(strings.NewReader(in))
	var de *DatasetError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DatasetError, got %v", err)
	}
}

func TestByDifficultyAndStats(t *testing.T) {
	pool, err := Parse(strings.NewReader(validCSV + "Pets,1,cat,dog,fish,bird\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	groups := ByDifficulty(pool)
	if len(groups[1]) != 2 || groups[1][0].Name != "Fruits" || groups[1][1].Name != "Pets" {
		t.Errorf("unexpected level 1 group: %+v", groups[1])
	}
	stats := Stats(pool)
	if stats[1] != 2 || stats[2] != 1 || stats[3] != 1 || stats[4] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
	if got := Stats(nil); len(got) != 4 || got[4] != 0 {
		t.Errorf("expected zeroed stats for every level, got %v", got)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "puzzles.csv")
	if err := os.WriteFile(path, []byte(validCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	pool, err := FileSource{Path: path}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool) != 4 {
		t.Errorf("expected 4 categories, got %d", len(pool))
	}

	// idempotent
	again, err := FileSource{Path: path}.Load(context.Background())
	if err != nil || len(again) != len(pool) || again[2] != pool[2] {
		t.Errorf("reload differs: %v %+v", err, again)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.csv")
	_, err := FileSource{Path: path}.Load(context.Background())
	var de *DatasetError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DatasetError, got %v", err)
	}
	if de.Source != path {
		t.Errorf("expected source %q, got %q", path, de.Source)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}
}

func TestEmbeddedSourceCoversEveryDifficulty(t *testing.T) {
	pool, err := EmbeddedSource{}.Load(context.Background())
	if err != nil {
		t.Fatalf("load embedded: %v", err)
	}
	for d, n := range Stats(pool) {
		if n == 0 {
			t.Errorf("embedded dataset has no category for difficulty %d", d)
		}
	}
}

type countingSource struct {
	calls int
	fail  bool
}

func (s *countingSource) Load(ctx context.Context) ([]Category, error) {
	s.calls++
	if s.fail {
		return nil, &DatasetError{Err: ErrEmptyDataset}
	}
	return Parse(strings.NewReader(validCSV))
}

func TestCacheKeepsFirstSuccess(t *testing.T) {
	src := &countingSource{fail: true}
	c := NewCache(src)

	if _, err := c.Load(context.Background()); err == nil {
		t.Fatal("expected first load to fail")
	}
	src.fail = false
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := c.Load(context.Background()); err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if src.calls != 2 {
		t.Errorf("expected 2 underlying loads, got %d", src.calls)
	}
}
