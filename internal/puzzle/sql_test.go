package puzzle

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/robalobadob/connections/assets"
)

// setupTestDB opens a temp-dir SQLite database with the embedded schema applied.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "puzzles.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	migrations, err := assets.Migrations()
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	schema, err := fs.ReadFile(migrations, "001_categories.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func insertCategory(t *testing.T, db *sql.DB, name string, difficulty int, words ...string) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO categories (name, difficulty, word_1, word_2, word_3, word_4) VALUES (?,?,?,?,?,?)`,
		name, difficulty, words[0], words[1], words[2], words[3])
	if err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
}

func TestSQLSourceLoad(t *testing.T) {
	db := setupTestDB(t)
	insertCategory(t, db, "Fruits", 1, "apple", "pear", "plum", "fig")
	insertCategory(t, db, "Colors", 2, "red", "blue", "teal", "gold")
	insertCategory(t, db, "Oceans", 3, "atl", "pac", "ind", "arc")
	insertCategory(t, db, "Planets", 4, "mars", "venus", "earth", "pluto")

	pool, err := SQLSource{DB: db}.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pool) != 4 {
		t.Fatalf("expected 4 categories, got %d", len(pool))
	}
	if pool[1].Name != "Colors" || pool[1].Difficulty != 2 || pool[1].Words[3] != "gold" {
		t.Errorf("unexpected category %+v", pool[1])
	}
}

func TestSQLSourceEmptyTable(t *testing.T) {
	db := setupTestDB(t)
	_, err := SQLSource{DB: db}.Load(context.Background())
	var de *DatasetError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DatasetError, got %v", err)
	}
	if !errors.Is(err, ErrEmptyDataset) || de.Source != "sqlite" {
		t.Errorf("unexpected error %+v", de)
	}
}

func TestSQLSourceRejectsDuplicateWords(t *testing.T) {
	db := setupTestDB(t)
	insertCategory(t, db, "Fruits", 1, "apple", "pear", "plum", "fig")
	insertCategory(t, db, "Echo", 2, "red", "red", "teal", "gold")

	_, err := SQLSource{DB: db}.Load(context.Background())
	var de *DatasetError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DatasetError, got %v", err)
	}
	if de.Line != 2 || de.Field != "word_2" || !errors.Is(err, ErrDuplicateWord) {
		t.Errorf("unexpected error %+v", de)
	}
}

func TestSQLSourceMissingTable(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	_, err = SQLSource{DB: db}.Load(context.Background())
	var de *DatasetError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DatasetError, got %v", err)
	}
}
