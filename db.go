// db.go
//
// Database helpers and puzzle source selection.
// Responsibilities:
//   - Opening SQLite database with safe defaults (busy timeout, read-mostly use).
//   - Applying the embedded migrations (idempotent, recorded in _migrations).
//   - Choosing the puzzle source: --puzzle-db, --puzzle-file, or the built-in dataset.
//
// Note: the database is only read for categories; sessions never touch it.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/assets"
	"github.com/robalobadob/connections/internal/puzzle"
)

// openDB opens (and creates if missing) a SQLite database file.
// The parent directory is created for relative paths like ./data/puzzles.db.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies every *.sql file in fsys, in lexical order, once.
// Applied names are tracked in _migrations.
func migrate(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		var done int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM _migrations WHERE name=?`, f).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", f).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := fs.ReadFile(fsys, f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", f, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO _migrations(name) VALUES (?)`, f); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", f, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", f, err)
		}
		log.Info().Str("migration", f).Msg("applied")
	}
	return nil
}

// openSource returns the configured puzzle source, cached so the dataset is
// read once per process. The returned func releases any database handle.
func openSource(ctx context.Context, cfg *Config) (puzzle.Source, func(), error) {
	switch {
	case cfg.puzzleDB != "":
		db, err := openDB(cfg.puzzleDB)
		if err != nil {
			return nil, nil, fmt.Errorf("open puzzle db: %w", err)
		}
		migrations, err := assets.Migrations()
		if err == nil {
			err = migrate(ctx, db, migrations)
		}
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate puzzle db: %w", err)
		}
		log.Info().Str("db", cfg.puzzleDB).Msg("puzzles from sqlite")
		return puzzle.NewCache(puzzle.SQLSource{DB: db}), func() { db.Close() }, nil

	case cfg.puzzleFile != "":
		log.Info().Str("file", cfg.puzzleFile).Msg("puzzles from csv")
		return puzzle.NewCache(puzzle.FileSource{Path: cfg.puzzleFile}), func() {}, nil

	default:
		log.Info().Str("dataset", assets.DefaultDataset).Msg("puzzles from built-in dataset")
		return puzzle.NewCache(puzzle.EmbeddedSource{}), func() {}, nil
	}
}
