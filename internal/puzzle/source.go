// internal/puzzle/source.go
//
// Dataset sources. Every source returns the full category pool or a
// *DatasetError; partial pools are never returned.
//
// Sources:
//   - FileSource:     CSV file on disk (--puzzle-file).
//   - EmbeddedSource: CSV compiled into the binary (default).
//   - SQLSource:      read-only "categories" table in SQLite (--puzzle-db).
//   - Cache:          wraps another source and keeps the first successful pool.

package puzzle

import (
	"context"
	"database/sql"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/assets"
)

// Source loads the category pool.
type Source interface {
	Load(ctx context.Context) ([]Category, error)
}

// FileSource reads a CSV dataset from Path.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]Category, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, &DatasetError{Source: s.Path, Err: err}
	}
	defer f.Close()
	pool, err := Parse(f)
	return pool, withSource(err, s.Path)
}

// EmbeddedSource reads the dataset bundled in the assets package.
type EmbeddedSource struct{}

func (EmbeddedSource) Load(ctx context.Context) ([]Category, error) {
	f, err := assets.PuzzleData()
	if err != nil {
		return nil, &DatasetError{Source: assets.DefaultDataset, Err: err}
	}
	defer f.Close()
	pool, err := Parse(f)
	return pool, withSource(err, assets.DefaultDataset)
}

// SQLSource reads categories from a SQLite database migrated with the
// embedded schema. Rows are validated with the same rules as CSV rows;
// Line in a resulting DatasetError is the 1-based row position.
type SQLSource struct {
	DB *sql.DB
}

func (s SQLSource) Load(ctx context.Context) ([]Category, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT name, difficulty, word_1, word_2, word_3, word_4
        FROM categories
        ORDER BY id`)
	if err != nil {
		return nil, &DatasetError{Source: "sqlite", Err: err}
	}
	defer rows.Close()

	var b builder
	line := 0
	for rows.Next() {
		line++
		var c Category
		if err := rows.Scan(&c.Name, &c.Difficulty, &c.Words[0], &c.Words[1], &c.Words[2], &c.Words[3]); err != nil {
			return nil, &DatasetError{Source: "sqlite", Line: line, Err: err}
		}
		if err := b.add(line, c); err != nil {
			return nil, withSource(err, "sqlite")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &DatasetError{Source: "sqlite", Err: err}
	}
	pool, err := b.result()
	return pool, withSource(err, "sqlite")
}

// Cache loads from Src once and serves the same pool afterwards.
// Failed loads are not cached, so a later call retries.
type Cache struct {
	Src Source

	mu   sync.Mutex
	pool []Category
}

// NewCache wraps src.
func NewCache(src Source) *Cache { return &Cache{Src: src} }

func (c *Cache) Load(ctx context.Context) ([]Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		return c.pool, nil
	}
	pool, err := c.Src.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("puzzle dataset load failed")
		return nil, err
	}
	c.pool = pool
	log.Info().Int("categories", len(pool)).Interface("byDifficulty", Stats(pool)).Msg("puzzle dataset loaded")
	return pool, nil
}

// withSource stamps src onto a DatasetError that lacks one.
func withSource(err error, src string) error {
	if de, ok := err.(*DatasetError); ok && de.Source == "" {
		de.Source = src
	}
	return err
}
