// Package assets bundles the default puzzle dataset and the SQLite
// migrations into the binary so the server runs without any files on disk.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed puzzle_data.csv migrations/*.sql
var FS embed.FS

// DefaultDataset is the name of the embedded CSV dataset.
const DefaultDataset = "puzzle_data.csv"

// PuzzleData opens the embedded default dataset.
func PuzzleData() (fs.File, error) {
	return FS.Open(DefaultDataset)
}

// Migrations returns the embedded migrations directory rooted at its *.sql files.
func Migrations() (fs.FS, error) {
	return fs.Sub(FS, "migrations")
}
