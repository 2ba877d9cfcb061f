package game

import "fmt"

// InsufficientCategoriesError means the pool has no category for a difficulty
// level, so a one-per-level puzzle cannot be assembled.
type InsufficientCategoriesError struct {
	Difficulty int
}

func (e *InsufficientCategoriesError) Error() string {
	return fmt.Sprintf("no categories found for difficulty level %d", e.Difficulty)
}
