package game

// Palette labels for solved categories, by difficulty. Display only; nothing
// in the engine reads them.
var palette = map[int]string{
	1: "yellow",
	2: "green",
	3: "blue",
	4: "purple",
}

// ColorFor returns the palette label for a difficulty, or "" if out of range.
func ColorFor(difficulty int) string { return palette[difficulty] }

// Palette returns a copy of the difficulty → color mapping.
func Palette() map[int]string {
	out := make(map[int]string, len(palette))
	for k, v := range palette {
		out[k] = v
	}
	return out
}
