package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Rand is the randomness used for category picks and shuffles.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	// IntN returns a uniform value in [0, n). n > 0.
	IntN(n int) int
}

// NewRand returns a PCG generator seeded from crypto/rand.
func NewRand() Rand {
	var b [16]byte
	_, _ = crand.Read(b[:])
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}

// shuffle returns a Fisher–Yates permutation of tiles; the input is not modified.
func shuffle(tiles []Tile, rng Rand) []Tile {
	out := make([]Tile, len(tiles))
	copy(out, tiles)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
