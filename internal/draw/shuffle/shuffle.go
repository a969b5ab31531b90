// Package shuffle turns one random integer into a reproducible permutation
// and winner set.
//
// The permutation is a Fisher-Yates shuffle driven by Go's math/rand v1
// source: rng := rand.New(rand.NewSource(seed)), then for i from len-1 down
// to 1, j := rng.Intn(i+1) and entries i and j swap. A verifier in another
// language must reproduce that source bit for bit to check a draw.
package shuffle

import (
	"math/rand"

	"github.com/holiman/uint256"
)

// Result captures one reproducible draw.
type Result struct {
	Seed    int64
	Order   []string
	Winners []string
}

// Shuffle returns a permuted copy of entries. The input is not mutated.
func Shuffle(entries []string, seed int64) []string {
	out := make([]string, len(entries))
	copy(out, entries)
	if len(out) < 2 {
		return out
	}

	rng := rand.New(rand.NewSource(seed))
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Winners returns the first n entries of shuffled. n is clamped to the list
// length; a negative n selects nobody.
func Winners(shuffled []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	if n > len(shuffled) {
		n = len(shuffled)
	}
	out := make([]string, n)
	copy(out, shuffled[:n])
	return out
}

// SeedFromRandomness reduces a 256-bit value to a shuffle seed: the low 64
// bits reinterpreted as a signed integer.
func SeedFromRandomness(v *uint256.Int) int64 {
	if v == nil {
		return 0
	}
	return int64(v.Uint64())
}

// Draw shuffles entries with seed and selects n winners.
func Draw(entries []string, seed int64, n int) Result {
	order := Shuffle(entries, seed)
	return Result{
		Seed:    seed,
		Order:   order,
		Winners: Winners(order, n),
	}
}

// DrawWithRandomness is Draw seeded from a randomness value.
func DrawWithRandomness(entries []string, v *uint256.Int, n int) Result {
	return Draw(entries, SeedFromRandomness(v), n)
}
