package shuffle

import (
	"reflect"
	"sort"
	"testing"

	"github.com/holiman/uint256"
)

var people = []string{"Alice", "Bob", "Charlie", "David"}

func TestShufflePinnedOrders(t *testing.T) {
	cases := []struct {
		name    string
		entries []string
		seed    int64
		want    []string
	}{
		{"seed 42", people, 42, []string{"David", "Alice", "Charlie", "Bob"}},
		{"seed 0", people, 0, []string{"David", "Bob", "Alice", "Charlie"}},
		{"seed 1", people, 1, []string{"Charlie", "David", "Alice", "Bob"}},
		{"negative seed", people, -1, []string{"Charlie", "Alice", "Bob", "David"}},
		{"eight entries", []string{"a", "b", "c", "d", "e", "f", "g", "h"}, 42, []string{"e", "f", "h", "d", "a", "g", "c", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Shuffle(tc.entries, tc.seed)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Shuffle(%v, %d) = %v, want %v", tc.entries, tc.seed, got, tc.want)
			}
		})
	}
}

func TestShuffleIsDeterministic(t *testing.T) {
	first := Shuffle(people, 123456789)
	for i := 0; i < 10; i++ {
		if got := Shuffle(people, 123456789); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d = %v, want %v", i, got, first)
		}
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	entries := []string{"a", "b", "b", "c", "d", "e", "f"}
	for seed := int64(-5); seed < 50; seed++ {
		got := Shuffle(entries, seed)
		sortedGot := append([]string(nil), got...)
		sortedIn := append([]string(nil), entries...)
		sort.Strings(sortedGot)
		sort.Strings(sortedIn)
		if !reflect.DeepEqual(sortedGot, sortedIn) {
			t.Fatalf("seed %d: %v is not a permutation of %v", seed, got, entries)
		}
	}
}

func TestShuffleDoesNotMutateInput(t *testing.T) {
	entries := []string{"Alice", "Bob", "Charlie", "David"}
	_ = Shuffle(entries, 42)
	if !reflect.DeepEqual(entries, people) {
		t.Fatalf("input mutated: %v", entries)
	}
}

func TestShuffleSmallInputs(t *testing.T) {
	if got := Shuffle(nil, 42); len(got) != 0 {
		t.Fatalf("Shuffle(nil) = %v, want empty", got)
	}
	if got := Shuffle([]string{"solo"}, 42); !reflect.DeepEqual(got, []string{"solo"}) {
		t.Fatalf("Shuffle(solo) = %v", got)
	}
}

func TestWinners(t *testing.T) {
	shuffled := Shuffle(people, 42)
	if got := Winners(shuffled, 2); !reflect.DeepEqual(got, []string{"David", "Alice"}) {
		t.Fatalf("Winners(2) = %v", got)
	}
	three := []string{"Ana", "Ben", "Cy"}
	if got := Winners(three, 10); !reflect.DeepEqual(got, three) {
		t.Fatalf("Winners(10) = %v, want clamped %v", got, three)
	}
	if got := Winners(three, 0); len(got) != 0 {
		t.Fatalf("Winners(0) = %v, want empty", got)
	}
	if got := Winners(three, -1); len(got) != 0 {
		t.Fatalf("Winners(-1) = %v, want empty", got)
	}
}

func TestSeedFromRandomness(t *testing.T) {
	if got := SeedFromRandomness(uint256.NewInt(42)); got != 42 {
		t.Fatalf("seed = %d, want 42", got)
	}
	big := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	big.AddUint64(big, 5)
	if got := SeedFromRandomness(big); got != 5 {
		t.Fatalf("seed of 2^64+5 = %d, want 5", got)
	}
	allOnes := new(uint256.Int).SetUint64(^uint64(0))
	if got := SeedFromRandomness(allOnes); got != -1 {
		t.Fatalf("seed of 2^64-1 = %d, want -1", got)
	}
	if got := SeedFromRandomness(nil); got != 0 {
		t.Fatalf("seed of nil = %d, want 0", got)
	}
}

func TestDrawWithRandomness(t *testing.T) {
	res := DrawWithRandomness(people, uint256.NewInt(42), 2)
	if res.Seed != 42 {
		t.Fatalf("seed = %d, want 42", res.Seed)
	}
	if !reflect.DeepEqual(res.Order, []string{"David", "Alice", "Charlie", "Bob"}) {
		t.Fatalf("order = %v", res.Order)
	}
	if !reflect.DeepEqual(res.Winners, []string{"David", "Alice"}) {
		t.Fatalf("winners = %v", res.Winners)
	}
}
