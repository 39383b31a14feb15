package grid

import (
	"hash/fnv"
	"math/rand"
)

// DeterministicSeedValue derives a stable sub-seed for a named subsystem so
// that mines, tokens, and spawn picks draw from independent streams of the
// same root seed.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG builds the RNG for one labeled subsystem.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}
