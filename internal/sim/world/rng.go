package world

import "math/rand/v2"

// RNG is the uniform randomness source consumed by the pipeline.
type RNG interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// IntN returns a value in [0,n). n > 0.
	IntN(n int) int
}

// NewRNG returns a seeded PCG source. The same seed yields the same world.
func NewRNG(seed int64) RNG {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}
