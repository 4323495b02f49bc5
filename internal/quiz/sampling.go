package quiz

import "math/rand/v2"

// Rand is the randomness source used for sampling.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// sampleIDs draws n distinct ids uniformly at random with a partial
// Fisher-Yates shuffle. The input slice is not modified.
func sampleIDs(r Rand, ids []int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	if n > len(ids) {
		n = len(ids)
	}
	pool := make([]int64, len(ids))
	copy(pool, ids)
	for i := 0; i < n; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
