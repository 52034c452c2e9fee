package utils

import (
	"math/rand/v2"
)

// AbsInt returns the absolute value of n.
func AbsInt(n int) int {
	if n < 0 {
		return -1 * n
	}
	return n
}

// SampleDistinctInts fills out with distinct integers drawn uniformly from [0, n). It panics if
// len(out) > n.
func SampleDistinctInts(out []int, n int, r *rand.Rand) {
	if len(out) > n {
		panic("cannot sample more distinct integers than the population size")
	}
	for i := range out {
		for {
			candidate := r.IntN(n)
			duplicate := false
			for _, prev := range out[:i] {
				if prev == candidate {
					duplicate = true
					break
				}
			}
			if !duplicate {
				out[i] = candidate
				break
			}
		}
	}
}
