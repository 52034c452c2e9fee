package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SampleNIntegersNormal samples n integers from normal distribution centered around (vMax+vMin) / 2
// and in range [vMin, vMax]. A nil src uses the global source.
func SampleNIntegersNormal(n int, vMin, vMax float64, src rand.Source) []int {
	z := make([]int, n)
	// get normal distribution centered on (vMax+vMin) / 2 and whose sampled are mostly in [vMin, vMax] (var=0.1)
	mean := (vMax + vMin) / 2
	dist := distuv.Normal{
		Mu:    mean,
		Sigma: (vMax - vMin) * 0.4472,
		Src:   src,
	}
	for i := range z {
		val := math.Round(dist.Rand())
		for val < vMin || val > vMax {
			val = math.Round(dist.Rand())
		}
		z[i] = int(val)
	}

	return z
}

// SampleNIntegersUniform samples n integers uniformly in [vMin, vMax]. A nil src uses the global
// source.
func SampleNIntegersUniform(n int, vMin, vMax float64, src rand.Source) []int {
	z := make([]int, n)
	// get uniform distribution on [vMin, vMax]
	dist := distuv.Uniform{
		Min: vMin,
		Max: vMax,
		Src: src,
	}
	for i := range z {
		val := math.Round(dist.Rand())
		for val < vMin || val > vMax {
			val = math.Round(dist.Rand())
		}
		z[i] = int(val)
	}

	return z
}

// SampleNRegularlySpaced returns n integers walking [vMin, vMax] with the given stride and
// wrapping around at vMax. Different strides give decorrelated sequences over the same range.
func SampleNRegularlySpaced(n int, vMin, vMax float64, stride int) []int {
	lo := int(math.Round(vMin))
	span := int(math.Round(vMax)) - lo + 1
	z := make([]int, n)
	if span <= 0 {
		return z
	}
	if stride <= 0 {
		stride = 1
	}
	for i := range z {
		z[i] = lo + (i*stride)%span
	}
	return z
}
