package utils

import (
	"errors"

	"github.com/steakknife/hamming"
	"gonum.org/v1/gonum/floats"
)

// DistanceType defines the type of distance used in a function.
type DistanceType int

const (
	// Euclidean is DistanceType 0.
	Euclidean DistanceType = iota
	// Hamming is DistanceType 1.
	Hamming
)

func (d DistanceType) String() string {
	switch d {
	case Euclidean:
		return "euclidean"
	case Hamming:
		return "hamming"
	default:
		return "unknown"
	}
}

var errLengthMismatch = errors.New("must have same length")

// HammingDistanceBits computes the number of differing bits between two packed binary vectors.
func HammingDistanceBits(b1, b2 []uint64) (int, error) {
	if len(b1) != len(b2) {
		return -1, errLengthMismatch
	}
	distance := 0
	for i := range b1 {
		distance += hamming.CountBitsUint64(b1[i] ^ b2[i])
	}
	return distance, nil
}

// EuclideanDistance computes the euclidean distance between 2 vectors.
func EuclideanDistance(p1, p2 []float64) (float64, error) {
	if len(p1) != len(p2) {
		return -1, errLengthMismatch
	}
	return floats.Distance(p1, p2, 2), nil
}
