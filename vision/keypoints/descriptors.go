package keypoints

import (
	"github.com/pkg/errors"

	"go.viam.com/vofrontend/utils"
)

// DescriptorSet holds the keypoints of a frame and their descriptors. Index i of Points goes with
// index i of Binary (Hamming metric) or Float (Euclidean metric); the index is the identity used
// by the matcher.
type DescriptorSet struct {
	Points KeyPoints
	Binary [][]uint64
	Float  [][]float64
	Metric utils.DistanceType
}

// NewBinaryDescriptorSet returns an empty set of Hamming descriptors.
func NewBinaryDescriptorSet(capacity int) *DescriptorSet {
	return &DescriptorSet{
		Points: make(KeyPoints, 0, capacity),
		Binary: make([][]uint64, 0, capacity),
		Metric: utils.Hamming,
	}
}

// NewFloatDescriptorSet returns an empty set of Euclidean descriptors.
func NewFloatDescriptorSet(capacity int) *DescriptorSet {
	return &DescriptorSet{
		Points: make(KeyPoints, 0, capacity),
		Float:  make([][]float64, 0, capacity),
		Metric: utils.Euclidean,
	}
}

// Len returns the number of described keypoints. A nil set is empty.
func (ds *DescriptorSet) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.Points)
}

// Append adds the union of sets to ds. All sets must use the same metric.
func (ds *DescriptorSet) Append(others ...*DescriptorSet) error {
	for _, o := range others {
		if o == nil {
			continue
		}
		if o.Metric != ds.Metric {
			return errors.Wrapf(ErrMetricMismatch, "cannot append %v descriptors to %v descriptors", o.Metric, ds.Metric)
		}
		ds.Points = append(ds.Points, o.Points...)
		ds.Binary = append(ds.Binary, o.Binary...)
		ds.Float = append(ds.Float, o.Float...)
	}
	return nil
}

// Validate checks that every keypoint has exactly one descriptor of the declared metric and that
// all descriptors have the same length.
func (ds *DescriptorSet) Validate() error {
	n := len(ds.Points)
	switch ds.Metric {
	case utils.Hamming:
		if len(ds.Binary) != n || len(ds.Float) != 0 {
			return errors.Errorf("%d keypoints but %d binary and %d float descriptors", n, len(ds.Binary), len(ds.Float))
		}
		for i := range ds.Binary {
			if len(ds.Binary[i]) != len(ds.Binary[0]) {
				return errors.Errorf("binary descriptor %d has %d words, expected %d", i, len(ds.Binary[i]), len(ds.Binary[0]))
			}
		}
	case utils.Euclidean:
		if len(ds.Float) != n || len(ds.Binary) != 0 {
			return errors.Errorf("%d keypoints but %d float and %d binary descriptors", n, len(ds.Float), len(ds.Binary))
		}
		for i := range ds.Float {
			if len(ds.Float[i]) != len(ds.Float[0]) {
				return errors.Errorf("float descriptor %d has length %d, expected %d", i, len(ds.Float[i]), len(ds.Float[0]))
			}
		}
	default:
		return errors.Errorf("unsupported descriptor metric %v", ds.Metric)
	}
	return nil
}

// descriptorLen returns the length of the descriptors of the set, 0 if it is empty.
func (ds *DescriptorSet) descriptorLen() int {
	switch {
	case len(ds.Binary) > 0:
		return len(ds.Binary[0])
	case len(ds.Float) > 0:
		return len(ds.Float[0])
	default:
		return 0
	}
}

// Clone returns a deep copy of the set.
func (ds *DescriptorSet) Clone() *DescriptorSet {
	if ds == nil {
		return nil
	}
	out := &DescriptorSet{
		Points: append(KeyPoints(nil), ds.Points...),
		Metric: ds.Metric,
	}
	if ds.Binary != nil {
		out.Binary = make([][]uint64, len(ds.Binary))
		for i, d := range ds.Binary {
			out.Binary[i] = append([]uint64(nil), d...)
		}
	}
	if ds.Float != nil {
		out.Float = make([][]float64, len(ds.Float))
		for i, d := range ds.Float {
			out.Float[i] = append([]float64(nil), d...)
		}
	}
	return out
}
