package keypoints

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	uts "go.viam.com/utils"

	"go.viam.com/vofrontend/utils"
)

// ErrMetricMismatch is returned when two descriptor sets cannot be compared.
var ErrMetricMismatch = errors.New("descriptor metric mismatch")

// MatchingConfig contains the parameters for matching descriptors.
type MatchingConfig struct {
	RatioThreshold float64 `json:"ratio_threshold"`
}

// NewDefaultMatchingConfig returns the usual 0.7 ratio.
func NewDefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{RatioThreshold: 0.7}
}

// Validate ensures all parts of the MatchingConfig are valid.
func (config *MatchingConfig) Validate(path string) error {
	if config.RatioThreshold <= 0 || config.RatioThreshold > 1 {
		return uts.NewConfigValidationError(path, errors.New("ratio_threshold should be in (0, 1]"))
	}
	return nil
}

// DescriptorMatch links descriptor QueryIdx of the query set to descriptor TrainIdx of the train set.
type DescriptorMatch struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// Matcher finds, for every query descriptor, its k closest train descriptors.
type Matcher interface {
	KnnMatch(query, train *DescriptorSet, k int) ([][]DescriptorMatch, error)
}

// BruteForceMatcher compares every query descriptor with every train descriptor. The result does
// not depend on the processing order: neighbors are sorted by distance then train index.
type BruteForceMatcher struct{}

// NewBruteForceMatcher returns an exhaustive matcher.
func NewBruteForceMatcher() *BruteForceMatcher {
	return &BruteForceMatcher{}
}

// KnnMatch returns, for each query descriptor in order, its min(k, train size) nearest train
// descriptors closest first. An empty train or query set gives an empty result.
func (m *BruteForceMatcher) KnnMatch(query, train *DescriptorSet, k int) ([][]DescriptorMatch, error) {
	if k < 1 {
		return nil, errors.Errorf("k should be >= 1, got %d", k)
	}
	if query.Len() == 0 || train.Len() == 0 {
		return [][]DescriptorMatch{}, nil
	}
	if query.Metric != train.Metric {
		return nil, errors.Wrapf(ErrMetricMismatch, "query uses %v, train uses %v", query.Metric, train.Metric)
	}
	if err := query.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid query descriptors")
	}
	if err := train.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid train descriptors")
	}
	if query.descriptorLen() != train.descriptorLen() {
		return nil, errors.Wrapf(ErrMetricMismatch, "query descriptors have length %d, train descriptors %d",
			query.descriptorLen(), train.descriptorLen())
	}
	kk := min(k, train.Len())

	results := make([][]DescriptorMatch, query.Len())
	err := utils.GroupWorkParallel(
		context.Background(),
		query.Len(),
		func(numGroups int) {},
		func(groupNum, groupSize, from, to int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
			best := make([]DescriptorMatch, 0, kk+1)
			return func(memberNum, workNum int) {
				best = best[:0]
				for j := 0; j < train.Len(); j++ {
					best = insertNeighbor(best, DescriptorMatch{
						QueryIdx: workNum,
						TrainIdx: j,
						Distance: descriptorDistance(query, train, workNum, j),
					}, kk)
				}
				results[workNum] = append([]DescriptorMatch(nil), best...)
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// descriptorDistance compares descriptor i of query with descriptor j of train. Lengths are
// checked by the caller.
func descriptorDistance(query, train *DescriptorSet, i, j int) float64 {
	if query.Metric == utils.Hamming {
		d, _ := utils.HammingDistanceBits(query.Binary[i], train.Binary[j])
		return float64(d)
	}
	d, _ := utils.EuclideanDistance(query.Float[i], train.Float[j])
	return d
}

// insertNeighbor inserts m in the sorted slice best, keeping at most k elements. Equal distances
// keep the lower train index first.
func insertNeighbor(best []DescriptorMatch, m DescriptorMatch, k int) []DescriptorMatch {
	pos := sort.Search(len(best), func(i int) bool {
		if best[i].Distance != m.Distance {
			return best[i].Distance > m.Distance
		}
		return best[i].TrainIdx > m.TrainIdx
	})
	if pos >= k {
		return best
	}
	best = append(best, DescriptorMatch{})
	copy(best[pos+1:], best[pos:])
	best[pos] = m
	if len(best) > k {
		best = best[:k]
	}
	return best
}

// RatioTest keeps the best neighbor of every candidate whose best distance is below ratio times the
// second best distance. Candidates with fewer than two neighbors are ambiguous and dropped. The
// survivors are appended to dst, in candidate order.
func RatioTest(candidates [][]DescriptorMatch, ratio float64, dst []DescriptorMatch) []DescriptorMatch {
	for _, c := range candidates {
		if len(c) < 2 {
			continue
		}
		if c[0].Distance < c[1].Distance*ratio {
			dst = append(dst, c[0])
		}
	}
	return dst
}
