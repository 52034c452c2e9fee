package transform

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	vutils "go.viam.com/vofrontend/utils"
)

// FitStatus tells whether a robust fit produced a usable model.
type FitStatus int

const (
	// FitOK means the model and its inlier mask are valid.
	FitOK FitStatus = iota
	// FitDegenerate means no model could be fit; the inlier mask is all false.
	FitDegenerate
)

func (s FitStatus) String() string {
	switch s {
	case FitOK:
		return "ok"
	case FitDegenerate:
		return "degenerate"
	default:
		return "unknown"
	}
}

// RANSACConfig stores the parameters of the robust fundamental matrix estimation.
type RANSACConfig struct {
	// ThresholdPx is the maximum Sampson distance of an inlier, in pixels.
	ThresholdPx   float64 `json:"threshold_px"`
	Confidence    float64 `json:"confidence"`
	MaxIterations int     `json:"max_iterations"`
	Seed          uint64  `json:"seed"`
}

// NewDefaultRANSACConfig returns a 1 pixel threshold, 0.99 confidence and a cap of 100 iterations.
func NewDefaultRANSACConfig() *RANSACConfig {
	return &RANSACConfig{
		ThresholdPx:   1.0,
		Confidence:    0.99,
		MaxIterations: 100,
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *RANSACConfig) Validate(path string) error {
	if cfg == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "ransac")
	}
	if cfg.ThresholdPx <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("threshold_px must be positive, got %v", cfg.ThresholdPx))
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("confidence must be in (0, 1), got %v", cfg.Confidence))
	}
	if cfg.MaxIterations < 1 {
		return utils.NewConfigValidationError(path, errors.Errorf("max_iterations must be at least 1, got %d", cfg.MaxIterations))
	}
	return nil
}

// LoadRANSACConfiguration loads a RANSACConfig from a json file.
func LoadRANSACConfiguration(file string) (*RANSACConfig, error) {
	var config RANSACConfig
	//nolint:gosec
	configFile, err := os.Open(filepath.Clean(file))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	if err := json.NewDecoder(configFile).Decode(&config); err != nil {
		return nil, errors.Wrapf(err, "cannot decode ransac config %q", file)
	}
	return &config, nil
}

// FundamentalFit is the result of EstimateFundamentalMatrixRANSAC.
type FundamentalFit struct {
	// F satisfies x2^T F x1 = 0 for inliers. Nil when Status is FitDegenerate.
	F *mat.Dense
	// Inliers has one flag per input correspondence.
	Inliers    []bool
	NumInliers int
	Iterations int
	Status     FitStatus
	// Reason explains a degenerate fit.
	Reason string
}

func degenerateFit(n, iterations int, reason string) *FundamentalFit {
	return &FundamentalFit{
		Inliers:    make([]bool, n),
		Iterations: iterations,
		Status:     FitDegenerate,
		Reason:     reason,
	}
}

// EstimateFundamentalMatrixRANSAC robustly fits a fundamental matrix to the correspondences
// (pts1[i], pts2[i]) by repeatedly fitting minimal eight point samples and keeping the model with the
// most inliers. pixelScale converts the pixel threshold of cfg into the units of the points; it is
// the mean focal length when the points are normalized camera rays and 1 for pixels.
//
// The number of iterations adapts to the best inlier ratio w found so far as
// log(1-confidence)/log(1-w^8), capped at cfg.MaxIterations. The winning model is refit on all of
// its inliers and the refit is kept only if it does not lose inliers.
//
// A configuration where no model can be fit is not an error: the result has Status FitDegenerate.
// Errors are only returned for invalid arguments.
func EstimateFundamentalMatrixRANSAC(pts1, pts2 []r2.Point, cfg *RANSACConfig, pixelScale float64) (*FundamentalFit, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.Errorf("point sets must have the same length, got %d and %d", len(pts1), len(pts2))
	}
	if err := cfg.Validate("ransac"); err != nil {
		return nil, err
	}
	if pixelScale <= 0 || math.IsNaN(pixelScale) || math.IsInf(pixelScale, 0) {
		return nil, errors.Errorf("pixel scale must be positive and finite, got %v", pixelScale)
	}
	n := len(pts1)
	if n < minFundamentalPoints {
		return degenerateFit(n, 0, "too few correspondences"), nil
	}
	if pointsAreCollinear(pts1) || pointsAreCollinear(pts2) {
		return degenerateFit(n, 0, "collinear correspondences"), nil
	}

	threshold := cfg.ThresholdPx / pixelScale
	maxDist := threshold * threshold
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))

	sample := make([]int, minFundamentalPoints)
	sample1 := make([]r2.Point, minFundamentalPoints)
	sample2 := make([]r2.Point, minFundamentalPoints)
	mask := make([]bool, n)
	bestMask := make([]bool, n)
	var bestF *mat.Dense
	bestCount := 0

	iterLimit := cfg.MaxIterations
	iterations := 0
	for ; iterations < iterLimit; iterations++ {
		vutils.SampleDistinctInts(sample, n, r)
		for i, idx := range sample {
			sample1[i] = pts1[idx]
			sample2[i] = pts2[idx]
		}
		F, err := ComputeFundamentalMatrixAllPoints(sample1, sample2, true)
		if err != nil {
			continue
		}
		count := scoreFundamental(F, pts1, pts2, maxDist, mask)
		if count > bestCount {
			bestCount = count
			bestF = F
			copy(bestMask, mask)
			needed := adaptiveIterations(cfg.Confidence, float64(count)/float64(n), minFundamentalPoints)
			if needed < iterLimit {
				iterLimit = needed
			}
		}
	}
	if bestCount == 0 {
		return degenerateFit(n, iterations, "no inliers"), nil
	}

	if bestCount >= minFundamentalPoints {
		in1 := make([]r2.Point, 0, bestCount)
		in2 := make([]r2.Point, 0, bestCount)
		for i, in := range bestMask {
			if in {
				in1 = append(in1, pts1[i])
				in2 = append(in2, pts2[i])
			}
		}
		if refit, err := ComputeFundamentalMatrixAllPoints(in1, in2, true); err == nil {
			if count := scoreFundamental(refit, pts1, pts2, maxDist, mask); count >= bestCount {
				bestCount = count
				bestF = refit
				copy(bestMask, mask)
			}
		}
	}

	return &FundamentalFit{
		F:          bestF,
		Inliers:    bestMask,
		NumInliers: bestCount,
		Iterations: iterations,
		Status:     FitOK,
	}, nil
}

// scoreFundamental writes the inlier flags of every correspondence into mask and returns the count.
func scoreFundamental(F *mat.Dense, pts1, pts2 []r2.Point, maxDist float64, mask []bool) int {
	count := 0
	for i := range pts1 {
		mask[i] = SampsonDistance(F, pts1[i], pts2[i]) <= maxDist
		if mask[i] {
			count++
		}
	}
	return count
}

// adaptiveIterations returns the number of samples of size sampleSize needed to draw at least
// one all-inlier sample with the given confidence when the inlier ratio is w.
func adaptiveIterations(confidence, w float64, sampleSize int) int {
	if w >= 1 {
		return 1
	}
	pAllInliers := math.Pow(w, float64(sampleSize))
	if pAllInliers <= 0 {
		return math.MaxInt32
	}
	denom := math.Log1p(-pAllInliers)
	if denom >= 0 {
		return math.MaxInt32
	}
	needed := math.Ceil(math.Log(1-confidence) / denom)
	if needed > math.MaxInt32 {
		return math.MaxInt32
	}
	if needed < 1 {
		return 1
	}
	return int(needed)
}
