package keypoints

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"github.com/lafin/fast"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/vofrontend/rimage"
)

// FASTConfig holds the parameters of the FAST detector.
type FASTConfig struct {
	NMatchesCircle int  `json:"n_matches"`    // contiguous circle pixels needed for a corner
	NMSWinSize     int  `json:"nms_win_size"` // 0 or 1 disables non-maximum suppression
	Threshold      int  `json:"threshold"`    // intensity contrast with the center pixel
	MaxFeatures    int  `json:"max_features"` // 0 keeps every corner
	Oriented       bool `json:"oriented"`
	Radius         int  `json:"radius"` // radius of the orientation patch
	HighSpeedTest  bool `json:"high_speed_test"`
}

// NewDefaultFASTConfig returns the FAST-9 configuration used by ORB.
func NewDefaultFASTConfig() *FASTConfig {
	return &FASTConfig{
		NMatchesCircle: 9,
		NMSWinSize:     7,
		Threshold:      20,
		MaxFeatures:    500,
		Oriented:       true,
		Radius:         15,
	}
}

// LoadFASTConfiguration loads a FASTConfig from a json file.
func LoadFASTConfiguration(file string) (*FASTConfig, error) {
	var config FASTConfig
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the FASTConfig are valid.
func (config *FASTConfig) Validate(path string) error {
	if config.NMatchesCircle < 1 || config.NMatchesCircle > len(CircleIdx) {
		return utils.NewConfigValidationError(path, errors.Errorf("n_matches should be in [1, %d]", len(CircleIdx)))
	}
	if config.NMSWinSize < 0 {
		return utils.NewConfigValidationError(path, errors.New("nms_win_size should be >= 0"))
	}
	if config.Threshold < 0 || config.Threshold > 255 {
		return utils.NewConfigValidationError(path, errors.New("threshold should be in [0, 255]"))
	}
	if config.MaxFeatures < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_features should be >= 0"))
	}
	if config.Oriented && config.Radius < 1 {
		return utils.NewConfigValidationError(path, errors.New("radius should be >= 1 for oriented keypoints"))
	}
	return nil
}

var (
	// CrossIdx is the compass subset of the FAST circle: right, bottom, left, top.
	CrossIdx = []image.Point{{3, 0}, {0, 3}, {-3, 0}, {0, -3}}
	// CircleIdx is the Bresenham circle of radius 3, clockwise from the top.
	CircleIdx = []image.Point{
		{0, -3}, {1, -3}, {2, -2}, {3, -1}, {3, 0}, {3, 1}, {2, 2}, {1, 3},
		{0, 3}, {-1, 3}, {-2, 2}, {-3, 1}, {-3, 0}, {-3, -1}, {-2, -2}, {-1, -3},
	}
	// compass positions inside CircleIdx.
	compassIdx = []int{0, 4, 8, 12}
)

const fastBorder = 3

// GetPointValuesInNeighborhood returns the pixel values at the given offsets around pt. Pixels
// outside the image are 0.
func GetPointValuesInNeighborhood(img *image.Gray, pt image.Point, neighborhood []image.Point) []float64 {
	vals := make([]float64, len(neighborhood))
	fillNeighborhoodValues(img, pt, neighborhood, vals)
	return vals
}

func fillNeighborhoodValues(img *image.Gray, pt image.Point, neighborhood []image.Point, vals []float64) {
	bnd := img.Bounds()
	for i, off := range neighborhood {
		p := pt.Add(off)
		if !p.In(bnd) {
			vals[i] = 0
			continue
		}
		vals[i] = float64(img.Pix[img.PixOffset(p.X, p.Y)])
	}
}

// isValidSliceVals returns true if s holds at least n contiguous non-zero values, wrapping around
// the end of the slice.
func isValidSliceVals(s []float64, n int) bool {
	if n > len(s) || len(s) == 0 {
		return false
	}
	run := 0
	for i := 0; i < len(s)+n-1; i++ {
		if s[i%len(s)] == 0 {
			run = 0
			continue
		}
		run++
		if run >= n {
			return true
		}
	}
	return false
}

// sumOfPositiveValuesSlice returns the sum of the positive values of s.
func sumOfPositiveValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v > 0 {
			sum += v
		}
	}
	return sum
}

// sumOfNegativeValuesSlice returns the sum of the negative values of s.
func sumOfNegativeValuesSlice(s []float64) float64 {
	sum := 0.
	for _, v := range s {
		if v < 0 {
			sum += v
		}
	}
	return sum
}

// getBrighterValues returns a mask with 1 where s is strictly greater than t.
func getBrighterValues(s []float64, t float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v > t {
			out[i] = 1
		}
	}
	return out
}

// getDarkerValues returns a mask with 1 where s is strictly lower than t.
func getDarkerValues(s []float64, t float64) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		if v < t {
			out[i] = 1
		}
	}
	return out
}

// FASTDetector finds FAST corners: pixels with at least NMatchesCircle contiguous circle pixels all
// brighter or all darker than the center by more than Threshold.
type FASTDetector struct {
	cfg *FASTConfig
}

// NewFASTDetector returns a FAST detector after validating cfg.
func NewFASTDetector(cfg *FASTConfig) (*FASTDetector, error) {
	if cfg == nil {
		return nil, utils.NewConfigValidationFieldRequiredError("", "fast")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &FASTDetector{cfg: cfg}, nil
}

// Detect returns the FAST corners of img sorted by decreasing score.
func (d *FASTDetector) Detect(img *image.Gray) (KeyPoints, error) {
	if err := CheckFrame(img); err != nil {
		return nil, err
	}
	if img.Bounds().Min != (image.Point{}) {
		img = rimage.MakeGray(img)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= 2*fastBorder || h <= 2*fastBorder {
		return KeyPoints{}, nil
	}

	scores := make([]float64, w*h)
	corners := make([]image.Point, 0, 256)
	vals := make([]float64, len(CircleIdx))
	segmentTest := func(x, y int) {
		if x < fastBorder || y < fastBorder || x >= w-fastBorder || y >= h-fastBorder {
			return
		}
		if scores[y*w+x] > 0 {
			return
		}
		center := float64(img.Pix[img.PixOffset(x, y)])
		fillNeighborhoodValues(img, image.Point{x, y}, CircleIdx, vals)
		if score, ok := d.cornerScore(vals, center); ok {
			scores[y*w+x] = score
			corners = append(corners, image.Point{x, y})
		}
	}
	if d.cfg.HighSpeedTest {
		candidates := fast.FindCorners(rimage.GrayToInts(img), w, h, d.cfg.Threshold)
		for i := 0; i+1 < len(candidates); i += 2 {
			segmentTest(candidates[i], candidates[i+1])
		}
	} else {
		for y := fastBorder; y < h-fastBorder; y++ {
			for x := fastBorder; x < w-fastBorder; x++ {
				segmentTest(x, y)
			}
		}
	}

	kps := make(KeyPoints, 0, len(corners))
	for _, c := range corners {
		if d.cfg.NMSWinSize > 1 && !isLocalMaximum(scores, w, h, c, d.cfg.NMSWinSize/2) {
			continue
		}
		kps = append(kps, KeyPoint{X: float64(c.X), Y: float64(c.Y), Response: scores[c.Y*w+c.X]})
	}
	sortKeyPoints(kps)
	if d.cfg.MaxFeatures > 0 && len(kps) > d.cfg.MaxFeatures {
		kps = kps[:d.cfg.MaxFeatures]
	}
	if d.cfg.Oriented {
		computeKeypointsOrientations(img, kps, d.cfg.Radius)
	}
	return kps, nil
}

// cornerScore runs the segment test on the circle values. The score of a corner is the summed
// contrast in excess of the threshold over the brighter or darker arc, whichever is larger.
func (d *FASTDetector) cornerScore(vals []float64, center float64) (float64, bool) {
	t := float64(d.cfg.Threshold)
	n := d.cfg.NMatchesCircle
	// an arc of n pixels always covers at least n/4 compass points.
	nBright, nDark := 0, 0
	for _, i := range compassIdx {
		if vals[i] > center+t {
			nBright++
		} else if vals[i] < center-t {
			nDark++
		}
	}
	minCompass := n / 4
	if nBright < minCompass && nDark < minCompass {
		return 0, false
	}
	isBright := nBright >= minCompass && isValidSliceVals(getBrighterValues(vals, center+t), n)
	isDark := nDark >= minCompass && isValidSliceVals(getDarkerValues(vals, center-t), n)
	if !isBright && !isDark {
		return 0, false
	}
	diff := make([]float64, len(vals))
	score := 0.
	if isBright {
		copy(diff, vals)
		floats.AddConst(-(center + t), diff)
		score = sumOfPositiveValuesSlice(diff)
	}
	if isDark {
		copy(diff, vals)
		floats.AddConst(-(center - t), diff)
		if s := -sumOfNegativeValuesSlice(diff); s > score {
			score = s
		}
	}
	return score, true
}

// isLocalMaximum checks that no corner in the window around c has a larger score. Ties go to the
// corner that comes first in row-major order.
func isLocalMaximum(scores []float64, w, h int, c image.Point, half int) bool {
	idx := c.Y*w + c.X
	score := scores[idx]
	for y := max(c.Y-half, 0); y <= min(c.Y+half, h-1); y++ {
		for x := max(c.X-half, 0); x <= min(c.X+half, w-1); x++ {
			nIdx := y*w + x
			if nIdx == idx {
				continue
			}
			s := scores[nIdx]
			if s > score || (s == score && nIdx < idx) {
				return false
			}
		}
	}
	return true
}
