package keypoints

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vofrontend/rimage"
)

// CornerConfig holds the parameters of the corner-strength detector.
type CornerConfig struct {
	MaxCorners   int     `json:"max_corners"`   // 0 keeps every corner
	QualityLevel float64 `json:"quality_level"` // fraction of the strongest response
	MinDistance  float64 `json:"min_distance"`  // pixels between accepted corners
	BlockSize    int     `json:"block_size"`    // odd size of the structure tensor window
	UseHarris    bool    `json:"use_harris"`
	HarrisK      float64 `json:"harris_k"`
}

// NewDefaultCornerConfig returns a Shi-Tomasi configuration.
func NewDefaultCornerConfig() *CornerConfig {
	return &CornerConfig{
		MaxCorners:   500,
		QualityLevel: 0.01,
		MinDistance:  10,
		BlockSize:    3,
		HarrisK:      0.04,
	}
}

// Validate ensures all parts of the CornerConfig are valid.
func (config *CornerConfig) Validate(path string) error {
	if config.MaxCorners < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_corners should be >= 0"))
	}
	if config.QualityLevel <= 0 || config.QualityLevel > 1 {
		return utils.NewConfigValidationError(path, errors.New("quality_level should be in (0, 1]"))
	}
	if config.MinDistance < 0 {
		return utils.NewConfigValidationError(path, errors.New("min_distance should be >= 0"))
	}
	if config.BlockSize < 1 || config.BlockSize%2 == 0 {
		return utils.NewConfigValidationError(path, errors.New("block_size should be a positive odd number"))
	}
	if config.UseHarris && config.HarrisK <= 0 {
		return utils.NewConfigValidationError(path, errors.New("harris_k should be > 0"))
	}
	return nil
}

// CornerDetector returns the strongest corners of an image according to the minimum eigenvalue of
// the structure tensor (Shi-Tomasi) or the Harris response.
type CornerDetector struct {
	cfg *CornerConfig
}

// NewCornerDetector returns a corner-strength detector after validating cfg.
func NewCornerDetector(cfg *CornerConfig) (*CornerDetector, error) {
	if cfg == nil {
		return nil, utils.NewConfigValidationFieldRequiredError("", "corners")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	return &CornerDetector{cfg: cfg}, nil
}

// Detect returns at most MaxCorners corners whose response is above QualityLevel times the
// strongest response, at least MinDistance apart, strongest first.
func (d *CornerDetector) Detect(img *image.Gray) (KeyPoints, error) {
	if err := CheckFrame(img); err != nil {
		return nil, err
	}
	size := img.Bounds().Size()
	if size.X < d.cfg.BlockSize || size.Y < d.cfg.BlockSize || size.X < 3 || size.Y < 3 {
		return KeyPoints{}, nil
	}
	response, err := d.cornerResponse(img)
	if err != nil {
		return nil, err
	}
	h, w := response.Dims()
	maxResponse := mat.Max(response)
	if maxResponse <= 0 {
		return KeyPoints{}, nil
	}
	threshold := d.cfg.QualityLevel * maxResponse

	candidates := make(KeyPoints, 0, 256)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := response.At(y, x)
			if r <= threshold || !isResponseMaximum(response, x, y) {
				continue
			}
			candidates = append(candidates, KeyPoint{X: float64(x), Y: float64(y), Response: r})
		}
	}
	sortKeyPoints(candidates)
	return d.enforceMinDistance(candidates, w, h), nil
}

// cornerResponse computes the per pixel corner strength.
func (d *CornerDetector) cornerResponse(img *image.Gray) (*mat.Dense, error) {
	gx, gy, err := rimage.SobelGradients(img)
	if err != nil {
		return nil, err
	}
	h, w := gx.Dims()
	var ixx, ixy, iyy mat.Dense
	ixx.MulElem(gx, gx)
	ixy.MulElem(gx, gy)
	iyy.MulElem(gy, gy)

	box := rimage.GetBox(d.cfg.BlockSize)
	sxx, err := rimage.ConvolveGrayFloat64(&ixx, &box, rimage.BorderReflect)
	if err != nil {
		return nil, err
	}
	sxy, err := rimage.ConvolveGrayFloat64(&ixy, &box, rimage.BorderReflect)
	if err != nil {
		return nil, err
	}
	syy, err := rimage.ConvolveGrayFloat64(&iyy, &box, rimage.BorderReflect)
	if err != nil {
		return nil, err
	}

	response := mat.NewDense(h, w, nil)
	cfg := d.cfg
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a, b, c := sxx.At(y, x), sxy.At(y, x), syy.At(y, x)
			var r float64
			if cfg.UseHarris {
				det := a*c - b*b
				trace := a + c
				r = det - cfg.HarrisK*trace*trace
			} else {
				// smallest eigenvalue of [[a b] [b c]]
				half := (a - c) / 2
				r = (a+c)/2 - math.Sqrt(half*half+b*b)
			}
			response.Set(y, x, r)
		}
	}
	return response, nil
}

// isResponseMaximum checks that the response at (x, y) is not smaller than any of its 8 neighbors.
func isResponseMaximum(response *mat.Dense, x, y int) bool {
	h, w := response.Dims()
	r := response.At(y, x)
	for ny := max(y-1, 0); ny <= min(y+1, h-1); ny++ {
		for nx := max(x-1, 0); nx <= min(x+1, w-1); nx++ {
			if response.At(ny, nx) > r {
				return false
			}
		}
	}
	return true
}

// enforceMinDistance greedily accepts sorted candidates that are at least MinDistance away from all
// previously accepted corners, using a grid of MinDistance sized cells.
func (d *CornerDetector) enforceMinDistance(candidates KeyPoints, w, h int) KeyPoints {
	maxCorners := d.cfg.MaxCorners
	if maxCorners == 0 || maxCorners > len(candidates) {
		maxCorners = len(candidates)
	}
	minDist := d.cfg.MinDistance
	if minDist < 1 {
		return candidates[:maxCorners]
	}
	cellSize := int(math.Ceil(minDist))
	gridW := (w + cellSize - 1) / cellSize
	gridH := (h + cellSize - 1) / cellSize
	grid := make([][]KeyPoint, gridW*gridH)
	minDistSq := minDist * minDist

	accepted := make(KeyPoints, 0, maxCorners)
	for _, kp := range candidates {
		if len(accepted) == maxCorners {
			break
		}
		cx, cy := int(kp.X)/cellSize, int(kp.Y)/cellSize
		good := true
		for gy := max(cy-1, 0); gy <= min(cy+1, gridH-1) && good; gy++ {
			for gx := max(cx-1, 0); gx <= min(cx+1, gridW-1) && good; gx++ {
				for _, other := range grid[gy*gridW+gx] {
					dx, dy := other.X-kp.X, other.Y-kp.Y
					if dx*dx+dy*dy < minDistSq {
						good = false
						break
					}
				}
			}
		}
		if !good {
			continue
		}
		grid[cy*gridW+cx] = append(grid[cy*gridW+cx], kp)
		accepted = append(accepted, kp)
	}
	return accepted
}
