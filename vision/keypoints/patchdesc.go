package keypoints

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/vofrontend/rimage"
)

// PatchConfig holds the parameters of the patch descriptor.
type PatchConfig struct {
	PatchSize      int  `json:"patch_size"` // side of the sampled square, in pixels
	GridSize       int  `json:"grid_size"`  // samples per side
	UseOrientation bool `json:"use_orientation"`
}

// NewDefaultPatchConfig returns an 8x8 samples patch descriptor over 16 pixels.
func NewDefaultPatchConfig() *PatchConfig {
	return &PatchConfig{
		PatchSize: 16,
		GridSize:  8,
	}
}

// Validate ensures all parts of the PatchConfig are valid.
func (config *PatchConfig) Validate(path string) error {
	if config.PatchSize < 2 {
		return utils.NewConfigValidationError(path, errors.New("patch_size should be >= 2"))
	}
	if config.GridSize < 2 {
		return utils.NewConfigValidationError(path, errors.New("grid_size should be >= 2"))
	}
	return nil
}

// PatchDescriber describes a keypoint by the smoothed intensities of a grid of samples around it,
// shifted to zero mean and scaled to unit norm so that it is invariant to affine lighting changes.
// Descriptors are compared with the Euclidean distance.
type PatchDescriber struct {
	cfg     *PatchConfig
	offsets []float64 // sample offsets along one axis
	radius  int
}

// NewPatchDescriber returns a patch describer after validating cfg.
func NewPatchDescriber(cfg *PatchConfig) (*PatchDescriber, error) {
	if cfg == nil {
		return nil, utils.NewConfigValidationFieldRequiredError("", "patch")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	half := float64(cfg.PatchSize) / 2
	offsets := make([]float64, cfg.GridSize)
	floats.Span(offsets, -half, half)
	r := half
	if cfg.UseOrientation {
		r *= math.Sqrt2
	}
	return &PatchDescriber{
		cfg:     cfg,
		offsets: offsets,
		// one more pixel for bilinear interpolation
		radius: int(math.Ceil(r)) + 1,
	}, nil
}

// Describe computes the patch descriptors of kps on a smoothed copy of img. Keypoints whose patch
// does not fit in the image are dropped.
func (pd *PatchDescriber) Describe(img *image.Gray, kps KeyPoints) (*DescriptorSet, error) {
	if err := CheckFrame(img); err != nil {
		return nil, err
	}
	set := NewFloatDescriptorSet(len(kps))
	if size := img.Bounds().Size(); size.X <= 2*pd.radius || size.Y <= 2*pd.radius {
		return set, nil
	}
	smoothed, err := rimage.SmoothGray5(rimage.MakeGray(img))
	if err != nil {
		return nil, err
	}
	size := smoothed.Bounds().Size()
	for _, kp := range kps {
		if kp.X-float64(pd.radius) < 0 || kp.Y-float64(pd.radius) < 0 ||
			kp.X+float64(pd.radius) >= float64(size.X) || kp.Y+float64(pd.radius) >= float64(size.Y) {
			continue
		}
		set.Points = append(set.Points, kp)
		set.Float = append(set.Float, pd.describeOne(smoothed, kp))
	}
	return set, nil
}

func (pd *PatchDescriber) describeOne(img *image.Gray, kp KeyPoint) []float64 {
	cosTheta, sinTheta := 1.0, 0.0
	if pd.cfg.UseOrientation {
		cosTheta, sinTheta = math.Cos(kp.Orientation), math.Sin(kp.Orientation)
	}
	desc := make([]float64, 0, len(pd.offsets)*len(pd.offsets))
	for _, v := range pd.offsets {
		for _, u := range pd.offsets {
			x := kp.X + cosTheta*u - sinTheta*v
			y := kp.Y + sinTheta*u + cosTheta*v
			desc = append(desc, bilinearGray(img, x, y))
		}
	}
	floats.AddConst(-floats.Sum(desc)/float64(len(desc)), desc)
	// flat patches keep a zero descriptor
	if norm := floats.Norm(desc, 2); norm > 1e-9 {
		floats.Scale(1/norm, desc)
	}
	return desc
}

// bilinearGray interpolates img at (x, y). The caller guarantees that the 4 neighbors are inside.
func bilinearGray(img *image.Gray, x, y float64) float64 {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := x-float64(x0), y-float64(y0)
	p00 := float64(img.Pix[img.PixOffset(x0, y0)])
	p10 := float64(img.Pix[img.PixOffset(x0+1, y0)])
	p01 := float64(img.Pix[img.PixOffset(x0, y0+1)])
	p11 := float64(img.Pix[img.PixOffset(x0+1, y0+1)])
	top := p00*(1-fx) + p10*fx
	bottom := p01*(1-fx) + p11*fx
	return top*(1-fy) + bottom*fy
}
