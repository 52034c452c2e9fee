package keypoints

import (
	"encoding/json"
	"image"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	uts "go.viam.com/utils"

	"go.viam.com/vofrontend/rimage"
	"go.viam.com/vofrontend/utils"
)

// SamplingType selects how BRIEF sample pairs are drawn in the patch.
type SamplingType int

const (
	// Uniform draws sample positions uniformly in the patch.
	Uniform SamplingType = iota // 0
	// Normal draws sample positions from a gaussian centered on the keypoint.
	Normal // 1
	// Fixed walks the patch with regular strides.
	Fixed // 2
)

const briefBlurRadius = 2

// SamplePairs are N pairs of points used to create the BRIEF Descriptors of a patch.
type SamplePairs struct {
	P0 []image.Point
	P1 []image.Point
	N  int
}

// radius returns the half size of the square holding every sample, or of the disc holding every
// rotation of the samples when rotated is set.
func (sp *SamplePairs) radius(rotated bool) int {
	r := 0.
	for _, pts := range [][]image.Point{sp.P0, sp.P1} {
		for _, p := range pts {
			x, y := math.Abs(float64(p.X)), math.Abs(float64(p.Y))
			if rotated {
				r = math.Max(r, math.Hypot(x, y))
			} else {
				r = math.Max(r, math.Max(x, y))
			}
		}
	}
	return int(math.Ceil(r))
}

// GenerateSamplePairs generates n samples for a patch size with the chosen Sampling Type. Random
// samplings use a source seeded from n and patchSize so that the pairs are reproducible.
func GenerateSamplePairs(dist SamplingType, n, patchSize int) *SamplePairs {
	var xs0, ys0, xs1, ys1 []int
	if dist == Fixed {
		xs0 = sampleIntegers(patchSize, n, dist, 1, nil)
		ys0 = sampleIntegers(patchSize, n, dist, 5, nil)
		xs1 = sampleIntegers(patchSize, n, dist, 7, nil)
		ys1 = make([]int, n)
		for i := 0; i < n; i++ {
			ys1[i] = -ys0[i]
			if i%2 == 0 {
				xs0[i] = 2 * xs0[i] / 3
				xs1[i] = -2 * xs1[i] / 3
				ys1[i] = ys0[i]
			}
		}
	} else {
		src := rand.NewPCG(uint64(n), uint64(patchSize))
		xs0 = sampleIntegers(patchSize, n, dist, 0, src)
		ys0 = sampleIntegers(patchSize, n, dist, 0, src)
		xs1 = sampleIntegers(patchSize, n, dist, 0, src)
		ys1 = sampleIntegers(patchSize, n, dist, 0, src)
	}
	p0 := make([]image.Point, 0, n)
	p1 := make([]image.Point, 0, n)
	for i := 0; i < n; i++ {
		p0 = append(p0, image.Point{X: xs0[i], Y: ys0[i]})
		p1 = append(p1, image.Point{X: xs1[i], Y: ys1[i]})
	}

	return &SamplePairs{P0: p0, P1: p1, N: n}
}

func sampleIntegers(patchSize, n int, sampling SamplingType, stride int, src rand.Source) []int {
	vMin := math.Round(-(float64(patchSize) - 2) / 2.)
	vMax := math.Round(float64(patchSize) / 2.)
	switch sampling {
	case Uniform:
		return utils.SampleNIntegersUniform(n, vMin, vMax, src)
	case Normal:
		return utils.SampleNIntegersNormal(n, vMin, vMax, src)
	case Fixed:
		return utils.SampleNRegularlySpaced(n, vMin, vMax, stride)
	default:
		return utils.SampleNIntegersUniform(n, vMin, vMax, src)
	}
}

// BRIEFConfig stores the parameters.
type BRIEFConfig struct {
	N              int          `json:"n"` // number of samples taken
	Sampling       SamplingType `json:"sampling"`
	UseOrientation bool         `json:"use_orientation"`
	PatchSize      int          `json:"patch_size"`
}

// NewDefaultBRIEFConfig returns a 256 bit steered BRIEF configuration.
func NewDefaultBRIEFConfig() *BRIEFConfig {
	return &BRIEFConfig{
		N:              256,
		Sampling:       Fixed,
		UseOrientation: true,
		PatchSize:      31,
	}
}

// LoadBRIEFConfiguration loads a BRIEFConfig from a json file.
func LoadBRIEFConfiguration(file string) (*BRIEFConfig, error) {
	var config BRIEFConfig
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer uts.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	if err := jsonParser.Decode(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(file); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the BRIEFConfig are valid.
func (config *BRIEFConfig) Validate(path string) error {
	if config.N <= 0 || config.N%64 != 0 {
		return uts.NewConfigValidationError(path, errors.New("n should be a positive multiple of 64"))
	}
	if config.Sampling < Uniform || config.Sampling > Fixed {
		return uts.NewConfigValidationError(path, errors.Errorf("unknown sampling type %d", config.Sampling))
	}
	if config.PatchSize < 3 {
		return uts.NewConfigValidationError(path, errors.New("patch_size should be >= 3"))
	}
	return nil
}

// BRIEFDescriber computes binary BRIEF descriptors compared with the Hamming distance.
type BRIEFDescriber struct {
	cfg    *BRIEFConfig
	pairs  *SamplePairs
	radius int
}

// NewBRIEFDescriber validates cfg and draws the sample pairs once, so that all frames described by
// the returned describer are comparable.
func NewBRIEFDescriber(cfg *BRIEFConfig) (*BRIEFDescriber, error) {
	if cfg == nil {
		return nil, uts.NewConfigValidationFieldRequiredError("", "brief")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	pairs := GenerateSamplePairs(cfg.Sampling, cfg.N, cfg.PatchSize)
	return &BRIEFDescriber{
		cfg:    cfg,
		pairs:  pairs,
		radius: pairs.radius(cfg.UseOrientation),
	}, nil
}

// Describe computes BRIEF descriptors on a blurred copy of img at keypoints kps. Keypoints whose
// sampling patch does not fit in the image are dropped.
func (bd *BRIEFDescriber) Describe(img *image.Gray, kps KeyPoints) (*DescriptorSet, error) {
	if err := CheckFrame(img); err != nil {
		return nil, err
	}
	blurred := rimage.GaussianBlurGray(img, briefBlurRadius)
	return bd.describeBlurred(blurred, kps, kps), nil
}

// describeBlurred samples the pre-blurred image at the positions of kps and stores the keypoints of
// out, which share the indexing of kps, in the result.
func (bd *BRIEFDescriber) describeBlurred(blurred *image.Gray, kps, out KeyPoints) *DescriptorSet {
	set := NewBinaryDescriptorSet(len(kps))
	size := blurred.Bounds().Size()
	sp := bd.pairs
	for k, kp := range kps {
		c := kp.ImagePoint()
		if c.X-bd.radius < 0 || c.Y-bd.radius < 0 || c.X+bd.radius >= size.X || c.Y+bd.radius >= size.Y {
			continue
		}
		cosTheta := 1.0
		sinTheta := 0.0
		if bd.cfg.UseOrientation {
			cosTheta = math.Cos(kp.Orientation)
			sinTheta = math.Sin(kp.Orientation)
		}
		// Divide by 64 since we store a descriptor as a uint64 array.
		descriptor := make([]uint64, sp.N/64)
		for i := 0; i < sp.N; i++ {
			x0, y0 := float64(sp.P0[i].X), float64(sp.P0[i].Y)
			x1, y1 := float64(sp.P1[i].X), float64(sp.P1[i].Y)
			// rotated sampled coordinates, identity without orientation
			outx0 := int(math.Round(cosTheta*x0 - sinTheta*y0))
			outy0 := int(math.Round(sinTheta*x0 + cosTheta*y0))
			outx1 := int(math.Round(cosTheta*x1 - sinTheta*y1))
			outy1 := int(math.Round(sinTheta*x1 + cosTheta*y1))
			p0Val := blurred.Pix[blurred.PixOffset(c.X+outx0, c.Y+outy0)]
			p1Val := blurred.Pix[blurred.PixOffset(c.X+outx1, c.Y+outy1)]
			if p0Val > p1Val {
				descriptor[i/64] |= 1 << (i % 64)
			}
		}
		set.Points = append(set.Points, out[k])
		set.Binary = append(set.Binary, descriptor)
	}
	return set
}
