package keypoints

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/vofrontend/rimage"
)

// ORBConfig contains the parameters / configs needed to compute ORB features.
type ORBConfig struct {
	Layers          int          `json:"n_layers"`
	DownscaleFactor float64      `json:"downscale_factor"`
	FastConf        *FASTConfig  `json:"fast"`
	BRIEFConf       *BRIEFConfig `json:"brief"`
}

// NewDefaultORBConfig returns a 4 layer ORB configuration with steered BRIEF.
func NewDefaultORBConfig() *ORBConfig {
	return &ORBConfig{
		Layers:          4,
		DownscaleFactor: 2,
		FastConf:        NewDefaultFASTConfig(),
		BRIEFConf:       NewDefaultBRIEFConfig(),
	}
}

// LoadORBConfiguration loads a ORBConfig from a json file.
func LoadORBConfiguration(file string) (*ORBConfig, error) {
	var config ORBConfig
	filePath := filepath.Clean(file)
	configFile, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	err = jsonParser.Decode(&config)
	if err != nil {
		return nil, err
	}
	err = config.Validate(file)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate ensures all parts of the ORBConfig are valid.
func (config *ORBConfig) Validate(path string) error {
	if config.Layers < 1 {
		return utils.NewConfigValidationError(path, errors.New("n_layers should be >= 1"))
	}
	if config.DownscaleFactor <= 1 {
		return utils.NewConfigValidationError(path, errors.New("downscale_factor should be greater than 1"))
	}
	if config.FastConf == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "fast")
	}
	if err := config.FastConf.Validate(path + ".fast"); err != nil {
		return err
	}
	if config.BRIEFConf == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "brief")
	}
	return config.BRIEFConf.Validate(path + ".brief")
}

// ORB detects FAST keypoints on every layer of an image pyramid and describes them with BRIEF on
// the layer they were found in. Keypoints are returned in the coordinates of the original image,
// with their Octave set to the layer index.
type ORB struct {
	cfg      *ORBConfig
	detector *FASTDetector
	brief    *BRIEFDescriber
}

// NewORB returns an ORB feature computer after validating cfg.
func NewORB(cfg *ORBConfig) (*ORB, error) {
	if cfg == nil {
		return nil, utils.NewConfigValidationFieldRequiredError("", "orb")
	}
	if err := cfg.Validate(""); err != nil {
		return nil, err
	}
	detector, err := NewFASTDetector(cfg.FastConf)
	if err != nil {
		return nil, err
	}
	brief, err := NewBRIEFDescriber(cfg.BRIEFConf)
	if err != nil {
		return nil, err
	}
	return &ORB{cfg: cfg, detector: detector, brief: brief}, nil
}

// Detect returns the keypoints of every pyramid layer, rescaled to the original image.
func (o *ORB) Detect(img *image.Gray) (KeyPoints, error) {
	pyramid, err := o.pyramid(img)
	if err != nil {
		return nil, err
	}
	kps := make(KeyPoints, 0)
	for i, layer := range pyramid.Images {
		layerKps, err := o.detector.Detect(layer)
		if err != nil {
			return nil, err
		}
		for j := range layerKps {
			layerKps[j].Octave = i
		}
		kps = append(kps, RescaleKeypoints(layerKps, pyramid.Scales[i])...)
	}
	return kps, nil
}

// Compute detects and describes the ORB features of img.
func (o *ORB) Compute(img *image.Gray) (*DescriptorSet, error) {
	pyramid, err := o.pyramid(img)
	if err != nil {
		return nil, errors.Wrap(err, "keypoint detection failed")
	}
	set := NewBinaryDescriptorSet(0)
	for i, layer := range pyramid.Images {
		layerKps, err := o.detector.Detect(layer)
		if err != nil {
			return nil, errors.Wrap(err, "keypoint detection failed")
		}
		for j := range layerKps {
			layerKps[j].Octave = i
		}
		rescaled := RescaleKeypoints(layerKps, pyramid.Scales[i])
		blurred := rimage.GaussianBlurGray(layer, briefBlurRadius)
		if err := set.Append(o.brief.describeBlurred(blurred, layerKps, rescaled)); err != nil {
			return nil, errors.Wrap(err, "descriptor computation failed")
		}
	}
	return set, nil
}

func (o *ORB) pyramid(img *image.Gray) (*rimage.ImagePyramid, error) {
	if err := CheckFrame(img); err != nil {
		return nil, err
	}
	if img.Bounds().Min != (image.Point{}) {
		img = rimage.MakeGray(img)
	}
	// smaller layers cannot hold a single BRIEF patch
	minSize := 2*o.brief.radius + 1
	return rimage.GetImagePyramid(img, o.cfg.Layers, o.cfg.DownscaleFactor, minSize)
}
