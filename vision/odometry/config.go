// Package odometry implements the frame to frame frontend of a monocular visual odometry
// pipeline: every frame is detected, described and matched against the previous one, and the
// matches that survive a ratio test and a robust epipolar fit are returned as correspondences.
package odometry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vofrontend/rimage/transform"
	"go.viam.com/vofrontend/vision/keypoints"
)

// Supported detectors.
const (
	DetectorFAST    = "fast"
	DetectorCorners = "corners"
	DetectorORB     = "orb"
)

// Supported descriptors. ORB always describes its keypoints with its own BRIEF configuration.
const (
	DescriptorBRIEF = "brief"
	DescriptorPatch = "patch"
)

// FrontendConfig contains the parameters needed to extract correspondences between consecutive
// video frames.
type FrontendConfig struct {
	Detector   string                    `json:"detector"`
	Descriptor string                    `json:"descriptor"`
	FASTConf   *keypoints.FASTConfig     `json:"fast,omitempty"`
	CornerConf *keypoints.CornerConfig   `json:"corners,omitempty"`
	ORBConf    *keypoints.ORBConfig      `json:"orb,omitempty"`
	BRIEFConf  *keypoints.BRIEFConfig    `json:"brief,omitempty"`
	PatchConf  *keypoints.PatchConfig    `json:"patch,omitempty"`
	Matching   *keypoints.MatchingConfig `json:"matching"`
	RANSAC     *transform.RANSACConfig   `json:"ransac"`
	// CamIntrinsics and CameraMatrix are exclusive and optional; without either, pixels are used
	// as rays. CameraMatrix is a row major 3x3 intrinsic matrix and may have skew.
	CamIntrinsics *transform.PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
	CameraMatrix  [][]float64                        `json:"camera_matrix,omitempty"`
	// NormalizedOutput returns correspondences in ray coordinates instead of pixels.
	NormalizedOutput bool `json:"normalized_output"`

	// Sub-configurations stored in their own json files, relative to the frontend file. They
	// replace the inline configuration of the same part.
	FASTFile       string `json:"fast_file,omitempty"`
	ORBFile        string `json:"orb_file,omitempty"`
	BRIEFFile      string `json:"brief_file,omitempty"`
	RANSACFile     string `json:"ransac_file,omitempty"`
	IntrinsicsFile string `json:"intrinsics_file,omitempty"`
}

// NewDefaultFrontendConfig returns an ORB frontend (FAST keypoints on a 4 layer pyramid described
// by steered BRIEF) with a 0.7 ratio test and a 1 pixel RANSAC threshold. The configurations of
// the other detectors and descriptors are filled with their defaults so that switching only
// requires changing Detector or Descriptor.
func NewDefaultFrontendConfig() *FrontendConfig {
	return &FrontendConfig{
		Detector:   DetectorORB,
		Descriptor: DescriptorBRIEF,
		FASTConf:   keypoints.NewDefaultFASTConfig(),
		CornerConf: keypoints.NewDefaultCornerConfig(),
		ORBConf:    keypoints.NewDefaultORBConfig(),
		BRIEFConf:  keypoints.NewDefaultBRIEFConfig(),
		PatchConf:  keypoints.NewDefaultPatchConfig(),
		Matching:   keypoints.NewDefaultMatchingConfig(),
		RANSAC:     transform.NewDefaultRANSACConfig(),
	}
}

// LoadFrontendConfig loads a frontend configuration from a json file. Fields absent from the file
// keep the values of NewDefaultFrontendConfig.
func LoadFrontendConfig(path string) (*FrontendConfig, error) {
	config := NewDefaultFrontendConfig()
	//nolint:gosec
	configFile, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(configFile.Close)
	jsonParser := json.NewDecoder(configFile)
	jsonParser.DisallowUnknownFields()
	if err := jsonParser.Decode(config); err != nil {
		return nil, errors.Wrapf(err, "cannot decode frontend config %q", path)
	}
	if err := config.loadFiles(filepath.Dir(path)); err != nil {
		return nil, errors.Wrapf(err, "cannot load frontend config %q", path)
	}
	if err := config.Validate(path); err != nil {
		return nil, err
	}
	return config, nil
}

// loadFiles replaces the sub-configurations that name a file by the content of that file.
func (config *FrontendConfig) loadFiles(dir string) error {
	resolve := func(file string) string {
		if filepath.IsAbs(file) {
			return file
		}
		return filepath.Join(dir, file)
	}
	var err error
	if config.FASTFile != "" {
		if config.FASTConf, err = keypoints.LoadFASTConfiguration(resolve(config.FASTFile)); err != nil {
			return err
		}
	}
	if config.ORBFile != "" {
		if config.ORBConf, err = keypoints.LoadORBConfiguration(resolve(config.ORBFile)); err != nil {
			return err
		}
	}
	if config.BRIEFFile != "" {
		if config.BRIEFConf, err = keypoints.LoadBRIEFConfiguration(resolve(config.BRIEFFile)); err != nil {
			return err
		}
	}
	if config.RANSACFile != "" {
		if config.RANSAC, err = transform.LoadRANSACConfiguration(resolve(config.RANSACFile)); err != nil {
			return err
		}
	}
	if config.IntrinsicsFile != "" {
		if config.CamIntrinsics, err = transform.NewPinholeCameraIntrinsicsFromJSONFile(resolve(config.IntrinsicsFile)); err != nil {
			return err
		}
	}
	return nil
}

// Validate ensures the selected detector and descriptor are known and configured, and that the
// matching and RANSAC parameters are valid.
func (config *FrontendConfig) Validate(path string) error {
	switch config.Detector {
	case DetectorFAST:
		if config.FASTConf == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "fast")
		}
		if err := config.FASTConf.Validate(path + ".fast"); err != nil {
			return err
		}
	case DetectorCorners:
		if config.CornerConf == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "corners")
		}
		if err := config.CornerConf.Validate(path + ".corners"); err != nil {
			return err
		}
	case DetectorORB:
		if config.ORBConf == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "orb")
		}
		if err := config.ORBConf.Validate(path + ".orb"); err != nil {
			return err
		}
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "detector")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown detector %q", config.Detector))
	}

	switch {
	case config.Detector == DetectorORB:
		if config.Descriptor != "" && config.Descriptor != DescriptorBRIEF {
			return utils.NewConfigValidationError(path,
				errors.Errorf("the orb detector only supports the %q descriptor, got %q", DescriptorBRIEF, config.Descriptor))
		}
	case config.Descriptor == DescriptorBRIEF:
		if config.BRIEFConf == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "brief")
		}
		if err := config.BRIEFConf.Validate(path + ".brief"); err != nil {
			return err
		}
	case config.Descriptor == DescriptorPatch:
		if config.PatchConf == nil {
			return utils.NewConfigValidationFieldRequiredError(path, "patch")
		}
		if err := config.PatchConf.Validate(path + ".patch"); err != nil {
			return err
		}
	case config.Descriptor == "":
		return utils.NewConfigValidationFieldRequiredError(path, "descriptor")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown descriptor %q", config.Descriptor))
	}

	if config.Matching == nil {
		return utils.NewConfigValidationFieldRequiredError(path, "matching")
	}
	if err := config.Matching.Validate(path + ".matching"); err != nil {
		return err
	}
	if err := config.RANSAC.Validate(path + ".ransac"); err != nil {
		return err
	}
	if config.CamIntrinsics != nil {
		if config.CameraMatrix != nil {
			return utils.NewConfigValidationError(path,
				errors.New("intrinsic_parameters and camera_matrix cannot both be set"))
		}
		if err := config.CamIntrinsics.CheckValid(); err != nil {
			return utils.NewConfigValidationError(path+".intrinsic_parameters", err)
		}
	}
	if config.CameraMatrix != nil {
		if len(config.CameraMatrix) != 3 {
			return utils.NewConfigValidationError(path+".camera_matrix",
				errors.Errorf("expected 3 rows, got %d", len(config.CameraMatrix)))
		}
		for i, row := range config.CameraMatrix {
			if len(row) != 3 {
				return utils.NewConfigValidationError(path+".camera_matrix",
					errors.Errorf("expected 3 columns in row %d, got %d", i, len(row)))
			}
		}
	}
	return nil
}

// ScaleCamera adapts the camera of the configuration to frames resized by factor.
func (config *FrontendConfig) ScaleCamera(factor float64) {
	config.CamIntrinsics = config.CamIntrinsics.Scale(factor)
	if config.CameraMatrix == nil {
		return
	}
	scaled := make([][]float64, len(config.CameraMatrix))
	for i, row := range config.CameraMatrix {
		scaled[i] = append([]float64(nil), row...)
		if i < 2 {
			for j := range scaled[i] {
				scaled[i][j] *= factor
			}
		}
	}
	config.CameraMatrix = scaled
}

// newFeatureComputer builds the detector and descriptor selected by the configuration.
func (config *FrontendConfig) newFeatureComputer() (keypoints.FeatureComputer, error) {
	if config.Detector == DetectorORB {
		orb, err := keypoints.NewORB(config.ORBConf)
		if err != nil {
			return nil, err
		}
		return orb, nil
	}

	var det keypoints.Detector
	var err error
	switch config.Detector {
	case DetectorFAST:
		det, err = keypoints.NewFASTDetector(config.FASTConf)
	case DetectorCorners:
		det, err = keypoints.NewCornerDetector(config.CornerConf)
	default:
		err = errors.Errorf("unknown detector %q", config.Detector)
	}
	if err != nil {
		return nil, err
	}

	var desc keypoints.Describer
	switch config.Descriptor {
	case DescriptorBRIEF:
		desc, err = keypoints.NewBRIEFDescriber(config.BRIEFConf)
	case DescriptorPatch:
		desc, err = keypoints.NewPatchDescriber(config.PatchConf)
	default:
		err = errors.Errorf("unknown descriptor %q", config.Descriptor)
	}
	if err != nil {
		return nil, err
	}
	return keypoints.NewDetectDescribe(det, desc), nil
}

// newCameraModel returns the camera of the configured matrix or intrinsics, or the identity camera.
func (config *FrontendConfig) newCameraModel() (*transform.CameraModel, error) {
	switch {
	case config.CameraMatrix != nil:
		data := make([]float64, 0, 9)
		for _, row := range config.CameraMatrix {
			data = append(data, row...)
		}
		if len(data) != 9 {
			return nil, errors.Wrapf(transform.ErrSingularIntrinsics, "expected 9 camera matrix entries, got %d", len(data))
		}
		return transform.NewCameraModel(mat.NewDense(3, 3, data))
	case config.CamIntrinsics != nil:
		return transform.NewCameraModelFromIntrinsics(config.CamIntrinsics)
	default:
		return transform.NewIdentityCameraModel(), nil
	}
}
