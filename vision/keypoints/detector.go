package keypoints

import (
	"image"

	"github.com/pkg/errors"
)

// ErrInvalidFrame is returned when a frame cannot be processed, e.g. it is nil or empty.
var ErrInvalidFrame = errors.New("invalid frame")

// Detector finds interest points in a gray image. Implementations are deterministic: the same
// pixels always give the same keypoints in the same order.
type Detector interface {
	Detect(img *image.Gray) (KeyPoints, error)
}

// Describer computes one descriptor per keypoint. Keypoints that cannot be described are dropped
// with their descriptor, so the returned set may be shorter than kps but keeps their order.
type Describer interface {
	Describe(img *image.Gray, kps KeyPoints) (*DescriptorSet, error)
}

// FeatureComputer detects and describes the features of a frame in a single call.
type FeatureComputer interface {
	Compute(img *image.Gray) (*DescriptorSet, error)
}

// DetectDescribe chains a Detector and a Describer.
type DetectDescribe struct {
	Detector  Detector
	Describer Describer
}

// NewDetectDescribe returns a FeatureComputer running det then desc.
func NewDetectDescribe(det Detector, desc Describer) *DetectDescribe {
	return &DetectDescribe{Detector: det, Describer: desc}
}

// Compute detects keypoints in img and describes them.
func (dd *DetectDescribe) Compute(img *image.Gray) (*DescriptorSet, error) {
	kps, err := dd.Detector.Detect(img)
	if err != nil {
		return nil, errors.Wrap(err, "keypoint detection failed")
	}
	set, err := dd.Describer.Describe(img, kps)
	if err != nil {
		return nil, errors.Wrap(err, "descriptor computation failed")
	}
	return set, nil
}

// CheckFrame rejects frames no detector or describer can work on. The errors wrap ErrInvalidFrame.
func CheckFrame(img *image.Gray) error {
	if img == nil {
		return errors.Wrap(ErrInvalidFrame, "nil image")
	}
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return errors.Wrapf(ErrInvalidFrame, "empty image of size %v", size)
	}
	if len(img.Pix) < (size.Y-1)*img.Stride+size.X {
		return errors.Wrapf(ErrInvalidFrame, "pixel buffer too small for image of size %v", size)
	}
	return nil
}
