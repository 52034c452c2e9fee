package odometry

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/vofrontend/rimage/transform"
)

// minMotionCorrespondences is the number of correspondences the eight point algorithm needs.
const minMotionCorrespondences = 8

// ErrNotEnoughCorrespondences is returned when too few correspondences are given to estimate motion.
var ErrNotEnoughCorrespondences = errors.New("not enough correspondences to estimate motion")

// Motion3D contains the estimated 3D rotation and translation from 2 frames. Points move from the
// previous camera frame to the current one as X' = Rotation * X + Translation. The translation has
// unit norm since a single camera cannot observe scale.
type Motion3D struct {
	Rotation    *mat.Dense
	Translation *mat.Dense
	// InFront is the number of correspondences triangulated in front of both cameras.
	InFront int
}

// NewMotion3DFromRotationTranslation returns a new pointer to Motion3D from a rotation and a translation matrix.
func NewMotion3DFromRotationTranslation(rotation, translation *mat.Dense) *Motion3D {
	return &Motion3D{
		Rotation:    rotation,
		Translation: translation,
	}
}

// TranslationVector returns the translation as an r3.Vector.
func (m *Motion3D) TranslationVector() r3.Vector {
	return r3.Vector{X: m.Translation.At(0, 0), Y: m.Translation.At(1, 0), Z: m.Translation.At(2, 0)}
}

// EstimateMotion estimates the camera motion between the previous and the current frame of corrs.
// cam maps the correspondence points to rays: it is the extractor camera for pixel
// correspondences and the identity camera for normalized ones.
func EstimateMotion(corrs []Correspondence, cam *transform.CameraModel) (*Motion3D, error) {
	if len(corrs) < minMotionCorrespondences {
		return nil, errors.Wrapf(ErrNotEnoughCorrespondences, "got %d, need %d", len(corrs), minMotionCorrespondences)
	}
	if cam == nil {
		cam = transform.NewIdentityCameraModel()
	}
	pose, nFront, err := transform.EstimateNewPose(PreviousPoints(corrs), CurrentPoints(corrs), cam)
	if err != nil {
		return nil, errors.Wrap(err, "cannot estimate motion")
	}
	var unit mat.Dense
	if norm := mat.Norm(pose.Translation, 2); norm > 0 {
		unit.Scale(1/norm, pose.Translation)
	} else {
		unit.CloneFrom(pose.Translation)
	}
	motion := NewMotion3DFromRotationTranslation(pose.Rotation, &unit)
	motion.InFront = nFront
	return motion, nil
}
