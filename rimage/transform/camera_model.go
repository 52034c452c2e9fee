package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrSingularIntrinsics is returned when a camera matrix cannot be inverted.
var ErrSingularIntrinsics = errors.New("camera intrinsic matrix is singular")

// CameraModel holds a 3x3 intrinsic matrix and its inverse, and maps points between pixel
// coordinates and normalized camera ray coordinates.
type CameraModel struct {
	K    *mat.Dense
	KInv *mat.Dense
}

// NewCameraModel copies k and precomputes its inverse. It fails with ErrSingularIntrinsics when k
// is not an invertible 3x3 matrix.
func NewCameraModel(k mat.Matrix) (*CameraModel, error) {
	if k == nil {
		return nil, errors.Wrap(ErrSingularIntrinsics, "no matrix given")
	}
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, errors.Wrapf(ErrSingularIntrinsics, "expected a 3x3 matrix, got %dx%d", r, c)
	}
	kCopy := mat.DenseCopyOf(k)
	for _, v := range kCopy.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrap(ErrSingularIntrinsics, "matrix has non finite entries")
		}
	}
	var kInv mat.Dense
	// a mat.ConditionError means the inverse exists but is numerically meaningless
	if err := kInv.Inverse(kCopy); err != nil {
		return nil, errors.Wrap(ErrSingularIntrinsics, err.Error())
	}
	return &CameraModel{K: kCopy, KInv: &kInv}, nil
}

// NewCameraModelFromIntrinsics builds the camera model of a pinhole camera.
func NewCameraModelFromIntrinsics(params *PinholeCameraIntrinsics) (*CameraModel, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return NewCameraModel(params.GetCameraMatrix())
}

// NewIdentityCameraModel returns the camera model whose ray coordinates are the pixel coordinates.
func NewIdentityCameraModel() *CameraModel {
	return &CameraModel{K: eye(3), KInv: eye(3)}
}

// ToRay maps a pixel to normalized camera ray coordinates: dehomogenize(K^-1 * (x, y, 1)).
func (cm *CameraModel) ToRay(p r2.Point) r2.Point {
	return applyHomogeneous(cm.KInv, p)
}

// ToPixel maps normalized camera ray coordinates back to a pixel: dehomogenize(K * (x, y, 1)).
func (cm *CameraModel) ToPixel(p r2.Point) r2.Point {
	return applyHomogeneous(cm.K, p)
}

// ToRays maps every pixel of pts with ToRay.
func (cm *CameraModel) ToRays(pts []r2.Point) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		out[i] = cm.ToRay(p)
	}
	return out
}

// MeanFocalLength is the average of the two focal lengths of K, used to express pixel distances
// in ray units.
func (cm *CameraModel) MeanFocalLength() float64 {
	return (cm.K.At(0, 0) + cm.K.At(1, 1)) / 2
}

func applyHomogeneous(m *mat.Dense, p r2.Point) r2.Point {
	v := r3.Vector{
		X: m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2),
		Y: m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2),
		Z: m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2),
	}
	return r2.Point{X: v.X / v.Z, Y: v.Y / v.Z}
}
