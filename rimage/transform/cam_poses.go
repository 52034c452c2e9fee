package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CamPose stores the 3x4 pose matrix as well as the 3D Rotation and Translation matrices. The pose
// maps points from the first camera frame to the second one: X2 = R X1 + t. The translation is
// only known up to scale.
type CamPose struct {
	PoseMat     *mat.Dense
	Rotation    *mat.Dense
	Translation *mat.Dense
}

// NewCamPoseFromMat creates a pointer to a Camera pose from a 3x4 pose dense matrix.
func NewCamPoseFromMat(pose *mat.Dense) *CamPose {
	U3 := pose.ColView(3)
	t := mat.NewDense(3, 1, []float64{U3.AtVec(0), U3.AtVec(1), U3.AtVec(2)})
	rot := mat.DenseCopyOf(pose.Slice(0, 3, 0, 3))
	return &CamPose{
		PoseMat:     pose,
		Rotation:    rot,
		Translation: t,
	}
}

// TranslationVector returns the translation as an r3.Vector.
func (cp *CamPose) TranslationVector() r3.Vector {
	return r3.Vector{X: cp.Translation.At(0, 0), Y: cp.Translation.At(1, 0), Z: cp.Translation.At(2, 0)}
}

// RotationAngle returns the angle in radians of the rotation, in [0, pi].
func (cp *CamPose) RotationAngle() float64 {
	c := (mat.Trace(cp.Rotation) - 1) / 2
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// adjustPoseSign adjusts the sign of a pose so that its rotation has a positive determinant.
func adjustPoseSign(pose *mat.Dense) *mat.Dense {
	// take 3x3 sub-matrix
	subPose := pose.Slice(0, 3, 0, 3)

	// if determinant is negative, scale by -1
	if m := mat.DenseCopyOf(subPose); mat.Det(m) < 0 {
		pose.Scale(-1, pose)
	}
	return pose
}

// GetPossibleCameraPoses computes all 4 possible poses from the essential matrix.
func GetPossibleCameraPoses(essMat *mat.Dense) ([]*mat.Dense, error) {
	R1, R2, t, err := DecomposeEssentialMatrix(essMat)
	if err != nil {
		return nil, err
	}
	// poses
	var tOpp mat.Dense
	tOpp.Scale(-1, t)
	poses := make([]mat.Dense, 4)
	poses[0].Augment(R1, t)
	poses[1].Augment(R1, &tOpp)
	poses[2].Augment(R2, t)
	poses[3].Augment(R2, &tOpp)
	// adjust sign of poses
	posesOut := make([]*mat.Dense, 4)
	for i := range poses {
		posesOut[i] = mat.DenseCopyOf(adjustPoseSign(&poses[i]))
	}

	return posesOut, nil
}

// getCrossProductMatFromPoint returns the cross product with point p matrix.
func getCrossProductMatFromPoint(p r3.Vector) *mat.Dense {
	cross := mat.NewDense(3, 3, nil)
	cross.Set(0, 1, -p.Z)
	cross.Set(0, 2, p.Y)
	cross.Set(1, 0, p.Z)
	cross.Set(1, 2, -p.X)
	cross.Set(2, 0, -p.Y)
	cross.Set(2, 1, p.X)
	return cross
}

// GetLinearTriangulatedPoints computes triangulated 3D points with linear method. pts1 and pts2
// are homogeneous normalized camera rays. Points that triangulate at infinity are returned with
// NaN coordinates.
func GetLinearTriangulatedPoints(pose *mat.Dense, pts1, pts2 []r3.Vector) ([]r3.Vector, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("the 2 sets of points don't have the same number of elements")
	}
	// set identity pose for pts1
	P := mat.NewDense(3, 4, nil)
	P.Set(0, 0, 1)
	P.Set(1, 1, 1)
	P.Set(2, 2, 1)
	// copy pose for pts2
	Pdash := mat.DenseCopyOf(pose)
	// initialize 3D points
	nPoints := len(pts1)
	pts3d := make([]r3.Vector, nPoints)
	for i := range pts1 {
		p1CrossP := mat.NewDense(3, 4, nil)
		p1CrossP.Mul(getCrossProductMatFromPoint(pts1[i]), P)
		p2CrossPdash := mat.NewDense(3, 4, nil)
		p2CrossPdash.Mul(getCrossProductMatFromPoint(pts2[i]), Pdash)
		var A mat.Dense
		A.Stack(p1CrossP, p2CrossPdash)
		// svd
		var svd mat.SVD
		ok := svd.Factorize(&A, mat.SVDFull)
		if !ok {
			return nil, errors.New("failed to factorize A")
		}
		// Determine the rank of the A matrix with a near zero condition threshold.
		const rcond = 1e-15
		if svd.Rank(rcond) == 0 {
			return nil, errors.New("zero rank system")
		}
		var V mat.Dense
		svd.VTo(&V)
		// the solution is the right singular vector of the smallest singular value
		pt3d := V.ColView(3)
		w := pt3d.AtVec(3)
		if math.Abs(w) < 1e-12 {
			pts3d[i] = r3.Vector{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
			continue
		}
		pts3d[i] = r3.Vector{
			X: pt3d.AtVec(0) / w,
			Y: pt3d.AtVec(1) / w,
			Z: pt3d.AtVec(2) / w,
		}
	}

	return pts3d, nil
}

// GetNumberPositiveDepth computes the number of triangulated points that lie in front of both
// cameras.
func GetNumberPositiveDepth(pose *mat.Dense, pts1, pts2 []r3.Vector) int {
	pts3D, err := GetLinearTriangulatedPoints(pose, pts1, pts2)
	if err != nil {
		return 0
	}
	rot3 := r3.Vector{X: pose.At(2, 0), Y: pose.At(2, 1), Z: pose.At(2, 2)}
	tz := pose.At(2, 3)

	nPositiveDepth := 0
	for _, pt := range pts3D {
		if math.IsNaN(pt.Z) {
			continue
		}
		if pt.Z > 0 && rot3.Dot(pt)+tz > 0 {
			nPositiveDepth++
		}
	}
	return nPositiveDepth
}

// GetCorrectCameraPose returns the best pose, which is the pose with the most positive depth
// values, along with that number.
func GetCorrectCameraPose(poses []*mat.Dense, pts1, pts2 []r3.Vector) (*mat.Dense, int) {
	maxNumPosDepth := -1
	correctPose := poses[0]
	for _, pose := range poses {
		nPosDepth := GetNumberPositiveDepth(pose, pts1, pts2)
		if nPosDepth > maxNumPosDepth {
			maxNumPosDepth = nPosDepth
			correctPose = pose
		}
	}
	return mat.DenseCopyOf(correctPose), maxNumPosDepth
}

// EstimatePoseFromEssential selects among the four decompositions of the essential matrix the pose
// that puts the most of the correspondences in front of both cameras. rays1 and rays2 are
// normalized camera coordinates. It also returns the number of such points.
func EstimatePoseFromEssential(essMat *mat.Dense, rays1, rays2 []r2.Point) (*CamPose, int, error) {
	if len(rays1) != len(rays2) {
		return nil, 0, errors.New("the 2 sets of points don't have the same number of elements")
	}
	if len(rays1) == 0 {
		return nil, 0, errors.New("no points to check cheirality with")
	}
	poses, err := GetPossibleCameraPoses(essMat)
	if err != nil {
		return nil, 0, err
	}
	pose, nFront := GetCorrectCameraPose(poses,
		Convert2DPointsToHomogeneousPoints(rays1),
		Convert2DPointsToHomogeneousPoints(rays2))
	return NewCamPoseFromMat(pose), nFront, nil
}

// EstimateNewPose estimates the pose of the camera of pts2 wrt the camera of pts1, where pts1 and
// pts2 are pixel matches seen by cam. The fundamental matrix is fit on the rays of the matches, so
// it is directly the essential matrix. It also returns the number of matches in front of both
// cameras.
func EstimateNewPose(pts1, pts2 []r2.Point, cam *CameraModel) (*CamPose, int, error) {
	if len(pts1) != len(pts2) {
		return nil, 0, errors.New("the 2 sets of points don't have the same number of elements")
	}
	rays1, rays2 := cam.ToRays(pts1), cam.ToRays(pts2)
	fundamentalMatrix, err := ComputeFundamentalMatrixAllPoints(rays1, rays2, true)
	if err != nil {
		return nil, 0, errors.Wrap(err, "cannot fit fundamental matrix")
	}
	essentialMatrix, err := GetEssentialMatrixFromFundamental(eye(3), eye(3), fundamentalMatrix)
	if err != nil {
		return nil, 0, err
	}
	return EstimatePoseFromEssential(essentialMatrix, rays1, rays2)
}
