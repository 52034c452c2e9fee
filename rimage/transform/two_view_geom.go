package transform

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// minFundamentalPoints is the number of correspondences the linear eight point algorithm needs.
const minFundamentalPoints = 8

// GetEssentialMatrixFromFundamental returns the essential matrix from the fundamental matrix and intrinsics parameters.
func GetEssentialMatrixFromFundamental(k1, k2, f *mat.Dense) (*mat.Dense, error) {
	var essMat, tmp mat.Dense
	tmp.Mul(transposeDense(k2), f)
	essMat.Mul(&tmp, k1)
	// enforce two equal singular values and a zero one
	mats := performSVD(&essMat)
	if mats == nil {
		return nil, errors.New("failed to factorize essential matrix")
	}
	S := eye(3)
	S.Set(2, 2, 0)

	essMat.Mul(mats.U, S)
	essMat.Mul(&essMat, mats.VT)
	return &essMat, nil
}

// DecomposeEssentialMatrix decomposes the Essential matrix into 2 possible 3D rotations and a 3D translation.
func DecomposeEssentialMatrix(essMat *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense, error) {
	// svd
	mats := performSVD(essMat)
	if mats == nil {
		return nil, nil, nil, errors.New("failed to factorize essential matrix")
	}
	// check determinant sign of U and V
	if mat.Det(mats.U) < 0 {
		mats.U.Scale(-1, mats.U)
	}
	if mat.Det(mats.VT) < 0 {
		mats.VT.Scale(-1, mats.VT)
	}
	// create matrix W
	W := mat.NewDense(3, 3, nil)
	W.Set(0, 1, -1)
	W.Set(1, 0, 1)
	W.Set(2, 2, 1)
	// compute possible poses
	var R1, R2 mat.Dense
	// UWV^T
	R1.Mul(mats.U, W)
	R1.Mul(&R1, mats.VT)
	U3 := mats.U.ColView(2)
	t := mat.NewDense(3, 1, []float64{U3.AtVec(0), U3.AtVec(1), U3.AtVec(2)})
	// UW^TV^T
	R2.Mul(mats.U, transposeDense(W))
	R2.Mul(&R2, mats.VT)
	return &R1, &R2, t, nil
}

// Convert2DPointsToHomogeneousPoints converts float64 image coordinates to homogeneous float64 coordinates.
func Convert2DPointsToHomogeneousPoints(pts []r2.Point) []r3.Vector {
	ptsHomogeneous := make([]r3.Vector, len(pts))
	for i, pt := range pts {
		ptsHomogeneous[i] = r3.Vector{
			X: pt.X,
			Y: pt.Y,
			Z: 1,
		}
	}
	return ptsHomogeneous
}

// ComputeFundamentalMatrixAllPoints computes the fundamental matrix F such that x2^T F x1 = 0 from all
// points with the linear eight point algorithm. F has rank 2, unit Frobenius norm, and its largest
// magnitude entry is positive.
func ComputeFundamentalMatrixAllPoints(pts1, pts2 []r2.Point, normalize bool) (*mat.Dense, error) {
	if len(pts1) != len(pts2) {
		return nil, errors.New("sets of points pts1 and pts2 must have the same number of elements")
	}
	if len(pts1) < minFundamentalPoints {
		return nil, errors.Errorf("sets of points must have at least %d elements", minFundamentalPoints)
	}
	nPoints := len(pts1)

	var points1, points2 []r2.Point
	var T1, T2 *mat.Dense

	// if normalize, normalize points and get transform
	if normalize {
		var err error
		if points1, T1, err = normalizePoints(pts1); err != nil {
			return nil, err
		}
		if points2, T2, err = normalizePoints(pts2); err != nil {
			return nil, err
		}
	} else {
		points1 = pts1
		points2 = pts2
		T1 = eye(3)
		T2 = eye(3)
	}

	// pad to 9 rows so that the full V always holds a null space vector in its last column
	nRows := nPoints
	if nRows < 9 {
		nRows = 9
	}
	m := mat.NewDense(nRows, 9, nil)
	for i := range points1 {
		v1 := points1[i]
		v2 := points2[i]
		row := []float64{
			v2.X * v1.X, v2.X * v1.Y, v2.X,
			v2.Y * v1.X, v2.Y * v1.Y, v2.Y,
			v1.X, v1.Y, 1,
		}
		m.SetRow(i, row)
	}

	// perform SVD on m
	mats1 := performSVD(m)
	if mats1 == nil {
		return nil, errors.New("failed to factorize the epipolar constraint matrix")
	}
	lastColV := mats1.V.ColView(8)

	// reshape into F
	lastColVdata := make([]float64, 9)
	for i := range lastColVdata {
		lastColVdata[i] = lastColV.AtVec(i)
	}
	F := mat.NewDense(3, 3, lastColVdata)

	// enforce rank 2 of F
	mats2 := performSVD(F)
	if mats2 == nil {
		return nil, errors.New("failed to factorize the fundamental matrix")
	}
	S := mats2.S
	S.Set(2, 2, 0)

	// get refined F: U@S@V2^T
	Fhat := mat.NewDense(3, 3, nil)
	Fhat.Mul(mats2.U, S)
	F.Mul(Fhat, mats2.VT)
	// rescale F: T2^T @ F @ T1
	F.Mul(transposeDense(T2), F)
	F.Mul(F, T1)

	if err := normalizeFundamental(F); err != nil {
		return nil, err
	}
	return F, nil
}

// normalizeFundamental scales F to unit Frobenius norm with a positive largest entry. F(2,2) is
// not used as the scale since it vanishes for pure translations.
func normalizeFundamental(F *mat.Dense) error {
	norm := mat.Norm(F, 2)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return errors.New("fundamental matrix is zero or not finite")
	}
	largest := 0.
	for _, v := range F.RawMatrix().Data {
		if math.Abs(v) > math.Abs(largest) {
			largest = v
		}
	}
	if largest < 0 {
		norm = -norm
	}
	F.Scale(1/norm, F)
	return nil
}

// SampsonDistance returns the first order approximation of the squared geometric distance of the
// correspondence (p1, p2) to the epipolar geometry F. A correspondence lying on the epipole of
// either view has no defined distance and is reported as +Inf.
func SampsonDistance(F mat.Matrix, p1, p2 r2.Point) float64 {
	// F x1
	fx1 := r3.Vector{
		X: F.At(0, 0)*p1.X + F.At(0, 1)*p1.Y + F.At(0, 2),
		Y: F.At(1, 0)*p1.X + F.At(1, 1)*p1.Y + F.At(1, 2),
		Z: F.At(2, 0)*p1.X + F.At(2, 1)*p1.Y + F.At(2, 2),
	}
	// F^T x2
	ftx2 := r3.Vector{
		X: F.At(0, 0)*p2.X + F.At(1, 0)*p2.Y + F.At(2, 0),
		Y: F.At(0, 1)*p2.X + F.At(1, 1)*p2.Y + F.At(2, 1),
		Z: F.At(0, 2)*p2.X + F.At(1, 2)*p2.Y + F.At(2, 2),
	}
	epipolar := r3.Vector{X: p2.X, Y: p2.Y, Z: 1}.Dot(fx1)
	denom := fx1.X*fx1.X + fx1.Y*fx1.Y + ftx2.X*ftx2.X + ftx2.Y*ftx2.Y
	if denom == 0 {
		return math.Inf(1)
	}
	return epipolar * epipolar / denom
}

// pointsAreCollinear reports whether all points lie (numerically) on a single line, including the
// case where they are all the same point.
func pointsAreCollinear(pts []r2.Point) bool {
	if len(pts) < 3 {
		return true
	}
	mu := r2.Point{}
	for _, pt := range pts {
		mu = mu.Add(pt)
	}
	mu = mu.Mul(1. / float64(len(pts)))
	centered := mat.NewDense(len(pts), 2, nil)
	for i, pt := range pts {
		d := pt.Sub(mu)
		centered.Set(i, 0, d.X)
		centered.Set(i, 1, d.Y)
	}
	var svd mat.SVD
	if !svd.Factorize(centered, mat.SVDNone) {
		return true
	}
	values := svd.Values(nil)
	const relTol = 1e-9
	return values[0] == 0 || values[1] <= relTol*values[0]
}

// helpers
// normalizePoints normalizes points as described in Multiple View Geometry, Alg 11.1.
func normalizePoints(pts []r2.Point) ([]r2.Point, *mat.Dense, error) {
	nPoints := len(pts)
	// computer centroid of points
	mu := r2.Point{X: 0, Y: 0}

	for _, pt := range pts {
		mu.X += pt.X
		mu.Y += pt.Y
	}
	mu = mu.Mul(1. / float64(nPoints))
	// compute scale factor
	d := 0.0
	for _, pt := range pts {
		d += pt.Sub(mu).Norm() / float64(nPoints)
	}
	if d == 0 {
		return nil, nil, errors.New("cannot normalize coincident points")
	}
	scale := math.Sqrt(2) / d
	transformData := []float64{
		scale, 0, -scale * mu.X,
		0, scale, -scale * mu.Y,
		0, 0, 1,
	}
	T := mat.NewDense(3, 3, transformData)
	// apply transform to points
	pointsTransformed := make([]r2.Point, nPoints)
	for i := range pointsTransformed {
		pointsTransformed[i] = r2.Point{X: scale * (pts[i].X - mu.X), Y: scale * (pts[i].Y - mu.Y)}
	}
	return pointsTransformed, T, nil
}

// mat.Dense utils.
func transposeDense(m *mat.Dense) *mat.Dense {
	nRows, nCols := m.Dims()
	m2 := mat.NewDense(nCols, nRows, nil)
	m2.Copy(m.T())
	return m2
}

// eye create an identity matrix of size nxn.
func eye(n int) *mat.Dense {
	if n <= 0 {
		return nil
	}
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// matsSVD stores the matrices from SVD decomposition.
type matsSVD struct {
	U  *mat.Dense
	V  *mat.Dense
	VT *mat.Dense
	S  *mat.Dense
}

// performSVD performs SVD on inputMatrix and returns matrices U, Sigma and V from the decomposition.
// It returns nil when the factorization fails.
func performSVD(inputMatrix *mat.Dense) *matsSVD {
	var svd mat.SVD
	ok := svd.Factorize(inputMatrix, mat.SVDFull)
	if !ok {
		return nil
	}

	u, v, sigma, vt := &mat.Dense{}, &mat.Dense{}, &mat.Dense{}, &mat.Dense{}

	svd.UTo(u)
	svd.VTo(v)
	vt.CloneFrom(v.T())

	singularValues := svd.Values(nil)
	// firstly create diag matrix. Next fill new sigma matrix with zeros
	sigma.CloneFrom(mat.NewDiagDense(len(singularValues), singularValues))

	return &matsSVD{u, v, vt, sigma}
}
