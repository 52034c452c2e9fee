package transform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
)

func testIntrinsics() *PinholeCameraIntrinsics {
	return &PinholeCameraIntrinsics{
		Width:  640,
		Height: 480,
		Fx:     500,
		Fy:     510,
		Ppx:    320,
		Ppy:    240,
	}
}

func TestCameraModelRoundTrip(t *testing.T) {
	cam, err := NewCameraModelFromIntrinsics(testIntrinsics())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cam.MeanFocalLength(), test.ShouldAlmostEqual, 505)

	ray := cam.ToRay(r2.Point{X: 320, Y: 240})
	test.That(t, ray.X, test.ShouldAlmostEqual, 0)
	test.That(t, ray.Y, test.ShouldAlmostEqual, 0)

	ray = cam.ToRay(r2.Point{X: 820, Y: 750})
	test.That(t, ray.X, test.ShouldAlmostEqual, 1)
	test.That(t, ray.Y, test.ShouldAlmostEqual, 1)

	for _, p := range []r2.Point{{X: 0, Y: 0}, {X: 639, Y: 479}, {X: 12.5, Y: 400.25}, {X: 320, Y: 17}} {
		back := cam.ToPixel(cam.ToRay(p))
		test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-9)
		test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-9)
	}

	rays := cam.ToRays([]r2.Point{{X: 320, Y: 240}, {X: 820, Y: 240}})
	test.That(t, rays, test.ShouldHaveLength, 2)
	test.That(t, rays[1].X, test.ShouldAlmostEqual, 1)

	// the model owns a copy of K
	k := testIntrinsics().GetCameraMatrix()
	cam, err = NewCameraModel(k)
	test.That(t, err, test.ShouldBeNil)
	k.Set(0, 0, 1)
	test.That(t, cam.K.At(0, 0), test.ShouldEqual, 500.)
}

func TestCameraModelGeneralMatrix(t *testing.T) {
	// a skewed K with a non trivial last row still round trips through homogeneous coordinates
	k := mat.NewDense(3, 3, []float64{
		400, 3, 300,
		0, 420, 200,
		0.001, 0, 1,
	})
	cam, err := NewCameraModel(k)
	test.That(t, err, test.ShouldBeNil)
	p := r2.Point{X: 100, Y: 50}
	back := cam.ToPixel(cam.ToRay(p))
	test.That(t, back.X, test.ShouldAlmostEqual, p.X, 1e-6)
	test.That(t, back.Y, test.ShouldAlmostEqual, p.Y, 1e-6)
}

func TestCameraModelSingular(t *testing.T) {
	_, err := NewCameraModel(mat.NewDense(3, 3, nil))
	test.That(t, errors.Is(err, ErrSingularIntrinsics), test.ShouldBeTrue)

	_, err = NewCameraModel(mat.NewDense(3, 3, []float64{
		1, 2, 3,
		2, 4, 6,
		0, 0, 1,
	}))
	test.That(t, errors.Is(err, ErrSingularIntrinsics), test.ShouldBeTrue)

	_, err = NewCameraModel(mat.NewDense(2, 2, []float64{1, 0, 0, 1}))
	test.That(t, errors.Is(err, ErrSingularIntrinsics), test.ShouldBeTrue)

	_, err = NewCameraModel(nil)
	test.That(t, errors.Is(err, ErrSingularIntrinsics), test.ShouldBeTrue)

	_, err = NewCameraModelFromIntrinsics(&PinholeCameraIntrinsics{Width: 10, Height: 10})
	test.That(t, errors.Is(err, ErrNoIntrinsics), test.ShouldBeTrue)
}

func TestIdentityCameraModel(t *testing.T) {
	cam := NewIdentityCameraModel()
	p := r2.Point{X: 12, Y: 34}
	test.That(t, cam.ToRay(p), test.ShouldResemble, p)
	test.That(t, cam.ToPixel(p), test.ShouldResemble, p)
	test.That(t, cam.MeanFocalLength(), test.ShouldEqual, 1.)
}

func TestIntrinsicsFromJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intrinsics.json")
	err := os.WriteFile(path, []byte(`{"width_px": 640, "height_px": 480, "fx": 500, "fy": 510, "ppx": 320, "ppy": 240}`), 0o600)
	test.That(t, err, test.ShouldBeNil)
	intrinsics, err := NewPinholeCameraIntrinsicsFromJSONFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, intrinsics, test.ShouldResemble, testIntrinsics())
	test.That(t, intrinsics.CheckValid(), test.ShouldBeNil)

	half := intrinsics.Scale(0.5)
	test.That(t, half, test.ShouldResemble, &PinholeCameraIntrinsics{Width: 320, Height: 240, Fx: 250, Fy: 255, Ppx: 160, Ppy: 120})
	test.That(t, intrinsics.Fx, test.ShouldEqual, 500.)

	_, err = NewPinholeCameraIntrinsicsFromJSONFile(filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)

	var nilIntrinsics *PinholeCameraIntrinsics
	test.That(t, nilIntrinsics.CheckValid(), test.ShouldBeError)
	test.That(t, nilIntrinsics.GetCameraMatrix(), test.ShouldBeNil)
	test.That(t, nilIntrinsics.Scale(2), test.ShouldBeNil)
	test.That(t, (&PinholeCameraIntrinsics{Width: 1, Height: 1, Fx: 1, Fy: -1}).CheckValid(), test.ShouldNotBeNil)
}
