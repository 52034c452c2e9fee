package odometry

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/vofrontend/logging"
	"go.viam.com/vofrontend/rimage/transform"
	"go.viam.com/vofrontend/vision/keypoints"
)

// createBlocksImage fills an image with 4x4 blocks of random intensity.
func createBlocksImage(w, h int, seed uint64) *image.Gray {
	r := rand.New(rand.NewPCG(seed, seed))
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 4 {
		for x := 0; x < w; x += 4 {
			c := color.Gray{uint8(r.IntN(256))}
			draw.Draw(img, image.Rect(x, y, x+4, y+4), &image.Uniform{c}, image.Point{}, draw.Src)
		}
	}
	return img
}

// shiftImage returns img translated by d, with a black background.
func shiftImage(img *image.Gray, d image.Point) *image.Gray {
	out := image.NewGray(img.Bounds())
	draw.Draw(out, img.Bounds().Add(d), img, image.Point{}, draw.Src)
	return out
}

// fakeComputer returns prepared descriptor sets, one per call, whatever the frame.
type fakeComputer struct {
	sets  []*keypoints.DescriptorSet
	errs  []error
	clock *clock.Mock
	calls int
}

func (fc *fakeComputer) Compute(img *image.Gray) (*keypoints.DescriptorSet, error) {
	i := fc.calls
	fc.calls++
	if fc.clock != nil {
		fc.clock.Add(25 * time.Millisecond)
	}
	if i < len(fc.errs) && fc.errs[i] != nil {
		return nil, fc.errs[i]
	}
	return fc.sets[i], nil
}

// fakeMatcher returns the same candidates for every frame.
type fakeMatcher struct {
	candidates [][]keypoints.DescriptorMatch
	err        error
}

func (fm *fakeMatcher) KnnMatch(query, train *keypoints.DescriptorSet, k int) ([][]keypoints.DescriptorMatch, error) {
	return fm.candidates, fm.err
}

// randomDescriptors returns n distinct random 256 bit descriptors.
func randomDescriptors(n int, seed uint64) [][]uint64 {
	r := rand.New(rand.NewPCG(seed, seed))
	descs := make([][]uint64, n)
	for i := range descs {
		descs[i] = []uint64{r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64()}
	}
	return descs
}

func descriptorSet(pts []r2.Point, descs [][]uint64) *keypoints.DescriptorSet {
	set := keypoints.NewBinaryDescriptorSet(len(pts))
	for i, p := range pts {
		set.Points = append(set.Points, keypoints.KeyPoint{X: p.X, Y: p.Y})
		set.Binary = append(set.Binary, descs[i])
	}
	return set
}

func testIntrinsics() *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{Width: 640, Height: 480, Fx: 500, Fy: 510, Ppx: 320, Ppy: 240}
}

func rotationY(angle float64) [9]float64 {
	c, s := math.Cos(angle), math.Sin(angle)
	return [9]float64{c, 0, s, 0, 1, 0, -s, 0, c}
}

// twoViewScene projects random points seen by a camera moving by (R, t) into both views.
type twoViewScene struct {
	pix1, pix2 []r2.Point
	rays2      []r2.Point
}

func newTwoViewScene(n int, angle float64, t r3.Vector, cam *transform.CameraModel, seed uint64) *twoViewScene {
	r := rand.New(rand.NewPCG(seed, seed+1))
	rot := rotationY(angle)
	scene := &twoViewScene{}
	for i := 0; i < n; i++ {
		p := r3.Vector{X: -2 + 4*r.Float64(), Y: -1.5 + 3*r.Float64(), Z: 4 + 4*r.Float64()}
		q := r3.Vector{
			X: rot[0]*p.X + rot[1]*p.Y + rot[2]*p.Z + t.X,
			Y: rot[3]*p.X + rot[4]*p.Y + rot[5]*p.Z + t.Y,
			Z: rot[6]*p.X + rot[7]*p.Y + rot[8]*p.Z + t.Z,
		}
		ray2 := r2.Point{X: q.X / q.Z, Y: q.Y / q.Z}
		scene.pix1 = append(scene.pix1, cam.ToPixel(r2.Point{X: p.X / p.Z, Y: p.Y / p.Z}))
		scene.pix2 = append(scene.pix2, cam.ToPixel(ray2))
		scene.rays2 = append(scene.rays2, ray2)
	}
	return scene
}

func TestNewExtractor(t *testing.T) {
	logger := logging.NewTestLogger(t)
	e, err := NewExtractor(NewDefaultFrontendConfig(), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.State(), test.ShouldEqual, StateEmpty)
	test.That(t, e.State().String(), test.ShouldEqual, "empty")
	test.That(t, e.HasPreviousFrame(), test.ShouldBeFalse)
	test.That(t, e.LastFrame(), test.ShouldBeNil)
	test.That(t, e.Camera().MeanFocalLength(), test.ShouldEqual, 1.)

	_, err = NewExtractor(nil, logger)
	test.That(t, err, test.ShouldNotBeNil)

	cfg := NewDefaultFrontendConfig()
	cfg.Detector = "sift"
	_, err = NewExtractor(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sift")

	cfg = NewDefaultFrontendConfig()
	cfg.CamIntrinsics = testIntrinsics()
	e, err = NewExtractor(cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Camera().MeanFocalLength(), test.ShouldEqual, 505.)

	cfg = NewDefaultFrontendConfig()
	cfg.CameraMatrix = [][]float64{{500, 2, 320}, {0, 510, 240}, {0, 0, 1}}
	e, err = NewExtractor(cfg, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.Camera().K.At(0, 1), test.ShouldEqual, 2.)

	cfg.CameraMatrix = [][]float64{{1, 2, 3}, {2, 4, 6}, {0, 0, 1}}
	_, err = NewExtractor(cfg, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, transform.ErrSingularIntrinsics), test.ShouldBeTrue)
}

func TestExtractFirstFrame(t *testing.T) {
	e, err := NewExtractor(NewDefaultFrontendConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	corrs, err := e.Extract(createBlocksImage(320, 240, 1))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldNotBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
	test.That(t, e.State(), test.ShouldEqual, StateTracking)
	test.That(t, e.HasPreviousFrame(), test.ShouldBeTrue)

	stats := e.LastStats()
	test.That(t, stats.Frame, test.ShouldEqual, 0)
	test.That(t, stats.Matched, test.ShouldBeFalse)
	test.That(t, stats.Keypoints, test.ShouldBeGreaterThan, 0)
	test.That(t, e.LastFrame().Len(), test.ShouldEqual, stats.Keypoints)

	// the snapshot is a copy
	snapshot := e.LastFrame()
	snapshot.Points[0].X = -100
	test.That(t, e.LastFrame().Points[0].X, test.ShouldNotEqual, -100)

	// querying does not change the state
	test.That(t, e.HasPreviousFrame(), test.ShouldBeTrue)
	test.That(t, e.State(), test.ShouldEqual, StateTracking)
}

func TestExtractIdenticalFrames(t *testing.T) {
	for _, tc := range []struct {
		detector   string
		descriptor string
	}{
		{DetectorORB, DescriptorBRIEF},
		{DetectorFAST, DescriptorBRIEF},
		{DetectorFAST, DescriptorPatch},
		{DetectorCorners, DescriptorBRIEF},
		{DetectorCorners, DescriptorPatch},
	} {
		t.Run(tc.detector+"_"+tc.descriptor, func(t *testing.T) {
			cfg := NewDefaultFrontendConfig()
			cfg.Detector = tc.detector
			cfg.Descriptor = tc.descriptor
			e, err := NewExtractor(cfg, logging.NewTestLogger(t))
			test.That(t, err, test.ShouldBeNil)

			img := createBlocksImage(320, 240, 2)
			_, err = e.Extract(img)
			test.That(t, err, test.ShouldBeNil)
			corrs, err := e.Extract(img)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, len(corrs), test.ShouldBeGreaterThanOrEqualTo, 8)
			for _, c := range corrs {
				test.That(t, c.Current.X, test.ShouldAlmostEqual, c.Previous.X)
				test.That(t, c.Current.Y, test.ShouldAlmostEqual, c.Previous.Y)
				test.That(t, c.CurrentIdx, test.ShouldEqual, c.PreviousIdx)
			}

			stats := e.LastStats()
			test.That(t, stats.Frame, test.ShouldEqual, 1)
			test.That(t, stats.Matched, test.ShouldBeTrue)
			test.That(t, stats.Status, test.ShouldEqual, transform.FitOK)
			test.That(t, stats.Inliers, test.ShouldEqual, len(corrs))
			test.That(t, stats.RatioSurvivors, test.ShouldBeGreaterThanOrEqualTo, stats.Inliers)
			test.That(t, stats.Candidates, test.ShouldEqual, stats.Keypoints)
			test.That(t, stats.MedianDisplacement, test.ShouldAlmostEqual, 0)
		})
	}
}

func TestExtractTranslatedFrame(t *testing.T) {
	cfg := NewDefaultFrontendConfig()
	cfg.Detector = DetectorFAST
	cfg.Descriptor = DescriptorBRIEF
	e, err := NewExtractor(cfg, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	img := createBlocksImage(320, 240, 3)
	shift := image.Point{5, 3}
	_, err = e.Extract(img)
	test.That(t, err, test.ShouldBeNil)
	corrs, err := e.Extract(shiftImage(img, shift))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(corrs), test.ShouldBeGreaterThanOrEqualTo, 20)

	exact := 0
	for _, c := range corrs {
		d := c.Displacement()
		if math.Abs(d.X-float64(shift.X)) < 0.5 && math.Abs(d.Y-float64(shift.Y)) < 0.5 {
			exact++
		}
	}
	test.That(t, float64(exact), test.ShouldBeGreaterThanOrEqualTo, 0.8*float64(len(corrs)))
	test.That(t, e.LastStats().MedianDisplacement, test.ShouldAlmostEqual, math.Hypot(5, 3), 1e-9)
}

func TestExtractSyntheticMotion(t *testing.T) {
	cfg := NewDefaultFrontendConfig()
	cfg.CamIntrinsics = testIntrinsics()
	cam, err := transform.NewCameraModelFromIntrinsics(cfg.CamIntrinsics)
	test.That(t, err, test.ShouldBeNil)

	const n = 60
	tTrue := r3.Vector{X: 0.4, Y: -0.05, Z: 0.1}
	scene := newTwoViewScene(n, 0.05, tTrue, cam, 4)
	descs := randomDescriptors(n, 5)

	// every 6th point of the previous frame is moved to a random pixel: its descriptor still
	// matches but its geometry does not
	r := rand.New(rand.NewPCG(6, 6))
	prevPts := make([]r2.Point, n)
	isOutlier := make([]bool, n)
	for i := range prevPts {
		prevPts[i] = scene.pix1[i]
		if i%6 == 0 {
			prevPts[i] = r2.Point{X: 640 * r.Float64(), Y: 480 * r.Float64()}
			isOutlier[i] = true
		}
	}
	// the current frame lists the points in reverse order
	curPts := make([]r2.Point, n)
	curDescs := make([][]uint64, n)
	for i := range curPts {
		curPts[i] = scene.pix2[n-1-i]
		curDescs[i] = descs[n-1-i]
	}
	fc := &fakeComputer{sets: []*keypoints.DescriptorSet{
		descriptorSet(prevPts, descs),
		descriptorSet(curPts, curDescs),
	}}

	e, err := NewExtractor(cfg, logging.NewTestLogger(t), WithFeatureComputer(fc))
	test.That(t, err, test.ShouldBeNil)
	frame := image.NewGray(image.Rect(0, 0, 640, 480))
	corrs, err := e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
	corrs, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)

	acceptedOutliers := 0
	for _, c := range corrs {
		id := n - 1 - c.CurrentIdx
		test.That(t, c.PreviousIdx, test.ShouldEqual, id)
		test.That(t, c.Distance, test.ShouldEqual, 0)
		test.That(t, c.Current.X, test.ShouldAlmostEqual, scene.pix2[id].X, 1e-9)
		test.That(t, c.Current.Y, test.ShouldAlmostEqual, scene.pix2[id].Y, 1e-9)
		if isOutlier[id] {
			acceptedOutliers++
		}
	}
	test.That(t, acceptedOutliers, test.ShouldBeLessThanOrEqualTo, 1)
	test.That(t, len(corrs)-acceptedOutliers, test.ShouldEqual, 50)
	test.That(t, e.LastStats().RatioSurvivors, test.ShouldEqual, n)

	motion, err := EstimateMotion(corrs, e.Camera())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, motion.InFront, test.ShouldBeGreaterThanOrEqualTo, 45)
	test.That(t, motion.TranslationVector().Dot(tTrue.Normalize()), test.ShouldAlmostEqual, 1, 1e-2)
	rot := rotationY(0.05)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			test.That(t, motion.Rotation.At(i, j), test.ShouldAlmostEqual, rot[3*i+j], 1e-2)
		}
	}

	// normalized output gives rays that map back to the same pixels
	cfg.NormalizedOutput = true
	fc.calls = 0
	e, err = NewExtractor(cfg, logging.NewTestLogger(t), WithFeatureComputer(fc))
	test.That(t, err, test.ShouldBeNil)
	_, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	rays, err := e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(rays), test.ShouldEqual, len(corrs))
	for i, c := range ToPixels(rays, cam) {
		test.That(t, rays[i].Current.X, test.ShouldAlmostEqual, scene.rays2[n-1-rays[i].CurrentIdx].X, 1e-9)
		test.That(t, c.Current.X, test.ShouldAlmostEqual, corrs[i].Current.X, 1e-6)
		test.That(t, c.Current.Y, test.ShouldAlmostEqual, corrs[i].Current.Y, 1e-6)
		test.That(t, c.Previous.X, test.ShouldAlmostEqual, corrs[i].Previous.X, 1e-6)
		test.That(t, c.Previous.Y, test.ShouldAlmostEqual, corrs[i].Previous.Y, 1e-6)
	}
	normalizedMotion, err := EstimateMotion(rays, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, normalizedMotion.TranslationVector().Dot(motion.TranslationVector()), test.ShouldAlmostEqual, 1, 1e-6)

	_, err = EstimateMotion(corrs[:7], cam)
	test.That(t, errors.Is(err, ErrNotEnoughCorrespondences), test.ShouldBeTrue)
}

func TestExtractDegenerateGeometry(t *testing.T) {
	line := func(n int, offset float64) []r2.Point {
		pts := make([]r2.Point, n)
		for i := range pts {
			pts[i] = r2.Point{X: 10*float64(i) + offset, Y: 2*float64(i) + 5}
		}
		return pts
	}
	descs := randomDescriptors(10, 7)
	first := descriptorSet(line(10, 0), descs)
	second := descriptorSet(line(10, 3), descs)
	fewer := descriptorSet(line(5, 6)[:5], descs[:5])
	fc := &fakeComputer{sets: []*keypoints.DescriptorSet{first, second, fewer}}

	logger, logs := logging.NewObservedTestLogger(t)
	e, err := NewExtractor(NewDefaultFrontendConfig(), logger, WithFeatureComputer(fc))
	test.That(t, err, test.ShouldBeNil)
	frame := image.NewGray(image.Rect(0, 0, 10, 10))

	_, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	corrs, err := e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldNotBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
	stats := e.LastStats()
	test.That(t, stats.RatioSurvivors, test.ShouldEqual, 10)
	test.That(t, stats.Status, test.ShouldEqual, transform.FitDegenerate)
	test.That(t, stats.Reason, test.ShouldEqual, "collinear correspondences")
	// the frame state still advances
	test.That(t, e.LastFrame(), test.ShouldResemble, second)

	corrs, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
	test.That(t, e.LastStats().Reason, test.ShouldEqual, "too few correspondences")
	test.That(t, e.LastFrame(), test.ShouldResemble, fewer)

	test.That(t, logs.FilterMessage("degenerate geometry, dropping frame correspondences").Len(), test.ShouldEqual, 2)
}

func TestExtractErrorKeepsState(t *testing.T) {
	scene := newTwoViewScene(20, 0.02, r3.Vector{X: 0.3}, transform.NewIdentityCameraModel(), 8)
	descs := randomDescriptors(20, 9)
	first := descriptorSet(scene.pix1, descs)
	third := descriptorSet(scene.pix2, descs)
	frameErr := errors.Wrap(keypoints.ErrInvalidFrame, "keypoint detection failed")
	mock := clock.NewMock()
	fc := &fakeComputer{
		sets:  []*keypoints.DescriptorSet{first, nil, third},
		errs:  []error{nil, frameErr, nil},
		clock: mock,
	}

	logger, logs := logging.NewObservedTestLogger(t)
	e, err := NewExtractor(NewDefaultFrontendConfig(), logger, WithFeatureComputer(fc), WithClock(mock))
	test.That(t, err, test.ShouldBeNil)
	frame := image.NewGray(image.Rect(0, 0, 10, 10))

	_, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, e.LastStats().Elapsed, test.ShouldEqual, 25*time.Millisecond)

	corrs, err := e.Extract(frame)
	test.That(t, err, test.ShouldBeError, frameErr)
	test.That(t, errors.Is(err, keypoints.ErrInvalidFrame), test.ShouldBeTrue)
	test.That(t, corrs, test.ShouldBeNil)
	test.That(t, e.LastFrame(), test.ShouldResemble, first)
	test.That(t, e.LastStats().Frame, test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("cannot extract frame features").Len(), test.ShouldEqual, 1)

	// the next good frame is matched against the last good one
	corrs, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(corrs), test.ShouldEqual, 20)
	for _, c := range corrs {
		test.That(t, c.CurrentIdx, test.ShouldEqual, c.PreviousIdx)
	}
	test.That(t, e.LastStats().Frame, test.ShouldEqual, 2)
	test.That(t, e.LastStats().Elapsed, test.ShouldEqual, 25*time.Millisecond)

	e.Reset()
	test.That(t, e.State(), test.ShouldEqual, StateEmpty)
	test.That(t, e.HasPreviousFrame(), test.ShouldBeFalse)
}

func TestExtractInvalidFrame(t *testing.T) {
	e, err := NewExtractor(NewDefaultFrontendConfig(), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	_, err = e.Extract(nil)
	test.That(t, errors.Is(err, keypoints.ErrInvalidFrame), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "keypoint detection failed")
	test.That(t, e.State(), test.ShouldEqual, StateEmpty)

	_, err = e.Extract(image.NewGray(image.Rectangle{}))
	test.That(t, errors.Is(err, keypoints.ErrInvalidFrame), test.ShouldBeTrue)
	test.That(t, e.State(), test.ShouldEqual, StateEmpty)

	// a frame without any feature still becomes the frame state
	flat := image.NewGray(image.Rect(0, 0, 100, 100))
	corrs, err := e.Extract(flat)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
	test.That(t, e.State(), test.ShouldEqual, StateTracking)
	corrs, err = e.Extract(flat)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
	test.That(t, e.LastStats().Keypoints, test.ShouldEqual, 0)
	test.That(t, e.LastStats().Status, test.ShouldEqual, transform.FitDegenerate)

	// malformed frames fail without touching the frame state
	before := e.LastFrame()
	malformed := []image.Image{
		&image.Gray{Rect: image.Rect(0, 0, 64, 64), Stride: 64, Pix: make([]uint8, 10)},
		(*image.Gray)(nil),
		(*image.RGBA)(nil),
		&image.RGBA{Rect: image.Rect(0, 0, 32, 32), Stride: 128, Pix: make([]uint8, 16)},
	}
	for _, img := range malformed {
		_, err = e.Extract(img)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, keypoints.ErrInvalidFrame), test.ShouldBeTrue)
		test.That(t, e.State(), test.ShouldEqual, StateTracking)
		test.That(t, e.LastFrame(), test.ShouldResemble, before)
	}
	corrs, err = e.Extract(flat)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, corrs, test.ShouldBeEmpty)
}

func TestExtractBoundsAndMatcherErrors(t *testing.T) {
	scene := newTwoViewScene(12, 0.02, r3.Vector{X: 0.3, Z: 0.05}, transform.NewIdentityCameraModel(), 10)
	descs := randomDescriptors(12, 11)
	first := descriptorSet(scene.pix1, descs)
	second := descriptorSet(scene.pix2, descs)

	candidates := make([][]keypoints.DescriptorMatch, 0, 13)
	for i := 0; i < 12; i++ {
		candidates = append(candidates, []keypoints.DescriptorMatch{
			{QueryIdx: i, TrainIdx: i, Distance: 0},
			{QueryIdx: i, TrainIdx: (i + 1) % 12, Distance: 100},
		})
	}
	// stale indices
	candidates = append(candidates, []keypoints.DescriptorMatch{
		{QueryIdx: 12, TrainIdx: 3, Distance: 0},
		{QueryIdx: 12, TrainIdx: 4, Distance: 100},
	})
	candidates[0][0].TrainIdx = 40
	fm := &fakeMatcher{candidates: candidates}
	fc := &fakeComputer{sets: []*keypoints.DescriptorSet{first, second, second}}

	e, err := NewExtractor(NewDefaultFrontendConfig(), logging.NewTestLogger(t), WithFeatureComputer(fc), WithMatcher(fm))
	test.That(t, err, test.ShouldBeNil)
	frame := image.NewGray(image.Rect(0, 0, 10, 10))
	_, err = e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	corrs, err := e.Extract(frame)
	test.That(t, err, test.ShouldBeNil)
	stats := e.LastStats()
	test.That(t, stats.RatioSurvivors, test.ShouldEqual, 13)
	test.That(t, stats.OutOfBounds, test.ShouldEqual, 2)
	test.That(t, len(corrs), test.ShouldEqual, 11)
	for _, c := range corrs {
		test.That(t, c.CurrentIdx, test.ShouldBeLessThan, 12)
		test.That(t, c.PreviousIdx, test.ShouldBeLessThan, 12)
	}

	fm.err = errors.Wrap(keypoints.ErrMetricMismatch, "hamming vs euclidean")
	_, err = e.Extract(frame)
	test.That(t, errors.Is(err, keypoints.ErrMetricMismatch), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "descriptor matching failed")
	test.That(t, e.LastFrame(), test.ShouldResemble, second)
}

func TestMedianDisplacement(t *testing.T) {
	test.That(t, medianDisplacement(nil), test.ShouldEqual, 0)
	corrs := []Correspondence{
		{Current: r2.Point{X: 3, Y: 4}},
		{Current: r2.Point{X: 1, Y: 1}, Previous: r2.Point{X: 1, Y: 0}},
		{Current: r2.Point{X: 10, Y: 0}},
	}
	test.That(t, medianDisplacement(corrs), test.ShouldEqual, 5)
}
