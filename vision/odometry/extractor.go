package odometry

import (
	"image"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/vofrontend/logging"
	"go.viam.com/vofrontend/rimage"
	"go.viam.com/vofrontend/rimage/transform"
	"go.viam.com/vofrontend/vision/keypoints"
)

// knnNeighbors is the number of neighbours the ratio test needs.
const knnNeighbors = 2

// State is the state of the frame history of an Extractor.
type State int

const (
	// StateEmpty means no frame has been extracted yet.
	StateEmpty State = iota
	// StateTracking means the features of the previous frame are available for matching.
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithClock sets the clock used to time frames.
func WithClock(clk clock.Clock) Option {
	return func(e *Extractor) {
		e.clock = clk
	}
}

// WithFeatureComputer replaces the detector and descriptor built from the configuration.
func WithFeatureComputer(fc keypoints.FeatureComputer) Option {
	return func(e *Extractor) {
		e.features = fc
	}
}

// WithMatcher replaces the brute force matcher.
func WithMatcher(m keypoints.Matcher) Option {
	return func(e *Extractor) {
		e.matcher = m
	}
}

// Extractor turns a stream of frames into frame to frame correspondences. It keeps the features
// of the last successfully processed frame and nothing older.
//
// An Extractor is not safe for concurrent use: frames must be given in temporal order from a
// single goroutine. Independent streams need independent extractors.
type Extractor struct {
	cfg      *FrontendConfig
	logger   logging.Logger
	clock    clock.Clock
	camera   *transform.CameraModel
	features keypoints.FeatureComputer
	matcher  keypoints.Matcher

	// previous is the frame state; nil until the first successful extraction.
	previous *keypoints.DescriptorSet
	frames   int
	stats    FrameStats

	// buffers reused across frames
	gray      *image.Gray
	survivors []keypoints.DescriptorMatch
	prevPts   []r2.Point
	curPts    []r2.Point
	prevRays  []r2.Point
	curRays   []r2.Point
}

// NewExtractor validates cfg and builds the camera model, feature computer and matcher it
// describes. Singular intrinsics fail with transform.ErrSingularIntrinsics.
func NewExtractor(cfg *FrontendConfig, logger logging.Logger, opts ...Option) (*Extractor, error) {
	if cfg == nil {
		return nil, errors.New("frontend config is required")
	}
	if err := cfg.Validate("frontend"); err != nil {
		return nil, err
	}
	camera, err := cfg.newCameraModel()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build camera model")
	}
	e := &Extractor{
		cfg:     cfg,
		logger:  logger,
		clock:   clock.New(),
		camera:  camera,
		matcher: keypoints.NewBruteForceMatcher(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.features == nil {
		if e.features, err = cfg.newFeatureComputer(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Camera returns the camera model used to normalize points.
func (e *Extractor) Camera() *transform.CameraModel {
	return e.camera
}

// State returns whether a previous frame is available.
func (e *Extractor) State() State {
	if e.previous == nil {
		return StateEmpty
	}
	return StateTracking
}

// HasPreviousFrame reports whether the next frame will be matched against a previous one.
func (e *Extractor) HasPreviousFrame() bool {
	return e.previous != nil
}

// LastFrame returns a copy of the features of the previous frame, nil before the first frame.
func (e *Extractor) LastFrame() *keypoints.DescriptorSet {
	return e.previous.Clone()
}

// LastStats returns the statistics of the last frame given to Extract.
func (e *Extractor) LastStats() FrameStats {
	return e.stats
}

// Reset forgets the previous frame.
func (e *Extractor) Reset() {
	e.previous = nil
}

// Extract processes the next frame of the stream and returns its correspondences with the
// previous frame. The first frame only seeds the frame state and returns no correspondences.
//
// The frame state advances to img whenever its features could be computed, even when nothing
// matched or the geometry was degenerate. On error the frame state is left untouched so the next
// frame is matched against the last good one.
func (e *Extractor) Extract(img image.Image) ([]Correspondence, error) {
	start := e.clock.Now()
	stats := FrameStats{Frame: e.frames}
	e.frames++

	gray, err := e.toGray(img)
	if err != nil {
		stats.Elapsed = e.clock.Since(start)
		e.stats = stats
		e.logger.Warnw("cannot convert frame", "frame", stats.Frame, "error", err)
		return nil, err
	}
	current, err := e.features.Compute(gray)
	if err != nil {
		stats.Elapsed = e.clock.Since(start)
		e.stats = stats
		e.logger.Warnw("cannot extract frame features", "frame", stats.Frame, "error", err)
		return nil, err
	}
	stats.Keypoints = current.Len()

	corrs := []Correspondence{}
	if e.previous != nil {
		corrs, err = e.match(current, e.previous, &stats)
		if err != nil {
			stats.Elapsed = e.clock.Since(start)
			e.stats = stats
			e.logger.Warnw("cannot match frame", "frame", stats.Frame, "error", err)
			return nil, err
		}
	}
	e.previous = current

	stats.Elapsed = e.clock.Since(start)
	e.stats = stats
	e.logger.Debugw("extracted frame", stats.logFields()...)
	return corrs, nil
}

// toGray converts img into the reused gray buffer. A nil img is passed on as a nil frame for the
// feature computer to reject. Malformed images fail with keypoints.ErrInvalidFrame.
func (e *Extractor) toGray(img image.Image) (gray *image.Gray, err error) {
	if img == nil {
		return nil, nil
	}
	if g, ok := img.(*image.Gray); ok {
		if g == nil {
			return nil, errors.Wrap(keypoints.ErrInvalidFrame, "nil gray image")
		}
		if size := g.Bounds().Size(); size.X > 0 && size.Y > 0 {
			if err := keypoints.CheckFrame(g); err != nil {
				return nil, err
			}
		}
	}
	defer func() {
		if r := recover(); r != nil {
			gray = nil
			err = errors.Wrapf(keypoints.ErrInvalidFrame, "cannot convert frame to gray: %v", r)
		}
	}()
	e.gray = rimage.MakeGrayInto(e.gray, img)
	return e.gray, nil
}

// match runs the matching, ratio test, bounds check and epipolar verification of current
// against previous.
func (e *Extractor) match(current, previous *keypoints.DescriptorSet, stats *FrameStats) ([]Correspondence, error) {
	stats.Matched = true
	candidates, err := e.matcher.KnnMatch(current, previous, knnNeighbors)
	if err != nil {
		return nil, errors.Wrap(err, "descriptor matching failed")
	}
	stats.Candidates = len(candidates)

	e.survivors = keypoints.RatioTest(candidates, e.cfg.Matching.RatioThreshold, e.survivors[:0])
	stats.RatioSurvivors = len(e.survivors)

	kept := e.survivors[:0]
	for _, m := range e.survivors {
		if m.QueryIdx < 0 || m.QueryIdx >= current.Len() || m.TrainIdx < 0 || m.TrainIdx >= previous.Len() {
			stats.OutOfBounds++
			continue
		}
		kept = append(kept, m)
	}
	e.survivors = kept

	e.curPts, e.prevPts = e.curPts[:0], e.prevPts[:0]
	e.curRays, e.prevRays = e.curRays[:0], e.prevRays[:0]
	for _, m := range kept {
		cur := current.Points[m.QueryIdx].Pt()
		prev := previous.Points[m.TrainIdx].Pt()
		e.curPts = append(e.curPts, cur)
		e.prevPts = append(e.prevPts, prev)
		e.curRays = append(e.curRays, e.camera.ToRay(cur))
		e.prevRays = append(e.prevRays, e.camera.ToRay(prev))
	}

	fit, err := transform.EstimateFundamentalMatrixRANSAC(e.prevRays, e.curRays, e.cfg.RANSAC, e.camera.MeanFocalLength())
	if err != nil {
		return nil, errors.Wrap(err, "geometric verification failed")
	}
	stats.Status = fit.Status
	stats.Reason = fit.Reason
	if fit.Status == transform.FitDegenerate {
		e.logger.Warnw("degenerate geometry, dropping frame correspondences",
			"frame", stats.Frame, "reason", fit.Reason, "pairs", len(kept))
		return []Correspondence{}, nil
	}

	corrs := make([]Correspondence, 0, fit.NumInliers)
	for i, m := range kept {
		if !fit.Inliers[i] {
			continue
		}
		c := Correspondence{
			Current:     e.curPts[i],
			Previous:    e.prevPts[i],
			CurrentIdx:  m.QueryIdx,
			PreviousIdx: m.TrainIdx,
			Distance:    m.Distance,
		}
		if e.cfg.NormalizedOutput {
			c.Current, c.Previous = e.curRays[i], e.prevRays[i]
		}
		corrs = append(corrs, c)
	}
	stats.Inliers = len(corrs)
	stats.MedianDisplacement = medianDisplacement(corrs)
	return corrs, nil
}
