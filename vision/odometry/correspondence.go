package odometry

import (
	"github.com/golang/geo/r2"

	"go.viam.com/vofrontend/rimage/transform"
)

// Correspondence is a verified match between a keypoint of the current frame and a keypoint of the
// previous frame. Points are pixels unless the extractor was configured for normalized output.
type Correspondence struct {
	Current  r2.Point
	Previous r2.Point
	// CurrentIdx and PreviousIdx index the descriptor sets of the two frames.
	CurrentIdx  int
	PreviousIdx int
	Distance    float64
}

// Displacement is the motion of the point from the previous to the current frame.
func (c Correspondence) Displacement() r2.Point {
	return c.Current.Sub(c.Previous)
}

// CurrentPoints returns the current frame points of corrs.
func CurrentPoints(corrs []Correspondence) []r2.Point {
	pts := make([]r2.Point, len(corrs))
	for i, c := range corrs {
		pts[i] = c.Current
	}
	return pts
}

// PreviousPoints returns the previous frame points of corrs.
func PreviousPoints(corrs []Correspondence) []r2.Point {
	pts := make([]r2.Point, len(corrs))
	for i, c := range corrs {
		pts[i] = c.Previous
	}
	return pts
}

// ToPixels maps normalized correspondences back to pixel coordinates with cam.
func ToPixels(corrs []Correspondence, cam *transform.CameraModel) []Correspondence {
	out := make([]Correspondence, len(corrs))
	for i, c := range corrs {
		out[i] = c
		out[i].Current = cam.ToPixel(c.Current)
		out[i].Previous = cam.ToPixel(c.Previous)
	}
	return out
}
