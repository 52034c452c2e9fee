// Package keypoints contains keypoint detection, description and matching for gray images:
// - FAST and corner-strength (Shi-Tomasi / Harris) detectors
// - BRIEF (binary) and normalized patch (float) descriptors
// - ORB, a pyramid of FAST keypoints described with steered BRIEF
// - brute force kNN matching with a ratio test.
package keypoints

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"

	"go.viam.com/vofrontend/rimage"
	"go.viam.com/vofrontend/utils"
)

// KeyPoint is a detected interest point in pixel coordinates of the original image.
type KeyPoint struct {
	X, Y        float64
	Response    float64
	Orientation float64 // radians
	Octave      int
}

// Pt returns the position of the keypoint.
func (kp KeyPoint) Pt() r2.Point {
	return r2.Point{X: kp.X, Y: kp.Y}
}

// ImagePoint returns the position of the keypoint rounded to the closest pixel.
func (kp KeyPoint) ImagePoint() image.Point {
	return image.Point{int(math.Round(kp.X)), int(math.Round(kp.Y))}
}

// KeyPoints is a set of keypoints.
type KeyPoints []KeyPoint

// Points returns the positions of the keypoints.
func (kps KeyPoints) Points() []r2.Point {
	out := make([]r2.Point, len(kps))
	for i, kp := range kps {
		out[i] = kp.Pt()
	}
	return out
}

// RescaleKeypoints multiplies the keypoints coordinates by scaleFactor.
func RescaleKeypoints(kps KeyPoints, scaleFactor float64) KeyPoints {
	rescaled := make(KeyPoints, len(kps))
	for i, kp := range kps {
		kp.X *= scaleFactor
		kp.Y *= scaleFactor
		rescaled[i] = kp
	}
	return rescaled
}

// sortKeyPoints orders keypoints by decreasing response, then by row and column so that the
// order only depends on the pixel content.
func sortKeyPoints(kps KeyPoints) {
	sort.SliceStable(kps, func(i, j int) bool {
		if kps[i].Response != kps[j].Response {
			return kps[i].Response > kps[j].Response
		}
		if kps[i].Y != kps[j].Y {
			return kps[i].Y < kps[j].Y
		}
		return kps[i].X < kps[j].X
	})
}

// orientationMask returns, for each row offset v in [0, radius], the half width of the circular
// patch used by the intensity centroid. The mask is symmetric under swapping rows and columns.
func orientationMask(radius int) []int {
	umax := make([]int, radius+2)
	vmax := int(math.Floor(float64(radius)*math.Sqrt2/2 + 1))
	vmin := int(math.Ceil(float64(radius) * math.Sqrt2 / 2))
	rSq := float64(radius * radius)
	for v := 0; v <= vmax; v++ {
		umax[v] = int(math.Round(math.Sqrt(rSq - float64(v*v))))
	}
	for v, v0 := radius, 0; v >= vmin; v-- {
		for umax[v0] == umax[v0+1] {
			v0++
		}
		umax[v] = v0
		v0++
	}
	return umax[:radius+1]
}

// computeKeypointsOrientations sets the orientation of each keypoint to the angle of the intensity
// centroid of the circular patch of the given radius around it. Pixels outside the image count as 0.
func computeKeypointsOrientations(img *image.Gray, kps KeyPoints, radius int) {
	umax := orientationMask(radius)
	bnd := img.Bounds()
	for i := range kps {
		c := kps[i].ImagePoint()
		m01, m10 := 0, 0
		for v := -radius; v <= radius; v++ {
			y := c.Y + v
			if y < bnd.Min.Y || y >= bnd.Max.Y {
				continue
			}
			w := umax[utils.AbsInt(v)]
			rowSum := 0
			for u := -w; u <= w; u++ {
				x := c.X + u
				if x < bnd.Min.X || x >= bnd.Max.X {
					continue
				}
				val := int(img.GrayAt(x, y).Y)
				m10 += u * val
				rowSum += val
			}
			m01 += v * rowSum
		}
		kps[i].Orientation = math.Atan2(float64(m01), float64(m10))
	}
}

// PlotKeypoints draws keypoints on top of the image and returns the result. Oriented keypoints
// are drawn with a segment showing their orientation.
func PlotKeypoints(img image.Image, kps KeyPoints) image.Image {
	bnd := img.Bounds()
	dc := gg.NewContext(bnd.Dx(), bnd.Dy())
	dc.DrawImage(img, -bnd.Min.X, -bnd.Min.Y)

	kpColor := color.NRGBA{0, 0, 255, 180}
	for _, kp := range kps {
		radius := 3.0 * math.Pow(2, float64(kp.Octave))
		rimage.DrawCircleEmpty(dc, kp.X, kp.Y, radius, kpColor, 1)
		if kp.Orientation != 0 {
			x1 := kp.X + radius*math.Cos(kp.Orientation)
			y1 := kp.Y + radius*math.Sin(kp.Orientation)
			rimage.DrawSegment(dc, kp.X, kp.Y, x1, y1, kpColor, 1)
		}
	}
	return dc.Image()
}

// SaveKeypointsPlot draws keypoints on the image and writes the result to outName.
func SaveKeypointsPlot(img image.Image, kps KeyPoints, outName string) error {
	return rimage.WriteImageToFile(outName, PlotKeypoints(img, kps))
}
