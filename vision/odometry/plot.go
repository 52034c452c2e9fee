package odometry

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"go.viam.com/vofrontend/rimage"
)

var (
	trackColor   = color.NRGBA{0, 200, 0, 255}
	currentColor = color.NRGBA{255, 0, 0, 255}
	labelColor   = color.NRGBA{255, 255, 0, 255}
)

// PlotCorrespondences draws, on top of the current frame, a segment from the previous to the
// current position of every pixel correspondence and a circle at the current position.
func PlotCorrespondences(img image.Image, corrs []Correspondence) image.Image {
	bnd := img.Bounds()
	dc := gg.NewContext(bnd.Dx(), bnd.Dy())
	dc.DrawImage(img, -bnd.Min.X, -bnd.Min.Y)
	for _, c := range corrs {
		rimage.DrawSegment(dc, c.Previous.X, c.Previous.Y, c.Current.X, c.Current.Y, trackColor, 1)
		rimage.DrawCircleEmpty(dc, c.Current.X, c.Current.Y, 2, currentColor, 1)
	}
	rimage.DrawString(dc, fmt.Sprintf("%d correspondences", len(corrs)), image.Point{5, 5}, labelColor, 12)
	return dc.Image()
}

// SaveCorrespondencesPlot draws the correspondences on the frame and writes the result to outName.
func SaveCorrespondencesPlot(img image.Image, corrs []Correspondence, outName string) error {
	return rimage.WriteImageToFile(outName, PlotCorrespondences(img, corrs))
}
