package rimage

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImagePyramid stores the successively downscaled layers of an image along with the scale of each
// layer relative to the original image.
type ImagePyramid struct {
	Images []*image.Gray
	Scales []float64
}

// GetImagePyramid builds a pyramid with at most nLayers layers, each downscaled by scaleFactor
// (> 1) from the previous one. Building stops early when a layer would be smaller than minSize in
// either dimension.
func GetImagePyramid(img *image.Gray, nLayers int, scaleFactor float64, minSize int) (*ImagePyramid, error) {
	if nLayers < 1 {
		return nil, errors.Errorf("number of pyramid layers must be at least 1, got %d", nLayers)
	}
	if scaleFactor <= 1 {
		return nil, errors.Errorf("pyramid downscale factor must be greater than 1, got %v", scaleFactor)
	}
	pyr := &ImagePyramid{
		Images: []*image.Gray{img},
		Scales: []float64{1},
	}
	size := img.Bounds().Size()
	for i := 1; i < nLayers; i++ {
		scale := math.Pow(scaleFactor, float64(i))
		w := int(math.Round(float64(size.X) / scale))
		h := int(math.Round(float64(size.Y) / scale))
		if w < minSize || h < minSize {
			break
		}
		resized := imaging.Resize(img, w, h, imaging.Linear)
		pyr.Images = append(pyr.Images, MakeGray(resized))
		pyr.Scales = append(pyr.Scales, scale)
	}
	return pyr, nil
}
