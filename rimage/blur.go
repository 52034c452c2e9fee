package rimage

import (
	"image"

	"github.com/tajtiattila/blur"
)

// GaussianBlurGray returns a gaussian blurred copy of img. The input is left untouched.
func GaussianBlurGray(img *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return MakeGray(img)
	}
	// ReuseSrc lets the blur work in place on our private copy.
	return MakeGray(blur.Gaussian(MakeGray(img), radius, blur.ReuseSrc))
}

// SmoothGray5 applies the normalized 5x5 gaussian kernel with reflected borders.
func SmoothGray5(img *image.Gray) (*image.Gray, error) {
	kernel := GetGaussian5()
	return ConvolveGray(img, kernel.Normalize(), image.Point{2, 2}, BorderReflect)
}
