package rimage

import (
	"image"
	"image/draw"

	"gonum.org/v1/gonum/mat"
)

// SameImgSize compares images to see if they're the same size.
func SameImgSize(g1, g2 image.Image) bool {
	return g1.Bounds().Size() == g2.Bounds().Size()
}

// MakeGray converts any image to an image.Gray whose bounds start at the origin.
func MakeGray(pic image.Image) *image.Gray {
	return MakeGrayInto(nil, pic)
}

// MakeGrayInto converts pic to gray, reusing dst's pixel buffer when it is large enough. Every
// pixel of the returned image is overwritten. Gray inputs are copied, never aliased.
func MakeGrayInto(dst *image.Gray, pic image.Image) *image.Gray {
	size := pic.Bounds().Size()
	rect := image.Rectangle{Max: size}
	if dst == nil || cap(dst.Pix) < size.X*size.Y {
		dst = image.NewGray(rect)
	} else {
		dst.Pix = dst.Pix[:size.X*size.Y]
		dst.Stride = size.X
		dst.Rect = rect
	}
	draw.Draw(dst, rect, pic, pic.Bounds().Min, draw.Src)
	return dst
}

// GrayToFloat64 returns the pixel intensities of a gray image as a matrix with one row per image
// row.
func GrayToFloat64(img *image.Gray) *mat.Dense {
	size := img.Bounds().Size()
	out := mat.NewDense(size.Y, size.X, nil)
	minPt := img.Bounds().Min
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			out.Set(y, x, float64(img.GrayAt(minPt.X+x, minPt.Y+y).Y))
		}
	}
	return out
}

// GrayToInts flattens a gray image row by row into ints.
func GrayToInts(img *image.Gray) []int {
	size := img.Bounds().Size()
	out := make([]int, 0, size.X*size.Y)
	minPt := img.Bounds().Min
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			out = append(out, int(img.GrayAt(minPt.X+x, minPt.Y+y).Y))
		}
	}
	return out
}
