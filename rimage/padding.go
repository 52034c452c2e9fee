package rimage

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// BorderPad is an enum type for supported padding types.
type BorderPad int

const (
	// BorderConstant - X00000|abcdefgh|00000X.
	BorderConstant BorderPad = iota
	// BorderReplicate - aaaaaa|abcdefgh|hhhhhhh.
	BorderReplicate
	// BorderReflect - gfedcb|abcdefgh|gfedcba.
	BorderReflect
)

// ErrKernelTooLarge is returned when padding would need more rows or columns than the image has.
var ErrKernelTooLarge = errors.New("kernel larger than image")

// padIndex maps an index in the padded image back into [0, n) according to the border type. It
// returns -1 for constant padding outside the image.
func padIndex(i, n int, border BorderPad) int {
	if i >= 0 && i < n {
		return i
	}
	switch border {
	case BorderReplicate:
		if i < 0 {
			return 0
		}
		return n - 1
	case BorderReflect:
		// reflection without repeating the edge pixel
		if n == 1 {
			return 0
		}
		period := 2 * (n - 1)
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - i
		}
		return i
	case BorderConstant:
		return -1
	default:
		return -1
	}
}

func checkPadding(size, kernelSize, anchor image.Point) error {
	if anchor.X < 0 || anchor.Y < 0 || anchor.X >= kernelSize.X || anchor.Y >= kernelSize.Y {
		return errors.Errorf("anchor %v outside kernel of size %v", anchor, kernelSize)
	}
	if kernelSize.X > size.X || kernelSize.Y > size.Y {
		return errors.Wrapf(ErrKernelTooLarge, "kernel %v, image %v", kernelSize, size)
	}
	return nil
}

// PaddingGray pads a gray image so that convolving the result with a kernel of size kernelSize
// anchored at anchor yields an image of the original size.
func PaddingGray(img *image.Gray, kernelSize, anchor image.Point, border BorderPad) (*image.Gray, error) {
	size := img.Bounds().Size()
	if err := checkPadding(size, kernelSize, anchor); err != nil {
		return nil, err
	}
	minPt := img.Bounds().Min
	padded := image.NewGray(image.Rect(0, 0, size.X+kernelSize.X-1, size.Y+kernelSize.Y-1))
	for y := 0; y < padded.Rect.Dy(); y++ {
		srcY := padIndex(y-anchor.Y, size.Y, border)
		for x := 0; x < padded.Rect.Dx(); x++ {
			srcX := padIndex(x-anchor.X, size.X, border)
			if srcX < 0 || srcY < 0 {
				padded.SetGray(x, y, color.Gray{0})
				continue
			}
			padded.SetGray(x, y, img.GrayAt(minPt.X+srcX, minPt.Y+srcY))
		}
	}
	return padded, nil
}

// PaddingFloat64 pads a float64 matrix (rows are image rows) the same way PaddingGray pads a gray
// image.
func PaddingFloat64(m *mat.Dense, kernelSize, anchor image.Point, border BorderPad) (*mat.Dense, error) {
	h, w := m.Dims()
	if err := checkPadding(image.Point{w, h}, kernelSize, anchor); err != nil {
		return nil, err
	}
	ph, pw := h+kernelSize.Y-1, w+kernelSize.X-1
	padded := mat.NewDense(ph, pw, nil)
	for y := 0; y < ph; y++ {
		srcY := padIndex(y-anchor.Y, h, border)
		for x := 0; x < pw; x++ {
			srcX := padIndex(x-anchor.X, w, border)
			if srcX < 0 || srcY < 0 {
				continue
			}
			padded.Set(y, x, m.At(srcY, srcX))
		}
	}
	return padded, nil
}
