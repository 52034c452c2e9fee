package rimage

import (
	"image"
	"math"
)

// Kernel is a 2D filter applied to images by convolution.
type Kernel struct {
	Content [][]float64
	Height  int
	Width   int
}

// NewKernel creates a zero valued kernel of the given size.
func NewKernel(width, height int) *Kernel {
	content := make([][]float64, height)
	for i := range content {
		content[i] = make([]float64, width)
	}
	return &Kernel{Content: content, Height: height, Width: width}
}

// Size returns the kernel size as an image.Point.
func (k *Kernel) Size() image.Point {
	return image.Point{k.Width, k.Height}
}

// At returns the kernel value at column x and row y.
func (k *Kernel) At(x, y int) float64 {
	return k.Content[y][x]
}

// AbSum returns the sum of the absolute values of the kernel.
func (k *Kernel) AbSum() float64 {
	var sum float64
	for y := 0; y < k.Height; y++ {
		for x := 0; x < k.Width; x++ {
			sum += math.Abs(k.At(x, y))
		}
	}
	return sum
}

// Normalize returns a new kernel whose values sum (in absolute value) to 1.
func (k *Kernel) Normalize() *Kernel {
	normalized := NewKernel(k.Width, k.Height)
	sum := k.AbSum()
	if sum == 0 {
		sum = 1
	}
	for y := 0; y < k.Height; y++ {
		for x := 0; x < k.Width; x++ {
			normalized.Content[y][x] = k.At(x, y) / sum
		}
	}
	return normalized
}

// GetSobelX returns the Kernel corresponding to the Sobel kernel in the x direction.
func GetSobelX() Kernel {
	return Kernel{
		[][]float64{
			{-1, 0, 1},
			{-2, 0, 2},
			{-1, 0, 1},
		},
		3,
		3,
	}
}

// GetSobelY returns the Kernel corresponding to the Sobel kernel in the y direction.
func GetSobelY() Kernel {
	return Kernel{
		[][]float64{
			{-1, -2, -1},
			{0, 0, 0},
			{1, 2, 1},
		},
		3,
		3,
	}
}

// GetGaussian5 returns the unnormalized 5x5 binomial approximation of a Gaussian kernel.
func GetGaussian5() Kernel {
	return Kernel{
		[][]float64{
			{1, 4, 7, 4, 1},
			{4, 16, 26, 16, 4},
			{7, 26, 41, 26, 7},
			{4, 16, 26, 16, 4},
			{1, 4, 7, 4, 1},
		},
		5,
		5,
	}
}

// GetBox returns a size x size box kernel of ones. Convolving with it sums a window.
func GetBox(size int) Kernel {
	k := NewKernel(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			k.Content[y][x] = 1
		}
	}
	return *k
}
