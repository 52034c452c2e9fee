package rimage

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestImageFileRoundTrip(t *testing.T) {
	img := createStepImage(16, 12)
	dir := t.TempDir()
	for _, ext := range []string{".png", ".bmp", ".tiff", ".ppm", ".qoi"} {
		path := filepath.Join(dir, "step"+ext)
		test.That(t, IsSupportedImageFile(path), test.ShouldBeTrue)
		test.That(t, WriteImageToFile(path, img), test.ShouldBeNil)
		read, err := ReadImageFromFile(path)
		test.That(t, err, test.ShouldBeNil)
		gray := MakeGray(read)
		test.That(t, gray.Bounds().Size(), test.ShouldResemble, image.Point{16, 12})
		test.That(t, gray.GrayAt(2, 2).Y, test.ShouldEqual, uint8(0))
		test.That(t, gray.GrayAt(12, 2).Y, test.ShouldEqual, uint8(255))
	}

	test.That(t, IsSupportedImageFile("frame.txt"), test.ShouldBeFalse)
	test.That(t, WriteImageToFile(filepath.Join(dir, "bad.txt"), img), test.ShouldNotBeNil)
	_, err := ReadImageFromFile(filepath.Join(dir, "missing.png"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMakeGrayInto(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(5, 5, 9, 8))
	rgba.Set(5, 5, color.RGBA{255, 255, 255, 255})
	gray := MakeGrayInto(nil, rgba)
	test.That(t, gray.Bounds(), test.ShouldResemble, image.Rect(0, 0, 4, 3))
	test.That(t, gray.GrayAt(0, 0).Y, test.ShouldEqual, uint8(255))
	test.That(t, gray.GrayAt(1, 0).Y, test.ShouldEqual, uint8(0))

	// a smaller image reuses the buffer and every pixel is overwritten
	small := image.NewGray(image.Rect(0, 0, 2, 2))
	reused := MakeGrayInto(gray, small)
	test.That(t, &reused.Pix[0], test.ShouldEqual, &gray.Pix[0])
	test.That(t, reused.Pix, test.ShouldResemble, []uint8{0, 0, 0, 0})

	test.That(t, GrayToInts(small), test.ShouldResemble, []int{0, 0, 0, 0})
	m := GrayToFloat64(createStepImage(4, 2))
	test.That(t, m.At(1, 3), test.ShouldEqual, 255.)
	test.That(t, SameImgSize(small, reused), test.ShouldBeTrue)
}

func TestPyramidAndBlur(t *testing.T) {
	img := createStepImage(64, 48)
	pyr, err := GetImagePyramid(img, 4, 2, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pyr.Images, test.ShouldHaveLength, 3)
	test.That(t, pyr.Scales, test.ShouldResemble, []float64{1, 2, 4})
	test.That(t, pyr.Images[1].Bounds().Size(), test.ShouldResemble, image.Point{32, 24})
	test.That(t, pyr.Images[2].Bounds().Size(), test.ShouldResemble, image.Point{16, 12})

	_, err = GetImagePyramid(img, 0, 2, 10)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = GetImagePyramid(img, 3, 1, 10)
	test.That(t, err, test.ShouldNotBeNil)

	before := append([]uint8{}, img.Pix...)
	blurred := GaussianBlurGray(img, 2)
	test.That(t, img.Pix, test.ShouldResemble, before)
	test.That(t, blurred.Bounds().Size(), test.ShouldResemble, img.Bounds().Size())
	// far from the step the image is flat
	test.That(t, blurred.GrayAt(2, 20).Y, test.ShouldBeLessThan, uint8(5))
	test.That(t, blurred.GrayAt(60, 20).Y, test.ShouldBeGreaterThan, uint8(250))
	// at the step the blur produces an intermediate value
	mid := blurred.GrayAt(32, 20).Y
	test.That(t, mid, test.ShouldBeGreaterThan, uint8(0))
	test.That(t, mid, test.ShouldBeLessThan, uint8(255))
}
