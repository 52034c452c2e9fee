package rimage

import (
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.viam.com/utils"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	// register webp for image.Decode.
	_ "golang.org/x/image/webp"
)

// IsSupportedImageFile reports whether the file extension is one ReadImageFromFile can decode.
func IsSupportedImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp", ".ppm", ".qoi":
		return true
	default:
		return false
	}
}

// ReadImageFromFile decodes the image stored at path. The format is sniffed from the content.
func ReadImageFromFile(path string) (image.Image, error) {
	//nolint:gosec
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot decode image %q", path)
	}
	return img, nil
}

// WriteImageToFile encodes img at path with the format given by the file extension.
func WriteImageToFile(path string, img image.Image) (err error) {
	//nolint:gosec
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode(f, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: jpeg.DefaultQuality})
	case ".bmp":
		return bmp.Encode(f, img)
	case ".tif", ".tiff":
		return tiff.Encode(f, img, nil)
	case ".ppm":
		return ppm.Encode(f, toRGBA(img))
	case ".qoi":
		return qoi.Encode(f, toRGBA(img))
	default:
		return errors.Errorf("unsupported image extension %q", filepath.Ext(path))
	}
}

// toRGBA copies img into an RGBA image for the encoders that only support that color model.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bnd := img.Bounds()
	rgba := image.NewRGBA(image.Rectangle{Max: bnd.Size()})
	draw.Draw(rgba, rgba.Bounds(), img, bnd.Min, draw.Src)
	return rgba
}
