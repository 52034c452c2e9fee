package main

import (
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/vofrontend/rimage"
)

// frameSource reads the frames of an image sequence stored as one file per frame in a directory.
// Frames are ordered by file name.
type frameSource struct {
	paths []string
	scale float64
	next  int
}

func newFrameSource(dir string, scale float64) (*frameSource, error) {
	if scale <= 0 {
		return nil, errors.Errorf("scale must be positive, got %v", scale)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list frames in %q", dir)
	}
	frames := lo.Filter(entries, func(entry os.DirEntry, _ int) bool {
		return !entry.IsDir() && rimage.IsSupportedImageFile(entry.Name())
	})
	if len(frames) == 0 {
		return nil, errors.Errorf("no image frames found in %q", dir)
	}
	paths := lo.Map(frames, func(entry os.DirEntry, _ int) string {
		return filepath.Join(dir, entry.Name())
	})
	sort.Strings(paths)
	return &frameSource{paths: paths, scale: scale}, nil
}

// Len returns the number of frames of the sequence.
func (fs *frameSource) Len() int {
	return len(fs.paths)
}

// Next returns the next frame and its path. ok is false once every frame was read.
func (fs *frameSource) Next() (img image.Image, path string, ok bool, err error) {
	if fs.next >= len(fs.paths) {
		return nil, "", false, nil
	}
	path = fs.paths[fs.next]
	fs.next++
	img, err = rimage.ReadImageFromFile(path)
	if err != nil {
		return nil, path, true, err
	}
	if fs.scale != 1 {
		size := img.Bounds().Size()
		w := uint(float64(size.X) * fs.scale)
		h := uint(float64(size.Y) * fs.scale)
		if w == 0 || h == 0 {
			return nil, path, true, errors.Errorf("frame %q is empty once scaled by %v", path, fs.scale)
		}
		img = resize.Resize(w, h, img, resize.Bilinear)
	}
	return img, path, true, nil
}
