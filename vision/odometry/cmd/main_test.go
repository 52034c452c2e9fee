package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/vofrontend/rimage"
)

// writeFrames writes n frames of a random block texture moving by step pixels per frame.
func writeFrames(t *testing.T, n int, step image.Point) string {
	t.Helper()
	r := rand.New(rand.NewPCG(1, 2))
	texture := image.NewGray(image.Rect(0, 0, 400, 300))
	for y := 0; y < 300; y += 4 {
		for x := 0; x < 400; x += 4 {
			c := color.Gray{uint8(r.IntN(256))}
			draw.Draw(texture, image.Rect(x, y, x+4, y+4), &image.Uniform{c}, image.Point{}, draw.Src)
		}
	}
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		frame := image.NewGray(image.Rect(0, 0, 320, 240))
		draw.Draw(frame, frame.Bounds(), texture, step.Mul(i), draw.Src)
		path := filepath.Join(dir, fmt.Sprintf("%03d.png", i))
		test.That(t, rimage.WriteImageToFile(path, frame), test.ShouldBeNil)
	}
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a frame"), 0o600), test.ShouldBeNil)
	return dir
}

func runApp(args ...string) (string, error) {
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"vofrontend"}, args...))
	return out.String(), err
}

func TestRun(t *testing.T) {
	frames := writeFrames(t, 3, image.Point{3, 2})
	outDir := filepath.Join(t.TempDir(), "tracks")

	out, err := runApp("run", "--frames", frames, "--out", outDir, "--motion")
	test.That(t, err, test.ShouldBeNil)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var frameLines []string
	for _, l := range lines {
		if !strings.HasPrefix(l, "\t") {
			frameLines = append(frameLines, l)
		}
	}
	test.That(t, frameLines, test.ShouldHaveLength, 3)
	test.That(t, frameLines[0], test.ShouldStartWith, "000.png")
	test.That(t, frameLines[0], test.ShouldEndWith, "correspondences=0")
	test.That(t, frameLines[2], test.ShouldStartWith, "002.png")
	test.That(t, out, test.ShouldContainSubstring, "direction=")

	for _, name := range []string{
		"000_tracks.png", "001_tracks.png", "002_tracks.png",
		"000_keypoints.png", "001_keypoints.png", "002_keypoints.png",
	} {
		img, err := rimage.ReadImageFromFile(filepath.Join(outDir, name))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Size(), test.ShouldResemble, image.Point{320, 240})
	}
}

func TestRunWithConfig(t *testing.T) {
	frames := writeFrames(t, 2, image.Point{4, 0})
	cfgPath := filepath.Join(t.TempDir(), "frontend.json")
	cfgJSON := `{
		"detector": "fast",
		"descriptor": "brief",
		"matching": {"ratio_threshold": 0.8},
		"intrinsic_parameters": {"width_px": 320, "height_px": 240, "fx": 400, "fy": 400, "ppx": 160, "ppy": 120}
	}`
	test.That(t, os.WriteFile(cfgPath, []byte(cfgJSON), 0o600), test.ShouldBeNil)

	out, err := runApp("run", "--config", cfgPath, "--frames", frames, "--scale", "0.5", "--normalized")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Count(out, "correspondences="), test.ShouldEqual, 2)
}

func TestRunErrors(t *testing.T) {
	frames := writeFrames(t, 2, image.Point{1, 1})

	_, err := runApp("run")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp("run", "--frames", filepath.Join(t.TempDir(), "missing"))
	test.That(t, err, test.ShouldNotBeNil)

	_, err = runApp("run", "--frames", t.TempDir())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no image frames")

	_, err = runApp("run", "--frames", frames, "--scale", "0")
	test.That(t, err, test.ShouldNotBeNil)

	cfgPath := filepath.Join(t.TempDir(), "frontend.json")
	test.That(t, os.WriteFile(cfgPath, []byte(`{"detector": "sift"}`), 0o600), test.ShouldBeNil)
	_, err = runApp("run", "--config", cfgPath, "--frames", frames)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "sift")

	// a broken frame is reported but the others are processed
	test.That(t, os.WriteFile(filepath.Join(frames, "000b.png"), []byte("garbage"), 0o600), test.ShouldBeNil)
	out, err := runApp("run", "--frames", frames)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "000b.png")
	test.That(t, strings.Count(out, "correspondences="), test.ShouldEqual, 2)
}
