// Package main runs the visual odometry frontend over a sequence of frames.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/vofrontend/logging"
	"go.viam.com/vofrontend/rimage/transform"
	"go.viam.com/vofrontend/vision/keypoints"
	"go.viam.com/vofrontend/vision/odometry"
)

const (
	flagConfig     = "config"
	flagFrames     = "frames"
	flagScale      = "scale"
	flagOut        = "out"
	flagNormalized = "normalized"
	flagMotion     = "motion"
	flagDebug      = "debug"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "vofrontend",
		Usage: "extract frame to frame correspondences from an image sequence",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "log every frame",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run the frontend over a directory of frames",
				UsageText: "vofrontend run --frames <dir> [other options]",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagConfig,
						Usage: "json frontend configuration, defaults to ORB features",
					},
					&cli.PathFlag{
						Name:     flagFrames,
						Required: true,
						Usage:    "directory of frames, processed in file name order",
					},
					&cli.Float64Flag{
						Name:  flagScale,
						Value: 1,
						Usage: "resize frames by this factor before processing",
					},
					&cli.PathFlag{
						Name:  flagOut,
						Usage: "directory where the correspondences of every frame are drawn",
					},
					&cli.BoolFlag{
						Name:  flagNormalized,
						Usage: "print correspondences in normalized camera coordinates",
					},
					&cli.BoolFlag{
						Name:  flagMotion,
						Usage: "estimate the camera motion between consecutive frames",
					},
				},
				Action: RunAction,
			},
		},
	}
}

// RunAction is the action of the run command.
func RunAction(c *cli.Context) error {
	logger := logging.NewLogger("vofrontend")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("vofrontend")
	}

	cfg := odometry.NewDefaultFrontendConfig()
	if path := c.Path(flagConfig); path != "" {
		var err error
		if cfg, err = odometry.LoadFrontendConfig(path); err != nil {
			return err
		}
	}
	if c.Bool(flagNormalized) {
		cfg.NormalizedOutput = true
	}
	// the camera was calibrated on frames of the original size
	if scale := c.Float64(flagScale); scale > 0 && scale != 1 {
		cfg.ScaleCamera(scale)
	}
	extractor, err := odometry.NewExtractor(cfg, logger)
	if err != nil {
		return errors.Wrap(err, "cannot create frontend")
	}
	frames, err := newFrameSource(c.Path(flagFrames), c.Float64(flagScale))
	if err != nil {
		return err
	}
	outDir := c.Path(flagOut)
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o750); err != nil {
			return err
		}
	}

	// motion is estimated in ray coordinates
	motionCam := extractor.Camera()
	if cfg.NormalizedOutput {
		motionCam = transform.NewIdentityCameraModel()
	}

	var errs error
	total, failed := 0, 0
	for {
		img, path, ok, err := frames.Next()
		if !ok {
			break
		}
		name := filepath.Base(path)
		if err != nil {
			failed++
			errs = multierr.Append(errs, err)
			continue
		}
		corrs, err := extractor.Extract(img)
		if err != nil {
			failed++
			errs = multierr.Append(errs, errors.Wrapf(err, "frame %q", name))
			continue
		}
		total += len(corrs)
		stats := extractor.LastStats()
		fmt.Fprintf(c.App.Writer, "%s\tkeypoints=%d\tcorrespondences=%d\n", name, stats.Keypoints, len(corrs))
		if c.Bool(flagMotion) && len(corrs) > 0 {
			printMotion(c, logger, corrs, motionCam)
		}
		if outDir != "" {
			base := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name)))
			errs = multierr.Append(errs, keypoints.SaveKeypointsPlot(img, extractor.LastFrame().Points, base+"_keypoints.png"))
			if !cfg.NormalizedOutput {
				errs = multierr.Append(errs, odometry.SaveCorrespondencesPlot(img, corrs, base+"_tracks.png"))
			}
		}
	}
	logger.Infow("done", "frames", frames.Len(), "failed", failed, "correspondences", total)
	return errs
}

func printMotion(c *cli.Context, logger logging.Logger, corrs []odometry.Correspondence, cam *transform.CameraModel) {
	motion, err := odometry.EstimateMotion(corrs, cam)
	if err != nil {
		logger.Debugw("cannot estimate motion", "error", err)
		return
	}
	t := motion.TranslationVector()
	fmt.Fprintf(c.App.Writer, "\tdirection=(%.4f, %.4f, %.4f)\tin_front=%d\n", t.X, t.Y, t.Z, motion.InFront)
}
