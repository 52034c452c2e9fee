package odometry

import (
	"time"

	"github.com/montanaflynn/stats"

	"go.viam.com/vofrontend/rimage/transform"
)

// FrameStats describes how one frame went through the frontend.
type FrameStats struct {
	// Frame counts the frames given to the extractor, starting at 0.
	Frame     int
	Keypoints int
	// Matched is false when there was no previous frame to match against. The fields below are
	// only set when it is true.
	Matched        bool
	Candidates     int
	RatioSurvivors int
	OutOfBounds    int
	Inliers        int
	Status         transform.FitStatus
	Reason         string
	// MedianDisplacement is in the coordinates of the returned correspondences.
	MedianDisplacement float64
	Elapsed            time.Duration
}

// logFields returns the stats as structured logging key/values.
func (fs FrameStats) logFields() []interface{} {
	fields := []interface{}{"frame", fs.Frame, "keypoints", fs.Keypoints}
	if fs.Matched {
		fields = append(fields,
			"candidates", fs.Candidates,
			"ratio_survivors", fs.RatioSurvivors,
			"inliers", fs.Inliers,
			"fit", fs.Status.String(),
			"median_displacement", fs.MedianDisplacement,
		)
	}
	return append(fields, "elapsed", fs.Elapsed)
}

// medianDisplacement returns the median length of the displacements of corrs, 0 when there are none.
func medianDisplacement(corrs []Correspondence) float64 {
	if len(corrs) == 0 {
		return 0
	}
	data := make(stats.Float64Data, len(corrs))
	for i, c := range corrs {
		data[i] = c.Displacement().Norm()
	}
	median, err := data.Median()
	if err != nil {
		return 0
	}
	return median
}
