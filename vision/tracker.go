package vision

import (
	"fmt"
	"image"
	"math"

	"trackcam/geometry"
	"trackcam/tracking"

	"gocv.io/x/gocv"
)

// CVTracker adapts a gocv.Tracker to the tracking.Tracker capability.
//
// gocv trackers only report success or failure, so the score is the
// normalized cross-correlation between the appearance captured at Init and
// the patch under the returned box, clamped to [0,1].
type CVTracker struct {
	name     string
	tracker  gocv.Tracker
	template gocv.Mat
	ready    bool
}

func newCVTracker(name string, t gocv.Tracker) *CVTracker {
	return &CVTracker{name: name, tracker: t}
}

func (t *CVTracker) Init(frame tracking.Frame, box image.Rectangle) error {
	if t.ready {
		return fmt.Errorf("%s tracker already initialized", t.name)
	}
	mat, err := AsMat(frame)
	if err != nil {
		return err
	}
	roi, err := geometry.ExpandRegion(frame.Bounds(), box, 0)
	if err != nil {
		return fmt.Errorf("%s tracker init: %w", t.name, err)
	}
	if !t.tracker.Init(mat, roi) {
		return fmt.Errorf("%s tracker rejected initial box %v", t.name, roi)
	}

	region := mat.Region(roi)
	t.template = region.Clone()
	region.Close()
	t.ready = true
	return nil
}

func (t *CVTracker) Update(frame tracking.Frame) (image.Rectangle, float64, error) {
	if !t.ready {
		return image.Rectangle{}, 0, fmt.Errorf("%s tracker used before init", t.name)
	}
	mat, err := AsMat(frame)
	if err != nil {
		return image.Rectangle{}, 0, err
	}

	box, ok := t.tracker.Update(mat)
	if !ok {
		return box, 0, nil
	}
	return box, t.correlate(mat, frame.Bounds(), box), nil
}

func (t *CVTracker) Close() error {
	if t.ready {
		t.template.Close()
		t.ready = false
	}
	return t.tracker.Close()
}

func (t *CVTracker) correlate(mat gocv.Mat, bounds, box image.Rectangle) float64 {
	roi, err := geometry.ExpandRegion(bounds, box, 0)
	if err != nil {
		return 0
	}

	patch := mat.Region(roi)
	defer patch.Close()

	sized := gocv.NewMat()
	defer sized.Close()
	gocv.Resize(patch, &sized, image.Pt(t.template.Cols(), t.template.Rows()), 0, 0, gocv.InterpolationLinear)

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(sized, t.template, &result, gocv.TmCcoeffNormed, mask)
	if result.Empty() {
		return 0
	}

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return clampScore(float64(maxVal))
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
