package tracking

import (
	"image"

	"trackcam/geometry"
)

// Selection is the detection chosen to restart tracking
type Selection struct {
	Index     int
	Detection Detection
	IoU       float64
	ByPrior   bool
}

// Associate picks the detection to restart tracking from.
//
// With a prior box the detection with the strictly greatest IoU wins, the
// earliest one on ties. Without a prior, or when nothing overlaps it, the
// first detection in the detector's output order is taken regardless of
// confidence.
func Associate(detections []Detection, prior image.Rectangle, hasPrior bool) (Selection, bool) {
	if len(detections) == 0 {
		return Selection{}, false
	}

	if hasPrior {
		best := 0.0
		idx := -1
		for i, d := range detections {
			if v := geometry.IoU(prior, d.Box); v > best {
				best = v
				idx = i
			}
		}
		if idx >= 0 {
			return Selection{Index: idx, Detection: detections[idx], IoU: best, ByPrior: true}, true
		}
	}

	return Selection{Index: 0, Detection: detections[0]}, true
}
