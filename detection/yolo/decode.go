// Package yolo decodes the raw output tensor of a YOLOv8 detection head.
//
// The head emits a single [1, 4+C, N] tensor: for each of N anchors, the box
// centre x, centre y, width and height in model input pixels followed by C
// class scores. The tensor is channel-major, so the value of channel c for
// anchor a lives at data[c*N+a].
package yolo

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrShape is returned when the tensor does not match the declared layout.
var ErrShape = errors.New("unexpected output tensor shape")

// Layout describes the [1, Channels, Anchors] output tensor.
type Layout struct {
	Channels int
	Anchors  int
}

// Classes returns the number of class-score channels
func (l Layout) Classes() int { return l.Channels - 4 }

// Options controls scaling and filtering of decoded candidates.
type Options struct {
	// Model input size the box channels are expressed in.
	InputWidth  int
	InputHeight int
	// Frame size the boxes are scaled back to.
	FrameWidth  int
	FrameHeight int
	// Candidates whose best class score is below this are dropped.
	MinConfidence float32
	// Allow, when non-empty, keeps only these class IDs.
	Allow []int
}

// Candidate is one decoded detection in frame pixels.
type Candidate struct {
	Box        image.Rectangle
	ClassID    int
	Confidence float32
}

// Decode turns the raw tensor into candidates in anchor order. No
// non-maximum suppression is applied and nothing is re-sorted.
func Decode(data []float32, layout Layout, opts Options) ([]Candidate, error) {
	if layout.Channels < 5 || layout.Anchors <= 0 {
		return nil, fmt.Errorf("%w: layout %dx%d", ErrShape, layout.Channels, layout.Anchors)
	}
	if need := layout.Channels * layout.Anchors; len(data) < need {
		return nil, fmt.Errorf("%w: %d values, need %d", ErrShape, len(data), need)
	}
	if opts.InputWidth <= 0 || opts.InputHeight <= 0 {
		return nil, fmt.Errorf("input size %dx%d must be positive", opts.InputWidth, opts.InputHeight)
	}

	sx := float32(opts.FrameWidth) / float32(opts.InputWidth)
	sy := float32(opts.FrameHeight) / float32(opts.InputHeight)
	allowed := allowSet(opts.Allow)
	n := layout.Anchors

	var out []Candidate
	for a := 0; a < n; a++ {
		classID, best := 0, float32(math.Inf(-1))
		for c := 0; c < layout.Classes(); c++ {
			if v := data[(4+c)*n+a]; v > best {
				best = v
				classID = c
			}
		}
		if best < opts.MinConfidence {
			continue
		}
		if allowed != nil && !allowed[classID] {
			continue
		}

		xc := data[a] * sx
		yc := data[n+a] * sy
		w := data[2*n+a] * sx
		h := data[3*n+a] * sy

		out = append(out, Candidate{
			Box: image.Rect(
				round(xc-w/2), round(yc-h/2),
				round(xc+w/2), round(yc+h/2),
			),
			ClassID:    classID,
			Confidence: best,
		})
	}
	return out, nil
}

func allowSet(ids []int) map[int]bool {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func round(v float32) int {
	return int(math.Round(float64(v)))
}
