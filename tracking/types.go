package tracking

import (
	"image"
	"time"
)

// TrackState represents where a track sits in the cascade
type TrackState int

const (
	Uninitialized TrackState = iota
	Tracking
	TrackingDegraded
	Lost
)

func (s TrackState) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Tracking:
		return "TRACKING"
	case TrackingDegraded:
		return "DEGRADED"
	case Lost:
		return "LOST"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether the state has a tracker worth updating
func (s TrackState) Active() bool {
	return s == Tracking || s == TrackingDegraded
}

// Frame is an owned image buffer. Whoever holds a Frame closes it exactly once.
type Frame interface {
	// Bounds returns the pixel rectangle of the frame, anchored at (0,0).
	Bounds() image.Rectangle
	// Clone returns an independent copy the caller owns.
	Clone() Frame
	// Close releases the underlying buffer.
	Close() error
}

// Tracker is an opaque, stateful single-object tracker. One Init per
// lifetime, then repeated Update calls. Not safe for concurrent use.
type Tracker interface {
	Init(frame Frame, box image.Rectangle) error
	// Update returns the new box and a confidence where higher is better.
	Update(frame Frame) (image.Rectangle, float64, error)
	Close() error
}

// TrackerFactory builds a fresh, uninitialized Tracker
type TrackerFactory func() (Tracker, error)

// Detection is a single detector output in frame pixel space
type Detection struct {
	Box        image.Rectangle
	ClassID    int
	ClassName  string
	Confidence float64
}

// Detector runs full-frame object detection. The order of the returned
// detections is the model's native order and is significant.
type Detector interface {
	Infer(frame Frame) ([]Detection, error)
}

// Source identifies which stage of the cascade produced an observation
type Source int

const (
	SourceNone Source = iota
	SourcePrimary
	SourceSecondary
	SourceDetector
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceSecondary:
		return "secondary"
	case SourceDetector:
		return "detector"
	default:
		return "none"
	}
}

// Observation is the outcome of one processing cycle
type Observation struct {
	TrackID string
	State   TrackState
	Box     image.Rectangle
	HasBox  bool
	Score   float64
	Source  Source
	At      time.Time
}
