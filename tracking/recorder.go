package tracking

import (
	"image"
	"time"
)

// LifecycleKind classifies a recorded track event
type LifecycleKind int

const (
	KindStarted LifecycleKind = iota
	KindStateChanged
	KindEnded
)

func (k LifecycleKind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindStateChanged:
		return "state_changed"
	case KindEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// LifecycleEvent is a copied value describing one change in a track's life.
// Recorders receive these from the processing goroutine and must not block it.
type LifecycleEvent struct {
	Kind      LifecycleKind
	SessionID string
	TrackID   string
	Pair      string
	At        time.Time
	From      TrackState
	To        TrackState
	Box       image.Rectangle
	Score     float64
	Source    Source
	Reason    string

	// Populated on KindStarted
	Detections int
	Selected   int
	BestIoU    float64
	UsedPrior  bool
}

// Recorder receives track lifecycle events
type Recorder interface {
	Record(ev LifecycleEvent)
}

// NopRecorder discards every event
type NopRecorder struct{}

func (NopRecorder) Record(LifecycleEvent) {}
