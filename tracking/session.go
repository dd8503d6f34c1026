package tracking

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// SessionOption configures a Session
type SessionOption func(*Session)

// WithRecorder sends track lifecycle events to r
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithRedetectInterval runs the detector every n updates of a healthy track,
// biased towards the track's last box. The track is replaced only when the
// detector yields a candidate a new track can start on; otherwise it keeps
// running. Zero disables periodic re-detection.
func WithRedetectInterval(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.redetectInterval = n
		}
	}
}

// Session drives the cascade for one video stream: it owns the active Track,
// the prior box left by the last retired Track, and the detector used for
// reacquisition.
//
// A Session belongs to the frame-processing goroutine. Process panics if it
// is entered concurrently.
type Session struct {
	id       string
	pair     Pair
	detector Detector
	recorder Recorder

	track    *Track
	prior    image.Rectangle
	hasPrior bool
	hadTrack bool

	redetectInterval int
	redetectAt       int // Updates() of the active track that triggers the next re-detection

	busy atomic.Bool
}

// NewSession creates a session with no active track
func NewSession(pair Pair, detector Detector, opts ...SessionOption) *Session {
	s := &Session{
		id:       uuid.NewString(),
		pair:     pair,
		detector: detector,
		recorder: NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier stamped on recorded events
func (s *Session) ID() string { return s.id }

// Prior returns the box the next reacquisition will be biased towards
func (s *Session) Prior() (image.Rectangle, bool) { return s.prior, s.hasPrior }

// Active returns the current track, or nil
func (s *Session) Active() *Track { return s.track }

// Process runs one cycle: follow the active track if there is one, otherwise
// reacquire from a fresh detection on the same frame.
func (s *Session) Process(frame Frame) Observation {
	if !s.busy.CompareAndSwap(false, true) {
		panic("tracking: Session.Process called concurrently; a session belongs to one goroutine")
	}
	defer s.busy.Store(false)

	if s.track != nil {
		if s.redetectDue() {
			if obs, ok := s.redetect(frame); ok {
				return obs
			}
			s.redetectAt = s.track.Updates() + s.redetectInterval
		}
		obs := s.track.Update(frame)
		if obs.HasBox {
			return obs
		}
		s.retire("lost")
	}

	return s.reacquire(frame)
}

func (s *Session) redetectDue() bool {
	return s.redetectInterval > 0 && s.track.Updates() >= s.redetectAt
}

// Close ends the active track
func (s *Session) Close() {
	if s.track != nil {
		s.retire("shutdown")
	}
	s.hasPrior = false
}

func (s *Session) reacquire(frame Frame) Observation {
	idle := Observation{State: s.idleState(), At: time.Now()}

	detections, err := s.detector.Infer(frame)
	if err != nil {
		debugMsg("REACQUIRE", fmt.Sprintf("detector failed: %v", err))
		return idle
	}
	if len(detections) == 0 {
		debugMsgVerbose("REACQUIRE", "no detections")
		return idle
	}

	sel, ok := Associate(detections, s.prior, s.hasPrior)
	if !ok {
		return idle
	}
	track, err := NewTrack(frame, sel.Detection.Box, s.pair, s.stamp())
	if err != nil {
		debugMsg("REACQUIRE", fmt.Sprintf("cannot start track on %v: %v", sel.Detection.Box, err))
		return idle
	}
	return s.install(track, len(detections), sel, s.hasPrior)
}

// redetect looks for the target again while the active track is healthy.
// The active track is only replaced once a new one has started.
func (s *Session) redetect(frame Frame) (Observation, bool) {
	debugMsgVerbose("REACQUIRE", fmt.Sprintf("track %s reached %d updates, re-detecting",
		shortID(s.track.ID()), s.track.Updates()))

	detections, err := s.detector.Infer(frame)
	if err != nil {
		debugMsg("REACQUIRE", fmt.Sprintf("re-detection failed, keeping track %s: %v", shortID(s.track.ID()), err))
		return Observation{}, false
	}
	if len(detections) == 0 {
		debugMsgVerbose("REACQUIRE", fmt.Sprintf("re-detection found nothing, keeping track %s", shortID(s.track.ID())))
		return Observation{}, false
	}

	prior, hasPrior := s.track.LastKnownGood()
	sel, ok := Associate(detections, prior, hasPrior)
	if !ok {
		return Observation{}, false
	}
	track, err := NewTrack(frame, sel.Detection.Box, s.pair, s.stamp())
	if err != nil {
		debugMsg("REACQUIRE", fmt.Sprintf("cannot restart track on %v, keeping track %s: %v",
			sel.Detection.Box, shortID(s.track.ID()), err))
		return Observation{}, false
	}

	s.retire("redetect")
	return s.install(track, len(detections), sel, hasPrior), true
}

// install makes track the active track and records its start
func (s *Session) install(track *Track, detections int, sel Selection, usedPrior bool) Observation {
	s.track = track
	s.hasPrior = false
	s.prior = image.Rectangle{}
	s.redetectAt = s.redetectInterval

	debugMsg("REACQUIRE", fmt.Sprintf("track %s started on detection %d/%d %s %v (conf %.2f, iou %.2f, prior %v)",
		shortID(track.ID()), sel.Index+1, detections, sel.Detection.ClassName, sel.Detection.Box,
		sel.Detection.Confidence, sel.IoU, usedPrior))

	s.recorder.Record(LifecycleEvent{
		Kind:       KindStarted,
		SessionID:  s.id,
		TrackID:    track.ID(),
		Pair:       s.pair.Name,
		At:         time.Now(),
		From:       Uninitialized,
		To:         track.State(),
		Box:        sel.Detection.Box,
		Score:      sel.Detection.Confidence,
		Source:     SourceDetector,
		Detections: detections,
		Selected:   sel.Index,
		BestIoU:    sel.IoU,
		UsedPrior:  usedPrior,
	})

	return Observation{
		TrackID: track.ID(),
		State:   track.State(),
		Box:     sel.Detection.Box,
		HasBox:  true,
		Score:   sel.Detection.Confidence,
		Source:  SourceDetector,
		At:      time.Now(),
	}
}

// retire drops the active track. Its last-known-good box, if it still has
// one, becomes the prior for the next reacquisition.
func (s *Session) retire(reason string) {
	t := s.track
	s.track = nil
	s.hadTrack = true

	s.prior, s.hasPrior = t.LastKnownGood()
	t.Close()

	s.recorder.Record(LifecycleEvent{
		Kind:      KindEnded,
		SessionID: s.id,
		TrackID:   t.ID(),
		Pair:      s.pair.Name,
		At:        time.Now(),
		From:      t.State(),
		To:        t.State(),
		Box:       s.prior,
		Reason:    reason,
	})
}

func (s *Session) idleState() TrackState {
	if s.hadTrack {
		return Lost
	}
	return Uninitialized
}

// stamp wraps the session recorder so track events carry the session ID
func (s *Session) stamp() Recorder {
	return sessionRecorder{id: s.id, next: s.recorder}
}

type sessionRecorder struct {
	id   string
	next Recorder
}

func (r sessionRecorder) Record(ev LifecycleEvent) {
	ev.SessionID = r.id
	r.next.Record(ev)
}
