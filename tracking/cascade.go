package tracking

import (
	"fmt"
	"image"
	"time"

	"trackcam/geometry"

	"github.com/google/uuid"
)

// Pair is a primary/secondary tracker combination with its own calibrated
// acceptance thresholds. Scores are accepted when score >= threshold.
// Secondary may be nil for single-tracker pairs.
type Pair struct {
	Name            string
	Primary         TrackerFactory
	Secondary       TrackerFactory
	PrimaryAccept   float64
	SecondaryAccept float64
}

// Track is one lock on a target: a primary tracker, a lazily built fallback
// tracker and the last observation trusted enough to bootstrap that fallback.
// A Track is owned by a single goroutine. Once Lost it is replaced, never revived.
type Track struct {
	id    string
	pair  Pair
	state TrackState

	box   image.Rectangle
	score float64

	// Last-known-good pair. lkgFrame is a clone owned by the track.
	lkgBox   image.Rectangle
	lkgFrame Frame

	primary   Tracker
	secondary Tracker

	updates  int
	recorder Recorder
}

// NewTrack initializes a fresh primary tracker on box against frame.
// The frame is cloned; the caller keeps ownership of frame.
func NewTrack(frame Frame, box image.Rectangle, pair Pair, recorder Recorder) (*Track, error) {
	if !geometry.Valid(box) {
		return nil, fmt.Errorf("initial box %v: %w", box, geometry.ErrInvalidRegion)
	}
	if pair.Primary == nil {
		return nil, fmt.Errorf("tracker pair %q has no primary tracker", pair.Name)
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}

	primary, err := pair.Primary()
	if err != nil {
		return nil, fmt.Errorf("create primary tracker for pair %q: %w", pair.Name, err)
	}
	if err := primary.Init(frame, box); err != nil {
		primary.Close()
		return nil, fmt.Errorf("init primary tracker for pair %q: %w", pair.Name, err)
	}

	t := &Track{
		id:       uuid.NewString(),
		pair:     pair,
		state:    Uninitialized,
		primary:  primary,
		recorder: recorder,
	}
	t.state, err = NextState(t.state, SignalReacquired)
	if err != nil {
		primary.Close()
		return nil, err
	}
	t.box = box
	t.score = 1
	t.setLastKnownGood(box, frame)
	return t, nil
}

// ID returns the unique track identifier
func (t *Track) ID() string { return t.id }

// State returns the current cascade state
func (t *Track) State() TrackState { return t.state }

// Updates returns how many frames this track has been asked to follow
func (t *Track) Updates() int { return t.updates }

// Pair returns the tracker pair configuration of the track
func (t *Track) Pair() Pair { return t.pair }

// LastKnownGood returns the last trusted box, if the track still holds one
func (t *Track) LastKnownGood() (image.Rectangle, bool) {
	if t.lkgFrame == nil {
		return image.Rectangle{}, false
	}
	return t.lkgBox, true
}

// Update runs one cascade cycle on frame. It never returns an error:
// capability failures count as a failed score and drive the fallback path.
func (t *Track) Update(frame Frame) Observation {
	if !t.state.Active() {
		return Observation{TrackID: t.id, State: t.state, At: time.Now()}
	}
	t.updates++

	box, score, ok := t.runPrimary(frame)
	if ok && score >= t.pair.PrimaryAccept {
		// A fallback tracker from an earlier episode is anchored on stale geometry.
		t.releaseSecondary()
		t.accept(frame, SignalPrimaryAccepted, box, score, SourcePrimary)
		return t.observation(SourcePrimary)
	}
	debugMsgVerbose("CASCADE", fmt.Sprintf("track %s primary score %.3f below %.3f (ok=%v)",
		shortID(t.id), score, t.pair.PrimaryAccept, ok))

	if t.pair.Secondary != nil {
		box, score, ok = t.runSecondary(frame)
		if ok && score >= t.pair.SecondaryAccept {
			t.accept(frame, SignalSecondaryAccepted, box, score, SourceSecondary)
			return t.observation(SourceSecondary)
		}
		debugMsgVerbose("CASCADE", fmt.Sprintf("track %s secondary score %.3f below %.3f (ok=%v)",
			shortID(t.id), score, t.pair.SecondaryAccept, ok))
	}

	t.lose(score)
	return Observation{TrackID: t.id, State: t.state, Score: score, At: time.Now()}
}

// Close releases trackers and the last-known-good snapshot. Safe to call twice.
func (t *Track) Close() {
	t.releaseLastKnownGood()
	t.releaseSecondary()
	if t.primary != nil {
		t.primary.Close()
		t.primary = nil
	}
}

func (t *Track) runPrimary(frame Frame) (image.Rectangle, float64, bool) {
	if t.primary == nil {
		return image.Rectangle{}, 0, false
	}
	box, score, err := t.primary.Update(frame)
	if err != nil {
		debugMsg("CASCADE", fmt.Sprintf("track %s primary update failed: %v", shortID(t.id), err))
		return image.Rectangle{}, 0, false
	}
	return clampToFrame(frame, box, score)
}

func (t *Track) runSecondary(frame Frame) (image.Rectangle, float64, bool) {
	if t.secondary == nil {
		if t.lkgFrame == nil {
			return image.Rectangle{}, 0, false
		}
		secondary, err := t.pair.Secondary()
		if err != nil {
			debugMsg("CASCADE", fmt.Sprintf("track %s create secondary failed: %v", shortID(t.id), err))
			return image.Rectangle{}, 0, false
		}
		// Bootstrap from the last trusted observation, not the failing frame.
		if err := secondary.Init(t.lkgFrame, t.lkgBox); err != nil {
			secondary.Close()
			debugMsg("CASCADE", fmt.Sprintf("track %s init secondary failed: %v", shortID(t.id), err))
			return image.Rectangle{}, 0, false
		}
		debugMsg("CASCADE", fmt.Sprintf("track %s secondary tracker initialized on last good box %v", shortID(t.id), t.lkgBox))
		t.secondary = secondary
	}

	box, score, err := t.secondary.Update(frame)
	if err != nil {
		debugMsg("CASCADE", fmt.Sprintf("track %s secondary update failed: %v", shortID(t.id), err))
		return image.Rectangle{}, 0, false
	}
	return clampToFrame(frame, box, score)
}

func (t *Track) accept(frame Frame, signal Signal, box image.Rectangle, score float64, source Source) {
	t.box = box
	t.score = score
	t.setLastKnownGood(box, frame)
	t.move(signal, score, source, "")
}

func (t *Track) lose(score float64) {
	t.score = score
	t.releaseLastKnownGood()
	t.releaseSecondary()
	if t.primary != nil {
		t.primary.Close()
		t.primary = nil
	}
	t.move(SignalRejected, score, SourceNone, "both trackers below threshold")
}

func (t *Track) move(signal Signal, score float64, source Source, reason string) {
	next, err := NextState(t.state, signal)
	if err != nil {
		debugMsg("CASCADE", fmt.Sprintf("track %s: %v", shortID(t.id), err))
		return
	}
	prev := t.state
	t.state = next
	if prev == next {
		return
	}
	debugMsg("CASCADE", fmt.Sprintf("track %s %s -> %s (score %.3f)", shortID(t.id), prev, next, score))
	t.recorder.Record(LifecycleEvent{
		Kind:    KindStateChanged,
		TrackID: t.id,
		Pair:    t.pair.Name,
		At:      time.Now(),
		From:    prev,
		To:      next,
		Box:     t.box,
		Score:   score,
		Source:  source,
		Reason:  reason,
	})
}

func (t *Track) observation(source Source) Observation {
	return Observation{
		TrackID: t.id,
		State:   t.state,
		Box:     t.box,
		HasBox:  true,
		Score:   t.score,
		Source:  source,
		At:      time.Now(),
	}
}

func (t *Track) setLastKnownGood(box image.Rectangle, frame Frame) {
	snapshot := frame.Clone()
	t.releaseLastKnownGood()
	t.lkgBox = box
	t.lkgFrame = snapshot
}

func (t *Track) releaseLastKnownGood() {
	if t.lkgFrame != nil {
		t.lkgFrame.Close()
		t.lkgFrame = nil
	}
	t.lkgBox = image.Rectangle{}
}

func (t *Track) releaseSecondary() {
	if t.secondary != nil {
		t.secondary.Close()
		t.secondary = nil
	}
}

// clampToFrame keeps tracker output inside the frame. A box with no area
// left after clamping is a failed update.
func clampToFrame(frame Frame, box image.Rectangle, score float64) (image.Rectangle, float64, bool) {
	clamped, err := geometry.ExpandRegion(frame.Bounds(), box, 0)
	if err != nil {
		debugMsgVerbose("CASCADE", fmt.Sprintf("discarding tracker box: %v", err))
		return image.Rectangle{}, 0, false
	}
	return clamped, score, true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
