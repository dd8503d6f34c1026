package stream

import (
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"trackcam/tracking"
)

type testFrame struct {
	id     int
	closes atomic.Int32
}

func (f *testFrame) Bounds() image.Rectangle { return image.Rect(0, 0, 64, 48) }
func (f *testFrame) Clone() tracking.Frame  { return &testFrame{id: f.id} }
func (f *testFrame) Close() error {
	f.closes.Add(1)
	return nil
}

type recordingHandler struct {
	mu   sync.Mutex
	seen []int
}

func (h *recordingHandler) Process(frame tracking.Frame) tracking.Observation {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, frame.(*testFrame).id)
	return tracking.Observation{State: tracking.Tracking, HasBox: true, Box: image.Rect(1, 1, 5, 5)}
}

func (h *recordingHandler) ids() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.seen...)
}

type recordingSink struct {
	mu     sync.Mutex
	pushed []int
	// open reports whether each frame was still unclosed when pushed
	open []bool
	err  error
}

func (s *recordingSink) Push(frame tracking.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := frame.(*testFrame)
	s.pushed = append(s.pushed, f.id)
	s.open = append(s.open, f.closes.Load() == 0)
	return s.err
}

func (s *recordingSink) ids() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pushed...)
}

type countingAnnotator struct {
	calls atomic.Int32
}

func (a *countingAnnotator) Annotate(tracking.Frame, tracking.Observation) error {
	a.calls.Add(1)
	return errors.New("font missing")
}

// scriptedBus hands out messages in order, then reports nothing.
type scriptedBus struct {
	mu   sync.Mutex
	msgs []BusMessage
	pops int
}

func (b *scriptedBus) Pop(timeout time.Duration) (BusMessage, bool) {
	b.mu.Lock()
	b.pops++
	if len(b.msgs) == 0 {
		b.mu.Unlock()
		time.Sleep(time.Millisecond)
		return BusMessage{}, false
	}
	m := b.msgs[0]
	b.msgs = b.msgs[1:]
	b.mu.Unlock()
	return m, true
}
