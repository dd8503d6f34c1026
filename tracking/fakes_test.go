package tracking

import (
	"errors"
	"image"
	"sync"
)

var testBounds = image.Rect(0, 0, 640, 480)

// frameLedger counts frames that have been created or cloned but not closed.
type frameLedger struct {
	open int
}

type fakeFrame struct {
	id     int
	ledger *frameLedger
	closed bool
}

func (l *frameLedger) frame(id int) *fakeFrame {
	l.open++
	return &fakeFrame{id: id, ledger: l}
}

func (f *fakeFrame) Bounds() image.Rectangle { return testBounds }

func (f *fakeFrame) Clone() Frame {
	return f.ledger.frame(f.id)
}

func (f *fakeFrame) Close() error {
	if f.closed {
		return errors.New("double close")
	}
	f.closed = true
	f.ledger.open--
	return nil
}

type step struct {
	box   image.Rectangle
	score float64
	err   error
}

type scriptedTracker struct {
	steps   []step
	initErr error

	initCalls int
	initFrame int
	initBox   image.Rectangle
	updates   []int
	closed    bool
}

func (s *scriptedTracker) Init(frame Frame, box image.Rectangle) error {
	s.initCalls++
	s.initFrame = frame.(*fakeFrame).id
	s.initBox = box
	return s.initErr
}

func (s *scriptedTracker) Update(frame Frame) (image.Rectangle, float64, error) {
	s.updates = append(s.updates, frame.(*fakeFrame).id)
	i := len(s.updates) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	st := s.steps[i]
	return st.box, st.score, st.err
}

func (s *scriptedTracker) Close() error {
	s.closed = true
	return nil
}

// trackerFactory hands out scripted trackers; the n-th build gets scripts[n],
// or the last script once they run out.
type trackerFactory struct {
	scripts [][]step
	initErr error
	err     error
	built   []*scriptedTracker
}

func (f *trackerFactory) New() (Tracker, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := len(f.built)
	if idx >= len(f.scripts) {
		idx = len(f.scripts) - 1
	}
	t := &scriptedTracker{steps: f.scripts[idx], initErr: f.initErr}
	f.built = append(f.built, t)
	return t, nil
}

func (f *trackerFactory) last() *scriptedTracker {
	if len(f.built) == 0 {
		return nil
	}
	return f.built[len(f.built)-1]
}

type fakeDetector struct {
	responses [][]Detection
	err       error
	calls     int
}

func (d *fakeDetector) Infer(Frame) ([]Detection, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.responses) == 0 {
		return nil, nil
	}
	i := d.calls - 1
	if i >= len(d.responses) {
		i = len(d.responses) - 1
	}
	return d.responses[i], nil
}

type memRecorder struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (r *memRecorder) Record(ev LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *memRecorder) kinds() []LifecycleKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]LifecycleKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func box(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}

func accept(b image.Rectangle) step { return step{box: b, score: 0.95} }
func reject(b image.Rectangle) step { return step{box: b, score: 0.1} }

func testPair(primary, secondary *trackerFactory) Pair {
	p := Pair{
		Name:            "test",
		Primary:         primary.New,
		PrimaryAccept:   0.6,
		SecondaryAccept: 0.5,
	}
	if secondary != nil {
		p.Secondary = secondary.New
	}
	return p
}
