package trackstore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"trackcam/tracking"
)

// Writer is a tracking.Recorder that persists events on its own goroutine.
// Record never blocks the frame loop: when the queue is full the event is
// dropped and counted.
type Writer struct {
	store   *Store
	queue   chan tracking.LifecycleEvent
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewWriter starts the write worker with a queue of the given capacity
func NewWriter(store *Store, capacity int) *Writer {
	if capacity < 1 {
		capacity = 1
	}
	w := &Writer{
		store: store,
		queue: make(chan tracking.LifecycleEvent, capacity),
	}
	w.wg.Add(1)
	go w.writeWorker()
	return w
}

// Record queues ev for writing
func (w *Writer) Record(ev tracking.LifecycleEvent) {
	select {
	case w.queue <- ev:
	default:
		// Queue full, drop event to prevent blocking
		if n := w.dropped.Add(1); n == 1 || n%100 == 0 {
			debugMsg("STORE", fmt.Sprintf("write queue full, %d events dropped", n))
		}
	}
}

// Close flushes queued events and stops the worker. Record must not be
// called after Close.
func (w *Writer) Close() {
	w.once.Do(func() {
		close(w.queue)
		w.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the queue was full
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Failed returns how many events the database refused
func (w *Writer) Failed() uint64 { return w.failed.Load() }

func (w *Writer) writeWorker() {
	defer w.wg.Done()
	for ev := range w.queue {
		if err := w.store.Apply(ev); err != nil {
			w.failed.Add(1)
			debugMsg("STORE", fmt.Sprintf("write %s event: %v", ev.Kind, err))
		}
	}
}
