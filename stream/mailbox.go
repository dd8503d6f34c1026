// Package stream moves frames from a live source to the tracking cascade and
// on to a display sink without ever queueing more than one frame, and watches
// the source's control channel for fatal conditions.
package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPullTimeout is returned by Pull when no item arrived in time.
	ErrPullTimeout = errors.New("timed out waiting for frame")
	// ErrMailboxClosed is returned by Pull once the mailbox is closed and empty.
	ErrMailboxClosed = errors.New("mailbox closed")
)

// Closer is anything the mailbox may have to release on the owner's behalf
type Closer interface {
	Close() error
}

// Mailbox is a single-slot, overwrite-on-publish hand-off between one
// producer and one consumer. Publish never blocks: an unconsumed item is
// closed and replaced, so the consumer always sees the freshest item.
type Mailbox[T Closer] struct {
	mu      sync.Mutex
	item    T
	pending bool
	closed  bool

	signal chan struct{}
	done   chan struct{}

	published atomic.Uint64
	drops     atomic.Uint64
}

// NewMailbox returns an empty mailbox
func NewMailbox[T Closer]() *Mailbox[T] {
	return &Mailbox[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish hands item to the consumer. It reports false if the mailbox is
// closed, in which case item has already been released.
func (m *Mailbox[T]) Publish(item T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		item.Close()
		return false
	}

	var stale T
	dropped := m.pending
	if dropped {
		stale = m.item
	}
	m.item = item
	m.pending = true
	m.mu.Unlock()

	m.published.Add(1)
	if dropped {
		m.drops.Add(1)
		stale.Close()
	}

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// Pull takes the pending item, waiting up to timeout for one to arrive.
// A timeout of zero or less waits until an item, Close, or ctx.
func (m *Mailbox[T]) Pull(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		m.mu.Lock()
		if m.pending {
			item := m.item
			m.item = zero
			m.pending = false
			m.mu.Unlock()
			return item, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return zero, ErrMailboxClosed
		}

		select {
		case <-m.signal:
		case <-m.done:
		case <-expired:
			return zero, ErrPullTimeout
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close releases any pending item and wakes a blocked Pull. Idempotent.
func (m *Mailbox[T]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	item, pending := m.item, m.pending
	var zero T
	m.item = zero
	m.pending = false
	m.mu.Unlock()

	close(m.done)
	if pending {
		return item.Close()
	}
	return nil
}

// Len is 1 while an item waits for the consumer, 0 otherwise
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending {
		return 1
	}
	return 0
}

// Published counts every item accepted by Publish
func (m *Mailbox[T]) Published() uint64 { return m.published.Load() }

// Drops counts items overwritten before the consumer took them
func (m *Mailbox[T]) Drops() uint64 { return m.drops.Load() }
