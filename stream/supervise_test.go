package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trackcam/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportLog struct {
	mu      sync.Mutex
	names   []string
	reasons []error
}

func (r *reportLog) report(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.reasons = append(r.reasons, err)
}

func (r *reportLog) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

type blockingRunner struct{ stopped chan struct{} }

func (b *blockingRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	close(b.stopped)
	return nil
}

func TestSupervise_FatalSourceErrorKeepsProcessing(t *testing.T) {
	t.Parallel()
	mb := NewMailbox[tracking.Frame]()
	handler := &recordingHandler{}
	sink := &recordingSink{}
	p := NewProcessor(mb, handler, sink, ProcessorConfig{PullTimeout: 20 * time.Millisecond})

	bus := &scriptedBus{msgs: []BusMessage{
		{Kind: MessageError, Source: "libcamerasrc0", Text: "camera disconnected"},
	}}
	display := &blockingRunner{stopped: make(chan struct{})}
	reports := &reportLog{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Supervise(ctx, p, reports.report,
			Watch{Name: "source", Monitor: NewMonitor(bus, 8)},
			Watch{Name: "display", Monitor: display})
	}()

	require.Eventually(t, func() bool { return reports.count() == 1 }, time.Second, time.Millisecond)

	// The processor is still pulling after the source watcher gave up.
	for i := 1; i <= 3; i++ {
		mb.Publish(&testFrame{id: i})
		require.Eventually(t, func() bool { return len(sink.ids()) == i }, time.Second, time.Millisecond)
	}
	select {
	case err := <-done:
		t.Fatalf("Supervise returned early: %v", err)
	default:
	}

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int{1, 2, 3}, handler.ids())
	assert.Equal(t, []string{"source"}, reports.names)
	var srcErr *SourceError
	assert.True(t, errors.As(reports.reasons[0], &srcErr))
	<-display.stopped
}

func TestSupervise_EndOfStreamReported(t *testing.T) {
	t.Parallel()
	mb := NewMailbox[tracking.Frame]()
	p := NewProcessor(mb, &recordingHandler{}, &recordingSink{}, ProcessorConfig{PullTimeout: 20 * time.Millisecond})
	reports := &reportLog{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Supervise(ctx, p, reports.report,
			Watch{Name: "source", Monitor: NewMonitor(&scriptedBus{msgs: []BusMessage{{Kind: MessageEOS}}}, 4)})
	}()

	require.Eventually(t, func() bool { return reports.count() == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, reports.reasons[0], ErrEndOfStream)

	cancel()
	assert.NoError(t, <-done)
}

func TestSupervise_ProcessorExitStopsWatchers(t *testing.T) {
	t.Parallel()
	mb := NewMailbox[tracking.Frame]()
	p := NewProcessor(mb, &recordingHandler{}, &recordingSink{}, ProcessorConfig{PullTimeout: 20 * time.Millisecond})
	watcher := &blockingRunner{stopped: make(chan struct{})}

	require.NoError(t, mb.Close())
	err := Supervise(context.Background(), p, nil, Watch{Name: "display", Monitor: watcher})

	assert.NoError(t, err)
	select {
	case <-watcher.stopped:
	default:
		t.Fatal("watcher still running after Supervise returned")
	}
}
