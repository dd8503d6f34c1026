package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trackcam/tracking"
)

// FrameSource yields frames one at a time. *Mailbox[tracking.Frame] is one.
type FrameSource interface {
	Pull(ctx context.Context, timeout time.Duration) (tracking.Frame, error)
}

// Handler runs the tracking cascade on a frame. *tracking.Session is one.
type Handler interface {
	Process(frame tracking.Frame) tracking.Observation
}

// Annotator draws an observation onto the frame before it is forwarded
type Annotator interface {
	Annotate(frame tracking.Frame, obs tracking.Observation) error
}

// Sink accepts processed frames. Push must copy what it needs; the
// processor closes the frame as soon as Push returns.
type Sink interface {
	Push(frame tracking.Frame) error
}

// ObservationFunc is called with every observation the handler returns
type ObservationFunc func(seq uint64, obs tracking.Observation)

// ProcessorConfig controls the frame loop
type ProcessorConfig struct {
	PullTimeout   time.Duration
	StatsInterval time.Duration // zero disables the periodic report
	Annotator     Annotator
	OnObservation ObservationFunc
}

// Processor is the frame-processing task: pull, track, annotate, forward,
// release. One frame is in flight at a time.
type Processor struct {
	source  FrameSource
	handler Handler
	sink    Sink
	cfg     ProcessorConfig
	stats   *PipelineStats
	drops   func() uint64
	seq     uint64
}

// NewProcessor wires a processor. If source also reports Drops, they are
// included in the periodic report.
func NewProcessor(source FrameSource, handler Handler, sink Sink, cfg ProcessorConfig) *Processor {
	p := &Processor{
		source:  source,
		handler: handler,
		sink:    sink,
		cfg:     cfg,
		stats:   NewPipelineStats(),
	}
	if d, ok := source.(interface{ Drops() uint64 }); ok {
		p.drops = d.Drops
	}
	return p
}

// Stats exposes the processor's counters
func (p *Processor) Stats() *PipelineStats { return p.stats }

// Run processes frames until ctx is cancelled or the source is closed.
func (p *Processor) Run(ctx context.Context) error {
	debugMsg("PIPELINE", fmt.Sprintf("processor started (pull timeout %v)", p.cfg.PullTimeout))
	defer debugMsg("PIPELINE", "processor stopped")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		p.maybeReport()

		waitStart := time.Now()
		frame, err := p.source.Pull(ctx, p.cfg.PullTimeout)
		switch {
		case err == nil:
		case errors.Is(err, ErrPullTimeout):
			p.stats.UpdateTimeout()
			debugMsg("PIPELINE", fmt.Sprintf("no frame within %v, waiting again", p.cfg.PullTimeout))
			continue
		case errors.Is(err, ErrMailboxClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return fmt.Errorf("pull frame: %w", err)
		}

		p.handle(frame, time.Since(waitStart))
	}
}

func (p *Processor) handle(frame tracking.Frame, wait time.Duration) {
	defer frame.Close()
	p.seq++

	trackStart := time.Now()
	obs := p.handler.Process(frame)
	p.stats.UpdateProcess(wait, time.Since(trackStart))

	if p.cfg.OnObservation != nil {
		p.cfg.OnObservation(p.seq, obs)
	}

	if p.cfg.Annotator != nil {
		annotateStart := time.Now()
		if err := p.cfg.Annotator.Annotate(frame, obs); err != nil {
			debugMsg("PIPELINE", fmt.Sprintf("frame %d: overlay failed: %v", p.seq, err))
		}
		p.stats.UpdateAnnotate(time.Since(annotateStart))
	}

	if p.sink == nil {
		return
	}
	writeStart := time.Now()
	err := p.sink.Push(frame)
	p.stats.UpdateWrite(time.Since(writeStart), err)
	if err != nil {
		debugMsg("PIPELINE", fmt.Sprintf("frame %d: sink rejected frame, dropping: %v", p.seq, err))
	}
}

func (p *Processor) maybeReport() {
	if p.cfg.StatsInterval <= 0 || p.stats.SinceReport() < p.cfg.StatsInterval {
		return
	}
	s := p.stats.GetStats()
	msg := s.String()
	if p.drops != nil {
		msg += fmt.Sprintf(" | dropped %d total", p.drops())
	}
	debugMsg("PIPELINE", msg)
}
