package gstio

import (
	"fmt"
	"sync/atomic"
	"time"

	"trackcam/tracking"
	"trackcam/vision"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Publisher receives captured frames. *stream.Mailbox[tracking.Frame] is one.
type Publisher interface {
	Publish(frame tracking.Frame) bool
}

// SourceConfig describes the capture pipeline
type SourceConfig struct {
	Launch   string // gst-launch description ending in a named appsink
	SinkName string
	// Used when the negotiated caps do not carry a size.
	Width  int
	Height int
}

// Source is a GStreamer capture pipeline whose appsink feeds a Publisher.
type Source struct {
	cfg      SourceConfig
	pipeline *gst.Pipeline
	appsink  *app.Sink
	out      Publisher

	seq     atomic.Uint64
	skipped atomic.Uint64
}

// NewSource parses the pipeline and installs the new-sample callback. The
// pipeline is not started.
func NewSource(cfg SourceConfig, out Publisher) (*Source, error) {
	ensureInit()

	pipeline, err := gst.NewPipelineFromString(cfg.Launch)
	if err != nil {
		return nil, fmt.Errorf("parse source pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(cfg.SinkName)
	if err != nil {
		return nil, fmt.Errorf("source pipeline has no element %q: %w", cfg.SinkName, err)
	}

	s := &Source{
		cfg:      cfg,
		pipeline: pipeline,
		appsink:  app.SinkFromElement(elem),
		out:      out,
	}
	s.appsink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})
	return s, nil
}

// Bus returns the control channel of the capture pipeline
func (s *Source) Bus() *Bus { return NewBus(s.pipeline) }

// Start sets the pipeline to PLAYING
func (s *Source) Start() error {
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start source pipeline: %w", err)
	}
	debugMsg("GST", "source pipeline playing")
	return nil
}

// Stop sets the pipeline to NULL
func (s *Source) Stop() error {
	return s.pipeline.SetState(gst.StateNull)
}

// Captured returns how many frames were published and how many samples
// had to be skipped
func (s *Source) Captured() (published, skipped uint64) {
	return s.seq.Load(), s.skipped.Load()
}

// onNewSample runs on a GStreamer streaming thread. It only copies the
// buffer and hands it to the publisher.
func (s *Source) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		s.skip("no sample")
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		s.skip("sample without buffer")
		return gst.FlowOK
	}

	width, height := s.frameSize(sample)

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		s.skip("empty buffer")
		return gst.FlowOK
	}

	seq := s.seq.Load() + 1
	frame, err := vision.FrameFromBytes(data, width, height, seq, time.Now())
	buffer.Unmap()
	if err != nil {
		s.skip(err.Error())
		return gst.FlowOK
	}

	s.seq.Store(seq)
	s.out.Publish(frame)
	return gst.FlowOK
}

func (s *Source) frameSize(sample *gst.Sample) (int, int) {
	width, height := s.cfg.Width, s.cfg.Height
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return width, height
	}
	st := caps.GetStructureAt(0)
	if v, err := st.GetValue("width"); err == nil {
		if w, ok := v.(int); ok {
			width = w
		}
	}
	if v, err := st.GetValue("height"); err == nil {
		if h, ok := v.(int); ok {
			height = h
		}
	}
	return width, height
}

func (s *Source) skip(reason string) {
	n := s.skipped.Add(1)
	debugMsg("GST", fmt.Sprintf("skipping unreadable sample (%s), %d skipped so far", reason, n))
}
