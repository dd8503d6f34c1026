package gstio

import (
	"fmt"

	"trackcam/tracking"
	"trackcam/vision"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// SinkConfig describes the display pipeline
type SinkConfig struct {
	Launch    string // gst-launch description starting with a named appsrc
	SrcName   string
	Width     int
	Height    int
	Framerate int
}

// Sink pushes processed frames into a GStreamer appsrc
type Sink struct {
	cfg      SinkConfig
	pipeline *gst.Pipeline
	appsrc   *app.Source
}

// NewSink parses the pipeline and fixes the appsrc caps to packed RGB
func NewSink(cfg SinkConfig) (*Sink, error) {
	ensureInit()

	pipeline, err := gst.NewPipelineFromString(cfg.Launch)
	if err != nil {
		return nil, fmt.Errorf("parse sink pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(cfg.SrcName)
	if err != nil {
		return nil, fmt.Errorf("sink pipeline has no element %q: %w", cfg.SrcName, err)
	}

	appsrc := app.SrcFromElement(elem)
	appsrc.SetCaps(gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1",
		cfg.Width, cfg.Height, cfg.Framerate,
	)))

	return &Sink{cfg: cfg, pipeline: pipeline, appsrc: appsrc}, nil
}

// Bus returns the control channel of the display pipeline
func (s *Sink) Bus() *Bus { return NewBus(s.pipeline) }

// Start sets the pipeline to PLAYING
func (s *Sink) Start() error {
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start sink pipeline: %w", err)
	}
	debugMsg("GST", "sink pipeline playing")
	return nil
}

// Push copies the frame into a new buffer. Frames whose size does not
// match the negotiated caps are refused.
func (s *Sink) Push(frame tracking.Frame) error {
	mf, ok := frame.(*vision.MatFrame)
	if !ok {
		return fmt.Errorf("%w: %T", vision.ErrForeignFrame, frame)
	}
	if b := mf.Bounds(); b.Dx() != s.cfg.Width || b.Dy() != s.cfg.Height {
		return fmt.Errorf("frame %d is %dx%d, sink expects %dx%d", mf.Seq, b.Dx(), b.Dy(), s.cfg.Width, s.cfg.Height)
	}

	if ret := s.appsrc.PushBuffer(gst.NewBufferFromBytes(mf.Bytes())); ret != gst.FlowOK {
		return fmt.Errorf("push frame %d: flow %v", mf.Seq, ret)
	}
	return nil
}

// Close signals end-of-stream and tears the pipeline down
func (s *Sink) Close() error {
	s.appsrc.EndStream()
	return s.pipeline.SetState(gst.StateNull)
}
