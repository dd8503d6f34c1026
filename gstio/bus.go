package gstio

import (
	"fmt"
	"time"

	"trackcam/stream"

	"github.com/tinyzimmer/go-gst/gst"
)

// Bus adapts a pipeline bus to stream.ControlChannel
type Bus struct {
	name string
	bus  *gst.Bus
}

// NewBus wraps the bus of pipeline
func NewBus(pipeline *gst.Pipeline) *Bus {
	return &Bus{name: pipeline.GetName(), bus: pipeline.GetPipelineBus()}
}

// Pop waits up to timeout for the next message
func (b *Bus) Pop(timeout time.Duration) (stream.BusMessage, bool) {
	msg := b.bus.TimedPop(timeout)
	if msg == nil {
		return stream.BusMessage{}, false
	}

	out := stream.BusMessage{Source: msg.Source()}
	switch msg.Type() {
	case gst.MessageEOS:
		out.Kind = stream.MessageEOS
	case gst.MessageError:
		gerr := msg.ParseError()
		out.Kind = stream.MessageError
		out.Text = gerr.Error()
		out.Debug = gerr.DebugString()
	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		out.Kind = stream.MessageWarning
		out.Text = gerr.Error()
		out.Debug = gerr.DebugString()
	case gst.MessageInfo:
		gerr := msg.ParseInfo()
		out.Kind = stream.MessageInfo
		out.Text = gerr.Error()
	case gst.MessageStateChanged:
		// Element state changes are noise; only the pipeline's own matter.
		if msg.Source() != b.name {
			return stream.BusMessage{}, false
		}
		old, next := msg.ParseStateChanged()
		out.Kind = stream.MessageStateChanged
		out.Text = fmt.Sprintf("%v -> %v", old, next)
	default:
		return stream.BusMessage{}, false
	}
	return out, true
}
