package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEndOfStream is returned by Monitor.Run when the source reports EOS.
var ErrEndOfStream = errors.New("end of stream")

// MessageKind classifies control-channel messages
type MessageKind int

const (
	MessageOther MessageKind = iota
	MessageInfo
	MessageWarning
	MessageStateChanged
	MessageError
	MessageEOS
)

func (k MessageKind) String() string {
	switch k {
	case MessageInfo:
		return "info"
	case MessageWarning:
		return "warning"
	case MessageStateChanged:
		return "state-changed"
	case MessageError:
		return "error"
	case MessageEOS:
		return "eos"
	default:
		return "other"
	}
}

// BusMessage is one control-channel message, already decoded
type BusMessage struct {
	Kind   MessageKind
	Source string // originating element, if known
	Text   string
	Debug  string
}

func (m BusMessage) String() string {
	var b strings.Builder
	b.WriteString(m.Kind.String())
	if m.Source != "" {
		fmt.Fprintf(&b, " from %s", m.Source)
	}
	if m.Text != "" {
		fmt.Fprintf(&b, ": %s", m.Text)
	}
	if m.Debug != "" {
		fmt.Fprintf(&b, " (%s)", m.Debug)
	}
	return b.String()
}

// ControlChannel delivers asynchronous source messages. Pop returns false
// when nothing arrived within timeout.
type ControlChannel interface {
	Pop(timeout time.Duration) (BusMessage, bool)
}

// SourceError is the fatal error a video source reported on its control channel
type SourceError struct {
	Source  string
	Message string
	Debug   string
	Recent  []string
}

func (e *SourceError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("source error from %s: %s", e.Source, e.Message)
	}
	return "source error: " + e.Message
}

// Monitor watches the source's control channel. Error and end-of-stream are
// fatal and end the monitor; everything else is logged and kept in history.
// The monitor never stops the frame loop itself.
type Monitor struct {
	bus     ControlChannel
	history *History
	poll    time.Duration
}

// NewMonitor creates a monitor keeping the last historySize messages
func NewMonitor(bus ControlChannel, historySize int) *Monitor {
	return &Monitor{
		bus:     bus,
		history: NewHistory(historySize),
		poll:    250 * time.Millisecond,
	}
}

// History returns the recent message ring
func (m *Monitor) History() *History { return m.history }

// Run polls until a fatal message or ctx cancellation. It returns a
// *SourceError, ErrEndOfStream, or nil when cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, ok := m.bus.Pop(m.poll)
		if !ok {
			continue
		}
		m.history.Add(msg.String())

		switch msg.Kind {
		case MessageError:
			recent := m.history.Recent()
			debugMsg("MONITOR", fmt.Sprintf("fatal %s", msg))
			m.dump(recent)
			return &SourceError{Source: msg.Source, Message: msg.Text, Debug: msg.Debug, Recent: recent}
		case MessageEOS:
			debugMsg("MONITOR", "end of stream")
			return ErrEndOfStream
		case MessageWarning:
			debugMsg("MONITOR", msg.String())
		}
	}
}

func (m *Monitor) dump(recent []string) {
	if len(recent) <= 1 {
		return
	}
	debugMsg("MONITOR", fmt.Sprintf("last %d control messages:", len(recent)))
	for _, line := range recent {
		debugMsg("MONITOR", "  "+line)
	}
}
