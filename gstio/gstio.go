// Package gstio connects GStreamer launch pipelines to the frame loop: an
// appsink-backed camera source, an appsrc-backed display sink, and a bus
// adapter for the control-channel monitor. Frames are packed 8-bit RGB.
package gstio

import (
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
)

// Global debug function for gstio package
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

var initOnce sync.Once

func ensureInit() {
	initOnce.Do(func() { gst.Init(nil) })
}
