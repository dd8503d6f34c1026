package stream

import (
	"fmt"
	"sync"
	"time"
)

// History stores recent control-channel lines for the fatal-error dump
type History struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	mutex    sync.RWMutex
}

// NewHistory creates a circular buffer holding the last maxLines lines
func NewHistory(maxLines int) *History {
	if maxLines < 1 {
		maxLines = 1
	}
	return &History{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Add stores a new line in the circular buffer
func (h *History) Add(line string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.lines[h.index] = fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05.000"), line)
	h.index = (h.index + 1) % h.maxLines
	if h.index == 0 {
		h.full = true
	}
}

// Recent returns the stored lines, oldest first
func (h *History) Recent() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.full {
		out := make([]string, h.index)
		copy(out, h.lines[:h.index])
		return out
	}

	out := make([]string, 0, h.maxLines)
	for i := 0; i < h.maxLines; i++ {
		out = append(out, h.lines[(h.index+i)%h.maxLines])
	}
	return out
}
