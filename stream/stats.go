package stream

import (
	"fmt"
	"sync"
	"time"
)

// PipelineStats tracks performance metrics for the stages of the frame loop
type PipelineStats struct {
	mu             sync.Mutex
	processCount   int64
	writeCount     int64
	writeErrors    int64
	timeouts       int64
	lastReportTime time.Time

	// Timing measurements
	waitTimeTotal     time.Duration
	trackTimeTotal    time.Duration
	annotateTimeTotal time.Duration
	writeTimeTotal    time.Duration
	annotateCount     int64
}

// StatsSnapshot is one reporting window of PipelineStats
type StatsSnapshot struct {
	Window      time.Duration
	ProcessFPS  float64
	WriteFPS    float64
	Processed   int64
	Written     int64
	WriteErrors int64
	Timeouts    int64
	AvgWait     time.Duration
	AvgTrack    time.Duration
	AvgAnnotate time.Duration
	AvgWrite    time.Duration
}

// NewPipelineStats creates a new pipeline statistics tracker
func NewPipelineStats() *PipelineStats {
	return &PipelineStats{lastReportTime: time.Now()}
}

// GetStats returns the current window and resets counters
func (ps *PipelineStats) GetStats() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	window := now.Sub(ps.lastReportTime)
	seconds := window.Seconds()
	if seconds <= 0 {
		seconds = 1.0 // Prevent division by zero
	}

	s := StatsSnapshot{
		Window:      window,
		ProcessFPS:  float64(ps.processCount) / seconds,
		WriteFPS:    float64(ps.writeCount) / seconds,
		Processed:   ps.processCount,
		Written:     ps.writeCount,
		WriteErrors: ps.writeErrors,
		Timeouts:    ps.timeouts,
	}
	if ps.processCount > 0 {
		s.AvgWait = ps.waitTimeTotal / time.Duration(ps.processCount)
		s.AvgTrack = ps.trackTimeTotal / time.Duration(ps.processCount)
	}
	if ps.annotateCount > 0 {
		s.AvgAnnotate = ps.annotateTimeTotal / time.Duration(ps.annotateCount)
	}
	if ps.writeCount > 0 {
		s.AvgWrite = ps.writeTimeTotal / time.Duration(ps.writeCount)
	}

	// Reset counters but keep timestamps
	ps.processCount = 0
	ps.writeCount = 0
	ps.writeErrors = 0
	ps.timeouts = 0
	ps.waitTimeTotal = 0
	ps.trackTimeTotal = 0
	ps.annotateTimeTotal = 0
	ps.writeTimeTotal = 0
	ps.annotateCount = 0
	ps.lastReportTime = now

	return s
}

// SinceReport returns the time elapsed in the current window
func (ps *PipelineStats) SinceReport() time.Duration {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return time.Since(ps.lastReportTime)
}

// UpdateProcess records one frame taken from the mailbox and run through the cascade
func (ps *PipelineStats) UpdateProcess(wait, track time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.processCount++
	ps.waitTimeTotal += wait
	ps.trackTimeTotal += track
}

// UpdateAnnotate updates overlay statistics
func (ps *PipelineStats) UpdateAnnotate(duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.annotateCount++
	ps.annotateTimeTotal += duration
}

// UpdateWrite updates sink statistics
func (ps *PipelineStats) UpdateWrite(duration time.Duration, err error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if err != nil {
		ps.writeErrors++
		return
	}
	ps.writeCount++
	ps.writeTimeTotal += duration
}

// UpdateTimeout counts a pull that gave up waiting
func (ps *PipelineStats) UpdateTimeout() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.timeouts++
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("process %.1f fps, write %.1f fps | wait %v track %v overlay %v write %v | timeouts %d write errors %d",
		s.ProcessFPS, s.WriteFPS,
		s.AvgWait.Round(time.Microsecond), s.AvgTrack.Round(time.Microsecond),
		s.AvgAnnotate.Round(time.Microsecond), s.AvgWrite.Round(time.Microsecond),
		s.Timeouts, s.WriteErrors)
}
