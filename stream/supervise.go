package stream

import (
	"context"
	"fmt"
	"sync"
)

// Runner is a long-lived task that stops when its context is cancelled.
// *Processor and *Monitor are both Runners.
type Runner interface {
	Run(ctx context.Context) error
}

// Watch names a control-channel watcher for reporting
type Watch struct {
	Name    string
	Monitor Runner
}

// WatchReport receives the error a watcher stopped with
type WatchReport func(name string, err error)

// Supervise runs processor until ctx is cancelled or the processor stops on
// its own, with every watcher alongside it. A watcher that returns (a fatal
// bus error or end of stream) only ends itself: report is told and frame
// processing carries on. Watchers are stopped and waited for before
// Supervise returns the processor's result.
func Supervise(ctx context.Context, processor Runner, report WatchReport, watchers ...Watch) error {
	watchCtx, stopWatchers := context.WithCancel(ctx)
	defer stopWatchers()

	var wg sync.WaitGroup
	for _, w := range watchers {
		wg.Add(1)
		go func(w Watch) {
			defer wg.Done()
			err := w.Monitor.Run(watchCtx)
			if err == nil {
				return
			}
			debugMsg("MONITOR", fmt.Sprintf("%s watcher stopped: %v; frame processing continues", w.Name, err))
			if report != nil {
				report(w.Name, err)
			}
		}(w)
	}

	err := processor.Run(ctx)
	stopWatchers()
	wg.Wait()
	return err
}
