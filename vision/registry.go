package vision

import (
	"errors"
	"fmt"
	"sort"

	"trackcam/tracking"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// ErrUnknownTracker is returned for a tracker name with no backend.
var ErrUnknownTracker = errors.New("unknown tracker")

var backends = map[string]func() gocv.Tracker{
	"mil":  gocv.NewTrackerMIL,
	"kcf":  contrib.NewTrackerKCF,
	"csrt": contrib.NewTrackerCSRT,
}

// Names lists the tracker backends NewFactory accepts
func Names() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewFactory returns a factory building fresh trackers of the named backend.
func NewFactory(name string) (tracking.TrackerFactory, error) {
	build, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownTracker, name, Names())
	}
	return func() (tracking.Tracker, error) {
		return newCVTracker(name, build()), nil
	}, nil
}
