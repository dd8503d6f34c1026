package tracking

import (
	"errors"
	"fmt"
)

// ErrNoTransition is returned for a (state, signal) pair the cascade does not define.
var ErrNoTransition = errors.New("no transition defined")

// Signal is an input to the track state machine
type Signal int

const (
	SignalReacquired Signal = iota
	SignalPrimaryAccepted
	SignalSecondaryAccepted
	SignalRejected
)

func (s Signal) String() string {
	switch s {
	case SignalReacquired:
		return "reacquired"
	case SignalPrimaryAccepted:
		return "primary-accepted"
	case SignalSecondaryAccepted:
		return "secondary-accepted"
	case SignalRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// transitions is the complete cascade state machine. Lost is not terminal:
// a new track is built from it through reacquisition.
var transitions = map[TrackState]map[Signal]TrackState{
	Uninitialized: {
		SignalReacquired: Tracking,
	},
	Tracking: {
		SignalPrimaryAccepted:   Tracking,
		SignalSecondaryAccepted: TrackingDegraded,
		SignalRejected:          Lost,
	},
	TrackingDegraded: {
		SignalPrimaryAccepted:   Tracking,
		SignalSecondaryAccepted: TrackingDegraded,
		SignalRejected:          Lost,
	},
	Lost: {
		SignalReacquired: Tracking,
	},
}

// NextState looks up the transition for state on signal
func NextState(state TrackState, signal Signal) (TrackState, error) {
	next, ok := transitions[state][signal]
	if !ok {
		return state, fmt.Errorf("%w: %s on %s", ErrNoTransition, state, signal)
	}
	return next, nil
}
