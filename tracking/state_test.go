package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextState_Table(t *testing.T) {
	t.Parallel()

	states := []TrackState{Uninitialized, Tracking, TrackingDegraded, Lost}
	signals := []Signal{SignalReacquired, SignalPrimaryAccepted, SignalSecondaryAccepted, SignalRejected}

	want := map[TrackState]map[Signal]TrackState{
		Uninitialized:    {SignalReacquired: Tracking},
		Tracking:         {SignalPrimaryAccepted: Tracking, SignalSecondaryAccepted: TrackingDegraded, SignalRejected: Lost},
		TrackingDegraded: {SignalPrimaryAccepted: Tracking, SignalSecondaryAccepted: TrackingDegraded, SignalRejected: Lost},
		Lost:             {SignalReacquired: Tracking},
	}

	for _, st := range states {
		for _, sig := range signals {
			got, err := NextState(st, sig)
			if exp, ok := want[st][sig]; ok {
				require.NoError(t, err, "%s on %s", st, sig)
				assert.Equal(t, exp, got, "%s on %s", st, sig)
			} else {
				assert.ErrorIs(t, err, ErrNoTransition, "%s on %s", st, sig)
				assert.Equal(t, st, got)
			}
		}
	}
}

func TestTrackState_Active(t *testing.T) {
	t.Parallel()
	assert.False(t, Uninitialized.Active())
	assert.True(t, Tracking.Active())
	assert.True(t, TrackingDegraded.Active())
	assert.False(t, Lost.Active())
}

func TestTrackState_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "DEGRADED", TrackingDegraded.String())
	assert.Equal(t, "UNKNOWN", TrackState(42).String())
	assert.Equal(t, "secondary-accepted", SignalSecondaryAccepted.String())
}
