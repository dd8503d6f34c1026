package tracking

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dets(boxes ...image.Rectangle) []Detection {
	out := make([]Detection, 0, len(boxes))
	for i, b := range boxes {
		out = append(out, Detection{Box: b, ClassID: i, Confidence: 0.5 + 0.1*float64(i)})
	}
	return out
}

func TestAssociate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		detections []Detection
		prior      image.Rectangle
		hasPrior   bool
		wantIndex  int
		wantPrior  bool
	}{
		{
			name:       "prior overlaps first",
			detections: dets(box(90, 90, 60, 60), box(500, 500, 20, 20)),
			prior:      box(100, 100, 50, 50),
			hasPrior:   true,
			wantIndex:  0,
			wantPrior:  true,
		},
		{
			name:       "prior overlaps a later detection",
			detections: dets(box(500, 400, 20, 20), box(90, 90, 60, 60)),
			prior:      box(100, 100, 50, 50),
			hasPrior:   true,
			wantIndex:  1,
			wantPrior:  true,
		},
		{
			name:       "no prior takes first in output order",
			detections: dets(box(10, 10, 20, 20), box(30, 30, 20, 20)),
			wantIndex:  0,
		},
		{
			name:       "prior overlaps nothing",
			detections: dets(box(400, 400, 20, 20), box(300, 300, 20, 20)),
			prior:      box(0, 0, 50, 50),
			hasPrior:   true,
			wantIndex:  0,
		},
		{
			name:       "ties keep the earliest",
			detections: dets(box(0, 0, 20, 20), box(10, 10, 20, 20), box(0, 0, 20, 20)),
			prior:      box(0, 0, 20, 20),
			hasPrior:   true,
			wantIndex:  0,
			wantPrior:  true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sel, ok := Associate(tt.detections, tt.prior, tt.hasPrior)
			require.True(t, ok)
			assert.Equal(t, tt.wantIndex, sel.Index)
			assert.Equal(t, tt.wantPrior, sel.ByPrior)
			if diff := cmp.Diff(tt.detections[tt.wantIndex], sel.Detection); diff != "" {
				t.Errorf("selected detection mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssociate_Empty(t *testing.T) {
	t.Parallel()
	_, ok := Associate(nil, box(0, 0, 10, 10), true)
	assert.False(t, ok)
}
