package yolo

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tensor builds a channel-major [1, 4+classes, len(rows)] buffer from
// per-anchor rows of {xc, yc, w, h, score0, score1, ...}.
func tensor(classes int, rows ...[]float32) ([]float32, Layout) {
	layout := Layout{Channels: 4 + classes, Anchors: len(rows)}
	data := make([]float32, layout.Channels*layout.Anchors)
	for a, row := range rows {
		for c, v := range row {
			data[c*layout.Anchors+a] = v
		}
	}
	return data, layout
}

func baseOptions() Options {
	return Options{
		InputWidth:    640,
		InputHeight:   640,
		FrameWidth:    640,
		FrameHeight:   640,
		MinConfidence: 0.5,
	}
}

func TestDecode_OrderAndThreshold(t *testing.T) {
	t.Parallel()
	data, layout := tensor(3,
		[]float32{100, 100, 20, 40, 0.1, 0.7, 0.2},
		[]float32{300, 200, 50, 50, 0.2, 0.1, 0.3},
		[]float32{50, 60, 10, 10, 0.9, 0.1, 0.0},
	)

	got, err := Decode(data, layout, baseOptions())
	require.NoError(t, err)

	want := []Candidate{
		{Box: image.Rect(90, 80, 110, 120), ClassID: 1, Confidence: 0.7},
		{Box: image.Rect(45, 55, 55, 65), ClassID: 0, Confidence: 0.9},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Decode mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_ScalesToFrame(t *testing.T) {
	t.Parallel()
	data, layout := tensor(1, []float32{320, 320, 64, 64, 0.8})
	opts := baseOptions()
	opts.FrameWidth = 1280
	opts.FrameHeight = 960

	got, err := Decode(data, layout, opts)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, image.Rect(576, 432, 704, 528), got[0].Box)
}

func TestDecode_AllowListKeepsOrder(t *testing.T) {
	t.Parallel()
	data, layout := tensor(3,
		[]float32{10, 10, 4, 4, 0.9, 0, 0},
		[]float32{20, 20, 4, 4, 0, 0, 0.8},
		[]float32{30, 30, 4, 4, 0, 0.9, 0},
		[]float32{40, 40, 4, 4, 0.6, 0, 0},
	)
	opts := baseOptions()
	opts.Allow = []int{0, 2}

	got, err := Decode(data, layout, opts)
	require.NoError(t, err)

	ids := make([]int, 0, len(got))
	for _, c := range got {
		ids = append(ids, c.ClassID)
	}
	assert.Equal(t, []int{0, 2, 0}, ids)
	assert.Equal(t, 10, got[0].Box.Min.X+2)
	assert.Equal(t, 40, got[2].Box.Min.X+2)
}

func TestDecode_ShapeErrors(t *testing.T) {
	t.Parallel()
	_, err := Decode(make([]float32, 10), Layout{Channels: 84, Anchors: 8400}, baseOptions())
	assert.ErrorIs(t, err, ErrShape)

	_, err = Decode(make([]float32, 10), Layout{Channels: 4, Anchors: 2}, baseOptions())
	assert.ErrorIs(t, err, ErrShape)

	opts := baseOptions()
	opts.InputWidth = 0
	_, err = Decode(make([]float32, 10), Layout{Channels: 5, Anchors: 2}, opts)
	assert.Error(t, err)
}

func TestDecode_NothingAboveThreshold(t *testing.T) {
	t.Parallel()
	data, layout := tensor(2, []float32{10, 10, 4, 4, 0.2, 0.3})
	got, err := Decode(data, layout, baseOptions())
	require.NoError(t, err)
	assert.Empty(t, got)
}
