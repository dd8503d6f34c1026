package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU_Identity(t *testing.T) {
	t.Parallel()
	boxes := []image.Rectangle{
		XYWH(0, 0, 1, 1),
		XYWH(10, 20, 30, 40),
		XYWH(-5, -5, 10, 3),
	}
	for _, b := range boxes {
		assert.InDelta(t, 1.0, IoU(b, b), 1e-12, "box %v", b)
	}
}

func TestIoU_Symmetric(t *testing.T) {
	t.Parallel()
	pairs := [][2]image.Rectangle{
		{XYWH(0, 0, 10, 10), XYWH(5, 5, 10, 10)},
		{XYWH(100, 100, 50, 50), XYWH(90, 90, 60, 60)},
		{XYWH(0, 0, 10, 10), XYWH(50, 50, 5, 5)},
		{XYWH(0, 0, 0, 0), XYWH(0, 0, 4, 4)},
	}
	for _, p := range pairs {
		assert.Equal(t, IoU(p[0], p[1]), IoU(p[1], p[0]))
	}
}

func TestIoU_Disjoint(t *testing.T) {
	t.Parallel()
	assert.Zero(t, IoU(XYWH(0, 0, 10, 10), XYWH(20, 20, 5, 5)))
	// Touching edges do not overlap.
	assert.Zero(t, IoU(XYWH(0, 0, 10, 10), XYWH(10, 0, 10, 10)))
}

func TestIoU_PartialOverlap(t *testing.T) {
	t.Parallel()
	// 5x5 overlap, union 100+100-25.
	assert.InDelta(t, 25.0/175.0, IoU(XYWH(0, 0, 10, 10), XYWH(5, 5, 10, 10)), 1e-12)
}

func TestIoU_EmptyUnion(t *testing.T) {
	t.Parallel()
	assert.Zero(t, IoU(image.Rectangle{}, image.Rectangle{}))
}

func TestExpandRegion_ClampsTopLeft(t *testing.T) {
	t.Parallel()
	bounds := image.Rect(0, 0, 100, 100)
	got, err := ExpandRegion(bounds, XYWH(0, 0, 10, 10), 20)
	require.NoError(t, err)
	assert.Equal(t, XYWH(0, 0, 30, 30), got)
}

func TestExpandRegion_ClampsBottomRight(t *testing.T) {
	t.Parallel()
	bounds := image.Rect(0, 0, 100, 100)
	got, err := ExpandRegion(bounds, XYWH(90, 85, 10, 10), 5)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(85, 80, 100, 100), got)
}

func TestExpandRegion_Interior(t *testing.T) {
	t.Parallel()
	bounds := image.Rect(0, 0, 100, 100)
	got, err := ExpandRegion(bounds, XYWH(40, 40, 10, 10), 3)
	require.NoError(t, err)
	assert.Equal(t, XYWH(37, 37, 16, 16), got)
}

func TestExpandRegion_Invalid(t *testing.T) {
	t.Parallel()
	bounds := image.Rect(0, 0, 100, 100)

	_, err := ExpandRegion(bounds, XYWH(200, 200, 10, 10), 5)
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = ExpandRegion(bounds, XYWH(-50, 10, 10, 10), 0)
	assert.ErrorIs(t, err, ErrInvalidRegion)

	_, err = ExpandRegion(bounds, XYWH(10, 10, 0, 10), 0)
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestValidAndArea(t *testing.T) {
	t.Parallel()
	assert.True(t, Valid(XYWH(0, 0, 1, 1)))
	assert.False(t, Valid(XYWH(0, 0, 0, 1)))
	assert.Equal(t, 200, Area(XYWH(3, 3, 10, 20)))
	assert.Zero(t, Area(image.Rectangle{}))
}
