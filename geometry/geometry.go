// Package geometry holds the rectangle helpers shared by the tracking cascade
// and the detectors. Boxes are image.Rectangle values in frame pixel space.
package geometry

import (
	"errors"
	"fmt"
	"image"
)

// ErrInvalidRegion is returned when a clamped region has no area left.
var ErrInvalidRegion = errors.New("expanded region is invalid")

// Valid reports whether a box has positive width and height.
func Valid(box image.Rectangle) bool {
	return box.Dx() > 0 && box.Dy() > 0
}

// Area returns width*height, or 0 for boxes that are not Valid.
func Area(box image.Rectangle) int {
	if !Valid(box) {
		return 0
	}
	return box.Dx() * box.Dy()
}

// IoU returns the intersection-over-union of two boxes.
// It is 0 when the boxes do not overlap or the union is empty.
func IoU(a, b image.Rectangle) float64 {
	interW := min(a.Max.X, b.Max.X) - max(a.Min.X, b.Min.X)
	interH := min(a.Max.Y, b.Max.Y) - max(a.Min.Y, b.Min.Y)
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH
	union := a.Dx()*a.Dy() + b.Dx()*b.Dy() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// ExpandRegion grows box by margin on every side and clamps the result to
// bounds. Overflow past the left or top edge shrinks the region instead of
// shifting it. Callers must check the error before cropping.
func ExpandRegion(bounds, box image.Rectangle, margin int) (image.Rectangle, error) {
	x := box.Min.X - margin
	y := box.Min.Y - margin
	w := box.Dx() + margin*2
	h := box.Dy() + margin*2

	if x < bounds.Min.X {
		w -= bounds.Min.X - x
		x = bounds.Min.X
	}
	if y < bounds.Min.Y {
		h -= bounds.Min.Y - y
		y = bounds.Min.Y
	}
	if x+w > bounds.Max.X {
		w = bounds.Max.X - x
	}
	if y+h > bounds.Max.Y {
		h = bounds.Max.Y - y
	}

	if w <= 0 || h <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: box %v margin %d within %v", ErrInvalidRegion, box, margin, bounds)
	}
	return image.Rect(x, y, x+w, y+h), nil
}

// XYWH builds a box from the x, y, width, height form used by detectors.
func XYWH(x, y, w, h int) image.Rectangle {
	return image.Rect(x, y, x+w, y+h)
}
