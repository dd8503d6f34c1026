package overlay

import (
	"fmt"
	"image"
	"image/color"

	"trackcam/tracking"
	"trackcam/vision"

	"gocv.io/x/gocv"
)

// Renderer draws the cascade's view of the target onto outgoing frames.
// Frames are RGB, so colors are given in RGB order.
type Renderer struct {
	trackingColor color.RGBA
	degradedColor color.RGBA
	acquireColor  color.RGBA
	searchColor   color.RGBA
	textScale     float64
	bracketLength int
}

// NewRenderer creates a renderer with the default palette
func NewRenderer() *Renderer {
	return &Renderer{
		trackingColor: color.RGBA{0, 255, 0, 255},   // Bright military green
		degradedColor: color.RGBA{255, 191, 0, 255}, // Amber while the fallback tracker holds the lock
		acquireColor:  color.RGBA{0x11, 0x8a, 0x28, 255},
		searchColor:   color.RGBA{255, 0, 0, 255},
		textScale:     0.6,
		bracketLength: 15,
	}
}

// Annotate draws obs onto frame in place
func (r *Renderer) Annotate(frame tracking.Frame, obs tracking.Observation) error {
	mat, err := vision.AsMat(frame)
	if err != nil {
		return err
	}

	c := r.colorFor(obs)
	gocv.PutText(&mat, statusText(obs), image.Pt(10, 30), gocv.FontHersheySimplex, r.textScale, c, 2)
	if !obs.HasBox {
		return nil
	}

	rect := obs.Box
	if obs.Source == tracking.SourceDetector {
		gocv.Rectangle(&mat, rect, c, 2)
	} else {
		r.drawCornerBrackets(mat, rect, c, 2)
	}
	r.drawCrosshair(mat, image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2), c)

	label := fmt.Sprintf("%s %.0f%%", obs.Source, obs.Score*100)
	gocv.PutText(&mat, label, image.Pt(rect.Min.X, rect.Min.Y-5), gocv.FontHersheySimplex, 0.4, c, 1)
	return nil
}

func (r *Renderer) colorFor(obs tracking.Observation) color.RGBA {
	switch {
	case !obs.HasBox:
		return r.searchColor
	case obs.Source == tracking.SourceDetector:
		return r.acquireColor
	case obs.State == tracking.TrackingDegraded:
		return r.degradedColor
	default:
		return r.trackingColor
	}
}

// statusText is the top-left banner for an observation
func statusText(obs tracking.Observation) string {
	if !obs.HasBox {
		if obs.State == tracking.Lost {
			return "LOST - SEARCHING"
		}
		return "SEARCHING"
	}
	id := obs.TrackID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s %s", obs.State, id)
}

func (r *Renderer) drawCornerBrackets(img gocv.Mat, rect image.Rectangle, c color.RGBA, thickness int) {
	length := min(r.bracketLength, rect.Dx()/2, rect.Dy()/2)

	// Top-left corner
	gocv.Line(&img, rect.Min, image.Point{rect.Min.X + length, rect.Min.Y}, c, thickness)
	gocv.Line(&img, rect.Min, image.Point{rect.Min.X, rect.Min.Y + length}, c, thickness)

	// Top-right corner
	gocv.Line(&img, image.Point{rect.Max.X, rect.Min.Y}, image.Point{rect.Max.X - length, rect.Min.Y}, c, thickness)
	gocv.Line(&img, image.Point{rect.Max.X, rect.Min.Y}, image.Point{rect.Max.X, rect.Min.Y + length}, c, thickness)

	// Bottom-left corner
	gocv.Line(&img, image.Point{rect.Min.X, rect.Max.Y}, image.Point{rect.Min.X + length, rect.Max.Y}, c, thickness)
	gocv.Line(&img, image.Point{rect.Min.X, rect.Max.Y}, image.Point{rect.Min.X, rect.Max.Y - length}, c, thickness)

	// Bottom-right corner
	gocv.Line(&img, rect.Max, image.Point{rect.Max.X - length, rect.Max.Y}, c, thickness)
	gocv.Line(&img, rect.Max, image.Point{rect.Max.X, rect.Max.Y - length}, c, thickness)
}

func (r *Renderer) drawCrosshair(img gocv.Mat, center image.Point, c color.RGBA) {
	size, gap := 12, 3

	gocv.Line(&img, image.Point{center.X - size, center.Y}, image.Point{center.X - gap, center.Y}, c, 2)
	gocv.Line(&img, image.Point{center.X + gap, center.Y}, image.Point{center.X + size, center.Y}, c, 2)
	gocv.Line(&img, image.Point{center.X, center.Y - size}, image.Point{center.X, center.Y - gap}, c, 2)
	gocv.Line(&img, image.Point{center.X, center.Y + gap}, image.Point{center.X, center.Y + size}, c, 2)

	gocv.Circle(&img, center, 2, c, -1)
}
