package vision

import (
	"errors"
	"fmt"
	"image"
	"time"

	"trackcam/tracking"

	"gocv.io/x/gocv"
)

// ErrForeignFrame is returned when a gocv-backed component is handed a
// tracking.Frame that is not a *MatFrame.
var ErrForeignFrame = errors.New("frame is not backed by a gocv.Mat")

// MatFrame is a captured video frame held in a gocv.Mat.
type MatFrame struct {
	mat       gocv.Mat
	Seq       uint64
	Timestamp time.Time
}

// NewMatFrame takes ownership of mat
func NewMatFrame(mat gocv.Mat, seq uint64, ts time.Time) *MatFrame {
	return &MatFrame{mat: mat, Seq: seq, Timestamp: ts}
}

// FrameFromBytes copies a packed 8-bit, 3-channel buffer into a new frame.
func FrameFromBytes(data []byte, width, height int, seq uint64, ts time.Time) (*MatFrame, error) {
	if want := width * height * 3; len(data) < want {
		return nil, fmt.Errorf("frame %d: buffer holds %d bytes, %dx%d needs %d", seq, len(data), width, height, want)
	}
	mat, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, data[:width*height*3])
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", seq, err)
	}
	// NewMatFromBytes may alias data; the buffer belongs to the caller.
	owned := mat.Clone()
	mat.Close()
	return NewMatFrame(owned, seq, ts), nil
}

// Mat exposes the underlying image. It stays owned by the frame.
func (f *MatFrame) Mat() gocv.Mat { return f.mat }

func (f *MatFrame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.mat.Cols(), f.mat.Rows())
}

func (f *MatFrame) Clone() tracking.Frame {
	return &MatFrame{mat: f.mat.Clone(), Seq: f.Seq, Timestamp: f.Timestamp}
}

func (f *MatFrame) Close() error {
	return f.mat.Close()
}

// Bytes returns a copy of the packed pixel data
func (f *MatFrame) Bytes() []byte {
	return f.mat.ToBytes()
}

// AsMat unwraps a tracking.Frame produced by this package
func AsMat(frame tracking.Frame) (gocv.Mat, error) {
	mf, ok := frame.(*MatFrame)
	if !ok {
		return gocv.Mat{}, fmt.Errorf("%w: %T", ErrForeignFrame, frame)
	}
	return mf.mat, nil
}
