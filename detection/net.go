package detection

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"trackcam/detection/yolo"
	"trackcam/geometry"
	"trackcam/tracking"

	"gocv.io/x/gocv"
)

// yoloNet is the OpenCV DNN network shared by the CPU and GPU providers.
// They differ only in the backend and target they ask OpenCV for.
type yoloNet struct {
	net        gocv.Net
	cfg        ModelConfig
	classNames []string
	mu         sync.Mutex
}

func (n *yoloNet) load(cfg ModelConfig, backend gocv.NetBackendType, target gocv.NetTargetType) error {
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		return fmt.Errorf("model input size %dx%d must be positive", cfg.InputWidth, cfg.InputHeight)
	}

	n.net = gocv.ReadNet(cfg.ModelPath, "")
	if n.net.Empty() {
		return fmt.Errorf("failed to load YOLO network from %s", cfg.ModelPath)
	}
	n.net.SetPreferableBackend(backend)
	n.net.SetPreferableTarget(target)

	if cfg.NamesPath != "" {
		namesBytes, err := os.ReadFile(cfg.NamesPath)
		if err != nil {
			n.net.Close()
			return fmt.Errorf("could not read class names: %w", err)
		}
		n.classNames = parseNames(string(namesBytes))
	}
	n.cfg = cfg
	return nil
}

func (n *yoloNet) detect(frame gocv.Mat) ([]tracking.Detection, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if frame.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	// Plain resize to the model input; frames already arrive as RGB.
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(n.cfg.InputWidth, n.cfg.InputHeight),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	output := n.net.Forward("output0")
	defer output.Close()

	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("%w: dims %v", yolo.ErrShape, sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read network output: %w", err)
	}

	candidates, err := yolo.Decode(data, yolo.Layout{Channels: sizes[1], Anchors: sizes[2]}, yolo.Options{
		InputWidth:    n.cfg.InputWidth,
		InputHeight:   n.cfg.InputHeight,
		FrameWidth:    frame.Cols(),
		FrameHeight:   frame.Rows(),
		MinConfidence: n.cfg.MinConfidence,
		Allow:         n.cfg.Classes,
	})
	if err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	detections := make([]tracking.Detection, 0, len(candidates))
	for _, c := range candidates {
		box, err := geometry.ExpandRegion(bounds, c.Box, 0)
		if err != nil {
			continue
		}
		detections = append(detections, tracking.Detection{
			Box:        box,
			ClassID:    c.ClassID,
			ClassName:  n.className(c.ClassID),
			Confidence: float64(c.Confidence),
		})
	}
	return detections, nil
}

func (n *yoloNet) className(id int) string {
	if id >= 0 && id < len(n.classNames) {
		return n.classNames[id]
	}
	return fmt.Sprintf("class%d", id)
}

func (n *yoloNet) close() error {
	return n.net.Close()
}

// parseNames reads one class name per line, keeping line positions as IDs
func parseNames(raw string) []string {
	lines := strings.Split(strings.TrimRight(raw, "\n"), "\n")
	names := make([]string, len(lines))
	for i, line := range lines {
		names[i] = strings.TrimSpace(line)
	}
	return names
}
