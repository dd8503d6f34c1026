package detection

import (
	"trackcam/tracking"

	"gocv.io/x/gocv"
)

// GPUProvider implements YOLO inference using OpenCV CUDA backend
type GPUProvider struct {
	yoloNet
}

// Initialize initializes the GPU provider with model files
func (gp *GPUProvider) Initialize(cfg ModelConfig) error {
	return gp.load(cfg, gocv.NetBackendCUDA, gocv.NetTargetCUDA)
}

// Detect performs object detection on a frame using GPU
func (gp *GPUProvider) Detect(frame gocv.Mat) ([]tracking.Detection, error) {
	return gp.detect(frame)
}

// Close releases resources used by the GPU provider
func (gp *GPUProvider) Close() error {
	return gp.close()
}

// GetProviderInfo returns information about the GPU provider
func (gp *GPUProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:    "GPU",
		Backend: "OpenCV CUDA",
		Device:  "NVIDIA GPU",
	}
}
