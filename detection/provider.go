package detection

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trackcam/tracking"
	"trackcam/vision"

	"gocv.io/x/gocv"
)

// Accelerator values for ModelConfig.Accelerator
const (
	AcceleratorCPU  = "cpu"  // never probe for a GPU
	AcceleratorCUDA = "cuda" // try CUDA first, fall back to CPU
	AcceleratorAuto = "auto" // use CUDA only when an NVIDIA device node is present
)

// ModelConfig describes a YOLOv8 ONNX export and how to read its output
type ModelConfig struct {
	ModelPath     string
	NamesPath     string // optional, one class name per line
	InputWidth    int
	InputHeight   int
	MinConfidence float32
	Classes       []int  // allow-list of class IDs, empty keeps all
	Accelerator   string // empty means AcceleratorCPU
}

// Global debug function for detection package
var debugMsgFunc func(string, string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

// debugMsg is a wrapper that handles nil checks
func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// InferenceProvider defines the interface for YOLO inference
type InferenceProvider interface {
	Initialize(cfg ModelConfig) error
	Detect(frame gocv.Mat) ([]tracking.Detection, error)
	Close() error
	GetProviderInfo() ProviderInfo
}

// ProviderInfo contains information about the inference provider
type ProviderInfo struct {
	Type       string        // "GPU" or "CPU"
	Backend    string        // "CUDA", "CPU"
	Device     string        // Device identifier
	InitTime   time.Duration // Time taken to load the network
	WarmupTime time.Duration // First inference on a blank frame
}

// ProviderManager handles automatic provider selection and fallback.
// It is the tracking.Detector used for reacquisition.
type ProviderManager struct {
	currentProvider InferenceProvider
	providerInfo    ProviderInfo
}

// NewProviderManager creates a new provider manager with auto-detection
func NewProviderManager() *ProviderManager {
	return &ProviderManager{}
}

// Initialize loads the network on the first provider that passes a test
// inference. Providers are tried in the order providerOrder returns.
func (pm *ProviderManager) Initialize(cfg ModelConfig) error {
	order, err := providerOrder(cfg.Accelerator, cudaDevicePresent)
	if err != nil {
		return err
	}

	var lastErr error
	for _, kind := range order {
		provider := newProvider(kind)

		startTime := time.Now()
		if err := provider.Initialize(cfg); err != nil {
			debugMsg("DETECT", fmt.Sprintf("%s provider failed to load: %v", kind, err))
			lastErr = err
			continue
		}
		initTime := time.Since(startTime)

		warmup, err := testProvider(provider, cfg)
		if err != nil {
			debugMsg("DETECT", fmt.Sprintf("%s test inference failed: %v", kind, err))
			provider.Close()
			lastErr = err
			continue
		}

		pm.currentProvider = provider
		pm.providerInfo = provider.GetProviderInfo()
		pm.providerInfo.InitTime = initTime
		pm.providerInfo.WarmupTime = warmup
		debugMsg("DETECT", fmt.Sprintf("%s provider ready (load %v, first inference %v)", kind, initTime, warmup))
		return nil
	}
	return fmt.Errorf("no inference provider could load %s: %w", cfg.ModelPath, lastErr)
}

// Infer runs the active provider on a gocv-backed frame
func (pm *ProviderManager) Infer(frame tracking.Frame) ([]tracking.Detection, error) {
	if pm.currentProvider == nil {
		return nil, fmt.Errorf("detector not initialized")
	}
	mat, err := vision.AsMat(frame)
	if err != nil {
		return nil, err
	}
	return pm.currentProvider.Detect(mat)
}

// GetProvider returns the current active provider
func (pm *ProviderManager) GetProvider() InferenceProvider {
	return pm.currentProvider
}

// GetProviderInfo returns information about the current provider
func (pm *ProviderManager) GetProviderInfo() ProviderInfo {
	return pm.providerInfo
}

// Close closes the current provider
func (pm *ProviderManager) Close() error {
	if pm.currentProvider != nil {
		return pm.currentProvider.Close()
	}
	return nil
}

// providerOrder lists the providers to try for an accelerator setting.
// CPU is always the last resort.
func providerOrder(accelerator string, cudaPresent func() bool) ([]string, error) {
	switch accelerator {
	case "", AcceleratorCPU:
		return []string{AcceleratorCPU}, nil
	case AcceleratorCUDA:
		return []string{AcceleratorCUDA, AcceleratorCPU}, nil
	case AcceleratorAuto:
		if cudaPresent() {
			return []string{AcceleratorCUDA, AcceleratorCPU}, nil
		}
		debugMsg("DETECT", "no NVIDIA device found, using CPU")
		return []string{AcceleratorCPU}, nil
	default:
		return nil, fmt.Errorf("unknown accelerator %q (want cpu, cuda or auto)", accelerator)
	}
}

func newProvider(kind string) InferenceProvider {
	if kind == AcceleratorCUDA {
		return &GPUProvider{}
	}
	return &CPUProvider{}
}

// cudaDevicePresent reports whether the NVIDIA kernel driver is loaded and
// exposes at least one device node. CUDA itself is only proven by the test
// inference.
func cudaDevicePresent() bool {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err != nil {
		return false
	}
	matches, _ := filepath.Glob("/dev/nvidia[0-9]*")
	return len(matches) > 0
}

// testProvider runs one inference on a blank input-sized frame and returns
// how long it took
func testProvider(provider InferenceProvider, cfg ModelConfig) (time.Duration, error) {
	testFrame := gocv.NewMatWithSize(cfg.InputHeight, cfg.InputWidth, gocv.MatTypeCV8UC3)
	defer testFrame.Close()

	start := time.Now()
	if _, err := provider.Detect(testFrame); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
