// Package config holds the runtime configuration: detector model, tracker
// pairs and their acceptance thresholds, video pipelines and timeouts.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrUnknownPair is returned when a tracker pair name is not configured.
var ErrUnknownPair = errors.New("unknown tracker pair")

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration. Build it once with Default or Load and
// treat it as read-only afterwards.
type Config struct {
	Model ModelConfig   `json:"model"`
	Pairs []TrackerPair `json:"pairs"`
	// Pair selects the active entry of Pairs by name.
	Pair string `json:"pair"`

	Source SourceConfig `json:"source"`
	Sink   SinkConfig   `json:"sink"`

	PullTimeout      string `json:"pull_timeout"`      // duration string like "5s"
	StatsInterval    string `json:"stats_interval"`    // duration string, "0s" disables
	RedetectInterval int    `json:"redetect_interval"` // frames, 0 disables
	MonitorHistory   int    `json:"monitor_history"`

	// StorePath enables track persistence when non-empty.
	StorePath string `json:"store_path,omitempty"`
}

// ModelConfig locates the YOLOv8 ONNX export
type ModelConfig struct {
	Path          string  `json:"path"`
	NamesPath     string  `json:"names_path,omitempty"`
	InputWidth    int     `json:"input_width"`
	InputHeight   int     `json:"input_height"`
	MinConfidence float64 `json:"min_confidence"`
	Classes       []int   `json:"classes,omitempty"`
	// Accelerator is "cpu", "cuda" or "auto" (CUDA when a device is found).
	Accelerator string `json:"accelerator"`
}

// TrackerPair is a primary tracker, an optional fallback, and the score each
// must reach to be trusted. Tracker names refer to the vision registry.
type TrackerPair struct {
	Name            string  `json:"name"`
	Primary         string  `json:"primary"`
	Secondary       string  `json:"secondary,omitempty"`
	PrimaryAccept   float64 `json:"primary_accept"`
	SecondaryAccept float64 `json:"secondary_accept,omitempty"`
}

// SourceConfig is the capture pipeline
type SourceConfig struct {
	Pipeline string `json:"pipeline"`
	SinkName string `json:"sink_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// SinkConfig is the display pipeline
type SinkConfig struct {
	Pipeline  string `json:"pipeline"`
	SrcName   string `json:"src_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Framerate int    `json:"framerate"`
}

// Default returns the configuration for a Raspberry Pi camera feeding a
// KMS display at 1632x1232, 10 fps.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Path:          "models/yolov8n.onnx",
			InputWidth:    640,
			InputHeight:   640,
			MinConfidence: 0.5,
			Accelerator:   "cpu",
		},
		Pairs: []TrackerPair{
			{Name: "kcf-csrt", Primary: "kcf", Secondary: "csrt", PrimaryAccept: 0.45, SecondaryAccept: 0.5},
			{Name: "mil-csrt", Primary: "mil", Secondary: "csrt", PrimaryAccept: 0.45, SecondaryAccept: 0.5},
			{Name: "kcf", Primary: "kcf", PrimaryAccept: 0.3},
			{Name: "csrt", Primary: "csrt", PrimaryAccept: 0.3},
		},
		Pair: "kcf-csrt",
		Source: SourceConfig{
			Pipeline: "libcamerasrc ! videoconvert ! " +
				"video/x-raw,format=RGB,width=1632,height=1232,framerate=10/1 ! " +
				"appsink name=sink sync=false max-buffers=1 drop=true",
			SinkName: "sink",
			Width:    1632,
			Height:   1232,
		},
		Sink: SinkConfig{
			Pipeline:  "appsrc name=src is-live=true block=true format=time ! videoconvert ! kmssink",
			SrcName:   "src",
			Width:     1632,
			Height:    1232,
			Framerate: 10,
		},
		PullTimeout:    "5s",
		StatsInterval:  "10s",
		MonitorHistory: 50,
	}
}

// Load reads a JSON file over the defaults. Fields omitted from the file
// keep their default values; a "pairs" list replaces the default list.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	defaultPairs := cfg.Pairs
	cfg.Pairs = nil
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if len(cfg.Pairs) == 0 {
		cfg.Pairs = defaultPairs
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}
	if c.Model.InputWidth <= 0 || c.Model.InputHeight <= 0 {
		return fmt.Errorf("model input size must be positive, got %dx%d", c.Model.InputWidth, c.Model.InputHeight)
	}
	if err := unitInterval("model.min_confidence", c.Model.MinConfidence); err != nil {
		return err
	}
	switch c.Model.Accelerator {
	case "cpu", "cuda", "auto":
	default:
		return fmt.Errorf("model.accelerator must be cpu, cuda or auto, got %q", c.Model.Accelerator)
	}
	for _, id := range c.Model.Classes {
		if id < 0 {
			return fmt.Errorf("model.classes must be non-negative, got %d", id)
		}
	}

	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one tracker pair is required")
	}
	seen := make(map[string]bool, len(c.Pairs))
	for _, p := range c.Pairs {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate tracker pair %q", p.Name)
		}
		seen[p.Name] = true
	}
	if _, err := c.FindPair(c.Pair); err != nil {
		return err
	}

	if c.Source.Pipeline == "" || c.Source.SinkName == "" {
		return fmt.Errorf("source.pipeline and source.sink_name are required")
	}
	if c.Sink.Pipeline == "" || c.Sink.SrcName == "" {
		return fmt.Errorf("sink.pipeline and sink.src_name are required")
	}
	if c.Sink.Width <= 0 || c.Sink.Height <= 0 || c.Sink.Framerate <= 0 {
		return fmt.Errorf("sink size and framerate must be positive, got %dx%d@%d", c.Sink.Width, c.Sink.Height, c.Sink.Framerate)
	}

	if d, err := time.ParseDuration(c.PullTimeout); err != nil {
		return fmt.Errorf("invalid pull_timeout '%s': %w", c.PullTimeout, err)
	} else if d <= 0 {
		return fmt.Errorf("pull_timeout must be positive, got %s", c.PullTimeout)
	}
	if d, err := time.ParseDuration(c.StatsInterval); err != nil {
		return fmt.Errorf("invalid stats_interval '%s': %w", c.StatsInterval, err)
	} else if d < 0 {
		return fmt.Errorf("stats_interval must be non-negative, got %s", c.StatsInterval)
	}
	if c.RedetectInterval < 0 {
		return fmt.Errorf("redetect_interval must be non-negative, got %d", c.RedetectInterval)
	}
	if c.MonitorHistory <= 0 {
		return fmt.Errorf("monitor_history must be positive, got %d", c.MonitorHistory)
	}
	return nil
}

// Validate checks a single tracker pair
func (p TrackerPair) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("tracker pair name is required")
	}
	if p.Primary == "" {
		return fmt.Errorf("tracker pair %q: primary tracker is required", p.Name)
	}
	if err := unitInterval(fmt.Sprintf("tracker pair %q primary_accept", p.Name), p.PrimaryAccept); err != nil {
		return err
	}
	if p.Secondary != "" {
		if err := unitInterval(fmt.Sprintf("tracker pair %q secondary_accept", p.Name), p.SecondaryAccept); err != nil {
			return err
		}
	}
	return nil
}

// FindPair returns the pair with the given name
func (c *Config) FindPair(name string) (TrackerPair, error) {
	for _, p := range c.Pairs {
		if p.Name == name {
			return p, nil
		}
	}
	names := make([]string, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		names = append(names, p.Name)
	}
	return TrackerPair{}, fmt.Errorf("%w %q (have %v)", ErrUnknownPair, name, names)
}

// ActivePair returns the pair selected by Pair
func (c *Config) ActivePair() (TrackerPair, error) {
	return c.FindPair(c.Pair)
}

// GetPullTimeout returns how long the processor waits for a frame
func (c *Config) GetPullTimeout() time.Duration {
	d, err := time.ParseDuration(c.PullTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// GetStatsInterval returns the pipeline report period, zero when disabled
func (c *Config) GetStatsInterval() time.Duration {
	d, err := time.ParseDuration(c.StatsInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

func unitInterval(field string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %f", field, v)
	}
	return nil
}
