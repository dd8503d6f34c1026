package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trackcam/config"
	"trackcam/detection"
	"trackcam/gstio"
	"trackcam/overlay"
	"trackcam/stream"
	"trackcam/tracking"
	"trackcam/trackstore"
	"trackcam/vision"
)

// Command line flags
var (
	configPath   = flag.String("config", "", "JSON configuration file (omit for built-in defaults)")
	pairName     = flag.String("pair", "", "Tracker pair to run, overrides the configured pair\n\t\tExample: -pair=mil-csrt")
	debugMode    = flag.Bool("debug", false, "Log every change of cascade state or tracking source")
	debugVerbose = flag.Bool("debug-verbose", false, "Enable verbose debug output (per-frame cascade scores)")
	storePath    = flag.String("store", "", "SQLite file for track history, overrides the configured store_path")
	redetect     = flag.Int("redetect", -1, "Re-run detection every N frames while tracking (0 disables, -1 keeps config)")
	overlayOn    = flag.Bool("overlay", true, "Draw the track box and cascade state on forwarded frames")
	listTrackers = flag.Bool("trackers", false, "List available tracker backends and exit")
)

const (
	storeQueueSize   = 256
	debugHistorySize = 50
)

// globalDebugLogger is set once in main before any component starts
var globalDebugLogger *DebugLogger

// DebugLogger routes component messages from every package to slog. Every
// component message reaches the console; verbose ones only with -debug-verbose.
// The most recent lines are kept so a failed run can show what led up to it.
type DebugLogger struct {
	logger  *slog.Logger
	verbose bool
	history *stream.History
}

// NewDebugLogger creates the process logger writing to out
func NewDebugLogger(out io.Writer, verbose bool) *DebugLogger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return &DebugLogger{
		logger:  slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})),
		verbose: verbose,
		history: stream.NewHistory(debugHistorySize),
	}
}

func (dl *DebugLogger) debugMsg(component, message string) {
	dl.history.Add(fmt.Sprintf("[%s] %s", component, message))
	dl.logger.Info(message, "component", component)
}

func (dl *DebugLogger) debugMsgVerbose(component, message string) {
	if !dl.verbose {
		return
	}
	dl.history.Add(fmt.Sprintf("[%s] %s", component, message))
	dl.logger.Debug(message, "component", component)
}

// Info logs an operator-facing message
func (dl *DebugLogger) Info(message string, args ...any) {
	dl.logger.Info(message, args...)
}

// Error logs a failure
func (dl *DebugLogger) Error(message string, args ...any) {
	dl.logger.Error(message, args...)
}

// DumpHistory writes the retained component messages to w, oldest first
func (dl *DebugLogger) DumpHistory(w io.Writer) {
	lines := dl.history.Recent()
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "last %d log lines:\n", len(lines))
	for _, line := range lines {
		fmt.Fprintln(w, "  "+line)
	}
}

// reportWatcher logs a control-channel watcher that stopped. Frames keep
// flowing; only the watcher is gone.
func (dl *DebugLogger) reportWatcher(name string, err error) {
	if errors.Is(err, stream.ErrEndOfStream) {
		dl.Info("pipeline reached end of stream", "pipeline", name)
		return
	}
	dl.Error("pipeline watcher stopped", "pipeline", name, "error", err)
	var srcErr *stream.SourceError
	if errors.As(err, &srcErr) {
		for _, line := range srcErr.Recent {
			dl.Error("recent bus message", "pipeline", name, "message", line)
		}
	}
}

// logObservation reports cascade state and source changes, one line per change
func logObservation(last *tracking.Observation) stream.ObservationFunc {
	return func(seq uint64, obs tracking.Observation) {
		if obs.State != last.State || obs.Source != last.Source || obs.TrackID != last.TrackID {
			debugMsg("PIPELINE", fmt.Sprintf("frame %d: %s via %s box=%v score=%.3f",
				seq, obs.State, obs.Source, obs.Box, obs.Score))
		}
		*last = obs
	}
}

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message)
	}
}

func debugMsgVerbose(component, message string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsgVerbose(component, message)
	}
}

// wireDebugFunctions points every package's debug hook at the global logger
func wireDebugFunctions() {
	tracking.SetDebugFunction(debugMsg)
	tracking.SetDebugVerboseFunction(debugMsgVerbose)
	detection.SetDebugFunction(debugMsg)
	stream.SetDebugFunction(debugMsg)
	gstio.SetDebugFunction(debugMsg)
	trackstore.SetDebugFunction(debugMsg)
}

// loadConfig reads the configuration file (or defaults) and applies
// command line overrides before validating the result.
func loadConfig(path, pair, store string, redetectEvery int) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if pair != "" {
		cfg.Pair = pair
	}
	if store != "" {
		cfg.StorePath = store
	}
	if redetectEvery >= 0 {
		cfg.RedetectInterval = redetectEvery
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildPair resolves tracker names against the vision registry
func buildPair(p config.TrackerPair) (tracking.Pair, error) {
	primary, err := vision.NewFactory(p.Primary)
	if err != nil {
		return tracking.Pair{}, fmt.Errorf("pair %q primary: %w", p.Name, err)
	}
	pair := tracking.Pair{
		Name:          p.Name,
		Primary:       primary,
		PrimaryAccept: p.PrimaryAccept,
	}
	if p.Secondary != "" {
		secondary, err := vision.NewFactory(p.Secondary)
		if err != nil {
			return tracking.Pair{}, fmt.Errorf("pair %q secondary: %w", p.Name, err)
		}
		pair.Secondary = secondary
		pair.SecondaryAccept = p.SecondaryAccept
	}
	return pair, nil
}

func modelConfig(m config.ModelConfig) detection.ModelConfig {
	return detection.ModelConfig{
		ModelPath:     m.Path,
		NamesPath:     m.NamesPath,
		InputWidth:    m.InputWidth,
		InputHeight:   m.InputHeight,
		MinConfidence: float32(m.MinConfidence),
		Classes:       m.Classes,
		Accelerator:   m.Accelerator,
	}
}

func main() {
	flag.Parse()

	if *listTrackers {
		fmt.Println(strings.Join(vision.Names(), "\n"))
		return
	}

	globalDebugLogger = NewDebugLogger(os.Stdout, *debugVerbose)
	wireDebugFunctions()

	if err := run(); err != nil {
		globalDebugLogger.Error("trackcam stopped", "error", err)
		globalDebugLogger.DumpHistory(os.Stderr)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(*configPath, *pairName, *storePath, *redetect)
	if err != nil {
		return err
	}
	active, err := cfg.ActivePair()
	if err != nil {
		return err
	}
	pair, err := buildPair(active)
	if err != nil {
		return err
	}

	detector := detection.NewProviderManager()
	if err := detector.Initialize(modelConfig(cfg.Model)); err != nil {
		return fmt.Errorf("load detector: %w", err)
	}
	defer detector.Close()
	info := detector.GetProviderInfo()
	globalDebugLogger.Info("detector ready", "type", info.Type, "backend", info.Backend, "init", info.InitTime)

	opts := []tracking.SessionOption{tracking.WithRedetectInterval(cfg.RedetectInterval)}
	if cfg.StorePath != "" {
		store, err := trackstore.Open(cfg.StorePath)
		if err != nil {
			return err
		}
		defer store.Close()
		writer := trackstore.NewWriter(store, storeQueueSize)
		// Runs before store.Close so queued events are flushed.
		defer func() {
			writer.Close()
			if n := writer.Dropped(); n > 0 {
				globalDebugLogger.Info("track store dropped events", "count", n)
			}
		}()
		opts = append(opts, tracking.WithRecorder(writer))
	}

	session := tracking.NewSession(pair, detector, opts...)
	globalDebugLogger.Info("session started", "session", session.ID(), "pair", pair.Name)

	mailbox := stream.NewMailbox[tracking.Frame]()

	source, err := gstio.NewSource(gstio.SourceConfig{
		Launch:   cfg.Source.Pipeline,
		SinkName: cfg.Source.SinkName,
		Width:    cfg.Source.Width,
		Height:   cfg.Source.Height,
	}, mailbox)
	if err != nil {
		return err
	}
	sink, err := gstio.NewSink(gstio.SinkConfig{
		Launch:    cfg.Sink.Pipeline,
		SrcName:   cfg.Sink.SrcName,
		Width:     cfg.Sink.Width,
		Height:    cfg.Sink.Height,
		Framerate: cfg.Sink.Framerate,
	})
	if err != nil {
		return err
	}

	pcfg := stream.ProcessorConfig{
		PullTimeout:   cfg.GetPullTimeout(),
		StatsInterval: cfg.GetStatsInterval(),
	}
	if *overlayOn {
		pcfg.Annotator = overlay.NewRenderer()
	}
	if *debugMode || *debugVerbose {
		pcfg.OnObservation = logObservation(&tracking.Observation{})
	}
	processor := stream.NewProcessor(mailbox, session, sink, pcfg)
	watchers := []stream.Watch{
		{Name: "source", Monitor: stream.NewMonitor(source.Bus(), cfg.MonitorHistory)},
		{Name: "display", Monitor: stream.NewMonitor(sink.Bus(), cfg.MonitorHistory)},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sink.Start(); err != nil {
		return err
	}
	if err := source.Start(); err != nil {
		sink.Close()
		return err
	}

	// Only a signal ends processing. A watcher that hits a fatal bus error
	// or end of stream is reported and stops on its own.
	runErr := stream.Supervise(ctx, processor, globalDebugLogger.reportWatcher, watchers...)
	globalDebugLogger.Info("shutting down")

	// Stop capture first so nothing publishes into a closed mailbox.
	if err := source.Stop(); err != nil {
		debugMsg("GST", fmt.Sprintf("stop source: %v", err))
	}
	mailbox.Close()

	session.Close()
	if err := sink.Close(); err != nil {
		debugMsg("GST", fmt.Sprintf("close sink: %v", err))
	}

	published, skipped := source.Captured()
	globalDebugLogger.Info("pipeline stopped",
		"captured", published,
		"unreadable", skipped,
		"mailbox_drops", mailbox.Drops(),
		"stats", processor.Stats().GetStats().String())

	return runErr
}
