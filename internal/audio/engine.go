// SPDX-License-Identifier: MIT
/*
Package audio drives the per-frame pipeline: snapshot the capture buffer,
analyze it, update and render every visualizer instance, then publish the
results.

Thread Safety:
  - The capture callback only touches the FrameBuffer.
  - Everything else (analyzer, registry, render target) belongs to the
    goroutine running Run. Other goroutines reach it through Do.
  - Gate settings are atomics and may be changed from anywhere.
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"audioviz/internal/analysis"
	"audioviz/internal/capture"
	"audioviz/internal/config"
	applog "audioviz/internal/log"
	"audioviz/internal/observe"
	"audioviz/internal/postfx"
	"audioviz/internal/registry"
	"audioviz/internal/render"
	"audioviz/internal/transport"
	"audioviz/internal/visual"

	"github.com/go-gl/mathgl/mgl32"
	"go.opentelemetry.io/otel/metric/noop"
)

// publishBins is the spectrum resolution sent to feature clients.
const publishBins = 64

// Beat detection on the bass band.
const (
	beatThreshold = 0.005
	beatRatio     = 1.3
	beatCooldown  = 10 // frames
)

var engLog = applog.Named("engine")

// ErrNotRunning is returned by Do when the engine stops before running fn.
var ErrNotRunning = errors.New("engine not running")

type command struct {
	fn   func(*Engine)
	done chan struct{}
}

type namedTransport struct {
	name string
	t    transport.Transport
	fail int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records into m instead of a no-op provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTransport publishes a transport.FeatureFrame to t after every frame.
func WithTransport(name string, t transport.Transport) Option {
	return func(e *Engine) { e.transports = append(e.transports, &namedTransport{name: name, t: t}) }
}

// WithFrameStore copies every rendered frame into s.
func WithFrameStore(s *transport.FrameStore) Option {
	return func(e *Engine) { e.frames = s }
}

type Engine struct {
	// Core configuration and state.
	config *config.Config

	capture  *capture.Capture
	analyzer *analysis.Analyzer
	manager  *registry.Manager
	beat     *analysis.BeatDetector
	metrics  *observe.Metrics

	transports []*namedTransport
	frames     *transport.FrameStore

	// Frame state, owned by the frame goroutine.
	vp       render.Viewport
	proj     mgl32.Mat4
	target   *image.RGBA
	waveform []float64
	bands    map[string]float64
	features analysis.Features
	frame    visual.Frame
	time     float64
	seq      uint64

	// Noise gate for signal conditioning.
	gateEnabled   atomic.Bool
	gateThreshold atomic.Uint64 // float64 bits, peak amplitude in [0, 1]

	cmds    chan command
	running atomic.Bool
}

// NewEngine builds the analyzer and the registry from cfg. capt supplies
// audio; it may have no source yet.
func NewEngine(cfg *config.Config, capt *capture.Capture, opts ...Option) (*Engine, error) {
	window, err := analysis.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}
	analyzer, err := analysis.NewAnalyzer(analysis.Options{
		FrameSize:      cfg.Analysis.FrameSize,
		SampleRate:     capt.SampleRate(cfg.Audio.SampleRate),
		Window:         window,
		Backend:        cfg.Analysis.Backend,
		SilenceEpsilon: cfg.Analysis.SilenceEpsilon,
		DeadBand: analysis.DeadBand{
			Enabled:   cfg.Analysis.DeadBand.Enabled,
			Threshold: cfg.Analysis.DeadBand.Threshold,
			MaxCut:    cfg.Analysis.DeadBand.MaxCut,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}
	if capt.Buffer().FrameSize() != cfg.Analysis.FrameSize {
		return nil, fmt.Errorf("frame buffer size %d does not match analysis frame size %d",
			capt.Buffer().FrameSize(), cfg.Analysis.FrameSize)
	}

	e := &Engine{
		config:   cfg,
		capture:  capt,
		analyzer: analyzer,
		beat:     analysis.NewBeatDetector(beatThreshold, beatRatio, beatCooldown),
		waveform: make([]float64, cfg.Analysis.FrameSize),
		bands:    make(map[string]float64, len(analysis.DefaultBands)),
		cmds:     make(chan command),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		if e.metrics, err = observe.NewMetrics(noop.NewMeterProvider()); err != nil {
			return nil, err
		}
	}

	e.manager = registry.New(
		registry.WithBackground(visual.NewBackground()),
		registry.WithPostProcessing(postfx.New()),
		registry.WithErrorHook(func(inst *registry.Instance, stage string) {
			e.metrics.RecordInstanceError(context.Background(), inst.Type(), stage)
		}),
	)
	e.Resize(cfg.Render.Width, cfg.Render.Height)
	return e, nil
}

// Manager returns the registry. Use it from the frame goroutine only.
func (e *Engine) Manager() *registry.Manager { return e.manager }

// Analyzer returns the analyzer; GetMagnitudesInto is safe from any
// goroutine.
func (e *Engine) Analyzer() *analysis.Analyzer { return e.analyzer }

// Target returns the render target of the last frame.
func (e *Engine) Target() *image.RGBA { return e.target }

// Viewport returns the current output size.
func (e *Engine) Viewport() render.Viewport { return e.vp }

// Time returns seconds of frame time since start.
func (e *Engine) Time() float64 { return e.time }

// Seq returns the number of frames stepped.
func (e *Engine) Seq() uint64 { return e.seq }

// SourceName returns the active capture source's name, or "" when idle.
func (e *Engine) SourceName() string {
	if src := e.capture.Source(); src != nil {
		return src.Name()
	}
	return ""
}

// Features returns the features of the last frame.
func (e *Engine) Features() analysis.Features { return e.features }

// Resize changes the output surface; the next frame renders at the new
// size.
func (e *Engine) Resize(width, height int) {
	e.vp = render.Viewport{Width: max(width, 1), Height: max(height, 1)}
	e.proj = render.DefaultProjection(e.vp)
	e.target = image.NewRGBA(e.vp.Rect())
}

// Run steps frames at the configured rate until ctx is done, executing
// queued commands between frames.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer e.running.Store(false)

	fps := e.config.Render.FPS
	if fps <= 0 {
		fps = config.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	engLog.Infof("frame loop started at %d fps (%dx%d)", fps, e.vp.Width, e.vp.Height)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			engLog.Infof("frame loop stopped after %d frames", e.seq)
			return nil
		case c := <-e.cmds:
			c.fn(e)
			close(c.done)
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			e.Step(dt)
		}
	}
}

// Do runs fn on the frame goroutine between frames and waits for it. It
// fails with ctx's error if the loop does not pick fn up in time; fn may
// still run later in that case.
func (e *Engine) Do(ctx context.Context, fn func(*Engine)) error {
	if !e.running.Load() {
		return ErrNotRunning
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c := command{fn: fn, done: make(chan struct{})}
	select {
	case e.cmds <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Step runs one frame synchronously. Call it from the frame goroutine,
// or instead of Run.
func (e *Engine) Step(dt float64) {
	ctx := context.Background()
	start := time.Now()
	e.time += dt
	e.seq++

	waveform, spectrum := e.analyze(ctx)
	e.frame = visual.Frame{
		Waveform:   waveform,
		Spectrum:   spectrum,
		DT:         dt,
		Time:       e.time,
		Viewport:   e.vp,
		SampleRate: e.analyzer.SampleRate(),
		Features:   e.features,
	}

	t := time.Now()
	e.manager.UpdateAll(&e.frame)
	e.metrics.RecordStage(ctx, "update", time.Since(t).Seconds())

	t = time.Now()
	e.manager.RenderAll(e.target, e.proj, e.vp)
	e.metrics.RecordStage(ctx, "render", time.Since(t).Seconds())

	e.publish(ctx, spectrum)

	e.metrics.Frames.Add(ctx, 1)
	e.metrics.Instances.Record(ctx, int64(e.manager.Len()))
	e.metrics.FrameDuration.Record(ctx, time.Since(start).Seconds())
}

// analyze snapshots the newest window. Without a full window the frame
// gets empty input and analysis is skipped.
func (e *Engine) analyze(ctx context.Context) (waveform, spectrum []float64) {
	if err := e.capture.Buffer().Snapshot(e.waveform); err != nil {
		e.metrics.SkippedFrames.Add(ctx, 1)
		clear(e.bands)
		e.features = analysis.Features{Bands: e.bands}
		return nil, nil
	}
	if !e.gateOpen(e.waveform) {
		clear(e.waveform)
	}

	t := time.Now()
	spectrum = e.analyzer.Analyze(e.waveform)
	e.features.RMS = analysis.RMS(e.waveform)
	e.features.Peak = analysis.Peak(e.waveform)
	e.features.Bands = analysis.BandEnergies(e.bands, spectrum, e.analyzer.Nyquist(), analysis.DefaultBands)
	e.features.Beat = e.beat.Process(e.features.Bands["bass"])
	e.metrics.RecordStage(ctx, "analyze", time.Since(t).Seconds())
	e.metrics.AudioLevel.Record(ctx, e.features.RMS)
	return e.waveform, spectrum
}

func (e *Engine) publish(ctx context.Context, spectrum []float64) {
	if e.frames != nil {
		e.frames.Store(e.target)
	}
	if dir := e.config.Render.SaveDir; dir != "" {
		every := uint64(max(e.config.Render.SaveEvery, 1))
		if e.seq%every == 0 {
			if _, err := SaveFrame(dir, e.seq, e.target); err != nil {
				engLog.Errorf("%v", err)
			}
		}
	}
	if len(e.transports) == 0 {
		return
	}

	ff := transport.NewFeatureFrame(e.seq, e.time, e.features, spectrum, publishBins)
	for _, nt := range e.transports {
		if err := nt.t.Send(ff); err != nil {
			nt.fail++
			if nt.fail == 1 {
				engLog.Warnf("%s send failed: %v", nt.name, err)
			}
			continue
		}
		nt.fail = 0
		e.metrics.RecordPublished(ctx, nt.name)
	}
}

// SwitchSource tears down the current capture source and opens a new one.
// On failure capture stays empty and frames continue with empty input.
func (e *Engine) SwitchSource(open capture.Opener) error {
	err := e.capture.Open(open)
	e.metrics.RecordDeviceSwitch(context.Background(), err == nil)
	e.beat.Reset()
	if err != nil {
		return err
	}
	e.analyzer.SetSampleRate(e.capture.SampleRate(e.config.Audio.SampleRate))
	return nil
}

// LoadPreset applies p to the registry.
func (e *Engine) LoadPreset(p *config.Preset) {
	e.manager.LoadAll(p)
	engLog.Infof("preset loaded (%d instances)", e.manager.Len())
}

// SavePreset writes the live registry state to path.
func (e *Engine) SavePreset(path string) error {
	if err := config.SavePreset(path, e.manager.SaveAll()); err != nil {
		return err
	}
	engLog.Infof("preset saved to %s", path)
	return nil
}

// Close disposes every instance and closes the transports.
func (e *Engine) Close() error {
	var errs []error
	for _, nt := range e.transports {
		if err := nt.t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", nt.name, err))
		}
	}
	e.transports = nil
	e.manager.Dispose()
	return errors.Join(errs...)
}
