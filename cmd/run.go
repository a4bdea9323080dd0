// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"audioviz/internal/audio"
	"audioviz/internal/capture"
	"audioviz/internal/config"
	applog "audioviz/internal/log"
	"audioviz/internal/observe"
	"audioviz/internal/transport"
	"audioviz/internal/transport/udp"
	"audioviz/internal/tui"
	"audioviz/pkg/build"
)

const (
	presetDebounce  = 200 * time.Millisecond
	shutdownTimeout = 3 * time.Second
	logEveryFrames  = 120
)

var runLog = applog.Named("main")

// opener picks the configured capture source.
func opener(cfg *config.Config) capture.Opener {
	if cfg.Audio.Source == config.SourceWav {
		return capture.WavOpener(cfg.Audio.WavPath, cfg.Audio.FramesPerBuffer, cfg.Audio.Loop)
	}
	return capture.DeviceOpener(streamConfig(cfg))
}

func streamConfig(cfg *config.Config) capture.StreamConfig {
	return capture.StreamConfig{
		DeviceID:        cfg.Audio.InputDevice,
		Channels:        cfg.Audio.InputChannels,
		SampleRate:      cfg.Audio.SampleRate,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		LowLatency:      cfg.Audio.LowLatency,
	}
}

// runLive wires capture, the engine, transports and the panel, and runs
// until ctx is done or the panel quits.
//
// Shutdown order: panel, preset watcher, UDP publisher, HTTP server, frame
// loop, recorder, engine, capture, metrics provider.
func runLive(ctx context.Context, cfg *config.Config, opts *Options) error {
	if err := capture.Initialize(); err != nil {
		return err
	}
	defer capture.Terminate()

	buildInfo := build.GetBuildFlags()
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    buildInfo.Name,
		ServiceVersion: buildInfo.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			runLog.Warnf("metrics shutdown: %v", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	buf := capture.NewFrameBuffer(cfg.Analysis.FrameSize, cfg.Audio.InputChannels)
	capt := capture.New(buf)
	defer capt.Close()

	engineOpts := []audio.Option{audio.WithMetrics(metrics)}

	var hub *transport.WebSocketHub
	if cfg.Transport.WebSocketEnabled && cfg.Transport.HTTPAddr != "" {
		hub = transport.NewWebSocketHub(
			transport.WithMinInterval(cfg.Transport.WebSocketMinSend),
			transport.WithClientHook(func(delta int) {
				metrics.WebSocketClients.Add(context.Background(), int64(delta))
			}),
		)
		engineOpts = append(engineOpts, audio.WithTransport("websocket", hub))
	}
	var frames *transport.FrameStore
	if cfg.Transport.FrameImageEnabled && cfg.Transport.HTTPAddr != "" {
		frames = transport.NewFrameStore()
		engineOpts = append(engineOpts, audio.WithFrameStore(frames))
	}
	if opts.Verbose {
		engineOpts = append(engineOpts, audio.WithTransport("log", transport.NewLoggingTransport(logEveryFrames)))
	}

	engine, err := audio.NewEngine(cfg, capt, engineOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			runLog.Errorf("closing engine: %v", err)
		}
	}()

	if p, err := config.LoadPreset(cfg.Preset.Path); err != nil {
		runLog.Warnf("preset %s not loaded, starting empty: %v", cfg.Preset.Path, err)
	} else {
		engine.LoadPreset(p)
	}

	// A failed source leaves the loop running on empty input; the panel
	// can pick another device.
	if err := engine.SwitchSource(opener(cfg)); err != nil {
		runLog.Errorf("no audio input: %v", err)
	}

	if cfg.Recording.Enabled {
		rec, err := startRecording(cfg, capt)
		if err != nil {
			return err
		}
		defer func() {
			buf.SetTap(nil)
			if err := rec.Stop(); err != nil {
				runLog.Errorf("stopping recording: %v", err)
			}
		}()
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- engine.Run(loopCtx) }()
	defer func() {
		stopLoop()
		if err := <-loopDone; err != nil {
			runLog.Errorf("frame loop: %v", err)
		}
	}()

	if cfg.Transport.HTTPAddr != "" {
		routes := transport.Routes{}
		if hub != nil {
			routes.WebSocket = hub
		}
		if frames != nil {
			routes.Frame = frames
		}
		if cfg.Transport.MetricsEnabled {
			routes.Metrics = observe.Handler()
		}
		srv := transport.NewServer(cfg.Transport.HTTPAddr, routes)
		if err := srv.Start(); err != nil {
			return err
		}
		runLog.Infof("serving on http://%s", srv.Addr())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				runLog.Warnf("http shutdown: %v", err)
			}
		}()
	}

	if cfg.Transport.UDPEnabled {
		stop, err := startUDP(cfg, engine, metrics)
		if err != nil {
			return err
		}
		defer stop()
	}

	if cfg.Preset.Watch {
		w, err := config.WatchPreset(cfg.Preset.Path, presetDebounce, func(p *config.Preset) {
			dctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			if err := engine.Do(dctx, func(e *audio.Engine) { e.LoadPreset(p) }); err != nil {
				runLog.Warnf("preset reload dropped: %v", err)
			}
		})
		if err != nil {
			runLog.Warnf("not watching %s: %v", cfg.Preset.Path, err)
		} else {
			defer w.Close()
		}
	}

	if opts.TUI {
		return runPanel(ctx, engine, cfg)
	}

	select {
	case <-ctx.Done():
	case err := <-loopDone:
		// Hand the result back to the deferred wait.
		loopDone <- err
	}
	return nil
}

// runPanel shows the instance panel. Logs go to a file while the panel
// owns the terminal.
func runPanel(ctx context.Context, engine *audio.Engine, cfg *config.Config) error {
	logFile, err := os.Create(filepath.Join(os.TempDir(), "audioviz.log"))
	if err != nil {
		applog.SetOutput(io.Discard)
	} else {
		defer logFile.Close()
		applog.SetOutput(logFile)
	}
	defer applog.SetOutput(os.Stderr)

	ctl := tui.NewEngineController(engine, cfg.Preset.Path, streamConfig(cfg))
	if err := tui.Run(ctx, ctl); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func startRecording(cfg *config.Config, capt *capture.Capture) (*capture.Recorder, error) {
	if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("recording dir: %w", err)
	}
	name := filepath.Join(cfg.Recording.OutputDir,
		"recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")

	rate := int(capt.SampleRate(cfg.Audio.SampleRate))
	rec := capture.NewRecorder(rate, cfg.Recording.BitDepth)
	if err := rec.Start(name); err != nil {
		return nil, err
	}
	capt.Buffer().SetTap(rec.Write)
	return rec, nil
}

func startUDP(cfg *config.Config, engine *audio.Engine, metrics *observe.Metrics) (func(), error) {
	sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
	if err != nil {
		return nil, err
	}
	pub, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, engine.Analyzer())
	if err != nil {
		return nil, errors.Join(err, sender.Close())
	}
	pub.OnSent(func() { metrics.RecordPublished(context.Background(), "udp") })
	pub.Start()
	runLog.Infof("publishing spectrum to udp://%s every %s", sender.Target(), cfg.Transport.UDPSendInterval)
	return func() {
		if err := errors.Join(pub.Close(), sender.Close()); err != nil {
			runLog.Warnf("udp publisher: %v", err)
		}
	}, nil
}
