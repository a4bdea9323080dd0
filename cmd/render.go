// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"math"

	"audioviz/internal/audio"
	"audioviz/internal/capture"
	"audioviz/internal/config"

	"github.com/spf13/cobra"
)

// manualWav replays a WAV file only when pumped, so frames are rendered
// as fast as the machine allows instead of in real time.
type manualWav struct {
	*capture.WavSource
}

func (manualWav) Start() error { return nil }
func (manualWav) Stop() error  { return nil }

func newRenderCommand(opts *Options) *cobra.Command {
	var (
		outDir    string
		maxFrames int
		every     int
	)
	renderCmd := &cobra.Command{
		Use:   "render <file.wav>",
		Short: "Render a WAV file to PNG frames without audio hardware",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg.Audio.Source = config.SourceWav
			cfg.Audio.WavPath = args[0]
			cfg.Render.SaveDir = outDir
			cfg.Render.SaveEvery = every

			n, err := renderFile(cmd.Context(), cfg, maxFrames)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d frames to %s\n", n, outDir)
			return nil
		},
	}
	renderCmd.Flags().StringVarP(&outDir, "out", "o", "frames", "Directory for the PNG frames")
	renderCmd.Flags().IntVarP(&maxFrames, "frames", "n", 0, "Stop after this many frames (0 renders the whole file)")
	renderCmd.Flags().IntVar(&every, "every", 1, "Write one frame in N")
	return renderCmd
}

// renderFile steps the engine once per frame, feeding it exactly one
// frame's worth of audio. It returns the number of frames stepped.
func renderFile(ctx context.Context, cfg *config.Config, maxFrames int) (int, error) {
	buf := capture.NewFrameBuffer(cfg.Analysis.FrameSize, cfg.Audio.InputChannels)
	capt := capture.New(buf)
	defer capt.Close()

	engine, err := audio.NewEngine(cfg, capt)
	if err != nil {
		return 0, err
	}
	defer engine.Close()

	if p, err := config.LoadPreset(cfg.Preset.Path); err != nil {
		runLog.Warnf("preset %s not loaded, rendering background only: %v", cfg.Preset.Path, err)
	} else {
		engine.LoadPreset(p)
	}

	var src *capture.WavSource
	err = engine.SwitchSource(func(b *capture.FrameBuffer) (capture.Source, error) {
		w, err := capture.NewWavSource(cfg.Audio.WavPath, cfg.Audio.FramesPerBuffer, false, b)
		if err != nil {
			return nil, err
		}
		src = w
		return manualWav{w}, nil
	})
	if err != nil {
		return 0, err
	}

	fps := float64(cfg.Render.FPS)
	pumps := int(math.Ceil(src.SampleRate() / fps / float64(cfg.Audio.FramesPerBuffer)))
	pumps = max(pumps, 1)

	frames := 0
	for maxFrames <= 0 || frames < maxFrames {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		delivered := 0
		for range pumps {
			if !src.Pump() {
				break
			}
			delivered++
		}
		if delivered == 0 {
			break
		}
		engine.Step(1 / fps)
		frames++
	}
	runLog.Infof("rendered %d frames of %s (%s)", frames, src.Name(), src.Duration())
	return frames, nil
}
