// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"os"

	"audioviz/internal/capture"
	"audioviz/internal/config"
	applog "audioviz/internal/log"
	"audioviz/internal/tui"
	"audioviz/internal/visual"
	"audioviz/pkg/build"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Options are the command line overrides. Flags left unset keep the value
// from the config file.
type Options struct {
	ConfigPath string
	DeviceID   int
	WavPath    string
	FPS        int
	Width      int
	Height     int
	PresetPath string
	HTTPAddr   string
	TUI        bool
	Record     bool
	Verbose    bool
}

// Execute parses os.Args and runs the selected command until ctx is done.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runLive(cmd.Context(), cfg, opts)
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	bindFlags(rootCmd.PersistentFlags(), opts)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available audio devices",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := capture.Initialize(); err != nil {
					return err
				}
				defer capture.Terminate()
				return capture.ListDevices(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "devices",
			Short: "Browse audio devices interactively",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := capture.Initialize(); err != nil {
					return err
				}
				defer capture.Terminate()
				return tui.StartDeviceListUI()
			},
		},
		&cobra.Command{
			Use:   "types",
			Short: "List visualizer types and shader programs",
			Run: func(cmd *cobra.Command, args []string) {
				w := cmd.OutOrStdout()
				for _, t := range visual.Types() {
					fmt.Fprintln(w, t)
				}
				fmt.Fprintf(w, "\nshader programs: %v\n", visual.Programs())
			},
		},
		newRenderCommand(opts),
	)

	return rootCmd
}

func bindFlags(flags *pflag.FlagSet, opts *Options) {
	flags.StringVar(&opts.ConfigPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml or ./audioviz.yaml)")
	flags.IntVarP(&opts.DeviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	flags.StringVarP(&opts.WavPath, "wav", "w", "",
		"Replay a WAV file instead of capturing from a device")
	flags.IntVar(&opts.FPS, "fps", config.DefaultFPS, "Frames per second")
	flags.IntVar(&opts.Width, "width", config.DefaultWidth, "Output width in pixels")
	flags.IntVar(&opts.Height, "height", config.DefaultHeight, "Output height in pixels")
	flags.StringVarP(&opts.PresetPath, "preset", "p", config.DefaultPresetPath, "Visualizer preset file")
	flags.StringVar(&opts.HTTPAddr, "http", config.DefaultHTTPAddr,
		"Listen address for /ws, /frame.png and /metrics; empty disables")
	flags.BoolVarP(&opts.TUI, "tui", "t", false, "Show the instance panel")
	flags.BoolVarP(&opts.Record, "record", "r", false, "Record the captured signal to a WAV file")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "Show verbose output")
}

// loadConfig reads the config file and applies explicitly set flags on top.
func loadConfig(cmd *cobra.Command, opts *Options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Audio.Source = config.SourceDevice
		cfg.Audio.InputDevice = opts.DeviceID
	}
	if flags.Changed("wav") {
		cfg.Audio.Source = config.SourceWav
		cfg.Audio.WavPath = opts.WavPath
	}
	if flags.Changed("fps") {
		cfg.Render.FPS = opts.FPS
	}
	if flags.Changed("width") {
		cfg.Render.Width = opts.Width
	}
	if flags.Changed("height") {
		cfg.Render.Height = opts.Height
	}
	if flags.Changed("preset") {
		cfg.Preset.Path = opts.PresetPath
	}
	if flags.Changed("http") {
		cfg.Transport.HTTPAddr = opts.HTTPAddr
	}
	if flags.Changed("record") {
		cfg.Recording.Enabled = opts.Record
	}
	if opts.Verbose {
		cfg.Debug = true
		cfg.LogLevel = applog.LevelDebug.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if level, ok := applog.ParseLevel(cfg.LogLevel); ok {
		applog.SetLevel(level)
	} else {
		fmt.Fprintf(os.Stderr, "unknown log level %q, using info\n", cfg.LogLevel)
	}
	return cfg, nil
}
