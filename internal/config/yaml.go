// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"audioviz/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Render    RenderConfig    `yaml:"render"`    // Frame loop and output surface.
	Preset    PresetConfig    `yaml:"preset"`    // Visualizer preset persistence.
	Recording RecordingConfig `yaml:"recording"` // Audio recording settings.
	Transport TransportConfig `yaml:"transport"` // Network outputs.
}

// AudioConfig holds settings related to audio capture.
type AudioConfig struct {
	Source          string  `yaml:"source"`            // "device" or "wav".
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for capture (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per capture callback.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Interleaved channels delivered by the device.
	WavPath         string  `yaml:"wav_path"`          // File replayed when source is "wav".
	Loop            bool    `yaml:"loop"`              // Restart the WAV file at EOF.
}

// AnalysisConfig holds settings for the spectral analyzer.
type AnalysisConfig struct {
	FrameSize      int            `yaml:"frame_size"`      // Samples per analysis frame (power of 2).
	Window         string         `yaml:"window"`          // Window function name (e.g., "Hann", "Hamming").
	SilenceEpsilon float64        `yaml:"silence_epsilon"` // Frames with every |x| below this are silent.
	Backend        string         `yaml:"backend"`         // "gonum" or "godsp".
	DeadBand       DeadBandConfig `yaml:"dead_band"`
}

// DeadBandConfig controls removal of quiet mid-spectrum bins.
type DeadBandConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Threshold float64 `yaml:"threshold"` // Magnitudes below this count as quiet.
	MaxCut    float64 `yaml:"max_cut"`   // Upper bound on the removed fraction.
}

// RenderConfig holds frame loop settings.
type RenderConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	FPS       int    `yaml:"fps"`
	SaveDir   string `yaml:"save_dir"`   // When set, every frame is written here as PNG.
	SaveEvery int    `yaml:"save_every"` // Write one frame in N (0 or 1 writes all).
}

// PresetConfig holds the location of the visualizer preset file.
type PresetConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // Reload the preset when the file changes on disk.
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`    // Record the captured mono signal.
	OutputDir string `yaml:"output_dir"` // Directory to save recorded audio files.
	BitDepth  int    `yaml:"bit_depth"`  // 16, 24 or 32.
}

// TransportConfig holds settings related to sending processed data over the network.
type TransportConfig struct {
	HTTPAddr          string        `yaml:"http_addr"`           // Listen address for /ws, /frame.png and /metrics. Empty disables HTTP.
	WebSocketEnabled  bool          `yaml:"websocket_enabled"`   // Broadcast per-frame features on /ws.
	WebSocketMinSend  time.Duration `yaml:"websocket_min_send"`  // Minimum interval between broadcasts.
	FrameImageEnabled bool          `yaml:"frame_image_enabled"` // Serve the latest frame on /frame.png.
	MetricsEnabled    bool          `yaml:"metrics_enabled"`     // Serve Prometheus metrics on /metrics.
	UDPEnabled        bool          `yaml:"udp_enabled"`         // Enable sending spectrum data over UDP.
	UDPTargetAddress  string        `yaml:"udp_target_address"`  // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`   // Interval between sending UDP packets.
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{"config.yaml", "audioviz.yaml"}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment wins over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, v ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, v...)...))
	}

	switch c.Audio.Source {
	case SourceDevice:
	case SourceWav:
		if c.Audio.WavPath == "" {
			bad("audio.wav_path must be set when audio.source is %q", SourceWav)
		}
	default:
		bad("audio.source %q is not one of %q, %q", c.Audio.Source, SourceDevice, SourceWav)
	}
	if c.Audio.InputDevice < MinDeviceID {
		bad("audio.input_device %d is below %d", c.Audio.InputDevice, MinDeviceID)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		bad("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		bad("audio.frames_per_buffer %d outside (0, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.InputChannels < 1 {
		bad("audio.input_channels must be at least 1")
	}

	if !bitint.IsPowerOfTwo(c.Analysis.FrameSize) || c.Analysis.FrameSize < 64 {
		bad("analysis.frame_size %d must be a power of 2 >= 64 (nearest: %d)",
			c.Analysis.FrameSize, max(bitint.NextPowerOfTwo(c.Analysis.FrameSize), 64))
	}
	if c.Analysis.SilenceEpsilon < 0 {
		bad("analysis.silence_epsilon must not be negative")
	}
	switch strings.ToLower(c.Analysis.Backend) {
	case BackendGonum, BackendGoDSP:
	default:
		bad("analysis.backend %q is not one of %q, %q", c.Analysis.Backend, BackendGonum, BackendGoDSP)
	}
	if c.Analysis.DeadBand.MaxCut < 0 || c.Analysis.DeadBand.MaxCut > 0.5 {
		bad("analysis.dead_band.max_cut %.3f outside [0, 0.5]", c.Analysis.DeadBand.MaxCut)
	}

	if c.Render.Width <= 0 || c.Render.Width > MaxDimension || c.Render.Height <= 0 || c.Render.Height > MaxDimension {
		bad("render size %dx%d outside (0, %d]", c.Render.Width, c.Render.Height, MaxDimension)
	}
	if c.Render.FPS <= 0 || c.Render.FPS > MaxFPS {
		bad("render.fps %d outside (0, %d]", c.Render.FPS, MaxFPS)
	}

	switch c.Recording.BitDepth {
	case 16, 24, 32:
	default:
		bad("recording.bit_depth %d is not 16, 24 or 32", c.Recording.BitDepth)
	}

	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			bad("transport.udp_target_address %q appears invalid (missing port?)", c.Transport.UDPTargetAddress)
		}
		if c.Transport.UDPSendInterval <= 0 {
			bad("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return errors.Join(errs...)
}

// applyEnvOverrides applies ENV_* variables on top of the loaded values.
// Unparseable values are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
	}

	// ENV_AUDIO_{...}

	// ENV_AUDIO_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.InputDevice = iVal
		}
	}
	// ENV_AUDIO_WAV
	if val, ok := os.LookupEnv("ENV_AUDIO_WAV"); ok {
		cfg.Audio.WavPath = val
		cfg.Audio.Source = SourceWav
	}

	// ENV_RENDER_FPS
	if val, ok := os.LookupEnv("ENV_RENDER_FPS"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Render.FPS = iVal
		}
	}

	// ENV_PRESET_PATH
	if val, ok := os.LookupEnv("ENV_PRESET_PATH"); ok {
		cfg.Preset.Path = val
	}

	// ENV_HTTP_ADDR
	if val, ok := os.LookupEnv("ENV_HTTP_ADDR"); ok {
		cfg.Transport.HTTPAddr = val
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
		}
	}
}
