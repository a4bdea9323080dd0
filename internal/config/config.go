package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the visualizer.
const (
	// Audio capture defaults.
	DefaultChannels        = 2           // Loopback devices are usually stereo
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 48000       // Typical mixer rate
	DefaultSource          = SourceDevice

	// Analysis defaults.
	DefaultFrameSize         = 2048
	DefaultWindow            = "Hann"
	DefaultSilenceEpsilon    = 1e-4
	DefaultDeadBandThreshold = 0.005
	DefaultDeadBandMaxCut    = 0.25
	DefaultBackend           = BackendGonum

	// Render defaults.
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultFPS    = 60

	// Hardware and processing limits.
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer (power of 2)
	MaxFPS          = 240
	MaxDimension    = 8192

	DefaultPresetPath       = "preset.json"
	DefaultHTTPAddr         = "127.0.0.1:8080"
	DefaultUDPTarget        = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond
	DefaultWebSocketMinSend = 16 * time.Millisecond
)

// Audio source kinds.
const (
	SourceDevice = "device"
	SourceWav    = "wav"
)

// FFT backends.
const (
	BackendGonum = "gonum"
	BackendGoDSP = "godsp"
)

// Default returns the built-in configuration used when no file is found.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			Loop:            true,
		},
		Analysis: AnalysisConfig{
			FrameSize:      DefaultFrameSize,
			Window:         DefaultWindow,
			SilenceEpsilon: DefaultSilenceEpsilon,
			Backend:        DefaultBackend,
			DeadBand: DeadBandConfig{
				Enabled:   false,
				Threshold: DefaultDeadBandThreshold,
				MaxCut:    DefaultDeadBandMaxCut,
			},
		},
		Render: RenderConfig{
			Width:  DefaultWidth,
			Height: DefaultHeight,
			FPS:    DefaultFPS,
		},
		Preset: PresetConfig{
			Path:  DefaultPresetPath,
			Watch: true,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: "./recordings",
			BitDepth:  16,
		},
		Transport: TransportConfig{
			HTTPAddr:          DefaultHTTPAddr,
			WebSocketEnabled:  true,
			WebSocketMinSend:  DefaultWebSocketMinSend,
			MetricsEnabled:    true,
			UDPEnabled:        false,
			UDPTargetAddress:  DefaultUDPTarget,
			UDPSendInterval:   DefaultUDPSendInterval,
			FrameImageEnabled: true,
		},
	}
}
