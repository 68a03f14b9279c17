// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "pulsemon"
	ConfigType    = "yaml"
	DefaultConfig = `# Pulse Monitor Configuration

# Detection engine
min_samples: 100        # Frames required in the buffer before the pipeline runs
smoothing_window: 5     # Moving-average window of the first filter stage
bandpass_low: 10        # High-pass stage lag (samples subtracted behind each element)
bandpass_high: 3        # Low-pass stage moving-average window
peak_min_distance: 10   # Minimum samples between accepted peaks (exclusion zone)
bpm_min: 40             # Lower bound of the accepted BPM range
bpm_max: 200            # Upper bound of the accepted BPM range
retention_ms: 10000     # Sample lifetime in the buffer, anchored at the newest frame
beat_window: 5          # Trailing positions in which a peak counts as a fresh beat

# Frame source
frame_rate: 30          # Simulated capture rate in frames per second
sim_bpm: 72             # Heart rate of the synthetic pulse waveform
sim_noise: 0.02         # Noise amplitude of the synthetic waveform (0.0-0.2)

# Streaming
nats_url: ""            # NATS server URL, e.g. nats://127.0.0.1:4222 (empty = disabled)
nats_prefix: "pulse"    # Subject prefix: <prefix>.bpm and <prefix>.beat

# HTTP API
http_addr: ":8080"      # Listen address for the serve command

# Output
debug: false            # Enable debug output
`
)

// Settings holds all application configuration
type Settings struct {
	// Detection engine
	MinSamples      int     `mapstructure:"min_samples"`
	SmoothingWindow int     `mapstructure:"smoothing_window"`
	BandpassLow     int     `mapstructure:"bandpass_low"`
	BandpassHigh    int     `mapstructure:"bandpass_high"`
	PeakMinDistance int     `mapstructure:"peak_min_distance"`
	BPMMin          float64 `mapstructure:"bpm_min"`
	BPMMax          float64 `mapstructure:"bpm_max"`
	RetentionMs     int64   `mapstructure:"retention_ms"`
	BeatWindow      int     `mapstructure:"beat_window"`

	// Frame source
	FrameRate int     `mapstructure:"frame_rate"`
	SimBPM    float64 `mapstructure:"sim_bpm"`
	SimNoise  float64 `mapstructure:"sim_noise"`

	// Streaming
	NATSURL    string `mapstructure:"nats_url"`
	NATSPrefix string `mapstructure:"nats_prefix"`

	// HTTP API
	HTTPAddr string `mapstructure:"http_addr"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/pulsemon/
func Init() error {
	// Set defaults
	viper.SetDefault("min_samples", 100)
	viper.SetDefault("smoothing_window", 5)
	viper.SetDefault("bandpass_low", 10)
	viper.SetDefault("bandpass_high", 3)
	viper.SetDefault("peak_min_distance", 10)
	viper.SetDefault("bpm_min", 40)
	viper.SetDefault("bpm_max", 200)
	viper.SetDefault("retention_ms", 10000)
	viper.SetDefault("beat_window", 5)
	viper.SetDefault("frame_rate", 30)
	viper.SetDefault("sim_bpm", 72)
	viper.SetDefault("sim_noise", 0.02)
	viper.SetDefault("nats_url", "")
	viper.SetDefault("nats_prefix", "pulse")
	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/pulsemon/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Detection engine
	if s.MinSamples < 3 || s.MinSamples > 10000 {
		errs = append(errs, fmt.Errorf("min_samples must be between 3 and 10000, got %d", s.MinSamples))
	}
	if s.SmoothingWindow < 1 || s.SmoothingWindow > 100 {
		errs = append(errs, fmt.Errorf("smoothing_window must be between 1 and 100, got %d", s.SmoothingWindow))
	}
	if s.BandpassLow < 1 || s.BandpassLow > 100 {
		errs = append(errs, fmt.Errorf("bandpass_low must be between 1 and 100, got %d", s.BandpassLow))
	}
	if s.BandpassHigh < 1 || s.BandpassHigh > 100 {
		errs = append(errs, fmt.Errorf("bandpass_high must be between 1 and 100, got %d", s.BandpassHigh))
	}
	if s.PeakMinDistance < 1 || s.PeakMinDistance > 1000 {
		errs = append(errs, fmt.Errorf("peak_min_distance must be between 1 and 1000, got %d", s.PeakMinDistance))
	}
	if s.BPMMin <= 0 {
		errs = append(errs, fmt.Errorf("bpm_min must be positive, got %v", s.BPMMin))
	}
	if s.BPMMax <= s.BPMMin {
		errs = append(errs, fmt.Errorf("bpm_max (%v) must be greater than bpm_min (%v)", s.BPMMax, s.BPMMin))
	}
	if s.RetentionMs < 1000 || s.RetentionMs > 600000 {
		errs = append(errs, fmt.Errorf("retention_ms must be between 1000 and 600000, got %d", s.RetentionMs))
	}
	if s.BeatWindow < 1 || s.BeatWindow > 100 {
		errs = append(errs, fmt.Errorf("beat_window must be between 1 and 100, got %d", s.BeatWindow))
	}

	// Frame source
	if s.FrameRate < 1 || s.FrameRate > 240 {
		errs = append(errs, fmt.Errorf("frame_rate must be between 1 and 240, got %d", s.FrameRate))
	}
	if s.SimBPM < 20 || s.SimBPM > 300 {
		errs = append(errs, fmt.Errorf("sim_bpm must be between 20 and 300, got %v", s.SimBPM))
	}
	if s.SimNoise < 0 || s.SimNoise > 0.2 {
		errs = append(errs, fmt.Errorf("sim_noise must be between 0.0 and 0.2, got %v", s.SimNoise))
	}

	// The retention window must hold at least min_samples frames at the
	// configured rate, or the pipeline can never run
	if s.FrameRate > 0 && int64(s.MinSamples)*1000/int64(s.FrameRate) > s.RetentionMs {
		errs = append(errs, fmt.Errorf("retention_ms (%d) too short to hold min_samples (%d) at frame_rate (%d)",
			s.RetentionMs, s.MinSamples, s.FrameRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
