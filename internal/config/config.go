package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps how much of a config file Load will accept.
const MaxConfigFileBytes = 64 * 1024

// DriverConfig holds the BCM pin assignment for the TB6612FNG bridge.
type DriverConfig struct {
	In1Pin     int `yaml:"in1_pin"`     // AIN1, direction line A
	In2Pin     int `yaml:"in2_pin"`     // AIN2, direction line B
	PulsePin   int `yaml:"pulse_pin"`   // PWMA, one step per pulse
	StandbyPin int `yaml:"standby_pin"` // STBY, active HIGH
}

// LimitsConfig bounds focuser travel and speed.
type LimitsConfig struct {
	PositionMax int `yaml:"position_max"` // ticks, travel upper bound (lower is 0)
	SpeedMax    int `yaml:"speed_max"`    // ticks per second
}

// TimingConfig holds the step timing constants.
type TimingConfig struct {
	GranularityMs int `yaml:"granularity_ms"` // smallest schedulable interval
	PulseWidthMs  int `yaml:"pulse_width_ms"` // minimum step pulse high time
}

// DefaultsConfig contains generic runtime parameters.
type DefaultsConfig struct {
	Speed      int  `yaml:"speed"`       // initial speed, ticks per second
	DebugLevel int  `yaml:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Driver   DriverConfig   `yaml:"driver"`
	Limits   LimitsConfig   `yaml:"limits"`
	Timing   TimingConfig   `yaml:"timing"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path points at a .yaml file directly
// inside a configs/ directory, rejecting traversal out of it.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have a .yaml extension: %s", path)
	}
	clean := filepath.Clean(path)
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config file must live in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the validated configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Pins are required: there are no sensible hardware defaults.
	pins := map[string]int{
		"driver.in1_pin":     cfg.Driver.In1Pin,
		"driver.in2_pin":     cfg.Driver.In2Pin,
		"driver.pulse_pin":   cfg.Driver.PulsePin,
		"driver.standby_pin": cfg.Driver.StandbyPin,
	}
	seen := make(map[int]string, len(pins))
	for name, pin := range pins {
		if pin <= 0 {
			return nil, fmt.Errorf("%s is required and must be > 0", name)
		}
		if other, dup := seen[pin]; dup {
			return nil, fmt.Errorf("%s and %s share pin %d", name, other, pin)
		}
		seen[pin] = name
	}

	if cfg.Limits.PositionMax < 0 {
		return nil, fmt.Errorf("limits.position_max must be >= 0, got %d", cfg.Limits.PositionMax)
	}
	if cfg.Limits.PositionMax == 0 {
		cfg.Limits.PositionMax = 60000
	}
	if cfg.Limits.SpeedMax < 0 {
		return nil, fmt.Errorf("limits.speed_max must be >= 0, got %d", cfg.Limits.SpeedMax)
	}
	if cfg.Limits.SpeedMax == 0 {
		cfg.Limits.SpeedMax = 255
	}

	if cfg.Timing.GranularityMs <= 0 {
		cfg.Timing.GranularityMs = 10
	}
	if cfg.Timing.PulseWidthMs <= 0 {
		cfg.Timing.PulseWidthMs = 1
	}
	if cfg.Timing.PulseWidthMs >= cfg.Timing.GranularityMs {
		return nil, fmt.Errorf("timing.pulse_width_ms (%d) must be below timing.granularity_ms (%d)",
			cfg.Timing.PulseWidthMs, cfg.Timing.GranularityMs)
	}

	if cfg.Defaults.Speed < 0 || cfg.Defaults.Speed > cfg.Limits.SpeedMax {
		return nil, fmt.Errorf("defaults.speed must be in [0, %d], got %d",
			cfg.Limits.SpeedMax, cfg.Defaults.Speed)
	}
	if cfg.Defaults.Speed == 0 {
		cfg.Defaults.Speed = 50
	}

	return &cfg, nil
}

// Granularity returns the smallest schedulable interval.
func (c *Config) Granularity() time.Duration {
	return time.Duration(c.Timing.GranularityMs) * time.Millisecond
}

// PulseWidth returns the minimum step pulse high time.
func (c *Config) PulseWidth() time.Duration {
	return time.Duration(c.Timing.PulseWidthMs) * time.Millisecond
}
