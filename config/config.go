// Package config loads the server configuration from YAML with
// FITNESSGUIDE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ElectrobladeIsADev/fitnessguide/analytics"
	"github.com/ElectrobladeIsADev/fitnessguide/exercise"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	HTTP      HTTPConfig                              `yaml:"http"`
	UDP       UDPConfig                               `yaml:"udp"`
	BLE       BLEConfig                               `yaml:"ble"`
	Log       LogConfig                               `yaml:"log"`
	Session   SessionConfig                           `yaml:"session"`
	Exercises map[exercise.Exercise]exercise.Override `yaml:"exercises"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins are host patterns of dashboards allowed to open /ws
	// cross-origin. Same-origin clients are always accepted.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type UDPConfig struct {
	Addr string `yaml:"addr"`
}

type BLEConfig struct {
	Enabled      bool          `yaml:"enabled"`
	DeviceName   string        `yaml:"device_name"`
	ScanInterval time.Duration `yaml:"scan_interval"`
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	JSON   bool   `yaml:"json"`
	Stdout bool   `yaml:"stdout"`
}

type SessionConfig struct {
	Exercise         exercise.Exercise `yaml:"exercise"`
	BodyWeightKg     float64           `yaml:"body_weight_kg"`
	TargetRepsPerSet int               `yaml:"target_reps_per_set"`
	FrameWidth       float64           `yaml:"frame_width"`
	FrameHeight      float64           `yaml:"frame_height"`
}

// Default returns a configuration that works without a config file.
func Default() *Config {
	s := analytics.DefaultSettings()
	return &Config{
		HTTP: HTTPConfig{Addr: ":8080", AllowedOrigins: []string{"*"}},
		UDP:  UDPConfig{Addr: ":4210"},
		BLE: BLEConfig{
			DeviceName:   "PoseSensor",
			ScanInterval: 2 * time.Second,
			ScanTimeout:  10 * time.Second,
			RetryDelay:   2 * time.Second,
		},
		Log: LogConfig{Level: "info", Stdout: true},
		Session: SessionConfig{
			Exercise:         s.Exercise,
			BodyWeightKg:     s.BodyWeightKg,
			TargetRepsPerSet: s.TargetRepsPerSet,
			FrameWidth:       s.FrameWidth,
			FrameHeight:      s.FrameHeight,
		},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides. An empty path skips the file:
//
//	FITNESSGUIDE_HTTP_ADDR, FITNESSGUIDE_ALLOWED_ORIGINS, FITNESSGUIDE_UDP_ADDR,
//	FITNESSGUIDE_LOG_LEVEL, FITNESSGUIDE_LOG_FILE,
//	FITNESSGUIDE_BLE_ENABLED, FITNESSGUIDE_EXERCISE,
//	FITNESSGUIDE_BODY_WEIGHT_KG, FITNESSGUIDE_TARGET_REPS
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FITNESSGUIDE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("FITNESSGUIDE_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("FITNESSGUIDE_UDP_ADDR"); v != "" {
		cfg.UDP.Addr = v
	}
	if v := os.Getenv("FITNESSGUIDE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("FITNESSGUIDE_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("FITNESSGUIDE_BLE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FITNESSGUIDE_BLE_ENABLED: %w", err)
		}
		cfg.BLE.Enabled = enabled
	}
	if v := os.Getenv("FITNESSGUIDE_EXERCISE"); v != "" {
		e, err := exercise.Parse(v)
		if err != nil {
			return fmt.Errorf("%w: FITNESSGUIDE_EXERCISE: %w", ErrInvalid, err)
		}
		cfg.Session.Exercise = e
	}
	if v := os.Getenv("FITNESSGUIDE_BODY_WEIGHT_KG"); v != "" {
		kg, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FITNESSGUIDE_BODY_WEIGHT_KG: %w", err)
		}
		cfg.Session.BodyWeightKg = kg
	}
	if v := os.Getenv("FITNESSGUIDE_TARGET_REPS"); v != "" {
		reps, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FITNESSGUIDE_TARGET_REPS: %w", err)
		}
		cfg.Session.TargetRepsPerSet = reps
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("%w: http.addr is required", ErrInvalid)
	}
	if c.UDP.Addr == "" {
		return fmt.Errorf("%w: udp.addr is required", ErrInvalid)
	}
	if c.BLE.Enabled && c.BLE.ScanInterval <= 0 {
		return fmt.Errorf("%w: ble.scan_interval must be positive", ErrInvalid)
	}

	table, err := c.Table()
	if err != nil {
		return fmt.Errorf("%w: exercises: %w", ErrInvalid, err)
	}
	settings, err := c.Settings(table)
	if err != nil {
		return err
	}
	if err := settings.Validate(table); err != nil {
		return fmt.Errorf("%w: session: %w", ErrInvalid, err)
	}
	return nil
}

// Table returns the built-in exercise profiles with the configured overrides.
func (c *Config) Table() (exercise.Table, error) {
	return exercise.DefaultTable().WithOverrides(c.Exercises)
}

// Settings returns the initial session settings, using the thresholds of
// the configured exercise's profile.
func (c *Config) Settings(table exercise.Table) (analytics.Settings, error) {
	profile, err := table.Lookup(c.Session.Exercise)
	if err != nil {
		return analytics.Settings{}, fmt.Errorf("%w: session.exercise: %w", ErrInvalid, err)
	}

	s := analytics.Settings{
		Exercise:         c.Session.Exercise,
		MinAngle:         exercise.DefaultMinAngle,
		MaxAngle:         exercise.DefaultMaxAngle,
		BodyWeightKg:     c.Session.BodyWeightKg,
		TargetRepsPerSet: c.Session.TargetRepsPerSet,
		FrameWidth:       c.Session.FrameWidth,
		FrameHeight:      c.Session.FrameHeight,
	}
	if profile.AngleModel {
		s.MinAngle = profile.DefaultMinAngle
		s.MaxAngle = profile.DefaultMaxAngle
	}
	return s, nil
}
