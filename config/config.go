// Package config holds the settings of the engine and the console.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/wam"
)

var (
	// ErrUnknownSetting is returned when setting a key that doesn't exist.
	ErrUnknownSetting = errors.Kind("unknown internal variable")
	// ErrInvalidSetting is returned when a value can't be parsed or is out of range.
	ErrInvalidSetting = errors.Kind("invalid setting")
)

// Config is the content of config.yaml.
type Config struct {
	// AutoStop is the maximum number of statements executed per solution.
	AutoStop int `yaml:"autostop"`
	// Debug is the trace level: 0 is off, 1 records statements and 2 also
	// records the machine state.
	Debug int `yaml:"debug"`
	// Benchmark shows op counts and timings after each solution.
	Benchmark bool `yaml:"benchmark"`
	// DebugDir is where query traces are written.
	DebugDir string `yaml:"debug_dir"`
	// HistoryFile keeps the console history.
	HistoryFile string `yaml:"history_file"`
	// MetricsAddr is the address to serve Prometheus metrics, if not empty.
	MetricsAddr string `yaml:"metrics_addr"`
	// SearchPaths are directories searched by consult and load.
	SearchPaths []string `yaml:"search_paths"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		AutoStop: wam.DefaultMaxOpCount,
		DebugDir: "debug",
	}
}

// Load reads a configuration file, using defaults for missing fields.
func Load(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(bs)
	if err != nil {
		return nil, errors.New("%s: %v", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration, using defaults for missing fields.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.New("%v: %v", ErrInvalidSetting, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every field is within range.
func (cfg *Config) Validate() error {
	if cfg.AutoStop <= 0 {
		return errors.New("%v: autostop must be positive, got %d", ErrInvalidSetting, cfg.AutoStop)
	}
	if cfg.Debug < 0 || cfg.Debug > 2 {
		return errors.New("%v: debug must be between 0 and 2, got %d", ErrInvalidSetting, cfg.Debug)
	}
	return nil
}

// Marshal encodes the configuration as YAML.
func (cfg *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(cfg)
}

// Keys lists the settings that can be changed with Set.
var Keys = []string{"autostop", "benchmark", "debug", "debug_dir", "history_file", "metrics_addr", "search_paths"}

// Set changes a setting from its textual value.
func (cfg *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	next := *cfg
	switch strings.ToLower(key) {
	case "autostop":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.New("%v: autostop: %v", ErrInvalidSetting, err)
		}
		next.AutoStop = n
	case "benchmark":
		b, err := parseBool(value)
		if err != nil {
			return errors.New("%v: benchmark: %v", ErrInvalidSetting, err)
		}
		next.Benchmark = b
	case "debug":
		n, err := strconv.Atoi(value)
		if err != nil {
			return errors.New("%v: debug: %v", ErrInvalidSetting, err)
		}
		next.Debug = n
	case "debug_dir":
		next.DebugDir = value
	case "history_file":
		next.HistoryFile = value
	case "metrics_addr":
		next.MetricsAddr = value
	case "search_paths":
		next.SearchPaths = nil
		for _, path := range strings.Split(value, ",") {
			if path = strings.TrimSpace(path); path != "" {
				next.SearchPaths = append(next.SearchPaths, path)
			}
		}
	default:
		return errors.New("%v: %s", ErrUnknownSetting, key)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// parseBool accepts the integers used by older consoles, besides Go booleans.
func parseBool(value string) (bool, error) {
	if n, err := strconv.Atoi(value); err == nil {
		return n > 0, nil
	}
	switch strings.ToLower(value) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(value)
}

// Get returns the textual value of a setting.
func (cfg *Config) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "autostop":
		return strconv.Itoa(cfg.AutoStop), nil
	case "benchmark":
		return strconv.FormatBool(cfg.Benchmark), nil
	case "debug":
		return strconv.Itoa(cfg.Debug), nil
	case "debug_dir":
		return cfg.DebugDir, nil
	case "history_file":
		return cfg.HistoryFile, nil
	case "metrics_addr":
		return cfg.MetricsAddr, nil
	case "search_paths":
		return strings.Join(cfg.SearchPaths, ","), nil
	}
	return "", errors.New("%v: %s", ErrUnknownSetting, key)
}

// Describe returns the console line that shows a setting.
func (cfg *Config) Describe(key string) string {
	value, err := cfg.Get(key)
	if err != nil {
		return "Unknown internal variable."
	}
	return fmt.Sprintf("Internal variable %s = %s", strings.ToUpper(key), value)
}

// Apply copies the engine settings to m.
func (cfg *Config) Apply(m *wam.Machine) {
	m.MaxOpCount = cfg.AutoStop
	m.Debug = cfg.Debug
	m.SearchPaths = cfg.SearchPaths
}
