package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all profcheck configuration.
type Config struct {
	// ExpectedName is the instance name the pipeline asserts on.
	ExpectedName string

	// Nodes is a comma-separated list of node ids to ingest ("" = all).
	Nodes string

	// CallThreshold drops mapper/runtime calls shorter than this duration
	// during parsing. Zero keeps everything.
	CallThreshold time.Duration

	// Verbose enables per-record debug logging during the parse.
	Verbose bool

	// LogLevel is the slog level for diagnostics ("debug", "info", ...).
	LogLevel string

	// LogJSON switches stderr diagnostics to JSON for harness consumption.
	LogJSON bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		ExpectedName:  getenv("PROFCHECK_EXPECTED_NAME", "my_test_instance"),
		Nodes:         os.Getenv("PROFCHECK_NODES"),
		CallThreshold: getenvDuration("PROFCHECK_CALL_THRESHOLD", 0),
		Verbose:       getenvBool("PROFCHECK_VERBOSE", false),
		LogLevel:      getenv("PROFCHECK_LOG_LEVEL", "info"),
		LogJSON:       getenvBool("PROFCHECK_LOG_JSON", false),
	}
}

// fileConfig mirrors Config for the optional YAML config file. Pointer
// fields distinguish "absent" from a zero value.
type fileConfig struct {
	ExpectedName  *string `yaml:"expected_name"`
	Nodes         *string `yaml:"nodes"`
	CallThreshold *string `yaml:"call_threshold"`
	Verbose       *bool   `yaml:"verbose"`
	LogLevel      *string `yaml:"log_level"`
	LogJSON       *bool   `yaml:"log_json"`
}

// ApplyFile overlays settings from a YAML config file onto c. Fields absent
// from the file are left untouched.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if fc.ExpectedName != nil {
		c.ExpectedName = *fc.ExpectedName
	}
	if fc.Nodes != nil {
		c.Nodes = *fc.Nodes
	}
	if fc.CallThreshold != nil {
		d, err := time.ParseDuration(*fc.CallThreshold)
		if err != nil {
			return fmt.Errorf("parsing call_threshold in %s: %w", path, err)
		}
		c.CallThreshold = d
	}
	if fc.Verbose != nil {
		c.Verbose = *fc.Verbose
	}
	if fc.LogLevel != nil {
		c.LogLevel = *fc.LogLevel
	}
	if fc.LogJSON != nil {
		c.LogJSON = *fc.LogJSON
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
