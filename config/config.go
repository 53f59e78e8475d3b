// Package config provides the simulator configuration and its JSON file
// format.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/csim/cache"
)

// Trace output formats.
const (
	TraceFormatCSV    = "csv"
	TraceFormatSQLite = "sqlite"
)

// DefaultResultsPath is where the summary counters are written for the
// grading driver.
const DefaultResultsPath = ".csim_results"

// Config holds everything needed to run one simulation.
type Config struct {
	// SetBits is s, the number of set-index bits. Required.
	SetBits int `json:"set_bits"`

	// Associativity is E, the number of lines per set. Required.
	Associativity int `json:"associativity"`

	// BlockBits is b, the number of block-offset bits. Required.
	BlockBits int `json:"block_bits"`

	// TracePath is the trace file to replay.
	TracePath string `json:"trace_path,omitempty"`

	// Verbose echoes every access with its outcome.
	Verbose bool `json:"verbose"`

	// ResultsPath is where "hits misses evictions" is written. Empty
	// disables the file.
	ResultsPath string `json:"results_path"`

	// TraceOut records every access to this file when set.
	TraceOut string `json:"trace_out,omitempty"`

	// TraceFormat is the format of TraceOut: "csv" or "sqlite".
	TraceFormat string `json:"trace_format"`
}

// Default returns a Config with the geometry unset. The geometry must be
// provided by flags or a config file.
func Default() *Config {
	return &Config{
		SetBits:       -1,
		Associativity: -1,
		BlockBits:     -1,
		ResultsPath:   DefaultResultsPath,
		TraceFormat:   TraceFormatCSV,
	}
}

// Load loads a Config from a JSON file. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Save writes the Config to a JSON file.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CacheConfig returns the cache geometry.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		SetBits:       c.SetBits,
		Associativity: c.Associativity,
		BlockBits:     c.BlockBits,
	}
}

// Validate checks the geometry and the trace output settings.
func (c *Config) Validate() error {
	if err := c.CacheConfig().Validate(); err != nil {
		return err
	}

	switch c.TraceFormat {
	case TraceFormatCSV, TraceFormatSQLite:
	default:
		return fmt.Errorf("trace_format must be %q or %q, got %q",
			TraceFormatCSV, TraceFormatSQLite, c.TraceFormat)
	}

	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
