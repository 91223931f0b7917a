// Package config loads the YAML configuration shared by the CLI and the
// server. Every field has a built-in default; a missing config file means
// defaults throughout.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"gapscan/pkg/bucket"
	"gapscan/pkg/freqmap"
	"gapscan/pkg/predict"
)

// DefaultPath is tried when no --config flag is given.
const DefaultPath = "gapscan.yaml"

// Config is the full configuration surface.
type Config struct {
	PrimeFile  string `yaml:"prime_file"`
	DBPath     string `yaml:"db_path"`
	ListenAddr string `yaml:"listen_addr"`

	// StartIndex skips the first pairs of the sequence; 10 keeps the
	// boundary pair (2,3) and its odd anchor out of every scan.
	StartIndex  int    `yaml:"start_index"`
	PairCount   int    `yaml:"pair_count"`
	SearchBound uint64 `yaml:"search_bound"`
	Candidates  int    `yaml:"candidates"`

	GapThresholds bucket.Thresholds `yaml:"gap_thresholds"`

	CleanThreshold float64 `yaml:"clean_threshold"`
	MessyThreshold float64 `yaml:"messy_threshold"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PrimeFile:      "primes.txt",
		DBPath:         "gapscan.sqlite",
		ListenAddr:     ":8080",
		StartIndex:     10,
		PairCount:      1_000_000,
		SearchBound:    freqmap.DefaultSearchBound,
		Candidates:     predict.DefaultCandidates,
		GapThresholds:  bucket.DefaultThresholds(),
		CleanThreshold: predict.DefaultCleanThreshold,
		MessyThreshold: predict.DefaultMessyThreshold,
	}
}

// Load reads path over the defaults. An empty path falls back to DefaultPath
// and falls back to pure defaults when it does not exist; an explicit
// path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
