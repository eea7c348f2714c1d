// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/thediveo/cores"
)

// Config validation errors
var (
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel  = errors.New("log_level must be trace, debug, info, warn, or error")
	ErrNoCommonCores    = errors.New("none of the configured cores is permitted")
)

// Config is read from COREPIN_* environment variables.
type Config struct {
	CPUs        cores.Utilization `envconfig:"CPUS" default:"max"`
	// Cores optionally restricts the permitted cores, in CPU list format such
	// as “0-3,8” or “0, 2”.
	Cores       string            `envconfig:"CORES"`
	Duration    time.Duration     `envconfig:"DURATION" default:"2s"`
	Strict      bool              `envconfig:"STRICT" default:"false"`
	LogLevel    string            `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string            `envconfig:"LOG_FORMAT" default:"json"`
	MetricsFile string            `envconfig:"METRICS_FILE"`
}

// LoadConfig loads the configuration from the environment, after first
// loading the specified dotenv file if it exists. Variables already set in the
// environment take precedence over the dotenv file.
func LoadConfig(dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	}
	var cfg Config
	if err := envconfig.Process("corepin", &cfg); err != nil {
		return Config{}, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.Duration <= 0 {
		return ErrInvalidDuration
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Cores != "" {
		if _, err := cores.ParseSet(cfg.Cores); err != nil {
			return fmt.Errorf("invalid cores %q: %w", cfg.Cores, err)
		}
	}
	return nil
}

// Restrict returns the permitted cores, narrowed down to the configured cores
// if any.
func (cfg *Config) Restrict(permitted cores.Set) (cores.Set, error) {
	if cfg.Cores == "" {
		return permitted, nil
	}
	configured, err := cores.ParseSet(cfg.Cores)
	if err != nil {
		return cores.Set{}, err
	}
	common := permitted.Intersect(configured)
	if common.IsEmpty() {
		return cores.Set{}, fmt.Errorf("%w: configured %s, permitted %s",
			ErrNoCommonCores, configured, permitted)
	}
	return common, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return zerolog.ParseLevel(level)
	}
	return zerolog.NoLevel, ErrInvalidLogLevel
}
