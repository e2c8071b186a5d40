// go-cgm
// Copyright (c) 2026 The go-cgm Authors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-cgm.
//
// go-cgm is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-cgm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-cgm; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// duration parses YAML values like "5m" or "90s"
type duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = duration(parsed)
	return nil
}

// fileConfig is the on-disk tool configuration. Command line flags override
// any value set here.
type fileConfig struct {
	// Adapter selects the bridge attachment: "uart" or "i2c".
	Adapter string `yaml:"adapter"`
	// Port is the serial port for UART attachment.
	Port string `yaml:"port"`
	// I2CBus is the bus name for I2C attachment; empty means the host
	// default.
	I2CBus string `yaml:"i2c_bus"`
	// User attributes stored readings to an account.
	User string `yaml:"user"`
	// Interval is the monitoring period.
	Interval duration `yaml:"interval"`
	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose"`
}

// defaultFileConfig returns the configuration used when no file is given
func defaultFileConfig() fileConfig {
	return fileConfig{
		Adapter:  "uart",
		Interval: duration(5 * time.Minute),
	}
}

// loadConfig reads and validates a YAML configuration file
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()

	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	switch cfg.Adapter {
	case "uart", "i2c":
	default:
		return cfg, fmt.Errorf("unknown adapter %q (want uart or i2c)", cfg.Adapter)
	}
	if cfg.Interval <= 0 {
		return cfg, fmt.Errorf("interval must be positive, got %s", time.Duration(cfg.Interval))
	}
	return cfg, nil
}
