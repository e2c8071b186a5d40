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

package monitor

import (
	"time"

	cgm "github.com/mohamedS2020/go-cgm"
)

// Interval bounds. Out-of-range intervals are clamped, not rejected, so a
// bad stored preference can never disable monitoring.
const (
	MinInterval = 1 * time.Minute
	MaxInterval = 30 * time.Minute
)

// DefaultInterval is the periodic acquisition period
const DefaultInterval = 5 * time.Minute

// DefaultMaxConsecutiveFailures is how many counted failures in a row stop
// the loop
const DefaultMaxConsecutiveFailures = 3

// Config controls the monitoring loop
type Config struct {
	// Interval is the period between automatic acquisition cycles.
	Interval time.Duration
	// AcquireTimeout is the radio hold watchdog for quick-read sensors.
	AcquireTimeout time.Duration
	// BulkAcquireTimeout is the radio hold watchdog for bulk-read sensors.
	BulkAcquireTimeout time.Duration
	// MaxConsecutiveFailures is the counted-failure budget before the loop
	// stops itself.
	MaxConsecutiveFailures int
}

// DefaultConfig returns the production monitoring configuration
func DefaultConfig() *Config {
	return &Config{
		Interval:               DefaultInterval,
		AcquireTimeout:         cgm.DefaultWatchdogTimeout,
		BulkAcquireTimeout:     cgm.BulkReadWatchdogTimeout,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return cgm.ErrInvalidParameter
	}
	if c.AcquireTimeout <= 0 || c.BulkAcquireTimeout <= 0 {
		return cgm.ErrInvalidParameter
	}
	if c.MaxConsecutiveFailures < 1 {
		return cgm.ErrInvalidParameter
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// clampInterval forces d into the supported monitoring range
func clampInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}
