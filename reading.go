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

package cgm

import (
	"time"

	"github.com/google/uuid"
)

// Glucose alert thresholds in mg/dL
const (
	// LowGlucoseThreshold marks hypoglycemia
	LowGlucoseThreshold = 70
	// HighGlucoseThreshold marks hyperglycemia
	HighGlucoseThreshold = 180
)

// ReadingSource identifies how a reading was produced
type ReadingSource string

const (
	// SourceManualScan is a user-initiated one-shot scan
	SourceManualScan ReadingSource = "manual_scan"
	// SourceAutoMonitor is a periodic monitoring cycle
	SourceAutoMonitor ReadingSource = "auto_monitor"
	// SourceCalibration is a reading taken for calibration purposes
	SourceCalibration ReadingSource = "calibration"
	// SourceLibreSensor is a reading recovered from a commercial sensor's
	// on-tag history
	SourceLibreSensor ReadingSource = "libre_sensor"
)

// SensorType identifies the physical sensor protocol on the tag
type SensorType string

const (
	// SensorRF430 is the simple custom ADC sensor (protocol A)
	SensorRF430 SensorType = "rf430"
	// SensorLibre is the reverse-engineered commercial sensor (protocol B)
	SensorLibre SensorType = "libre"
	// SensorUnknown means neither protocol responded
	SensorUnknown SensorType = "unknown"
)

// GlucoseReading is one calibrated measurement. Immutable once created;
// ownership passes to the monitoring loop, which forwards it to external
// storage and UI collaborators.
type GlucoseReading struct {
	Timestamp time.Time
	ID        string
	Source    ReadingSource
	Value     uint32
	IsAlert   bool
}

// NewGlucoseReading creates a reading timestamped now. The value is assumed
// already rounded and clamped by the calibration engine.
func NewGlucoseReading(value uint32, source ReadingSource) GlucoseReading {
	return newGlucoseReadingAt(value, source, time.Now())
}

// newGlucoseReadingAt creates a reading with an explicit timestamp, used for
// backfilled sensor-history entries
func newGlucoseReadingAt(value uint32, source ReadingSource, at time.Time) GlucoseReading {
	return GlucoseReading{
		ID:        uuid.NewString(),
		Value:     value,
		Timestamp: at,
		Source:    source,
		IsAlert:   IsAlertValue(value),
	}
}

// IsAlertValue reports whether a glucose value is outside the alert band
func IsAlertValue(value uint32) bool {
	return value < LowGlucoseThreshold || value > HighGlucoseThreshold
}

// SensorInfo carries per-sensor metadata decoded alongside a reading. It is
// informational only; glucose calculation does not depend on it.
type SensorInfo struct {
	// Model is the sensor model name from the identification lookup.
	Model string
	// RemainingLifeMinutes is the sensor's reported remaining wear time.
	RemainingLifeMinutes uint16
}
