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
	"context"
	"encoding/binary"
	"time"
)

// History region layout
const (
	// libreHistoryEntries is the maximum number of history entries
	libreHistoryEntries = 32
	// libreHistoryEntrySize is the per-entry byte length
	libreHistoryEntrySize = 6
	// libreHistoryInterval is the sensor's history sampling period
	libreHistoryInterval = 15 * time.Minute
)

// Remaining-life sanity bounds
const (
	// maxPlausibleLifeMinutes marks corrupt remaining-life words
	maxPlausibleLifeMinutes = 30000
	// defaultLifeMinutes is 14 days, substituted for corrupt values
	defaultLifeMinutes = 20160
)

// libreModelUnknown is the fallback model name
const libreModelUnknown = "Unknown"

// libreModels maps the first byte of block 0 to a sensor model name
var libreModels = map[byte]string{
	0xDF: "Libre 1",
	0xA2: "Libre 2",
	0xE5: "Libre Pro/H",
	0x9D: "Libre US 14 day",
	0xC5: "Libre 3",
}

// SensorModelName identifies the sensor model from block 0. An unrecognized
// identification byte followed by two zero bytes is a Libre Sense; anything
// else is unknown.
func SensorModelName(block0 []byte) string {
	if len(block0) < 3 {
		return libreModelUnknown
	}
	if model, ok := libreModels[block0[0]]; ok {
		return model
	}
	if block0[1] == 0x00 && block0[2] == 0x00 {
		return "Libre Sense"
	}
	return libreModelUnknown
}

// LibreReadout is the full decoded result of one commercial-sensor
// acquisition
type LibreReadout struct {
	// Current is the calibrated present-time reading.
	Current GlucoseReading
	// History holds backfilled readings recovered from the on-tag buffer,
	// newest first.
	History []GlucoseReading
	// Info is per-sensor metadata.
	Info SensorInfo
	// Calibration is the per-read slope and offset in effect.
	Calibration CalibrationParameters
	// Factors are the raw packed calibration integers.
	Factors CalibrationFactors
	// RawGlucose is the masked 14-bit trend word.
	RawGlucose uint16
}

// Read performs a full acquisition: bulk memory read followed by decoding.
// source tags the current reading; history entries always carry
// SourceLibreSensor since they originate from the sensor's own buffer.
func (d *LibreDecoder) Read(ctx context.Context, source ReadingSource) (*LibreReadout, error) {
	image, err := d.ReadImage(ctx)
	if err != nil {
		return nil, err
	}
	return d.Decode(image, source, time.Now())
}

// Decode turns an accepted memory image into a readout. Calibration is
// re-extracted from the image on every call; constants differ between
// physical sensor units and must never be reused across reads.
func (d *LibreDecoder) Decode(image *MemoryImage, source ReadingSource, now time.Time) (*LibreReadout, error) {
	factors, err := ExtractCalibrationFactors(image.Region(libreCalibrationStart, libreCalibrationBlocks))
	if err != nil {
		return nil, err
	}
	cal := factors.Parameters()

	trend := image.Block(libreTrendBlock)
	raw := binary.LittleEndian.Uint16(trend[0:2]) & rawGlucoseMask
	value := CalibrateRaw(raw, cal)
	if value > libreDisplayCeiling {
		d.log.WithField("value", value).Warn("calibrated value exceeds vendor display ceiling")
	}

	readout := &LibreReadout{
		Current:     newGlucoseReadingAt(value, source, now),
		History:     decodeHistory(image, cal, now),
		Info:        decodeSensorInfo(image),
		Calibration: cal,
		Factors:     factors,
		RawGlucose:  raw,
	}

	return readout, nil
}

// decodeHistory parses up to 32 six-byte entries from the history region.
// An entry whose raw word is zero means "no data", not zero glucose, and is
// skipped. Entry i is timestamped one sampling period per index before now.
func decodeHistory(image *MemoryImage, cal CalibrationParameters, now time.Time) []GlucoseReading {
	regionBlocks := int(image.end) - libreHistoryStart + 1
	region := image.Region(libreHistoryStart, regionBlocks)

	entries := len(region) / libreHistoryEntrySize
	if entries > libreHistoryEntries {
		entries = libreHistoryEntries
	}

	history := make([]GlucoseReading, 0, entries)
	for i := 0; i < entries; i++ {
		entry := region[i*libreHistoryEntrySize : (i+1)*libreHistoryEntrySize]
		raw := binary.LittleEndian.Uint16(entry[0:2]) & rawGlucoseMask
		if raw == 0 {
			continue
		}

		at := now.Add(-time.Duration(i) * libreHistoryInterval)
		history = append(history, newGlucoseReadingAt(CalibrateRaw(raw, cal), SourceLibreSensor, at))
	}

	return history
}

// decodeSensorInfo extracts model identification and remaining life
func decodeSensorInfo(image *MemoryImage) SensorInfo {
	status := image.Block(libreStatusBlock)
	life := binary.LittleEndian.Uint16(status[4:6])
	if life > maxPlausibleLifeMinutes {
		life = defaultLifeMinutes
	}

	return SensorInfo{
		Model:                SensorModelName(image.Block(libreBlockStart)),
		RemainingLifeMinutes: life,
	}
}
