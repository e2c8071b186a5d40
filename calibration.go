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

import "math"

// ADC and conversion constants
const (
	// ADCFullScale is the maximum value of the sensor's 14-bit ADC
	ADCFullScale = 16383
	// adcReferenceVolts is the ADC reference voltage
	adcReferenceVolts = 0.9
	// glucoseScale maps the normalized voltage onto the mg/dL range
	glucoseScale = 300
	// fallbackGlucose is returned when a conversion produces a non-finite
	// intermediate. A corrupt single reading must never propagate NaN into
	// storage or crash the acquisition loop.
	fallbackGlucose = 100
)

// CalibrationParameters map raw sensor units to glucose concentration. They
// are derived fresh on every acquisition and never persisted across sensor
// changes: different physical sensor units carry different constants.
type CalibrationParameters struct {
	Slope  float64
	Offset float64
}

// DefaultCalibration returns the identity calibration used by the simple ADC
// sensor when no per-sensor constants are configured
func DefaultCalibration() CalibrationParameters {
	return CalibrationParameters{Slope: 1.0, Offset: 0.0}
}

// ADCToVoltage converts a raw 14-bit ADC sample to volts. Inputs outside
// [0, ADCFullScale] or non-finite fall back to 0.0; the function never
// panics. Monotonic non-decreasing and bounded in [0, 0.9] over the valid
// input range.
func ADCToVoltage(adc float64) float64 {
	if math.IsNaN(adc) || math.IsInf(adc, 0) {
		return 0.0
	}
	if adc < 0 || adc > ADCFullScale {
		return 0.0
	}
	return (adc / ADCFullScale) * adcReferenceVolts
}

// VoltageToGlucose converts a sensed voltage to a calibrated glucose value
// in mg/dL, rounded to the nearest integer and clamped at 0. Inputs outside
// [0, adcReferenceVolts], non-finite inputs and non-finite intermediates all
// yield exactly fallbackGlucose.
func VoltageToGlucose(volts float64, cal CalibrationParameters) uint32 {
	if math.IsNaN(volts) || math.IsInf(volts, 0) {
		return fallbackGlucose
	}
	if volts < 0 || volts > adcReferenceVolts {
		return fallbackGlucose
	}

	glucose := (volts / adcReferenceVolts) * glucoseScale * cal.Slope
	glucose += cal.Offset

	if math.IsNaN(glucose) || math.IsInf(glucose, 0) {
		return fallbackGlucose
	}
	if glucose < 0 {
		return 0
	}
	return uint32(math.Round(glucose))
}

// CalibrateRaw converts a masked raw glucose word to mg/dL using per-sensor
// slope and offset, rounded and clamped at 0
func CalibrateRaw(raw uint16, cal CalibrationParameters) uint32 {
	glucose := float64(raw)*cal.Slope + cal.Offset
	if math.IsNaN(glucose) || math.IsInf(glucose, 0) {
		return fallbackGlucose
	}
	if glucose < 0 {
		return 0
	}
	return uint32(math.Round(glucose))
}

// CalibrationFactors are the four 12-bit integers packed into the commercial
// sensor's calibration region. I3 and I4 are present on the tag but do not
// participate in the slope/offset derivation; they are extracted anyway so
// the full region survives for later validation against real sensor data.
type CalibrationFactors struct {
	I1 uint16
	I2 uint16
	I3 uint16
	I4 uint16
}

// calibrationRegionSize is the calibration region length in bytes (3 blocks)
const calibrationRegionSize = 3 * BlockSize

// ExtractCalibrationFactors unpacks the four nibble-interleaved 12-bit
// integers from the sensor's 24-byte calibration region:
//
//	i1 = ((b3 & 0x0F) << 8) | b2
//	i2 = ((b3 & 0xF0) << 4) | b4
//	i3 = ((b5 & 0x0F) << 8) | b6
//	i4 = ((b5 & 0xF0) << 4) | b7
func ExtractCalibrationFactors(region []byte) (CalibrationFactors, error) {
	if len(region) < calibrationRegionSize {
		return CalibrationFactors{}, ErrInsufficientData
	}

	return CalibrationFactors{
		I1: (uint16(region[3]&0x0F) << 8) | uint16(region[2]),
		I2: (uint16(region[3]&0xF0) << 4) | uint16(region[4]),
		I3: (uint16(region[5]&0x0F) << 8) | uint16(region[6]),
		I4: (uint16(region[5]&0xF0) << 4) | uint16(region[7]),
	}, nil
}

// Parameters derives the conversion slope and offset from the packed
// factors:
//
//	slope  = 0.1 + i1 * 0.0001
//	offset = -0.5 + i2 * 0.01
func (f CalibrationFactors) Parameters() CalibrationParameters {
	return CalibrationParameters{
		Slope:  0.1 + float64(f.I1)*0.0001,
		Offset: -0.5 + float64(f.I2)*0.01,
	}
}

// DecodeLibreCalibration extracts per-sensor calibration parameters from the
// raw calibration region
func DecodeLibreCalibration(region []byte) (CalibrationParameters, error) {
	factors, err := ExtractCalibrationFactors(region)
	if err != nil {
		return CalibrationParameters{}, err
	}
	return factors.Parameters(), nil
}
