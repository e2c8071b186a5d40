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

	"github.com/sirupsen/logrus"
)

// RF430 sensor block map
const (
	// rf430ControlBlock starts an ADC conversion
	rf430ControlBlock = 0x00
	// rf430ConfigBlock holds gain/filter/decimation settings
	rf430ConfigBlock = 0x02
	// rf430ResultBlock holds the completed conversion result
	rf430ResultBlock = 0x09
)

// rf430SettleDelay is how long the sensor needs to complete one ADC
// conversion after sampling starts. Fixed by the hardware, not configurable
// in production; the decoder config carries it only so tests can shrink it.
const rf430SettleDelay = 1000 * time.Millisecond

// Fixed command payloads for the RF430 sensor
var (
	// rf430ConfigPayload sets gain, filter and decimation
	rf430ConfigPayload = []byte{0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x00}
	// rf430StartPayload starts one sampling cycle
	rf430StartPayload = []byte{0x01, 0x00, 0x04, 0x00, 0x01, 0x01, 0x00, 0x00}
)

// RF430Config configures the RF430 decoder
type RF430Config struct {
	// Calibration maps the sensed voltage to glucose. Fixed or
	// sensor-configured; the RF430 carries no calibration region of its own.
	Calibration CalibrationParameters
	// SettleDelay is the post-start conversion wait.
	SettleDelay time.Duration
}

// DefaultRF430Config returns the production configuration
func DefaultRF430Config() *RF430Config {
	return &RF430Config{
		Calibration: DefaultCalibration(),
		SettleDelay: rf430SettleDelay,
	}
}

// Validate checks the configuration
func (c *RF430Config) Validate() error {
	if c.SettleDelay <= 0 {
		return ErrInvalidParameter
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *RF430Config) Clone() *RF430Config {
	clone := *c
	return &clone
}

// RF430Decoder drives the simple ADC sensor through its linear
// configure → sample → wait → read cycle. The decoder performs no internal
// retries: each transport failure maps directly onto the cycle's error and
// the caller decides whether to rerun the whole cycle.
type RF430Decoder struct {
	transport *BlockTransport
	config    *RF430Config
	log       logrus.FieldLogger
}

// RF430Option configures an RF430Decoder
type RF430Option func(*RF430Decoder)

// WithRF430Logger sets the decoder's logger
func WithRF430Logger(log logrus.FieldLogger) RF430Option {
	return func(d *RF430Decoder) {
		d.log = log
	}
}

// NewRF430Decoder creates a decoder over the given transport
func NewRF430Decoder(transport *BlockTransport, config *RF430Config, opts ...RF430Option) *RF430Decoder {
	if config == nil {
		config = DefaultRF430Config()
	}
	decoder := &RF430Decoder{
		transport: transport,
		config:    config,
		log:       logrus.StandardLogger().WithField("component", "rf430"),
	}
	for _, opt := range opts {
		opt(decoder)
	}
	return decoder
}

// ReadRaw runs one full sampling cycle and returns the raw 14-bit ADC value
func (d *RF430Decoder) ReadRaw(ctx context.Context) (uint16, error) {
	if err := d.transport.WriteBlock(ctx, rf430ConfigBlock, rf430ConfigPayload); err != nil {
		return 0, err
	}

	if err := d.transport.WriteBlock(ctx, rf430ControlBlock, rf430StartPayload); err != nil {
		return 0, err
	}

	if err := sleepContext(ctx, d.config.SettleDelay); err != nil {
		return 0, err
	}

	// ReadBlock returns exactly BlockSize bytes or an error, so the result
	// word at offset 1 is always addressable.
	result, err := d.transport.ReadBlock(ctx, rf430ResultBlock)
	if err != nil {
		return 0, err
	}

	raw := binary.LittleEndian.Uint16(result[1:3])
	if raw > ADCFullScale {
		// Out-of-range means the conversion never ran or the block is
		// corrupt. Fatal for this cycle, not a retryable channel fault.
		return 0, NewTransportError("readResult", d.transport.adapterName(),
			ErrInvalidResponse, ErrorTypePermanent)
	}

	return raw, nil
}

// ReadGlucose runs one sampling cycle and converts the result to a
// calibrated glucose reading
func (d *RF430Decoder) ReadGlucose(ctx context.Context, source ReadingSource) (GlucoseReading, error) {
	raw, err := d.ReadRaw(ctx)
	if err != nil {
		return GlucoseReading{}, err
	}

	volts := ADCToVoltage(float64(raw))
	value := VoltageToGlucose(volts, d.config.Calibration)

	d.log.WithFields(logrus.Fields{
		"raw":   raw,
		"volts": volts,
		"value": value,
	}).Debug("rf430 cycle complete")

	return NewGlucoseReading(value, source), nil
}
