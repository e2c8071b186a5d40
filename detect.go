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

	ndef "github.com/hsanjuan/go-ndef"
	"github.com/sirupsen/logrus"
)

// Detector classifies the physical tag before a full read is attempted.
// Probes run in priority order: the commercial sensor first, because its
// block-0 response shape is distinctive, while a false ADC-sensor positive
// on a commercial tag would select the wrong decoder.
type Detector struct {
	transport *BlockTransport
	log       logrus.FieldLogger
}

// DetectorOption configures a Detector
type DetectorOption func(*Detector)

// WithDetectorLogger sets the detector's logger
func WithDetectorLogger(log logrus.FieldLogger) DetectorOption {
	return func(d *Detector) {
		d.log = log
	}
}

// NewDetector creates a sensor type detector over the given transport
func NewDetector(transport *BlockTransport, opts ...DetectorOption) *Detector {
	detector := &Detector{
		transport: transport,
		log:       logrus.StandardLogger().WithField("component", "detector"),
	}
	for _, opt := range opts {
		opt(detector)
	}
	return detector
}

// Detect probes the tag and returns its sensor type. Detection never
// returns an error: transport failures simply mean "not this protocol".
func (d *Detector) Detect(ctx context.Context) SensorType {
	if d.probeLibre(ctx) {
		return SensorLibre
	}
	if d.probeRF430(ctx) {
		return SensorRF430
	}
	return SensorUnknown
}

// probeLibre reads block 0 and checks that it carries a recognizable sensor
// identification byte
func (d *Detector) probeLibre(ctx context.Context) bool {
	block, err := d.transport.ReadBlock(ctx, libreBlockStart)
	if err != nil {
		d.log.WithError(err).Debug("libre probe failed")
		return false
	}
	if SensorModelName(block) == libreModelUnknown {
		d.log.Debug("libre probe: block 0 shape not recognized")
		return false
	}
	return true
}

// probeRF430 reads the ADC result block; any well-formed answer means the
// simple sensor is in field
func (d *Detector) probeRF430(ctx context.Context) bool {
	if _, err := d.transport.ReadBlock(ctx, rf430ResultBlock); err != nil {
		d.log.WithError(err).Debug("rf430 probe failed")
		return false
	}
	return true
}

// foreignTagProbeBlocks is how many leading blocks are inspected when
// identifying a non-sensor tag
const foreignTagProbeBlocks = 4

// IdentifyForeignTag tries to describe an unrecognized tag for diagnostics.
// It reads the first few blocks and, when they carry an NDEF TLV, parses the
// message. Purely best-effort: a failure returns ok=false, never an error.
func (d *Detector) IdentifyForeignTag(ctx context.Context) (description string, ok bool) {
	var data []byte
	for addr := byte(0); addr < foreignTagProbeBlocks; addr++ {
		block, err := d.transport.ReadBlock(ctx, addr)
		if err != nil {
			break
		}
		data = append(data, block...)
	}

	payload := extractNDEFPayload(data)
	if len(payload) == 0 {
		return "", false
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(payload); err != nil {
		d.log.WithError(err).Debug("foreign tag carries malformed NDEF")
		return "", false
	}

	return msg.String(), true
}

// extractNDEFPayload scans TLV structures for an NDEF message TLV (type
// 0x03, short form) and returns its payload, or nil if none is present
func extractNDEFPayload(data []byte) []byte {
	for i := 0; i < len(data)-1; {
		tlvType := data[i]
		tlvLen := int(data[i+1])

		if tlvType == 0x03 {
			if i+2+tlvLen > len(data) {
				return nil
			}
			return data[i+2 : i+2+tlvLen]
		}

		// Null TLV is a single padding byte
		if tlvType == 0x00 {
			i++
			continue
		}
		i += 2 + tlvLen
	}
	return nil
}
