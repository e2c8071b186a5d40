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
	"testing"

	ndef "github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedS2020/go-cgm/internal/sensortest"
)

func newTestDetector(sensor *sensortest.VirtualSensor) (*Detector, *MockAdapter) {
	adapter := NewMockAdapter()
	adapter.SetTransceiveFunc(sensortest.Handler(sensor))
	return NewDetector(NewBlockTransport(adapter)), adapter
}

func TestDetectLibre(t *testing.T) {
	t.Parallel()

	detector, _ := newTestDetector(sensortest.NewVirtualLibre(sensortest.DefaultLibreOptions()))
	assert.Equal(t, SensorLibre, detector.Detect(context.Background()))
}

func TestDetectRF430(t *testing.T) {
	t.Parallel()

	detector, _ := newTestDetector(sensortest.NewVirtualRF430(9360))
	assert.Equal(t, SensorRF430, detector.Detect(context.Background()))
}

func TestDetectUnknown(t *testing.T) {
	t.Parallel()

	// A short foreign tag: block 0 carries no sensor signature and the ADC
	// result block is out of range.
	sensor := sensortest.NewVirtualSensor(0x03)
	sensor.SetBlock(0x00, []byte{0xAA, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	detector, _ := newTestDetector(sensor)

	assert.Equal(t, SensorUnknown, detector.Detect(context.Background()))
}

func TestDetectNoTag(t *testing.T) {
	t.Parallel()

	adapter := NewMockAdapter()
	adapter.SetTagPresent(false)
	detector := NewDetector(NewBlockTransport(adapter))

	assert.Equal(t, SensorUnknown, detector.Detect(context.Background()))
}

func TestDetectProbeOrder(t *testing.T) {
	t.Parallel()

	// A commercial sensor also answers reads of the ADC result block, so the
	// commercial probe must win.
	sensor := sensortest.NewVirtualLibre(sensortest.DefaultLibreOptions())
	detector, _ := newTestDetector(sensor)

	assert.Equal(t, SensorLibre, detector.Detect(context.Background()))
	assert.Positive(t, sensor.ReadCount(0x00))
	assert.Zero(t, sensor.ReadCount(0x09), "commercial match must short-circuit the ADC probe")
}

func TestIdentifyForeignTag(t *testing.T) {
	t.Parallel()

	msg := ndef.NewTextMessage("hello", "en")
	payload, err := msg.Marshal()
	require.NoError(t, err)
	require.LessOrEqual(t, len(payload), 0xFE)

	// NDEF message TLV followed by a terminator, spread over the leading
	// blocks.
	data := append([]byte{0x00, 0x03, byte(len(payload))}, payload...)
	data = append(data, 0xFE)

	sensor := sensortest.NewVirtualSensor(0x03)
	for i := 0; i*sensortest.BlockSize < len(data) && i < 4; i++ {
		end := (i + 1) * sensortest.BlockSize
		if end > len(data) {
			end = len(data)
		}
		sensor.SetBlock(byte(i), data[i*sensortest.BlockSize:end])
	}

	detector, _ := newTestDetector(sensor)
	description, ok := detector.IdentifyForeignTag(context.Background())
	require.True(t, ok)
	assert.Contains(t, description, "hello")
}

func TestIdentifyForeignTagWithoutNDEF(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualSensor(0x03)
	detector, _ := newTestDetector(sensor)

	_, ok := detector.IdentifyForeignTag(context.Background())
	assert.False(t, ok)
}

func TestExtractNDEFPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		expected []byte
	}{
		{
			name:     "leading message TLV",
			data:     []byte{0x03, 0x02, 0xAB, 0xCD, 0xFE},
			expected: []byte{0xAB, 0xCD},
		},
		{
			name:     "null TLV padding before message",
			data:     []byte{0x00, 0x00, 0x03, 0x01, 0x42},
			expected: []byte{0x42},
		},
		{
			name:     "skips foreign TLV",
			data:     []byte{0x01, 0x02, 0x11, 0x22, 0x03, 0x01, 0x42},
			expected: []byte{0x42},
		},
		{
			name:     "truncated message TLV",
			data:     []byte{0x03, 0x10, 0x01},
			expected: nil,
		},
		{
			name:     "no message TLV",
			data:     []byte{0x01, 0x01, 0xAA, 0xFE},
			expected: nil,
		},
		{
			name:     "empty input",
			data:     nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, extractNDEFPayload(tt.data))
		})
	}
}

func TestSensorModelName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected string
		block0   []byte
	}{
		{name: "libre 1", block0: []byte{0xDF, 0x01, 0x02}, expected: "Libre 1"},
		{name: "libre 2", block0: []byte{0xA2, 0x01, 0x02}, expected: "Libre 2"},
		{name: "libre pro", block0: []byte{0xE5, 0x01, 0x02}, expected: "Libre Pro/H"},
		{name: "libre us", block0: []byte{0x9D, 0x01, 0x02}, expected: "Libre US 14 day"},
		{name: "libre 3", block0: []byte{0xC5, 0x01, 0x02}, expected: "Libre 3"},
		{name: "libre sense", block0: []byte{0x70, 0x00, 0x00}, expected: "Libre Sense"},
		{name: "unknown byte", block0: []byte{0x70, 0x01, 0x00}, expected: "Unknown"},
		{name: "too short", block0: []byte{0xDF}, expected: "Unknown"},
		{name: "empty", block0: nil, expected: "Unknown"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, SensorModelName(tt.block0))
		})
	}
}
