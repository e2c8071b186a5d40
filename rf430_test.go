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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohamedS2020/go-cgm/internal/sensortest"
)

func fastRF430Config() *RF430Config {
	config := DefaultRF430Config()
	config.SettleDelay = time.Millisecond
	return config
}

func newTestRF430(sensor *sensortest.VirtualSensor) (*RF430Decoder, *MockAdapter) {
	adapter := NewMockAdapter()
	adapter.SetTransceiveFunc(sensortest.Handler(sensor))
	return NewRF430Decoder(NewBlockTransport(adapter), fastRF430Config()), adapter
}

func TestRF430ReadRaw(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualRF430(9360)
	decoder, _ := newTestRF430(sensor)

	raw, err := decoder.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint16(9360), raw)
}

func TestRF430CycleSequence(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualRF430(1234)
	decoder, _ := newTestRF430(sensor)

	_, err := decoder.ReadRaw(context.Background())
	require.NoError(t, err)

	// Configuration must land before the sampling start, and the result must
	// not be read before both writes.
	writes := sensor.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, byte(0x02), writes[0].Addr)
	assert.Equal(t, []byte{0x00, 0x00, 0x2C, 0x00, 0x00, 0x00, 0x00, 0x00}, writes[0].Data)
	assert.Equal(t, byte(0x00), writes[1].Addr)
	assert.Equal(t, []byte{0x01, 0x00, 0x04, 0x00, 0x01, 0x01, 0x00, 0x00}, writes[1].Data)
	assert.Equal(t, 1, sensor.ReadCount(0x09))
}

func TestRF430ReadGlucose(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualRF430(9360)
	decoder, _ := newTestRF430(sensor)

	reading, err := decoder.ReadGlucose(context.Background(), SourceAutoMonitor)
	require.NoError(t, err)
	assert.Equal(t, uint32(171), reading.Value)
	assert.Equal(t, SourceAutoMonitor, reading.Source)
	assert.False(t, reading.IsAlert)
	assert.NotEmpty(t, reading.ID)
	assert.WithinDuration(t, time.Now(), reading.Timestamp, time.Minute)
}

func TestRF430AlertValues(t *testing.T) {
	t.Parallel()

	// Full-scale ADC maps to 300 mg/dL under the identity calibration, which
	// is above the alert band.
	sensor := sensortest.NewVirtualRF430(ADCFullScale)
	decoder, _ := newTestRF430(sensor)

	reading, err := decoder.ReadGlucose(context.Background(), SourceManualScan)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), reading.Value)
	assert.True(t, reading.IsAlert)
}

func TestRF430OutOfRangeResultIsFatal(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualRF430(ADCFullScale + 1)
	decoder, _ := newTestRF430(sensor)

	_, err := decoder.ReadRaw(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResponse)
	assert.Equal(t, ErrorTypePermanent, GetErrorType(err))
	assert.False(t, IsRetryable(err))
}

func TestRF430FailedWritePropagates(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualRF430(9360)
	sensor.Remove()
	decoder, adapter := newTestRF430(sensor)
	adapter.SetTagPresent(false)

	_, err := decoder.ReadRaw(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.Empty(t, sensor.Writes())
}

func TestRF430CancelledDuringSettle(t *testing.T) {
	t.Parallel()

	sensor := sensortest.NewVirtualRF430(9360)
	adapter := NewMockAdapter()
	adapter.SetTransceiveFunc(sensortest.Handler(sensor))

	config := DefaultRF430Config()
	config.SettleDelay = 10 * time.Second
	decoder := NewRF430Decoder(NewBlockTransport(adapter), config)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := decoder.ReadRaw(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, sensor.ReadCount(0x09), "result must not be read after cancellation")
}
