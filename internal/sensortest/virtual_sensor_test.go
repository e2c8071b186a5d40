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

package sensortest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualSensorReadWrite(t *testing.T) {
	t.Parallel()

	sensor := NewVirtualSensor(0x0F)

	// Uninitialized blocks read as zeros.
	data, err := sensor.ReadBlock(0x05)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, BlockSize), data)

	block := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, sensor.WriteBlock(0x05, block))

	data, err = sensor.ReadBlock(0x05)
	require.NoError(t, err)
	assert.Equal(t, block, data)

	writes := sensor.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, byte(0x05), writes[0].Addr)
	assert.Equal(t, block, writes[0].Data)

	_, err = sensor.ReadBlock(0x10)
	assert.Error(t, err)
	assert.Error(t, sensor.WriteBlock(0x10, block))
	assert.Error(t, sensor.WriteBlock(0x05, []byte{1, 2}))
}

func TestVirtualSensorFailureInjection(t *testing.T) {
	t.Parallel()

	sensor := NewVirtualSensor(0x0F)
	sensor.FailBlock(0x01, 2)

	_, err := sensor.ReadBlock(0x01)
	assert.Error(t, err)
	_, err = sensor.ReadBlock(0x01)
	assert.Error(t, err)
	_, err = sensor.ReadBlock(0x01)
	assert.NoError(t, err, "failure budget exhausted, reads recover")
	assert.Equal(t, 3, sensor.ReadCount(0x01))

	sensor.FailBlockAlways(0x02)
	for i := 0; i < 4; i++ {
		_, err = sensor.ReadBlock(0x02)
		assert.Error(t, err)
	}
}

func TestVirtualSensorPresence(t *testing.T) {
	t.Parallel()

	sensor := NewVirtualSensor(0x0F)
	require.True(t, sensor.Present())

	sensor.Remove()
	assert.False(t, sensor.Present())
	_, err := sensor.ReadBlock(0x00)
	assert.Error(t, err)

	sensor.Insert()
	_, err = sensor.ReadBlock(0x00)
	assert.NoError(t, err)
}

func TestHandlerSpeaksISO15693(t *testing.T) {
	t.Parallel()

	sensor := NewVirtualSensor(0x0F)
	sensor.SetBlock(0x09, []byte{9, 9, 9, 9, 9, 9, 9, 9})
	handler := Handler(sensor)

	data, err := handler([]byte{0x02, 0x20, 0x09})
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9, 9, 9, 9, 9, 9, 9}, data)

	status, err := handler(append([]byte{0x02, 0x21, 0x03}, make([]byte, BlockSize)...))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00}, status)

	_, err = handler([]byte{0x02, 0x99, 0x00})
	assert.Error(t, err)
	_, err = handler([]byte{0x00, 0x20, 0x00})
	assert.Error(t, err)
	_, err = handler([]byte{0x02})
	assert.Error(t, err)
}

func TestVirtualLibreLayout(t *testing.T) {
	t.Parallel()

	opts := DefaultLibreOptions()
	opts.History = []uint16{500, 600}
	sensor := NewVirtualLibre(opts)

	block0, err := sensor.ReadBlock(0x00)
	require.NoError(t, err)
	assert.Equal(t, byte(0xDF), block0[0])

	trend, err := sensor.ReadBlock(0x28)
	require.NoError(t, err)
	assert.Equal(t, byte(0x90), trend[0]) // 9360 little-endian
	assert.Equal(t, byte(0x24), trend[1])

	history, err := sensor.ReadBlock(0x16)
	require.NoError(t, err)
	assert.Equal(t, byte(0xF4), history[0]) // 500 little-endian
	assert.Equal(t, byte(0x01), history[1])
	assert.Equal(t, byte(0x58), history[6]) // 600 at entry offset 6
	assert.Equal(t, byte(0x02), history[7])
}
