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

// Package sensortest provides simulated glucose sensor tags for testing
package sensortest

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// BlockSize is the simulated sensor memory block size
const BlockSize = 8

// VirtualSensor is a simulated ISO15693 sensor tag with block-based memory
// and per-block failure injection
type VirtualSensor struct {
	memory    map[byte][]byte
	failures  map[byte]int
	failAll   map[byte]bool
	reads     map[byte]int
	writes    []WriteRecord
	mu        sync.Mutex
	lastBlock byte
	present   bool
}

// WriteRecord captures one block write issued against the sensor
type WriteRecord struct {
	Data []byte
	Addr byte
}

// NewVirtualSensor creates an empty, present sensor with blocks up to
// lastBlock
func NewVirtualSensor(lastBlock byte) *VirtualSensor {
	return &VirtualSensor{
		memory:    make(map[byte][]byte),
		failures:  make(map[byte]int),
		failAll:   make(map[byte]bool),
		reads:     make(map[byte]int),
		lastBlock: lastBlock,
		present:   true,
	}
}

// SetBlock stores 8 bytes at addr
func (v *VirtualSensor) SetBlock(addr byte, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	block := make([]byte, BlockSize)
	copy(block, data)
	v.memory[addr] = block
}

// FailBlock makes the next n reads of addr fail before recovering
func (v *VirtualSensor) FailBlock(addr byte, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failures[addr] = n
}

// FailBlockAlways makes every read of addr fail
func (v *VirtualSensor) FailBlockAlways(addr byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failAll[addr] = true
}

// Remove takes the sensor out of field
func (v *VirtualSensor) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = false
}

// Insert puts the sensor back in field
func (v *VirtualSensor) Insert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = true
}

// Present reports whether the sensor is in field
func (v *VirtualSensor) Present() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// ReadBlock reads one block, honoring failure injection. Uninitialized
// blocks read as zeros.
func (v *VirtualSensor) ReadBlock(addr byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.present {
		return nil, fmt.Errorf("sensor not present")
	}
	if addr > v.lastBlock {
		return nil, fmt.Errorf("block %#02x out of range", addr)
	}

	v.reads[addr]++

	if v.failAll[addr] {
		return nil, fmt.Errorf("injected failure on block %#02x", addr)
	}
	if v.failures[addr] > 0 {
		v.failures[addr]--
		return nil, fmt.Errorf("injected failure on block %#02x", addr)
	}

	if block, ok := v.memory[addr]; ok {
		data := make([]byte, BlockSize)
		copy(data, block)
		return data, nil
	}
	return make([]byte, BlockSize), nil
}

// WriteBlock writes one block and records the write
func (v *VirtualSensor) WriteBlock(addr byte, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.present {
		return fmt.Errorf("sensor not present")
	}
	if addr > v.lastBlock {
		return fmt.Errorf("block %#02x out of range", addr)
	}
	if len(data) != BlockSize {
		return fmt.Errorf("data must be exactly %d bytes, got %d", BlockSize, len(data))
	}

	block := make([]byte, BlockSize)
	copy(block, data)
	v.memory[addr] = block
	v.writes = append(v.writes, WriteRecord{Addr: addr, Data: block})
	return nil
}

// Writes returns every write issued so far, in order
func (v *VirtualSensor) Writes() []WriteRecord {
	v.mu.Lock()
	defer v.mu.Unlock()
	writes := make([]WriteRecord, len(v.writes))
	copy(writes, v.writes)
	return writes
}

// ReadCount returns how many reads hit addr
func (v *VirtualSensor) ReadCount(addr byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reads[addr]
}

// Libre memory layout constants mirrored from the decoder
const (
	libreLastBlock        = 0x2F
	libreTrendBlock       = 0x28
	libreStatusBlock      = 0x27
	libreCalibrationStart = 0x2C
	libreHistoryStart     = 0x16
)

// LibreOptions parameterize a simulated commercial sensor
type LibreOptions struct {
	// ModelByte is the identification byte at block 0 (default 0xDF).
	ModelByte byte
	// RawGlucose is the current trend word before masking.
	RawGlucose uint16
	// I1..I4 are the packed calibration factors.
	I1, I2, I3, I4 uint16
	// LifeMinutes is the remaining-life word in the status block.
	LifeMinutes uint16
	// History holds raw history words for entries 0..n; zero words are
	// "no data" slots.
	History []uint16
}

// DefaultLibreOptions returns a healthy Libre 1 with a mid-range value and
// a realistic calibration
func DefaultLibreOptions() LibreOptions {
	return LibreOptions{
		ModelByte:   0xDF,
		RawGlucose:  9360,
		I1:          36,   // slope 0.1036
		I2:          1,    // offset -0.49
		I3:          291,  // present but unused by the conversion
		I4:          1365, // present but unused by the conversion
		LifeMinutes: 10080,
	}
}

// NewVirtualLibre builds a simulated commercial sensor whose memory decodes
// to the given options
func NewVirtualLibre(opts LibreOptions) *VirtualSensor {
	sensor := NewVirtualSensor(libreLastBlock)

	block0 := make([]byte, BlockSize)
	block0[0] = opts.ModelByte
	sensor.SetBlock(0x00, block0)

	sensor.SetBlock(libreTrendBlock, TrendBlock(opts.RawGlucose))
	sensor.SetBlock(libreStatusBlock, StatusBlock(opts.LifeMinutes))

	region := CalibrationRegion(opts.I1, opts.I2, opts.I3, opts.I4)
	for i := 0; i < 3; i++ {
		sensor.SetBlock(byte(libreCalibrationStart+i), region[i*BlockSize:(i+1)*BlockSize])
	}

	writeHistory(sensor, opts.History)
	return sensor
}

// writeHistory packs raw history words into six-byte entries starting at the
// history region. Entries may straddle block boundaries.
func writeHistory(sensor *VirtualSensor, history []uint16) {
	if len(history) == 0 {
		return
	}

	// Assemble the whole region, then write it back block by block on top
	// of whatever those blocks already hold.
	regionBlocks := int(libreLastBlock) - libreHistoryStart + 1
	region := make([]byte, regionBlocks*BlockSize)
	for i := 0; i < regionBlocks; i++ {
		addr := byte(libreHistoryStart + i)
		if block, err := sensor.ReadBlock(addr); err == nil {
			copy(region[i*BlockSize:], block)
		}
	}

	for i, raw := range history {
		offset := i * 6
		if offset+2 > len(region) {
			break
		}
		binary.LittleEndian.PutUint16(region[offset:offset+2], raw)
	}

	for i := 0; i < regionBlocks; i++ {
		sensor.SetBlock(byte(libreHistoryStart+i), region[i*BlockSize:(i+1)*BlockSize])
	}
}

// RF430 layout constants mirrored from the decoder
const (
	rf430ControlBlock = 0x00
	rf430ResultBlock  = 0x09
	rf430LastBlock    = 0x0F
)

// rf430IdleControl is the chip's power-on control block content. Non-zero,
// matching the hardware; an all-zero block 0 reads as a different tag family.
var rf430IdleControl = []byte{0x00, 0x04, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00}

// NewVirtualRF430 builds a simulated ADC sensor whose result block carries
// the given raw conversion value
func NewVirtualRF430(adc uint16) *VirtualSensor {
	sensor := NewVirtualSensor(rf430LastBlock)
	sensor.SetBlock(rf430ControlBlock, rf430IdleControl)
	sensor.SetBlock(rf430ResultBlock, ResultBlock(adc))
	return sensor
}

// ResultBlock builds an RF430 result block with the raw ADC word at bytes
// 1-2 (little-endian)
func ResultBlock(adc uint16) []byte {
	block := make([]byte, BlockSize)
	binary.LittleEndian.PutUint16(block[1:3], adc)
	return block
}

// TrendBlock builds a Libre trend block with the raw glucose word at offset
// 0 (little-endian)
func TrendBlock(raw uint16) []byte {
	block := make([]byte, BlockSize)
	binary.LittleEndian.PutUint16(block[0:2], raw)
	return block
}

// StatusBlock builds a Libre status block with the remaining-life word at
// bytes 4-5 (little-endian)
func StatusBlock(lifeMinutes uint16) []byte {
	block := make([]byte, BlockSize)
	binary.LittleEndian.PutUint16(block[4:6], lifeMinutes)
	return block
}

// CalibrationRegion builds the 24-byte nibble-interleaved calibration region
// for the given packed factors. This is the exact inverse of the decoder's
// extraction layout.
func CalibrationRegion(i1, i2, i3, i4 uint16) []byte {
	region := make([]byte, 3*BlockSize)
	region[2] = byte(i1)
	region[3] = byte((i1>>8)&0x0F) | byte((i2>>8)&0x0F)<<4
	region[4] = byte(i2)
	region[5] = byte((i3>>8)&0x0F) | byte((i4>>8)&0x0F)<<4
	region[6] = byte(i3)
	region[7] = byte(i4)
	return region
}
