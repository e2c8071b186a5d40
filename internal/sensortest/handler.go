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

import "fmt"

// ISO/IEC 15693 command bytes understood by the handler
const (
	isoFlags            = 0x02
	cmdReadSingleBlock  = 0x20
	cmdWriteSingleBlock = 0x21
)

// Handler returns a transceive function that executes ISO15693 single-block
// commands against the sensor. Wire it into a mock adapter to drive the full
// transport and decode stack against simulated sensor memory.
func Handler(sensor *VirtualSensor) func(command []byte) ([]byte, error) {
	return func(command []byte) ([]byte, error) {
		if len(command) < 3 || command[0] != isoFlags {
			return nil, fmt.Errorf("malformed command % X", command)
		}

		addr := command[2]
		switch command[1] {
		case cmdReadSingleBlock:
			return sensor.ReadBlock(addr)
		case cmdWriteSingleBlock:
			if err := sensor.WriteBlock(addr, command[3:]); err != nil {
				return nil, err
			}
			return []byte{0x00}, nil
		default:
			return nil, fmt.Errorf("unsupported command %#02x", command[1])
		}
	}
}
