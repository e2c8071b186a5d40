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

// ISO/IEC 15693 command set used against the sensor tag
const (
	// iso15693Flags selects high data rate operation
	iso15693Flags = 0x02

	// cmdReadSingleBlock reads one 8-byte memory block
	cmdReadSingleBlock = 0x20
	// cmdWriteSingleBlock writes one 8-byte memory block
	cmdWriteSingleBlock = 0x21
)

// BlockSize is the fixed sensor memory block size in bytes
const BlockSize = 8

// iso15693ErrorFlag is set in the first byte of a write status response when
// the tag rejected the command
const iso15693ErrorFlag = 0x01

// buildReadBlockCommand frames a Read Single Block command:
// [flags, 0x20, block_addr]
func buildReadBlockCommand(addr byte) []byte {
	return []byte{iso15693Flags, cmdReadSingleBlock, addr}
}

// buildWriteBlockCommand frames a Write Single Block command:
// [flags, 0x21, block_addr, d0..d7]
func buildWriteBlockCommand(addr byte, data []byte) []byte {
	cmd := make([]byte, 0, 3+BlockSize)
	cmd = append(cmd, iso15693Flags, cmdWriteSingleBlock, addr)
	cmd = append(cmd, data...)
	return cmd
}
