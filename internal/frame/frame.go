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

// Package frame implements the byte-level framing spoken by the NFC bridge
// firmware over UART and I2C.
//
// Request:  [0x5A, LEN, CMD, payload..., CHECKSUM]
// Response: [0xA5, LEN, STATUS, payload..., CHECKSUM]
//
// LEN counts the command/status byte plus the payload. CHECKSUM is the
// two's complement of the byte sum of LEN through the last payload byte, so
// that summing LEN..CHECKSUM yields zero.
package frame

import (
	"errors"
	"fmt"
)

// Start-of-frame markers
const (
	RequestSOF  = 0x5A
	ResponseSOF = 0xA5
)

// Bridge commands
const (
	CmdRequest    = 0x01 // request ISO15693 technology
	CmdCancel     = 0x02 // cancel the active request
	CmdPresent    = 0x03 // probe tag presence
	CmdTransceive = 0x04 // exchange a raw ISO15693 frame
	CmdRestart    = 0x05 // restart tag discovery
)

// Bridge response statuses
const (
	StatusOK        = 0x00
	StatusNoTag     = 0x01
	StatusNoRequest = 0x02
	StatusRFError   = 0x03
)

// MaxPayload is the firmware's payload limit per frame
const MaxPayload = 253

// headerLen covers SOF, LEN and CMD/STATUS
const headerLen = 3

// Framing errors
var (
	ErrFrameTooShort   = errors.New("frame too short")
	ErrBadSOF          = errors.New("bad start-of-frame marker")
	ErrBadChecksum     = errors.New("checksum mismatch")
	ErrLengthMismatch  = errors.New("frame length mismatch")
	ErrPayloadTooLarge = errors.New("payload exceeds frame limit")
)

// Checksum computes the two's complement of the byte sum of data
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// Build assembles a request frame for cmd with the given payload
func Build(cmd byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	length := byte(1 + len(payload))
	buf := make([]byte, 0, headerLen+len(payload)+1)
	buf = append(buf, RequestSOF, length, cmd)
	buf = append(buf, payload...)
	buf = append(buf, Checksum(buf[1:]))
	return buf, nil
}

// Response is a parsed bridge response
type Response struct {
	Payload []byte
	Status  byte
}

// Parse validates and decodes a complete response frame
func Parse(buf []byte) (*Response, error) {
	if len(buf) < headerLen+1 {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(buf))
	}
	if buf[0] != ResponseSOF {
		return nil, fmt.Errorf("%w: %#02x", ErrBadSOF, buf[0])
	}

	length := int(buf[1])
	if length < 1 || len(buf) != headerLen+length {
		return nil, fmt.Errorf("%w: declared %d, frame %d bytes", ErrLengthMismatch, length, len(buf))
	}
	if Checksum(buf[1:len(buf)-1]) != buf[len(buf)-1] {
		return nil, ErrBadChecksum
	}

	payload := make([]byte, length-1)
	copy(payload, buf[headerLen:len(buf)-1])
	return &Response{Status: buf[2], Payload: payload}, nil
}

// Remaining returns how many bytes follow the two-byte header (SOF and LEN)
// in a complete frame, for readers that consume byte streams
func Remaining(header []byte) (int, error) {
	if len(header) < 2 {
		return 0, ErrFrameTooShort
	}
	return int(header[1]) + 1, nil
}
