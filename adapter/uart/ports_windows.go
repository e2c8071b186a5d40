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

//go:build windows

package uart

import (
	"go.bug.st/serial"
	"golang.org/x/sys/windows/registry"
)

// serialCommKey lists active COM ports without touching the hardware
const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// ListPorts enumerates candidate serial ports for bridge discovery. The
// registry is preferred because it reflects live device state; opening ports
// to probe them can steal them from other processes.
func ListPorts() ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, serialCommKey, registry.QUERY_VALUE)
	if err != nil {
		return serial.GetPortsList()
	}
	defer func() { _ = key.Close() }()

	names, err := key.ReadValueNames(0)
	if err != nil {
		return serial.GetPortsList()
	}

	ports := make([]string, 0, len(names))
	for _, name := range names {
		port, _, err := key.GetStringValue(name)
		if err != nil {
			continue
		}
		ports = append(ports, port)
	}
	return ports, nil
}
