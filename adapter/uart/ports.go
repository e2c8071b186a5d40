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

//go:build !windows

package uart

import "go.bug.st/serial"

// ListPorts enumerates candidate serial ports for bridge discovery
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
