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

import "context"

// Adapter is the injected platform NFC capability. It models the minimal
// technology-request/cancel/transceive surface the acquisition core needs;
// concrete implementations live under adapter/ (serial- and I2C-attached
// ISO15693 reader bridges) and in test doubles.
type Adapter interface {
	// RequestTechnology asks the platform for an active ISO15693 technology
	// handle. Idempotent: requesting while a request is active is a no-op.
	RequestTechnology(ctx context.Context) error

	// CancelTechnology releases the active technology request, if any.
	CancelTechnology() error

	// Transceive sends one raw ISO15693 command and returns the tag's
	// response. The call is bounded by the context deadline; an in-progress
	// exchange is not cooperatively cancellable below this point.
	Transceive(ctx context.Context, command []byte) ([]byte, error)

	// TagPresent performs a lightweight probe for a tag in field. Returns
	// ErrNoActiveRequest (wrapped) when the platform has dropped the
	// technology request.
	TagPresent(ctx context.Context) (bool, error)

	// Enabled reports whether the NFC hardware is switched on.
	Enabled() bool

	// Supported reports whether the device has NFC hardware at all.
	Supported() bool

	// Close releases the adapter's underlying resources.
	Close() error

	// Type returns the adapter type.
	Type() AdapterType
}

// AdapterType identifies the concrete adapter implementation
type AdapterType string

const (
	// AdapterUART is a serial-attached ISO15693 reader bridge.
	AdapterUART AdapterType = "uart"
	// AdapterI2C is an I2C-attached ISO15693 reader bridge.
	AdapterI2C AdapterType = "i2c"
	// AdapterMock is a mock adapter for testing.
	AdapterMock AdapterType = "mock"
)

// DiscoveryRestarter is an optional capability for adapters whose platform
// supports toggling tag-discovery registration off and on. RadioSession uses
// it during a forced reset when available.
type DiscoveryRestarter interface {
	// RestartDiscovery toggles tag discovery off and back on.
	RestartDiscovery(ctx context.Context) error
}
