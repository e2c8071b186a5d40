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
	"sync"
)

// MockAdapter is a scriptable in-memory Adapter used by tests across
// packages. It records every call and lets tests inject presence, request
// and transceive behavior.
type MockAdapter struct {
	// TransceiveFunc handles commands when set; otherwise Response is
	// returned for every exchange.
	TransceiveFunc func(command []byte) ([]byte, error)
	// Response is the fixed reply used when TransceiveFunc is nil.
	Response []byte

	requestErr      error
	presenceErr     error
	transceiveCalls [][]byte
	requestCount    int
	cancelCount     int
	restartCount    int
	mu              sync.Mutex
	tagPresent      bool
	requested       bool
	enabled         bool
	supported       bool
	closed          bool
}

// NewMockAdapter creates a mock with a present tag, active technology
// request and healthy hardware
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		tagPresent: true,
		requested:  true,
		enabled:    true,
		supported:  true,
	}
}

// RequestTechnology implements Adapter
func (m *MockAdapter) RequestTechnology(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount++
	if m.requestErr != nil {
		return m.requestErr
	}
	m.requested = true
	return nil
}

// CancelTechnology implements Adapter
func (m *MockAdapter) CancelTechnology() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCount++
	m.requested = false
	return nil
}

// Transceive implements Adapter
func (m *MockAdapter) Transceive(ctx context.Context, command []byte) ([]byte, error) {
	m.mu.Lock()
	cmd := append([]byte(nil), command...)
	m.transceiveCalls = append(m.transceiveCalls, cmd)
	fn := m.TransceiveFunc
	response := m.Response
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(cmd)
	}
	if response != nil {
		return append([]byte(nil), response...), nil
	}
	return make([]byte, BlockSize), nil
}

// TagPresent implements Adapter
func (m *MockAdapter) TagPresent(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.presenceErr != nil {
		return false, m.presenceErr
	}
	if !m.requested {
		return false, ErrNoActiveRequest
	}
	return m.tagPresent, nil
}

// Enabled implements Adapter
func (m *MockAdapter) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Supported implements Adapter
func (m *MockAdapter) Supported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

// Close implements Adapter
func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Type implements Adapter
func (*MockAdapter) Type() AdapterType {
	return AdapterMock
}

// RestartDiscovery implements DiscoveryRestarter
func (m *MockAdapter) RestartDiscovery(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restartCount++
	return nil
}

// SetTagPresent controls the presence probe result
func (m *MockAdapter) SetTagPresent(present bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagPresent = present
}

// SetEnabled controls the hardware-enabled query
func (m *MockAdapter) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// SetSupported controls the hardware-supported query
func (m *MockAdapter) SetSupported(supported bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supported = supported
}

// SetRequested controls whether a technology request is currently active
func (m *MockAdapter) SetRequested(requested bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requested = requested
}

// SetRequestError makes RequestTechnology fail with err
func (m *MockAdapter) SetRequestError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestErr = err
}

// SetPresenceError makes TagPresent fail with err
func (m *MockAdapter) SetPresenceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.presenceErr = err
}

// SetTransceiveFunc installs a dynamic command handler
func (m *MockAdapter) SetTransceiveFunc(fn func(command []byte) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransceiveFunc = fn
}

// SetResponse installs a fixed reply for every exchange
func (m *MockAdapter) SetResponse(response []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Response = response
	m.TransceiveFunc = nil
}

// TransceiveCalls returns a copy of every command sent so far
func (m *MockAdapter) TransceiveCalls() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([][]byte, len(m.transceiveCalls))
	copy(calls, m.transceiveCalls)
	return calls
}

// RequestCount returns how many technology requests were made
func (m *MockAdapter) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// CancelCount returns how many technology cancellations were made
func (m *MockAdapter) CancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelCount
}

// RestartCount returns how many discovery restarts were made
func (m *MockAdapter) RestartCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.restartCount
}

// Ensure MockAdapter implements the adapter interfaces
var (
	_ Adapter            = (*MockAdapter)(nil)
	_ DiscoveryRestarter = (*MockAdapter)(nil)
)
