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

// Package i2c provides a bus-attached NFC bridge adapter for embedded hosts
package i2c

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	cgm "github.com/mohamedS2020/go-cgm"
	"github.com/mohamedS2020/go-cgm/internal/frame"
)

// Bridge bus parameters
const (
	// DefaultAddress is the bridge firmware's fixed I2C address
	DefaultAddress = 0x24
	// readyByte prefixes every read while the bridge has a response queued
	readyByte = 0x01
	// readyPollInterval paces ready polling between transactions
	readyPollInterval = 5 * time.Millisecond
	// linkTimeout bounds one full round trip when the caller's context
	// carries no deadline of its own
	linkTimeout = 10 * time.Second
)

// Adapter drives the NFC bridge over an I2C bus
type Adapter struct {
	bus     i2c.BusCloser
	dev     *i2c.Dev
	busName string
	mu      sync.Mutex
	closed  bool
}

// Option configures the adapter
type Option func(*config)

type config struct {
	address uint16
}

// WithAddress overrides the bridge's I2C address
func WithAddress(address uint16) Option {
	return func(c *config) {
		c.address = address
	}
}

// New opens the bridge on the given I2C bus. An empty busName selects the
// host's default bus.
func New(busName string, opts ...Option) (*Adapter, error) {
	cfg := &config{address: DefaultAddress}
	for _, opt := range opts {
		opt(cfg)
	}

	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	return &Adapter{
		bus:     bus,
		dev:     &i2c.Dev{Addr: cfg.address, Bus: bus},
		busName: bus.String(),
	}, nil
}

// RequestTechnology implements cgm.Adapter
func (a *Adapter) RequestTechnology(ctx context.Context) error {
	_, err := a.exchange(ctx, "requestTechnology", frame.CmdRequest, nil)
	return err
}

// CancelTechnology implements cgm.Adapter
func (a *Adapter) CancelTechnology() error {
	_, err := a.exchange(context.Background(), "cancelTechnology", frame.CmdCancel, nil)
	return err
}

// Transceive implements cgm.Adapter
func (a *Adapter) Transceive(ctx context.Context, command []byte) ([]byte, error) {
	return a.exchange(ctx, "transceive", frame.CmdTransceive, command)
}

// TagPresent implements cgm.Adapter
func (a *Adapter) TagPresent(ctx context.Context) (bool, error) {
	_, err := a.exchange(ctx, "tagPresent", frame.CmdPresent, nil)
	if err != nil {
		if errors.Is(err, cgm.ErrTagNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Enabled implements cgm.Adapter
func (a *Adapter) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed
}

// Supported implements cgm.Adapter
func (*Adapter) Supported() bool {
	return true
}

// Close implements cgm.Adapter
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.bus.Close()
}

// Type implements cgm.Adapter
func (*Adapter) Type() cgm.AdapterType {
	return cgm.AdapterI2C
}

// RestartDiscovery implements cgm.DiscoveryRestarter
func (a *Adapter) RestartDiscovery(ctx context.Context) error {
	_, err := a.exchange(ctx, "restartDiscovery", frame.CmdRestart, nil)
	return err
}

// exchange sends one framed command and reads the framed response. Every
// read transaction is prefixed by a ready byte; the bridge streams the frame
// only after signalling ready.
func (a *Adapter) exchange(ctx context.Context, op string, cmd byte, payload []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, cgm.NewTransportError(op, a.busName, cgm.ErrNotEnabled, cgm.ErrorTypePermanent)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, linkTimeout)
		defer cancel()
	}

	request, err := frame.Build(cmd, payload)
	if err != nil {
		return nil, cgm.NewTransportError(op, a.busName, err, cgm.ErrorTypePermanent)
	}

	if err := a.dev.Tx(request, nil); err != nil {
		return nil, cgm.NewCommunicationError(op, a.busName, err)
	}

	if err := a.waitReady(ctx); err != nil {
		return nil, cgm.NewCommunicationError(op, a.busName, err)
	}

	// Ready byte plus the two-byte frame header in one transaction.
	header := make([]byte, 3)
	if err := a.dev.Tx(nil, header); err != nil {
		return nil, cgm.NewCommunicationError(op, a.busName, err)
	}
	if header[0] != readyByte {
		return nil, cgm.NewInvalidResponseError(op, a.busName, "response retracted mid-read")
	}

	remaining, err := frame.Remaining(header[1:])
	if err != nil {
		return nil, cgm.NewInvalidResponseError(op, a.busName, err.Error())
	}

	// The rest of the frame, again behind a ready byte.
	tail := make([]byte, 1+remaining)
	if err := a.dev.Tx(nil, tail); err != nil {
		return nil, cgm.NewCommunicationError(op, a.busName, err)
	}
	if tail[0] != readyByte {
		return nil, cgm.NewInvalidResponseError(op, a.busName, "response retracted mid-read")
	}

	buf := make([]byte, 0, 2+remaining)
	buf = append(buf, header[1:]...)
	buf = append(buf, tail[1:]...)

	resp, err := frame.Parse(buf)
	if err != nil {
		return nil, cgm.NewInvalidResponseError(op, a.busName, err.Error())
	}
	if err := statusError(op, a.busName, resp.Status); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// waitReady polls the ready byte until the bridge has a response queued
func (a *Adapter) waitReady(ctx context.Context) error {
	status := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := a.dev.Tx(nil, status); err != nil {
			return err
		}
		if status[0] == readyByte {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

// statusError maps a bridge status byte to a typed error
func statusError(op, bus string, status byte) error {
	switch status {
	case frame.StatusOK:
		return nil
	case frame.StatusNoTag:
		return cgm.NewTagNotFoundError(op, bus)
	case frame.StatusNoRequest:
		return cgm.NewNoActiveRequestError(op, bus)
	case frame.StatusRFError:
		return cgm.NewCommunicationError(op, bus, cgm.ErrCommunicationFailed)
	default:
		return cgm.NewInvalidResponseError(op, bus, fmt.Sprintf("status %#02x", status))
	}
}
