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

// Package uart provides a serial-attached NFC bridge adapter
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"

	cgm "github.com/mohamedS2020/go-cgm"
	"github.com/mohamedS2020/go-cgm/internal/frame"
)

// Serial link parameters for the bridge firmware
const (
	defaultBaudRate = 115200
	// readSlice is the per-Read timeout used so context cancellation is
	// noticed between partial reads
	readSlice = 100 * time.Millisecond
	// linkTimeout bounds one full round trip when the caller's context
	// carries no deadline of its own
	linkTimeout = 10 * time.Second
)

// Adapter drives the NFC bridge over a serial port
type Adapter struct {
	port     serial.Port
	portName string
	mu       sync.Mutex
	closed   bool
}

// Option configures the adapter
type Option func(*config)

type config struct {
	baudRate int
}

// WithBaudRate overrides the default bridge baud rate
func WithBaudRate(baud int) Option {
	return func(c *config) {
		c.baudRate = baud
	}
}

// New opens the bridge on the given serial port
func New(portName string, opts ...Option) (*Adapter, error) {
	cfg := &config{baudRate: defaultBaudRate}
	for _, opt := range opts {
		opt(cfg)
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}
	if err := port.SetReadTimeout(readSlice); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("configure %s: %w", portName, err)
	}

	return &Adapter{port: port, portName: portName}, nil
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
	resp, err := a.exchange(ctx, "transceive", frame.CmdTransceive, command)
	if err != nil {
		return nil, err
	}
	return resp, nil
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
	return a.port.Close()
}

// Type implements cgm.Adapter
func (*Adapter) Type() cgm.AdapterType {
	return cgm.AdapterUART
}

// RestartDiscovery implements cgm.DiscoveryRestarter
func (a *Adapter) RestartDiscovery(ctx context.Context) error {
	_, err := a.exchange(ctx, "restartDiscovery", frame.CmdRestart, nil)
	return err
}

// PortName returns the underlying serial port name
func (a *Adapter) PortName() string {
	return a.portName
}

// exchange sends one framed command and reads the framed response. The port
// is held for the full round trip; bridge firmware is strictly
// request/response.
func (a *Adapter) exchange(ctx context.Context, op string, cmd byte, payload []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, cgm.NewTransportError(op, a.portName, cgm.ErrNotEnabled, cgm.ErrorTypePermanent)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, linkTimeout)
		defer cancel()
	}

	request, err := frame.Build(cmd, payload)
	if err != nil {
		return nil, cgm.NewTransportError(op, a.portName, err, cgm.ErrorTypePermanent)
	}

	if err := a.writeAll(ctx, request); err != nil {
		return nil, cgm.NewCommunicationError(op, a.portName, err)
	}

	header := make([]byte, 2)
	if err := a.readAll(ctx, header); err != nil {
		return nil, cgm.NewCommunicationError(op, a.portName, err)
	}
	remaining, err := frame.Remaining(header)
	if err != nil {
		return nil, cgm.NewInvalidResponseError(op, a.portName, err.Error())
	}

	buf := make([]byte, 2+remaining)
	copy(buf, header)
	if err := a.readAll(ctx, buf[2:]); err != nil {
		return nil, cgm.NewCommunicationError(op, a.portName, err)
	}

	resp, err := frame.Parse(buf)
	if err != nil {
		return nil, cgm.NewInvalidResponseError(op, a.portName, err.Error())
	}
	if err := statusError(op, a.portName, resp.Status); err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// writeAll writes buf fully, honoring cancellation between partial writes
func (a *Adapter) writeAll(ctx context.Context, buf []byte) error {
	for len(buf) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := a.port.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// readAll fills buf fully. Reads are sliced by the port's read timeout so a
// cancelled context is noticed promptly.
func (a *Adapter) readAll(ctx context.Context, buf []byte) error {
	filled := 0
	for filled < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := a.port.Read(buf[filled:])
		if err != nil {
			return err
		}
		filled += n
	}
	return nil
}

// statusError maps a bridge status byte to a typed error
func statusError(op, port string, status byte) error {
	switch status {
	case frame.StatusOK:
		return nil
	case frame.StatusNoTag:
		return cgm.NewTagNotFoundError(op, port)
	case frame.StatusNoRequest:
		return cgm.NewNoActiveRequestError(op, port)
	case frame.StatusRFError:
		return cgm.NewCommunicationError(op, port, cgm.ErrCommunicationFailed)
	default:
		return cgm.NewInvalidResponseError(op, port, fmt.Sprintf("status %#02x", status))
	}
}
