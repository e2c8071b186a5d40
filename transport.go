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
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCommandTimeout bounds a single block read or write command
const DefaultCommandTimeout = 8 * time.Second

// BlockTransport issues single-block ISO15693 read/write commands over an
// adapter. Each call reports the outcome of exactly one attempt: retry
// policy belongs to the decoders above this layer, never here.
type BlockTransport struct {
	adapter Adapter
	log     logrus.FieldLogger
	timeout time.Duration
}

// TransportOption configures a BlockTransport
type TransportOption func(*BlockTransport)

// WithCommandTimeout overrides the per-command timeout
func WithCommandTimeout(timeout time.Duration) TransportOption {
	return func(t *BlockTransport) {
		t.timeout = timeout
	}
}

// WithTransportLogger sets the transport's logger
func WithTransportLogger(log logrus.FieldLogger) TransportOption {
	return func(t *BlockTransport) {
		t.log = log
	}
}

// NewBlockTransport creates a block transport over the given adapter
func NewBlockTransport(adapter Adapter, opts ...TransportOption) *BlockTransport {
	transport := &BlockTransport{
		adapter: adapter,
		timeout: DefaultCommandTimeout,
		log:     logrus.StandardLogger().WithField("component", "block-transport"),
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}

// Adapter returns the underlying platform adapter
func (t *BlockTransport) Adapter() Adapter {
	return t.adapter
}

// ReadBlock reads one 8-byte block. The response must be exactly BlockSize
// bytes or the call fails with ErrInvalidResponse.
func (t *BlockTransport) ReadBlock(ctx context.Context, addr byte) ([]byte, error) {
	if err := t.ensureTag(ctx, "readBlock"); err != nil {
		return nil, err
	}

	resp, err := t.transceive(ctx, "readBlock", buildReadBlockCommand(addr))
	if err != nil {
		return nil, err
	}

	if len(resp) != BlockSize {
		return nil, NewInvalidResponseError("readBlock", t.adapterName(), "response length mismatch")
	}

	return resp, nil
}

// WriteBlock writes one 8-byte block
func (t *BlockTransport) WriteBlock(ctx context.Context, addr byte, data []byte) error {
	if len(data) != BlockSize {
		return ErrInvalidParameter
	}

	if err := t.ensureTag(ctx, "writeBlock"); err != nil {
		return err
	}

	resp, err := t.transceive(ctx, "writeBlock", buildWriteBlockCommand(addr, data))
	if err != nil {
		return err
	}

	if len(resp) == 0 || resp[0]&iso15693ErrorFlag != 0 {
		return NewInvalidResponseError("writeBlock", t.adapterName(), "tag rejected write")
	}

	return nil
}

// ensureTag verifies a tag is present before a command is attempted,
// re-requesting the technology once if the probe reports that the platform
// dropped the active request.
func (t *BlockTransport) ensureTag(ctx context.Context, op string) error {
	present, err := t.adapter.TagPresent(ctx)
	if errors.Is(err, ErrNoActiveRequest) {
		if reqErr := t.adapter.RequestTechnology(ctx); reqErr != nil {
			return NewCommunicationError(op, t.adapterName(), reqErr)
		}
		present, err = t.adapter.TagPresent(ctx)
	}
	if err != nil {
		return t.classify(op, err)
	}
	if !present {
		return NewTagNotFoundError(op, t.adapterName())
	}
	return nil
}

// transceive sends one framed command with the per-command timeout applied
func (t *BlockTransport) transceive(ctx context.Context, op string, command []byte) ([]byte, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	resp, err := t.adapter.Transceive(cmdCtx, command)
	if err != nil {
		return nil, t.classify(op, err)
	}
	return resp, nil
}

// classify maps an adapter failure onto the typed error taxonomy. The parent
// context aborting means the user or system cancelled; our own per-command
// deadline means the channel timed out.
func (t *BlockTransport) classify(op string, err error) error {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewCancelledError(op, t.adapterName(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(op, t.adapterName())
	case errors.Is(err, ErrTagNotFound):
		return NewTagNotFoundError(op, t.adapterName())
	case errors.Is(err, ErrNoActiveRequest):
		return NewNoActiveRequestError(op, t.adapterName())
	default:
		return NewCommunicationError(op, t.adapterName(), err)
	}
}

func (t *BlockTransport) adapterName() string {
	return string(t.adapter.Type())
}

// sleepContext waits for d or until the context is done, whichever comes
// first. Returns a cancelled error when the context won.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return NewCancelledError("sleep", "", ctx.Err())
	case <-timer.C:
		return nil
	}
}
