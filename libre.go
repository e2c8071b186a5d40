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

// Libre sensor memory map
const (
	// libreBlockStart and libreBlockEnd bound the bulk read range
	libreBlockStart = 0x00
	libreBlockEnd   = 0x2F

	// libreTrendBlock holds the current glucose word at offset 0
	libreTrendBlock = 0x28
	// libreStatusBlock holds remaining sensor life at bytes 4-5
	libreStatusBlock = 0x27
	// libreCalibrationStart is the first of the 3 calibration blocks
	libreCalibrationStart = 0x2C
	// libreCalibrationBlocks is the calibration region length in blocks
	libreCalibrationBlocks = 3
	// libreHistoryStart is the first block of the history region
	libreHistoryStart = 0x16
)

// rawGlucoseMask extracts the 14-bit glucose value from a trend or history
// word
const rawGlucoseMask = 0x3FFF

// libreDisplayCeiling is the sensor vendor's display cap in mg/dL. Values
// above it are logged but deliberately not clamped; the raw calibrated value
// is preserved for storage and alerting.
const libreDisplayCeiling = 500

// BulkReadConfig controls the layered retry behavior of a full sensor
// memory read
type BulkReadConfig struct {
	// BlockAttempts is the per-block attempt budget.
	BlockAttempts int
	// BlockRetryDelay is the base backoff between per-block attempts.
	BlockRetryDelay time.Duration
	// BlockRetryStep is added per completed attempt on top of the base.
	BlockRetryStep time.Duration
	// GlobalRetries is how many reset-and-reread passes may follow the
	// first full pass over the block range.
	GlobalRetries int
	// ResetDelay is the settle wait on both sides of a forced reset.
	ResetDelay time.Duration
	// ReacquireDelay is the wait before the second technology re-request
	// attempt during a global retry.
	ReacquireDelay time.Duration
	// MaxFailureRatio is the accepted fraction of failed blocks per pass.
	MaxFailureRatio float64
}

// DefaultBulkReadConfig returns the production retry configuration
func DefaultBulkReadConfig() *BulkReadConfig {
	return &BulkReadConfig{
		BlockAttempts:   3,
		BlockRetryDelay: 300 * time.Millisecond,
		BlockRetryStep:  100 * time.Millisecond,
		GlobalRetries:   2,
		ResetDelay:      1 * time.Second,
		ReacquireDelay:  1500 * time.Millisecond,
		MaxFailureRatio: 0.10,
	}
}

// Validate checks the configuration
func (c *BulkReadConfig) Validate() error {
	if c.BlockAttempts < 1 || c.GlobalRetries < 0 {
		return ErrInvalidParameter
	}
	if c.BlockRetryDelay < 0 || c.BlockRetryStep < 0 || c.ResetDelay < 0 || c.ReacquireDelay < 0 {
		return ErrInvalidParameter
	}
	if c.MaxFailureRatio < 0 || c.MaxFailureRatio > 1 {
		return ErrInvalidParameter
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *BulkReadConfig) Clone() *BulkReadConfig {
	clone := *c
	return &clone
}

// MemoryImage is a sensor memory snapshot assembled block by block. Blocks
// that fail all their attempts are zero-filled and flagged so decoders can
// distinguish "read as zero" from "never read".
type MemoryImage struct {
	data   []byte
	failed []bool
	start  uint8
	end    uint8
}

// NewMemoryImage creates a zero-filled image covering [start, end]
func NewMemoryImage(start, end uint8) *MemoryImage {
	blocks := int(end) - int(start) + 1
	return &MemoryImage{
		start:  start,
		end:    end,
		data:   make([]byte, blocks*BlockSize),
		failed: make([]bool, blocks),
	}
}

// Block returns the 8 bytes of the block at addr. Out-of-range addresses
// return a zero block.
func (m *MemoryImage) Block(addr uint8) []byte {
	if addr < m.start || addr > m.end {
		return make([]byte, BlockSize)
	}
	offset := (int(addr) - int(m.start)) * BlockSize
	return m.data[offset : offset+BlockSize]
}

// Region returns the contiguous bytes of n blocks starting at addr
func (m *MemoryImage) Region(addr uint8, n int) []byte {
	if addr < m.start || int(addr)+n-1 > int(m.end) {
		return make([]byte, n*BlockSize)
	}
	offset := (int(addr) - int(m.start)) * BlockSize
	return m.data[offset : offset+n*BlockSize]
}

// SetBlock stores block data at addr
func (m *MemoryImage) SetBlock(addr uint8, data []byte) {
	if addr < m.start || addr > m.end || len(data) != BlockSize {
		return
	}
	offset := (int(addr) - int(m.start)) * BlockSize
	copy(m.data[offset:offset+BlockSize], data)
	m.failed[int(addr)-int(m.start)] = false
}

// MarkFailed flags the block at addr as unread and zero-fills it
func (m *MemoryImage) MarkFailed(addr uint8) {
	if addr < m.start || addr > m.end {
		return
	}
	offset := (int(addr) - int(m.start)) * BlockSize
	for i := offset; i < offset+BlockSize; i++ {
		m.data[i] = 0
	}
	m.failed[int(addr)-int(m.start)] = true
}

// Failed reports whether the block at addr failed all read attempts
func (m *MemoryImage) Failed(addr uint8) bool {
	if addr < m.start || addr > m.end {
		return false
	}
	return m.failed[int(addr)-int(m.start)]
}

// TotalBlocks returns the number of blocks in the image range
func (m *MemoryImage) TotalBlocks() int {
	return len(m.failed)
}

// FailedBlocks returns how many blocks failed all attempts
func (m *MemoryImage) FailedBlocks() int {
	count := 0
	for _, failed := range m.failed {
		if failed {
			count++
		}
	}
	return count
}

// FailureRatio returns failed blocks over total blocks
func (m *MemoryImage) FailureRatio() float64 {
	if len(m.failed) == 0 {
		return 0
	}
	return float64(m.FailedBlocks()) / float64(len(m.failed))
}

// LibreDecoder bulk-reads the commercial sensor's memory and decodes its
// trend, calibration and history regions
type LibreDecoder struct {
	transport *BlockTransport
	session   *RadioSession
	config    *BulkReadConfig
	log       logrus.FieldLogger
}

// LibreOption configures a LibreDecoder
type LibreOption func(*LibreDecoder)

// WithLibreLogger sets the decoder's logger
func WithLibreLogger(log logrus.FieldLogger) LibreOption {
	return func(d *LibreDecoder) {
		d.log = log
	}
}

// NewLibreDecoder creates a decoder over the given transport and session.
// The session is needed because global read retries run the forced-reset
// recovery path.
func NewLibreDecoder(transport *BlockTransport, session *RadioSession, config *BulkReadConfig, opts ...LibreOption) *LibreDecoder {
	if config == nil {
		config = DefaultBulkReadConfig()
	}
	decoder := &LibreDecoder{
		transport: transport,
		session:   session,
		config:    config,
		log:       logrus.StandardLogger().WithField("component", "libre"),
	}
	for _, opt := range opts {
		opt(decoder)
	}
	return decoder
}

// ReadImage bulk-reads blocks 0x00-0x2F. A pass is accepted when no more
// than MaxFailureRatio of the requested blocks failed; otherwise a global
// retry resets the radio and rereads the whole range. When all global
// retries are exhausted the cycle fails with ErrInsufficientData.
func (d *LibreDecoder) ReadImage(ctx context.Context) (*MemoryImage, error) {
	for pass := 0; pass <= d.config.GlobalRetries; pass++ {
		if pass > 0 {
			d.log.WithField("pass", pass).Warn("bulk read failure budget exceeded, resetting radio")
			if err := d.resetAndReacquire(ctx); err != nil {
				if errors.Is(err, ErrCancelled) {
					return nil, err
				}
				// This pass is lost but later global retries may recover.
				continue
			}
		}

		image, err := d.readAllBlocks(ctx)
		if err != nil {
			return nil, err
		}

		ratio := image.FailureRatio()
		if ratio <= d.config.MaxFailureRatio {
			return image, nil
		}
		d.log.WithFields(logrus.Fields{
			"failed": image.FailedBlocks(),
			"total":  image.TotalBlocks(),
		}).Warn("bulk read pass rejected")
	}

	return nil, NewTransportError("bulkRead", d.transport.adapterName(),
		ErrInsufficientData, ErrorTypePermanent)
}

// readAllBlocks performs one full pass over the block range in fixed address
// order. Only cancellation aborts the pass; per-block failures are recorded
// and zero-filled.
func (d *LibreDecoder) readAllBlocks(ctx context.Context) (*MemoryImage, error) {
	image := NewMemoryImage(libreBlockStart, libreBlockEnd)

	for addr := uint8(libreBlockStart); ; addr++ {
		data, err := d.readBlockWithRetry(ctx, addr)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil, err
			}
			image.MarkFailed(addr)
		} else {
			image.SetBlock(addr, data)
		}

		if addr == libreBlockEnd {
			break
		}
	}

	return image, nil
}

// readBlockWithRetry attempts one block up to BlockAttempts times with a
// linearly growing backoff. A dropped technology request is re-requested and
// the same attempt is replayed once; it consumes neither a block attempt nor
// a global retry.
func (d *LibreDecoder) readBlockWithRetry(ctx context.Context, addr uint8) ([]byte, error) {
	var lastErr error
	reacquired := false

	for attempt := 0; attempt < d.config.BlockAttempts; attempt++ {
		data, err := d.transport.ReadBlock(ctx, addr)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, ErrCancelled) {
			return nil, err
		}
		lastErr = err

		if errors.Is(err, ErrNoActiveRequest) && !reacquired {
			reacquired = true
			if reqErr := d.transport.Adapter().RequestTechnology(ctx); reqErr == nil {
				attempt--
				continue
			}
		}

		if attempt < d.config.BlockAttempts-1 {
			backoff := d.config.BlockRetryDelay + time.Duration(attempt+1)*d.config.BlockRetryStep
			if err := sleepContext(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

// resetAndReacquire runs the global-retry recovery sequence: cancel any
// outstanding technology request, settle, force-reset the radio session,
// settle again, then re-request the technology with one delayed second
// chance.
func (d *LibreDecoder) resetAndReacquire(ctx context.Context) error {
	adapter := d.transport.Adapter()

	if err := adapter.CancelTechnology(); err != nil {
		d.log.WithError(err).Debug("global retry: cancel technology failed")
	}
	if err := sleepContext(ctx, d.config.ResetDelay); err != nil {
		return err
	}

	d.session.ForceReset(ctx)

	if err := sleepContext(ctx, d.config.ResetDelay); err != nil {
		return err
	}

	if err := adapter.RequestTechnology(ctx); err != nil {
		d.log.WithError(err).Debug("global retry: technology re-request failed, retrying once")
		if err := sleepContext(ctx, d.config.ReacquireDelay); err != nil {
			return err
		}
		if err := adapter.RequestTechnology(ctx); err != nil {
			return NewCommunicationError("reacquire", d.transport.adapterName(), err)
		}
	}

	return nil
}
