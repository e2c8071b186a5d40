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

package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgm "github.com/mohamedS2020/go-cgm"
	"github.com/mohamedS2020/go-cgm/internal/sensortest"
)

func fastOptions() []Option {
	return []Option{
		WithRF430Config(&cgm.RF430Config{
			Calibration: cgm.DefaultCalibration(),
			SettleDelay: time.Millisecond,
		}),
		WithBulkReadConfig(&cgm.BulkReadConfig{
			BlockAttempts:   3,
			BlockRetryDelay: time.Millisecond,
			GlobalRetries:   2,
			ResetDelay:      time.Millisecond,
			ReacquireDelay:  time.Millisecond,
			MaxFailureRatio: 0.10,
		}),
	}
}

func newRF430Monitor(t *testing.T) (*Monitor, *cgm.MockAdapter) {
	t.Helper()

	adapter := cgm.NewMockAdapter()
	adapter.SetTransceiveFunc(sensortest.Handler(sensortest.NewVirtualRF430(9360)))

	mon, err := New(adapter, fastOptions()...)
	require.NoError(t, err)
	return mon, adapter
}

func newLibreMonitor(t *testing.T) (*Monitor, *cgm.MockAdapter) {
	t.Helper()

	adapter := cgm.NewMockAdapter()
	adapter.SetTransceiveFunc(sensortest.Handler(
		sensortest.NewVirtualLibre(sensortest.DefaultLibreOptions())))

	mon, err := New(adapter, fastOptions()...)
	require.NoError(t, err)
	return mon, adapter
}

// collector buffers readings delivered by callbacks
type collector struct {
	mu       sync.Mutex
	readings []cgm.GlucoseReading
	errs     []error
	fatal    int
}

func (c *collector) attach(m *Monitor) {
	m.OnReading = func(r cgm.GlucoseReading) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.readings = append(c.readings, r)
	}
	m.OnError = func(err error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.errs = append(c.errs, err)
	}
	m.OnFatal = func(error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.fatal++
	}
}

func (c *collector) readingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.readings)
}

func (c *collector) errorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errs)
}

func (c *collector) fatalCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fatal
}

func (c *collector) lastReading() cgm.GlucoseReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readings[len(c.readings)-1]
}

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	adapter := cgm.NewMockAdapter()
	_, err := New(adapter, WithConfig(&Config{Interval: 0}))
	assert.ErrorIs(t, err, cgm.ErrInvalidParameter)
}

func TestIntervalIsClamped(t *testing.T) {
	t.Parallel()

	adapter := cgm.NewMockAdapter()

	mon, err := New(adapter, WithConfig(&Config{
		Interval:               time.Second,
		AcquireTimeout:         cgm.DefaultWatchdogTimeout,
		BulkAcquireTimeout:     cgm.BulkReadWatchdogTimeout,
		MaxConsecutiveFailures: 3,
	}))
	require.NoError(t, err)
	assert.Equal(t, MinInterval, mon.config.Interval)

	mon, err = New(adapter, WithConfig(&Config{
		Interval:               2 * time.Hour,
		AcquireTimeout:         cgm.DefaultWatchdogTimeout,
		BulkAcquireTimeout:     cgm.BulkReadWatchdogTimeout,
		MaxConsecutiveFailures: 3,
	}))
	require.NoError(t, err)
	assert.Equal(t, MaxInterval, mon.config.Interval)
}

func TestStartRequiresUsableHardware(t *testing.T) {
	t.Parallel()

	mon, adapter := newRF430Monitor(t)

	adapter.SetSupported(false)
	assert.ErrorIs(t, mon.Start(context.Background(), "user-1"), ErrNFCUnavailable)
	assert.Equal(t, StateStopped, mon.State())

	adapter.SetSupported(true)
	adapter.SetEnabled(false)
	assert.ErrorIs(t, mon.Start(context.Background(), "user-1"), ErrNFCUnavailable)
	assert.Equal(t, StateStopped, mon.State())
}

func TestStartRequiresKnownSensor(t *testing.T) {
	t.Parallel()

	adapter := cgm.NewMockAdapter()
	foreign := sensortest.NewVirtualSensor(0x03)
	foreign.SetBlock(0x00, []byte{0xAA, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07})
	adapter.SetTransceiveFunc(sensortest.Handler(foreign))

	mon, err := New(adapter, fastOptions()...)
	require.NoError(t, err)

	assert.ErrorIs(t, mon.Start(context.Background(), "user-1"), ErrSensorNotFound)
	assert.Equal(t, StateStopped, mon.State())
}

func TestStartDeliversImmediateReading(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	require.NoError(t, mon.Start(context.Background(), "user-1"))
	defer mon.Stop()

	assert.Equal(t, cgm.SensorRF430, mon.SensorType())
	assert.Equal(t, "user-1", mon.UserID())

	require.Eventually(t, func() bool {
		return c.readingCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	reading := c.lastReading()
	assert.Equal(t, uint32(171), reading.Value)
	assert.Equal(t, cgm.SourceAutoMonitor, reading.Source)
}

func TestStartTwiceFails(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	require.NoError(t, mon.Start(context.Background(), "user-1"))
	defer mon.Stop()

	assert.ErrorIs(t, mon.Start(context.Background(), "user-1"), ErrAlreadyRunning)
}

func TestLibreCycleDeliversHistory(t *testing.T) {
	t.Parallel()

	mon, _ := newLibreMonitor(t)
	c := &collector{}
	c.attach(mon)

	var readouts int
	var mu sync.Mutex
	mon.OnReadout = func(readout *cgm.LibreReadout) {
		mu.Lock()
		defer mu.Unlock()
		readouts++
	}

	require.NoError(t, mon.Start(context.Background(), "user-1"))
	defer mon.Stop()

	assert.Equal(t, cgm.SensorLibre, mon.SensorType())

	// The current reading plus the entries recovered from the on-tag buffer.
	require.Eventually(t, func() bool {
		return c.readingCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return readouts == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConsecutiveFailuresStopMonitoring(t *testing.T) {
	t.Parallel()

	mon, adapter := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	mon.mu.Lock()
	mon.sensorType = cgm.SensorRF430
	mon.mu.Unlock()

	adapter.SetPresenceError(errors.New("rf front end dead"))

	ctx := context.Background()
	assert.True(t, mon.cycle(ctx))
	assert.Equal(t, 1, mon.Failures())
	assert.True(t, mon.cycle(ctx))
	assert.Equal(t, 2, mon.Failures())
	assert.False(t, mon.cycle(ctx), "third counted failure must stop the loop")

	assert.Equal(t, 1, c.fatalCount())
	assert.Equal(t, 3, c.errorCount())
	assert.Equal(t, StateStopped, mon.State())
	assert.Zero(t, mon.Failures())
}

func TestExpectedErrorsAreNotCounted(t *testing.T) {
	t.Parallel()

	mon, adapter := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	mon.mu.Lock()
	mon.sensorType = cgm.SensorRF430
	mon.mu.Unlock()

	adapter.SetTagPresent(false)

	for i := 0; i < 5; i++ {
		assert.True(t, mon.cycle(context.Background()))
	}
	assert.Zero(t, mon.Failures())
	assert.Equal(t, 5, c.errorCount())
	assert.Zero(t, c.fatalCount())
}

func TestRadioBusyCycleIsSkippedSilently(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	mon.mu.Lock()
	mon.sensorType = cgm.SensorRF430
	mon.mu.Unlock()

	guard, err := mon.Session().TryAcquire(cgm.DefaultWatchdogTimeout)
	require.NoError(t, err)
	defer guard.Release()

	assert.True(t, mon.cycle(context.Background()))
	assert.Zero(t, mon.Failures())
	assert.Zero(t, c.errorCount(), "contention is not an error")
}

func TestFailureCounterResetsOnSuccess(t *testing.T) {
	t.Parallel()

	mon, adapter := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	mon.mu.Lock()
	mon.sensorType = cgm.SensorRF430
	mon.mu.Unlock()

	adapter.SetPresenceError(errors.New("glitch"))
	assert.True(t, mon.cycle(context.Background()))
	assert.True(t, mon.cycle(context.Background()))
	assert.Equal(t, 2, mon.Failures())

	adapter.SetPresenceError(nil)
	assert.True(t, mon.cycle(context.Background()))
	assert.Zero(t, mon.Failures())
	assert.Equal(t, 1, c.readingCount())
}

func TestPauseAndResume(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	require.NoError(t, mon.Start(context.Background(), "user-1"))
	defer mon.Stop()

	require.Eventually(t, func() bool {
		return c.readingCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, mon.Pause())
	assert.Equal(t, StatePaused, mon.State())
	assert.ErrorIs(t, mon.Pause(), ErrNotRunning)

	// Resume triggers an immediate cycle instead of waiting out an interval.
	before := c.readingCount()
	require.NoError(t, mon.Resume())
	assert.Equal(t, StateRunning, mon.State())
	assert.ErrorIs(t, mon.Resume(), ErrNotRunning)

	require.Eventually(t, func() bool {
		return c.readingCount() > before
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPauseWhenStopped(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	assert.ErrorIs(t, mon.Pause(), ErrNotRunning)
	assert.ErrorIs(t, mon.Resume(), ErrNotRunning)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	mon.Stop()

	require.NoError(t, mon.Start(context.Background(), "user-1"))
	mon.Stop()
	mon.Stop()
	assert.Equal(t, StateStopped, mon.State())
}

func TestRestartAfterStop(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)

	require.NoError(t, mon.Start(context.Background(), "user-1"))
	mon.Stop()

	require.NoError(t, mon.Start(context.Background(), "user-2"))
	mon.Stop()
}

func TestTakeManualReading(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)
	c := &collector{}
	c.attach(mon)

	// Works without the periodic loop; detection runs on demand and the
	// reading comes back to the caller directly.
	reading, err := mon.TakeManualReading(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, cgm.SensorRF430, mon.SensorType())
	assert.Equal(t, uint32(171), reading.Value)
	assert.Equal(t, cgm.SourceManualScan, reading.Source)

	// The callbacks see the same reading.
	require.Equal(t, 1, c.readingCount())
	assert.Equal(t, reading, c.lastReading())
}

func TestTakeManualReadingWhileRadioBusy(t *testing.T) {
	t.Parallel()

	mon, _ := newRF430Monitor(t)

	guard, err := mon.Session().TryAcquire(cgm.DefaultWatchdogTimeout)
	require.NoError(t, err)
	defer guard.Release()

	_, err = mon.TakeManualReading(context.Background(), "user-1")
	assert.ErrorIs(t, err, cgm.ErrRadioBusy)
}

func TestTakeManualReadingUnavailableHardware(t *testing.T) {
	t.Parallel()

	mon, adapter := newRF430Monitor(t)
	adapter.SetEnabled(false)

	_, err := mon.TakeManualReading(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrNFCUnavailable)
}

func TestResetRadio(t *testing.T) {
	t.Parallel()

	mon, adapter := newRF430Monitor(t)

	guard, err := mon.Session().TryAcquire(cgm.DefaultWatchdogTimeout)
	require.NoError(t, err)
	_ = guard

	mon.ResetRadio(context.Background())
	assert.False(t, mon.Session().Busy())
	assert.GreaterOrEqual(t, adapter.CancelCount(), 1)
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	config := DefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, DefaultInterval, config.Interval)
	assert.Equal(t, DefaultMaxConsecutiveFailures, config.MaxConsecutiveFailures)

	clone := config.Clone()
	clone.Interval = time.Hour
	assert.Equal(t, DefaultInterval, config.Interval)
}
