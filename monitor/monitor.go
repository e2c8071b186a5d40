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

// Package monitor runs periodic glucose acquisition over a detected sensor
// with failure tracking, pause/resume and out-of-band manual scans.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	cgm "github.com/mohamedS2020/go-cgm"
)

// Monitoring errors
var (
	ErrAlreadyRunning = errors.New("monitoring already running")
	ErrNotRunning     = errors.New("monitoring not running")
	ErrNFCUnavailable = errors.New("NFC hardware unavailable")
	ErrSensorNotFound = errors.New("no known sensor detected")
)

// State is the monitoring loop lifecycle state
type State int

// Monitoring states
const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StatePaused
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Monitor drives periodic acquisition cycles against a single sensor.
// Callbacks run on the monitoring goroutine and must not block.
type Monitor struct {
	// OnReading receives every decoded reading, current and backfilled.
	OnReading func(cgm.GlucoseReading)
	// OnReadout receives the full decoded result of commercial-sensor
	// cycles, after OnReading has seen the individual readings.
	OnReadout func(*cgm.LibreReadout)
	// OnError receives every cycle error, counted or not.
	OnError func(error)
	// OnFatal fires exactly once when the consecutive failure budget is
	// exhausted; the loop stops itself immediately after.
	OnFatal func(error)

	adapter   cgm.Adapter
	session   *cgm.RadioSession
	transport *cgm.BlockTransport
	detector  *cgm.Detector
	libre     *cgm.LibreDecoder
	rf430     *cgm.RF430Decoder
	config    *Config
	log       logrus.FieldLogger

	cancel context.CancelFunc
	done   chan struct{}
	kick   chan struct{}

	mu         sync.Mutex
	state      State
	sensorType cgm.SensorType
	failures   int
	userID     string
}

// Option configures a Monitor
type Option func(*options)

type options struct {
	log    logrus.FieldLogger
	bulk   *cgm.BulkReadConfig
	rf430  *cgm.RF430Config
	config *Config
}

// WithLogger sets the monitor's logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithBulkReadConfig overrides the commercial-sensor retry configuration
func WithBulkReadConfig(config *cgm.BulkReadConfig) Option {
	return func(o *options) {
		o.bulk = config
	}
}

// WithRF430Config overrides the ADC-sensor configuration
func WithRF430Config(config *cgm.RF430Config) Option {
	return func(o *options) {
		o.rf430 = config
	}
}

// WithConfig overrides the monitoring loop configuration
func WithConfig(config *Config) Option {
	return func(o *options) {
		o.config = config
	}
}

// New creates a Monitor over the given platform adapter
func New(adapter cgm.Adapter, opts ...Option) (*Monitor, error) {
	o := &options{
		log:    logrus.StandardLogger().WithField("component", "monitor"),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}

	config := o.config.Clone()
	config.Interval = clampInterval(config.Interval)

	session := cgm.NewRadioSession(adapter, cgm.WithSessionLogger(o.log))
	transport := cgm.NewBlockTransport(adapter, cgm.WithTransportLogger(o.log))

	return &Monitor{
		adapter:    adapter,
		session:    session,
		transport:  transport,
		detector:   cgm.NewDetector(transport, cgm.WithDetectorLogger(o.log)),
		libre:      cgm.NewLibreDecoder(transport, session, o.bulk, cgm.WithLibreLogger(o.log)),
		rf430:      cgm.NewRF430Decoder(transport, o.rf430, cgm.WithRF430Logger(o.log)),
		config:     config,
		log:        o.log,
		sensorType: cgm.SensorUnknown,
		kick:       make(chan struct{}, 1),
	}, nil
}

// Start detects the sensor and begins periodic acquisition. The first cycle
// runs immediately; subsequent cycles follow the configured interval. Start
// fails without side effects when monitoring is already active, the hardware
// is unusable, or no known sensor answers.
func (m *Monitor) Start(ctx context.Context, userID string) error {
	m.mu.Lock()
	if m.state != StateStopped {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.state = StateStarting
	m.mu.Unlock()

	fail := func(err error) error {
		m.mu.Lock()
		m.state = StateStopped
		m.mu.Unlock()
		return err
	}

	if !m.adapter.Supported() || !m.adapter.Enabled() {
		return fail(ErrNFCUnavailable)
	}

	sensorType, err := m.detectSensor(ctx)
	if err != nil {
		return fail(err)
	}
	if sensorType == cgm.SensorUnknown {
		return fail(ErrSensorNotFound)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.state = StateRunning
	m.sensorType = sensorType
	m.failures = 0
	m.userID = userID
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"sensor":   sensorType,
		"interval": m.config.Interval,
		"user":     userID,
	}).Info("monitoring started")

	go m.run(runCtx, done)
	return nil
}

// detectSensor probes for a sensor under an exclusive radio hold
func (m *Monitor) detectSensor(ctx context.Context) (cgm.SensorType, error) {
	guard, err := m.session.TryAcquire(m.config.AcquireTimeout)
	if err != nil {
		return cgm.SensorUnknown, err
	}
	defer guard.Release()

	return m.detector.Detect(ctx), nil
}

// run is the monitoring goroutine
func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.cycle(ctx)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.State() != StateRunning {
				continue
			}
			if !m.cycle(ctx) {
				return
			}
		case <-m.kick:
			if m.State() != StateRunning {
				continue
			}
			if !m.cycle(ctx) {
				return
			}
		}
	}
}

// cycle runs one periodic acquisition. It returns false when the failure
// budget is exhausted and the loop must stop.
func (m *Monitor) cycle(ctx context.Context) bool {
	_, err := m.acquire(ctx, cgm.SourceAutoMonitor)
	if err == nil {
		m.mu.Lock()
		m.failures = 0
		m.mu.Unlock()
		return true
	}

	// Another holder of the radio is not a sensor failure; this cycle is
	// simply skipped.
	if errors.Is(err, cgm.ErrRadioBusy) {
		m.log.Debug("radio busy, skipping cycle")
		return true
	}

	if m.OnError != nil {
		m.OnError(err)
	}

	// Absence and cancellation are expected conditions, not sensor faults.
	if cgm.IsExpected(err) {
		m.log.WithError(err).Debug("cycle skipped")
		return true
	}

	m.mu.Lock()
	m.failures++
	failures := m.failures
	m.mu.Unlock()

	m.log.WithError(err).WithField("consecutive", failures).Warn("acquisition cycle failed")

	if failures < m.config.MaxConsecutiveFailures {
		return true
	}

	m.log.Error("consecutive failure budget exhausted, stopping monitoring")
	if m.OnFatal != nil {
		m.OnFatal(err)
	}
	m.stopFromLoop()
	return false
}

// stopFromLoop transitions to stopped from inside the run goroutine without
// waiting on itself
func (m *Monitor) stopFromLoop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateStopped
	m.failures = 0
}

// acquire performs one full acquisition with the radio held exclusively and
// returns the current reading after the callbacks have seen it
func (m *Monitor) acquire(ctx context.Context, source cgm.ReadingSource) (cgm.GlucoseReading, error) {
	timeout := m.config.AcquireTimeout
	if m.SensorType() == cgm.SensorLibre {
		timeout = m.config.BulkAcquireTimeout
	}

	guard, err := m.session.TryAcquire(timeout)
	if err != nil {
		return cgm.GlucoseReading{}, err
	}
	defer guard.Release()

	switch m.SensorType() {
	case cgm.SensorLibre:
		readout, err := m.libre.Read(ctx, source)
		if err != nil {
			return cgm.GlucoseReading{}, err
		}
		m.emitReadout(readout)
		return readout.Current, nil
	default:
		reading, err := m.rf430.ReadGlucose(ctx, source)
		if err != nil {
			return cgm.GlucoseReading{}, err
		}
		m.emitReading(reading)
		return reading, nil
	}
}

// emitReading delivers one reading to the reading callback
func (m *Monitor) emitReading(reading cgm.GlucoseReading) {
	if m.OnReading != nil {
		m.OnReading(reading)
	}
}

// emitReadout delivers a full commercial-sensor readout: the current reading
// first, then backfilled history, then the readout itself
func (m *Monitor) emitReadout(readout *cgm.LibreReadout) {
	m.emitReading(readout.Current)
	for _, reading := range readout.History {
		m.emitReading(reading)
	}
	if m.OnReadout != nil {
		m.OnReadout(readout)
	}
}

// Pause suspends periodic cycles without tearing down the loop. Pausing an
// inactive monitor fails with ErrNotRunning.
func (m *Monitor) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning {
		return ErrNotRunning
	}
	m.state = StatePaused
	m.log.Info("monitoring paused")
	return nil
}

// Resume restarts periodic cycles after a pause and triggers an immediate
// acquisition so the user does not wait out a full interval
func (m *Monitor) Resume() error {
	m.mu.Lock()
	if m.state != StatePaused {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.state = StateRunning
	m.mu.Unlock()

	m.log.Info("monitoring resumed")
	select {
	case m.kick <- struct{}{}:
	default:
	}
	return nil
}

// Stop halts monitoring and waits for the loop to exit. Stopping an already
// stopped monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == StateStopped {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.state = StateStopped
	m.failures = 0
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	m.log.Info("monitoring stopped")
}

// TakeManualReading performs an out-of-band acquisition attributed to userID
// and returns the resulting reading. It shares the radio with the periodic
// loop, so it fails with ErrRadioBusy when a cycle is in flight, and it never
// touches the consecutive failure counter. The sensor is detected on demand
// when monitoring has not cached a type yet. When the periodic loop is active
// its callbacks see the reading too.
func (m *Monitor) TakeManualReading(ctx context.Context, userID string) (cgm.GlucoseReading, error) {
	if !m.adapter.Supported() || !m.adapter.Enabled() {
		return cgm.GlucoseReading{}, ErrNFCUnavailable
	}

	if m.SensorType() == cgm.SensorUnknown {
		sensorType, err := m.detectSensor(ctx)
		if err != nil {
			return cgm.GlucoseReading{}, err
		}
		if sensorType == cgm.SensorUnknown {
			return cgm.GlucoseReading{}, ErrSensorNotFound
		}
		m.mu.Lock()
		m.sensorType = sensorType
		m.mu.Unlock()
	}

	reading, err := m.acquire(ctx, cgm.SourceManualScan)
	if err != nil {
		return cgm.GlucoseReading{}, err
	}

	m.log.WithFields(logrus.Fields{
		"user":  userID,
		"value": reading.Value,
	}).Info("manual reading complete")
	return reading, nil
}

// ResetRadio force-clears a stuck radio hold
func (m *Monitor) ResetRadio(ctx context.Context) {
	m.session.ForceReset(ctx)
}

// State returns the current lifecycle state
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SensorType returns the detected sensor type, or SensorUnknown before the
// first successful detection
func (m *Monitor) SensorType() cgm.SensorType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensorType
}

// UserID returns the user the active monitoring run is attributed to
func (m *Monitor) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Failures returns the current consecutive counted-failure count
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Session exposes the radio session for coordination with other radio users
func (m *Monitor) Session() *cgm.RadioSession {
	return m.session
}
