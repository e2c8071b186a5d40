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
	"time"

	"github.com/sirupsen/logrus"
)

// Watchdog timeouts for radio acquisitions
const (
	// DefaultWatchdogTimeout bounds a normal acquisition cycle.
	DefaultWatchdogTimeout = 30 * time.Second
	// BulkReadWatchdogTimeout bounds a full commercial-sensor memory read,
	// which can legitimately span several global retries.
	BulkReadWatchdogTimeout = 60 * time.Second
)

// RadioSession is the single source of truth for "is it safe to talk to the
// radio". The underlying hardware API has no mutual exclusion of its own and
// leaks state when an operation is interrupted (app backgrounded, tag pulled
// mid-read), so every acquisition must hold a Guard from this session.
//
// Exactly one Guard may be outstanding at a time. A watchdog force-releases
// a Guard whose holder never calls Release, so a stuck hardware call cannot
// wedge the radio forever.
type RadioSession struct {
	adapter    Adapter
	log        logrus.FieldLogger
	watchdog   *time.Timer
	deadline   time.Time
	mu         sync.Mutex
	generation uint64
	busy       bool
}

// SessionOption configures a RadioSession
type SessionOption func(*RadioSession)

// WithSessionLogger sets the logger used for watchdog and reset events
func WithSessionLogger(log logrus.FieldLogger) SessionOption {
	return func(s *RadioSession) {
		s.log = log
	}
}

// NewRadioSession creates a session bound to the given adapter
func NewRadioSession(adapter Adapter, opts ...SessionOption) *RadioSession {
	session := &RadioSession{
		adapter: adapter,
		log:     logrus.StandardLogger().WithField("component", "radio-session"),
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Guard represents an exclusive hold on the radio. Releasing is idempotent
// and generation-checked: a stale guard (already released, or force-released
// by the watchdog) can never release a later acquisition.
type Guard struct {
	session    *RadioSession
	generation uint64
}

// TryAcquire attempts to take exclusive hold of the radio. It fails
// immediately with ErrRadioBusy when another acquisition holds it; there is
// no queueing. On success a watchdog is armed that force-releases the guard
// after timeout even if the holder never releases.
func (s *RadioSession) TryAcquire(timeout time.Duration) (*Guard, error) {
	if timeout <= 0 {
		return nil, ErrInvalidParameter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, ErrRadioBusy
	}

	s.busy = true
	s.deadline = time.Now().Add(timeout)
	s.generation++
	generation := s.generation

	s.watchdog = time.AfterFunc(timeout, func() {
		s.expire(generation)
	})

	return &Guard{session: s, generation: generation}, nil
}

// Release releases the guard. Safe to call more than once.
func (g *Guard) Release() {
	if g == nil || g.session == nil {
		return
	}
	g.session.release(g.generation)
}

// Busy reports whether an acquisition currently holds the radio
func (s *RadioSession) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Deadline returns the watchdog deadline of the current acquisition, if any
func (s *RadioSession) Deadline() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.busy {
		return time.Time{}, false
	}
	return s.deadline, true
}

// ForceReset unconditionally clears the busy flag, cancels the outstanding
// technology request and, where the platform supports it, toggles tag
// discovery off and on. It is the error-recovery path for a suspected stuck
// state, so it never returns an error: every internal failure is swallowed
// and logged.
func (s *RadioSession) ForceReset(ctx context.Context) {
	s.mu.Lock()
	if s.busy {
		s.log.Warn("force reset while radio acquisition in progress")
	}
	s.busy = false
	s.deadline = time.Time{}
	s.generation++
	stopTimer(s.watchdog)
	s.watchdog = nil
	s.mu.Unlock()

	if err := s.adapter.CancelTechnology(); err != nil {
		s.log.WithError(err).Debug("force reset: cancel technology failed")
	}

	if restarter, ok := s.adapter.(DiscoveryRestarter); ok {
		if err := restarter.RestartDiscovery(ctx); err != nil {
			s.log.WithError(err).Debug("force reset: discovery restart failed")
		}
	}
}

// release clears the busy flag if the guard generation still matches
func (s *RadioSession) release(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.busy || s.generation != generation {
		return
	}

	s.busy = false
	s.deadline = time.Time{}
	stopTimer(s.watchdog)
	s.watchdog = nil
}

// expire is the watchdog path: force-clear a hold whose owner went silent
func (s *RadioSession) expire(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.busy || s.generation != generation {
		return
	}

	s.busy = false
	s.deadline = time.Time{}
	s.watchdog = nil
	s.log.Warn("watchdog released stuck radio acquisition")
}

// stopTimer stops a watchdog timer if one is armed. AfterFunc timers have no
// channel to drain, so Stop alone is sufficient.
func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
