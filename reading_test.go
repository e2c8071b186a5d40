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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGlucoseReading(t *testing.T) {
	t.Parallel()

	reading := NewGlucoseReading(120, SourceManualScan)
	assert.Equal(t, uint32(120), reading.Value)
	assert.Equal(t, SourceManualScan, reading.Source)
	assert.False(t, reading.IsAlert)
	assert.WithinDuration(t, time.Now(), reading.Timestamp, time.Minute)

	_, err := uuid.Parse(reading.ID)
	require.NoError(t, err)

	other := NewGlucoseReading(120, SourceManualScan)
	assert.NotEqual(t, reading.ID, other.ID)
}

func TestNewGlucoseReadingAlertFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value uint32
		alert bool
	}{
		{name: "hypoglycemic", value: 55, alert: true},
		{name: "low boundary", value: 70, alert: false},
		{name: "normal", value: 110, alert: false},
		{name: "high boundary", value: 180, alert: false},
		{name: "hyperglycemic", value: 250, alert: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reading := NewGlucoseReading(tt.value, SourceAutoMonitor)
			assert.Equal(t, tt.alert, reading.IsAlert)
		})
	}
}
