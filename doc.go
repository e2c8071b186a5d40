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

/*
Package cgm acquires and decodes readings from NFC glucose sensors.

The package talks to ISO/IEC 15693 sensor tags through an injected platform
Adapter, coordinates exclusive access to the single shared radio, and turns
raw measurement bytes into calibrated glucose readings.

Two sensor protocols are supported and selected by runtime detection:

  - RF430: a simple custom ADC sensor driven through a
    configure → sample → wait → read cycle over fixed block addresses.
  - Libre: a reverse-engineered commercial sensor whose full memory is
    bulk-read with layered retries, then bit-unpacked into trend,
    calibration and history regions.

Basic usage:

	adapter, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer adapter.Close()

	session := cgm.NewRadioSession(adapter)
	transport := cgm.NewBlockTransport(adapter)
	detector := cgm.NewDetector(transport)

	guard, err := session.TryAcquire(cgm.DefaultWatchdogTimeout)
	if err != nil {
	    log.Fatal(err) // radio busy
	}
	defer guard.Release()

	switch detector.Detect(ctx) {
	case cgm.SensorLibre:
	    decoder := cgm.NewLibreDecoder(transport, session, nil)
	    readout, err := decoder.Read(ctx, cgm.SourceManualScan)
	    ...
	case cgm.SensorRF430:
	    decoder := cgm.NewRF430Decoder(transport, nil)
	    reading, err := decoder.ReadGlucose(ctx, cgm.SourceManualScan)
	    ...
	}

For periodic acquisition with failure tracking and pause/resume, use the
monitor subpackage.

Concurrency:

Only one acquisition may hold the radio at a time. RadioSession enforces
this with non-blocking TryAcquire semantics and a watchdog that force-clears
a stuck hold. Decoding math is pure and safe for concurrent use; everything
that touches the radio must hold a Guard.

Error handling:

All failures are typed (see ErrTagNotFound, ErrCommunicationFailed and
friends) and carry a retryability classification:

	if errors.Is(err, cgm.ErrRadioBusy) {
	    // another cycle holds the radio; retry later
	}
*/
package cgm
