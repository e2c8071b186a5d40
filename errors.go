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
	"errors"
	"fmt"
)

// Resource and capability errors
var (
	// ErrRadioBusy indicates another acquisition currently holds the radio.
	// This is contention, not a failure; callers retry later or skip the cycle.
	ErrRadioBusy = errors.New("radio operation already in progress")
	// ErrNotSupported indicates the device has no usable NFC hardware.
	ErrNotSupported = errors.New("nfc hardware not supported")
	// ErrNotEnabled indicates NFC hardware exists but is switched off.
	ErrNotEnabled = errors.New("nfc hardware not enabled")
)

// Channel errors
var (
	// ErrTagNotFound indicates no sensor tag is in field. Expected whenever
	// the user is not holding the reader against the sensor.
	ErrTagNotFound = errors.New("sensor tag not found")
	// ErrCommunicationFailed indicates a transient RF channel fault.
	ErrCommunicationFailed = errors.New("sensor communication failed")
	// ErrTransportTimeout indicates a single command exceeded its deadline.
	ErrTransportTimeout = errors.New("transport timeout")
	// ErrInvalidResponse indicates the tag answered with an unexpected shape.
	ErrInvalidResponse = errors.New("invalid sensor response")
	// ErrNoActiveRequest indicates the platform dropped the technology
	// request; callers re-request the technology and retry.
	ErrNoActiveRequest = errors.New("no active technology request")
)

// Flow errors
var (
	// ErrCancelled indicates the user or system aborted the operation.
	ErrCancelled = errors.New("operation cancelled")
	// ErrInsufficientData indicates a bulk read exceeded the block failure
	// budget after exhausting all retries.
	ErrInsufficientData = errors.New("insufficient sensor data")
	// ErrInvalidParameter indicates a caller-supplied argument is invalid.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType classifies transport errors for retry decisions
type ErrorType int

const (
	// ErrorTypePermanent indicates errors that will not resolve on retry
	ErrorTypePermanent ErrorType = iota
	// ErrorTypeTransient indicates errors that may resolve on retry
	ErrorTypeTransient
	// ErrorTypeTimeout indicates deadline-related errors
	ErrorTypeTimeout
	// ErrorTypeBusy indicates resource contention, retryable after release
	ErrorTypeBusy
)

// String returns a human-readable name for the error type
func (t ErrorType) String() string {
	switch t {
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// TransportError wraps a failure from the radio channel with enough
// structure for callers to decide on retry policy without matching on
// formatted message text.
type TransportError struct {
	Err       error
	Op        string
	Adapter   string
	Type      ErrorType
	Retryable bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Adapter != "" {
		return fmt.Sprintf("%s (%s): %v", e.Op, e.Adapter, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError with an explicit classification
func NewTransportError(op, adapter string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Adapter:   adapter,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a TransportError for a command deadline overrun
func NewTimeoutError(op, adapter string) *TransportError {
	return NewTransportError(op, adapter, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewTagNotFoundError creates a TransportError for an absent tag.
// Tag absence is expected behavior, so it is never retryable here; retry
// policy for absent tags belongs to the acquisition loop, not the channel.
func NewTagNotFoundError(op, adapter string) *TransportError {
	return NewTransportError(op, adapter, ErrTagNotFound, ErrorTypePermanent)
}

// NewInvalidResponseError creates a TransportError for a malformed response
func NewInvalidResponseError(op, adapter string, detail string) *TransportError {
	err := ErrInvalidResponse
	if detail != "" {
		err = fmt.Errorf("%w: %s", ErrInvalidResponse, detail)
	}
	return NewTransportError(op, adapter, err, ErrorTypeTransient)
}

// NewCommunicationError creates a TransportError for a transient channel fault
func NewCommunicationError(op, adapter string, cause error) *TransportError {
	err := ErrCommunicationFailed
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrCommunicationFailed, cause)
	}
	return NewTransportError(op, adapter, err, ErrorTypeTransient)
}

// NewNoActiveRequestError creates a TransportError indicating the platform
// dropped the underlying technology request
func NewNoActiveRequestError(op, adapter string) *TransportError {
	return NewTransportError(op, adapter, ErrNoActiveRequest, ErrorTypeTransient)
}

// NewCancelledError creates a TransportError for a user or system abort
func NewCancelledError(op, adapter string, cause error) *TransportError {
	err := ErrCancelled
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrCancelled, cause)
	}
	return NewTransportError(op, adapter, err, ErrorTypePermanent)
}

// IsRetryable reports whether an operation that produced err may succeed if
// attempted again on the same channel. TransportError carries an explicit
// flag; bare sentinels are classified by identity.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable
	}

	switch {
	case errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrInvalidResponse),
		errors.Is(err, ErrNoActiveRequest):
		return true
	default:
		return false
	}
}

// GetErrorType returns the classification for err
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Type
	}

	switch {
	case errors.Is(err, ErrTransportTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrRadioBusy):
		return ErrorTypeBusy
	case errors.Is(err, ErrCommunicationFailed),
		errors.Is(err, ErrInvalidResponse),
		errors.Is(err, ErrNoActiveRequest):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsExpected reports whether err is a benign, non-actionable outcome of an
// acquisition cycle. Expected errors never count toward a failure streak and
// produce no user-facing alert.
func IsExpected(err error) bool {
	return errors.Is(err, ErrTagNotFound) || errors.Is(err, ErrCancelled)
}
