// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for the debugger control plane.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrChannelOverflow = fmt.Errorf("channel overflow")
	ErrRegistryFull    = fmt.Errorf("breakpoint registry full")
	ErrSessionStopped  = fmt.Errorf("debug session stopped")
	ErrSessionClosed   = fmt.Errorf("debug session closed")
	ErrPrecondition    = fmt.Errorf("precondition violated")
	ErrTimeout         = fmt.Errorf("operation timeout")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeChannelOverflow
	ErrCodeRegistryFull
	ErrCodeStopped
	ErrCodeClosed
	ErrCodePrecondition
	ErrCodeTimeout
	ErrCodeInternal
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeInvalidArgument: ErrInvalidArgument,
	ErrCodeChannelOverflow: ErrChannelOverflow,
	ErrCodeRegistryFull:    ErrRegistryFull,
	ErrCodeStopped:         ErrSessionStopped,
	ErrCodeClosed:          ErrSessionClosed,
	ErrCodePrecondition:    ErrPrecondition,
	ErrCodeTimeout:         ErrTimeout,
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Is lets errors.Is match a structured error against the sentinel of its code.
func (e *Error) Is(target error) bool {
	sentinel, ok := codeSentinels[e.Code]
	return ok && sentinel == target
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err: ErrCodeOK for nil, ErrCodeInternal
// for errors outside this package.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	for code, sentinel := range codeSentinels {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ErrCodeInternal
}
