// Package guda structured error types for better error handling
package guda

import (
	"errors"
	"fmt"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Memory errors
	ErrTypeMemory ErrorType = iota
	// Invalid argument errors
	ErrTypeInvalidArg
	// Execution errors
	ErrTypeExecution
	// Device errors
	ErrTypeDevice
	// Not implemented errors
	ErrTypeNotImplemented
	// Timeout errors
	ErrTypeTimeout
)

// GUDAError represents a structured error with context
type GUDAError struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *GUDAError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("GUDA %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("GUDA %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *GUDAError) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeDevice:
		return "Device"
	case ErrTypeNotImplemented:
		return "NotImplemented"
	case ErrTypeTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &GUDAError{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewDeviceError creates an error reporting that the device cannot service
// a request (allocation, launch configuration, ...).
func NewDeviceError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewTimeoutError creates an error for a wait that hit its limit
func NewTimeoutError(op string, message string, err error) error {
	return &GUDAError{
		Type:    ErrTypeTimeout,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Common pre-defined errors

var (
	// ErrOutOfMemory indicates memory allocation failure
	ErrOutOfMemory = NewMemoryError("Malloc", "out of memory", nil)

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Malloc", "size must be positive")

	// ErrNullPointer indicates null pointer access
	ErrNullPointer = NewInvalidArgError("Memory", "null pointer")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewMemoryError("Free", "double free detected", nil)

	// ErrInvalidDevice indicates invalid device ID
	ErrInvalidDevice = NewInvalidArgError("SetDevice", "invalid device ID")

	// ErrLaunchTooLarge indicates a launch configuration beyond device limits
	ErrLaunchTooLarge = NewDeviceError("Launch", "cannot launch requested grid", nil)

	// ErrKernelFailed indicates that a kernel did not run to completion
	ErrKernelFailed = NewExecutionError("Kernel", "kernel execution failed", nil)

	// ErrContextDestroyed indicates use of a context after Destroy
	ErrContextDestroyed = NewDeviceError("Context", "context destroyed", nil)

	// ErrNotSupported indicates an unimplemented operation
	ErrNotSupported = &GUDAError{Type: ErrTypeNotImplemented, Op: "Runtime", Message: "operation not supported"}
)

func hasType(err error, t ErrorType) bool {
	var e *GUDAError
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	return hasType(err, ErrTypeMemory)
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	return hasType(err, ErrTypeInvalidArg)
}

// IsExecutionError checks if an error is an execution error
func IsExecutionError(err error) bool {
	return hasType(err, ErrTypeExecution)
}

// IsDeviceError checks if an error is a device error
func IsDeviceError(err error) bool {
	return hasType(err, ErrTypeDevice)
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsNotImplementedError checks if an error is a not-implemented error
func IsNotImplementedError(err error) bool {
	return hasType(err, ErrTypeNotImplemented)
}
