package device

import (
	"errors"
	"fmt"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrInitFailed) {
//	    // handle driver init failure
//	}
var (
	// ErrInitFailed is returned when a driver's Init fails.
	ErrInitFailed = errors.New("device: init failed")

	// ErrShutdownFailed is returned when a driver's Shutdown fails.
	ErrShutdownFailed = errors.New("device: shutdown failed")

	// ErrInvalidClass is returned when a class value is not recognised.
	ErrInvalidClass = errors.New("device: invalid class")

	// ErrInvalidFamily is returned when a bus family value is not recognised.
	ErrInvalidFamily = errors.New("device: invalid bus family")
)

// InitError wraps a driver init failure with its cause.
func InitError(cause error) error {
	return fmt.Errorf("%w: %w", ErrInitFailed, cause)
}

// ShutdownError wraps a driver shutdown failure with its cause.
func ShutdownError(cause error) error {
	return fmt.Errorf("%w: %w", ErrShutdownFailed, cause)
}
