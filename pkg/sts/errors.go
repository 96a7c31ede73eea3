package sts

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrTimeout means no sync header was observed within the read timeout.
	ErrTimeout = errors.New("communication timeout")
	// ErrTruncated means a packet body ended short of its declared length.
	ErrTruncated = errors.New("truncated response")
	// ErrIDMismatch means the responding servo was not the one addressed.
	ErrIDMismatch = errors.New("response from wrong servo id")
	// ErrPortClosed means the transport is closed; writes are not retried.
	ErrPortClosed = errors.New("port unavailable")
	// ErrInvalidID means a servo id outside [0, 253] was supplied.
	ErrInvalidID = errors.New("invalid servo id")
)

// ServoError wraps a failure talking to a specific servo.
type ServoError struct {
	ID  int
	Op  string
	Err error
}

func (e *ServoError) Error() string {
	return fmt.Sprintf("servo %d: %s: %v", e.ID, e.Op, e.Err)
}

func (e *ServoError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is a communication timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
