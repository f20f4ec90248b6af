package idler

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented is returned by the default processor. It aborts the
	// fetch cycle instead of quietly leaving every message unprocessed.
	ErrNotImplemented = errors.New("message processor not implemented")

	// ErrConnectionLost marks protocol errors after which the connection is
	// no longer usable and has to be rebuilt.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNotConnected is returned when an operation needs a live connection.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionError is fatal to the current connection. In watch mode it
// triggers a reconnect, in batch mode it is returned to the caller.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError aborts the current fetch cycle. Messages relocated before the
// failure stay relocated.
type FetchError struct {
	Op        string
	Relocated int
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error during %s (%d relocated before failure): %v", e.Op, e.Relocated, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TransientLoopError is a protocol error seen inside the wait loop. It is logged
// and retried in place and never leaves the loop.
type TransientLoopError struct {
	State LoopState
	Err   error
}

func (e *TransientLoopError) Error() string {
	return fmt.Sprintf("transient error while %s: %v", e.State, e.Err)
}

func (e *TransientLoopError) Unwrap() error { return e.Err }

// isConnectionLoss reports whether err means the connection must be rebuilt.
func isConnectionLoss(err error) bool {
	var connErr *ConnectionError
	return errors.Is(err, ErrConnectionLost) || errors.Is(err, ErrNotConnected) || errors.As(err, &connErr)
}
