package errors

import (
	"errors"
	"fmt"
)

// TransportError is the base interface for all transport errors.
type TransportError interface {
	error
	IsTransportError() bool
}

// Compile-time verification that all error types implement TransportError.
var (
	_ TransportError = (*ServerNotFoundError)(nil)
	_ TransportError = (*ServerStartError)(nil)
	_ TransportError = (*ProcessError)(nil)
	_ TransportError = (*HandlerError)(nil)
	_ TransportError = (*WriteError)(nil)
)

// Sentinel errors for lifecycle misuse and bridge state.
var (
	// ErrSessionNotConnected indicates the session has not been connected yet.
	ErrSessionNotConnected = errors.New("session not connected")

	// ErrSessionAlreadyConnected indicates Connect was called more than once.
	ErrSessionAlreadyConnected = errors.New("session already connected")

	// ErrSessionDestroyed indicates the session was destroyed and cannot be reused.
	ErrSessionDestroyed = errors.New("session destroyed: sessions are single-use, create a new one with New()")

	// ErrBridgeNotStarted indicates the server process has not been started.
	ErrBridgeNotStarted = errors.New("server process not started")

	// ErrBridgeAlreadyStarted indicates the server process is already running.
	ErrBridgeAlreadyStarted = errors.New("server process already started")

	// ErrBridgeStopped indicates the bridge was stopped and cannot be restarted.
	ErrBridgeStopped = errors.New("server process stopped")

	// ErrStdinClosed indicates stdin was closed due to context cancellation or shutdown.
	ErrStdinClosed = errors.New("stdin closed")
)

// ServerNotFoundError indicates the language server binary was not found.
type ServerNotFoundError struct {
	Name          string
	SearchedPaths []string
}

func (e *ServerNotFoundError) Error() string {
	return fmt.Sprintf("language server %q not found in: %v", e.Name, e.SearchedPaths)
}

// IsTransportError implements TransportError.
func (e *ServerNotFoundError) IsTransportError() bool { return true }

// ServerStartError indicates the server process could not be launched.
type ServerStartError struct {
	Err error
}

func (e *ServerStartError) Error() string {
	return fmt.Sprintf("failed to start language server: %v", e.Err)
}

func (e *ServerStartError) Unwrap() error {
	return e.Err
}

// IsTransportError implements TransportError.
func (e *ServerStartError) IsTransportError() bool { return true }

// ProcessError indicates the server process exited unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("language server failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("language server failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsTransportError implements TransportError.
func (e *ProcessError) IsTransportError() bool { return true }

// HandlerError records a subscriber that failed while handling a message.
// Panics are recovered and reported with Panicked set.
type HandlerError struct {
	SubscriptionID string
	Panicked       bool
	Err            error
}

func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("subscriber %s panicked: %v", e.SubscriptionID, e.Err)
	}

	return fmt.Sprintf("subscriber %s failed: %v", e.SubscriptionID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsTransportError implements TransportError.
func (e *HandlerError) IsTransportError() bool { return true }

// WriteError indicates a framed message could not be written to the server.
type WriteError struct {
	Bytes int
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %d bytes to language server: %v", e.Bytes, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsTransportError implements TransportError.
func (e *WriteError) IsTransportError() bool { return true }
