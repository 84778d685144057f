package lsptransport

import "github.com/wagiedev/lsp-transport-go/internal/errors"

// Re-export error types from internal package

// ServerNotFoundError indicates the language server binary was not found.
type ServerNotFoundError = errors.ServerNotFoundError

// ServerStartError indicates the server process could not be launched.
type ServerStartError = errors.ServerStartError

// ProcessError indicates the server process exited unexpectedly.
type ProcessError = errors.ProcessError

// HandlerError records a subscriber failure during dispatch.
type HandlerError = errors.HandlerError

// WriteError indicates a write to the server's stdin failed.
type WriteError = errors.WriteError

// TransportError is the base interface for all transport errors.
type TransportError = errors.TransportError

// Re-export sentinel errors from internal package.
var (
	// ErrSessionNotConnected indicates the session has not been connected yet.
	ErrSessionNotConnected = errors.ErrSessionNotConnected

	// ErrSessionAlreadyConnected indicates Connect was called more than once.
	ErrSessionAlreadyConnected = errors.ErrSessionAlreadyConnected

	// ErrSessionDestroyed indicates the session was destroyed and cannot be reused.
	ErrSessionDestroyed = errors.ErrSessionDestroyed

	// ErrStdinClosed indicates the server's stdin is closed.
	ErrStdinClosed = errors.ErrStdinClosed
)
