// Package config provides configuration types for the language server transport.
package config

import "context"

// Registration is the handle returned by Bridge.SubscribeChunks.
// Closing it stops chunk delivery; Close is safe to call more than once.
type Registration interface {
	Close() error
}

// Bridge defines the host-side primitives a session is built on: starting
// and stopping the server process, raw writes to its stdin, and raw chunk
// events from its stdout.
//
// The default implementation is subprocess.ProcessBridge. Custom bridges
// can be injected via Options.Bridge for testing or remote servers.
type Bridge interface {
	// StartServer launches the language server process.
	StartServer(ctx context.Context) error

	// WriteStdin writes an already framed message to the server's stdin.
	// This method must be safe for concurrent use.
	WriteStdin(ctx context.Context, framed []byte) error

	// SubscribeChunks registers fn to receive raw stdout chunks published
	// under tag. Chunks for one registration are delivered in arrival order,
	// one call at a time.
	SubscribeChunks(tag string, fn func(chunk []byte)) (Registration, error)

	// StopServer terminates the server process.
	// It's safe to call StopServer multiple times.
	StopServer() error
}
