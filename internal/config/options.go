package config

import (
	"log/slog"
)

// DefaultServerName is the language server binary searched for when no
// explicit path is configured.
const DefaultServerName = "texlab"

// Options configures a transport session and the server process behind it.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ServerName is the binary name searched in PATH and common locations.
	// Defaults to DefaultServerName.
	ServerName string

	// ServerPath is an explicit path to the language server binary.
	// If set, discovery uses it and only it.
	ServerPath string

	// ServerArgs are passed to the language server on startup.
	ServerArgs []string

	// Env provides additional environment variables for the server process.
	Env map[string]string

	// Cwd sets the working directory for the server process.
	Cwd string

	// InitializationOptions replaces the options injected into the
	// initialize request. If nil, {"diagnosticsDelay": 300} is used.
	InitializationOptions map[string]any

	// MaxContentLength bounds the declared size of an inbound frame.
	// Zero selects the frame package default.
	MaxContentLength int

	// Stderr is called with each line the server writes to stderr.
	Stderr func(line string)

	// Bridge overrides the host bridge. If nil, a subprocess bridge is
	// created from the server settings above.
	Bridge Bridge
}

// Name returns the configured server name or the default.
func (o *Options) Name() string {
	if o.ServerName != "" {
		return o.ServerName
	}

	return DefaultServerName
}
