package lsptransport

import (
	"log/slog"

	"github.com/wagiedev/lsp-transport-go/internal/config"
)

// Options configures a Session.
type Options = config.Options

// Option configures Options using the functional options pattern.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithServerName sets the binary name searched in PATH (default "texlab").
func WithServerName(name string) Option {
	return func(o *Options) {
		o.ServerName = name
	}
}

// WithServerPath sets the explicit path to the language server binary.
// If not set, the server will be searched in PATH.
func WithServerPath(path string) Option {
	return func(o *Options) {
		o.ServerPath = path
	}
}

// WithServerArgs sets the arguments the language server is launched with.
func WithServerArgs(args ...string) Option {
	return func(o *Options) {
		o.ServerArgs = args
	}
}

// WithEnv provides additional environment variables for the server process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithCwd sets the working directory for the server process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithInitializationOptions replaces the options injected into the
// initialize request.
func WithInitializationOptions(options map[string]any) Option {
	return func(o *Options) {
		o.InitializationOptions = options
	}
}

// WithMaxContentLength bounds the declared size of inbound frames.
func WithMaxContentLength(n int) Option {
	return func(o *Options) {
		o.MaxContentLength = n
	}
}

// WithStderr sets a callback for each line the server writes to stderr.
func WithStderr(fn func(line string)) Option {
	return func(o *Options) {
		o.Stderr = fn
	}
}

// WithBridge replaces the subprocess bridge.
func WithBridge(bridge Bridge) Option {
	return func(o *Options) {
		o.Bridge = bridge
	}
}

// WithConfigFile applies settings from a decoded configuration file.
// Options given after it override the file.
func WithConfigFile(f *ConfigFile) Option {
	return func(o *Options) {
		if f != nil {
			f.Apply(o)
		}
	}
}

// ConfigFile is a decoded TOML configuration file.
type ConfigFile = config.File

// LoadConfigFile decodes a TOML configuration file for use with WithConfigFile.
func LoadConfigFile(path string) (*ConfigFile, error) {
	return config.LoadFile(path)
}
