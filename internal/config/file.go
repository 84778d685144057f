package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// File is the on-disk configuration read by the lspbridge command.
//
//	[server]
//	name = "texlab"
//	args = ["-vvvv"]
//	cwd = "/home/me/thesis"
//
//	[server.env]
//	RUST_BACKTRACE = "1"
//
//	[initialization_options]
//	diagnosticsDelay = 300
type File struct {
	Server                ServerFile     `toml:"server"`
	InitializationOptions map[string]any `toml:"initialization_options"`
	MaxContentLength      int            `toml:"max_content_length"`
	LogLevel              string         `toml:"log_level"`
}

// ServerFile holds the [server] table.
type ServerFile struct {
	Name string            `toml:"name"`
	Path string            `toml:"path"`
	Args []string          `toml:"args"`
	Cwd  string            `toml:"cwd"`
	Env  map[string]string `toml:"env"`
}

// LoadFile decodes a TOML configuration file.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadFile(path string) (*File, error) {
	var f File

	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode config %s: unknown keys %v", path, undecoded)
	}

	return &f, nil
}

// Apply copies the file settings onto o. Empty fields leave o unchanged.
func (f *File) Apply(o *Options) {
	if f.Server.Name != "" {
		o.ServerName = f.Server.Name
	}

	if f.Server.Path != "" {
		o.ServerPath = f.Server.Path
	}

	if len(f.Server.Args) > 0 {
		o.ServerArgs = f.Server.Args
	}

	if f.Server.Cwd != "" {
		o.Cwd = f.Server.Cwd
	}

	if len(f.Server.Env) > 0 {
		o.Env = f.Server.Env
	}

	if f.InitializationOptions != nil {
		o.InitializationOptions = f.InitializationOptions
	}

	if f.MaxContentLength > 0 {
		o.MaxContentLength = f.MaxContentLength
	}
}
