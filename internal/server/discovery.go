package server

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/wagiedev/lsp-transport-go/internal/errors"
)

// VersionProbeTimeout is the timeout for the --version probe.
const VersionProbeTimeout = 2 * time.Second

var versionPattern = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

// Config holds configuration for server discovery.
type Config struct {
	// Name is the binary name searched in PATH and common locations.
	Name string

	// ServerPath is an explicit path that skips the search.
	ServerPath string

	// SkipVersionProbe disables the --version probe.
	SkipVersionProbe bool

	// Logger is an optional logger for discovery operations.
	Logger *slog.Logger
}

// Discoverer locates the language server binary.
type Discoverer interface {
	// Discover returns the path to the server binary or a ServerNotFoundError.
	Discover(ctx context.Context) (string, error)
}

type discoverer struct {
	cfg *Config
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a discoverer with the given configuration.
func NewDiscoverer(cfg *Config) Discoverer {
	if cfg == nil {
		cfg = &Config{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &discoverer{
		cfg: cfg,
		log: log.With("component", "discovery"),
	}
}

func (d *discoverer) Discover(ctx context.Context) (string, error) {
	d.log.Debug("Discovering language server binary", "name", d.cfg.Name)

	path, err := d.find()
	if err != nil {
		d.log.Error("Failed to find language server", "error", err)

		return "", err
	}

	d.log.Debug("Found language server binary", "path", path)

	if !d.cfg.SkipVersionProbe {
		d.probeVersion(ctx, path)
	}

	return path, nil
}

func (d *discoverer) find() (string, error) {
	if d.cfg.ServerPath != "" {
		if _, err := os.Stat(d.cfg.ServerPath); err == nil {
			return d.cfg.ServerPath, nil
		}

		return "", &errors.ServerNotFoundError{
			Name:          d.cfg.Name,
			SearchedPaths: []string{d.cfg.ServerPath},
		}
	}

	searched := make([]string, 0, 5)

	if path, err := exec.LookPath(d.cfg.Name); err == nil {
		return path, nil
	}

	searched = append(searched, "$PATH")

	for _, path := range commonPaths(d.cfg.Name) {
		searched = append(searched, path)

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	d.log.Warn("Language server not found in any searched paths", "searched_paths", searched)

	return "", &errors.ServerNotFoundError{Name: d.cfg.Name, SearchedPaths: searched}
}

func commonPaths(name string) []string {
	paths := []string{
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/usr/bin", name),
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".cargo", "bin", name),
			filepath.Join(home, ".local", "bin", name),
		)
	}

	return paths
}

// probeVersion logs the server version. Errors are ignored.
func (d *discoverer) probeVersion(ctx context.Context, path string) {
	ctx, cancel := context.WithTimeout(ctx, VersionProbeTimeout)
	defer cancel()

	//nolint:gosec // G204: the binary path comes from discovery
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		d.log.Debug("Version probe failed", "error", err)

		return
	}

	match := versionPattern.FindStringSubmatch(strings.TrimSpace(string(output)))
	if match == nil {
		d.log.Debug("Could not parse server version", "output", strings.TrimSpace(string(output)))

		return
	}

	d.log.Info("Language server version", "path", path, "version", match[1])
}
