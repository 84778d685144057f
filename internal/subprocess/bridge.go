package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cskr/pubsub"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/lsp-transport-go/internal/config"
	"github.com/wagiedev/lsp-transport-go/internal/errors"
	"github.com/wagiedev/lsp-transport-go/internal/server"
)

const (
	// readChunkSize is the size of each raw stdout read.
	readChunkSize = 32 * 1024 // 32KB
	// chunkQueueSize is the per-registration pubsub channel capacity.
	chunkQueueSize = 64
	// maxStderrBufferSize caps the stderr kept for ProcessError reports.
	// Lines past the cap still reach the callback.
	maxStderrBufferSize = 1024 * 1024 // 1MB
	// writeAbandonTimeout bounds the wait for a write goroutine after stdin is closed.
	writeAbandonTimeout = 1 * time.Second
)

// ProcessBridge implements config.Bridge by spawning a language server subprocess.
type ProcessBridge struct {
	log            *slog.Logger
	options        *config.Options
	tag            string
	stderrCallback func(string)

	mu          sync.Mutex // Protects process state and stdin writes
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      io.ReadCloser
	stderr      io.ReadCloser
	started     bool
	stopping    bool // Whether StopServer has been called (intentional shutdown)
	stdinClosed bool

	psMu     sync.Mutex // Serializes pubsub Unsub with Shutdown
	ps       *pubsub.PubSub
	psClosed bool

	done    chan struct{}
	exitErr error
}

// Compile-time verification that ProcessBridge implements the Bridge interface.
var _ config.Bridge = (*ProcessBridge)(nil)

// NewProcessBridge creates a bridge whose stdout chunks are published under tag.
//
// The process is not started until StartServer.
func NewProcessBridge(log *slog.Logger, tag string, options *config.Options) *ProcessBridge {
	return &ProcessBridge{
		log:            log.With("component", "process_bridge", "tag", tag),
		options:        options,
		tag:            tag,
		stderrCallback: options.Stderr,
		ps:             pubsub.New(chunkQueueSize),
		done:           make(chan struct{}),
	}
}

// Tag returns the topic stdout chunks are published under.
func (b *ProcessBridge) Tag() string {
	return b.tag
}

// StartServer discovers and launches the language server.
//
// The process is not bound to ctx: it lives until StopServer. ctx only
// bounds discovery. Returns ServerNotFoundError if the binary cannot be
// located, or ServerStartError if the process fails to start.
func (b *ProcessBridge) StartServer(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopping {
		return errors.ErrBridgeStopped
	}

	if b.started {
		return errors.ErrBridgeAlreadyStarted
	}

	path, err := server.NewDiscoverer(&server.Config{
		Name:       b.options.Name(),
		ServerPath: b.options.ServerPath,
		Logger:     b.log,
	}).Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover language server: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	//nolint:gosec // G204: launching the configured language server is the purpose of this bridge
	cmd := exec.Command(path, b.options.ServerArgs...)
	cmd.Env = server.BuildEnvironment(b.options.Env)

	cmd.Dir = b.options.Cwd
	if cmd.Dir == "" {
		if cmd.Dir, err = os.Getwd(); err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	if b.stdin, err = cmd.StdinPipe(); err != nil {
		return &errors.ServerStartError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	if b.stdout, err = cmd.StdoutPipe(); err != nil {
		return &errors.ServerStartError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	if b.stderr, err = cmd.StderrPipe(); err != nil {
		return &errors.ServerStartError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	b.log.Debug("Starting language server", "path", path, "args", b.options.ServerArgs, "cwd", cmd.Dir)

	if err := cmd.Start(); err != nil {
		b.log.Error("Failed to start language server", "error", err)

		return &errors.ServerStartError{Err: fmt.Errorf("start process: %w", err)}
	}

	b.cmd = cmd
	b.started = true

	b.log.Info("Language server started", "pid", cmd.Process.Pid)

	go b.run()

	return nil
}

// run pumps stdout and stderr until both close, then reaps the process
// and shuts the pubsub down.
func (b *ProcessBridge) run() {
	defer close(b.done)
	defer b.shutdownPubSub()

	var (
		stderrMu  sync.Mutex
		stderrBuf strings.Builder
	)

	var eg errgroup.Group

	eg.Go(b.pumpStdout)
	eg.Go(func() error {
		scanner := bufio.NewScanner(b.stderr)
		for scanner.Scan() {
			line := scanner.Text()

			stderrMu.Lock()
			if stderrBuf.Len() < maxStderrBufferSize {
				if stderrBuf.Len() > 0 {
					stderrBuf.WriteString("\n")
				}

				stderrBuf.WriteString(line)
			}
			stderrMu.Unlock()

			if b.stderrCallback != nil {
				b.stderrCallback(line)
			}
		}

		return scanner.Err()
	})

	if err := eg.Wait(); err != nil {
		b.log.Debug("Pipe read ended with error", "error", err)
	}

	err := b.cmd.Wait()

	b.mu.Lock()
	stopping := b.stopping
	b.mu.Unlock()

	switch {
	case stopping:
		b.log.Debug("Language server terminated during shutdown")
	case err != nil:
		exitCode := -1
		if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
			exitCode = exitErr.ExitCode()
		}

		stderrMu.Lock()
		stderrOutput := strings.TrimSpace(stderrBuf.String())
		stderrMu.Unlock()

		b.exitErr = &errors.ProcessError{ExitCode: exitCode, Stderr: stderrOutput, Err: err}
		b.log.Error("Language server exited with error", "exit_code", exitCode, "stderr", stderrOutput)
	default:
		b.log.Info("Language server exited")
	}
}

// pumpStdout publishes raw stdout reads verbatim. Frame boundaries are
// not considered here.
func (b *ProcessBridge) pumpStdout() error {
	buf := make([]byte, readChunkSize)
	chunks := 0

	for {
		n, err := b.stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			chunks++
			b.log.Debug("Received stdout chunk", "bytes", n, "chunk_count", chunks)

			b.ps.Pub(chunk, b.tag)
		}

		if err != nil {
			if stderrors.Is(err, io.EOF) || stderrors.Is(err, os.ErrClosed) {
				return nil
			}

			return fmt.Errorf("read stdout: %w", err)
		}
	}
}

// SubscribeChunks registers fn for stdout chunks published under tag.
//
// Chunks published before the registration are not replayed.
func (b *ProcessBridge) SubscribeChunks(tag string, fn func(chunk []byte)) (config.Registration, error) {
	b.psMu.Lock()
	defer b.psMu.Unlock()

	if b.psClosed {
		return nil, errors.ErrBridgeStopped
	}

	reg := &registration{
		bridge: b,
		ch:     b.ps.Sub(tag),
		done:   make(chan struct{}),
	}

	go reg.drain(fn)

	b.log.Debug("Registered chunk listener", "listener_tag", tag)

	return reg, nil
}

// WriteStdin writes a framed message to the server's stdin.
//
// Writes are serialized. If ctx is cancelled while a write is blocked,
// stdin is closed to unblock it and later calls return ErrStdinClosed.
func (b *ProcessBridge) WriteStdin(ctx context.Context, framed []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stdin == nil {
		return errors.ErrBridgeNotStarted
	}

	if b.stdinClosed {
		return errors.ErrStdinClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)

	go func() {
		_, err := b.stdin.Write(framed)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return &errors.WriteError{Bytes: len(framed), Err: err}
		}

		b.log.Debug("Wrote message to stdin", "bytes", len(framed))

		return nil

	case <-ctx.Done():
		b.log.Debug("Context cancelled during write, closing stdin")

		_ = b.stdin.Close()
		b.stdinClosed = true

		select {
		case <-done:
		case <-time.After(writeAbandonTimeout):
			b.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// StopServer kills the server process. It does not wait for the exit;
// use Done for that. Chunk registrations are closed once stdout drains.
// It's safe to call multiple times.
func (b *ProcessBridge) StopServer() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopping {
		return nil
	}

	b.stopping = true
	b.stdinClosed = true

	if !b.started {
		b.shutdownPubSub()

		return nil
	}

	b.log.Debug("Killing language server", "pid", b.cmd.Process.Pid)

	if err := b.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill language server (pid %d): %w", b.cmd.Process.Pid, err)
	}

	return nil
}

// shutdownPubSub closes every registration channel. It runs exactly once,
// after the stdout pump has stopped publishing.
func (b *ProcessBridge) shutdownPubSub() {
	b.psMu.Lock()
	defer b.psMu.Unlock()

	if b.psClosed {
		return
	}

	b.psClosed = true
	b.ps.Shutdown()
}

// Done returns a channel closed once the server process has exited and
// its pipes are drained. It never closes if the server was never started.
func (b *ProcessBridge) Done() <-chan struct{} {
	return b.done
}

// ExitErr returns the ProcessError of an unexpected exit.
// It is only meaningful after Done is closed.
func (b *ProcessBridge) ExitErr() error {
	select {
	case <-b.done:
		return b.exitErr
	default:
		return nil
	}
}

// registration delivers one subscriber's chunks on its own goroutine.
type registration struct {
	bridge *ProcessBridge
	ch     chan interface{}
	closed atomic.Bool
	done   chan struct{}
}

func (r *registration) drain(fn func([]byte)) {
	defer close(r.done)

	// The channel must be drained until pubsub closes it, even after Close.
	for msg := range r.ch {
		if r.closed.Load() {
			continue
		}

		if chunk, ok := msg.([]byte); ok {
			fn(chunk)
		}
	}
}

// Close stops delivery. It may be called from inside the chunk callback.
func (r *registration) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Unsub must not run on the draining goroutine.
	go func() {
		r.bridge.psMu.Lock()
		defer r.bridge.psMu.Unlock()

		if !r.bridge.psClosed {
			r.bridge.ps.Unsub(r.ch)
		}
	}()

	return nil
}
