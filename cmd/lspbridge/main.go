// Command lspbridge relays newline-delimited JSON-RPC messages between its
// own stdio and a Content-Length framed language server.
//
// Each line read from stdin is sent as one message; each message received
// from the server is written to stdout as one line. It exits when stdin
// closes or the server exits.
//
//	lspbridge -config lspbridge.toml < requests.jsonl
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/lsp-transport-go/internal/config"
	"github.com/wagiedev/lsp-transport-go/internal/router"
	"github.com/wagiedev/lsp-transport-go/internal/session"
	"github.com/wagiedev/lsp-transport-go/internal/subprocess"
)

// maxLineSize bounds one stdin message.
const maxLineSize = 16 * 1024 * 1024 // 16MB

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lspbridge:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	serverPath := flag.String("server", "", "explicit path to the language server binary")
	verbose := flag.Bool("v", false, "enable debug logging")

	flag.Parse()

	options := &config.Options{}
	level := slog.LevelWarn

	if *configPath != "" {
		f, err := config.LoadFile(*configPath)
		if err != nil {
			return err
		}

		f.Apply(options)

		if f.LogLevel != "" {
			if err := level.UnmarshalText([]byte(f.LogLevel)); err != nil {
				return fmt.Errorf("log_level: %w", err)
			}
		}
	}

	if *serverPath != "" {
		options.ServerPath = *serverPath
	}

	if *verbose {
		level = slog.LevelDebug
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	options.Logger = log
	options.Stderr = func(line string) { log.Debug("server stderr", "line", line) }

	bridge := subprocess.NewProcessBridge(log, ulid.Make().String(), options)
	options.Bridge = bridge

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := session.New(options)
	if err := s.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		if err := s.Destroy(); err != nil {
			log.Warn("failed to destroy session", "error", err)
		}
	}()

	var outMu sync.Mutex

	out := bufio.NewWriter(os.Stdout)

	_, err := s.Subscribe(router.HandlerFunc(func(body string) error {
		outMu.Lock()
		defer outMu.Unlock()

		if _, err := out.WriteString(body + "\n"); err != nil {
			return err
		}

		return out.Flush()
	}))
	if err != nil {
		return err
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				lines <- line
			}
		}

		scanErr <- scanner.Err()
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return <-scanErr
			}

			if err := s.Send(ctx, line); err != nil {
				return err
			}
		case <-bridge.Done():
			return bridge.ExitErr()
		case <-ctx.Done():
			return nil
		}
	}
}
