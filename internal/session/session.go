package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/lsp-transport-go/internal/config"
	"github.com/wagiedev/lsp-transport-go/internal/errors"
	"github.com/wagiedev/lsp-transport-go/internal/frame"
	"github.com/wagiedev/lsp-transport-go/internal/outbound"
	"github.com/wagiedev/lsp-transport-go/internal/router"
	"github.com/wagiedev/lsp-transport-go/internal/subprocess"
)

// maxLoggedHeader bounds how much of a dropped header is logged.
const maxLoggedHeader = 256

// State is the lifecycle state of a Session.
type State int

const (
	// StateDisconnected is the initial state.
	StateDisconnected State = iota
	// StateConnecting means Connect is starting the server.
	StateConnecting
	// StateConnected means chunks are being received and Send is allowed.
	StateConnected
	// StateDestroyed is terminal.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is one connection to a language server.
type Session struct {
	log      *slog.Logger
	tag      string
	bridge   config.Bridge
	composer *outbound.Composer
	router   *router.Router

	mu    sync.Mutex // Protects state, buf and reg
	state State
	buf   *frame.Buffer
	reg   config.Registration
}

// New creates a disconnected session.
//
// If options.Bridge is nil, a subprocess bridge publishing under the
// session tag is created from the server settings in options.
func New(options *config.Options) *Session {
	if options == nil {
		options = &config.Options{}
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// A bridge that publishes under a fixed tag dictates the session tag.
	tag := ulid.Make().String()
	if tagged, ok := options.Bridge.(interface{ Tag() string }); ok {
		tag = tagged.Tag()
	}

	log = log.With("session", tag)

	s := &Session{
		log:      log.With("component", "session"),
		tag:      tag,
		bridge:   options.Bridge,
		composer: outbound.NewComposer(options.InitializationOptions),
		router:   router.New(log),
		state:    StateDisconnected,
	}

	if s.bridge == nil {
		s.bridge = subprocess.NewProcessBridge(log, tag, options)
	}

	s.buf = frame.NewBuffer(
		frame.WithMaxContentLength(options.MaxContentLength),
		frame.WithMalformedHeaderFunc(s.logMalformedHeader),
	)

	return s
}

// Tag returns the identifier the session registers with the bridge.
func (s *Session) Tag() string {
	return s.tag
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Connect starts the language server and registers for its output.
//
// Connect may only be called once. A second call returns
// ErrSessionAlreadyConnected; a call after Destroy returns
// ErrSessionDestroyed. If starting or registering fails the session is
// destroyed and the error returned.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateDestroyed:
		s.mu.Unlock()
		s.log.Error("Connect called on destroyed session")

		return errors.ErrSessionDestroyed
	case StateConnecting, StateConnected:
		s.mu.Unlock()
		s.log.Error("Connect called twice")

		return errors.ErrSessionAlreadyConnected
	}

	s.state = StateConnecting
	s.mu.Unlock()

	s.log.Debug("Connecting session")

	if err := s.bridge.StartServer(ctx); err != nil {
		s.abort()

		return fmt.Errorf("start language server: %w", err)
	}

	reg, err := s.bridge.SubscribeChunks(s.tag, s.handleChunk)
	if err != nil {
		s.abort()

		return fmt.Errorf("subscribe to server output: %w", err)
	}

	s.mu.Lock()

	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = reg.Close()

		return errors.ErrSessionDestroyed
	}

	s.reg = reg
	s.state = StateConnected
	s.mu.Unlock()

	s.log.Info("Session connected")

	return nil
}

// abort destroys a session whose Connect failed.
func (s *Session) abort() {
	if err := s.Destroy(); err != nil {
		s.log.Warn("Cleanup after failed connect", "error", err)
	}
}

// Send rewrites, frames and writes message to the server.
//
// Bridge write failures are logged and not returned: sending is
// fire-and-forget. Only lifecycle misuse is reported, as
// ErrSessionNotConnected or ErrSessionDestroyed.
func (s *Session) Send(ctx context.Context, message string) error {
	switch state := s.State(); state {
	case StateConnected:
	case StateDestroyed:
		s.log.Error("Send called on destroyed session")

		return errors.ErrSessionDestroyed
	default:
		s.log.Error("Send called before connect", "state", state.String())

		return errors.ErrSessionNotConnected
	}

	framed, res := s.composer.Compose(message)
	if res.Kind == outbound.Rewritten {
		s.log.Debug("Injected initialization options into initialize request")
	}

	if err := s.bridge.WriteStdin(ctx, framed); err != nil {
		s.log.Error("Failed to send message", "bytes", len(framed), "error", err)
	}

	return nil
}

// Subscribe adds h to the session's subscribers.
//
// Handlers run on the bridge's delivery goroutine. A handler that calls
// Send blocks that goroutine until the write completes, so it must not
// send more than the server can absorb while its own output is unread.
func (s *Session) Subscribe(h router.Handler) (router.Subscription, error) {
	if s.State() == StateDestroyed {
		s.log.Error("Subscribe called on destroyed session")

		return router.Subscription{}, errors.ErrSessionDestroyed
	}

	return s.router.Subscribe(h), nil
}

// Unsubscribe removes sub. Removing the last subscriber destroys the
// session. Unknown or already removed subscriptions are ignored.
func (s *Session) Unsubscribe(sub router.Subscription) {
	removed, remaining := s.router.Unsubscribe(sub)
	if !removed || remaining > 0 {
		return
	}

	s.log.Debug("Last subscriber removed, destroying session")

	if err := s.Destroy(); err != nil {
		s.log.Warn("Destroy after last unsubscribe", "error", err)
	}
}

// Destroy unregisters the chunk listener, drops buffered bytes, clears
// the subscriber set and stops the server. It's safe to call multiple times.
//
// A chunk already being dispatched may still reach the subscribers that
// were present when its dispatch began.
func (s *Session) Destroy() error {
	s.mu.Lock()

	if s.state == StateDestroyed {
		s.mu.Unlock()

		return nil
	}

	s.state = StateDestroyed
	reg := s.reg
	s.reg = nil
	s.buf.Reset()
	s.mu.Unlock()

	s.router.Clear()

	var errs []error

	if reg != nil {
		if err := reg.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chunk registration: %w", err))
		}
	}

	if err := s.bridge.StopServer(); err != nil {
		errs = append(errs, fmt.Errorf("stop language server: %w", err))
	}

	s.log.Info("Session destroyed")

	return stderrors.Join(errs...)
}

// handleChunk feeds one raw chunk and dispatches every completed body.
// The bridge calls it for one chunk at a time.
func (s *Session) handleChunk(chunk []byte) {
	s.mu.Lock()

	if s.state != StateConnecting && s.state != StateConnected {
		s.mu.Unlock()

		return
	}

	bodies := slices.Collect(s.buf.Feed(chunk))
	s.mu.Unlock()

	for _, body := range bodies {
		report := s.router.Dispatch(body)
		s.log.Debug("Dispatched message",
			"bytes", len(body),
			"delivered", report.Delivered,
			"failed", len(report.Failures),
		)
	}
}

func (s *Session) logMalformedHeader(header string) {
	if len(header) > maxLoggedHeader {
		header = header[:maxLoggedHeader]
	}

	s.log.Warn("Dropped frame with malformed header", "header", header)
}
