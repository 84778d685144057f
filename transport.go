package lsptransport

import (
	"context"
	"fmt"

	"github.com/wagiedev/lsp-transport-go/internal/config"
	"github.com/wagiedev/lsp-transport-go/internal/frame"
	"github.com/wagiedev/lsp-transport-go/internal/router"
	"github.com/wagiedev/lsp-transport-go/internal/session"
)

// Bridge defines the host primitives a session runs on: server process
// start/stop, raw stdin writes and raw stdout chunk events.
//
// The default implementation spawns the language server as a subprocess.
// Custom bridges can be injected via WithBridge.
type Bridge = config.Bridge

// Registration is the handle returned by Bridge.SubscribeChunks.
type Registration = config.Registration

// Handler receives message bodies.
type Handler = router.Handler

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc = router.HandlerFunc

// Subscription identifies one subscribed Handler.
type Subscription = router.Subscription

// State is the lifecycle state of a Session.
type State = session.State

// Session lifecycle states.
const (
	StateDisconnected = session.StateDisconnected
	StateConnecting   = session.StateConnecting
	StateConnected    = session.StateConnected
	StateDestroyed    = session.StateDestroyed
)

// Session is one connection to a language server.
//
// Lifecycle: Sessions are single-use. After Destroy, create a new session with New().
type Session interface {
	// Connect starts the language server and registers for its output.
	// It may only be called once; a second call returns ErrSessionAlreadyConnected.
	Connect(ctx context.Context) error

	// Send rewrites and frames message and writes it to the server.
	// Write failures are logged, not returned. Returns ErrSessionNotConnected
	// or ErrSessionDestroyed on lifecycle misuse.
	Send(ctx context.Context, message string) error

	// Subscribe adds h to the subscribers. Subscribing a comparable handler
	// twice returns the existing subscription. Handlers run on the goroutine
	// delivering server output and must not block on Send.
	Subscribe(h Handler) (Subscription, error)

	// Unsubscribe removes sub. Removing the last subscriber destroys the session.
	// Unknown or already removed subscriptions are ignored.
	Unsubscribe(sub Subscription)

	// Destroy releases the listener, buffered bytes, subscribers and server.
	// It's safe to call multiple times.
	Destroy() error

	// State returns the current lifecycle state.
	State() State

	// Tag returns the identifier the session registers with its bridge.
	Tag() string
}

// Compile-time verification that the internal session implements Session.
var _ Session = (*session.Session)(nil)

// New creates a disconnected session. Call Connect to start the server.
func New(opts ...Option) Session {
	return session.New(applyOptions(opts))
}

// Connect creates a session and connects it.
func Connect(ctx context.Context, opts ...Option) (Session, error) {
	s := New(opts...)
	if err := s.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect session: %w", err)
	}

	return s, nil
}

// Encode frames body with a Content-Length header counting its UTF-8 bytes.
func Encode(body string) []byte {
	return frame.Encode(body)
}

// FrameBuffer reassembles Content-Length frames from raw chunks.
type FrameBuffer = frame.Buffer

// NewFrameBuffer creates an empty FrameBuffer for use outside a Session,
// for example when replaying a captured server stream.
func NewFrameBuffer(maxContentLength int) *FrameBuffer {
	return frame.NewBuffer(frame.WithMaxContentLength(maxContentLength))
}
