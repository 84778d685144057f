package lsptransport_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	lsptransport "github.com/wagiedev/lsp-transport-go"
)

// loopbackBridge feeds every framed write straight back as a stdout chunk,
// split in two to exercise reassembly.
type loopbackBridge struct {
	mu       sync.Mutex
	started  bool
	stopped  bool
	listener func([]byte)
	startErr error
}

type loopbackRegistration struct{ b *loopbackBridge }

func (r loopbackRegistration) Close() error {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()

	r.b.listener = nil

	return nil
}

func (b *loopbackBridge) StartServer(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.started = true

	return b.startErr
}

func (b *loopbackBridge) WriteStdin(_ context.Context, framed []byte) error {
	b.mu.Lock()
	fn := b.listener
	b.mu.Unlock()

	if fn != nil {
		half := len(framed) / 2
		fn(framed[:half])
		fn(framed[half:])
	}

	return nil
}

func (b *loopbackBridge) SubscribeChunks(_ string, fn func([]byte)) (lsptransport.Registration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.listener = fn

	return loopbackRegistration{b: b}, nil
}

func (b *loopbackBridge) StopServer() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true

	return nil
}

func TestConnect_Loopback(t *testing.T) {
	bridge := &loopbackBridge{}
	ctx := context.Background()

	s, err := lsptransport.Connect(ctx,
		lsptransport.WithLogger(lsptransport.NopLogger()),
		lsptransport.WithBridge(bridge),
	)
	require.NoError(t, err)
	require.Equal(t, lsptransport.StateConnected, s.State())

	var got []string

	sub, err := s.Subscribe(lsptransport.HandlerFunc(func(body string) error {
		got = append(got, body)

		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, s.Send(ctx, `{"method":"initialize","params":{}}`))
	require.NoError(t, s.Send(ctx, `{"method":"shutdown"}`))

	require.Equal(t, []string{
		`{"method":"initialize","params":{"initializationOptions":{"diagnosticsDelay":300}}}`,
		`{"method":"shutdown"}`,
	}, got)

	s.Unsubscribe(sub)
	require.Equal(t, lsptransport.StateDestroyed, s.State())
	require.True(t, bridge.stopped)
	require.ErrorIs(t, s.Send(ctx, "{}"), lsptransport.ErrSessionDestroyed)
}

func TestConnect_Failure(t *testing.T) {
	bridge := &loopbackBridge{startErr: &lsptransport.ServerNotFoundError{Name: "texlab"}}

	s, err := lsptransport.Connect(context.Background(), lsptransport.WithBridge(bridge))

	require.Nil(t, s)

	_, ok := stderrors.AsType[*lsptransport.ServerNotFoundError](err)
	require.True(t, ok)
}

func TestNew_DoubleConnect(t *testing.T) {
	s := lsptransport.New(lsptransport.WithBridge(&loopbackBridge{}))

	require.Equal(t, lsptransport.StateDisconnected, s.State())
	require.NoError(t, s.Connect(context.Background()))
	require.ErrorIs(t, s.Connect(context.Background()), lsptransport.ErrSessionAlreadyConnected)
	require.NoError(t, s.Destroy())
	require.NoError(t, s.Destroy())
}

func TestWithSession(t *testing.T) {
	bridge := &loopbackBridge{}

	var captured lsptransport.Session

	err := lsptransport.WithSession(context.Background(), func(s lsptransport.Session) error {
		captured = s
		require.Equal(t, lsptransport.StateConnected, s.State())

		return nil
	}, lsptransport.WithBridge(bridge))

	require.NoError(t, err)
	require.Equal(t, lsptransport.StateDestroyed, captured.State())
	require.True(t, bridge.stopped)
}

func TestWithSession_CallbackError(t *testing.T) {
	bridge := &loopbackBridge{}
	boom := stderrors.New("editor gave up")

	err := lsptransport.WithSession(context.Background(), func(lsptransport.Session) error {
		return boom
	}, lsptransport.WithBridge(bridge))

	require.ErrorIs(t, err, boom)
	require.True(t, bridge.stopped)
}

func TestWithSession_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := lsptransport.WithSession(ctx, func(lsptransport.Session) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	}, lsptransport.WithBridge(&loopbackBridge{}))

	require.ErrorIs(t, err, context.Canceled)
}

func TestEncodeAndFrameBuffer(t *testing.T) {
	body := `{"result":"∑ über"}`
	framed := lsptransport.Encode(body)

	buf := lsptransport.NewFrameBuffer(0)

	require.Empty(t, slices.Collect(buf.Feed(framed[:5])))
	require.Equal(t, []string{body}, slices.Collect(buf.Feed(framed[5:])))
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lspbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[initialization_options]
diagnosticsDelay = 25
`), 0o600))

	f, err := lsptransport.LoadConfigFile(path)
	require.NoError(t, err)

	bridge := &loopbackBridge{}
	s := lsptransport.New(lsptransport.WithConfigFile(f), lsptransport.WithBridge(bridge))
	require.NoError(t, s.Connect(context.Background()))

	defer s.Destroy()

	var got string

	_, err = s.Subscribe(lsptransport.HandlerFunc(func(body string) error {
		got = body

		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), `{"method":"initialize","params":{}}`))
	require.Equal(t, `{"method":"initialize","params":{"initializationOptions":{"diagnosticsDelay":25}}}`, got)
}
