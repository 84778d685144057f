//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	lsptransport "github.com/wagiedev/lsp-transport-go"
)

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"processId":null,"rootUri":null,"capabilities":{}}}`

// skipIfServerNotInstalled skips the test if the error indicates texlab is not found.
func skipIfServerNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*lsptransport.ServerNotFoundError](err); ok {
		t.Skip("texlab not installed")
	}
}

type inbox struct {
	mu     sync.Mutex
	bodies []string
	notify chan struct{}
}

func newInbox() *inbox {
	return &inbox{notify: make(chan struct{}, 64)}
}

func (b *inbox) HandleMessage(body string) error {
	b.mu.Lock()
	b.bodies = append(b.bodies, body)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default:
	}

	return nil
}

// waitForID blocks until a response with the given id has arrived.
func (b *inbox) waitForID(ctx context.Context, t *testing.T, id int) map[string]json.RawMessage {
	t.Helper()

	for {
		b.mu.Lock()
		for _, body := range b.bodies {
			var msg map[string]json.RawMessage
			if json.Unmarshal([]byte(body), &msg) != nil {
				continue
			}

			var got int
			if raw, ok := msg["id"]; ok && json.Unmarshal(raw, &got) == nil && got == id {
				b.mu.Unlock()

				return msg
			}
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
		case <-ctx.Done():
			require.FailNow(t, "timed out waiting for response", "id=%d", id)
		}
	}
}

func TestTexlab_InitializeRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := lsptransport.Connect(ctx)
	skipIfServerNotInstalled(t, err)
	require.NoError(t, err)

	defer func() { _ = s.Destroy() }()

	box := newInbox()
	_, err = s.Subscribe(box)
	require.NoError(t, err)

	require.NoError(t, s.Send(ctx, initializeRequest))

	msg := box.waitForID(ctx, t, 1)
	require.Contains(t, msg, "result")

	var result struct {
		Capabilities map[string]any `json:"capabilities"`
	}

	require.NoError(t, json.Unmarshal(msg["result"], &result))
	require.NotEmpty(t, result.Capabilities)
}

func TestTexlab_UnsubscribeLastDestroys(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := lsptransport.Connect(ctx)
	skipIfServerNotInstalled(t, err)
	require.NoError(t, err)

	sub, err := s.Subscribe(newInbox())
	require.NoError(t, err)

	s.Unsubscribe(sub)
	require.Equal(t, lsptransport.StateDestroyed, s.State())

	err = s.Send(ctx, initializeRequest)
	require.ErrorIs(t, err, lsptransport.ErrSessionDestroyed)
}

func TestTexlab_WithSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := lsptransport.WithSession(ctx, func(s lsptransport.Session) error {
		box := newInbox()
		if _, err := s.Subscribe(box); err != nil {
			return err
		}

		if err := s.Send(ctx, initializeRequest); err != nil {
			return err
		}

		box.waitForID(ctx, t, 1)

		return nil
	})
	skipIfServerNotInstalled(t, err)
	require.NoError(t, err)
}
