package outbound

import (
	"encoding/json"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/lsp-transport-go/internal/frame"
)

func TestRewrite_InitializeInjectsOptions(t *testing.T) {
	c := NewComposer(nil)

	res := c.Rewrite(`{"method":"initialize","params":{}}`)

	require.Equal(t, Rewritten, res.Kind)
	require.JSONEq(t,
		`{"method":"initialize","params":{"initializationOptions":{"diagnosticsDelay":300}}}`,
		res.Message,
	)
}

func TestRewrite_PreservesOtherFields(t *testing.T) {
	c := NewComposer(nil)

	msg := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"processId":42,"rootUri":"file:///a&b<c>","capabilities":{"textDocument":{}}}}`

	res := c.Rewrite(msg)
	require.Equal(t, Rewritten, res.Kind)
	require.Contains(t, res.Message, `"rootUri":"file:///a&b<c>"`)

	var got struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Params  struct {
			ProcessID             int            `json:"processId"`
			Capabilities          map[string]any `json:"capabilities"`
			InitializationOptions map[string]any `json:"initializationOptions"`
		} `json:"params"`
	}

	require.NoError(t, json.Unmarshal([]byte(res.Message), &got))
	require.Equal(t, "2.0", got.JSONRPC)
	require.Equal(t, 1, got.ID)
	require.Equal(t, 42, got.Params.ProcessID)
	require.Contains(t, got.Params.Capabilities, "textDocument")
	require.Equal(t, map[string]any{"diagnosticsDelay": float64(300)}, got.Params.InitializationOptions)
}

func TestRewrite_MergesExistingInitializationOptions(t *testing.T) {
	c := NewComposer(nil)

	res := c.Rewrite(`{"method":"initialize","params":{"initializationOptions":{"build":{"onSave":true},"diagnosticsDelay":50}}}`)

	require.Equal(t, Rewritten, res.Kind)
	require.JSONEq(t,
		`{"method":"initialize","params":{"initializationOptions":{"build":{"onSave":true},"diagnosticsDelay":300}}}`,
		res.Message,
	)
}

func TestRewrite_ReplacesNonObjectInitializationOptions(t *testing.T) {
	c := NewComposer(nil)

	for _, existing := range []string{`null`, `"texlab"`, `[1,2]`} {
		t.Run(existing, func(t *testing.T) {
			res := c.Rewrite(`{"method":"initialize","params":{"initializationOptions":` + existing + `}}`)

			require.Equal(t, Rewritten, res.Kind)
			require.JSONEq(t,
				`{"method":"initialize","params":{"initializationOptions":{"diagnosticsDelay":300}}}`,
				res.Message,
			)
		})
	}
}

func TestRewrite_CustomOptions(t *testing.T) {
	opts := map[string]any{"diagnosticsDelay": 0, "chktex": map[string]any{"onEdit": true}}
	c := NewComposer(opts)

	// Mutating the caller's map after construction has no effect.
	opts["diagnosticsDelay"] = 999

	res := c.Rewrite(`{"method":"initialize","params":{}}`)

	require.Equal(t, Rewritten, res.Kind)
	require.JSONEq(t,
		`{"method":"initialize","params":{"initializationOptions":{"diagnosticsDelay":0,"chktex":{"onEdit":true}}}}`,
		res.Message,
	)
}

func TestRewrite_Passthrough(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "other method", message: `{"method":"shutdown"}`},
		{name: "notification with spacing", message: `{ "jsonrpc": "2.0", "method": "initialized", "params": {} }`},
		{name: "initialize without params", message: `{"method":"initialize"}`},
		{name: "initialize with null params", message: `{"method":"initialize","params":null}`},
		{name: "initialize with array params", message: `{"method":"initialize","params":[1]}`},
		{name: "method not a string", message: `{"method":7,"params":{}}`},
		{name: "response without method", message: `{"id":1,"result":null}`},
		{name: "batch array", message: `[{"method":"initialize","params":{}}]`},
		{name: "not json", message: `Content-Type: nonsense`},
		{name: "truncated json", message: `{"method":"initialize","params":{`},
		{name: "empty", message: ``},
	}

	c := NewComposer(nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Rewrite(tt.message)

			require.Equal(t, Passthrough, res.Kind)
			require.Equal(t, tt.message, res.Message, "passthrough must be byte-identical")
		})
	}
}

func TestFrame(t *testing.T) {
	c := NewComposer(nil)

	msg := `{"method":"textDocument/didChange","params":{"text":"\\section{Übersicht}"}}`
	framed := c.Frame(msg)

	require.Equal(t, "Content-Length: 77\r\n\r\n"+msg, string(framed))
	require.Equal(t, []string{msg}, slices.Collect(frame.NewBuffer().Feed(framed)))
}

func TestCompose(t *testing.T) {
	c := NewComposer(nil)

	t.Run("initialize is rewritten then framed", func(t *testing.T) {
		framed, res := c.Compose(`{"method":"initialize","params":{}}`)

		require.Equal(t, Rewritten, res.Kind)
		require.Equal(t, string(frame.Encode(res.Message)), string(framed))
	})

	t.Run("shutdown is framed unchanged", func(t *testing.T) {
		framed, res := c.Compose(`{"method":"shutdown"}`)

		require.Equal(t, Passthrough, res.Kind)
		require.Equal(t, "Content-Length: 21\r\n\r\n"+`{"method":"shutdown"}`, string(framed))
	})
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "passthrough", Passthrough.String())
	require.Equal(t, "rewritten", Rewritten.String())
}
