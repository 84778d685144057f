// Package outbound prepares messages for transmission to the language server.
//
// The Composer rewrites the initialize request to carry the configured
// initialization options and frames every message with a Content-Length
// header. Anything it cannot interpret is passed through untouched.
package outbound

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/wagiedev/lsp-transport-go/internal/frame"
)

const (
	// InitializeMethod is the method name of the session-initialization request.
	InitializeMethod = "initialize"

	initializationOptionsKey = "initializationOptions"
)

// DefaultInitializationOptions returns the options injected into initialize
// when none are configured.
func DefaultInitializationOptions() map[string]any {
	return map[string]any{
		"diagnosticsDelay": 300,
	}
}

// Kind tags how Rewrite treated a message.
type Kind int

const (
	// Passthrough means the message is sent exactly as given.
	Passthrough Kind = iota
	// Rewritten means the message was re-serialized with injected options.
	Rewritten
)

func (k Kind) String() string {
	switch k {
	case Rewritten:
		return "rewritten"
	default:
		return "passthrough"
	}
}

// Result is the outcome of Rewrite.
type Result struct {
	Kind    Kind
	Message string
}

// Composer rewrites and frames outbound messages.
type Composer struct {
	initOptions map[string]any
}

// NewComposer creates a composer that injects initOptions into the
// initialize request. A nil map selects DefaultInitializationOptions.
func NewComposer(initOptions map[string]any) *Composer {
	if initOptions == nil {
		initOptions = DefaultInitializationOptions()
	}

	return &Composer{initOptions: maps.Clone(initOptions)}
}

// Rewrite injects the initialization options into an initialize request.
//
// Messages that are not JSON objects, are not initialize requests, or have
// no params object are returned unchanged. When params already holds an
// initializationOptions object, its keys are kept and the configured keys
// take precedence.
func (c *Composer) Rewrite(message string) Result {
	passthrough := Result{Kind: Passthrough, Message: message}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(message), &envelope); err != nil {
		return passthrough
	}

	var method string
	if err := json.Unmarshal(envelope["method"], &method); err != nil || method != InitializeMethod {
		return passthrough
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(envelope["params"], &params); err != nil || params == nil {
		return passthrough
	}

	options := map[string]json.RawMessage{}
	if existing, ok := params[initializationOptionsKey]; ok {
		// A non-object value is replaced outright.
		_ = json.Unmarshal(existing, &options)
		if options == nil {
			options = map[string]json.RawMessage{}
		}
	}

	for key, value := range c.initOptions {
		raw, err := marshal(value)
		if err != nil {
			return passthrough
		}

		options[key] = raw
	}

	var err error

	if params[initializationOptionsKey], err = marshal(options); err != nil {
		return passthrough
	}

	if envelope["params"], err = marshal(params); err != nil {
		return passthrough
	}

	out, err := marshal(envelope)
	if err != nil {
		return passthrough
	}

	return Result{Kind: Rewritten, Message: string(out)}
}

// Frame prepends the Content-Length header to message.
func (c *Composer) Frame(message string) []byte {
	return frame.Encode(message)
}

// Compose rewrites message and frames the result.
func (c *Composer) Compose(message string) ([]byte, Result) {
	res := c.Rewrite(message)

	return c.Frame(res.Message), res
}

// marshal encodes v without HTML escaping so untouched string values keep
// their characters.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
