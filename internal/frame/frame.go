package frame

import (
	"bytes"
	"iter"
	"strconv"
	"strings"
)

const (
	// HeaderTerminator ends the header block of every frame.
	HeaderTerminator = "\r\n\r\n"

	// DefaultMaxContentLength bounds the declared body size accepted by a Buffer.
	// Larger declarations are treated as malformed headers.
	DefaultMaxContentLength = 64 * 1024 * 1024 // 64MB

	contentLengthField = "Content-Length"
	headerLineSep      = "\r\n"
)

var terminator = []byte(HeaderTerminator)

// Option configures a Buffer.
type Option func(*Buffer)

// WithMaxContentLength overrides DefaultMaxContentLength.
// Non-positive values keep the default.
func WithMaxContentLength(n int) Option {
	return func(b *Buffer) {
		if n > 0 {
			b.maxContentLength = n
		}
	}
}

// WithMalformedHeaderFunc registers fn to observe headers that are dropped
// because they carry no usable Content-Length.
func WithMalformedHeaderFunc(fn func(header string)) Option {
	return func(b *Buffer) {
		b.onMalformed = fn
	}
}

// Buffer accumulates raw chunks and extracts complete message bodies.
//
// A Buffer is not safe for concurrent use; it is owned by exactly one
// session and mutated only from that session's chunk handler.
type Buffer struct {
	pending          []byte
	maxContentLength int
	onMalformed      func(header string)
}

// NewBuffer creates an empty frame buffer.
func NewBuffer(opts ...Option) *Buffer {
	b := &Buffer{maxContentLength: DefaultMaxContentLength}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Feed appends chunk to the pending buffer and returns an iterator over
// every complete body now available, in arrival order.
//
// The chunk is appended immediately; bodies are extracted lazily as the
// iterator advances. Bodies left unconsumed when iteration stops stay
// buffered and are yielded by the next Feed.
func (b *Buffer) Feed(chunk []byte) iter.Seq[string] {
	b.pending = append(b.pending, chunk...)

	return func(yield func(string) bool) {
		for {
			body, ok := b.next()
			if !ok {
				return
			}

			if !yield(body) {
				return
			}
		}
	}
}

// Pending returns the number of buffered bytes not yet part of a yielded body.
func (b *Buffer) Pending() int {
	return len(b.pending)
}

// Reset drops all buffered bytes.
func (b *Buffer) Reset() {
	b.pending = nil
}

// next extracts one body, dropping any malformed headers ahead of it.
func (b *Buffer) next() (string, bool) {
	for {
		end := bytes.Index(b.pending, terminator)
		if end < 0 {
			return "", false
		}

		header := b.pending[:end]
		start := end + len(terminator)

		length, ok := parseContentLength(header)
		if !ok || length > b.maxContentLength {
			if b.onMalformed != nil {
				b.onMalformed(string(header))
			}

			b.advance(start)

			continue
		}

		if len(b.pending)-start < length {
			return "", false
		}

		body := string(b.pending[start : start+length])
		b.advance(start + length)

		return body, true
	}
}

// advance discards the first n buffered bytes.
func (b *Buffer) advance(n int) {
	if n >= len(b.pending) {
		b.pending = nil

		return
	}

	b.pending = b.pending[n:]
}

// parseContentLength finds the Content-Length field in a header block.
// Field names are matched case-insensitively and unknown fields are ignored.
func parseContentLength(header []byte) (int, bool) {
	for line := range strings.SplitSeq(string(header), headerLineSep) {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), contentLengthField) {
			continue
		}

		value = strings.TrimSpace(value)
		if value == "" || value[0] < '0' || value[0] > '9' {
			return 0, false
		}

		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, false
		}

		return n, true
	}

	return 0, false
}

// Encode frames body as "Content-Length: N\r\n\r\n" followed by body,
// where N is the UTF-8 byte length of body.
func Encode(body string) []byte {
	out := make([]byte, 0, len(contentLengthField)+len(HeaderTerminator)+len(body)+12)
	out = append(out, contentLengthField...)
	out = append(out, ": "...)
	out = strconv.AppendInt(out, int64(len(body)), 10)
	out = append(out, HeaderTerminator...)
	out = append(out, body...)

	return out
}
