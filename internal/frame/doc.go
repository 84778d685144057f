// Package frame implements Content-Length framing for language server messages.
//
// A frame is a header block terminated by a blank line followed by exactly
// Content-Length bytes of UTF-8 body:
//
//	Content-Length: 17\r\n
//	\r\n
//	{"jsonrpc":"2.0"}
//
// Buffer reassembles frames from an arbitrarily chunked byte stream and
// Encode produces them. Both sides measure the body in encoded bytes, never
// in characters.
package frame
