// Package errors defines error types for the language server transport.
//
// This package provides structured error types that wrap the different
// failure scenarios of talking to an out-of-process language server. All
// error types support unwrapping and can be checked using errors.Is,
// errors.As, and errors.AsType.
package errors
