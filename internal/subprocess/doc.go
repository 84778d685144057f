// Package subprocess provides the process-backed host bridge for a
// language server.
//
// ProcessBridge spawns the server as a child process and communicates via
// stdin/stdout. Stdout is read in raw chunks with no assumed alignment to
// message frames and published on a pubsub topic named by the bridge tag;
// each chunk registration drains its own channel on a dedicated goroutine
// so chunks reach a listener one at a time, in arrival order. Stderr is
// scanned line by line for logging and an optional callback.
package subprocess
