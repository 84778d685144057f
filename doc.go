// Package lsptransport connects an editor integration to an out-of-process
// language server over its stdio byte stream.
//
// The transport turns the server's raw, arbitrarily chunked stdout into
// discrete Content-Length framed messages, fans each one out to every
// subscriber, and frames outbound messages for the server's stdin. The
// initialize request is rewritten on the way out to carry the configured
// initialization options ({"diagnosticsDelay": 300} by default).
//
// # Basic Usage
//
//	ctx := context.Background()
//	session, err := lsptransport.Connect(ctx,
//	    lsptransport.WithLogger(slog.Default()),
//	    lsptransport.WithServerName("texlab"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Destroy()
//
//	sub, _ := session.Subscribe(lsptransport.HandlerFunc(func(body string) error {
//	    fmt.Println("received:", body)
//	    return nil
//	}))
//	defer session.Unsubscribe(sub)
//
//	_ = session.Send(ctx, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
//
// # Lifecycle
//
// Sessions are single-use: Disconnected → Connecting → Connected →
// Destroyed. Unsubscribing the last subscriber destroys the session, as
// does Destroy. Use WithSession for automatic cleanup.
//
// # Error Handling
//
// Malformed inbound headers, subscriber failures and write failures are
// logged, never returned. Lifecycle misuse is returned as a sentinel:
//
//	if errors.Is(err, lsptransport.ErrSessionDestroyed) {
//	    // create a new session with New()
//	}
//	if notFound, ok := errors.AsType[*lsptransport.ServerNotFoundError](err); ok {
//	    log.Fatalf("language server not installed, searched: %v", notFound.SearchedPaths)
//	}
//
// # Custom Bridges
//
// The server process is driven through a Bridge. Inject one with
// WithBridge to run the transport over something other than a local
// subprocess, or to test without a server.
package lsptransport
