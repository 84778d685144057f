// Package session implements the transport session that connects an editor
// integration to an out-of-process language server.
//
// A Session owns one frame buffer, one router and one chunk registration
// with its host bridge:
//
//	bridge chunk → frame.Buffer.Feed → router.Dispatch → subscribers
//	Send → outbound.Composer.Compose → bridge.WriteStdin
//
// Lifecycle:
//
//	Disconnected → Connecting → Connected → Destroyed
//
// Sessions are single-use. Destroy, or unsubscribing the last subscriber,
// tears down the registration, drops buffered bytes and stops the server.
package session
