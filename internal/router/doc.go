// Package router fans extracted message bodies out to subscribers.
//
// Subscribers are held as a set in subscription order. Dispatch delivers a
// body to every subscriber present when the dispatch starts; a subscriber
// that returns an error or panics is isolated from the rest and reported in
// the dispatch Report instead of being propagated.
package router
