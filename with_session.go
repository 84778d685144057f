package lsptransport

import (
	"context"
	"fmt"
)

// WithSession manages session lifecycle with automatic cleanup.
//
// It creates and connects a session, runs fn, and destroys the session when
// fn returns. If Destroy fails, a warning is logged but does not override
// fn's error.
//
//	err := lsptransport.WithSession(ctx, func(s lsptransport.Session) error {
//	    sub, err := s.Subscribe(handler)
//	    if err != nil {
//	        return err
//	    }
//	    defer s.Unsubscribe(sub)
//	    return s.Send(ctx, initializeRequest)
//	},
//	    lsptransport.WithLogger(log),
//	)
func WithSession(ctx context.Context, fn func(Session) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log := applyOptions(opts).Logger
	if log == nil {
		log = NopLogger()
	}

	s := New(opts...)
	if err := s.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect session: %w", err)
	}

	defer func() {
		if err := s.Destroy(); err != nil {
			log.Warn("failed to destroy session", "error", err)
		}
	}()

	return fn(s)
}
