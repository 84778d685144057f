package router

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/lsp-transport-go/internal/errors"
)

// Handler receives message bodies from a Router.
//
// HandleMessage runs on the goroutine that delivers server output, one body
// at a time. It must not block for long: a handler that waits on the server,
// for example a Send that stalls on a full stdin pipe while the server is
// itself blocked writing stdout, holds up every later message.
type Handler interface {
	HandleMessage(body string) error
}

// HandlerFunc adapts a function to the Handler interface.
//
// Function values are not comparable, so subscribing the same HandlerFunc
// twice yields two subscriptions. Use a pointer-typed Handler when
// subscription must be idempotent by value.
type HandlerFunc func(body string) error

// HandleMessage calls f(body).
func (f HandlerFunc) HandleMessage(body string) error {
	return f(body)
}

// Subscription identifies one registered handler.
type Subscription struct {
	ID string
}

// IsZero reports whether the subscription was never issued.
func (s Subscription) IsZero() bool {
	return s.ID == ""
}

// Report is the outcome of one Dispatch.
type Report struct {
	// Delivered counts handlers that returned without error.
	Delivered int
	// Failures holds one entry per handler that failed, in dispatch order.
	Failures []*errors.HandlerError
}

// Err joins all handler failures, or returns nil if every handler succeeded.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}

	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}

	return stderrors.Join(errs...)
}

type entry struct {
	sub     Subscription
	handler Handler
}

// Router holds a set of subscribers and dispatches bodies to them.
// It is safe for concurrent use.
type Router struct {
	log *slog.Logger

	mu      sync.RWMutex
	entries []entry
}

// New creates an empty router.
func New(log *slog.Logger) *Router {
	return &Router{
		log: log.With("component", "router"),
	}
}

// Subscribe adds h to the subscriber set and returns its subscription.
//
// Subscribing a comparable handler that is already present returns the
// existing subscription and has no other effect. Comparability is judged
// on the dynamic value, so a struct holding a func in an interface field
// is subscribed anew each time.
func (r *Router) Subscribe(h Handler) Subscription {
	if h == nil {
		panic("router: nil handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if reflect.ValueOf(h).Comparable() {
		for _, e := range r.entries {
			if reflect.ValueOf(e.handler).Comparable() && e.handler == h {
				r.log.Debug("Handler already subscribed", "subscription_id", e.sub.ID)

				return e.sub
			}
		}
	}

	sub := Subscription{ID: ulid.Make().String()}
	r.entries = append(r.entries, entry{sub: sub, handler: h})

	r.log.Debug("Subscribed handler", "subscription_id", sub.ID, "subscribers", len(r.entries))

	return sub
}

// Unsubscribe removes sub from the subscriber set.
//
// It reports whether sub was present and how many subscribers remain.
// Removing an unknown or already removed subscription is a no-op.
func (r *Router) Unsubscribe(sub Subscription) (removed bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.IndexFunc(r.entries, func(e entry) bool { return e.sub == sub })
	if idx < 0 {
		return false, len(r.entries)
	}

	r.entries = slices.Delete(r.entries, idx, idx+1)

	r.log.Debug("Unsubscribed handler", "subscription_id", sub.ID, "subscribers", len(r.entries))

	return true, len(r.entries)
}

// Len returns the number of subscribers.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// Clear removes every subscriber.
func (r *Router) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = nil
}

// Dispatch delivers body to every current subscriber in subscription order.
//
// Handlers run on a snapshot of the subscriber set taken when Dispatch
// starts, without the router lock held, so a handler may subscribe or
// unsubscribe. Failures are logged and collected in the returned Report.
func (r *Router) Dispatch(body string) Report {
	r.mu.RLock()
	snapshot := slices.Clone(r.entries)
	r.mu.RUnlock()

	var report Report

	for _, e := range snapshot {
		if herr := invoke(e, body); herr != nil {
			r.log.Warn("Subscriber failed",
				"subscription_id", herr.SubscriptionID,
				"panicked", herr.Panicked,
				"error", herr.Err,
			)

			report.Failures = append(report.Failures, herr)

			continue
		}

		report.Delivered++
	}

	return report
}

// invoke runs one handler, converting a returned error or a panic into a HandlerError.
func invoke(e entry, body string) (herr *errors.HandlerError) {
	defer func() {
		if rec := recover(); rec != nil {
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}

			herr = &errors.HandlerError{SubscriptionID: e.sub.ID, Panicked: true, Err: err}
		}
	}()

	if err := e.handler.HandleMessage(body); err != nil {
		return &errors.HandlerError{SubscriptionID: e.sub.ID, Err: err}
	}

	return nil
}
