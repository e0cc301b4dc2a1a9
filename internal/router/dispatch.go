package router

import (
	"context"
	"errors"
	"log/slog"
)

type ticketKey struct{}

// ErrSuperseded is returned by NavigateTo when called from a dispatch that a
// newer navigation has already replaced. The location is left untouched.
var ErrSuperseded = errors.New("navigation superseded")

// ticket tags a dispatch context with the sequence number it was started with
// and the navigation version it is rendering.
type ticket struct {
	router  *Router
	seq     uint64
	version uint64
}

// Dispatch runs the handler for location as a new navigation. Starting a
// dispatch cancels the context of the one before it, and from then on the
// older dispatch is no longer current (see IsCurrent and Commit).
func (r *Router) Dispatch(ctx context.Context, location string) error {
	dctx, done := r.begin(ctx, r.nav.Version())
	defer done()
	return r.run(dctx, location)
}

// NavigateTo moves to target. When target is already the current location the
// handler is re-run synchronously, so following the same link twice still
// refreshes the page. Otherwise the location changes and the dispatch arrives
// through the navigation event queue.
//
// Called from inside a dispatch, NavigateTo only moves while that dispatch is
// still current, checked atomically against the location; a superseded
// dispatch gets ErrSuperseded and the newer navigation stands.
func (r *Router) NavigateTo(ctx context.Context, target string) error {
	t, ok := ctx.Value(ticketKey{}).(ticket)
	if !ok || t.router != r {
		if r.nav.Set(target) {
			return nil
		}
		return r.Dispatch(ctx, target)
	}
	if !IsCurrent(ctx) {
		return ErrSuperseded
	}
	moved, stale := r.nav.SetIfVersion(target, t.version)
	if stale {
		return ErrSuperseded
	}
	if moved {
		return nil
	}
	return r.Dispatch(ctx, target)
}

// Start subscribes to navigation events, dispatches the current location once
// synchronously, and then dispatches every event until ctx ends.
// Handler errors from event dispatches are logged, not returned.
func (r *Router) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	r.cancelMu.Lock()
	r.root = ctx
	r.cancelMu.Unlock()

	sub := r.nav.Subscribe()
	initial := r.nav.Current()
	if err := r.Dispatch(ctx, initial); err != nil {
		logHandlerError(initial, err)
	}

	r.inflight.Add(1)
	go r.listen(ctx, sub)
	return nil
}

// Wait blocks until the listener has stopped and every dispatch it started
// has returned.
func (r *Router) Wait() {
	r.inflight.Wait()
}

func (r *Router) listen(ctx context.Context, sub *Subscription) {
	defer r.inflight.Done()
	defer sub.Close()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		// Sequence numbers are taken here, in event order, so a slow handler
		// never outranks a later navigation.
		dctx, done := r.begin(ctx, ev.Version)
		r.inflight.Add(1)
		go func(location string) {
			defer r.inflight.Done()
			defer done()
			if err := r.run(dctx, location); err != nil {
				logHandlerError(location, err)
			}
		}(ev.Location)
	}
}

func (r *Router) run(ctx context.Context, location string) error {
	path := ParseLocation(location)
	m, ok := r.Match(path)
	if !ok {
		return r.handleNotFound(ctx, path)
	}
	return m.Handler(ctx, m.Params)
}

// begin starts a sequenced dispatch. A dispatch nested inside another (a
// handler navigating to its own location) does not inherit the parent's
// cancellation, since starting it cancels the parent.
func (r *Router) begin(parent context.Context, version uint64) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))

	var stops []func() bool
	if _, nested := parent.Value(ticketKey{}).(ticket); !nested {
		stops = append(stops, context.AfterFunc(parent, cancel))
	}

	r.cancelMu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	seq := r.seq.Add(1)
	r.cancel = cancel
	root := r.root
	r.cancelMu.Unlock()

	if root != nil {
		stops = append(stops, context.AfterFunc(root, cancel))
	}

	ctx = context.WithValue(ctx, ticketKey{}, ticket{router: r, seq: seq, version: version})
	return ctx, func() {
		for _, stop := range stops {
			stop()
		}
		r.cancelMu.Lock()
		if r.seq.Load() == seq {
			r.cancel = nil
		}
		r.cancelMu.Unlock()
		cancel()
	}
}

// IsCurrent reports whether ctx belongs to the latest sequenced dispatch of
// its router and the location has not moved since it began. Contexts that
// carry no dispatch are current until cancelled.
func IsCurrent(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	t, ok := ctx.Value(ticketKey{}).(ticket)
	if !ok {
		return true
	}
	return t.router.seq.Load() == t.seq && t.router.nav.Version() == t.version
}

// Commit runs fn only if ctx is still current, serialized against every other
// commit on the same router. It reports whether fn ran.
func Commit(ctx context.Context, fn func()) bool {
	t, ok := ctx.Value(ticketKey{}).(ticket)
	if !ok {
		if ctx.Err() != nil {
			return false
		}
		fn()
		return true
	}
	t.router.commitMu.Lock()
	defer t.router.commitMu.Unlock()
	if !IsCurrent(ctx) {
		slog.Debug("stale_render_discarded", "seq", t.seq)
		return false
	}
	fn()
	return true
}

func logHandlerError(location string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded) {
		return
	}
	slog.Error("route_handler_failed", "location", location, "error", err)
}
