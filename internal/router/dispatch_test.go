package router

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

func receive[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

// TestNavigateTo_SameLocationRedispatchesSynchronously verifies an unchanged
// target re-runs the handler before NavigateTo returns, without moving.
func TestNavigateTo_SameLocationRedispatchesSynchronously(t *testing.T) {
	var calls atomic.Int32
	nav := NewNavigationState("#/marketplaces")
	r := New(WithNavigation(nav))
	r.Register("/marketplaces", func(context.Context, Params) error {
		calls.Add(1)
		return nil
	})
	sub := nav.Subscribe()
	defer sub.Close()

	if err := r.NavigateTo(context.Background(), "#/marketplaces"); err != nil {
		t.Fatalf("NavigateTo: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if sub.Pending() != 0 {
		t.Error("same-location navigation must not queue an event")
	}
	if nav.Current() != "#/marketplaces" {
		t.Errorf("current = %q", nav.Current())
	}
}

// TestNavigateTo_NewLocationDispatchesAsynchronously verifies a changed target
// moves the location immediately and the handler runs later via the event queue.
func TestNavigateTo_NewLocationDispatchesAsynchronously(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate := make(chan struct{})
	started := make(chan Params, 1)
	nav := NewNavigationState("#/login")
	r := New(WithNavigation(nav))
	r.Register("/login", noop)
	r.Register("/app/:id", func(_ context.Context, p Params) error {
		started <- p
		<-gate
		return nil
	})
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := r.NavigateTo(ctx, "#/app/7"); err != nil {
		t.Fatalf("NavigateTo: %v", err)
	}
	if nav.Current() != "#/app/7" {
		t.Errorf("current = %q, want #/app/7", nav.Current())
	}
	// NavigateTo has returned while the handler is still blocked on gate.
	p := receive(t, started, "app handler")
	if p["id"] != "7" {
		t.Errorf("id = %q, want 7", p["id"])
	}
	close(gate)
	cancel()
	r.Wait()
}

// TestStart_DispatchesCurrentLocationImmediately verifies the initial view renders before Start returns.
func TestStart_DispatchesCurrentLocationImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rendered atomic.Bool
	r := New(WithNavigation(NewNavigationState("#/login")))
	r.Register("/login", func(context.Context, Params) error {
		rendered.Store(true)
		return nil
	})
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !rendered.Load() {
		t.Error("initial location was not dispatched synchronously")
	}
	if err := r.Start(ctx); err != ErrAlreadyStarted {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	cancel()
	r.Wait()
}

// TestStart_EmptyLocationIsRoot verifies an empty location dispatches "/".
func TestStart_EmptyLocationIsRoot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var root atomic.Bool
	r := New()
	r.Register("/", func(context.Context, Params) error {
		root.Store(true)
		return nil
	})
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !root.Load() {
		t.Error("root handler not dispatched")
	}
	cancel()
	r.Wait()
}

// TestStart_UnmatchedRendersNotFound verifies unmatched events reach the fallback.
func TestStart_UnmatchedRendersNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	missed := make(chan string, 2)
	nav := NewNavigationState("#/login")
	r := New(WithNavigation(nav), WithNotFound(func(_ context.Context, path string) error {
		missed <- path
		return nil
	}))
	r.Register("/login", noop)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nav.Set("#/nowhere")
	if got := receive(t, missed, "not-found"); got != "/nowhere" {
		t.Errorf("not-found path = %q", got)
	}
	cancel()
	r.Wait()
}

// TestDispatch_NewerNavigationSupersedesSlowHandler verifies a slow handler's
// render is discarded once a newer navigation has started.
func TestDispatch_NewerNavigationSupersedesSlowHandler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		shown []string
	)
	show := func(page string) func() {
		return func() {
			mu.Lock()
			shown = append(shown, page)
			mu.Unlock()
		}
	}

	slowStarted := make(chan context.Context, 1)
	release := make(chan struct{})
	slowCommitted := make(chan bool, 1)
	fastDone := make(chan struct{}, 1)

	nav := NewNavigationState("#/start")
	r := New(WithNavigation(nav))
	r.Register("/start", noop)
	r.Register("/slow", func(ctx context.Context, _ Params) error {
		slowStarted <- ctx
		<-release
		slowCommitted <- Commit(ctx, show("slow"))
		return nil
	})
	r.Register("/fast", func(ctx context.Context, _ Params) error {
		Commit(ctx, show("fast"))
		fastDone <- struct{}{}
		return nil
	})
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	nav.Set("#/slow")
	slowCtx := receive(t, slowStarted, "slow handler")
	if !IsCurrent(slowCtx) {
		t.Error("slow dispatch should be current before the next navigation")
	}

	nav.Set("#/fast")
	receive(t, fastDone, "fast handler")
	if IsCurrent(slowCtx) {
		t.Error("slow dispatch still current after a newer navigation")
	}
	if slowCtx.Err() == nil {
		t.Error("slow dispatch context was not cancelled")
	}

	close(release)
	if committed := receive(t, slowCommitted, "slow commit"); committed {
		t.Error("stale render was committed")
	}

	cancel()
	r.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(shown) != 1 || shown[0] != "fast" {
		t.Errorf("shown = %v, want [fast]", shown)
	}
}

// TestDispatch_NestedSameLocationRedispatch verifies a handler can refresh its
// own location and the nested dispatch is the one left current.
func TestDispatch_NestedSameLocationRedispatch(t *testing.T) {
	var calls atomic.Int32
	var outerCurrent, innerCurrent atomic.Bool
	nav := NewNavigationState("#/page")
	r := New(WithNavigation(nav))
	r.Register("/page", func(ctx context.Context, _ Params) error {
		n := calls.Add(1)
		if n == 1 {
			if err := r.NavigateTo(ctx, "#/page"); err != nil {
				return err
			}
			outerCurrent.Store(IsCurrent(ctx))
			return nil
		}
		innerCurrent.Store(IsCurrent(ctx))
		return nil
	})

	if err := r.Dispatch(context.Background(), nav.Current()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if !innerCurrent.Load() {
		t.Error("nested dispatch should have been current while it ran")
	}
	if outerCurrent.Load() {
		t.Error("outer dispatch should be superseded by the nested one")
	}
}

// TestCommit_WithoutDispatchAlwaysRuns verifies request-scoped contexts commit unconditionally.
func TestCommit_WithoutDispatchAlwaysRuns(t *testing.T) {
	ran := false
	if !Commit(context.Background(), func() { ran = true }) || !ran {
		t.Error("Commit without a dispatch ticket should run fn")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Commit(ctx, func() {}) {
		t.Error("Commit on a cancelled context should not run fn")
	}
}

// TestNavigateTo_SupersededDispatchCannotRedirect verifies a dispatch that a
// newer navigation cancelled cannot move the location afterwards.
func TestNavigateTo_SupersededDispatchCannotRedirect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		shown []string
	)
	show := func(page string) func() {
		return func() {
			mu.Lock()
			shown = append(shown, page)
			mu.Unlock()
		}
	}

	adminStarted := make(chan struct{}, 1)
	redirectErr := make(chan error, 1)
	fastDone := make(chan struct{}, 1)

	nav := NewNavigationState("#/home")
	r := New(WithNavigation(nav))
	r.Register("/home", func(ctx context.Context, _ Params) error {
		Commit(ctx, show("home"))
		return nil
	})
	r.Register("/admin", func(ctx context.Context, _ Params) error {
		adminStarted <- struct{}{}
		// A lookup that honours cancellation, then the fallback redirect.
		<-ctx.Done()
		err := r.NavigateTo(ctx, "#/landing")
		redirectErr <- err
		return err
	})
	r.Register("/landing", func(ctx context.Context, _ Params) error {
		Commit(ctx, show("landing"))
		return nil
	})
	r.Register("/fast", func(ctx context.Context, _ Params) error {
		Commit(ctx, show("fast"))
		fastDone <- struct{}{}
		return nil
	})
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := r.NavigateTo(context.Background(), "#/admin"); err != nil {
		t.Fatalf("NavigateTo admin: %v", err)
	}
	receive(t, adminStarted, "admin handler")
	if err := r.NavigateTo(context.Background(), "#/fast"); err != nil {
		t.Fatalf("NavigateTo fast: %v", err)
	}

	if err := receive(t, redirectErr, "stale redirect"); err != ErrSuperseded {
		t.Errorf("stale NavigateTo = %v, want ErrSuperseded", err)
	}
	receive(t, fastDone, "fast handler")
	if nav.Current() != "#/fast" {
		t.Errorf("current = %q, want #/fast", nav.Current())
	}

	cancel()
	r.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(shown) != 2 || shown[0] != "home" || shown[1] != "fast" {
		t.Errorf("shown = %v, want [home fast]", shown)
	}
}

// TestNavigateTo_LocationMovedDuringDispatch verifies a dispatch whose
// location changed underneath it is stale even before its context is
// cancelled, so the newer location stands.
func TestNavigateTo_LocationMovedDuringDispatch(t *testing.T) {
	nav := NewNavigationState("#/a")
	r := New(WithNavigation(nav))
	var navErr error
	var current bool
	r.Register("/a", func(ctx context.Context, _ Params) error {
		nav.Set("#/b")
		current = IsCurrent(ctx)
		navErr = r.NavigateTo(ctx, "#/c")
		return nil
	})

	if err := r.Dispatch(context.Background(), nav.Current()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if current {
		t.Error("dispatch still current after the location moved")
	}
	if navErr != ErrSuperseded {
		t.Errorf("NavigateTo = %v, want ErrSuperseded", navErr)
	}
	if nav.Current() != "#/b" {
		t.Errorf("current = %q, want #/b", nav.Current())
	}
}

// TestSetIfVersion verifies the conditional set only applies at the expected version.
func TestSetIfVersion(t *testing.T) {
	nav := NewNavigationState("#/a")
	v := nav.Version()
	if moved, stale := nav.SetIfVersion("#/b", v); !moved || stale {
		t.Fatalf("SetIfVersion = %v, %v, want moved", moved, stale)
	}
	if moved, stale := nav.SetIfVersion("#/c", v); moved || !stale {
		t.Errorf("SetIfVersion at old version = %v, %v, want stale", moved, stale)
	}
	if moved, stale := nav.SetIfVersion("#/b", nav.Version()); moved || stale {
		t.Errorf("SetIfVersion same location = %v, %v, want no-op", moved, stale)
	}
	if nav.Current() != "#/b" {
		t.Errorf("current = %q, want #/b", nav.Current())
	}
}
