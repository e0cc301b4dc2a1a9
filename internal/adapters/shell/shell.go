// Package shell is a line-oriented terminal front-end over the shared route
// table. Navigation goes through the router's NavigationState, so guards
// redirect exactly as they do for the web, and pages paint only while their
// dispatch is still current.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"appstore/internal/adapters/blob"
	accountStore "appstore/internal/adapters/storage/account"
	appStore "appstore/internal/adapters/storage/app"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	ratingStore "appstore/internal/adapters/storage/rating"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	"appstore/internal/router"
)

// AppStore is the app and version persistence the shell needs.
type AppStore interface {
	appStore.Store
	appStore.VersionStore
}

// DispatchObserver is told which pattern each navigation resolved to.
type DispatchObserver interface {
	RouteDispatched(pattern string)
}

// Deps holds the shell's collaborators.
type Deps struct {
	Marketplaces  marketplaceStore.Store
	Apps          AppStore
	Ratings       ratingStore.Store
	Blobs         blob.Store
	Accounts      accountStore.Store
	Authenticator auth.Authenticator
	Signer        *blob.URLSigner
	Observer      DispatchObserver // optional

	// PublicURL is the web server's base URL, used in emailed reset links.
	PublicURL string

	// DownloadDir receives downloaded app files.
	DownloadDir string

	// LastEmail pre-fills "login"; Remember is called after every sign-in.
	LastEmail string
	Remember  func(email string)

	Now func() time.Time
}

// Shell reads commands, navigates the route table and paints pages to out.
type Shell struct {
	deps   Deps
	router *router.Router
	nav    *router.NavigationState
	guard  *auth.Guard
	res    *auth.Resolver
	out    *output

	mu    sync.Mutex
	token string
	email string
	list  listState
}

// New wires a Shell. It starts at "/" and does not dispatch until Run.
// PRE: every Deps field documented as a store or provider is non-nil
func New(deps Deps, out io.Writer) *Shell {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DownloadDir == "" {
		deps.DownloadDir = "."
	}
	sh := &Shell{
		deps:  deps,
		nav:   router.NewNavigationState(router.Location(routes.Root)),
		out:   &output{w: out},
		email: deps.LastEmail,
		list:  listState{Page: 1},
	}
	sh.res = auth.NewResolver(auth.ResolverDeps{
		Identities: deps.Authenticator,
		Accounts:   deps.Accounts,
		Now:        deps.Now,
	})

	p := &pages{sh: sh}
	sh.router = router.New(router.WithNavigation(sh.nav), router.WithNotFound(routes.NotFound(p)))
	navigator := auth.NavigatorFunc(sh.router.NavigateTo)
	sh.guard = auth.NewGuard(auth.GuardConfig{Resolver: sh.res, Navigator: navigator})
	routes.Register(sh.router, routes.Deps{
		Guard:     sh.guard,
		Resolver:  sh.res,
		Navigator: navigator,
		Pages:     p,
	})
	return sh
}

// Run starts the router, then executes commands from in until "quit", EOF or
// ctx ends. It returns after every in-flight dispatch has finished.
func (sh *Shell) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(sh.context(ctx))
	defer func() {
		cancel()
		sh.router.Wait()
	}()
	if err := sh.router.Start(ctx); err != nil {
		return err
	}

	lines := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !lines.Scan() {
			return lines.Err()
		}
		quit, err := sh.Execute(ctx, lines.Text())
		if err != nil {
			sh.out.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// context attaches the shell's current session token to ctx.
func (sh *Shell) context(ctx context.Context) context.Context {
	return auth.WithTokenSource(ctx, sh.currentToken)
}

func (sh *Shell) currentToken() string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.token
}

func (sh *Shell) setSession(token, email string) {
	sh.mu.Lock()
	sh.token = token
	if email != "" {
		sh.email = email
	}
	sh.mu.Unlock()
}

func (sh *Shell) lastEmail() string {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.email
}

func (sh *Shell) listQuery() listState {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.list
}

func (sh *Shell) updateList(fn func(q *listState)) {
	sh.mu.Lock()
	fn(&sh.list)
	sh.mu.Unlock()
}

// Location returns the current navigation location.
func (sh *Shell) Location() string {
	return sh.nav.Current()
}

// navigate moves to path. Navigating to the current path repaints it.
func (sh *Shell) navigate(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return sh.router.NavigateTo(ctx, router.Location(path))
}

// current returns the match for the current location.
func (sh *Shell) current() (router.Match, bool) {
	return sh.router.Match(router.ParseLocation(sh.nav.Current()))
}

// paint writes a page if ctx's dispatch is still the latest one.
func (sh *Shell) paint(ctx context.Context, pattern string, fn func(w io.Writer)) {
	router.Commit(ctx, func() {
		if sh.deps.Observer != nil {
			sh.deps.Observer.RouteDispatched(pattern)
		}
		sh.out.write(fn)
	})
}

// output serializes writes from the command loop and page paints.
type output struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *output) write(fn func(w io.Writer)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.w)
}

func (o *output) printf(format string, args ...any) {
	o.write(func(w io.Writer) { fmt.Fprintf(w, format, args...) })
}
