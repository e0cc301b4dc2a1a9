package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"appstore/internal/router"
)

type exchangeKey struct{}

// exchange is the request a page handler answers.
type exchange struct {
	w       http.ResponseWriter
	r       *http.Request
	written bool
}

func withExchange(ctx context.Context, w http.ResponseWriter, r *http.Request) (context.Context, *exchange) {
	ex := &exchange{w: w, r: r}
	return context.WithValue(ctx, exchangeKey{}, ex), ex
}

func exchangeFrom(ctx context.Context) (*exchange, error) {
	ex, ok := ctx.Value(exchangeKey{}).(*exchange)
	if !ok {
		return nil, errNoExchange
	}
	return ex, nil
}

var errNoExchange = errors.New("no http exchange in context")

// redirect is the guards' navigator: it answers the request with a 303 to the
// path behind location.
func redirect(ctx context.Context, location string) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}
	seeOther(ex, router.ParseLocation(location))
	return nil
}

func seeOther(ex *exchange, target string) {
	ex.written = true
	http.Redirect(ex.w, ex.r, target, http.StatusSeeOther)
}

// logInternal logs an error that can no longer be reported to the client.
func logInternal(err error) {
	slog.Error("internal_error", "error", err.Error())
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(ex *exchange, err error) {
	logInternal(err)
	ex.written = true
	http.Error(ex.w, "internal server error", http.StatusInternalServerError)
}
