package web

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"appstore/internal/adapters/blob"
	"appstore/internal/adapters/http/middleware"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	"appstore/internal/application/orchestrators"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	domainApp "appstore/internal/domain/app"
	domainMarketplace "appstore/internal/domain/marketplace"
	domainRating "appstore/internal/domain/rating"
	"appstore/internal/router"
)

// maxMemory is how much of a multipart form is kept in memory.
const maxMemory = 32 << 20

// Errors a form can show back to the user. Anything else is a 500.
var (
	authFormErrors = []error{
		auth.ErrInvalidCredentials,
		auth.ErrEmailTaken,
		auth.ErrWeakPassword,
		auth.ErrInvalidEmail,
		auth.ErrResetTokenInvalid,
		orchestrators.ErrPasswordMismatch,
	}
	appFormErrors = []error{
		domainApp.ErrEmptyName,
		domainApp.ErrNameTooLong,
		domainApp.ErrEmptyCategory,
		domainApp.ErrDescriptionTooLong,
		orchestrators.ErrUnknownCategory,
		orchestrators.ErrEmptyUpload,
	}
	versionFormErrors = []error{
		domainApp.ErrEmptyVersion,
	}
	marketplaceFormErrors = []error{
		domainMarketplace.ErrEmptyName,
		domainMarketplace.ErrNameTooLong,
		domainMarketplace.ErrEmptySlug,
		domainMarketplace.ErrInvalidSlug,
		domainMarketplace.ErrDescriptionTooLong,
		marketplaceStore.ErrSlugTaken,
	}
	ratingFormErrors = []error{
		domainRating.ErrScoreOutOfRange,
		domainRating.ErrCommentTooLong,
	}
	errNoAccount = errors.New("account unavailable")
)

func isOneOf(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// action is a form handler body. A returned error becomes a 500.
type action func(ctx context.Context, ex *exchange) error

// serve runs a form handler with the request bound to its context.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, fn action) {
	if err := r.ParseForm(); err != nil {
		if tooLarge(err) {
			http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	ctx, ex := withExchange(r.Context(), w, r)
	if err := fn(ctx, ex); err != nil {
		if ex.written {
			logInternal(err)
			return
		}
		internalError(ex, err)
	}
}

// signedIn runs fn behind the authenticated guard.
func (s *Server) signedIn(fn func(ctx context.Context, ex *exchange, sess auth.Session) error) action {
	return func(ctx context.Context, ex *exchange) error {
		_, err := s.guard.RequireAuthenticated(ctx, func(ctx context.Context, sess auth.Session) error {
			return fn(ctx, ex, sess)
		})
		return err
	}
}

// adminOnly runs fn behind the admin guard.
func (s *Server) adminOnly(fn func(ctx context.Context, ex *exchange, sess auth.Session) error) action {
	return func(ctx context.Context, ex *exchange) error {
		_, err := s.guard.RequireAdmin(ctx, func(ctx context.Context, sess auth.Session) error {
			return fn(ctx, ex, sess)
		})
		return err
	}
}

// handleSignIn handles POST /login
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, ex *exchange) error {
		email := strings.TrimSpace(r.FormValue("email"))
		res, err := orchestrators.ExecuteSignIn(ctx, orchestrators.SignInInput{
			Email:    email,
			Password: r.FormValue("password"),
		}, orchestrators.SignInDeps{Authenticator: s.authn, Resolver: s.res})
		if isOneOf(err, authFormErrors) {
			return s.show(ctx, http.StatusUnauthorized, "login.html", page{
				Title: "Sign in",
				Error: err.Error(),
				Data:  authForm{Email: email},
			})
		}
		if err != nil {
			return err
		}
		s.cookies.SetSessionCookie(w, res.Token.Value, res.Token.ExpiresAt)
		seeOther(ex, router.ParseLocation(res.Landing))
		return nil
	})
}

// handleSignUp handles POST /signup
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, ex *exchange) error {
		form := authForm{
			Email:    strings.TrimSpace(r.FormValue("email")),
			FullName: strings.TrimSpace(r.FormValue("full_name")),
		}
		if r.FormValue("password") != r.FormValue("confirm") {
			return s.show(ctx, http.StatusUnprocessableEntity, "signup.html", page{
				Title: "Create account",
				Error: orchestrators.ErrPasswordMismatch.Error(),
				Data:  form,
			})
		}
		_, err := orchestrators.ExecuteSignUp(ctx, orchestrators.SignUpInput{
			Email:    form.Email,
			Password: r.FormValue("password"),
			FullName: form.FullName,
		}, orchestrators.SignUpDeps{Authenticator: s.authn, Accounts: s.stores.Accounts, Now: s.now})
		switch {
		case isOneOf(err, authFormErrors):
			return s.show(ctx, http.StatusUnprocessableEntity, "signup.html", page{
				Title: "Create account",
				Error: err.Error(),
				Data:  form,
			})
		case errors.Is(err, auth.ErrAccountProvision):
			// The resolver provisions the account on first sign-in.
			slog.Warn("auth_event", "event", "sign_up_account_deferred", "error", err)
		case err != nil:
			return err
		}
		seeOther(ex, withNotice(routes.Login, "registered"))
		return nil
	})
}

// handleSignOut handles POST /logout
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, ex *exchange) error {
		if tok := middleware.SessionToken(r); tok != "" {
			if err := orchestrators.ExecuteSignOut(ctx, tok, s.authn); err != nil {
				slog.Warn("auth_event", "event", "sign_out_failed", "error", err)
			}
		}
		s.cookies.ClearSessionCookie(w)
		seeOther(ex, withNotice(routes.Login, "signed_out"))
		return nil
	})
}

// handleResetPassword handles POST /reset-password. A form carrying a token
// sets the new password; otherwise a reset link is requested.
func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, func(ctx context.Context, ex *exchange) error {
		form := authForm{
			Email: strings.TrimSpace(r.FormValue("email")),
			Token: r.FormValue("token"),
		}
		var err error
		next := withNotice(routes.ResetPassword, "reset_sent")
		if form.Token != "" {
			err = orchestrators.ExecuteCompletePasswordReset(ctx, orchestrators.CompletePasswordResetInput{
				Token:       form.Token,
				NewPassword: r.FormValue("password"),
				Confirm:     r.FormValue("confirm"),
			}, s.authn)
			next = withNotice(routes.Login, "reset_done")
		} else {
			err = orchestrators.ExecuteRequestPasswordReset(ctx, orchestrators.RequestPasswordResetInput{
				Email:       form.Email,
				RedirectURL: strings.TrimSuffix(s.cfg.PublicURL, "/") + routes.ResetPassword,
			}, s.authn)
		}
		if isOneOf(err, authFormErrors) {
			return s.show(ctx, http.StatusUnprocessableEntity, "reset_password.html", page{
				Title: "Reset password",
				Error: err.Error(),
				Data:  form,
			})
		}
		if err != nil {
			return err
		}
		seeOther(ex, next)
		return nil
	})
}

// handleRateApp handles POST /app/{id}/ratings
func (s *Server) handleRateApp(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.signedIn(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		if sess.Account == nil {
			return errNoAccount
		}
		id := r.PathValue("id")
		score, _ := strconv.Atoi(r.FormValue("score"))
		_, err := orchestrators.ExecuteRateApp(ctx, orchestrators.RateAppInput{
			AppID:     id,
			AccountID: sess.Account.ID,
			Score:     score,
			Comment:   r.FormValue("comment"),
		}, orchestrators.RateAppDeps{Ratings: s.stores.Ratings, Apps: s.stores.Apps, Now: s.now})
		switch {
		case isOneOf(err, ratingFormErrors):
			return s.showApp(ctx, sess, id, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domainApp.ErrNotFound):
			return s.pagesReg.notFound(ctx, sess)
		case err != nil:
			return err
		}
		seeOther(ex, withNotice(routes.Build(routes.App, id), "rated"))
		return nil
	}))
}

// handleDownload handles POST /app/{id}/download by redirecting to a signed URL.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.signedIn(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		id := r.PathValue("id")
		res, err := orchestrators.ExecuteDownloadApp(ctx, id, orchestrators.DownloadAppDeps{
			Apps:     s.stores.Apps,
			Signer:   s.signer,
			Observer: s.metrics,
		})
		switch {
		case errors.Is(err, orchestrators.ErrNoFile):
			return s.showApp(ctx, sess, id, http.StatusConflict, err.Error())
		case errors.Is(err, domainApp.ErrNotFound):
			return s.pagesReg.notFound(ctx, sess)
		case err != nil:
			return err
		}
		seeOther(ex, res.URL)
		return nil
	}))
}

// handleFile serves GET /files/{key...} for a valid signed token.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	name, err := s.signer.Verify(key, r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, blob.ErrBadSignature.Error(), http.StatusForbidden)
		return
	}
	obj, err := s.stores.Blobs.Open(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		logInternal(err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	if name == "" {
		name = path.Base(key)
	}
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, obj.ModTime, obj)
}

// appInput reads the app form fields.
func appInput(r *http.Request) orchestrators.SaveAppInput {
	return orchestrators.SaveAppInput{
		ID:                 r.PathValue("id"),
		Name:               r.FormValue("name"),
		Description:        r.FormValue("description"),
		Image:              r.FormValue("image"),
		Status:             r.FormValue("status"),
		CategorySlug:       r.FormValue("category"),
		Version:            r.FormValue("version"),
		Developer:          r.FormValue("developer"),
		SystemRequirements: r.FormValue("system_requirements"),
	}
}

// handleSaveApp handles POST /admin/apps and POST /admin/apps/{id}
func (s *Server) handleSaveApp(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.adminOnly(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		in := appInput(r)
		saved, err := orchestrators.ExecuteSaveApp(ctx, in, orchestrators.SaveAppDeps{
			Apps:       s.stores.Apps,
			Categories: s.stores.Marketplaces,
			Now:        s.now,
		})
		switch {
		case isOneOf(err, appFormErrors):
			echo := domainApp.App{
				ID:                 in.ID,
				Name:               in.Name,
				Description:        in.Description,
				Image:              in.Image,
				Status:             in.Status,
				CategorySlug:       in.CategorySlug,
				Version:            in.Version,
				Developer:          in.Developer,
				SystemRequirements: in.SystemRequirements,
			}
			return s.showAppForm(ctx, sess, echo, in.ID == "", http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domainApp.ErrNotFound):
			return s.pagesReg.notFound(ctx, sess)
		case err != nil:
			return err
		}
		seeOther(ex, withNotice(routes.Build(routes.AdminAppEdit, saved.ID), "saved"))
		return nil
	}))
}

// handleDeleteApp handles POST /admin/apps/{id}/delete
func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.adminOnly(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		err := orchestrators.ExecuteDeleteApp(ctx, r.PathValue("id"), orchestrators.DeleteAppDeps{
			Apps:  s.stores.Apps,
			Blobs: s.stores.Blobs,
		})
		if errors.Is(err, domainApp.ErrNotFound) {
			return s.pagesReg.notFound(ctx, sess)
		}
		if err != nil {
			return err
		}
		seeOther(ex, withNotice(routes.AdminApps, "deleted"))
		return nil
	}))
}

// handleUploadFile handles POST /admin/apps/{id}/file (multipart, field "file").
// The body is already capped by the BodyLimit middleware; the part size is
// checked again against MaxUploadBytes.
func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		if tooLarge(err) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	s.serve(w, r, s.adminOnly(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		id := r.PathValue("id")
		a, err := s.stores.Apps.GetByID(ctx, id)
		if errors.Is(err, domainApp.ErrNotFound) {
			return s.pagesReg.notFound(ctx, sess)
		}
		if err != nil {
			return err
		}

		file, hdr, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return s.showAppForm(ctx, sess, a, false, http.StatusUnprocessableEntity, orchestrators.ErrEmptyUpload.Error())
		}
		if tooLarge(err) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			ex.written = true
			return nil
		}
		if err != nil {
			return err
		}
		defer file.Close()
		if hdr.Size > s.cfg.MaxUploadBytes {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			ex.written = true
			return nil
		}

		_, err = orchestrators.ExecuteUploadAppFile(ctx, orchestrators.UploadAppFileInput{
			AppID:       id,
			FileName:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Body:        file,
		}, orchestrators.UploadAppFileDeps{Apps: s.stores.Apps, Blobs: s.stores.Blobs, Now: s.now})
		if isOneOf(err, appFormErrors) {
			return s.showAppForm(ctx, sess, a, false, http.StatusUnprocessableEntity, err.Error())
		}
		if err != nil {
			return err
		}
		seeOther(ex, withNotice(routes.Build(routes.AdminAppEdit, id), "uploaded"))
		return nil
	}))
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// handleAddVersion handles POST /admin/apps/{id}/versions
func (s *Server) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.adminOnly(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		id := r.PathValue("id")
		in := orchestrators.AddVersionInput{
			AppID:        id,
			Version:      r.FormValue("version"),
			ReleaseNotes: r.FormValue("release_notes"),
		}
		_, err := orchestrators.ExecuteAddVersion(ctx, in, orchestrators.AddVersionDeps{Store: s.stores.Apps, Now: s.now})
		switch {
		case isOneOf(err, versionFormErrors):
			form := domainApp.Version{Version: in.Version, ReleaseNotes: in.ReleaseNotes}
			return s.showVersions(ctx, sess, id, form, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domainApp.ErrNotFound):
			return s.pagesReg.notFound(ctx, sess)
		case err != nil:
			return err
		}
		seeOther(ex, withNotice(routes.Build(routes.AdminAppVersions, id), "version"))
		return nil
	}))
}

// handleSaveMarketplace handles POST /admin/marketplaces and POST /admin/marketplaces/{id}
func (s *Server) handleSaveMarketplace(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.adminOnly(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		in := orchestrators.SaveMarketplaceInput{
			ID:              r.PathValue("id"),
			Name:            r.FormValue("name"),
			Slug:            r.FormValue("slug"),
			Description:     r.FormValue("description"),
			IsPublic:        r.FormValue("is_public") != "",
			RequireApproval: r.FormValue("require_approval") != "",
		}
		_, err := orchestrators.ExecuteSaveMarketplace(ctx, in, orchestrators.SaveMarketplaceDeps{
			Store: s.stores.Marketplaces,
			Now:   s.now,
		})
		switch {
		case isOneOf(err, marketplaceFormErrors):
			echo := domainMarketplace.Marketplace{
				ID:              in.ID,
				Name:            in.Name,
				Slug:            in.Slug,
				Description:     in.Description,
				IsPublic:        in.IsPublic,
				RequireApproval: in.RequireApproval,
			}
			return s.showMarketplaceForm(ctx, sess, echo, in.ID == "", http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, marketplaceStore.ErrNotFound):
			return s.pagesReg.notFound(ctx, sess)
		case err != nil:
			return err
		}
		seeOther(ex, withNotice(routes.AdminMarketplaces, "saved"))
		return nil
	}))
}

// handleDeleteMarketplace handles POST /admin/marketplaces/{id}/delete
func (s *Server) handleDeleteMarketplace(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.adminOnly(func(ctx context.Context, ex *exchange, sess auth.Session) error {
		err := orchestrators.ExecuteDeleteMarketplace(ctx, r.PathValue("id"), s.stores.Marketplaces)
		if errors.Is(err, marketplaceStore.ErrNotFound) {
			return s.pagesReg.notFound(ctx, sess)
		}
		if err != nil {
			return err
		}
		seeOther(ex, withNotice(routes.AdminMarketplaces, "deleted"))
		return nil
	}))
}
