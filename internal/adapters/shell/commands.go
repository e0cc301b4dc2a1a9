package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"appstore/internal/application/orchestrators"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	"appstore/internal/router"
)

// Command errors.
var (
	ErrUsage          = errors.New("wrong arguments")
	ErrUnknownCommand = errors.New("unknown command, try \"help\"")
	ErrNotOnApp       = errors.New("open an app first")
	ErrNotSignedIn    = errors.New("sign in first")
)

// listState holds the shell's search, sort and page settings for list views.
type listState struct {
	Search string
	Sort   string
	Dir    string
	Page   int
}

type command struct {
	usage string
	run   func(sh *Shell, ctx context.Context, args []string) (quit bool, err error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":           {"help", (*Shell).cmdHelp},
		"go":             {"go <path>", (*Shell).cmdGo},
		"refresh":        {"refresh", (*Shell).cmdRefresh},
		"where":          {"where", (*Shell).cmdWhere},
		"search":         {"search [text]", (*Shell).cmdSearch},
		"sort":           {"sort name|updated [asc|desc]", (*Shell).cmdSort},
		"page":           {"page <n>", (*Shell).cmdPage},
		"login":          {"login [email] <password>", (*Shell).cmdLogin},
		"signup":         {"signup <email> <password> [full name]", (*Shell).cmdSignUp},
		"logout":         {"logout", (*Shell).cmdLogout},
		"reset":          {"reset <email>", (*Shell).cmdReset},
		"reset-complete": {"reset-complete <token> <password>", (*Shell).cmdResetComplete},
		"rate":           {"rate <1-5> [comment]", (*Shell).cmdRate},
		"download":       {"download", (*Shell).cmdDownload},
		"quit":           {"quit", (*Shell).cmdQuit},
	}
	commands["open"] = commands["go"]
	commands["exit"] = commands["quit"]
}

// Execute runs one command line. Blank lines do nothing.
func (sh *Shell) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return false, ErrUnknownCommand
	}
	quit, err := cmd.run(sh, ctx, fields[1:])
	if errors.Is(err, ErrUsage) {
		return quit, fmt.Errorf("usage: %s", cmd.usage)
	}
	return quit, err
}

func (sh *Shell) cmdHelp(_ context.Context, _ []string) (bool, error) {
	names := []string{"go", "refresh", "where", "search", "sort", "page", "login", "signup",
		"logout", "reset", "reset-complete", "rate", "download", "quit"}
	sh.out.write(func(w io.Writer) {
		for _, n := range names {
			fmt.Fprintf(w, "  %s\n", commands[n].usage)
		}
	})
	return false, nil
}

func (sh *Shell) cmdGo(ctx context.Context, args []string) (bool, error) {
	if len(args) != 1 {
		return false, ErrUsage
	}
	return false, sh.navigate(ctx, router.ParseLocation(args[0]))
}

func (sh *Shell) cmdRefresh(ctx context.Context, _ []string) (bool, error) {
	return false, sh.refresh(ctx)
}

func (sh *Shell) refresh(ctx context.Context) error {
	return sh.router.NavigateTo(ctx, sh.Location())
}

func (sh *Shell) cmdWhere(_ context.Context, _ []string) (bool, error) {
	sh.out.printf("%s\n", router.ParseLocation(sh.Location()))
	return false, nil
}

func (sh *Shell) cmdSearch(ctx context.Context, args []string) (bool, error) {
	sh.updateList(func(q *listState) {
		q.Search = strings.Join(args, " ")
		q.Page = 1
	})
	return false, sh.refresh(ctx)
}

func (sh *Shell) cmdSort(ctx context.Context, args []string) (bool, error) {
	if len(args) < 1 || len(args) > 2 {
		return false, ErrUsage
	}
	col := map[string]string{"name": "name", "updated": "updated_at"}[args[0]]
	if col == "" {
		return false, ErrUsage
	}
	dir := "asc"
	if len(args) == 2 {
		dir = args[1]
	}
	if dir != "asc" && dir != "desc" {
		return false, ErrUsage
	}
	sh.updateList(func(q *listState) {
		q.Sort, q.Dir = col, dir
	})
	return false, sh.refresh(ctx)
}

func (sh *Shell) cmdPage(ctx context.Context, args []string) (bool, error) {
	if len(args) != 1 {
		return false, ErrUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return false, ErrUsage
	}
	sh.updateList(func(q *listState) { q.Page = n })
	return false, sh.refresh(ctx)
}

func (sh *Shell) cmdLogin(ctx context.Context, args []string) (bool, error) {
	var email, password string
	switch len(args) {
	case 1:
		email, password = sh.lastEmail(), args[0]
	case 2:
		email, password = args[0], args[1]
	default:
		return false, ErrUsage
	}
	if email == "" {
		return false, ErrUsage
	}
	res, err := orchestrators.ExecuteSignIn(ctx, orchestrators.SignInInput{Email: email, Password: password},
		orchestrators.SignInDeps{Authenticator: sh.deps.Authenticator, Resolver: sh.res})
	if err != nil {
		return false, err
	}
	sh.setSession(res.Token.Value, res.Token.Identity.Email)
	if sh.deps.Remember != nil {
		sh.deps.Remember(res.Token.Identity.Email)
	}
	sh.out.printf("signed in as %s\n", res.Token.Identity.Email)
	return false, sh.router.NavigateTo(ctx, res.Landing)
}

func (sh *Shell) cmdSignUp(ctx context.Context, args []string) (bool, error) {
	if len(args) < 2 {
		return false, ErrUsage
	}
	_, err := orchestrators.ExecuteSignUp(ctx, orchestrators.SignUpInput{
		Email:    args[0],
		Password: args[1],
		FullName: strings.Join(args[2:], " "),
	}, orchestrators.SignUpDeps{Authenticator: sh.deps.Authenticator, Accounts: sh.deps.Accounts, Now: sh.deps.Now})
	if err != nil && !errors.Is(err, auth.ErrAccountProvision) {
		return false, err
	}
	sh.setSession("", args[0])
	sh.out.printf("account created, sign in with: login <password>\n")
	return false, sh.navigate(ctx, routes.Login)
}

func (sh *Shell) cmdLogout(ctx context.Context, _ []string) (bool, error) {
	tok := sh.currentToken()
	if tok == "" {
		return false, ErrNotSignedIn
	}
	sh.setSession("", "")
	if err := orchestrators.ExecuteSignOut(ctx, tok, sh.deps.Authenticator); err != nil {
		return false, err
	}
	sh.out.printf("signed out\n")
	return false, sh.navigate(ctx, routes.Login)
}

func (sh *Shell) cmdReset(ctx context.Context, args []string) (bool, error) {
	if len(args) != 1 {
		return false, ErrUsage
	}
	err := orchestrators.ExecuteRequestPasswordReset(ctx, orchestrators.RequestPasswordResetInput{
		Email:       args[0],
		RedirectURL: strings.TrimSuffix(sh.deps.PublicURL, "/") + routes.ResetPassword,
	}, sh.deps.Authenticator)
	if err != nil {
		return false, err
	}
	sh.out.printf("if that address has an account, a reset link is on its way\n")
	return false, nil
}

func (sh *Shell) cmdResetComplete(ctx context.Context, args []string) (bool, error) {
	if len(args) != 2 {
		return false, ErrUsage
	}
	err := orchestrators.ExecuteCompletePasswordReset(ctx, orchestrators.CompletePasswordResetInput{
		Token:       args[0],
		NewPassword: args[1],
		Confirm:     args[1],
	}, sh.deps.Authenticator)
	if err != nil {
		return false, err
	}
	sh.out.printf("password updated\n")
	return false, sh.navigate(ctx, routes.Login)
}

// currentApp returns the id of the app page being shown.
func (sh *Shell) currentApp() (string, error) {
	m, ok := sh.current()
	if !ok || m.Pattern != routes.App {
		return "", ErrNotOnApp
	}
	return m.Params["id"], nil
}

func (sh *Shell) cmdRate(ctx context.Context, args []string) (bool, error) {
	if len(args) < 1 {
		return false, ErrUsage
	}
	score, err := strconv.Atoi(args[0])
	if err != nil {
		return false, ErrUsage
	}
	id, err := sh.currentApp()
	if err != nil {
		return false, err
	}
	sess := sh.res.ResolveAccount(ctx)
	if sess.Account == nil {
		return false, ErrNotSignedIn
	}
	_, err = orchestrators.ExecuteRateApp(ctx, orchestrators.RateAppInput{
		AppID:     id,
		AccountID: sess.Account.ID,
		Score:     score,
		Comment:   strings.Join(args[1:], " "),
	}, orchestrators.RateAppDeps{Ratings: sh.deps.Ratings, Apps: sh.deps.Apps, Now: sh.deps.Now})
	if err != nil {
		return false, err
	}
	return false, sh.refresh(ctx)
}

// cmdDownload redeems a signed URL against the blob store and writes the file
// into DownloadDir.
func (sh *Shell) cmdDownload(ctx context.Context, _ []string) (bool, error) {
	id, err := sh.currentApp()
	if err != nil {
		return false, err
	}
	if !sh.res.ResolveAccount(ctx).Authenticated() {
		return false, ErrNotSignedIn
	}
	res, err := orchestrators.ExecuteDownloadApp(ctx, id, orchestrators.DownloadAppDeps{
		Apps:   sh.deps.Apps,
		Signer: sh.deps.Signer,
	})
	if err != nil {
		return false, err
	}
	u, err := url.Parse(res.URL)
	if err != nil {
		return false, fmt.Errorf("parse download url: %w", err)
	}
	key := strings.TrimPrefix(u.Path, sh.deps.Signer.Base()+"/")
	signedName, err := sh.deps.Signer.Verify(key, u.Query().Get("token"))
	if err != nil {
		return false, err
	}
	obj, err := sh.deps.Blobs.Open(ctx, key)
	if err != nil {
		return false, err
	}
	defer obj.Close()

	name := filepath.Base(signedName)
	if name == "." || name == string(filepath.Separator) {
		name = filepath.Base(key)
	}
	dst := filepath.Join(sh.deps.DownloadDir, name)
	f, err := os.Create(dst)
	if err != nil {
		return false, err
	}
	n, err := io.Copy(f, obj)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return false, fmt.Errorf("write %s: %w", dst, err)
	}
	sh.out.printf("saved %s (%d bytes)\n", dst, n)
	return false, sh.refresh(ctx)
}

func (sh *Shell) cmdQuit(_ context.Context, _ []string) (bool, error) {
	return true, nil
}
