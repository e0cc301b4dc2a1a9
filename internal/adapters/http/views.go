package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"appstore/internal/application/listutil"
	"appstore/internal/application/routes"
	"appstore/internal/auth"
	"appstore/internal/domain/account"
	domainApp "appstore/internal/domain/app"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// notices are the flash messages a redirect can ask for with ?notice=.
var notices = map[string]string{
	"registered": "Account created. Sign in to continue.",
	"reset_sent": "If that address has an account, a reset link is on its way.",
	"reset_done": "Password updated. Sign in with your new password.",
	"signed_out": "You have been signed out.",
	"saved":      "Changes saved.",
	"deleted":    "Deleted.",
	"uploaded":   "File uploaded.",
	"version":    "Version added.",
	"rated":      "Thanks for your rating.",
}

// page is the data every template executes against.
type page struct {
	Title   string
	Session auth.Session
	CSRF    template.HTML
	Notice  string
	Error   string
	Data    any
}

type views struct {
	byName map[string]*template.Template
}

var funcMap = template.FuncMap{
	"renderMarkdown": func(md string) template.HTML {
		var buf bytes.Buffer
		if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
			return template.HTML(template.HTMLEscapeString(md))
		}
		return template.HTML(buf.String())
	},
	"path":    routes.Build,
	"isAdmin": func(s auth.Session) bool { return s.HasRole(account.RoleAdmin) },
	"stars":   stars,
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
	"bytes":    humanBytes,
	"statuses": func() []string { return []string{domainApp.StatusAvailable, domainApp.StatusBeta, domainApp.StatusDeprecated} },
	"add1":     func(n int) int { return n + 1 },
	"sub1":     func(n int) int { return n - 1 },
	"seq": func(from, to int) []int {
		var out []int
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	},
	"sortQuery": func(p listutil.ListParams, col string) template.URL {
		p.Page = 1
		p.Dir = p.NextDir(col)
		p.Sort = col
		return template.URL("?" + p.Encode().Encode())
	},
	"pageQuery": func(p listutil.ListParams, n int) template.URL {
		p.Page = n
		return template.URL("?" + p.Encode().Encode())
	},
}

func loadViews() (*views, error) {
	entries, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	v := &views{byName: make(map[string]*template.Template)}
	for _, name := range entries {
		base := strings.TrimPrefix(name, "templates/")
		if base == "layout.html" {
			continue
		}
		tpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", base, err)
		}
		v.byName[base] = tpl
	}
	return v, nil
}

// render executes the named template into a buffer and writes it with status.
func (v *views) render(ex *exchange, status int, name string, p page) error {
	tpl, ok := v.byName[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	p.CSRF = csrf.TemplateField(ex.r)
	if p.Notice == "" {
		p.Notice = notices[ex.r.URL.Query().Get("notice")]
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, p); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	ex.written = true
	ex.w.Header().Set("Content-Type", "text/html; charset=utf-8")
	ex.w.WriteHeader(status)
	_, err := buf.WriteTo(ex.w)
	return err
}

func stars(avg float64) string {
	full := int(avg + 0.5)
	full = min(max(full, 0), 5)
	return strings.Repeat("★", full) + strings.Repeat("☆", 5-full)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func withNotice(target, key string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "notice=" + key
}
