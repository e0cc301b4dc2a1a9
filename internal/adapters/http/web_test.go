package web

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"appstore/internal/adapters/blob"
	"appstore/internal/adapters/email"
	"appstore/internal/adapters/identity/local"
	"appstore/internal/adapters/metrics"
	"appstore/internal/adapters/storage"
	accountStore "appstore/internal/adapters/storage/account"
	appStore "appstore/internal/adapters/storage/app"
	"appstore/internal/adapters/storage/credential"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	ratingStore "appstore/internal/adapters/storage/rating"
	"appstore/internal/application/orchestrators"
	"appstore/internal/auth"
)

const (
	adminEmail    = "admin@corp.example"
	adminPassword = "admin-password"
)

var (
	csrfFieldRE = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)
	editPathRE  = regexp.MustCompile(`^/admin/apps/([^/]+)/edit`)
)

// testApp is a server over in-memory SQLite and the local identity provider.
type testApp struct {
	srv      *httptest.Server
	provider *local.Provider
	mailer   *email.NoopSender
	accounts *accountStore.SQLiteStore
	apps     *appStore.SQLiteStore
}

func newTestApp(t *testing.T, configure ...func(*Config)) *testApp {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	mailer := email.NewNoopSender()
	provider := local.New(local.Config{
		Credentials: credential.NewSQLiteStore(db),
		Sessions:    local.NewSessionStore(time.Hour, nil),
		Mailer:      mailer,
		BcryptCost:  bcrypt.MinCost,
	})
	accounts := accountStore.NewSQLiteStore(db)
	apps := appStore.NewSQLiteStore(db)
	m := metrics.New()

	_, err = orchestrators.ExecuteSeedAdmin(context.Background(), orchestrators.SeedAdminInput{
		Email:    adminEmail,
		Password: adminPassword,
	}, orchestrators.SeedAdminDeps{Authenticator: provider, Accounts: accounts})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	cfg := Config{
		CSRFKey:       bytes.Repeat([]byte("k"), 32),
		PublicURL:     "http://appstore.test",
		RatePerSecond: 1000,
		RateBurst:     1000,
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	s, err := NewServer(cfg, Deps{
		Stores: Stores{
			Accounts:     accounts,
			Marketplaces: marketplaceStore.NewSQLiteStore(db),
			Apps:         apps,
			Ratings:      ratingStore.NewSQLiteStore(db),
			Blobs:        blobs,
		},
		Authenticator: provider,
		Resolver:      auth.NewResolver(auth.ResolverDeps{Identities: provider, Accounts: accounts, Observer: m}),
		Signer:        blob.NewURLSigner([]byte("download-key"), FilesPrefix, 0, nil),
		Metrics:       m,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testApp{srv: srv, provider: provider, mailer: mailer, accounts: accounts, apps: apps}
}

// browser is a cookie-carrying client that does not follow redirects.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
	csrf string
}

func (a *testApp) browser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &browser{
		t:    t,
		base: a.srv.URL,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// get fetches path and returns the status and body. It remembers the last
// CSRF token it saw.
func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.c.Get(b.base + path)
	if err != nil {
		b.t.Fatalf("GET %s: %v", path, err)
	}
	return b.read(resp)
}

func (b *browser) read(resp *http.Response) (*http.Response, string) {
	b.t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		b.t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	if m := csrfFieldRE.FindStringSubmatch(body); m != nil {
		b.csrf = m[1]
	}
	return resp, body
}

// post submits form to path with the CSRF header, loading /login first when
// no token has been seen yet.
func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	if b.csrf == "" {
		b.get("/login")
	}
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		b.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRF-Token", b.csrf)
	resp, err := b.c.Do(req)
	if err != nil {
		b.t.Fatalf("POST %s: %v", path, err)
	}
	return b.read(resp)
}

func (b *browser) upload(path, field, name string, content []byte) (*http.Response, string) {
	b.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		b.t.Fatal(err)
	}
	fw.Write(content)
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, b.base+path, &buf)
	if err != nil {
		b.t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-CSRF-Token", b.csrf)
	resp, err := b.c.Do(req)
	if err != nil {
		b.t.Fatalf("upload %s: %v", path, err)
	}
	return b.read(resp)
}

func (b *browser) signIn(emailAddr, password string) *http.Response {
	b.t.Helper()
	resp, _ := b.post("/login", url.Values{"email": {emailAddr}, "password": {password}})
	return resp
}

func wantRedirect(t *testing.T, resp *http.Response, prefix string) string {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if !strings.HasPrefix(loc, prefix) {
		t.Fatalf("Location = %q, want prefix %q", loc, prefix)
	}
	return loc
}

func TestPages_RedirectAnonymousToLogin(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	for _, path := range []string{"/", "/marketplaces", "/category/hr", "/app/x", "/admin", "/admin/apps"} {
		resp, _ := b.get(path)
		wantRedirect(t, resp, "/login")
	}
}

func TestPages_LoginRendersForm(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, body := b.get("/login")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if b.csrf == "" {
		t.Error("login form has no CSRF field")
	}
	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if !strings.Contains(body, `action="/login"`) {
		t.Error("login form missing")
	}
}

func TestPages_UnknownPathIs404(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, body := b.get("/nowhere/at/all")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if !strings.Contains(body, "/nowhere/at/all") {
		t.Error("404 page should echo the path")
	}
}

func TestSignUp_ThenSignInLandsOnMarketplaces(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, _ := b.post("/signup", url.Values{
		"email":     {"jo@corp.example"},
		"full_name": {"Jo Bloggs"},
		"password":  {"correct horse"},
		"confirm":   {"correct horse"},
	})
	wantRedirect(t, resp, "/login?notice=registered")

	_, body := b.get("/login?notice=registered")
	if !strings.Contains(body, "Account created") {
		t.Error("registered notice not shown")
	}

	wantRedirect(t, b.signIn("jo@corp.example", "correct horse"), "/marketplaces")

	resp, body = b.get("/marketplaces")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "Jo Bloggs") {
		t.Error("signed-in name not shown")
	}

	// Signed-in users skip the login page.
	resp, _ = b.get("/login")
	wantRedirect(t, resp, "/marketplaces")

	// Members are sent away from admin pages.
	resp, _ = b.get("/admin/analytics")
	wantRedirect(t, resp, "/marketplaces")
}

func TestSignUp_MismatchedPasswords(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, body := b.post("/signup", url.Values{
		"email":    {"jo@corp.example"},
		"password": {"correct horse"},
		"confirm":  {"battery staple"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, "passwords do not match") {
		t.Error("mismatch error not shown")
	}
	if !strings.Contains(body, `value="jo@corp.example"`) {
		t.Error("email should be kept in the form")
	}
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, _ := b.post("/login", url.Values{"email": {adminEmail}, "password": {"wrong-password"}})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	resp, _ = b.get("/marketplaces")
	wantRedirect(t, resp, "/login")
}

func TestSignIn_AdminLandsOnAdmin(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	wantRedirect(t, b.signIn(adminEmail, adminPassword), "/admin")
	resp, body := b.get("/admin")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "accounts") {
		t.Error("dashboard counts missing")
	}
}

func TestSignOut_ClearsSession(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)
	b.signIn(adminEmail, adminPassword)

	resp, _ := b.post("/logout", nil)
	wantRedirect(t, resp, "/login?notice=signed_out")

	resp, _ = b.get("/admin")
	wantRedirect(t, resp, "/login")
}

func TestResetPassword_EndToEnd(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, _ := b.post("/reset-password", url.Values{"email": {adminEmail}})
	wantRedirect(t, resp, "/reset-password?notice=reset_sent")

	sent := a.mailer.Sent()
	if len(sent) == 0 {
		t.Fatal("no reset email sent")
	}
	link := regexp.MustCompile(`href="([^"]+)"`).FindStringSubmatch(sent[len(sent)-1].HTML)
	if link == nil {
		t.Fatal("no link in reset email")
	}
	u, err := url.Parse(link[1])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link[1], "http://appstore.test/reset-password") {
		t.Errorf("reset link = %q", link[1])
	}
	token := u.Query().Get("token")

	_, body := b.get("/reset-password?token=" + url.QueryEscape(token))
	if !strings.Contains(body, "Set password") {
		t.Fatal("token form not shown")
	}

	resp, _ = b.post("/reset-password", url.Values{
		"token":    {token},
		"password": {"brand-new-password"},
		"confirm":  {"brand-new-password"},
	})
	wantRedirect(t, resp, "/login?notice=reset_done")
	wantRedirect(t, b.signIn(adminEmail, "brand-new-password"), "/admin")
}

func TestCSRF_PostWithoutTokenRejected(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, err := b.c.PostForm(b.base+"/login", url.Values{"email": {adminEmail}, "password": {adminPassword}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

// TestCatalog_AdminPublishesAndMemberDownloads walks the whole catalog flow:
// create a marketplace and an app, upload a file, then rate and download it.
func TestCatalog_AdminPublishesAndMemberDownloads(t *testing.T) {
	a := newTestApp(t)
	admin := a.browser(t)
	admin.signIn(adminEmail, adminPassword)

	resp, _ := admin.post("/admin/marketplaces", url.Values{
		"name":        {"Line of Business"},
		"description": {"Internal tools"},
		"is_public":   {"1"},
	})
	wantRedirect(t, resp, "/admin/marketplaces?notice=saved")

	resp, body := admin.post("/admin/apps", url.Values{"name": {"Payroll"}, "category": {"nope"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unknown category status = %d, want 422", resp.StatusCode)
	}
	if !strings.Contains(body, "category does not match") {
		t.Error("unknown category error not shown")
	}

	resp, _ = admin.post("/admin/apps", url.Values{
		"name":        {"Payroll"},
		"category":    {"line-of-business"},
		"description": {"Runs **payroll**."},
		"version":     {"1.0.0"},
	})
	loc := wantRedirect(t, resp, "/admin/apps/")
	m := editPathRE.FindStringSubmatch(loc)
	if m == nil {
		t.Fatalf("Location = %q", loc)
	}
	appID := m[1]

	_, _ = admin.get("/admin/apps/" + appID + "/edit")
	resp, _ = admin.upload("/admin/apps/"+appID+"/file", "file", "payroll.zip", []byte("PK-payroll"))
	wantRedirect(t, resp, "/admin/apps/"+appID+"/edit?notice=uploaded")

	resp, _ = admin.post("/admin/apps/"+appID+"/versions", url.Values{"version": {"1.1.0"}, "release_notes": {"Fixes"}})
	wantRedirect(t, resp, "/admin/apps/"+appID+"/versions?notice=version")

	// A member browses, rates and downloads.
	member := a.browser(t)
	member.post("/signup", url.Values{
		"email":    {"jo@corp.example"},
		"password": {"correct horse"},
		"confirm":  {"correct horse"},
	})
	member.signIn("jo@corp.example", "correct horse")

	_, body = member.get("/category/line-of-business")
	if !strings.Contains(body, "Payroll") {
		t.Fatal("app not listed in its category")
	}
	_, body = member.get("/app/" + appID)
	if !strings.Contains(body, "<strong>payroll</strong>") {
		t.Error("description markdown not rendered")
	}
	if !strings.Contains(body, "1.1.0") {
		t.Error("new version not shown")
	}

	resp, _ = member.post("/app/"+appID+"/ratings", url.Values{"score": {"9"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("bad score status = %d, want 422", resp.StatusCode)
	}
	resp, _ = member.post("/app/"+appID+"/ratings", url.Values{"score": {"4"}, "comment": {"Solid"}})
	wantRedirect(t, resp, "/app/"+appID+"?notice=rated")

	resp, _ = member.post("/app/"+appID+"/download", nil)
	fileURL := wantRedirect(t, resp, FilesPrefix+"/apps/"+appID+"/")
	resp, body = member.get(fileURL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("file status = %d", resp.StatusCode)
	}
	if body != "PK-payroll" {
		t.Errorf("file body = %q", body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "payroll.zip") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if strings.Contains(fileURL, "name=") {
		t.Errorf("file name travels outside the token: %q", fileURL)
	}
	// The served name comes from the token, not from the query.
	resp, _ = member.get(fileURL + "&name=" + url.QueryEscape("invoice.exe"))
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "payroll.zip") || strings.Contains(cd, "invoice.exe") {
		t.Errorf("Content-Disposition with a name override = %q", cd)
	}

	got, err := a.apps.GetByID(context.Background(), appID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DownloadCount != 1 {
		t.Errorf("download count = %d, want 1", got.DownloadCount)
	}

	// Admins see the download in analytics.
	_, body = admin.get("/admin/analytics")
	if !strings.Contains(body, "Payroll") {
		t.Error("analytics missing the app")
	}
}

// TestUpload_OverCapIs413 verifies an oversize file is refused and not stored.
func TestUpload_OverCapIs413(t *testing.T) {
	a := newTestApp(t, func(c *Config) { c.MaxUploadBytes = 1024 })
	admin := a.browser(t)
	admin.signIn(adminEmail, adminPassword)

	resp, _ := admin.post("/admin/marketplaces", url.Values{"name": {"Tools"}, "is_public": {"1"}})
	wantRedirect(t, resp, "/admin/marketplaces?notice=saved")
	resp, _ = admin.post("/admin/apps", url.Values{"name": {"Big"}, "category": {"tools"}})
	m := editPathRE.FindStringSubmatch(wantRedirect(t, resp, "/admin/apps/"))
	if m == nil {
		t.Fatal("no app id in redirect")
	}
	appID := m[1]

	resp, _ = admin.upload("/admin/apps/"+appID+"/file", "file", "big.zip", bytes.Repeat([]byte("x"), 4096))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", resp.StatusCode)
	}
	got, err := a.apps.GetByID(context.Background(), appID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasFile() {
		t.Errorf("oversize upload stored as %q", got.FilePath)
	}
}

// TestBodyLimit_UploadRouteGetsUploadCap verifies only the upload route is
// allowed past the form cap.
func TestBodyLimit_UploadRouteGetsUploadCap(t *testing.T) {
	s := &Server{cfg: Config{MaxUploadBytes: 1024}}
	cases := []struct {
		method, path string
		want         int64
	}{
		{"POST", "/admin/apps/a1/file", 1024 + uploadOverhead},
		{"POST", "/admin/apps/a1", 0},
		{"POST", "/admin/apps/a1/x/file", 0},
		{"POST", "/admin/apps//file", 0},
		{"GET", "/admin/apps/a1/file", 0},
		{"POST", "/login", 0},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(tc.method, tc.path, nil)
		if got := s.bodyLimit(r); got != tc.want {
			t.Errorf("%s %s: limit = %d, want %d", tc.method, tc.path, got, tc.want)
		}
	}
}

func TestFiles_RejectsBadToken(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)

	resp, _ := b.get(FilesPrefix + "/apps/x/1.zip?token=forged")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestAdmin_DeleteMissingAppIs404(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)
	b.signIn(adminEmail, adminPassword)
	b.get("/admin/apps")

	resp, _ := b.post("/admin/apps/missing/delete", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMetrics_Exposed(t *testing.T) {
	a := newTestApp(t)
	b := a.browser(t)
	b.get("/login")

	resp, body := b.get("/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "http_requests_total") {
		t.Error("request counter not exported")
	}
}
