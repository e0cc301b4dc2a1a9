package orchestrators

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"appstore/internal/auth"
	"appstore/internal/domain/account"
)

var testNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// mockAuthenticator implements every provider interface used by the auth flows.
type mockAuthenticator struct {
	users       map[string]auth.Identity // by email
	passwords   map[string]string        // by email
	signUpErr   error
	signedOut   []string
	resetEmails []string
	resets      map[string]string // reset token -> new password
}

func newMockAuthenticator() *mockAuthenticator {
	return &mockAuthenticator{
		users:     map[string]auth.Identity{},
		passwords: map[string]string{},
		resets:    map[string]string{},
	}
}

// SignIn implements SignInAuthenticator.
// PRE: none
// POST: returns a token "tok-<id>" when the password matches
func (m *mockAuthenticator) SignIn(_ context.Context, email, password string) (auth.Token, error) {
	ident, ok := m.users[email]
	if !ok || m.passwords[email] != password {
		return auth.Token{}, auth.ErrInvalidCredentials
	}
	return auth.Token{Value: "tok-" + ident.ID, Identity: ident}, nil
}

// SignUp implements SignUpAuthenticator.
// PRE: none
// POST: the identity id is "id-<email>"
func (m *mockAuthenticator) SignUp(_ context.Context, email, password, fullName string) (auth.Identity, error) {
	if m.signUpErr != nil {
		return auth.Identity{}, m.signUpErr
	}
	if _, ok := m.users[email]; ok {
		return auth.Identity{}, auth.ErrEmailTaken
	}
	ident := auth.Identity{ID: "id-" + email, Email: email, FullName: fullName}
	m.users[email] = ident
	m.passwords[email] = password
	return ident, nil
}

// SignOut implements SignOutAuthenticator.
func (m *mockAuthenticator) SignOut(_ context.Context, token string) error {
	m.signedOut = append(m.signedOut, token)
	return nil
}

// RequestPasswordReset implements PasswordResetAuthenticator.
func (m *mockAuthenticator) RequestPasswordReset(_ context.Context, email, _ string) error {
	m.resetEmails = append(m.resetEmails, email)
	return nil
}

// CompletePasswordReset implements PasswordResetAuthenticator.
func (m *mockAuthenticator) CompletePasswordReset(_ context.Context, token, pw string) error {
	m.resets[token] = pw
	return nil
}

// mockAccounts implements SeedAdminAccountStore with first-write-wins upserts.
type mockAccounts struct {
	mu        sync.Mutex
	rows      map[string]account.Account
	upsertErr error
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{rows: map[string]account.Account{}}
}

// Upsert implements AccountUpserter.
// POST: an existing row is returned unchanged
func (m *mockAccounts) Upsert(_ context.Context, a account.Account) (account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return account.Account{}, m.upsertErr
	}
	if existing, ok := m.rows[a.ID]; ok {
		return existing, nil
	}
	m.rows[a.ID] = a
	return a, nil
}

// SetRole implements SeedAdminAccountStore.
func (m *mockAccounts) SetRole(_ context.Context, id string, role account.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return errors.New("not found")
	}
	a.Role = role
	m.rows[id] = a
	return nil
}

// stubResolver returns a fixed session and records the token it saw.
type stubResolver struct {
	session auth.Session
	token   string
}

// ResolveAccount implements auth.SessionResolver.
func (s *stubResolver) ResolveAccount(ctx context.Context) auth.Session {
	s.token, _ = auth.TokenFromContext(ctx)
	return s.session
}

func TestExecuteSignIn_LandingByRole(t *testing.T) {
	tests := []struct {
		name    string
		session auth.Session
		want    string
	}{
		{"admin", auth.Session{Identity: &auth.Identity{ID: "id-a"}, Account: &account.Account{ID: "id-a", Role: "Admin"}}, AdminLandingRoute},
		{"member", auth.Session{Identity: &auth.Identity{ID: "id-a"}, Account: &account.Account{ID: "id-a", Role: account.RoleMember}}, auth.DefaultLandingRoute},
		{"account unresolved", auth.Session{Identity: &auth.Identity{ID: "id-a"}, Err: auth.ErrAccountLookup}, auth.DefaultLandingRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authn := newMockAuthenticator()
			_, _ = authn.SignUp(context.Background(), "jo@corp.example", "correct horse", "Jo")
			resolver := &stubResolver{session: tt.session}

			res, err := ExecuteSignIn(context.Background(), SignInInput{Email: "jo@corp.example", Password: "correct horse"},
				SignInDeps{Authenticator: authn, Resolver: resolver})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Landing != tt.want {
				t.Errorf("landing = %q, want %q", res.Landing, tt.want)
			}
			if resolver.token != res.Token.Value {
				t.Errorf("resolver saw token %q, want %q", resolver.token, res.Token.Value)
			}
		})
	}
}

func TestExecuteSignIn_InvalidCredentials(t *testing.T) {
	authn := newMockAuthenticator()
	resolver := &stubResolver{}
	for _, in := range []SignInInput{{}, {Email: "jo@corp.example"}, {Email: "jo@corp.example", Password: "nope"}} {
		_, err := ExecuteSignIn(context.Background(), in, SignInDeps{Authenticator: authn, Resolver: resolver})
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("input %+v: err = %v", in, err)
		}
	}
}

func TestExecuteSignUp_CreatesMemberAccount(t *testing.T) {
	authn := newMockAuthenticator()
	accounts := newMockAccounts()

	acct, err := ExecuteSignUp(context.Background(), SignUpInput{Email: "jo@corp.example", Password: "correct horse", FullName: " Jo "},
		SignUpDeps{Authenticator: authn, Accounts: accounts, Now: fixedClock})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.ID != "id-jo@corp.example" || acct.Role != account.RoleMember || acct.FullName != "Jo" {
		t.Errorf("account = %+v", acct)
	}
	if !acct.CreatedAt.Equal(testNow) {
		t.Errorf("created_at = %v", acct.CreatedAt)
	}
	if len(accounts.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(accounts.rows))
	}
}

func TestExecuteSignUp_Errors(t *testing.T) {
	authn := newMockAuthenticator()
	authn.signUpErr = auth.ErrWeakPassword
	_, err := ExecuteSignUp(context.Background(), SignUpInput{Email: "jo@corp.example", Password: "x"},
		SignUpDeps{Authenticator: authn, Accounts: newMockAccounts()})
	if !errors.Is(err, auth.ErrWeakPassword) {
		t.Errorf("weak password: err = %v", err)
	}

	accounts := newMockAccounts()
	accounts.upsertErr = errors.New("disk full")
	_, err = ExecuteSignUp(context.Background(), SignUpInput{Email: "jo@corp.example", Password: "correct horse"},
		SignUpDeps{Authenticator: newMockAuthenticator(), Accounts: accounts})
	if !errors.Is(err, auth.ErrAccountProvision) {
		t.Errorf("upsert failure: err = %v", err)
	}
}

func TestExecuteSignOut(t *testing.T) {
	authn := newMockAuthenticator()
	if err := ExecuteSignOut(context.Background(), "", authn); err != nil {
		t.Fatalf("empty token: %v", err)
	}
	if err := ExecuteSignOut(context.Background(), "tok-1", authn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(authn.signedOut) != 1 || authn.signedOut[0] != "tok-1" {
		t.Errorf("signed out = %v", authn.signedOut)
	}
}

func TestExecutePasswordReset(t *testing.T) {
	authn := newMockAuthenticator()
	ctx := context.Background()

	if err := ExecuteRequestPasswordReset(ctx, RequestPasswordResetInput{Email: "nope"}, authn); !errors.Is(err, auth.ErrInvalidEmail) {
		t.Errorf("bad email: err = %v", err)
	}
	if err := ExecuteRequestPasswordReset(ctx, RequestPasswordResetInput{Email: " jo@corp.example "}, authn); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(authn.resetEmails) != 1 || authn.resetEmails[0] != "jo@corp.example" {
		t.Errorf("reset emails = %v", authn.resetEmails)
	}

	cases := []struct {
		in   CompletePasswordResetInput
		want error
	}{
		{CompletePasswordResetInput{NewPassword: "battery staple", Confirm: "battery staple"}, auth.ErrResetTokenInvalid},
		{CompletePasswordResetInput{Token: "t", NewPassword: "battery staple", Confirm: "battery"}, ErrPasswordMismatch},
		{CompletePasswordResetInput{Token: "t", NewPassword: "short", Confirm: "short"}, auth.ErrWeakPassword},
		{CompletePasswordResetInput{Token: "t", NewPassword: "battery staple", Confirm: "battery staple"}, nil},
	}
	for _, c := range cases {
		if err := ExecuteCompletePasswordReset(ctx, c.in, authn); !errors.Is(err, c.want) {
			t.Errorf("%+v: err = %v, want %v", c.in, err, c.want)
		}
	}
	if authn.resets["t"] != "battery staple" {
		t.Errorf("resets = %v", authn.resets)
	}
}

func TestExecuteSeedAdmin(t *testing.T) {
	authn := newMockAuthenticator()
	accounts := newMockAccounts()
	deps := SeedAdminDeps{Authenticator: authn, Accounts: accounts, Now: fixedClock}
	in := SeedAdminInput{Email: "admin@corp.example", Password: "correct horse"}

	acct, err := ExecuteSeedAdmin(context.Background(), in, deps)
	if err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if acct.Role != account.RoleAdmin || accounts.rows[acct.ID].Role != account.RoleAdmin {
		t.Errorf("role = %q / stored %q", acct.Role, accounts.rows[acct.ID].Role)
	}

	again, err := ExecuteSeedAdmin(context.Background(), in, deps)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if again.ID != acct.ID || len(accounts.rows) != 1 {
		t.Errorf("second seed created another account: %+v", accounts.rows)
	}

	in.Password = "changed elsewhere"
	if _, err := ExecuteSeedAdmin(context.Background(), in, deps); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
}

func TestExecuteSeedAdmin_PromotesExistingMember(t *testing.T) {
	authn := newMockAuthenticator()
	accounts := newMockAccounts()
	ident, _ := authn.SignUp(context.Background(), "boss@corp.example", "correct horse", "Boss")
	_, _ = accounts.Upsert(context.Background(), account.NewDefault(ident.ID, ident.Email, "Boss", testNow))

	acct, err := ExecuteSeedAdmin(context.Background(), SeedAdminInput{Email: "boss@corp.example", Password: "correct horse"},
		SeedAdminDeps{Authenticator: authn, Accounts: accounts})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Role != account.RoleAdmin || accounts.rows[ident.ID].Role != account.RoleAdmin {
		t.Errorf("member not promoted: %+v", accounts.rows[ident.ID])
	}
}
