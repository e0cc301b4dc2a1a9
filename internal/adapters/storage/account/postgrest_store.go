package account

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"appstore/internal/adapters/supabase"
	"appstore/internal/auth"
	domain "appstore/internal/domain/account"
)

const accountsTable = "/rest/v1/accounts"

// PostgRESTStore implements Store against a Supabase "accounts" table.
// Requests carry the caller's token when one is in the context so row level
// security applies; otherwise the client's key is used. A store opened
// WithServiceRole always authorizes with the client's key.
type PostgRESTStore struct {
	client      *supabase.Client
	serviceRole bool
}

var _ Store = (*PostgRESTStore)(nil)

// PostgRESTOption configures a PostgRESTStore.
type PostgRESTOption func(*PostgRESTStore)

// WithServiceRole makes every request authorize with the client's key, which
// must then be a service role key, instead of the caller's token.
func WithServiceRole() PostgRESTOption {
	return func(s *PostgRESTStore) { s.serviceRole = true }
}

// NewPostgRESTStore creates a PostgRESTStore.
func NewPostgRESTStore(client *supabase.Client, opts ...PostgRESTOption) *PostgRESTStore {
	s := &PostgRESTStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// bearer returns the token to authorize with; "" selects the client's key.
func (s *PostgRESTStore) bearer(ctx context.Context) string {
	if s.serviceRole {
		return ""
	}
	tok, _ := auth.TokenFromContext(ctx)
	return tok
}

// FindByIdentityID returns the account for an identity, or nil when none exists.
func (s *PostgRESTStore) FindByIdentityID(ctx context.Context, id string) (*domain.Account, error) {
	resp, err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodGet,
		Path:   accountsTable,
		Query:  url.Values{"select": {"*"}, "id": {"eq." + id}, "limit": {"1"}},
		Bearer: s.bearer(ctx),
	})
	if err != nil {
		return nil, err
	}
	rows := resp.JSON().Array()
	if len(rows) == 0 {
		return nil, nil
	}
	entity := parseAccount(rows[0])
	return &entity, nil
}

// Upsert inserts with on_conflict=id and ignore-duplicates, then re-reads the
// row so the stored version wins over the proposed one.
func (s *PostgRESTStore) Upsert(ctx context.Context, entity domain.Account) (domain.Account, error) {
	payload := map[string]any{
		"id":         entity.ID,
		"email":      nullable(entity.Email),
		"full_name":  nullable(entity.FullName),
		"role":       entity.Role.String(),
		"created_at": entity.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   accountsTable,
		Query:  url.Values{"on_conflict": {"id"}},
		Body:   payload,
		Bearer: s.bearer(ctx),
		Header: http.Header{"Prefer": {"resolution=ignore-duplicates,return=minimal"}},
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("upsert account: %w", err)
	}
	stored, err := s.FindByIdentityID(ctx, entity.ID)
	if err != nil {
		return domain.Account{}, fmt.Errorf("re-read account: %w", err)
	}
	if stored == nil {
		return domain.Account{}, fmt.Errorf("re-read account %s: %w", entity.ID, ErrNotFound)
	}
	return *stored, nil
}

// SetRole changes the role of an existing account.
func (s *PostgRESTStore) SetRole(ctx context.Context, id string, role domain.Role) error {
	resp, err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodPatch,
		Path:   accountsTable,
		Query:  url.Values{"id": {"eq." + id}},
		Body:   map[string]string{"role": role.String()},
		Bearer: s.bearer(ctx),
		Header: http.Header{"Prefer": {"return=representation"}},
	})
	if err != nil {
		return err
	}
	if len(resp.JSON().Array()) == 0 {
		return ErrNotFound
	}
	return nil
}

// List retrieves accounts, newest first.
func (s *PostgRESTStore) List(ctx context.Context, filter ListFilter) ([]domain.Account, error) {
	q := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	if filter.Role != "" {
		q.Set("role", "ilike."+filter.Role.String())
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
		q.Set("offset", strconv.Itoa(filter.Offset))
	}
	resp, err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodGet,
		Path:   accountsTable,
		Query:  q,
		Bearer: s.bearer(ctx),
	})
	if err != nil {
		return nil, err
	}
	var results []domain.Account
	for _, row := range resp.JSON().Array() {
		results = append(results, parseAccount(row))
	}
	return results, nil
}

// Count returns the total number of accounts from the Content-Range header.
func (s *PostgRESTStore) Count(ctx context.Context) (int, error) {
	resp, err := s.client.Do(ctx, supabase.Request{
		Method: http.MethodHead,
		Path:   accountsTable,
		Query:  url.Values{"select": {"id"}},
		Bearer: s.bearer(ctx),
		Header: http.Header{"Prefer": {"count=exact"}},
	})
	if err != nil {
		return 0, err
	}
	return parseContentRangeTotal(resp.Header.Get("Content-Range"))
}

// parseContentRangeTotal reads the total from "0-24/3573" or "*/0".
func parseContentRangeTotal(header string) (int, error) {
	i := strings.LastIndexByte(header, '/')
	if i < 0 || i == len(header)-1 {
		return 0, fmt.Errorf("missing count in content-range %q", header)
	}
	return strconv.Atoi(header[i+1:])
}

func parseAccount(row gjson.Result) domain.Account {
	created, _ := time.Parse(time.RFC3339Nano, row.Get("created_at").String())
	return domain.Account{
		ID:        row.Get("id").String(),
		Email:     row.Get("email").String(),
		FullName:  row.Get("full_name").String(),
		Role:      domain.ParseRole(row.Get("role").String()),
		CreatedAt: created,
	}
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
