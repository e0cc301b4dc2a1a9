package account

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength    = 254
	MaxFullNameLength = 200
)

// Role is the application-level privilege of an account.
type Role string

// Role constants
const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// ValidRoles contains all valid role values.
var ValidRoles = []Role{RoleMember, RoleAdmin}

// Domain errors
var (
	ErrEmptyID      = errors.New("account id cannot be empty")
	ErrInvalidEmail = errors.New("email must contain '@'")
	ErrEmailTooLong = errors.New("email cannot exceed 254 characters")
	ErrNameTooLong  = errors.New("full name cannot exceed 200 characters")
	ErrInvalidRole  = errors.New("role must be one of: member, admin")
)

// ParseRole converts a persisted role string into a Role.
// Matching is case-insensitive; unknown or empty values fall back to the
// least-privileged role.
func ParseRole(raw string) Role {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleMember
	}
}

// String returns the persisted form of the role.
func (r Role) String() string {
	return string(r)
}

// Is reports whether r equals other, ignoring case.
func (r Role) Is(other Role) bool {
	return strings.EqualFold(string(r), string(other))
}

// Account is the application's own record about an identity.
// ID is the identity id it was derived from.
type Account struct {
	ID        string
	Email     string
	FullName  string
	Role      Role
	CreatedAt time.Time
}

// NewDefault builds the member account provisioned for a first-seen identity.
// POST: Role is RoleMember
func NewDefault(identityID, email, fullName string, now time.Time) Account {
	return Account{
		ID:        identityID,
		Email:     strings.TrimSpace(email),
		FullName:  strings.TrimSpace(fullName),
		Role:      RoleMember,
		CreatedAt: now,
	}
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return ErrEmptyID
	}
	if a.Email != "" {
		if len(a.Email) > MaxEmailLength {
			return ErrEmailTooLong
		}
		if !strings.Contains(a.Email, "@") {
			return ErrInvalidEmail
		}
	}
	if len(a.FullName) > MaxFullNameLength {
		return ErrNameTooLong
	}
	if !isValidRole(a.Role) {
		return ErrInvalidRole
	}
	return nil
}

// IsAdmin returns true if the account has admin role.
// INVARIANT: Account fields are not mutated
func (a *Account) IsAdmin() bool {
	return a.Role.Is(RoleAdmin)
}

// DisplayName returns the full name, or the email when no name is known.
func (a *Account) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.Email
}

func isValidRole(role Role) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
