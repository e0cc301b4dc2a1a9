package marketplace

import (
	"errors"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength        = 120
	MaxDescriptionLength = 2000
)

// Domain errors
var (
	ErrEmptyName          = errors.New("marketplace name is required")
	ErrNameTooLong        = errors.New("marketplace name cannot exceed 120 characters")
	ErrEmptySlug          = errors.New("marketplace slug cannot be empty")
	ErrInvalidSlug        = errors.New("marketplace slug may only contain a-z, 0-9 and '-'")
	ErrDescriptionTooLong = errors.New("marketplace description cannot exceed 2000 characters")
)

// Marketplace is a catalog category that groups apps. Apps reference it by Slug.
type Marketplace struct {
	ID              string
	Name            string
	Slug            string
	Description     string
	IsPublic        bool
	RequireApproval bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Slugify lower-cases s and collapses every run of characters outside a-z0-9
// into a single '-', trimming leading and trailing dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}

// Normalize trims user input and derives the slug from the name when blank.
// POST: Slug is non-empty whenever Name contains a letter or digit
func (m *Marketplace) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	m.Slug = strings.TrimSpace(m.Slug)
	if m.Slug == "" {
		m.Slug = Slugify(m.Name)
	}
}

// Validate checks if the Marketplace has valid data.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (m *Marketplace) Validate() error {
	if m.Name == "" {
		return ErrEmptyName
	}
	if len(m.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if m.Slug == "" {
		return ErrEmptySlug
	}
	if Slugify(m.Slug) != m.Slug {
		return ErrInvalidSlug
	}
	if len(m.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// Visibility returns "Public" or "Private".
func (m *Marketplace) Visibility() string {
	if m.IsPublic {
		return "Public"
	}
	return "Private"
}
