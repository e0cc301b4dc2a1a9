package app

import (
	"errors"
	"strings"
	"time"
)

// Version errors
var (
	ErrEmptyVersion = errors.New("version is required")
	ErrEmptyAppID   = errors.New("version must belong to an app")
)

// Version is one release of an app. ReleaseNotes are markdown.
type Version struct {
	ID           string
	AppID        string
	Version      string
	ReleaseNotes string
	CreatedAt    time.Time
}

// Validate checks if the Version has valid data.
// PRE: Version struct is populated
// POST: Returns nil if valid, error otherwise
func (v *Version) Validate() error {
	if strings.TrimSpace(v.AppID) == "" {
		return ErrEmptyAppID
	}
	if strings.TrimSpace(v.Version) == "" {
		return ErrEmptyVersion
	}
	return nil
}
