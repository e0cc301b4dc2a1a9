package app

import (
	"errors"
	"path"
	"strconv"
	"strings"
	"time"
)

// Status constants. Status is free text; these are the values the UI offers.
const (
	StatusAvailable  = "available"
	StatusBeta       = "beta"
	StatusDeprecated = "deprecated"
)

// DefaultFileExt is used for uploads whose name has no extension.
const DefaultFileExt = "bin"

// Max length constants for user-editable fields.
const (
	MaxNameLength        = 200
	MaxDescriptionLength = 20000
)

// Domain errors
var (
	ErrEmptyName          = errors.New("app name is required")
	ErrNameTooLong        = errors.New("app name cannot exceed 200 characters")
	ErrEmptyCategory      = errors.New("app category is required")
	ErrDescriptionTooLong = errors.New("app description cannot exceed 20000 characters")
	ErrNotFound           = errors.New("app not found")
)

// App is a line-of-business application listed in a marketplace.
// Description and SystemRequirements are markdown.
type App struct {
	ID                 string
	Name               string
	Description        string
	Image              string
	Status             string
	CategorySlug       string
	Version            string
	Developer          string
	SystemRequirements string
	FilePath           string
	FileName           string
	FileSize           int64
	FileType           string
	DownloadCount      int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Normalize trims user input and applies the default status.
func (a *App) Normalize() {
	a.Name = strings.TrimSpace(a.Name)
	a.Description = strings.TrimSpace(a.Description)
	a.Image = strings.TrimSpace(a.Image)
	a.Status = strings.TrimSpace(a.Status)
	a.CategorySlug = strings.TrimSpace(a.CategorySlug)
	a.Version = strings.TrimSpace(a.Version)
	a.Developer = strings.TrimSpace(a.Developer)
	a.SystemRequirements = strings.TrimSpace(a.SystemRequirements)
	if a.Status == "" {
		a.Status = StatusAvailable
	}
}

// Validate checks if the App has valid data.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (a *App) Validate() error {
	if a.Name == "" {
		return ErrEmptyName
	}
	if len(a.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if a.CategorySlug == "" {
		return ErrEmptyCategory
	}
	if len(a.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// HasFile reports whether an uploaded file is attached.
func (a *App) HasFile() bool {
	return a.FilePath != ""
}

// Matches reports whether query occurs, case-insensitively, in the name or
// description. An empty query matches everything.
func (a *App) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	hay := strings.ToLower(a.Name + " " + a.Description)
	return strings.Contains(hay, q)
}

// FileKey returns the object key for an upload of fileName to app appID.
// POST: key has the form apps/<appID>/<unixMillis>.<ext>
func FileKey(appID, fileName string, now time.Time) string {
	ext := DefaultFileExt
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 && i < len(fileName)-1 {
		ext = fileName[i+1:]
	}
	return path.Join("apps", appID, strconv.FormatInt(now.UnixMilli(), 10)+"."+ext)
}

// FileInfo is the metadata stored on the app row after an upload.
type FileInfo struct {
	Path string
	Name string
	Size int64
	Type string
}
