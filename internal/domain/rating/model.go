package rating

import (
	"errors"
	"strings"
	"time"
)

// Score bounds.
const (
	MinScore         = 1
	MaxScore         = 5
	MaxCommentLength = 2000
)

// Domain errors
var (
	ErrScoreOutOfRange = errors.New("rating must be between 1 and 5")
	ErrEmptyAppID      = errors.New("rating must belong to an app")
	ErrEmptyAccountID  = errors.New("rating must belong to an account")
	ErrCommentTooLong  = errors.New("comment cannot exceed 2000 characters")
)

// Rating is one account's score for an app.
type Rating struct {
	ID        string
	AppID     string
	AccountID string
	Score     int
	Comment   string
	CreatedAt time.Time
}

// Validate checks if the Rating has valid data.
// PRE: Rating struct is populated
// POST: Returns nil if valid, error otherwise
func (r *Rating) Validate() error {
	if strings.TrimSpace(r.AppID) == "" {
		return ErrEmptyAppID
	}
	if strings.TrimSpace(r.AccountID) == "" {
		return ErrEmptyAccountID
	}
	if r.Score < MinScore || r.Score > MaxScore {
		return ErrScoreOutOfRange
	}
	if len(r.Comment) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

// Summary aggregates the ratings of one app.
type Summary struct {
	Count   int
	Average float64
}

// Summarize averages scores. An empty slice has a zero Summary.
func Summarize(ratings []Rating) Summary {
	if len(ratings) == 0 {
		return Summary{}
	}
	total := 0
	for _, r := range ratings {
		total += r.Score
	}
	return Summary{Count: len(ratings), Average: float64(total) / float64(len(ratings))}
}
