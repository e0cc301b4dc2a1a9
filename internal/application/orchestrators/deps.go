package orchestrators

import (
	"time"

	"github.com/google/uuid"
)

// clock returns now, or time.Now when now is nil.
func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// idGen returns gen, or a random UUID generator when gen is nil.
func idGen(gen func() string) func() string {
	if gen == nil {
		return uuid.NewString
	}
	return gen
}
