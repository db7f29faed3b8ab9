package schedule

import (
	"errors"
	"time"
)

var (
	// ErrInvalidDateTime marks user-supplied date/time components that are out
	// of range or name a calendar date that does not exist (e.g. Feb 30).
	ErrInvalidDateTime = errors.New("invalid date or time")

	// ErrPastDateTime marks a resolved instant that is not in the future.
	ErrPastDateTime = errors.New("date and time must be in the future")
)

// Resolver converts separated local date/time components into an absolute
// instant in a fixed timezone. It has no side effects; Now is injectable so
// tests can pin the clock.
type Resolver struct {
	Location *time.Location
	Now      func() time.Time
}

// NewResolver returns a Resolver for the named IANA zone. An empty name
// selects the process-local zone.
func NewResolver(zone string) (*Resolver, error) {
	loc := time.Local
	if zone != "" {
		var err error
		loc, err = time.LoadLocation(zone)
		if err != nil {
			return nil, err
		}
	}
	return &Resolver{Location: loc, Now: time.Now}, nil
}

// Resolve validates the components, builds the instant in the resolver's zone
// and rejects instants that are not strictly in the future.
func (r *Resolver) Resolve(day, month, year, hour, minute int) (time.Time, error) {
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, ErrInvalidDateTime
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, ErrInvalidDateTime
	}

	t := time.Date(year, time.Month(month), day, hour, minute, 0, 0, r.Location)

	// time.Date normalizes impossible dates (Feb 30 becomes Mar 1/2); a
	// round-trip check catches that instead of silently accepting it.
	if t.Day() != day || t.Month() != time.Month(month) || t.Year() != year {
		return time.Time{}, ErrInvalidDateTime
	}

	if !t.After(r.Now()) {
		return time.Time{}, ErrPastDateTime
	}
	return t, nil
}
