package heldsale

import (
	"fmt"
	"strings"
	"time"
)

// ExpiryMode selects how a new hold's expiry is computed.
type ExpiryMode string

const (
	// ExpiryTTL expires holds a fixed duration after creation.
	ExpiryTTL ExpiryMode = "ttl"
	// ExpiryShift expires holds at the next end of shift.
	ExpiryShift ExpiryMode = "shift"
	// ExpiryNever keeps holds until recalled or deleted.
	ExpiryNever ExpiryMode = "never"
)

// DefaultTTL is used when ttl mode is configured without a duration.
const DefaultTTL = 24 * time.Hour

// ExpiryPolicy computes expires_at for new holds.
type ExpiryPolicy struct {
	Mode ExpiryMode
	TTL  time.Duration
	// ShiftEnd is the offset from midnight in Location.
	ShiftEnd time.Duration
	Location *time.Location
}

// ExpiresAt returns the expiry of a hold created at createdAt, or nil for no expiry.
func (p ExpiryPolicy) ExpiresAt(createdAt time.Time) *time.Time {
	switch p.Mode {
	case ExpiryNever:
		return nil
	case ExpiryShift:
		loc := p.Location
		if loc == nil {
			loc = time.UTC
		}
		local := createdAt.In(loc)
		midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		end := midnight.Add(p.ShiftEnd)
		if !end.After(local) {
			end = midnight.AddDate(0, 0, 1).Add(p.ShiftEnd)
		}
		at := end.UTC()
		return &at
	default:
		ttl := p.TTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		at := createdAt.Add(ttl)
		return &at
	}
}

// ParseExpiryPolicy builds a policy from configuration values.
// shiftEnd uses HH:MM and is only required in shift mode.
func ParseExpiryPolicy(mode string, ttl time.Duration, shiftEnd string) (ExpiryPolicy, error) {
	p := ExpiryPolicy{Mode: ExpiryMode(strings.ToLower(strings.TrimSpace(mode))), TTL: ttl, Location: time.UTC}
	if p.Mode == "" {
		p.Mode = ExpiryTTL
	}

	switch p.Mode {
	case ExpiryTTL, ExpiryNever:
		return p, nil
	case ExpiryShift:
		t, err := time.Parse("15:04", strings.TrimSpace(shiftEnd))
		if err != nil {
			return ExpiryPolicy{}, fmt.Errorf("invalid shift end %q: want HH:MM", shiftEnd)
		}
		p.ShiftEnd = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
		return p, nil
	default:
		return ExpiryPolicy{}, fmt.Errorf("unknown hold expiry mode %q", mode)
	}
}
