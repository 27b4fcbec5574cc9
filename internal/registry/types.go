package registry

import (
	"errors"
	"strings"
	"time"
)

// Status is the stored lifecycle state of a connection record.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

var (
	// ErrNotFound is returned by a Store when no record exists for an email.
	ErrNotFound = errors.New("connection not found")

	// ErrInvalidEmail is returned for an empty user email.
	ErrInvalidEmail = errors.New("user email is required")
)

// DefaultTokenLifetime applies when the provider does not report an expiry.
const DefaultTokenLifetime = time.Hour

// Record is the per-user connection state. At most one exists per UserEmail.
type Record struct {
	ConnectionID string    `json:"connectionId"`
	UserEmail    string    `json:"userEmail"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// EffectiveStatus reports the status as of now: an active record whose
// expiry has passed reads as expired.
func (r *Record) EffectiveStatus(now time.Time) Status {
	if r.Status == StatusActive && !r.ExpiresAt.After(now) {
		return StatusExpired
	}
	return r.Status
}

// Usable reports whether the record is active and unexpired at now.
func (r *Record) Usable(now time.Time) bool {
	return r.EffectiveStatus(now) == StatusActive
}

// Clone returns a copy safe to hand to callers.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Tokens is the token set produced by an OAuth code exchange or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the lifetime reported by the provider. Ignored when Expiry is set.
	ExpiresIn time.Duration
	Expiry    time.Time
}

func (t Tokens) expiresAt(now time.Time) time.Time {
	switch {
	case !t.Expiry.IsZero():
		return t.Expiry
	case t.ExpiresIn > 0:
		return now.Add(t.ExpiresIn)
	default:
		return now.Add(DefaultTokenLifetime)
	}
}

// Summary is a point-in-time count of records.
type Summary struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Revoked int `json:"revoked"`
}

// NormalizeEmail trims and lower-cases an email so it can serve as the registry key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
