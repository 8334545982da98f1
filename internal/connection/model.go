// Package connection provides the imported-contact model and repository,
// including the duplicate-identity rule used by CSV import and the pending
// selection used by the geocode batch resolver.
package connection

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Common errors for connection operations.
var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrCoordinatePair     = errors.New("latitude and longitude must be set together")
)

// AllowedTags is the set of recognized connection tags.
var AllowedTags = map[string]bool{
	"recruiter":      true,
	"hiring-manager": true,
	"referral":       true,
	"mentor":         true,
	"friend":         true,
	"colleague":      true,
	"alumni":         true,
}

// Connection represents one imported professional contact owned by a user.
// Latitude and longitude are either both set or both nil; a connection is
// considered geocoded when latitude is non-nil.
type Connection struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	FullName    string     `json:"full_name"`
	Company     *string    `json:"company,omitempty"`
	Position    *string    `json:"position,omitempty"`
	ProfileURL  *string    `json:"profile_url,omitempty"`
	Email       *string    `json:"email,omitempty"`
	City        *string    `json:"city,omitempty"`
	Country     *string    `json:"country,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Tags        *string    `json:"tags,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	ConnectedOn *time.Time `json:"connected_on,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Geocoded reports whether the connection has resolved coordinates.
func (c *Connection) Geocoded() bool {
	return c.Latitude != nil
}

// ValidateCoordinates checks the both-or-neither coordinate invariant.
func (c *Connection) ValidateCoordinates() error {
	if (c.Latitude == nil) != (c.Longitude == nil) {
		return ErrCoordinatePair
	}
	return nil
}

// NormalizeProfileURL validates that raw looks like a LinkedIn profile URL.
// Returns the trimmed URL, or nil when the value does not qualify; callers
// discard unusable profile URLs rather than rejecting the whole record.
func NormalizeProfileURL(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return nil
	}
	if !strings.HasPrefix(u.Path, "/in/") {
		return nil
	}
	return &trimmed
}

// NormalizeTags filters a comma-joined tag string down to recognized tags.
// Returns nil when no recognized tags remain.
func NormalizeTags(raw string) *string {
	var kept []string
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.TrimSpace(strings.ToLower(tag))
		if AllowedTags[tag] {
			kept = append(kept, tag)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	joined := strings.Join(kept, ",")
	return &joined
}
