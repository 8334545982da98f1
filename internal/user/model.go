// Package user provides the user model and repository for account and
// home-location management.
package user

import (
	"errors"
	"time"
)

// Common errors for user operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// User represents an account owning a set of imported connections.
// Latitude/Longitude hold the optional home location used as the origin
// point for visualization arcs.
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         *string  `json:"name,omitempty"`
	PasswordHash string   `json:"-"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	City         *string  `json:"city,omitempty"`
	Country      *string  `json:"country,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocation reports whether the user has set a home location.
func (u *User) HasLocation() bool {
	return u.Latitude != nil && u.Longitude != nil
}

// Location is the home-location payload returned by the user location API.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	City      *string `json:"city,omitempty"`
	Country   *string `json:"country,omitempty"`
}
