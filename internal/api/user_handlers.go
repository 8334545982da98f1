// Package api provides HTTP handlers for user home-location management.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gekyxme/relnodes/internal/geo"
	"github.com/gekyxme/relnodes/internal/middleware"
	"github.com/gekyxme/relnodes/internal/user"
)

// UpdateLocationRequest represents the request body for PATCH /user/location.
type UpdateLocationRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	City      *string  `json:"city,omitempty"`
	Country   *string  `json:"country,omitempty"`
}

// LocationResponse represents the response for GET /user/location.
type LocationResponse struct {
	HasLocation bool           `json:"hasLocation"`
	Location    *user.Location `json:"location,omitempty"`
}

// UserHandlers holds dependencies for user HTTP handlers.
type UserHandlers struct {
	users user.Repository
}

// NewUserHandlers creates a new UserHandlers instance.
func NewUserHandlers(users user.Repository) *UserHandlers {
	return &UserHandlers{users: users}
}

// Location dispatches /user/location by method.
func (h *UserHandlers) Location(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getLocation(w, r)
	case http.MethodPatch:
		h.updateLocation(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// getLocation handles GET /user/location.
func (h *UserHandlers) getLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	u, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to look up user", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	response := LocationResponse{HasLocation: u.HasLocation()}
	if u.HasLocation() {
		response.Location = &user.Location{
			Latitude:  *u.Latitude,
			Longitude: *u.Longitude,
			City:      u.City,
			Country:   u.Country,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// updateLocation handles PATCH /user/location.
func (h *UserHandlers) updateLocation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if req.Latitude == nil || req.Longitude == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCoordinates)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCoordinates, "latitude and longitude are required")
		return
	}
	if !geo.ValidLat(*req.Latitude) || !geo.ValidLng(*req.Longitude) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCoordinates)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCoordinates, "latitude must be in [-90,90] and longitude in [-180,180]")
		return
	}

	loc := user.Location{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		City:      req.City,
		Country:   req.Country,
	}
	if err := h.users.UpdateLocation(r.Context(), userID, loc); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "User not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update location", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	response := LocationResponse{HasLocation: true, Location: &loc}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
