// Package api provides HTTP handlers for connection CRUD.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gekyxme/relnodes/internal/connection"
	"github.com/gekyxme/relnodes/internal/geo"
	"github.com/gekyxme/relnodes/internal/middleware"
	"github.com/gekyxme/relnodes/internal/validate"
)

// CreateConnectionRequest represents the request body for POST /connections.
type CreateConnectionRequest struct {
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Company     *string  `json:"company,omitempty"`
	Position    *string  `json:"position,omitempty"`
	ProfileURL  *string  `json:"profileUrl,omitempty"`
	Email       *string  `json:"email,omitempty"`
	City        *string  `json:"city,omitempty"`
	Country     *string  `json:"country,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Tags        *string  `json:"tags,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
	ConnectedOn *string  `json:"connectedOn,omitempty"` // YYYY-MM-DD
}

// UpdateConnectionRequest represents the request body for PATCH /connections/{id}.
type UpdateConnectionRequest struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      *string  `json:"city,omitempty"`
	Country   *string  `json:"country,omitempty"`
	Tags      *string  `json:"tags,omitempty"`
	Notes     *string  `json:"notes,omitempty"`
}

// ListConnectionsResponse represents the response for GET /connections.
type ListConnectionsResponse struct {
	Connections []*connection.Connection `json:"connections"`
	Total       int                      `json:"total"`
	Pending     int                      `json:"pending"`
}

// ConnectionHandlers holds dependencies for connection HTTP handlers.
type ConnectionHandlers struct {
	conns connection.Repository
}

// NewConnectionHandlers creates a new ConnectionHandlers instance.
func NewConnectionHandlers(conns connection.Repository) *ConnectionHandlers {
	return &ConnectionHandlers{conns: conns}
}

// Collection dispatches /connections by method.
func (h *ConnectionHandlers) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// Item dispatches /connections/{id} by method.
func (h *ConnectionHandlers) Item(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/connections/")
	if id == "" || strings.Contains(id, "/") {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid URL path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPatch:
		h.patch(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}

// list handles GET /connections - all connections for the current user,
// newest first, with import/geocode counters.
func (h *ConnectionHandlers) list(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conns, err := h.conns.ListByUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to list connections", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	total, pending, err := h.conns.CountByUser(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to count connections", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	if conns == nil {
		conns = []*connection.Connection{}
	}
	response := ListConnectionsResponse{
		Connections: conns,
		Total:       total,
		Pending:     pending,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// create handles POST /connections - manual connection entry.
func (h *ConnectionHandlers) create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	firstName, err := validate.PersonName(req.FirstName)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "firstName is required and must be a valid name")
		return
	}
	lastName := strings.TrimSpace(req.LastName)
	if lastName != "" {
		if lastName, err = validate.PersonName(lastName); err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "lastName must be a valid name")
			return
		}
	}

	if msg := validateCoordinatePair(req.Latitude, req.Longitude); msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCoordinates)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCoordinates, msg)
		return
	}

	if req.Notes != nil {
		cleaned, err := validate.Notes(*req.Notes)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "notes exceed maximum length")
			return
		}
		req.Notes = &cleaned
	}

	conn := &connection.Connection{
		UserID:    userID,
		FirstName: firstName,
		LastName:  lastName,
		FullName:  strings.TrimSpace(firstName + " " + lastName),
		Company:   trimOptional(req.Company),
		Position:  trimOptional(req.Position),
		Email:     trimOptional(req.Email),
		City:      trimOptional(req.City),
		Country:   trimOptional(req.Country),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Notes:     req.Notes,
	}
	if req.ProfileURL != nil {
		conn.ProfileURL = connection.NormalizeProfileURL(*req.ProfileURL)
	}
	if req.Tags != nil {
		conn.Tags = connection.NormalizeTags(*req.Tags)
	}
	if req.ConnectedOn != nil {
		if t, err := time.Parse("2006-01-02", *req.ConnectedOn); err == nil {
			conn.ConnectedOn = &t
		}
	}

	if err := h.conns.Create(r.Context(), conn); err != nil {
		slog.ErrorContext(r.Context(), "failed to create connection", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(conn); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// get handles GET /connections/{id}.
func (h *ConnectionHandlers) get(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.GetUserID(r.Context())

	conn, err := h.conns.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Connection not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to get connection", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	// Other users' connections look like missing ones.
	if conn.UserID != userID {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Connection not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(conn); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// patch handles PATCH /connections/{id} - location, tags, notes.
func (h *ConnectionHandlers) patch(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	if msg := validateCoordinatePair(req.Latitude, req.Longitude); msg != "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCoordinates)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCoordinates, msg)
		return
	}
	if req.Notes != nil {
		cleaned, err := validate.Notes(*req.Notes)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "notes exceed maximum length")
			return
		}
		req.Notes = &cleaned
	}

	upd := connection.Update{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		City:      trimOptional(req.City),
		Country:   trimOptional(req.Country),
		Notes:     req.Notes,
	}
	if req.Tags != nil {
		upd.Tags = connection.NormalizeTags(*req.Tags)
	}

	conn, err := h.conns.Patch(r.Context(), id, userID, upd)
	if err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Connection not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to update connection", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(conn); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// delete handles DELETE /connections/{id}.
func (h *ConnectionHandlers) delete(w http.ResponseWriter, r *http.Request, id string) {
	userID := middleware.GetUserID(r.Context())

	if err := h.conns.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, connection.ErrConnectionNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Connection not found")
			return
		}
		slog.ErrorContext(r.Context(), "failed to delete connection", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// validateCoordinatePair returns an error message when latitude and
// longitude are half-set or out of range, or "" when acceptable.
func validateCoordinatePair(lat, lng *float64) string {
	if (lat == nil) != (lng == nil) {
		return "latitude and longitude must be set together"
	}
	if lat == nil {
		return ""
	}
	if !geo.ValidLat(*lat) || !geo.ValidLng(*lng) {
		return "latitude must be in [-90,90] and longitude in [-180,180]"
	}
	return ""
}

// trimOptional trims a pointer string, returning nil when it trims empty.
func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
