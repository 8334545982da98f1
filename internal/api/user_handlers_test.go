package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gekyxme/relnodes/internal/middleware"
	"github.com/gekyxme/relnodes/internal/user"
)

func seedUser(t *testing.T, users *user.InMemoryRepository) *user.User {
	t.Helper()
	u := &user.User{Email: "jane@example.com", PasswordHash: "x"}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

func authedRequest(method, path string, body []byte, userID string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	return req.WithContext(middleware.SetUserID(req.Context(), userID))
}

func TestLocation_GetWithoutLocation(t *testing.T) {
	users := user.NewInMemoryRepository()
	u := seedUser(t, users)
	handlers := NewUserHandlers(users)

	w := httptest.NewRecorder()
	handlers.Location(w, authedRequest(http.MethodGet, "/user/location", nil, u.ID))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var response LocationResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.HasLocation {
		t.Error("expected hasLocation to be false")
	}
	if response.Location != nil {
		t.Error("expected no location payload")
	}
}

func TestLocation_UpdateThenGet(t *testing.T) {
	users := user.NewInMemoryRepository()
	u := seedUser(t, users)
	handlers := NewUserHandlers(users)

	body, _ := json.Marshal(map[string]any{
		"latitude":  52.52,
		"longitude": 13.405,
		"city":      "Berlin",
		"country":   "Germany",
	})
	w := httptest.NewRecorder()
	handlers.Location(w, authedRequest(http.MethodPatch, "/user/location", body, u.ID))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handlers.Location(w, authedRequest(http.MethodGet, "/user/location", nil, u.ID))

	var response LocationResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.HasLocation || response.Location == nil {
		t.Fatal("expected a stored location")
	}
	if response.Location.Latitude != 52.52 || response.Location.Longitude != 13.405 {
		t.Errorf("unexpected coordinates %+v", response.Location)
	}
	if response.Location.City == nil || *response.Location.City != "Berlin" {
		t.Errorf("unexpected city %+v", response.Location.City)
	}
}

func TestLocation_UpdateValidation(t *testing.T) {
	users := user.NewInMemoryRepository()
	u := seedUser(t, users)
	handlers := NewUserHandlers(users)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing longitude", map[string]any{"latitude": 10.0}},
		{"missing latitude", map[string]any{"longitude": 10.0}},
		{"latitude too high", map[string]any{"latitude": 90.5, "longitude": 0.0}},
		{"latitude too low", map[string]any{"latitude": -91.0, "longitude": 0.0}},
		{"longitude too high", map[string]any{"latitude": 0.0, "longitude": 180.5}},
		{"longitude too low", map[string]any{"latitude": 0.0, "longitude": -181.0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			w := httptest.NewRecorder()
			handlers.Location(w, authedRequest(http.MethodPatch, "/user/location", body, u.ID))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
		})
	}
}

func TestLocation_MethodNotAllowed(t *testing.T) {
	users := user.NewInMemoryRepository()
	u := seedUser(t, users)
	handlers := NewUserHandlers(users)

	w := httptest.NewRecorder()
	handlers.Location(w, authedRequest(http.MethodDelete, "/user/location", nil, u.ID))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestLocation_UnknownUser(t *testing.T) {
	users := user.NewInMemoryRepository()
	handlers := NewUserHandlers(users)

	w := httptest.NewRecorder()
	handlers.Location(w, authedRequest(http.MethodGet, "/user/location", nil, "missing-user"))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}
