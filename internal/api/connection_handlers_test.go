package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gekyxme/relnodes/internal/connection"
)

func seedConnection(t *testing.T, repo connection.Repository, userID, firstName string) *connection.Connection {
	t.Helper()
	conn := &connection.Connection{
		UserID:    userID,
		FirstName: firstName,
		LastName:  "Doe",
		FullName:  firstName + " Doe",
	}
	if err := repo.Create(context.Background(), conn); err != nil {
		t.Fatalf("failed to seed connection: %v", err)
	}
	return conn
}

func TestConnections_ListEmpty(t *testing.T) {
	handlers := NewConnectionHandlers(connection.NewInMemoryRepository())

	w := httptest.NewRecorder()
	handlers.Collection(w, authedRequest(http.MethodGet, "/connections", nil, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var response ListConnectionsResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Connections == nil {
		t.Error("expected empty array, not null")
	}
	if response.Total != 0 || response.Pending != 0 {
		t.Errorf("expected zero counters, got total=%d pending=%d", response.Total, response.Pending)
	}
}

func TestConnections_ListScopedToOwner(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	seedConnection(t, repo, "user-1", "Jane")
	seedConnection(t, repo, "user-2", "John")
	handlers := NewConnectionHandlers(repo)

	w := httptest.NewRecorder()
	handlers.Collection(w, authedRequest(http.MethodGet, "/connections", nil, "user-1"))

	var response ListConnectionsResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Connections) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(response.Connections))
	}
	if response.Connections[0].FirstName != "Jane" {
		t.Errorf("expected Jane, got %s", response.Connections[0].FirstName)
	}
}

func TestConnections_Create(t *testing.T) {
	handlers := NewConnectionHandlers(connection.NewInMemoryRepository())

	body, _ := json.Marshal(CreateConnectionRequest{
		FirstName:  "  Jane  ",
		LastName:   "Doe",
		Company:    strPointer("Acme Corp"),
		ProfileURL: strPointer("https://www.linkedin.com/in/jane-doe"),
		Tags:       strPointer("Recruiter, unknown-tag, mentor"),
	})
	w := httptest.NewRecorder()
	handlers.Collection(w, authedRequest(http.MethodPost, "/connections", body, "user-1"))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var conn connection.Connection
	if err := json.NewDecoder(w.Body).Decode(&conn); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if conn.ID == "" {
		t.Error("expected generated ID")
	}
	if conn.FirstName != "Jane" {
		t.Errorf("expected trimmed first name, got %q", conn.FirstName)
	}
	if conn.FullName != "Jane Doe" {
		t.Errorf("unexpected full name %q", conn.FullName)
	}
	if conn.ProfileURL == nil {
		t.Error("expected profile URL to survive normalization")
	}
	if conn.Tags == nil || *conn.Tags != "recruiter,mentor" {
		t.Errorf("expected recognized tags only, got %v", conn.Tags)
	}
	if conn.Geocoded() {
		t.Error("manual create without coordinates must leave the row pending")
	}
}

func TestConnections_CreateRequiresFirstName(t *testing.T) {
	handlers := NewConnectionHandlers(connection.NewInMemoryRepository())

	body, _ := json.Marshal(CreateConnectionRequest{FirstName: "   ", LastName: "Doe"})
	w := httptest.NewRecorder()
	handlers.Collection(w, authedRequest(http.MethodPost, "/connections", body, "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestConnections_CreateCoordinateValidation(t *testing.T) {
	handlers := NewConnectionHandlers(connection.NewInMemoryRepository())

	lat := 52.52
	body, _ := json.Marshal(CreateConnectionRequest{
		FirstName: "Jane",
		Latitude:  &lat, // missing longitude
	})
	w := httptest.NewRecorder()
	handlers.Collection(w, authedRequest(http.MethodPost, "/connections", body, "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error.Code != ErrCodeInvalidCoordinates {
		t.Errorf("expected code %q, got %q", ErrCodeInvalidCoordinates, response.Error.Code)
	}
}

func TestConnections_Get(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	conn := seedConnection(t, repo, "user-1", "Jane")
	handlers := NewConnectionHandlers(repo)

	w := httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodGet, "/connections/"+conn.ID, nil, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
}

// Foreign connections must be indistinguishable from missing ones.
func TestConnections_GetOtherOwner(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	conn := seedConnection(t, repo, "user-1", "Jane")
	handlers := NewConnectionHandlers(repo)

	w := httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodGet, "/connections/"+conn.ID, nil, "user-2"))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestConnections_Patch(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	conn := seedConnection(t, repo, "user-1", "Jane")
	handlers := NewConnectionHandlers(repo)

	body, _ := json.Marshal(map[string]any{
		"latitude":  48.8566,
		"longitude": 2.3522,
		"city":      "Paris",
		"notes":     "met at conference",
	})
	w := httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodPatch, "/connections/"+conn.ID, body, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var updated connection.Connection
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if updated.Latitude == nil || *updated.Latitude != 48.8566 {
		t.Errorf("unexpected latitude %v", updated.Latitude)
	}
	if updated.Notes == nil || *updated.Notes != "met at conference" {
		t.Errorf("unexpected notes %v", updated.Notes)
	}
}

func TestConnections_PatchOtherOwner(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	conn := seedConnection(t, repo, "user-1", "Jane")
	handlers := NewConnectionHandlers(repo)

	body, _ := json.Marshal(map[string]any{"notes": "hijacked"})
	w := httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodPatch, "/connections/"+conn.ID, body, "user-2"))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestConnections_Delete(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	conn := seedConnection(t, repo, "user-1", "Jane")
	handlers := NewConnectionHandlers(repo)

	w := httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodDelete, "/connections/"+conn.ID, nil, "user-1"))

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodGet, "/connections/"+conn.ID, nil, "user-1"))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", w.Code)
	}
}

func TestConnections_ItemInvalidPath(t *testing.T) {
	handlers := NewConnectionHandlers(connection.NewInMemoryRepository())

	w := httptest.NewRecorder()
	handlers.Item(w, authedRequest(http.MethodGet, "/connections/", nil, "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func strPointer(s string) *string { return &s }
