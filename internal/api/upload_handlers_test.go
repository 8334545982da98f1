package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gekyxme/relnodes/internal/connection"
	"github.com/gekyxme/relnodes/internal/importer"
	"github.com/gekyxme/relnodes/internal/middleware"
)

const sampleExport = "Notes:\n\"Some emails may be missing.\"\n\n" +
	"First Name,Last Name,URL,Email Address,Company,Position,Connected On\n" +
	"Jane,Doe,https://www.linkedin.com/in/jane-doe,jane@example.com,Acme,Engineer,02 Sep 2023\n" +
	"John,Smith,,,Globex,,\n"

func multipartUpload(t *testing.T, csv string, userID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "Connections.csv")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write([]byte(csv)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req.WithContext(middleware.SetUserID(req.Context(), userID))
}

func TestUpload_ImportsExport(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	w := httptest.NewRecorder()
	handlers.Upload(w, multipartUpload(t, sampleExport, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var response UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 2 || response.Skipped != 0 {
		t.Errorf("expected count=2 skipped=0, got count=%d skipped=%d", response.Count, response.Skipped)
	}
	if response.Message == "" {
		t.Error("expected a human-readable message")
	}

	conns, err := repo.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("failed to list connections: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("expected 2 stored connections, got %d", len(conns))
	}
}

// Re-uploading the same file must skip every row.
func TestUpload_Idempotent(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	w := httptest.NewRecorder()
	handlers.Upload(w, multipartUpload(t, sampleExport, "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first upload failed: %d", w.Code)
	}

	w = httptest.NewRecorder()
	handlers.Upload(w, multipartUpload(t, sampleExport, "user-1"))
	if w.Code != http.StatusOK {
		t.Fatalf("second upload failed: %d", w.Code)
	}

	var response UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Count != 0 || response.Skipped != 2 {
		t.Errorf("expected count=0 skipped=2, got count=%d skipped=%d", response.Count, response.Skipped)
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader([]byte(sampleExport)))
	req.Header.Set("Content-Type", "text/csv")
	req = req.WithContext(middleware.SetUserID(req.Context(), "user-1"))

	w := httptest.NewRecorder()
	handlers.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestUpload_UnparsableExport(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	w := httptest.NewRecorder()
	handlers.Upload(w, multipartUpload(t, "line1\nline2\nline3\n\x00\xff\xfe binary", "user-1"))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error.Code != ErrCodeInvalidExport {
		t.Errorf("expected code %q, got %q", ErrCodeInvalidExport, response.Error.Code)
	}
}

func TestUpload_MethodNotAllowed(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/upload", nil)
	w := httptest.NewRecorder()
	handlers.Upload(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

// A filename without a .csv extension is rejected regardless of the declared
// content type.
func TestUpload_RejectsNonCSVExtension(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="Connections.txt"`)
	header.Set("Content-Type", "text/csv")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := part.Write([]byte(sampleExport)); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(middleware.SetUserID(req.Context(), "user-1"))

	w := httptest.NewRecorder()
	handlers.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error.Code != ErrCodeValidation {
		t.Errorf("expected code %q, got %q", ErrCodeValidation, response.Error.Code)
	}
}

// The configured cap, not the importer default, bounds accepted uploads.
func TestUpload_ConfiguredSizeLimit(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 1<<20)

	oversized := sampleExport + strings.Repeat("x", 1<<20)
	w := httptest.NewRecorder()
	handlers.Upload(w, multipartUpload(t, oversized, "user-1"))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", w.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error.Code != ErrCodePayloadTooLarge {
		t.Errorf("expected code %q, got %q", ErrCodePayloadTooLarge, response.Error.Code)
	}
	if !strings.Contains(response.Error.Message, "1 MB") {
		t.Errorf("expected message to name the configured 1 MB cap, got %q", response.Error.Message)
	}
}

// A part that declares a non-CSV content type is rejected before parsing.
func TestUpload_RejectsNonCSVContentType(t *testing.T) {
	repo := connection.NewInMemoryRepository()
	handlers := NewUploadHandlers(importer.NewEngine(repo, nil), nil, nil, 0)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	header.Set("Content-Type", "image/png")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := part.Write([]byte("not a csv")); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(middleware.SetUserID(req.Context(), "user-1"))

	w := httptest.NewRecorder()
	handlers.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error.Code != ErrCodeValidation {
		t.Errorf("expected code %q, got %q", ErrCodeValidation, response.Error.Code)
	}
}
