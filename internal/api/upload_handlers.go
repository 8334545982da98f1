// Package api provides HTTP handlers for connection export uploads.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gekyxme/relnodes/internal/archive"
	"github.com/gekyxme/relnodes/internal/importer"
	"github.com/gekyxme/relnodes/internal/jobs"
	"github.com/gekyxme/relnodes/internal/middleware"
	"github.com/gekyxme/relnodes/internal/validate"
)

// archiveTimeout bounds the background archive write after the import
// response has already been sent.
const archiveTimeout = 30 * time.Second

// UploadResponse represents the response for POST /upload.
type UploadResponse struct {
	Count   int    `json:"count"`
	Skipped int    `json:"skipped"`
	Message string `json:"message"`
}

// UploadHandlers holds dependencies for upload HTTP handlers. The archive
// service and metrics are optional.
type UploadHandlers struct {
	engine         *importer.Engine
	archiveSvc     *archive.Service
	metrics        *jobs.Metrics
	maxUploadBytes int64
}

// NewUploadHandlers creates a new UploadHandlers instance. archiveSvc and
// metrics may be nil; maxUploadBytes of 0 falls back to the importer's
// default cap.
func NewUploadHandlers(engine *importer.Engine, archiveSvc *archive.Service, metrics *jobs.Metrics, maxUploadBytes int64) *UploadHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = importer.MaxUploadBytes
	}
	return &UploadHandlers{
		engine:         engine,
		archiveSvc:     archiveSvc,
		metrics:        metrics,
		maxUploadBytes: maxUploadBytes,
	}
}

// sizeLimitMessage names the configured cap in the client-facing error.
func (h *UploadHandlers) sizeLimitMessage() string {
	return fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUploadBytes>>20)
}

// Upload handles POST /upload - parses a multipart connections export and
// imports it for the current user.
func (h *UploadHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	userID := middleware.GetUserID(r.Context())
	start := time.Now()

	// Multipart framing adds overhead beyond the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, h.sizeLimitMessage())
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Request must be multipart/form-data with a \"file\" field")
		return
	}
	defer file.Close()

	if _, err := validate.CSVFile(header.Filename, header.Header.Get("Content-Type"), header.Size, h.maxUploadBytes); err != nil {
		if errors.Is(err, validate.ErrFileTooLarge) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, h.sizeLimitMessage())
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Upload must be a .csv file")
		return
	}

	// The raw bytes are needed twice: once for parsing, once for the
	// best-effort archive copy.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read upload", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read uploaded file")
		return
	}

	candidates, err := importer.NormalizeLimit(bytes.NewReader(data), h.maxUploadBytes)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrPayloadTooLarge):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, h.sizeLimitMessage())
		case errors.Is(err, importer.ErrParse):
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidExport)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidExport, "File could not be parsed as a LinkedIn connections export")
		default:
			slog.ErrorContext(r.Context(), "failed to normalize upload", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		}
		h.recordImport(jobs.StatusFailure, start)
		return
	}

	result, err := h.engine.Import(r.Context(), userID, candidates)
	if err != nil {
		slog.ErrorContext(r.Context(), "import failed", "error", err,
			"imported", result.Count,
			"skipped", result.Skipped,
		)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Import failed partway; re-uploading the same file is safe")
		h.recordImport(jobs.StatusFailure, start)
		return
	}
	h.recordImport(jobs.StatusSuccess, start)

	h.archiveAsync(userID, data)

	slog.InfoContext(r.Context(), "import complete",
		"user_id", userID,
		"imported", result.Count,
		"skipped", result.Skipped,
	)

	response := UploadResponse{
		Count:   result.Count,
		Skipped: result.Skipped,
		Message: fmt.Sprintf("Imported %d connections (%d duplicates skipped)", result.Count, result.Skipped),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// archiveAsync stores the raw export in object storage without blocking the
// response. Archive failures are logged and otherwise ignored.
func (h *UploadHandlers) archiveAsync(userID string, data []byte) {
	if h.archiveSvc == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		key, err := h.archiveSvc.Store(ctx, userID, data)
		if err != nil {
			slog.Error("failed to archive uploaded export",
				"error", err,
				"user_id", userID,
			)
			return
		}
		slog.Info("archived uploaded export", "user_id", userID, "key", key)
	}()
}

func (h *UploadHandlers) recordImport(status string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.IncJobsTotal(jobs.JobTypeCSVImport, status)
	h.metrics.ObserveJobDuration(jobs.JobTypeCSVImport, time.Since(start).Seconds())
}
