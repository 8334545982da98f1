// Package api provides HTTP handlers for the geocoding pipeline.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gekyxme/relnodes/internal/geocode"
	"github.com/gekyxme/relnodes/internal/middleware"
)

// DefaultBatchBudget is the fallback per-request time allowance for one
// resolver batch when no budget is configured.
const DefaultBatchBudget = 2 * time.Minute

// GeocodeHandlers holds dependencies for geocode HTTP handlers.
type GeocodeHandlers struct {
	resolver    *geocode.BatchResolver
	batchBudget time.Duration
}

// NewGeocodeHandlers creates a new GeocodeHandlers instance. batchBudget is
// how long one batch may take end to end; pass 0 for DefaultBatchBudget.
func NewGeocodeHandlers(resolver *geocode.BatchResolver, batchBudget time.Duration) *GeocodeHandlers {
	if batchBudget <= 0 {
		batchBudget = DefaultBatchBudget
	}
	return &GeocodeHandlers{resolver: resolver, batchBudget: batchBudget}
}

// Batch handles POST /geocode - runs one bounded resolver batch. Each call
// is self-contained; clients poll until done is true or processed is 0.
func (h *GeocodeHandlers) Batch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	// A cold batch waits out the paced external lookups, which can run past
	// the server's write timeout. Extend the deadline for this response only.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(h.batchBudget)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.WarnContext(r.Context(), "failed to extend write deadline", "error", err)
	}

	result, err := h.resolver.Resolve(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "geocode batch failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Geocoding batch failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
