// Package api provides the WebSocket endpoint streaming geocoding progress.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/gekyxme/relnodes/internal/geocode"
	"github.com/gekyxme/relnodes/internal/middleware"
)

// ProgressFrame is one WebSocket message on the progress stream. Progress
// frames carry per-batch counters; the final summary frame sets Done and
// the run totals.
type ProgressFrame struct {
	Type    string `json:"type"` // "progress", "summary" or "error"
	Done    bool   `json:"done"`
	Message string `json:"message,omitempty"`

	BatchProcessed int `json:"batch_processed,omitempty"`
	BatchUpdated   int `json:"batch_updated,omitempty"`
	Success        int `json:"success"`
	Attempted      int `json:"attempted,omitempty"`
	Failed         int `json:"failed,omitempty"`
}

// ProgressWebSocketHandlers holds dependencies for the geocoding progress
// stream.
type ProgressWebSocketHandlers struct {
	driver   *geocode.Driver
	upgrader websocket.Upgrader
}

// NewProgressWebSocketHandlers creates a new ProgressWebSocketHandlers
// instance. allowedOrigins is the browser origin allowlist shared with the
// CORS middleware; requests without an Origin header (non-browser clients)
// always pass.
func NewProgressWebSocketHandlers(driver *geocode.Driver, allowedOrigins []string) *ProgressWebSocketHandlers {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimSpace(origin))] = true
	}
	return &ProgressWebSocketHandlers{
		driver: driver,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return allowed[strings.ToLower(origin)]
			},
		},
	}
}

// Stream handles GET /geocode/progress. It upgrades to a WebSocket, runs
// the progress driver server-side and emits one frame per batch, then a
// summary frame and a normal close. A client disconnect cancels the run;
// pending rows are picked up by the next one.
func (h *ProgressWebSocketHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.driver.State() == geocode.StateRunning {
		errCtx := middleware.SetErrorCode(ctx, ErrCodeGeocodeRunning)
		WriteError(w, errCtx, http.StatusConflict, ErrCodeGeocodeRunning, "A geocoding run is already in progress")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}
	defer conn.Close()

	requestID := middleware.GetRequestID(ctx)
	slog.InfoContext(ctx, "geocoding progress stream opened", "request_id", requestID)

	// Reads only detect disconnection; clients are not expected to send
	// anything.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	summary, err := h.driver.Run(runCtx, func(p geocode.Progress) {
		frame := ProgressFrame{
			Type:           "progress",
			BatchProcessed: p.BatchProcessed,
			BatchUpdated:   p.BatchUpdated,
			Success:        p.Success,
			Attempted:      p.Attempted,
		}
		if err := conn.WriteJSON(frame); err != nil {
			slog.WarnContext(runCtx, "failed to write progress frame", "error", err)
			cancel()
		}
	})

	switch {
	case err == nil:
		final := ProgressFrame{
			Type:    "summary",
			Done:    true,
			Success: summary.Success,
			Failed:  summary.Failed,
		}
		if err := conn.WriteJSON(final); err != nil {
			slog.WarnContext(ctx, "failed to write summary frame", "error", err)
		}
	case errors.Is(err, geocode.ErrAlreadyRunning):
		_ = conn.WriteJSON(ProgressFrame{
			Type:    "error",
			Done:    true,
			Message: "A geocoding run is already in progress",
		})
	case errors.Is(err, context.Canceled):
		// Client went away; nothing left to tell it.
	default:
		slog.ErrorContext(ctx, "geocoding run failed", "error", err)
		_ = conn.WriteJSON(ProgressFrame{
			Type:    "error",
			Done:    true,
			Message: "Geocoding run failed",
			Success: summary.Success,
			Failed:  summary.Failed,
		})
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	slog.InfoContext(ctx, "geocoding progress stream closed",
		"request_id", requestID,
		"success", summary.Success,
		"failed", summary.Failed,
	)
}
