package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gekyxme/relnodes/internal/connection"
)

// Result summarizes one import run.
type Result struct {
	Count   int `json:"count"`
	Skipped int `json:"skipped"`
}

// Engine imports normalized candidates for a user, skipping duplicates.
type Engine struct {
	conns  connection.Repository
	logger *slog.Logger
}

// NewEngine creates a new import engine.
func NewEngine(conns connection.Repository, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{conns: conns, logger: logger}
}

// Import processes candidates in sequence order. Each row is checked against
// the owning user's existing connections: a match on non-empty profile URL,
// or on (first name, last name, company with null matching null), counts as
// skipped; everything else is persisted with null coordinates.
//
// There is no transaction across rows. A crash mid-run leaves a partial
// import, which is safe to resume: re-running the same file is idempotent
// under the duplicate rule.
func (e *Engine) Import(ctx context.Context, userID string, candidates []Candidate) (Result, error) {
	var result Result

	for _, cand := range candidates {
		// Profile URLs that do not look like LinkedIn profiles are discarded.
		profileURL := (*string)(nil)
		if cand.ProfileURL != nil {
			profileURL = connection.NormalizeProfileURL(*cand.ProfileURL)
		}

		key := connection.DuplicateKey{
			FirstName:  cand.FirstName,
			LastName:   cand.LastName,
			Company:    cand.Company,
			ProfileURL: profileURL,
		}

		existing, err := e.conns.FindDuplicate(ctx, userID, key)
		if err != nil {
			return result, fmt.Errorf("duplicate check failed: %w", err)
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		conn := &connection.Connection{
			UserID:      userID,
			FirstName:   cand.FirstName,
			LastName:    cand.LastName,
			FullName:    strings.TrimSpace(cand.FirstName + " " + cand.LastName),
			Company:     cand.Company,
			Position:    cand.Position,
			ProfileURL:  profileURL,
			Email:       cand.Email,
			ConnectedOn: cand.ConnectedOn,
		}
		if err := e.conns.Create(ctx, conn); err != nil {
			return result, fmt.Errorf("failed to persist connection: %w", err)
		}
		result.Count++
	}

	e.logger.Info("import completed",
		slog.String("user_id", userID),
		slog.Int("imported", result.Count),
		slog.Int("skipped", result.Skipped))
	return result, nil
}
