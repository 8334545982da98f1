// Package geocache provides the shared company-name-keyed cache of resolved
// base coordinates. The cache is process-wide across all users so each
// company is looked up externally at most once.
package geocache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry maps a company name to its resolved base coordinates. The stored
// latitude/longitude are the unjittered external-lookup result; jitter is
// applied per connection at resolution time, never here. Entries are never
// mutated or deleted; stale data is an accepted limitation.
type Entry struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"company_name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	City        *string   `json:"city,omitempty"`
	Country     *string   `json:"country,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository defines the interface for location cache operations.
// Keys are literal company strings: case- and punctuation-sensitive, with no
// normalization. "Google" and "Google Inc." are distinct entries.
type Repository interface {
	// Lookup returns the entry for a company name, or nil when absent.
	Lookup(ctx context.Context, companyName string) (*Entry, error)

	// PopulateIfAbsent writes a new entry only if none exists for the key.
	// Concurrent populates for the same key must not error; the losing
	// writer's data is discarded.
	PopulateIfAbsent(ctx context.Context, e *Entry) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewInMemoryRepository creates a new in-memory location cache.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]*Entry)}
}

// Lookup returns the entry for a company name, or nil when absent.
func (r *InMemoryRepository) Lookup(_ context.Context, companyName string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[companyName]
	if !ok {
		return nil, nil
	}
	entryCopy := *e
	return &entryCopy, nil
}

// PopulateIfAbsent writes a new entry unless the key already exists.
func (r *InMemoryRepository) PopulateIfAbsent(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[e.CompanyName]; exists {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()

	entryCopy := *e
	r.entries[e.CompanyName] = &entryCopy
	return nil
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Lookup returns the entry for a company name, or nil when absent.
func (r *PostgresRepository) Lookup(ctx context.Context, companyName string) (*Entry, error) {
	query := `
		SELECT id, company_name, latitude, longitude, city, country, created_at
		FROM location_cache
		WHERE company_name = $1
	`
	var e Entry
	err := r.db.QueryRowContext(ctx, query, companyName).Scan(
		&e.ID, &e.CompanyName, &e.Latitude, &e.Longitude, &e.City, &e.Country, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up location cache: %w", err)
	}
	return &e, nil
}

// PopulateIfAbsent inserts a new entry, relying on the unique index on
// company_name with ON CONFLICT DO NOTHING for first-writer-wins semantics.
func (r *PostgresRepository) PopulateIfAbsent(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO location_cache (id, company_name, latitude, longitude, city, country, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_name) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.CompanyName, e.Latitude, e.Longitude, e.City, e.Country, e.CreatedAt)
	if err != nil {
		r.logger.Error("failed to populate location cache",
			slog.String("error", err.Error()),
			slog.String("company", e.CompanyName))
		return fmt.Errorf("failed to populate location cache: %w", err)
	}
	return nil
}
