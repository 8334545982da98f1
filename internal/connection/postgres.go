package connection

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gekyxme/relnodes/internal/tracing"
)

// connectionColumns is the column list shared by all SELECTs.
const connectionColumns = `
	id, user_id, first_name, last_name, full_name, company, position,
	profile_url, email, city, country, latitude, longitude, tags, notes,
	connected_on, created_at, updated_at`

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

// Create stores a new connection with a generated ID.
func (r *PostgresRepository) Create(ctx context.Context, c *Connection) error {
	if err := c.ValidateCoordinates(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO connections (
			id, user_id, first_name, last_name, full_name, company, position,
			profile_url, email, city, country, latitude, longitude, tags, notes,
			connected_on, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	ctx, endSpan := tracing.StartDBSpan(ctx, "connections", tracing.DBOperationInsert)
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.UserID, c.FirstName, c.LastName, c.FullName, c.Company, c.Position,
		c.ProfileURL, c.Email, c.City, c.Country, c.Latitude, c.Longitude, c.Tags, c.Notes,
		c.ConnectedOn, c.CreatedAt, c.UpdatedAt)
	endSpan(err)
	if err != nil {
		r.logger.Error("failed to insert connection",
			slog.String("error", err.Error()),
			slog.String("user_id", c.UserID))
		return fmt.Errorf("failed to insert connection: %w", err)
	}
	return nil
}

// GetByID retrieves a connection by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`
	return scanConnection(r.db.QueryRowContext(ctx, query, id))
}

// ListByUser retrieves all connections owned by a user, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()
	return collectConnections(rows)
}

// FindDuplicate returns an existing connection matching the duplicate rule.
// The profile URL arm only applies when the candidate has a non-empty URL;
// the name arm compares company with null treated as a matchable value.
func (r *PostgresRepository) FindDuplicate(ctx context.Context, userID string, key DuplicateKey) (*Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE user_id = $1
		  AND (
		    ($2::text IS NOT NULL AND $2 <> '' AND profile_url = $2)
		    OR (first_name = $3 AND last_name = $4 AND company IS NOT DISTINCT FROM $5)
		  )
		LIMIT 1`
	c, err := scanConnection(r.db.QueryRowContext(ctx, query,
		userID, key.ProfileURL, key.FirstName, key.LastName, key.Company))
	if err == ErrConnectionNotFound {
		return nil, nil
	}
	return c, err
}

// Patch applies an owner-scoped partial update. Nil fields keep their
// current value via COALESCE.
func (r *PostgresRepository) Patch(ctx context.Context, id, userID string, upd Update) (*Connection, error) {
	query := `
		UPDATE connections
		SET latitude = COALESCE($3, latitude),
		    longitude = COALESCE($4, longitude),
		    city = COALESCE($5, city),
		    country = COALESCE($6, country),
		    tags = COALESCE($7, tags),
		    notes = COALESCE($8, notes),
		    updated_at = $9
		WHERE id = $1 AND user_id = $2
		RETURNING ` + connectionColumns
	c, err := scanConnection(r.db.QueryRowContext(ctx, query,
		id, userID, upd.Latitude, upd.Longitude, upd.City, upd.Country,
		upd.Tags, upd.Notes, time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	if err := c.ValidateCoordinates(); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a connection, scoped to the owning user.
func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM connections WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// ListPendingGeocode selects up to limit connections awaiting geocoding.
func (r *PostgresRepository) ListPendingGeocode(ctx context.Context, limit int) ([]*Connection, error) {
	query := `SELECT ` + connectionColumns + `
		FROM connections
		WHERE company IS NOT NULL AND latitude IS NULL
		LIMIT $1`
	ctx, endSpan := tracing.StartDBSpan(ctx, "connections", tracing.DBOperationQuery)
	rows, err := r.db.QueryContext(ctx, query, limit)
	endSpan(err)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending connections: %w", err)
	}
	defer rows.Close()
	return collectConnections(rows)
}

// SetResolvedLocation writes resolved coordinates onto a connection.
func (r *PostgresRepository) SetResolvedLocation(ctx context.Context, id string, lat, lng float64, city, country *string) error {
	query := `
		UPDATE connections
		SET latitude = $2, longitude = $3, city = $4, country = $5, updated_at = $6
		WHERE id = $1
	`
	ctx, endSpan := tracing.StartDBSpan(ctx, "connections", tracing.DBOperationUpdate)
	res, err := r.db.ExecContext(ctx, query, id, lat, lng, city, country, time.Now().UTC())
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to set resolved location: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// CountByUser returns total and geocode-pending counts for a user.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, int, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE company IS NOT NULL AND latitude IS NULL)
		FROM connections
		WHERE user_id = $1
	`
	var total, pending int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&total, &pending); err != nil {
		return 0, 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return total, pending, nil
}

func scanConnection(row *sql.Row) (*Connection, error) {
	var c Connection
	err := row.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.FullName,
		&c.Company, &c.Position, &c.ProfileURL, &c.Email, &c.City, &c.Country,
		&c.Latitude, &c.Longitude, &c.Tags, &c.Notes,
		&c.ConnectedOn, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}
	return &c, nil
}

func collectConnections(rows *sql.Rows) ([]*Connection, error) {
	var out []*Connection
	for rows.Next() {
		var c Connection
		err := rows.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.FullName,
			&c.Company, &c.Position, &c.ProfileURL, &c.Email, &c.City, &c.Country,
			&c.Latitude, &c.Longitude, &c.Tags, &c.Notes,
			&c.ConnectedOn, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection row: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connection rows: %w", err)
	}
	return out, nil
}
