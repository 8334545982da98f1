package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBChecker implements health checking for the PostgreSQL database.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{
		db: db,
	}
}

// HealthCheck pings the database and verifies the connections table is
// queryable. A reachable server with missing migrations still fails the
// readiness probe this way.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return err
	}

	var one int
	err := d.db.QueryRowContext(ctx, "SELECT 1 FROM connections LIMIT 1").Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("connections table check failed: %w", err)
	}
	return nil
}
