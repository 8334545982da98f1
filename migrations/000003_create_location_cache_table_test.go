//go:build integration

package migrations_test

import (
	"testing"
)

// TestMigration000003_CompanyNameUnique verifies first-writer-wins semantics:
// a second insert for the same company is silently dropped by the unique index
// with ON CONFLICT DO NOTHING.
func TestMigration000003_CompanyNameUnique(t *testing.T) {
	db := openTestDB(t)

	const company = "Migration Test Co"
	t.Cleanup(func() {
		_, _ = db.Exec("DELETE FROM location_cache WHERE company_name = $1", company)
	})

	res, err := db.Exec(`
		INSERT INTO location_cache (id, company_name, latitude, longitude)
		VALUES (gen_random_uuid(), $1, 52.52, 13.405)
		ON CONFLICT (company_name) DO NOTHING
	`, company)
	if err != nil {
		t.Fatalf("failed to insert cache entry: %v", err)
	}
	if rows, _ := res.RowsAffected(); rows != 1 {
		t.Fatalf("Expected first insert to affect 1 row, got %d", rows)
	}

	res, err = db.Exec(`
		INSERT INTO location_cache (id, company_name, latitude, longitude)
		VALUES (gen_random_uuid(), $1, 48.85, 2.35)
		ON CONFLICT (company_name) DO NOTHING
	`, company)
	if err != nil {
		t.Fatalf("failed on conflicting insert: %v", err)
	}
	if rows, _ := res.RowsAffected(); rows != 0 {
		t.Errorf("Expected conflicting insert to affect 0 rows, got %d", rows)
	}

	// The original coordinates survive the conflicting insert.
	var lat float64
	err = db.QueryRow("SELECT latitude FROM location_cache WHERE company_name = $1", company).Scan(&lat)
	if err != nil {
		t.Fatalf("failed to query cache entry: %v", err)
	}
	if lat != 52.52 {
		t.Errorf("Expected latitude 52.52 to be preserved, got %v", lat)
	}
}
