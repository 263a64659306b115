// Package testing provides shared test helpers: temporary sqlite databases
// migrated with the embedded schemas and domain fixtures.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/finvoice/riskengine/internal/database"
)

// NewTestDB creates a temporary file-backed SQLite database migrated with the
// embedded schema registered for name ("portfolio" or "cache"). Unknown names
// give an empty database. The database is closed and removed on test cleanup.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db := openTempDB(t, name)
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}

// NewTestDBWithSchema creates a temporary database and executes schema on it.
func NewTestDBWithSchema(t *testing.T, name string, schema string) *database.DB {
	t.Helper()

	db := openTempDB(t, name)
	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}
	return db
}

func openTempDB(t *testing.T, name string) *database.DB {
	t.Helper()

	// A file per test keeps connections of one pool on the same database.
	tmpFile, err := os.CreateTemp(t.TempDir(), fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})
	return db
}
