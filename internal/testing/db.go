// Package testing provides shared test helpers: throwaway databases and
// transaction/bar fixtures.
package testing

import (
	"path/filepath"
	"testing"

	"github.com/aristath/regret/internal/database"
)

// NewTestDB creates an isolated on-disk SQLite database under the test's
// temp directory. Repositories create their own schema, so no migration
// step is needed. The database is closed via t.Cleanup.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
