// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"postbox/internal/db"
)

// NewDB opens a private in-memory sqlite database with the schema migrated.
// The database lives until the test finishes.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gormDB, err := db.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	// One connection keeps the shared in-memory database alive and avoids
	// sqlite table locks between pooled connections.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return gormDB
}
