// Package databasetest provides isolated databases for tests: in-memory SQLite
// by default, and MySQL when TEST_MYSQL_DSN points at a server.
package databasetest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/internal/pkg/database"
)

var seq atomic.Int64

// New returns a migrated in-memory SQLite database private to the test. The pool
// holds a single connection, so concurrent transactions queue up behind each
// other the way row-locked transactions do on MySQL.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:appealpro_test_%d?mode=memory&cache=shared&_busy_timeout=5000", seq.Add(1))
	db, err := database.OpenSQLite(dsn, 1)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { closeDB(db) })
	return db
}
