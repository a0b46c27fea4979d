package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dryRunMySQL renders statements with the MySQL dialect without a server and
// records the SQL of every query.
func dryRunMySQL(t *testing.T) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/appealpro?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var queries []string
	err = db.Callback().Query().After("gorm:query").Register("test:record_sql", func(tx *gorm.DB) {
		queries = append(queries, tx.Statement.SQL.String())
	})
	require.NoError(t, err)
	return db, &queries
}

func TestLockHelpersSelectForUpdate(t *testing.T) {
	db, queries := dryRunMySQL(t)

	_, _ = LockAccount(db, 7)
	_, _ = LockWorkUnit(db, "00000000-0000-0000-0000-000000000001")

	require.Len(t, *queries, 2)
	assert.Contains(t, (*queries)[0], "FROM `accounts`")
	assert.Contains(t, (*queries)[0], "FOR UPDATE")
	assert.Contains(t, (*queries)[1], "FROM `work_units`")
	assert.Contains(t, (*queries)[1], "FOR UPDATE")
}

func TestPlainReadsTakeNoLock(t *testing.T) {
	db, queries := dryRunMySQL(t)

	_, _ = FindAccountByEmail(db, "a@example.com")

	require.Len(t, *queries, 1)
	assert.NotContains(t, (*queries)[0], "FOR UPDATE")
}
