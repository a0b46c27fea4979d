package databasetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"

	"github.com/DenialAppealPro/appealpro/internal/pkg/database"
	"github.com/DenialAppealPro/appealpro/internal/pkg/env"
)

// MySQLDSNEnv names the server used by NewMySQL, e.g.
// "root:secret@tcp(127.0.0.1:3306)/". The database part is ignored.
const MySQLDSNEnv = "TEST_MYSQL_DSN"

// NewMySQL creates a throwaway database on the MySQL server from TEST_MYSQL_DSN,
// applies the SQL migrations and returns a pooled connection to it. Row locks
// are real here, unlike New. The test is skipped when no server is configured
// or reachable.
func NewMySQL(t *testing.T) *gorm.DB {
	t.Helper()

	raw := env.GetEnv(MySQLDSNEnv, "")
	if raw == "" {
		t.Skipf("%s not set; skipping MySQL test", MySQLDSNEnv)
	}
	cfg, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", MySQLDSNEnv, err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	cfg.Params["charset"] = "utf8mb4"
	cfg.Params["innodb_lock_wait_timeout"] = "5"

	admin := cfg.Clone()
	admin.DBName = ""
	adminDB, err := database.OpenMySQL(admin.FormatDSN())
	if err != nil {
		t.Skipf("MySQL not reachable: %v", err)
	}
	if err := ping(adminDB); err != nil {
		closeDB(adminDB)
		t.Skipf("MySQL not reachable: %v", err)
	}

	cfg.DBName = fmt.Sprintf("appealpro_test_%d_%d", os.Getpid(), seq.Add(1))
	create := fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", cfg.DBName)
	if err := adminDB.Exec(create).Error; err != nil {
		closeDB(adminDB)
		t.Fatalf("create database %s: %v", cfg.DBName, err)
	}
	t.Cleanup(func() {
		if err := adminDB.Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", cfg.DBName)).Error; err != nil {
			t.Logf("drop database %s: %v", cfg.DBName, err)
		}
		closeDB(adminDB)
	})

	if err := migrateUp(cfg.FormatDSN()); err != nil {
		t.Fatalf("migrate %s: %v", cfg.DBName, err)
	}

	db, err := database.OpenMySQL(cfg.FormatDSN())
	if err != nil {
		t.Fatalf("open %s: %v", cfg.DBName, err)
	}
	t.Cleanup(func() { closeDB(db) })
	return db
}

// migrateUp applies migrations/ the same way cmd/migrate does.
func migrateUp(dsn string) error {
	m, err := migrate.New("file://"+migrationsDir(), "mysql://"+dsn)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "migrations")
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
