package database

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sqlitePrefix = "sqlite://"

// Open picks the driver from the URL: "sqlite://<path>" (or "sqlite://:memory:") opens a local
// file database, anything else is treated as a postgres DSN.
func Open(databaseURL string, log *zap.Logger) (*gorm.DB, error) {
	if strings.HasPrefix(databaseURL, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(databaseURL, sqlitePrefix), log)
	}
	return ConnectPostgres(databaseURL, log)
}

// OpenSQLite opens a sqlite database; used for local runs and tests
func OpenSQLite(path string, log *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared across goroutines
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if log != nil {
		log.Info("sqlite opened", zap.String("path", path))
	}
	return db, nil
}
