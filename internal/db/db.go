// Package db provides database connection management and the repositories
// backing montages, media assets and playback history.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 5
	connMaxLifetime = 5 * time.Minute

	defaultPingTimeout = 5 * time.Second
)

// Options tune how the connection is opened
type Options struct {
	// EnableWAL switches SQLite to write-ahead logging
	EnableWAL bool
	// PingTimeout bounds the initial connectivity check
	PingTimeout time.Duration
}

// DB wraps a GORM database connection
type DB struct {
	*gorm.DB
}

// New opens the SQLite database at dbPath with foreign keys and WAL enabled.
// Example: "./data/montage.db"
func New(dbPath string) (*DB, error) {
	return Open(dbPath, Options{EnableWAL: true})
}

// Open opens the SQLite database at dbPath. dbPath may already carry query
// parameters, e.g. "file:test?mode=memory&cache=shared".
func Open(dbPath string, opts Options) (*DB, error) {
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = defaultPingTimeout
	}

	gormDB, err := gorm.Open(sqlite.Open(buildDSN(dbPath, opts)), &gorm.Config{
		// Disable default transaction for better performance
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), opts.PingTimeout)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: gormDB}, nil
}

// buildDSN appends the SQLite pragmas to dbPath
func buildDSN(dbPath string, opts Options) string {
	params := []string{"_foreign_keys=on"}
	if opts.EnableWAL {
		params = append(params, "_journal_mode=WAL")
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + strings.Join(params, "&")
}

// Health checks database connectivity
func (db *DB) Health(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// GetSQLDB returns the underlying sql.DB for migrations
func (db *DB) GetSQLDB() (*sql.DB, error) {
	return db.DB.DB()
}
