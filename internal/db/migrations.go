package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies every pending migration found at migrationsPath
// (e.g. "file://./migrations") to db. No pending migrations is not an error.
//
// Example usage:
//
//	database, err := db.New("./data/montage.db")
//	if err != nil {
//	    return err
//	}
//	sqlDB, _ := database.GetSQLDB()
//	if err := db.RunMigrations(sqlDB, "file://./migrations"); err != nil {
//	    return fmt.Errorf("migration failed: %w", err)
//	}
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationsPath,
		"sqlite3",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
