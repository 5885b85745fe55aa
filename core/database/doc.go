// Package database handles database connections and schema migration.
//
// It provides a wrapper around GORM (Go Object Relational Mapping) to properly configure
// MySQL connections based on the application's configuration.
//
// # Connect
//
// Connect establishes the connection, configures the pool, and verifies it
// with a ping bounded by the configured timeout.
//
// # Migrate
//
// Migrate auto-migrates the Loankeeper schema (users, items, loans,
// reservations, and the three append-only history tables) and creates the
// supporting indexes for open-loan lookups.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//	if err := database.Migrate(db); err != nil {
//	    log.Fatal("Migration failed", err)
//	}
package database
