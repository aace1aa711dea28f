// Package database handles database connections and schema inspection.
//
// It provides a wrapper around GORM to configure MySQL or SQLite connections from the
// application's configuration. The SQL key-value provider builds on it.
//
// # Connect
//
// Connect opens the configured driver and pings it within TimeoutSeconds. SQLite is
// limited to a single open connection so that :memory: databases are shared.
//
// # Schema Inspection
//
// GetTableColumns and MissingColumns let the SQL provider verify an existing key table
// when auto-migration is disabled.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
//
//	missing, err := database.MissingColumns(db, "kv_entries", []string{"kv_key", "value", "revision"})
package database
