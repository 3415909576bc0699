package config

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// ParseDatabaseURL maps DATABASE_URL to a driver name and DSN.
//
//	postgres://... | postgresql://...  -> lib/pq
//	sqlite://path  | file:...          -> modernc sqlite
//	:memory:                           -> in-memory sqlite
func ParseDatabaseURL(dbURL string) (driver string, dsn string, err error) {
	dbURL = strings.TrimSpace(dbURL)
	switch {
	case dbURL == "":
		return "", "", fmt.Errorf("DATABASE_URL environment variable is required")
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return "postgres", dbURL, nil
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("sqlite DATABASE_URL needs a path")
		}
		return "sqlite", path, nil
	case strings.HasPrefix(dbURL, "file:"), dbURL == ":memory:":
		return "sqlite", dbURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %q", dbURL)
	}
}

func InitDB(dbURL string) (*sqlx.DB, error) {
	driver, dsn, err := ParseDatabaseURL(dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == "sqlite" {
		// One writer at a time; an in-memory database also lives on a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return db, nil
}

func RunMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS gst_rates (
			id VARCHAR(36) PRIMARY KEY,
			rate_key VARCHAR(512) UNIQUE NOT NULL,
			hsn VARCHAR(32) NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			rate DOUBLE PRECISION NOT NULL,
			source VARCHAR(255) NOT NULL DEFAULT '',
			source_pdf TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS rate_history (
			id VARCHAR(36) PRIMARY KEY,
			hsn VARCHAR(32) NOT NULL DEFAULT '',
			rate_key VARCHAR(512) NOT NULL,
			old_rate DOUBLE PRECISION NOT NULL,
			new_rate DOUBLE PRECISION NOT NULL,
			old_description TEXT NOT NULL DEFAULT '',
			new_description TEXT NOT NULL DEFAULT '',
			source_pdf TEXT NOT NULL DEFAULT '',
			changed_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS product_logs (
			id VARCHAR(36) PRIMARY KEY,
			product_name TEXT NOT NULL,
			hsn_code VARCHAR(32) NOT NULL DEFAULT '',
			rate DOUBLE PRECISION NOT NULL,
			ip_address VARCHAR(64) NOT NULL DEFAULT '',
			calculated_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS uploads (
			id VARCHAR(36) PRIMARY KEY,
			filename TEXT NOT NULL,
			stored_path TEXT NOT NULL,
			parsed_rows INTEGER NOT NULL DEFAULT 0,
			saved_rows INTEGER NOT NULL DEFAULT 0,
			uploaded_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gst_rates_hsn ON gst_rates(hsn)`,
		`CREATE INDEX IF NOT EXISTS idx_gst_rates_source ON gst_rates(source)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_history_hsn ON rate_history(hsn)`,
		`CREATE INDEX IF NOT EXISTS idx_product_logs_calculated_at ON product_logs(calculated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
