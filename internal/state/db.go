// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Token amounts are stored as NUMERIC(78, 0): wide enough for any
	// 256-bit base-unit balance, no fractional digits.
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS rebalance_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			rebalance_number INTEGER NOT NULL,
			request_id VARCHAR(64) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL,
			from_asset VARCHAR(42) NOT NULL,
			to_asset VARCHAR(42) NOT NULL,
			nav_before NUMERIC(78, 0) NOT NULL,
			nav_after NUMERIC(78, 0) NOT NULL,
			performance_fee_paid NUMERIC(78, 0),
			fee_funding_bought NUMERIC(78, 0),
			governance_sold NUMERIC(78, 0),
			status VARCHAR(16) NOT NULL,
			failure_reason TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_rebalance_snapshots_number ON rebalance_snapshots(rebalance_number DESC);
		CREATE INDEX IF NOT EXISTS idx_rebalance_snapshots_completed ON rebalance_snapshots(completed_at DESC);
		CREATE INDEX IF NOT EXISTS idx_rebalance_snapshots_status ON rebalance_snapshots(status);

		CREATE TABLE IF NOT EXISTS vault_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			mint_fee_bps INTEGER NOT NULL,
			burn_fee_bps INTEGER NOT NULL,
			performance_fee_bps INTEGER NOT NULL,
			rebalance_interval_seconds BIGINT NOT NULL,
			fee_recipient VARCHAR(42) NOT NULL,
			CONSTRAINT uq_vault_parameters_version UNIQUE (version)
		);
		CREATE INDEX IF NOT EXISTS idx_vault_parameters_active ON vault_parameters(is_active, activated_at DESC);

		-- Rebalance counter table for persistent global rebalance numbering
		CREATE TABLE IF NOT EXISTS rebalance_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_rebalance INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO rebalance_counter (id, current_rebalance)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
