package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB holds the connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDB creates and tests a new database connection.
func NewDB(ctx context.Context, connString string, baseLogger *zerolog.Logger) (*DB, error) {
	log := baseLogger.With().Str("component", "postgres").Logger()

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse DB connection string")
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create connection pool")
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to ping database")
		pool.Close()
		return nil, err
	}

	log.Info().Msg("Database connection pool established")
	return &DB{pool: pool, log: log}, nil
}

// EnsureSchema creates the tables this service owns if they do not
// exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS protocol_sessions (
			key        TEXT PRIMARY KEY,
			value      JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS session_aliases (
			identity_id TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS referral_codes (
			code       TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL,
			used_count INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS referral_redemptions (
			redeemer_id TEXT PRIMARY KEY,
			code        TEXT NOT NULL REFERENCES referral_codes(code),
			redeemed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS completion_status (
			user_id      TEXT PRIMARY KEY,
			followed     BOOLEAN NOT NULL DEFAULT FALSE,
			liked        BOOLEAN NOT NULL DEFAULT FALSE,
			reposted     BOOLEAN NOT NULL DEFAULT FALSE,
			current_step INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS channel_codes (
			code        TEXT PRIMARY KEY,
			telegram_id BIGINT NOT NULL DEFAULT 0,
			claimed_by  TEXT,
			issued_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		db.log.Error().Err(err).Msg("Failed to ensure schema")
		return err
	}
	return nil
}

// Close gracefully closes the connection pool.
func (db *DB) Close() {
	db.log.Info().Msg("Closing database connection pool")
	db.pool.Close()
}
