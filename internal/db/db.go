package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect opens the database, waits for it to answer pings and applies the schema.
func Connect(ctx context.Context, driver, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if driver == DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// Serializes transactions so the conditional updates never hit SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return struct{}{}, db.PingContext(pingCtx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(30*time.Second),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("database not ready", zap.Error(err), zap.Duration("retry_in", next))
		}),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database ready", zap.String("driver", driver))
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

func runMigrations(ctx context.Context, db *sqlx.DB, driver string) error {
	timestamp := "TIMESTAMPTZ"
	if driver == DriverSQLite {
		timestamp = "TIMESTAMP"
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			profile_pic TEXT NOT NULL DEFAULT '',
			native_language TEXT NOT NULL DEFAULT '',
			learning_language TEXT NOT NULL DEFAULT '',
			bio TEXT NOT NULL DEFAULT '',
			created_at ` + timestamp + ` NOT NULL
			)`,
		// pair_key is unique across all statuses: a pair has at most one request, ever.
		`CREATE TABLE IF NOT EXISTS friend_requests (
			id TEXT PRIMARY KEY,
			sender_id TEXT NOT NULL REFERENCES users(id),
			recipient_id TEXT NOT NULL REFERENCES users(id),
			pair_key TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL CHECK (status IN ('pending','accepted')),
			created_at ` + timestamp + ` NOT NULL,
			accepted_at ` + timestamp + `,
			CHECK (sender_id <> recipient_id)
			)`,
		`CREATE INDEX IF NOT EXISTS friend_requests_recipient_idx ON friend_requests (recipient_id, status)`,
		`CREATE INDEX IF NOT EXISTS friend_requests_sender_idx ON friend_requests (sender_id, status)`,
		`CREATE TABLE IF NOT EXISTS friendships (
			user_id TEXT NOT NULL REFERENCES users(id),
			friend_id TEXT NOT NULL REFERENCES users(id),
			created_at ` + timestamp + ` NOT NULL,
			PRIMARY KEY (user_id, friend_id)
			)`,
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
