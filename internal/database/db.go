// Package database opens the MySQL pool and bootstraps the tables the
// booking core reads and writes.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-reservation/internal/config"
)

// DSN renders the driver connection string for cfg.
func DSN(cfg config.DBConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Pass
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + cfg.Port
	mc.DBName = cfg.Name
	// DATETIME -> time.Time, always in UTC
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Open connects to MySQL and verifies the connection.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, err
	}

	conns := cfg.MaxOpenConns
	if conns <= 0 {
		conns = 25
	}
	db.SetMaxOpenConns(conns)
	db.SetMaxIdleConns(conns)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// schema creates the tables when missing.  venues, venue_closures and users
// are owned by other services in production; they are created here so a
// fresh database is usable on its own.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		capacity INT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		CHECK (capacity >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS venue_closures (
		venue_id VARCHAR(64) NOT NULL,
		closed_on DATE NOT NULL,
		reason VARCHAR(255) NULL,
		PRIMARY KEY (venue_id, closed_on),
		CONSTRAINT fk_closures_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id CHAR(36) NOT NULL PRIMARY KEY,
		venue_id VARCHAR(64) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		date_time DATETIME NOT NULL,
		bucket_date DATE NOT NULL,
		party_size INT NOT NULL,
		status ENUM('confirmada','cancelada','completada') NOT NULL,
		notes TEXT NULL,
		cancellation_reason TEXT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		KEY idx_reservations_bucket (venue_id, bucket_date, status),
		KEY idx_reservations_user (user_id, date_time),
		KEY idx_reservations_status_time (status, date_time),
		CONSTRAINT fk_reservations_venue FOREIGN KEY (venue_id) REFERENCES venues(id),
		CHECK (party_size >= 1)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// One marker row per (venue, date); LockBucket takes its row lock.
	`CREATE TABLE IF NOT EXISTS capacity_buckets (
		venue_id VARCHAR(64) NOT NULL,
		bucket_date DATE NOT NULL,
		PRIMARY KEY (venue_id, bucket_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservation_invitees (
		id CHAR(36) NOT NULL PRIMARY KEY,
		reservation_id CHAR(36) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME NOT NULL,
		UNIQUE KEY uq_invitee (reservation_id, user_id),
		CONSTRAINT fk_invitees_reservation FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates every missing table.  Statements run one at a time
// because the driver rejects multi-statement strings by default.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
