package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"campuspay/internal/logging"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var ErrStorageUnavailable = errors.New("storage unavailable")

// storageErr folds connection-class failures into ErrStorageUnavailable
// so every request reports an outage the same way. Row misses and
// integrity violations pass through unchanged.
func storageErr(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if errors.Is(err, driver.ErrBadConn) {
		return ErrStorageUnavailable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception; 57P: server shutdown
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return ErrStorageUnavailable
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrStorageUnavailable
	}
	return err
}

type Database struct {
	DBDSN string
	DB    *sql.DB
}

// NewStorage opens the connection and creates the schema. The returned
// handle is passed down explicitly; there is no package-level instance.
func NewStorage(dbDSN string) (*Database, error) {
	if logging.Logg == nil {
		return nil, fmt.Errorf("logger is not initialized")
	}

	db, err := sql.Open("pgx", dbDSN)
	if err != nil {
		logging.Logg.Error("Couldn't connect to the database", "error", err)
		return nil, err
	}

	ms := &Database{DBDSN: dbDSN, DB: db}
	if err := ms.initTables(); err != nil {
		logging.Logg.Error("Failed to initialize DB", "error", err)
		return nil, err
	}
	logging.Logg.Info("Database connection was created")
	return ms, nil
}

// Ping reports whether the backing store is reachable.
func (ms *Database) Ping(ctx context.Context) error {
	if err := ms.DB.PingContext(ctx); err != nil {
		return ErrStorageUnavailable
	}
	return nil
}

func (ms *Database) Close() error {
	return ms.DB.Close()
}

func (ms *Database) initTables() error {
	var errs []error
	stmts := []string{
		`create table if not exists users (
			user_id BIGSERIAL PRIMARY KEY,
			usn VARCHAR(30) NOT NULL,
			email VARCHAR(254) NOT NULL UNIQUE,
			name VARCHAR(100) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'student',
			password_hash VARCHAR(60) NOT NULL,
			dob VARCHAR(8) NOT NULL DEFAULT '',
			phone VARCHAR(20) NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			department VARCHAR(50) NOT NULL DEFAULT '',
			year VARCHAR(10) NOT NULL DEFAULT '',
			section VARCHAR(10) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL default (now() at time zone 'utc'),
			updated_at TIMESTAMP NOT NULL default (now() at time zone 'utc')
		);`,

		`create unique index if not exists users_usn_lower_idx ON users (lower(usn));`,

		`create table if not exists events (
			event_id VARCHAR(64) PRIMARY KEY,
			legacy_id VARCHAR(64) NOT NULL DEFAULT '',
			category VARCHAR(20) NOT NULL,
			title VARCHAR(200) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			amount BIGINT NOT NULL DEFAULT 0,
			payee_name VARCHAR(100) NOT NULL DEFAULT '',
			payee_upi VARCHAR(100) NOT NULL DEFAULT '',
			target_class VARCHAR(100) NOT NULL DEFAULT '',
			poster TEXT NOT NULL DEFAULT '',
			qr_code TEXT NOT NULL DEFAULT '',
			created_by VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL default (now() at time zone 'utc'),
			updated_at TIMESTAMP NOT NULL default (now() at time zone 'utc')
		);`,

		`create table if not exists claims (
			claim_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			category VARCHAR(20) NOT NULL,
			event_ref VARCHAR(128) NOT NULL,
			plain_ref VARCHAR(128) NOT NULL DEFAULT '',
			legacy_ref VARCHAR(128) NOT NULL DEFAULT '',
			legacy_wrapped BOOLEAN NOT NULL DEFAULT FALSE,
			paid BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(20) NOT NULL DEFAULT 'added',
			utr VARCHAR(100) NOT NULL DEFAULT '',
			screenshot TEXT NOT NULL DEFAULT '',
			paid_date TIMESTAMP,
			confirmed_at TIMESTAMP,
			confirmed_by VARCHAR(64) NOT NULL DEFAULT '',
			rejected_at TIMESTAMP,
			rejected_by VARCHAR(64) NOT NULL DEFAULT '',
			UNIQUE (user_id, category, event_ref)
		);`,

		`create table if not exists registrations (
			registration_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
			user_email VARCHAR(254) NOT NULL DEFAULT '',
			events JSONB NOT NULL DEFAULT '[]',
			total_amount BIGINT NOT NULL DEFAULT 0,
			payment_method VARCHAR(30) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL DEFAULT 'confirmed',
			created_at TIMESTAMP NOT NULL default (now() at time zone 'utc')
		);`,
	}

	for _, s := range stmts {
		_, err := ms.DB.Exec(s)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
