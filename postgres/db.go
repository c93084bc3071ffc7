package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint
// (email, username, remember selector, role or permission name).
var ErrDuplicate = errors.New("postgres: duplicate value")

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                   BIGINT PRIMARY KEY,
	email                TEXT NOT NULL,
	username             TEXT NOT NULL,
	password_hash        TEXT NOT NULL,
	status               TEXT NOT NULL,
	status_reason        TEXT NOT NULL DEFAULT '',
	activate_token       TEXT NOT NULL DEFAULT '',
	reset_token          TEXT NOT NULL DEFAULT '',
	reset_requested_at   TIMESTAMPTZ,
	reset_expires_at     TIMESTAMPTZ,
	force_password_reset BOOLEAN NOT NULL DEFAULT FALSE,
	deleted              BOOLEAN NOT NULL DEFAULT FALSE,
	creator_id           BIGINT NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_email_live
	ON users (email) WHERE NOT deleted;
CREATE UNIQUE INDEX IF NOT EXISTS users_username_live
	ON users (username) WHERE NOT deleted;

CREATE TABLE IF NOT EXISTS remember_tokens (
	id             BIGINT PRIMARY KEY,
	user_id        BIGINT NOT NULL,
	selector       TEXT NOT NULL UNIQUE,
	validator_hash TEXT NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS remember_tokens_user
	ON remember_tokens (user_id);

CREATE TABLE IF NOT EXISTS attempts (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	user_id     BIGINT,
	email       TEXT NOT NULL DEFAULT '',
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	success     BOOLEAN NOT NULL,
	token       TEXT NOT NULL DEFAULT '',
	captured_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS attempts_type_email
	ON attempts (type, email);

CREATE TABLE IF NOT EXISTS roles (
	id         BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	creator_id BIGINT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS roles_name_live
	ON roles (name) WHERE NOT deleted;

CREATE TABLE IF NOT EXISTS permissions (
	id         BIGINT PRIMARY KEY,
	name       TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	creator_id BIGINT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS permissions_name_live
	ON permissions (name) WHERE NOT deleted;

CREATE TABLE IF NOT EXISTS user_roles (
	user_id BIGINT NOT NULL,
	role_id BIGINT NOT NULL,
	PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS user_permissions (
	user_id       BIGINT NOT NULL,
	permission_id BIGINT NOT NULL,
	PRIMARY KEY (user_id, permission_id)
);

CREATE TABLE IF NOT EXISTS role_permissions (
	role_id       BIGINT NOT NULL,
	permission_id BIGINT NOT NULL,
	PRIMARY KEY (role_id, permission_id)
);
`

// EnsureSchema creates the fortify tables and indexes if they do not
// exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
