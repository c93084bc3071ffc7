package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"

	"github.com/fortifygo/fortify/auth"
)

// UserStore is a PostgreSQL-backed auth.UserStore.
type UserStore struct {
	db   *sqlx.DB
	node *snowflake.Node
}

// NewUserStore wires a user store over db.  nodeID distinguishes
// processes generating IDs against the same database; any value in
// [0, 1023] works, but each writer should get its own.
func NewUserStore(db *sqlx.DB, nodeID int64) (*UserStore, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: snowflake node: %w", err)
	}
	return &UserStore{db: db, node: node}, nil
}

var _ auth.UserStore = (*UserStore)(nil)

type userRow struct {
	ID                 int64      `db:"id"`
	Email              string     `db:"email"`
	Username           string     `db:"username"`
	PasswordHash       string     `db:"password_hash"`
	Status             string     `db:"status"`
	StatusReason       string     `db:"status_reason"`
	ActivateToken      string     `db:"activate_token"`
	ResetToken         string     `db:"reset_token"`
	ResetRequestedAt   *time.Time `db:"reset_requested_at"`
	ResetExpiresAt     *time.Time `db:"reset_expires_at"`
	ForcePasswordReset bool       `db:"force_password_reset"`
	Deleted            bool       `db:"deleted"`
	CreatorID          int64      `db:"creator_id"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

func (r userRow) toUser() *auth.User {
	return &auth.User{
		ID:                 r.ID,
		Email:              r.Email,
		Username:           r.Username,
		PasswordHash:       r.PasswordHash,
		Status:             auth.Status(r.Status),
		StatusReason:       r.StatusReason,
		ActivateToken:      r.ActivateToken,
		ResetToken:         r.ResetToken,
		ResetRequestedAt:   r.ResetRequestedAt,
		ResetExpiresAt:     r.ResetExpiresAt,
		ForcePasswordReset: r.ForcePasswordReset,
		Deleted:            r.Deleted,
		CreatorID:          r.CreatorID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func toUserRow(u *auth.User) userRow {
	return userRow{
		ID:                 u.ID,
		Email:              u.Email,
		Username:           u.Username,
		PasswordHash:       u.PasswordHash,
		Status:             string(u.Status),
		StatusReason:       u.StatusReason,
		ActivateToken:      u.ActivateToken,
		ResetToken:         u.ResetToken,
		ResetRequestedAt:   u.ResetRequestedAt,
		ResetExpiresAt:     u.ResetExpiresAt,
		ForcePasswordReset: u.ForcePasswordReset,
		Deleted:            u.Deleted,
		CreatorID:          u.CreatorID,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

// column whitelists the lookup fields FindByField accepts, so a field
// name can never reach the SQL text unchecked.
func column(field string) (string, bool) {
	switch field {
	case auth.FieldEmail, auth.FieldUsername, auth.FieldResetToken, auth.FieldActivateToken:
		return field, true
	}
	return "", false
}

func (s *UserStore) FindByField(ctx context.Context, field, value string) (*auth.User, error) {
	col, ok := column(field)
	if !ok || value == "" {
		return nil, auth.ErrUserNotFound
	}

	var row userRow
	query := fmt.Sprintf(`SELECT * FROM users WHERE %s = $1 AND NOT deleted`, col)
	if err := s.db.GetContext(ctx, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres: find user by %s: %w", field, err)
	}
	return row.toUser(), nil
}

func (s *UserStore) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE id = $1 AND NOT deleted`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	return row.toUser(), nil
}

func (s *UserStore) Save(ctx context.Context, u *auth.User) error {
	if u == nil {
		return auth.ErrNilUser
	}

	insert := u.ID == 0
	if insert {
		u.ID = s.node.Generate().Int64()
	}
	row := toUserRow(u)

	var err error
	if insert {
		_, err = s.db.NamedExecContext(ctx, `
			INSERT INTO users (
				id, email, username, password_hash, status, status_reason,
				activate_token, reset_token, reset_requested_at, reset_expires_at,
				force_password_reset, deleted, creator_id, created_at, updated_at
			) VALUES (
				:id, :email, :username, :password_hash, :status, :status_reason,
				:activate_token, :reset_token, :reset_requested_at, :reset_expires_at,
				:force_password_reset, :deleted, :creator_id, :created_at, :updated_at
			)`, row)
		if err != nil {
			u.ID = 0
		}
	} else {
		var res sql.Result
		res, err = s.db.NamedExecContext(ctx, `
			UPDATE users SET
				email = :email, username = :username,
				password_hash = :password_hash, status = :status,
				status_reason = :status_reason, activate_token = :activate_token,
				reset_token = :reset_token, reset_requested_at = :reset_requested_at,
				reset_expires_at = :reset_expires_at,
				force_password_reset = :force_password_reset, deleted = :deleted,
				creator_id = :creator_id, updated_at = :updated_at
			WHERE id = :id`, row)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return auth.ErrUserNotFound
			}
		}
	}

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: save user: %w", err)
	}
	return nil
}

type attemptRow struct {
	ID         string    `db:"id"`
	Type       string    `db:"type"`
	UserID     *int64    `db:"user_id"`
	Email      string    `db:"email"`
	IP         string    `db:"ip"`
	UserAgent  string    `db:"user_agent"`
	Success    bool      `db:"success"`
	Token      string    `db:"token"`
	CapturedAt time.Time `db:"captured_at"`
}

func (s *UserStore) logAttempt(ctx context.Context, a auth.Attempt) error {
	row := attemptRow{
		ID:         ksuid.New().String(),
		Type:       string(a.Type),
		UserID:     a.UserID,
		Email:      a.Email,
		IP:         a.IP,
		UserAgent:  a.UserAgent,
		Success:    a.Success,
		Token:      a.Token,
		CapturedAt: a.CapturedAt,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO attempts (
			id, type, user_id, email, ip, user_agent, success, token, captured_at
		) VALUES (
			:id, :type, :user_id, :email, :ip, :user_agent, :success, :token, :captured_at
		)`, row)
	if err != nil {
		return fmt.Errorf("postgres: log attempt: %w", err)
	}
	return nil
}

func (s *UserStore) LogLoginAttempt(ctx context.Context, a auth.Attempt) error {
	return s.logAttempt(ctx, a)
}

func (s *UserStore) LogResetAttempt(ctx context.Context, a auth.Attempt) error {
	return s.logAttempt(ctx, a)
}

func (s *UserStore) LogActivationAttempt(ctx context.Context, a auth.Attempt) error {
	return s.logAttempt(ctx, a)
}

// TokenStore is a PostgreSQL-backed auth.TokenStore.
type TokenStore struct {
	db   *sqlx.DB
	node *snowflake.Node
}

// NewTokenStore wires a remember-token store over db.
func NewTokenStore(db *sqlx.DB, nodeID int64) (*TokenStore, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: snowflake node: %w", err)
	}
	return &TokenStore{db: db, node: node}, nil
}

var _ auth.TokenStore = (*TokenStore)(nil)

type tokenRow struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	Selector      string    `db:"selector"`
	ValidatorHash string    `db:"validator_hash"`
	ExpiresAt     time.Time `db:"expires_at"`
}

func (s *TokenStore) RememberUser(ctx context.Context, userID int64, selector, validatorHash string, expiresAt time.Time) error {
	row := tokenRow{
		ID:            s.node.Generate().Int64(),
		UserID:        userID,
		Selector:      selector,
		ValidatorHash: validatorHash,
		ExpiresAt:     expiresAt,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO remember_tokens (id, user_id, selector, validator_hash, expires_at)
		VALUES (:id, :user_id, :selector, :validator_hash, :expires_at)`, row)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("postgres: remember user: %w", err)
	}
	return nil
}

func (s *TokenStore) GetBySelector(ctx context.Context, selector string) (*auth.RememberToken, error) {
	var row tokenRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM remember_tokens WHERE selector = $1`, selector)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrTokenNotFound
		}
		return nil, fmt.Errorf("postgres: get remember token: %w", err)
	}
	return &auth.RememberToken{
		ID:            row.ID,
		UserID:        row.UserID,
		Selector:      row.Selector,
		ValidatorHash: row.ValidatorHash,
		ExpiresAt:     row.ExpiresAt,
	}, nil
}

func (s *TokenStore) UpdateValidator(ctx context.Context, selector, validatorHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE remember_tokens SET validator_hash = $1 WHERE selector = $2`,
		validatorHash, selector)
	if err != nil {
		return fmt.Errorf("postgres: update validator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrTokenNotFound
	}
	return nil
}

func (s *TokenStore) PurgeForUser(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM remember_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("postgres: purge tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM remember_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: purge expired tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
