package auth

import (
	"context"
	"time"
)

// Lookup fields accepted by [UserStore.FindByField].
const (
	FieldEmail         = "email"
	FieldUsername      = "username"
	FieldResetToken    = "reset_token"
	FieldActivateToken = "activate_token"
)

// UserStore is the persistence boundary for [User] rows and the attempt
// audit log.  Implementations must never return soft-deleted users.
type UserStore interface {
	// FindByField returns the user whose field equals value.
	// field is one of the Field* constants.  Returns [ErrUserNotFound]
	// when no live row matches.
	FindByField(ctx context.Context, field, value string) (*User, error)

	// FindByID returns the user with the given ID, or [ErrUserNotFound].
	FindByID(ctx context.Context, id int64) (*User, error)

	// Save persists the user.  A zero ID inserts a new row and assigns
	// the ID on the passed struct; otherwise the existing row is updated.
	// Uniqueness violations (email, username) surface as errors.
	Save(ctx context.Context, u *User) error

	// LogLoginAttempt appends a login audit row.
	LogLoginAttempt(ctx context.Context, a Attempt) error

	// LogResetAttempt appends a password-reset audit row.
	LogResetAttempt(ctx context.Context, a Attempt) error

	// LogActivationAttempt appends an activation audit row.
	LogActivationAttempt(ctx context.Context, a Attempt) error
}

// TokenStore persists remember-me tokens.  Selector uniqueness is the
// store's responsibility (a unique index in SQL implementations).
type TokenStore interface {
	// RememberUser inserts a remember token for the user.
	RememberUser(ctx context.Context, userID int64, selector, validatorHash string, expiresAt time.Time) error

	// GetBySelector returns the token for a selector, or [ErrTokenNotFound].
	GetBySelector(ctx context.Context, selector string) (*RememberToken, error)

	// UpdateValidator replaces the validator hash for an existing selector.
	UpdateValidator(ctx context.Context, selector, validatorHash string) error

	// PurgeForUser deletes every remember token the user holds, across
	// all devices.
	PurgeForUser(ctx context.Context, userID int64) error

	// PurgeExpired deletes all expired tokens and returns the number
	// removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Mailer delivers a single HTML message.  Implementations wrap whatever
// transport the application uses (SMTP, an email API, a test recorder).
type Mailer interface {
	Send(ctx context.Context, from, to, subject, htmlBody string) error
}

// RoleAssigner grants a named role to a user.  The authz package's
// Authorizer satisfies this; the Authenticator uses it to assign the
// configured default role on registration.
type RoleAssigner interface {
	AssignRole(ctx context.Context, userID int64, role string) error
}
