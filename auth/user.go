package auth

import (
	"time"
)

// Status is a user account lifecycle state.
type Status string

const (
	// StatusRegistered: account created but not yet activated.
	StatusRegistered Status = "registered"
	// StatusActive: account in good standing.
	StatusActive Status = "active"
	// StatusInactive: account deactivated (reversible, non-punitive).
	StatusInactive Status = "inactive"
	// StatusBanned: account banned; may be lifted with [User.Unban].
	StatusBanned Status = "banned"
	// StatusPermabanned: account banned permanently; Unban does not lift it.
	StatusPermabanned Status = "permabanned"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRegistered, StatusActive, StatusInactive, StatusBanned, StatusPermabanned:
		return true
	}
	return false
}

// User is an account record.  It is owned by the [UserStore]; the
// Authenticator only ever holds a transient reference to the current user
// for the lifetime of a request.
type User struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string

	Status       Status
	StatusReason string

	// ActivateToken is the pending activation secret, empty once the
	// account is activated.
	ActivateToken string

	// ResetToken and its timestamps track a pending password reset.
	// All three are cleared by a successful password change.
	ResetToken       string
	ResetRequestedAt *time.Time
	ResetExpiresAt   *time.Time

	// ForcePasswordReset preempts any authenticated action until the user
	// completes a password change (see [Authenticator.Check]).
	ForcePasswordReset bool

	Deleted   bool
	CreatorID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the user's ID.
func (u *User) GetID() int64 { return u.ID }

// GetUsername returns the username.  Together with [User.GetEmail] it
// satisfies the password pipeline's user context.
func (u *User) GetUsername() string { return u.Username }

// GetEmail returns the email address.
func (u *User) GetEmail() string { return u.Email }

// IsActive reports whether the account may log in.  Banned accounts are
// "active" in this sense; callers must check [User.IsBanned] first.
func (u *User) IsActive() bool {
	return u.Status != StatusRegistered && u.Status != StatusInactive
}

// IsBanned reports whether the account is banned, permanently or not.
func (u *User) IsBanned() bool {
	return u.Status == StatusBanned || u.Status == StatusPermabanned
}

// Activate marks the account active and clears the activation secret.
func (u *User) Activate() {
	u.Status = StatusActive
	u.ActivateToken = ""
	u.StatusReason = ""
}

// Deactivate marks the account inactive.
func (u *User) Deactivate() {
	u.Status = StatusInactive
	u.ActivateToken = ""
	u.StatusReason = ""
}

// Ban bans the account with the given reason.  A permanent ban cannot be
// lifted by [User.Unban].
func (u *User) Ban(reason string, permanent bool) {
	if permanent {
		u.Status = StatusPermabanned
	} else {
		u.Status = StatusBanned
	}
	u.StatusReason = reason
}

// Unban lifts a non-permanent ban.
func (u *User) Unban() {
	if u.Status == StatusBanned {
		u.Status = StatusActive
		u.StatusReason = ""
	}
}

// SetPasswordHash installs a new password hash and clears every pending
// reset artifact: the reset token, its timestamps, and the forced-reset
// flag.  Clearing the token matters even when the change was not
// token-driven — a stale reset token must not stay usable after an
// administrator or the user has already changed the password.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = hash
	u.ResetToken = ""
	u.ResetRequestedAt = nil
	u.ResetExpiresAt = nil
	u.ForcePasswordReset = false
}

// GenerateActivateToken moves the account to [StatusRegistered] and
// installs a fresh activation secret.
func (u *User) GenerateActivateToken() error {
	token, err := randomHex(activateTokenBytes)
	if err != nil {
		return err
	}
	u.Status = StatusRegistered
	u.ActivateToken = token
	u.StatusReason = ""
	return nil
}

// GenerateResetToken installs a fresh password-reset secret valid for the
// given window.
func (u *User) GenerateResetToken(window time.Duration) error {
	token, err := randomHex(resetTokenBytes)
	if err != nil {
		return err
	}
	now := time.Now()
	expires := now.Add(window)
	u.ResetToken = token
	u.ResetRequestedAt = &now
	u.ResetExpiresAt = &expires
	return nil
}

// ForceReset generates a reset token and flags the account so that the
// next [Authenticator.Check] signals a mandatory password change.
func (u *User) ForceReset(window time.Duration) error {
	if err := u.GenerateResetToken(window); err != nil {
		return err
	}
	u.ForcePasswordReset = true
	return nil
}

// ResetTokenExpired reports whether the pending reset token has lapsed.
// A user without a pending token is treated as expired.
func (u *User) ResetTokenExpired(now time.Time) bool {
	if u.ResetToken == "" || u.ResetExpiresAt == nil {
		return true
	}
	return now.After(*u.ResetExpiresAt)
}
