package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Registration is the input to [Authenticator.Register].
type Registration struct {
	Email    string
	Username string
	Password string

	// CreatorID attributes the new account to an existing user when the
	// registration is performed by an administrator.  Zero means
	// self-registration.
	CreatorID int64
}

// Register creates a new account.  The password is checked against the
// configured policy, hashed, and stored; when activation is required the
// account starts in the registered state and the activation message is
// dispatched, otherwise it is active immediately.  The configured default
// role, if any, is assigned.
func (a *Authenticator) Register(ctx context.Context, web *WebContext, reg Registration) (*User, error) {
	if !a.cfg.AllowRegistration {
		return nil, ErrRegistrationDisabled
	}

	email := strings.TrimSpace(strings.ToLower(reg.Email))
	username := strings.TrimSpace(reg.Username)
	if email == "" || username == "" {
		return nil, ErrInvalidFields
	}

	user := &User{
		Email:     email,
		Username:  username,
		Status:    StatusActive,
		CreatorID: reg.CreatorID,
		CreatedAt: a.now(),
		UpdatedAt: a.now(),
	}

	if a.policy != nil {
		if err := a.policy.Validate(ctx, reg.Password, user); err != nil {
			return nil, err
		}
	}

	hash, err := a.hasher.Make(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing password: %w", err)
	}
	user.PasswordHash = hash

	if a.cfg.RequireActivation {
		if err := user.GenerateActivateToken(); err != nil {
			return nil, err
		}
	}

	if !a.hooks.RunBefore(EventRegister, user) {
		return nil, ErrHookVetoed
	}

	if err := a.users.Save(ctx, user); err != nil {
		return nil, err
	}

	if a.cfg.DefaultRole != "" && a.roles != nil {
		if err := a.roles.AssignRole(ctx, user.ID, a.cfg.DefaultRole); err != nil {
			a.log.Warn("assigning default role failed",
				zap.Int64("user_id", user.ID),
				zap.String("role", a.cfg.DefaultRole),
				zap.Error(err))
		}
	}

	if a.cfg.RequireActivation {
		if err := a.sendActivation(ctx, web, user); err != nil {
			return user, err
		}
	}

	a.hooks.RunAfter(EventRegister, user)
	return user, nil
}

// ── Activation ──────────────────────────────────────────────────────────

// Activate completes account activation for the given token.  The token
// is single use; success clears it and moves the account to active.
func (a *Authenticator) Activate(ctx context.Context, web *WebContext, token string) (*User, error) {
	if token == "" {
		a.logAttempt(ctx, newAttempt(AttemptActivation, web, "", false, nil, token))
		return nil, ErrInvalidToken
	}

	user, err := a.users.FindByField(ctx, FieldActivateToken, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.logAttempt(ctx, newAttempt(AttemptActivation, web, "", false, nil, token))
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if user.Status != StatusRegistered {
		a.logAttempt(ctx, newAttempt(AttemptActivation, web, user.Email, false, &user.ID, token))
		return nil, ErrAlreadyActivated
	}

	if !a.hooks.RunBefore(EventActivate, user) {
		return nil, ErrHookVetoed
	}

	user.Activate()
	user.UpdatedAt = a.now()
	if err := a.users.Save(ctx, user); err != nil {
		return nil, err
	}

	a.logAttempt(ctx, newAttempt(AttemptActivation, web, user.Email, true, &user.ID, token))
	a.hooks.RunAfter(EventActivate, user)
	return user, nil
}

// ResendActivation regenerates the activation token for a
// still-unactivated account and dispatches a fresh message.  Active
// accounts get ErrAlreadyActivated.
func (a *Authenticator) ResendActivation(ctx context.Context, web *WebContext, email string) error {
	user, err := a.users.FindByField(ctx, FieldEmail, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user.Status != StatusRegistered {
		return ErrAlreadyActivated
	}

	if err := user.GenerateActivateToken(); err != nil {
		return err
	}
	user.UpdatedAt = a.now()
	if err := a.users.Save(ctx, user); err != nil {
		return err
	}

	return a.sendActivation(ctx, web, user)
}

func (a *Authenticator) sendActivation(ctx context.Context, web *WebContext, user *User) error {
	if a.activator == nil {
		return nil
	}
	if err := a.activator.Send(ctx, user); err != nil {
		a.logAttempt(ctx, newAttempt(AttemptActivation, web, user.Email, false, &user.ID, user.ActivateToken))
		return err
	}
	a.logAttempt(ctx, newAttempt(AttemptActivation, web, user.Email, true, &user.ID, user.ActivateToken))
	return nil
}

// ── Password reset ──────────────────────────────────────────────────────

// RequestPasswordReset issues a reset token for the account behind email
// and dispatches the reset message.  Unknown addresses return
// ErrUserNotFound; the caller decides whether to surface that or respond
// uniformly.
func (a *Authenticator) RequestPasswordReset(ctx context.Context, web *WebContext, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := a.users.FindByField(ctx, FieldEmail, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.logAttempt(ctx, newAttempt(AttemptReset, web, email, false, nil, ""))
		}
		return err
	}

	if err := user.GenerateResetToken(a.cfg.ResetWindow); err != nil {
		return err
	}
	user.UpdatedAt = a.now()
	if err := a.users.Save(ctx, user); err != nil {
		return err
	}

	if a.resetter != nil {
		if err := a.resetter.Send(ctx, user); err != nil {
			a.logAttempt(ctx, newAttempt(AttemptReset, web, email, false, &user.ID, user.ResetToken))
			return err
		}
	}

	a.logAttempt(ctx, newAttempt(AttemptReset, web, email, true, &user.ID, user.ResetToken))
	return nil
}

// ResetPassword redeems a reset token: the new password is validated
// against the policy, hashed, and stored, and the token plus any forced
// reset flag are cleared.  Expired or unknown tokens return
// ErrInvalidToken.
func (a *Authenticator) ResetPassword(ctx context.Context, web *WebContext, token, newPassword string) (*User, error) {
	if token == "" {
		a.logAttempt(ctx, newAttempt(AttemptReset, web, "", false, nil, token))
		return nil, ErrInvalidToken
	}

	user, err := a.users.FindByField(ctx, FieldResetToken, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.logAttempt(ctx, newAttempt(AttemptReset, web, "", false, nil, token))
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if user.ResetTokenExpired(a.now()) {
		a.logAttempt(ctx, newAttempt(AttemptReset, web, user.Email, false, &user.ID, token))
		return nil, ErrInvalidToken
	}

	if a.policy != nil {
		if err := a.policy.Validate(ctx, newPassword, user); err != nil {
			return nil, err
		}
	}

	hash, err := a.hasher.Make(newPassword)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing password: %w", err)
	}

	if !a.hooks.RunBefore(EventPasswordReset, user) {
		return nil, ErrHookVetoed
	}

	user.SetPasswordHash(hash)
	user.UpdatedAt = a.now()
	if err := a.users.Save(ctx, user); err != nil {
		return nil, err
	}

	// Every outstanding remember token dies with the old password.
	if err := a.tokens.PurgeForUser(ctx, user.ID); err != nil {
		a.log.Warn("revoking remember tokens failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	a.logAttempt(ctx, newAttempt(AttemptReset, web, user.Email, true, &user.ID, token))
	a.hooks.RunAfter(EventPasswordReset, user)
	return user, nil
}
