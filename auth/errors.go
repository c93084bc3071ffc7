package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrBadAttempt is returned when credentials match no user at all.
	// Callers should present it identically to ErrInvalidPassword so the
	// response does not leak which accounts exist.
	ErrBadAttempt = errors.New("auth: no account matches the supplied credentials")

	// ErrInvalidPassword is returned when a user was found but the
	// password did not verify.
	ErrInvalidPassword = errors.New("auth: invalid password")

	// ErrUserBanned is returned when the account is banned or
	// permanently banned.
	ErrUserBanned = errors.New("auth: account is banned")

	// ErrNotActivated is returned when the account has registered but
	// never completed activation.  The concrete error is a
	// *NotActivatedError carrying the login identifier for a resend
	// prompt.
	ErrNotActivated = errors.New("auth: account is not activated")

	// ErrPasswordResetForced is returned (wrapped in a
	// *ForcedResetError) when credentials verified but an administrator
	// has required a password change before the session may be used.
	ErrPasswordResetForced = errors.New("auth: password reset required")

	// ErrTooManyCredentials is returned when more than one identifying
	// credential is supplied besides the password.
	ErrTooManyCredentials = errors.New("auth: only one credential field may be used")

	// ErrInvalidFields is returned when a credential key is not in the
	// configured ValidFields list.
	ErrInvalidFields = errors.New("auth: credential field is not allowed")

	// ErrUserNotFound is returned by lookups that matched no user.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrTokenNotFound is returned when a remember selector, activation
	// token, or reset token matches no stored row.
	ErrTokenNotFound = errors.New("auth: token not found")

	// ErrInvalidToken is returned when a supplied activation or reset
	// token is empty, unknown, or expired.
	ErrInvalidToken = errors.New("auth: invalid or expired token")

	// ErrAlreadyActivated is returned when activation is attempted on an
	// account that is past the registered state.
	ErrAlreadyActivated = errors.New("auth: account is already activated")

	// ErrRegistrationDisabled is returned by Register when the
	// configuration does not allow self-registration.
	ErrRegistrationDisabled = errors.New("auth: registration is disabled")

	// ErrDeliveryFailed is returned when an activation or reset message
	// could not be handed to its sender.
	ErrDeliveryFailed = errors.New("auth: message delivery failed")

	// ErrHookVetoed is returned when a before hook rejects an operation.
	ErrHookVetoed = errors.New("auth: operation vetoed by hook")

	// ErrNilUser is returned when a nil user is passed where a user is
	// required.
	ErrNilUser = errors.New("auth: user must not be nil")

	// ErrNilStore is returned when an Authenticator is constructed
	// without its required stores.
	ErrNilStore = errors.New("auth: store must not be nil")

	// ErrSenderNotFound is returned when a delivery strategy name is not
	// registered.
	ErrSenderNotFound = errors.New("auth: sender not registered")

	// ErrEmptySenderName is returned when a delivery strategy is
	// registered under an empty name.
	ErrEmptySenderName = errors.New("auth: sender name must not be empty")
)

// NotActivatedError reports a credential check that succeeded against an
// account still awaiting activation.  Login carries the identifier the
// user signed in with so the caller can offer to resend the activation
// message.
type NotActivatedError struct {
	Login string
}

func (e *NotActivatedError) Error() string {
	return fmt.Sprintf("auth: account %q is not activated", e.Login)
}

func (e *NotActivatedError) Unwrap() error { return ErrNotActivated }

// ForcedResetError reports that credentials verified but the account must
// change its password before proceeding.  ResetToken is the token the
// caller should embed in the reset link it redirects to.
type ForcedResetError struct {
	ResetToken string
}

func (e *ForcedResetError) Error() string {
	return "auth: password reset required before continuing"
}

func (e *ForcedResetError) Unwrap() error { return ErrPasswordResetForced }
