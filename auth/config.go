package auth

import "time"

// Config tunes the Authenticator.  Construct with DefaultConfig and
// adjust fields before passing it to NewAuthenticator; the zero value
// leaves remembering and registration disabled.
type Config struct {
	// ValidFields lists the credential keys accepted besides the
	// password, in lookup order.
	ValidFields []string

	// AllowRegistration enables self-service registration.
	AllowRegistration bool

	// RequireActivation forces newly registered accounts through an
	// activation step before they can sign in.
	RequireActivation bool

	// AllowRemembering enables persistent remember-me tokens.
	AllowRemembering bool

	// RememberLength is the lifetime of a remember-me token.
	RememberLength time.Duration

	// ResetWindow is how long a password-reset token stays valid.
	ResetWindow time.Duration

	// DefaultRole, when non-empty, is assigned to every newly registered
	// user through the configured RoleAssigner.
	DefaultRole string

	// PurgeProbability is the percent chance (0..100) that a successful
	// login also sweeps expired remember tokens for all users.  Zero
	// disables the sweep.
	PurgeProbability int

	// SkipSessionRegeneration suppresses the session-ID rotation
	// normally performed on login.  Only for session backends that
	// cannot rotate IDs.
	SkipSessionRegeneration bool
}

// DefaultConfig returns the recommended configuration: email or username
// login, activation required, thirty-day remember tokens, one-hour reset
// windows, and a 20% expired-token sweep on login.
func DefaultConfig() Config {
	return Config{
		ValidFields:       []string{FieldEmail, FieldUsername},
		AllowRegistration: true,
		RequireActivation: true,
		AllowRemembering:  true,
		RememberLength:    30 * 24 * time.Hour,
		ResetWindow:       time.Hour,
		PurgeProbability:  20,
	}
}
