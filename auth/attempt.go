package auth

import "time"

// AttemptType classifies an audit-log row.
type AttemptType string

const (
	AttemptLogin      AttemptType = "login"
	AttemptReset      AttemptType = "reset"
	AttemptActivation AttemptType = "activation"
)

// Attempt is one append-only audit row recording a login, password-reset,
// or activation attempt.  Rows are never updated or deleted except by an
// explicit store-level purge.
type Attempt struct {
	// ID is assigned by the store (a sortable string identifier).
	ID string

	Type AttemptType

	// UserID is nil when no account could be resolved for the attempt.
	UserID *int64

	// Email is the login value as supplied, resolved or not.
	Email string

	IP        string
	UserAgent string
	Success   bool

	// Token is the activation or reset secret involved, if any.
	Token string

	CapturedAt time.Time
}

// newAttempt builds an Attempt stamped with the web context's client info.
// web may be nil (e.g. non-HTTP callers); the row is then recorded without
// IP or user agent.
func newAttempt(typ AttemptType, web *WebContext, email string, success bool, userID *int64, token string) Attempt {
	a := Attempt{
		Type:       typ,
		Email:      email,
		Success:    success,
		UserID:     userID,
		Token:      token,
		CapturedAt: time.Now(),
	}
	if web != nil {
		a.IP = web.IP
		a.UserAgent = web.UserAgent
	}
	return a
}
