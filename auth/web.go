package auth

import "time"

// Session is the authenticated-identity side of a web request.  The
// Authenticator never touches ambient request state; callers adapt their
// HTTP session mechanism to this interface and pass it in explicitly.
type Session interface {
	// ID returns the current session identifier.
	ID() string

	// UserID returns the authenticated user ID stored in the session, if
	// any.
	UserID() (int64, bool)

	// SetUserID marks the session as authenticated for the given user.
	SetUserID(id int64)

	// Clear removes all session data but keeps the session container
	// alive, so flash messages written after logout still reach the user.
	Clear()

	// Regenerate swaps the session identifier while preserving data
	// (session-fixation defence).
	Regenerate()
}

// Cookies is the response/cookie side of a web request.
type Cookies interface {
	// Remember returns the remember-me cookie payload, if present.
	Remember() (string, bool)

	// SetRemember writes the remember-me cookie ("selector:validator")
	// with the given lifetime.  Implementations should mark the cookie
	// HTTP-only and scope it per the application's cookie policy.
	SetRemember(value string, ttl time.Duration)

	// ClearRemember deletes the remember-me cookie.
	ClearRemember()

	// NoCache instructs the client not to cache the response.  Called on
	// every successful login so authenticated pages never land in shared
	// caches.
	NoCache()
}

// WebContext carries the per-request web state the Authenticator needs:
// the session, the cookie jar, and the client details recorded in the
// attempt audit log.  It replaces any notion of request globals.
type WebContext struct {
	Session Session
	Cookies Cookies

	// IP is the client address (v4 or v6) as seen by the edge.
	IP string

	// UserAgent is the client's User-Agent header value.
	UserAgent string
}
