// Package auth implements the fortify credential authenticator: login,
// logout, remember-me persistence, registration, and the activation and
// password-reset flows.
//
// # Architecture
//
// The [Authenticator] is the entry point.  It owns no storage: users,
// remember tokens, and audit rows live behind the [UserStore] and
// [TokenStore] interfaces, password hashing is delegated to a
// [hashing.Manager], and password policy to a [passwords.Pipeline].  All
// session and cookie state is threaded explicitly through a [*WebContext]
// argument on every call — the package never reaches for ambient request
// state.
//
// A reference in-memory implementation of every collaborator lives in the
// inmemory package; SQL-backed stores live in the postgres package.
//
// # Remember-me tokens
//
// Persistent logins use split selector/validator tokens.  The selector is
// a public lookup key; the validator is a secret the client proves by
// SHA-256 comparison, stored server-side only as a hash.  Validators are
// single-use: every successful silent login rotates the validator while
// keeping the selector, so one device's cookie can be replayed at most
// once while other devices stay remembered.
//
// # Failure semantics
//
// Expected authentication failures (unknown user, wrong password, banned
// or not-yet-activated account) are sentinel errors compared with
// [errors.Is] — they are outcomes, not exceptions.  Malformed credential
// sets ([ErrTooManyCredentials], [ErrInvalidFields]) indicate programmer
// error.  A user flagged for forced password reset surfaces from
// [Authenticator.Check] as a [*ForcedResetError], a distinguished signal
// that must preempt normal request handling.
package auth
