package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/fortifygo/fortify/hashing"
	"github.com/fortifygo/fortify/passwords"
)

// CredentialPassword is the key of the password entry in a Credentials
// map.  Every other key must name a field from Config.ValidFields.
const CredentialPassword = "password"

// Credentials is a credential map as submitted by a login form: exactly
// one identifying field plus the password.
type Credentials map[string]string

// Authenticator drives the session-based authentication state machine:
// credential verification, login and logout, remember-me persistence, and
// the registration, activation, and password-reset flows.
type Authenticator struct {
	cfg    Config
	users  UserStore
	tokens TokenStore
	hasher *hashing.Manager

	policy    *passwords.Pipeline
	hooks     *Hooks
	roles     RoleAssigner
	activator *Activator
	resetter  *Resetter
	log       *zap.Logger

	now func() time.Time
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the structured logger.  Defaults to zap.NewNop.
func WithLogger(log *zap.Logger) Option {
	return func(a *Authenticator) { a.log = log }
}

// WithHooks attaches a lifecycle hook registry.
func WithHooks(h *Hooks) Option {
	return func(a *Authenticator) { a.hooks = h }
}

// WithPolicy attaches a password policy enforced during registration and
// password resets.
func WithPolicy(p *passwords.Pipeline) Option {
	return func(a *Authenticator) { a.policy = p }
}

// WithRoleAssigner attaches the assigner used to grant Config.DefaultRole
// to new registrations.
func WithRoleAssigner(r RoleAssigner) Option {
	return func(a *Authenticator) { a.roles = r }
}

// WithActivator attaches the account-activation dispatcher.
func WithActivator(act *Activator) Option {
	return func(a *Authenticator) { a.activator = act }
}

// WithResetter attaches the password-reset dispatcher.
func WithResetter(r *Resetter) Option {
	return func(a *Authenticator) { a.resetter = r }
}

// withClock overrides the time source in tests.
func withClock(now func() time.Time) Option {
	return func(a *Authenticator) { a.now = now }
}

// NewAuthenticator wires an Authenticator over the given stores and hash
// manager.
func NewAuthenticator(cfg Config, users UserStore, tokens TokenStore, hasher *hashing.Manager, opts ...Option) (*Authenticator, error) {
	if users == nil || tokens == nil {
		return nil, ErrNilStore
	}
	if hasher == nil {
		return nil, hashing.ErrNilHasher
	}

	a := &Authenticator{
		cfg:    cfg,
		users:  users,
		tokens: tokens,
		hasher: hasher,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// ── Identity ────────────────────────────────────────────────────────────

// ID returns the user ID bound to the session, or false when the session
// is anonymous.
func (a *Authenticator) ID(web *WebContext) (int64, bool) {
	if web == nil || web.Session == nil {
		return 0, false
	}
	return web.Session.UserID()
}

// CurrentUser loads the user bound to the session.  Anonymous sessions
// return ErrUserNotFound.
func (a *Authenticator) CurrentUser(ctx context.Context, web *WebContext) (*User, error) {
	id, ok := a.ID(web)
	if !ok {
		return nil, ErrUserNotFound
	}
	return a.users.FindByID(ctx, id)
}

// ── Credential verification ─────────────────────────────────────────────

// ValidateCredentials verifies a credential map without creating a
// session.  It returns the matched user on success; on failure the error
// is one of ErrBadAttempt, ErrInvalidPassword, ErrUserBanned,
// ErrNotActivated (as *NotActivatedError), or ErrPasswordResetForced (as
// *ForcedResetError).
func (a *Authenticator) ValidateCredentials(ctx context.Context, creds Credentials) (*User, error) {
	user, err := a.validate(ctx, creds)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// validate is ValidateCredentials with one difference: whenever a user
// was resolved it is returned alongside the error (wrong password,
// banned, not activated, forced reset) so callers can attribute the
// attempt in the audit log.
func (a *Authenticator) validate(ctx context.Context, creds Credentials) (*User, error) {
	password, ok := creds[CredentialPassword]
	if !ok {
		return nil, ErrInvalidFields
	}

	field, login, err := a.identifyingField(creds)
	if err != nil {
		return nil, err
	}

	user, err := a.users.FindByField(ctx, field, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrBadAttempt
		}
		return nil, err
	}

	// Detect the driver from the stored hash so legacy hashes keep
	// verifying during a driver migration.
	ok, err = a.hasher.CheckWithDetect(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying password: %w", err)
	}
	if !ok {
		return user, ErrInvalidPassword
	}

	a.maybeRehash(ctx, user, password)

	switch {
	case user.IsBanned():
		return user, ErrUserBanned
	case !user.IsActive():
		return user, &NotActivatedError{Login: login}
	case user.ForcePasswordReset:
		return user, &ForcedResetError{ResetToken: user.ResetToken}
	}

	return user, nil
}

// identifyingField extracts the single non-password credential and checks
// it against the configured field list.
func (a *Authenticator) identifyingField(creds Credentials) (field, value string, err error) {
	for k, v := range creds {
		if k == CredentialPassword {
			continue
		}
		if field != "" {
			return "", "", ErrTooManyCredentials
		}
		field, value = k, v
	}
	if field == "" {
		return "", "", ErrInvalidFields
	}

	for _, allowed := range a.cfg.ValidFields {
		if field == allowed {
			return field, value, nil
		}
	}
	return "", "", ErrInvalidFields
}

// maybeRehash transparently upgrades a verified password hash when the
// manager's parameters have moved on.  Persistence failures are logged
// and swallowed; the login itself already succeeded.
func (a *Authenticator) maybeRehash(ctx context.Context, user *User, password string) {
	needs, err := a.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}

	rehashed, err := a.hasher.Make(password)
	if err != nil {
		a.log.Warn("password rehash failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}

	user.PasswordHash = rehashed
	user.UpdatedAt = a.now()
	if err := a.users.Save(ctx, user); err != nil {
		a.log.Warn("persisting rehashed password failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// ── Login / logout ──────────────────────────────────────────────────────

// Attempt verifies credentials and, on success, logs the user in.  Every
// outcome is recorded in the login-attempt audit log.  remember asks for
// a persistent token; it is ignored unless Config.AllowRemembering is
// set.
func (a *Authenticator) Attempt(ctx context.Context, web *WebContext, creds Credentials, remember bool) (*User, error) {
	user, err := a.validate(ctx, creds)
	if err != nil {
		var userID *int64
		if user != nil {
			userID = &user.ID
		}

		var forced *ForcedResetError
		if errors.As(err, &forced) {
			// Credentials verified; the redirect to the reset form is
			// the caller's job.
			a.logAttempt(ctx, newAttempt(AttemptLogin, web, creds.login(), true, userID, ""))
			return user, err
		}

		a.logAttempt(ctx, newAttempt(AttemptLogin, web, creds.login(), false, userID, ""))
		return nil, err
	}

	if err := a.Login(ctx, web, user, remember); err != nil {
		return nil, err
	}

	a.logAttempt(ctx, newAttempt(AttemptLogin, web, creds.login(), true, &user.ID, ""))
	return user, nil
}

// Login binds an already-verified user to the session.  The session ID is
// rotated against fixation unless the configuration opts out, the
// response is marked uncacheable, and a remember token is issued when
// requested and allowed.
func (a *Authenticator) Login(ctx context.Context, web *WebContext, user *User, remember bool) error {
	if user == nil {
		return ErrNilUser
	}
	if web == nil || web.Session == nil {
		return errors.New("auth: login requires a session")
	}

	if !a.hooks.RunBefore(EventLogin, user) {
		return ErrHookVetoed
	}

	if !a.cfg.SkipSessionRegeneration {
		web.Session.Regenerate()
	}
	web.Session.SetUserID(user.ID)

	if web.Cookies != nil {
		web.Cookies.NoCache()
	}

	if remember && a.cfg.AllowRemembering {
		if err := a.rememberUser(ctx, web, user.ID); err != nil {
			return err
		}
	}

	if a.cfg.PurgeProbability > 0 && rand.IntN(100) < a.cfg.PurgeProbability {
		if n, err := a.tokens.PurgeExpired(ctx); err != nil {
			a.log.Warn("purging expired remember tokens failed", zap.Error(err))
		} else if n > 0 {
			a.log.Debug("purged expired remember tokens", zap.Int64("count", n))
		}
	}

	a.hooks.RunAfter(EventLogin, user)
	return nil
}

// LoginByID loads a user and logs them in.  Intended for trusted contexts
// such as post-activation sign-in.
func (a *Authenticator) LoginByID(ctx context.Context, web *WebContext, id int64, remember bool) (*User, error) {
	user, err := a.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.Login(ctx, web, user, remember); err != nil {
		return nil, err
	}
	return user, nil
}

// Logout tears the session down: remember tokens are revoked, the cookie
// is cleared, session data is wiped, and the session ID rotated.
func (a *Authenticator) Logout(ctx context.Context, web *WebContext) error {
	if web == nil || web.Session == nil {
		return nil
	}

	id, ok := web.Session.UserID()

	if !a.hooks.RunBefore(EventLogout, id) {
		return ErrHookVetoed
	}

	if ok {
		if err := a.tokens.PurgeForUser(ctx, id); err != nil {
			a.log.Warn("revoking remember tokens failed", zap.Int64("user_id", id), zap.Error(err))
		}
	}
	if web.Cookies != nil {
		web.Cookies.ClearRemember()
	}

	web.Session.Clear()
	web.Session.Regenerate()

	a.hooks.RunAfter(EventLogout, id)
	return nil
}

// ── Session / remember-me check ─────────────────────────────────────────

// Check reports whether the request is authenticated.  A session binding
// wins; otherwise a valid remember-me cookie silently re-establishes the
// session and rotates the token.  When the bound account has a pending
// forced password reset, Check returns (true, *ForcedResetError): the
// user is authenticated but must be routed to the reset form.
func (a *Authenticator) Check(ctx context.Context, web *WebContext) (bool, error) {
	if web == nil || web.Session == nil {
		return false, nil
	}

	if id, ok := web.Session.UserID(); ok {
		user, err := a.users.FindByID(ctx, id)
		if err != nil {
			return false, err
		}
		if user.ForcePasswordReset {
			return true, &ForcedResetError{ResetToken: user.ResetToken}
		}
		return true, nil
	}

	if !a.cfg.AllowRemembering || web.Cookies == nil {
		return false, nil
	}
	raw, ok := web.Cookies.Remember()
	if !ok {
		return false, nil
	}

	return a.checkRemember(ctx, web, raw)
}

// checkRemember validates a remember cookie and, when it holds, logs the
// user back in and rotates the validator (single use).
func (a *Authenticator) checkRemember(ctx context.Context, web *WebContext, raw string) (bool, error) {
	selector, validator, ok := splitRememberCookie(raw)
	if !ok {
		web.Cookies.ClearRemember()
		return false, nil
	}

	token, err := a.tokens.GetBySelector(ctx, selector)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			web.Cookies.ClearRemember()
			return false, nil
		}
		return false, err
	}
	if token.IsExpired(a.now()) {
		web.Cookies.ClearRemember()
		return false, nil
	}

	want := []byte(token.ValidatorHash)
	got := []byte(HashValidator(validator))
	if subtle.ConstantTimeCompare(want, got) != 1 {
		// Possible theft: the selector matched but the secret did not.
		web.Cookies.ClearRemember()
		return false, nil
	}

	user, err := a.users.FindByID(ctx, token.UserID)
	if err != nil {
		web.Cookies.ClearRemember()
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}

	// Re-establish the session without minting a second remember row;
	// the existing one is rotated below.
	if err := a.Login(ctx, web, user, false); err != nil {
		return false, err
	}

	if err := a.refreshRemember(ctx, web, token); err != nil {
		// The session is already valid, so a rotation failure degrades
		// the cookie, not the login.
		a.log.Error("rotating remember token failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	if user.ForcePasswordReset {
		return true, &ForcedResetError{ResetToken: user.ResetToken}
	}
	return true, nil
}

// rememberUser mints a fresh selector/validator pair, stores its hash,
// and sets the cookie.
func (a *Authenticator) rememberUser(ctx context.Context, web *WebContext, userID int64) error {
	if web.Cookies == nil {
		return nil
	}

	selector, validator, err := generateRememberPair()
	if err != nil {
		return err
	}

	expires := a.now().Add(a.cfg.RememberLength)
	if err := a.tokens.RememberUser(ctx, userID, selector, HashValidator(validator), expires); err != nil {
		return fmt.Errorf("auth: storing remember token: %w", err)
	}

	web.Cookies.SetRemember(rememberCookieValue(selector, validator), a.cfg.RememberLength)
	return nil
}

// refreshRemember replaces the validator of an existing remember row and
// rewrites the cookie.  The selector and expiry stay put, so a stolen
// cookie cannot keep a token alive forever.
func (a *Authenticator) refreshRemember(ctx context.Context, web *WebContext, token *RememberToken) error {
	_, validator, err := generateRememberPair()
	if err != nil {
		return err
	}

	if err := a.tokens.UpdateValidator(ctx, token.Selector, HashValidator(validator)); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			// Row vanished between lookup and rotation; issue a new one.
			return a.rememberUser(ctx, web, token.UserID)
		}
		return err
	}

	web.Cookies.SetRemember(rememberCookieValue(token.Selector, validator), token.ExpiresAt.Sub(a.now()))
	return nil
}

// ── Audit helpers ───────────────────────────────────────────────────────

// login returns the identifying credential value for audit logging, or
// empty when the map is malformed.
func (c Credentials) login() string {
	for k, v := range c {
		if k != CredentialPassword {
			return v
		}
	}
	return ""
}

func (a *Authenticator) logAttempt(ctx context.Context, attempt Attempt) {
	var err error
	switch attempt.Type {
	case AttemptLogin:
		err = a.users.LogLoginAttempt(ctx, attempt)
	case AttemptReset:
		err = a.users.LogResetAttempt(ctx, attempt)
	case AttemptActivation:
		err = a.users.LogActivationAttempt(ctx, attempt)
	}
	if err != nil {
		a.log.Warn("recording attempt failed", zap.String("type", string(attempt.Type)), zap.Error(err))
	}
}
