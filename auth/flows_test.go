package auth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fortifygo/fortify/auth"
	"github.com/fortifygo/fortify/inmemory"
	"github.com/fortifygo/fortify/passwords"
)

// roleRecorder captures default-role grants.
type roleRecorder struct {
	mu     sync.Mutex
	grants map[int64]string
}

func newRoleRecorder() *roleRecorder {
	return &roleRecorder{grants: make(map[int64]string)}
}

func (r *roleRecorder) AssignRole(_ context.Context, userID int64, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[userID] = role
	return nil
}

func (r *roleRecorder) granted(userID int64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.grants[userID]
	return role, ok
}

// flowHarness extends harness with registration/reset collaborators.
type flowHarness struct {
	*harness
	mailer *inmemory.Mailer
	roles  *roleRecorder
}

func newFlowHarness(t *testing.T, mutate func(*auth.Config)) *flowHarness {
	t.Helper()

	cfg := auth.DefaultConfig()
	cfg.PurgeProbability = 0
	cfg.DefaultRole = "member"
	if mutate != nil {
		mutate(&cfg)
	}

	f := &flowHarness{
		harness: &harness{
			users:  inmemory.NewUserStore(),
			tokens: inmemory.NewTokenStore(),
			hasher: newTestHashManager(t),
			hooks:  auth.NewHooks(),
			cfg:    cfg,
		},
		mailer: inmemory.NewMailer(),
		roles:  newRoleRecorder(),
	}

	compose := func(u *auth.User, token string) (string, string) {
		return "Your link", fmt.Sprintf("<a href=%q>go</a>", token)
	}
	registry := auth.NewRegistry()
	if err := registry.Register("email", &auth.EmailActivationSender{
		Mailer: f.mailer, From: "noreply@example.com", Compose: compose,
	}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register("email-reset", &auth.EmailResetSender{
		Mailer: f.mailer, From: "noreply@example.com", Compose: compose,
	}); err != nil {
		t.Fatal(err)
	}

	minLength, err := passwords.NewCompositionStage(8)
	if err != nil {
		t.Fatal(err)
	}

	a, err := auth.NewAuthenticator(cfg, f.users, f.tokens, f.hasher,
		auth.WithHooks(f.hooks),
		auth.WithPolicy(passwords.NewPipeline(minLength)),
		auth.WithRoleAssigner(f.roles),
		auth.WithActivator(auth.NewActivator(registry, "email", nil)),
		auth.WithResetter(auth.NewResetter(registry, "email-reset", nil)),
	)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	f.auth = a
	return f
}

func (f *flowHarness) register(t *testing.T, email, username, password string) *auth.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), newWeb(), auth.Registration{
		Email: email, Username: username, Password: password,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return u
}

// ──────────────────────────────────────────────────────────────────────────────
// Register
// ──────────────────────────────────────────────────────────────────────────────

func TestRegister_WithActivation(t *testing.T) {
	f := newFlowHarness(t, nil)
	u := f.register(t, "Sam@Example.com", "sam", "a decent password")

	if u.ID == 0 {
		t.Error("registered user has no ID")
	}
	if u.Email != "sam@example.com" {
		t.Errorf("email = %q, want lowercased", u.Email)
	}
	if u.Status != auth.StatusRegistered || u.ActivateToken == "" {
		t.Errorf("status=%q token=%q, want registered with token", u.Status, u.ActivateToken)
	}

	msgs := f.mailer.Messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1 activation mail", len(msgs))
	}
	if msgs[0].To != "sam@example.com" || !strings.Contains(msgs[0].HTMLBody, u.ActivateToken) {
		t.Errorf("activation mail = %+v, want token link to user", msgs[0])
	}

	if role, ok := f.roles.granted(u.ID); !ok || role != "member" {
		t.Errorf("default role = (%q, %v), want (member, true)", role, ok)
	}
}

func TestRegister_WithoutActivation(t *testing.T) {
	f := newFlowHarness(t, func(cfg *auth.Config) { cfg.RequireActivation = false })
	u := f.register(t, "tia@example.com", "tia", "a decent password")

	if u.Status != auth.StatusActive || u.ActivateToken != "" {
		t.Errorf("status=%q token=%q, want immediately active", u.Status, u.ActivateToken)
	}
	if len(f.mailer.Messages()) != 0 {
		t.Error("no activation mail expected")
	}
}

func TestRegister_Disabled(t *testing.T) {
	f := newFlowHarness(t, func(cfg *auth.Config) { cfg.AllowRegistration = false })
	_, err := f.auth.Register(context.Background(), newWeb(), auth.Registration{
		Email: "u@example.com", Username: "u", Password: "a decent password",
	})
	if !errors.Is(err, auth.ErrRegistrationDisabled) {
		t.Errorf("expected ErrRegistrationDisabled, got %v", err)
	}
}

func TestRegister_PolicyRejectsWeakPassword(t *testing.T) {
	f := newFlowHarness(t, nil)
	_, err := f.auth.Register(context.Background(), newWeb(), auth.Registration{
		Email: "u@example.com", Username: "u", Password: "short",
	})
	var failure *passwords.Failure
	if !errors.As(err, &failure) || failure.Code != passwords.CodeLength {
		t.Errorf("expected length failure, got %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFlowHarness(t, nil)
	f.register(t, "dup@example.com", "first", "a decent password")

	_, err := f.auth.Register(context.Background(), newWeb(), auth.Registration{
		Email: "dup@example.com", Username: "second", Password: "a decent password",
	})
	if !errors.Is(err, inmemory.ErrDuplicate) {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestRegister_DeliveryFailure(t *testing.T) {
	f := newFlowHarness(t, nil)
	f.mailer.Err = errors.New("smtp down")

	u, err := f.auth.Register(context.Background(), newWeb(), auth.Registration{
		Email: "v@example.com", Username: "v", Password: "a decent password",
	})
	if !errors.Is(err, auth.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	// The account exists; the caller can offer a resend.
	if u == nil || u.ID == 0 {
		t.Error("user should be created even when delivery fails")
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Activate / ResendActivation
// ──────────────────────────────────────────────────────────────────────────────

func TestActivate(t *testing.T) {
	f := newFlowHarness(t, nil)
	u := f.register(t, "walt@example.com", "walt", "a decent password")
	ctx := context.Background()

	got, err := f.auth.Activate(ctx, newWeb(), u.ActivateToken)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if got.Status != auth.StatusActive || got.ActivateToken != "" {
		t.Errorf("status=%q token=%q, want active with cleared token", got.Status, got.ActivateToken)
	}

	// Activation is single use.
	if _, err := f.auth.Activate(ctx, newWeb(), u.ActivateToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("reused token: expected ErrInvalidToken, got %v", err)
	}

	attempts := f.users.ActivationAttempts()
	var successes int
	for _, a := range attempts {
		if a.Success && a.UserID != nil && *a.UserID == u.ID && a.Type == auth.AttemptActivation {
			successes++
		}
	}
	if successes == 0 {
		t.Error("successful activation not recorded in the audit log")
	}
}

func TestActivate_BadToken(t *testing.T) {
	f := newFlowHarness(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "does-not-exist"} {
		if _, err := f.auth.Activate(ctx, newWeb(), token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Errorf("Activate(%q): expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestResendActivation(t *testing.T) {
	f := newFlowHarness(t, nil)
	u := f.register(t, "xena@example.com", "xena", "a decent password")
	oldToken := u.ActivateToken

	if err := f.auth.ResendActivation(context.Background(), newWeb(), "xena@example.com"); err != nil {
		t.Fatalf("ResendActivation: %v", err)
	}

	stored, _ := f.users.FindByID(context.Background(), u.ID)
	if stored.ActivateToken == "" || stored.ActivateToken == oldToken {
		t.Error("resend should mint a fresh activation token")
	}
	if msgs := f.mailer.Messages(); len(msgs) != 2 {
		t.Errorf("messages = %d, want registration + resend", len(msgs))
	}
	if _, err := f.auth.Activate(context.Background(), newWeb(), oldToken); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("old token must be dead after resend, got %v", err)
	}
}

func TestResendActivation_AlreadyActive(t *testing.T) {
	f := newFlowHarness(t, nil)
	u := f.register(t, "yuri@example.com", "yuri", "a decent password")
	if _, err := f.auth.Activate(context.Background(), newWeb(), u.ActivateToken); err != nil {
		t.Fatal(err)
	}

	err := f.auth.ResendActivation(context.Background(), newWeb(), "yuri@example.com")
	if !errors.Is(err, auth.ErrAlreadyActivated) {
		t.Errorf("expected ErrAlreadyActivated, got %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Password reset
// ──────────────────────────────────────────────────────────────────────────────

func TestPasswordReset_EndToEnd(t *testing.T) {
	f := newFlowHarness(t, func(cfg *auth.Config) { cfg.RequireActivation = false })
	u := f.register(t, "zoe@example.com", "zoe", "old password 123")
	ctx := context.Background()

	if err := f.auth.RequestPasswordReset(ctx, newWeb(), "zoe@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	stored, _ := f.users.FindByID(ctx, u.ID)
	if stored.ResetToken == "" || stored.ResetExpiresAt == nil {
		t.Fatal("reset token not issued")
	}
	msgs := f.mailer.Messages()
	if len(msgs) == 0 || !strings.Contains(msgs[len(msgs)-1].HTMLBody, stored.ResetToken) {
		t.Fatal("reset mail should carry the token")
	}

	// A live remember token must not survive the password change.
	if err := f.tokens.RememberUser(ctx, u.ID, "sel-zoe", auth.HashValidator("v"), time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	got, err := f.auth.ResetPassword(ctx, newWeb(), stored.ResetToken, "brand new password")
	if err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if got.ResetToken != "" || got.ForcePasswordReset {
		t.Error("reset artifacts should be cleared")
	}
	if n := f.tokens.Count(); n != 0 {
		t.Errorf("remember tokens after reset = %d, want 0", n)
	}

	// Old password dead, new password live.
	if _, err := f.auth.Attempt(ctx, newWeb(), creds(auth.FieldEmail, "zoe@example.com", "old password 123"), false); !errors.Is(err, auth.ErrInvalidPassword) {
		t.Errorf("old password: expected ErrInvalidPassword, got %v", err)
	}
	if _, err := f.auth.Attempt(ctx, newWeb(), creds(auth.FieldEmail, "zoe@example.com", "brand new password"), false); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	f := newFlowHarness(t, nil)
	err := f.auth.RequestPasswordReset(context.Background(), newWeb(), "nobody@example.com")
	if !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	attempts := f.users.ResetAttempts()
	if len(attempts) != 1 || attempts[0].Success || attempts[0].UserID != nil {
		t.Errorf("expected one unattributed failed reset attempt, got %+v", attempts)
	}
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	f := newFlowHarness(t, func(cfg *auth.Config) {
		cfg.RequireActivation = false
		cfg.ResetWindow = -time.Minute // already lapsed when issued
	})
	f.register(t, "amos@example.com", "amos", "old password 123")
	ctx := context.Background()

	if err := f.auth.RequestPasswordReset(ctx, newWeb(), "amos@example.com"); err != nil {
		t.Fatal(err)
	}
	stored, _ := f.users.FindByField(ctx, auth.FieldEmail, "amos@example.com")

	_, err := f.auth.ResetPassword(ctx, newWeb(), stored.ResetToken, "brand new password")
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestResetPassword_PolicyEnforced(t *testing.T) {
	f := newFlowHarness(t, func(cfg *auth.Config) { cfg.RequireActivation = false })
	f.register(t, "bea@example.com", "bea", "old password 123")
	ctx := context.Background()

	if err := f.auth.RequestPasswordReset(ctx, newWeb(), "bea@example.com"); err != nil {
		t.Fatal(err)
	}
	stored, _ := f.users.FindByField(ctx, auth.FieldEmail, "bea@example.com")

	_, err := f.auth.ResetPassword(ctx, newWeb(), stored.ResetToken, "weak")
	var failure *passwords.Failure
	if !errors.As(err, &failure) {
		t.Errorf("expected policy failure, got %v", err)
	}
}

func TestResetPassword_ClearsForcedFlag(t *testing.T) {
	f := newFlowHarness(t, func(cfg *auth.Config) { cfg.RequireActivation = false })
	u := f.register(t, "cruz@example.com", "cruz", "old password 123")
	ctx := context.Background()

	stored, _ := f.users.FindByID(ctx, u.ID)
	if err := stored.ForceReset(time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := f.users.Save(ctx, stored); err != nil {
		t.Fatal(err)
	}

	if _, err := f.auth.ResetPassword(ctx, newWeb(), stored.ResetToken, "brand new password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}

	// Login no longer signals a forced reset.
	if _, err := f.auth.Attempt(ctx, newWeb(), creds(auth.FieldEmail, "cruz@example.com", "brand new password"), false); err != nil {
		t.Errorf("Attempt after forced reset completed: %v", err)
	}
}
