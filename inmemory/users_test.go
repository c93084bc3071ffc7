package inmemory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortifygo/fortify/auth"
	"github.com/fortifygo/fortify/inmemory"
)

func TestUserStore_SaveAssignsID(t *testing.T) {
	s := inmemory.NewUserStore()
	ctx := context.Background()

	u := &auth.User{Email: "a@example.com", Username: "a", Status: auth.StatusActive}
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("insert did not assign an ID")
	}

	got, err := s.FindByID(ctx, u.ID)
	if err != nil || got.Email != "a@example.com" {
		t.Fatalf("FindByID: user=%v err=%v", got, err)
	}
}

func TestUserStore_Uniqueness(t *testing.T) {
	s := inmemory.NewUserStore()
	ctx := context.Background()

	if err := s.Save(ctx, &auth.User{Email: "a@example.com", Username: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, &auth.User{Email: "a@example.com", Username: "b"}); !errors.Is(err, inmemory.ErrDuplicate) {
		t.Errorf("duplicate email: expected ErrDuplicate, got %v", err)
	}
	if err := s.Save(ctx, &auth.User{Email: "b@example.com", Username: "a"}); !errors.Is(err, inmemory.ErrDuplicate) {
		t.Errorf("duplicate username: expected ErrDuplicate, got %v", err)
	}
}

func TestUserStore_SoftDeleteFreesIdentifiers(t *testing.T) {
	s := inmemory.NewUserStore()
	ctx := context.Background()

	u := &auth.User{Email: "a@example.com", Username: "a", Status: auth.StatusActive}
	if err := s.Save(ctx, u); err != nil {
		t.Fatal(err)
	}
	s.Delete(u.ID)

	if err := s.Save(ctx, &auth.User{Email: "a@example.com", Username: "a"}); err != nil {
		t.Errorf("identifiers of a deleted row should be reusable, got %v", err)
	}
}

func TestUserStore_ReturnsCopies(t *testing.T) {
	s := inmemory.NewUserStore()
	ctx := context.Background()

	u := &auth.User{Email: "a@example.com", Username: "a", Status: auth.StatusActive}
	if err := s.Save(ctx, u); err != nil {
		t.Fatal(err)
	}

	first, _ := s.FindByID(ctx, u.ID)
	first.Email = "tampered@example.com"

	second, _ := s.FindByID(ctx, u.ID)
	if second.Email != "a@example.com" {
		t.Error("mutating a returned user leaked into the store")
	}
}

func TestUserStore_SoftDeletedHidden(t *testing.T) {
	s := inmemory.NewUserStore()
	ctx := context.Background()

	u := &auth.User{Email: "a@example.com", Username: "a", Status: auth.StatusActive}
	if err := s.Save(ctx, u); err != nil {
		t.Fatal(err)
	}
	s.Delete(u.ID)

	if _, err := s.FindByID(ctx, u.ID); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("deleted user still found by ID: %v", err)
	}
	if _, err := s.FindByField(ctx, auth.FieldEmail, "a@example.com"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("deleted user still found by email: %v", err)
	}
}

func TestUserStore_FindByField_EmptyValue(t *testing.T) {
	s := inmemory.NewUserStore()
	ctx := context.Background()

	// A user with no pending reset token must not match an empty lookup.
	if err := s.Save(ctx, &auth.User{Email: "a@example.com", Username: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindByField(ctx, auth.FieldResetToken, ""); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("empty token lookup matched: %v", err)
	}
}

func TestTokenStore_Lifecycle(t *testing.T) {
	s := inmemory.NewTokenStore()
	ctx := context.Background()

	live := time.Now().Add(time.Hour)
	dead := time.Now().Add(-time.Hour)
	if err := s.RememberUser(ctx, 1, "sel1", "hash1", live); err != nil {
		t.Fatal(err)
	}
	if err := s.RememberUser(ctx, 1, "sel2", "hash2", dead); err != nil {
		t.Fatal(err)
	}
	if err := s.RememberUser(ctx, 2, "sel3", "hash3", live); err != nil {
		t.Fatal(err)
	}

	if err := s.RememberUser(ctx, 9, "sel1", "x", live); !errors.Is(err, inmemory.ErrDuplicate) {
		t.Errorf("duplicate selector: expected ErrDuplicate, got %v", err)
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("PurgeExpired = (%d, %v), want (1, nil)", n, err)
	}

	if err := s.PurgeForUser(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetBySelector(ctx, "sel1"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("user 1 token survived purge: %v", err)
	}
	if _, err := s.GetBySelector(ctx, "sel3"); err != nil {
		t.Errorf("user 2 token purged with user 1's: %v", err)
	}
}

func TestTokenStore_UpdateValidator(t *testing.T) {
	s := inmemory.NewTokenStore()
	ctx := context.Background()

	if err := s.RememberUser(ctx, 1, "sel", "old", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateValidator(ctx, "sel", "new"); err != nil {
		t.Fatalf("UpdateValidator: %v", err)
	}
	tok, _ := s.GetBySelector(ctx, "sel")
	if tok.ValidatorHash != "new" {
		t.Errorf("validator hash = %q, want %q", tok.ValidatorHash, "new")
	}

	if err := s.UpdateValidator(ctx, "missing", "x"); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Errorf("expected ErrTokenNotFound, got %v", err)
	}
}
