package hashing_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/fortifygo/fortify/hashing"
)

func newTestArgon2idHasher(t *testing.T) *hashing.Argon2idHasher {
	t.Helper()
	h, err := hashing.NewArgon2idHasher(fastArgon2Opts())
	if err != nil {
		t.Fatalf("NewArgon2idHasher: %v", err)
	}
	return h
}

// ──────────────────────────────────────────────────────────────────────────────
// Constructor validation
// ──────────────────────────────────────────────────────────────────────────────

func TestNewArgon2idHasher_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts hashing.Argon2Options
	}{
		{"time=0", hashing.Argon2Options{Memory: 64, Time: 0, Threads: 1, KeyLen: 16, SaltLen: 8}},
		{"threads=0", hashing.Argon2Options{Memory: 64, Time: 1, Threads: 0, KeyLen: 16, SaltLen: 8}},
		{"memory too low", hashing.Argon2Options{Memory: 1, Time: 1, Threads: 2, KeyLen: 16, SaltLen: 8}},
		{"key_len<4", hashing.Argon2Options{Memory: 64, Time: 1, Threads: 1, KeyLen: 3, SaltLen: 8}},
		{"salt_len<8", hashing.Argon2Options{Memory: 64, Time: 1, Threads: 1, KeyLen: 16, SaltLen: 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := hashing.NewArgon2idHasher(tt.opts)
			if !errors.Is(err, hashing.ErrInvalidOption) {
				t.Errorf("expected ErrInvalidOption, got %v", err)
			}
		})
	}
}

func TestDefaultArgon2Options(t *testing.T) {
	opts := hashing.DefaultArgon2Options()
	if opts.Memory != hashing.DefaultArgon2Memory {
		t.Errorf("Memory = %d, want %d", opts.Memory, hashing.DefaultArgon2Memory)
	}
	if opts.Time != hashing.DefaultArgon2Time {
		t.Errorf("Time = %d, want %d", opts.Time, hashing.DefaultArgon2Time)
	}
	if opts.Threads != hashing.DefaultArgon2Threads {
		t.Errorf("Threads = %d, want %d", opts.Threads, hashing.DefaultArgon2Threads)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Make / Check
// ──────────────────────────────────────────────────────────────────────────────

func TestArgon2id_MakeCheck_RoundTrip(t *testing.T) {
	h := newTestArgon2idHasher(t)
	hash, err := h.Make("correct horse battery staple")
	if err != nil {
		t.Fatalf("Make: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash prefix = %q, want $argon2id$", hash[:12])
	}

	ok, err := h.Check("correct horse battery staple", hash)
	if err != nil || !ok {
		t.Fatalf("Check: ok=%v err=%v", ok, err)
	}
	ok, err = h.Check("wrong password", hash)
	if err != nil || ok {
		t.Fatalf("Check wrong: ok=%v err=%v", ok, err)
	}
}

func TestArgon2id_Make_UniqueSalts(t *testing.T) {
	h := newTestArgon2idHasher(t)
	h1, _ := h.Make("pw")
	h2, _ := h.Make("pw")
	if h1 == h2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
}

func TestArgon2id_Check_UsesStoredParams(t *testing.T) {
	// A hash made with one parameter set must verify under a hasher
	// configured differently: verification reads params from the hash.
	old := newTestArgon2idHasher(t)
	hash, _ := old.Make("pw")

	opts := fastArgon2Opts()
	opts.Time = 2
	current, err := hashing.NewArgon2idHasher(opts)
	if err != nil {
		t.Fatalf("NewArgon2idHasher: %v", err)
	}
	ok, err := current.Check("pw", hash)
	if err != nil || !ok {
		t.Fatalf("Check with new params: ok=%v err=%v", ok, err)
	}
}

func TestArgon2id_Check_MalformedHash(t *testing.T) {
	h := newTestArgon2idHasher(t)
	for _, bad := range []string{
		"",
		"$argon2id$",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdHNhbHQ$aGFzaA",
		"plain-text",
	} {
		if _, err := h.Check("pw", bad); err == nil {
			t.Errorf("Check(%q): expected error", bad)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// NeedsRehash
// ──────────────────────────────────────────────────────────────────────────────

func TestArgon2id_NeedsRehash_SameParams(t *testing.T) {
	h := newTestArgon2idHasher(t)
	hash, _ := h.Make("pw")
	needs, err := h.NeedsRehash(hash)
	if err != nil || needs {
		t.Errorf("needs=%v err=%v, want false nil", needs, err)
	}
}

func TestArgon2id_NeedsRehash_ChangedParams(t *testing.T) {
	old := newTestArgon2idHasher(t)
	hash, _ := old.Make("pw")

	opts := fastArgon2Opts()
	opts.Time++
	current, _ := hashing.NewArgon2idHasher(opts)
	needs, err := current.NeedsRehash(hash)
	if err != nil || !needs {
		t.Errorf("needs=%v err=%v, want true nil", needs, err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Prehash / DetectDriver
// ──────────────────────────────────────────────────────────────────────────────

func TestPrehash_FixedLength(t *testing.T) {
	// SHA-384 base64 is always 64 bytes, regardless of input length.
	for _, pw := range []string{"", "a", strings.Repeat("x", 5000)} {
		if got := len(hashing.Prehash(pw)); got != 64 {
			t.Errorf("len(Prehash(%d bytes)) = %d, want 64", len(pw), got)
		}
	}
}

func TestDetectDriver(t *testing.T) {
	tests := []struct {
		hash   string
		driver hashing.DriverName
		ok     bool
	}{
		{"$argon2id$v=19$m=65536,t=3,p=2$abc$def", hashing.DriverArgon2id, true},
		{"$2a$12$abcdefghijklmnopqrstuv", hashing.DriverBcrypt, true},
		{"$2b$12$abcdefghijklmnopqrstuv", hashing.DriverBcrypt, true},
		{"$2y$12$abcdefghijklmnopqrstuv", hashing.DriverBcrypt, true},
		{"sha256:deadbeef", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		driver, ok := hashing.DetectDriver(tt.hash)
		if ok != tt.ok || driver != tt.driver {
			t.Errorf("DetectDriver(%q) = (%q, %v), want (%q, %v)", tt.hash, driver, ok, tt.driver, tt.ok)
		}
	}
}
