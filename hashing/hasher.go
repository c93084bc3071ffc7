// Package hashing provides salted password hashing for the fortify
// authentication stack.
//
// # Architecture
//
// The central abstraction is the [Hasher] interface.  Two drivers ship with
// this package: [Argon2idHasher] (memory-hard, recommended) and
// [BcryptHasher] (legacy single work-factor mode).  Both implement [Hasher],
// so callers can depend on the interface rather than a concrete type.
//
// The [Manager] is a driver registry and dispatcher.  Register named [Hasher]
// implementations, designate one as the default, then delegate all hashing
// operations through the [Manager].  Because [Manager.NeedsRehash] reports
// true whenever the stored hash was produced by a non-default driver or with
// stale cost parameters, the Manager is also the migration path between
// algorithms: verify with [Manager.CheckWithDetect], then re-hash with
// [Manager.Make] on the next successful login.
//
// # Pre-hashing
//
// Every driver first reduces the plaintext to base64(SHA-384(password))
// before applying the slow hash (see [Prehash]).  This normalises the input
// to 64 bytes, which keeps arbitrarily long passphrases inside bcrypt's
// 72-byte limit and removes the incentive for length-based denial of
// service against the memory-hard driver.
//
// # Security defaults
//
//   - Argon2id: m=64 MiB, t=3 iterations, p=2 threads, 32-byte key.
//   - bcrypt:   cost 12.
package hashing

import (
	"crypto/sha512"
	"encoding/base64"
	"strings"
)

// DriverName identifies a hashing algorithm driver.
type DriverName string

const (
	// DriverArgon2id selects the Argon2id driver (recommended).
	DriverArgon2id DriverName = "argon2id"
	// DriverBcrypt selects the bcrypt driver (legacy work-factor mode).
	DriverBcrypt DriverName = "bcrypt"
)

// Hasher is the interface satisfied by all password-hashing drivers.
//
// All implementations must be safe for concurrent use by multiple
// goroutines, and all of them apply [Prehash] before the slow hash.
type Hasher interface {
	// Make hashes a plaintext password and returns the encoded hash string.
	// A fresh cryptographic salt is generated for every call, so two calls
	// with the same password produce different outputs.
	Make(password string) (string, error)

	// Check verifies that password matches the previously encoded hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or
	// (false, err) when the hash is structurally invalid.
	//
	// Comparison is performed in constant time.
	Check(password, hash string) (bool, error)

	// NeedsRehash reports whether the hash was produced with parameters
	// that differ from the hasher's current configuration.  Callers should
	// re-hash the password on the next successful login when this returns
	// true.
	NeedsRehash(hash string) (bool, error)

	// Driver returns the DriverName implemented by this hasher.
	Driver() DriverName
}

// Prehash reduces a plaintext password to the base64 encoding of its
// SHA-384 digest.  The result is always 64 bytes long.
//
// This is the byte sequence actually fed to the slow hash by every driver,
// so hashes remain verifiable across drivers as long as both sides apply
// the same pre-hash.
func Prehash(password string) []byte {
	sum := sha512.Sum384([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// DetectDriver inspects a hash string and returns the [DriverName] that
// produced it.  It is a best-effort heuristic based on the hash prefix and
// does not verify the hash itself.
//
// The second return value is false when the hash format is not recognised.
func DetectDriver(hash string) (DriverName, bool) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return DriverArgon2id, true
	// bcrypt hashes start with $2a$, $2b$, or $2y$
	case strings.HasPrefix(hash, "$2a$"),
		strings.HasPrefix(hash, "$2b$"),
		strings.HasPrefix(hash, "$2y$"):
		return DriverBcrypt, true
	default:
		return "", false
	}
}
