package hashing

import (
	"fmt"
	"sync"
)

// Manager is a thread-safe driver registry and dispatcher for password
// hashing.  Register one or more named [Hasher] implementations, nominate a
// default driver, and call [Manager.Make] / [Manager.CheckWithDetect] /
// [Manager.NeedsRehash] through the Manager for day-to-day operations.
//
// During an algorithm migration (say bcrypt to Argon2id) both drivers stay
// registered: CheckWithDetect verifies whatever format is stored, and
// NeedsRehash reports true for every hash not yet produced by the default
// driver with current parameters.
//
// All Manager methods are safe for concurrent use.  A [sync.RWMutex]
// serialises writes (RegisterDriver, SetDefaultDriver) while allowing
// concurrent reads.
type Manager struct {
	mu      sync.RWMutex
	drivers map[DriverName]Hasher
	def     DriverName
}

// NewManager creates an empty Manager with the given default driver name.
// Drivers must be registered with [Manager.RegisterDriver] before any
// hashing operation is invoked through the Manager.
func NewManager(defaultDriver DriverName) *Manager {
	return &Manager{
		drivers: make(map[DriverName]Hasher),
		def:     defaultDriver,
	}
}

// NewDefaultManager creates a Manager with both built-in drivers registered
// using their recommended default options.  The default driver is
// [DriverArgon2id].
func NewDefaultManager() (*Manager, error) {
	argonH, err := NewArgon2idHasher(DefaultArgon2Options())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default argon2id hasher: %w", err)
	}
	bcryptH, err := NewBcryptHasher(DefaultBcryptOptions())
	if err != nil {
		return nil, fmt.Errorf("hashing: failed to create default bcrypt hasher: %w", err)
	}

	m := NewManager(DriverArgon2id)
	_ = m.RegisterDriver(DriverArgon2id, argonH)
	_ = m.RegisterDriver(DriverBcrypt, bcryptH)
	return m, nil
}

// RegisterDriver adds or replaces a named hasher in the Manager.
func (m *Manager) RegisterDriver(name DriverName, h Hasher) error {
	if name == "" {
		return ErrEmptyDriverName
	}
	if h == nil {
		return ErrNilHasher
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[name] = h
	return nil
}

// Driver returns the [Hasher] registered under name, or [ErrDriverNotFound]
// if no such driver has been registered.
func (m *Manager) Driver(name DriverName) (Hasher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, name)
	}
	return h, nil
}

// SetDefaultDriver changes the driver used by [Manager.Make] and
// [Manager.NeedsRehash].  The named driver must already be registered.
func (m *Manager) SetDefaultDriver(name DriverName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[name]; !ok {
		return fmt.Errorf("%w: %q is not registered; call RegisterDriver first",
			ErrDriverNotFound, name)
	}
	m.def = name
	return nil
}

// DefaultDriver returns the name of the currently configured default driver.
func (m *Manager) DefaultDriver() DriverName {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def
}

// Make hashes password using the default driver.
func (m *Manager) Make(password string) (string, error) {
	h, err := m.resolveDefault()
	if err != nil {
		return "", err
	}
	return h.Make(password)
}

// Check verifies password against hash using the default driver.
func (m *Manager) Check(password, hash string) (bool, error) {
	h, err := m.resolveDefault()
	if err != nil {
		return false, err
	}
	return h.Check(password, hash)
}

// CheckWithDetect verifies password against hash by detecting which driver
// produced the hash.  Use this on login paths where hashes from multiple
// drivers coexist.
//
// Returns [ErrDriverNotFound] if the detected driver is not registered, or
// [ErrInvalidHash] if the hash format is unrecognised.
func (m *Manager) CheckWithDetect(password, hash string) (bool, error) {
	h, err := m.resolveByHash(hash)
	if err != nil {
		return false, err
	}
	return h.Check(password, hash)
}

// NeedsRehash reports whether hash should be re-hashed.
//
// It returns true when the hash was produced by a different driver than the
// current default, or by the default driver with parameters that differ
// from its current configuration.  On the next successful login, callers
// should call [Manager.Make] and persist the new hash when this returns
// true.
func (m *Manager) NeedsRehash(hash string) (bool, error) {
	detected, ok := DetectDriver(hash)
	if !ok {
		return false, ErrInvalidHash
	}

	m.mu.RLock()
	def := m.def
	m.mu.RUnlock()

	if detected != def {
		return true, nil
	}

	h, err := m.Driver(detected)
	if err != nil {
		return false, err
	}
	return h.NeedsRehash(hash)
}

func (m *Manager) resolveDefault() (Hasher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.drivers[m.def]
	if !ok {
		return nil, fmt.Errorf("%w: default driver %q", ErrDriverNotFound, m.def)
	}
	return h, nil
}

func (m *Manager) resolveByHash(hash string) (Hasher, error) {
	detected, ok := DetectDriver(hash)
	if !ok {
		return nil, ErrInvalidHash
	}
	return m.Driver(detected)
}
