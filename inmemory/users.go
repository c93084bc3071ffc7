package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"

	"github.com/fortifygo/fortify/auth"
)

// ErrDuplicate is returned when a unique value (email, username,
// selector, name) collides with an existing row.
var ErrDuplicate = errors.New("inmemory: duplicate value")

// newNode builds the snowflake node used for row IDs.  Node 1 is always
// in range, so the error path is unreachable.
func newNode() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// UserStore is a map-backed auth.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	node  *snowflake.Node
	users map[int64]*auth.User

	loginAttempts      []auth.Attempt
	resetAttempts      []auth.Attempt
	activationAttempts []auth.Attempt
}

// NewUserStore returns an empty user store.
func NewUserStore() *UserStore {
	return &UserStore{
		node:  newNode(),
		users: make(map[int64]*auth.User),
	}
}

var _ auth.UserStore = (*UserStore)(nil)

func (s *UserStore) FindByField(_ context.Context, field, value string) (*auth.User, error) {
	if value == "" {
		return nil, auth.ErrUserNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Deleted {
			continue
		}
		var got string
		switch field {
		case auth.FieldEmail:
			got = u.Email
		case auth.FieldUsername:
			got = u.Username
		case auth.FieldResetToken:
			got = u.ResetToken
		case auth.FieldActivateToken:
			got = u.ActivateToken
		default:
			return nil, auth.ErrUserNotFound
		}
		if got == value {
			return cloneUser(u), nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *UserStore) FindByID(_ context.Context, id int64) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || u.Deleted {
		return nil, auth.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) Save(_ context.Context, u *auth.User) error {
	if u == nil {
		return auth.ErrNilUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Uniqueness only holds among live rows, matching the partial unique
	// indexes of the SQL store.
	for id, existing := range s.users {
		if id == u.ID || existing.Deleted {
			continue
		}
		if (u.Email != "" && existing.Email == u.Email) ||
			(u.Username != "" && existing.Username == u.Username) {
			return ErrDuplicate
		}
	}

	if u.ID == 0 {
		u.ID = s.node.Generate().Int64()
	} else if _, ok := s.users[u.ID]; !ok {
		return auth.ErrUserNotFound
	}

	s.users[u.ID] = cloneUser(u)
	return nil
}

// Delete soft-deletes a user row.  Not part of auth.UserStore; tests use
// it to exercise deleted-user behavior.
func (s *UserStore) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok {
		u.Deleted = true
	}
}

func (s *UserStore) LogLoginAttempt(_ context.Context, a auth.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = ksuid.New().String()
	s.loginAttempts = append(s.loginAttempts, a)
	return nil
}

func (s *UserStore) LogResetAttempt(_ context.Context, a auth.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = ksuid.New().String()
	s.resetAttempts = append(s.resetAttempts, a)
	return nil
}

func (s *UserStore) LogActivationAttempt(_ context.Context, a auth.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = ksuid.New().String()
	s.activationAttempts = append(s.activationAttempts, a)
	return nil
}

// LoginAttempts returns a copy of the recorded login audit rows.
func (s *UserStore) LoginAttempts() []auth.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auth.Attempt(nil), s.loginAttempts...)
}

// ResetAttempts returns a copy of the recorded reset audit rows.
func (s *UserStore) ResetAttempts() []auth.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auth.Attempt(nil), s.resetAttempts...)
}

// ActivationAttempts returns a copy of the recorded activation audit
// rows.
func (s *UserStore) ActivationAttempts() []auth.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]auth.Attempt(nil), s.activationAttempts...)
}

func cloneUser(u *auth.User) *auth.User {
	c := *u
	if u.ResetRequestedAt != nil {
		t := *u.ResetRequestedAt
		c.ResetRequestedAt = &t
	}
	if u.ResetExpiresAt != nil {
		t := *u.ResetExpiresAt
		c.ResetExpiresAt = &t
	}
	return &c
}

// TokenStore is a map-backed auth.TokenStore keyed by selector.
type TokenStore struct {
	mu     sync.RWMutex
	node   *snowflake.Node
	tokens map[string]*auth.RememberToken
}

// NewTokenStore returns an empty remember-token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		node:   newNode(),
		tokens: make(map[string]*auth.RememberToken),
	}
}

var _ auth.TokenStore = (*TokenStore)(nil)

func (s *TokenStore) RememberUser(_ context.Context, userID int64, selector, validatorHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tokens[selector]; ok {
		return ErrDuplicate
	}

	s.tokens[selector] = &auth.RememberToken{
		ID:            s.node.Generate().Int64(),
		UserID:        userID,
		Selector:      selector,
		ValidatorHash: validatorHash,
		ExpiresAt:     expiresAt,
	}
	return nil
}

func (s *TokenStore) GetBySelector(_ context.Context, selector string) (*auth.RememberToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[selector]
	if !ok {
		return nil, auth.ErrTokenNotFound
	}
	c := *t
	return &c, nil
}

func (s *TokenStore) UpdateValidator(_ context.Context, selector, validatorHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[selector]
	if !ok {
		return auth.ErrTokenNotFound
	}
	t.ValidatorHash = validatorHash
	return nil
}

func (s *TokenStore) PurgeForUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for selector, t := range s.tokens {
		if t.UserID == userID {
			delete(s.tokens, selector)
		}
	}
	return nil
}

func (s *TokenStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var n int64
	for selector, t := range s.tokens {
		if t.IsExpired(now) {
			delete(s.tokens, selector)
			n++
		}
	}
	return n, nil
}

// Count returns the number of live tokens.
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
