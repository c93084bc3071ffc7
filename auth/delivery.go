package auth

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Sender delivers an activation or reset message to a user through one
// transport (email, SMS, a test recorder).  The token to embed is already
// set on the user when Send is called.
type Sender interface {
	Send(ctx context.Context, user *User) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, user *User) error

func (f SenderFunc) Send(ctx context.Context, user *User) error { return f(ctx, user) }

// Registry maps strategy names to senders.  Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	senders map[string]Sender
}

// NewRegistry returns an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[string]Sender)}
}

// Register adds a sender under name, replacing any previous entry.
func (r *Registry) Register(name string, s Sender) error {
	if name == "" {
		return ErrEmptySenderName
	}
	if s == nil {
		return fmt.Errorf("auth: nil sender for %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.senders[name] = s
	return nil
}

// Get returns the sender registered under name.
func (r *Registry) Get(name string) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.senders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSenderNotFound, name)
	}
	return s, nil
}

// Activator dispatches account-activation messages to a named strategy.
// An empty strategy name disables activation delivery.
type Activator struct {
	registry *Registry
	strategy string
	log      *zap.Logger
}

// NewActivator returns an Activator that sends through the named
// strategy in registry.
func NewActivator(registry *Registry, strategy string, log *zap.Logger) *Activator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Activator{registry: registry, strategy: strategy, log: log}
}

// Send delivers the activation message for user.  A disabled Activator
// (empty strategy) is a no-op.
func (a *Activator) Send(ctx context.Context, user *User) error {
	if a == nil || a.strategy == "" {
		return nil
	}
	if user == nil {
		return ErrNilUser
	}

	sender, err := a.registry.Get(a.strategy)
	if err != nil {
		return err
	}
	if err := sender.Send(ctx, user); err != nil {
		a.log.Error("activation delivery failed",
			zap.String("strategy", a.strategy),
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// Resetter dispatches password-reset messages to a named strategy.  An
// empty strategy name disables reset delivery.
type Resetter struct {
	registry *Registry
	strategy string
	log      *zap.Logger
}

// NewResetter returns a Resetter that sends through the named strategy
// in registry.
func NewResetter(registry *Registry, strategy string, log *zap.Logger) *Resetter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resetter{registry: registry, strategy: strategy, log: log}
}

// Send delivers the reset message for user.  A disabled Resetter (empty
// strategy) is a no-op.
func (r *Resetter) Send(ctx context.Context, user *User) error {
	if r == nil || r.strategy == "" {
		return nil
	}
	if user == nil {
		return ErrNilUser
	}

	sender, err := r.registry.Get(r.strategy)
	if err != nil {
		return err
	}
	if err := sender.Send(ctx, user); err != nil {
		r.log.Error("reset delivery failed",
			zap.String("strategy", r.strategy),
			zap.Int64("user_id", user.ID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

// ComposeFunc builds the subject and HTML body of a message for a user
// and token.
type ComposeFunc func(user *User, token string) (subject, htmlBody string)

// EmailActivationSender sends activation messages through a Mailer.
type EmailActivationSender struct {
	Mailer  Mailer
	From    string
	Compose ComposeFunc
}

func (s *EmailActivationSender) Send(ctx context.Context, user *User) error {
	subject, body := s.Compose(user, user.ActivateToken)
	return s.Mailer.Send(ctx, s.From, user.Email, subject, body)
}

// EmailResetSender sends password-reset messages through a Mailer.
type EmailResetSender struct {
	Mailer  Mailer
	From    string
	Compose ComposeFunc
}

func (s *EmailResetSender) Send(ctx context.Context, user *User) error {
	subject, body := s.Compose(user, user.ResetToken)
	return s.Mailer.Send(ctx, s.From, user.Email, subject, body)
}
