package passwords

import (
	"context"
	"fmt"
)

// MinPasswordLength is the recommended minimum password length (NIST
// SP 800-63B).
const MinPasswordLength = 8

// CompositionStage checks the general makeup of the password.
//
// Current NIST guidance prefers a simple minimum length over mandatory
// character classes, so this stage enforces only a minimum.  There is
// deliberately no maximum: long passphrases must be accepted (the hashing
// layer pre-hashes input, so length never hits an algorithm limit).
type CompositionStage struct {
	minLength int
}

// NewCompositionStage returns a CompositionStage enforcing minLength.
// A minimum below 1 is a configuration error.
func NewCompositionStage(minLength int) (*CompositionStage, error) {
	if minLength < 1 {
		return nil, fmt.Errorf("%w: minimum password length must be >= 1, got %d",
			ErrInvalidOption, minLength)
	}
	return &CompositionStage{minLength: minLength}, nil
}

// Name implements [Stage].
func (s *CompositionStage) Name() string { return "composition" }

// Check implements [Stage].
func (s *CompositionStage) Check(_ context.Context, password string, _ UserContext) error {
	if len(password) < s.minLength {
		return &Failure{
			Code:       CodeLength,
			Message:    fmt.Sprintf("passwords must be at least %d characters long", s.minLength),
			Suggestion: "a longer passphrase of several unrelated words is both stronger and easier to remember",
		}
	}
	return nil
}
