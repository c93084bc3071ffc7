// Package passwords implements the fortify password-policy pipeline.
//
// A [Pipeline] runs an ordered chain of [Stage] checks over a candidate
// password.  The first failing stage stops the chain and its [*Failure]
// (message plus suggestion) is surfaced to the caller; a password passes
// only when every configured stage accepts it.
//
// Four stages ship with this package:
//
//   - [CompositionStage]: minimum length, no maximum (long passphrases are
//     always accepted).
//   - [PersonalStage]: rejects passwords built from the user's own
//     username, email, or other personal details, and passwords too
//     similar to the username.
//   - [DictionaryStage]: rejects entries from a list of commonly used
//     passwords.
//   - [PwnedStage]: k-anonymity lookup against a compromised-password
//     service.
//
// Stage order is caller-configured; pass stages to [NewPipeline] in the
// order they should run.
package passwords

import (
	"context"
	"strings"
)

// UserContext supplies the personal details a [Stage] may need.  Checks
// always consider the username and email; implement [PersonalInfoProvider]
// as well to contribute additional fields (e.g. first and last names).
type UserContext interface {
	GetUsername() string
	GetEmail() string
}

// PersonalInfoProvider is an optional extension of [UserContext].  Values
// returned by PersonalInfo are treated as additional personal details by
// [PersonalStage].
type PersonalInfoProvider interface {
	PersonalInfo() []string
}

// Stage is a single password-policy check.
//
// Check returns nil when the password passes, a [*Failure] when the
// password violates the policy, or any other error when the check itself
// could not be performed (e.g. a breach-lookup transport failure).  A
// non-Failure error must be treated as fatal to the validation attempt,
// never as a pass.
type Stage interface {
	// Name identifies the stage in logs and errors.
	Name() string

	Check(ctx context.Context, password string, user UserContext) error
}

// Pipeline runs stages in order and stops at the first failure.
type Pipeline struct {
	stages []Stage
}

// NewPipeline builds a Pipeline from the given stages.  Order matters: the
// first failing stage's message wins and later stages never run.
func NewPipeline(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the configured stages in execution order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Validate checks password against every configured stage.
//
// It fails immediately with a [*Failure] (code [CodeEmpty]) when the
// password is empty after trimming, regardless of stage configuration.
// A nil user is a programmer error and returns [ErrNoUserContext]; an
// empty chain returns [ErrNoStages].  Otherwise stages run in order and
// the first non-nil result is returned.
func (p *Pipeline) Validate(ctx context.Context, password string, user UserContext) error {
	password = strings.TrimSpace(password)
	if password == "" {
		return &Failure{
			Code:       CodeEmpty,
			Message:    "a password is required",
			Suggestion: "enter a password; length matters more than complexity",
		}
	}

	if user == nil {
		return ErrNoUserContext
	}

	if len(p.stages) == 0 {
		return ErrNoStages
	}

	for _, stage := range p.stages {
		if err := stage.Check(ctx, password, user); err != nil {
			return err
		}
	}
	return nil
}
