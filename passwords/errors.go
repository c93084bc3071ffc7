package passwords

import "errors"

// Failure codes. Each built-in stage reports exactly one code.
const (
	// CodeEmpty: the password is empty after trimming.
	CodeEmpty = "empty"
	// CodeLength: the password is shorter than the configured minimum.
	CodeLength = "length"
	// CodePersonal: the password contains (or is contained in) personal info.
	CodePersonal = "personal"
	// CodeSimilar: the password is too similar to the username.
	CodeSimilar = "similar"
	// CodeCommon: the password appears in the common-password dictionary.
	CodeCommon = "common"
	// CodePwned: the password appears in a known data breach.
	CodePwned = "pwned"
)

// Failure is a recoverable policy violation: the password was checked and
// rejected.  It carries a stable code, a user-facing message, and a
// suggestion for choosing a better password.
//
// Distinguish Failure from infrastructure errors with [errors.As]:
//
//	err := pipeline.Validate(ctx, password, user)
//	var f *passwords.Failure
//	if errors.As(err, &f) {
//	    // show f.Message and f.Suggestion to the user
//	}
type Failure struct {
	Code       string
	Message    string
	Suggestion string
}

func (f *Failure) Error() string { return "passwords: " + f.Message }

var (
	// ErrNoUserContext is returned by [Pipeline.Validate] when no user
	// context is supplied.  Personal-info checks are meaningless without
	// one, so this is treated as a programmer error rather than a policy
	// failure.
	ErrNoUserContext = errors.New("passwords: no user context provided")

	// ErrNoStages is returned by [Pipeline.Validate] when the pipeline has
	// no configured stages.  An empty chain would accept every password,
	// which is never intended.
	ErrNoStages = errors.New("passwords: no validator stages configured")

	// ErrInvalidOption is returned by stage constructors for out-of-range
	// configuration values.
	ErrInvalidOption = errors.New("passwords: invalid option value")

	// ErrLookupFailed is returned by [PwnedStage] when the breach service
	// cannot be reached or answers with an unexpected status.  The check
	// must not silently pass a potentially compromised password, so this
	// error is fatal to the validation attempt.
	ErrLookupFailed = errors.New("passwords: breach lookup failed")
)
