package passwords

import (
	"context"
	"regexp"
	"strings"
)

// stopwords are short connective words ignored when matching password
// tokens against personal-info tokens.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "but": {}, "for": {},
	"if": {}, "in": {}, "not": {}, "of": {}, "or": {}, "so": {}, "the": {}, "then": {},
}

// tokenSeparators matches runs of characters that split personal info and
// passwords into tokens.  Underscore counts as a separator.
var tokenSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// PersonalStage rejects passwords that lean on the user's own details.
//
// Two checks run in order.  The personal-info check lowercases the password
// and the user's personal fields (username, email local-part and domain,
// plus anything from [PersonalInfoProvider]), splits everything into tokens
// on non-alphanumeric runs, and rejects when any non-trivial password token
// contains or is contained in any non-trivial personal token.  Exact and
// reversed matches of the username, and exact matches of the email, are
// rejected outright.
//
// The similarity check then computes a 0-100 similarity ratio between the
// password and the username (see [Similarity]) and rejects ratios at or
// above the configured threshold.
type PersonalStage struct {
	maxSimilarity int
}

// NewPersonalStage returns a PersonalStage.  maxSimilarity is the rejection
// threshold for the password/username similarity ratio: the working range
// is 1-100 (values outside are clamped) and 0 disables the similarity
// sub-check entirely.
func NewPersonalStage(maxSimilarity int) *PersonalStage {
	switch {
	case maxSimilarity < 1:
		maxSimilarity = 0
	case maxSimilarity > 100:
		maxSimilarity = 100
	}
	return &PersonalStage{maxSimilarity: maxSimilarity}
}

// Name implements [Stage].
func (s *PersonalStage) Name() string { return "personal" }

// Check implements [Stage].
func (s *PersonalStage) Check(_ context.Context, password string, user UserContext) error {
	lowered := strings.ToLower(password)

	if err := s.checkPersonal(lowered, user); err != nil {
		return err
	}
	return s.checkSimilarity(lowered, user)
}

func (s *PersonalStage) checkPersonal(password string, user UserContext) error {
	username := strings.ToLower(user.GetUsername())
	email := strings.ToLower(user.GetEmail())

	fail := &Failure{
		Code:       CodePersonal,
		Message:    "passwords cannot contain personal information",
		Suggestion: "variations of your username or email address are among the first guesses an attacker tries",
	}

	// The most obvious transgressions.
	if (username != "" && (password == username || password == reverse(username))) ||
		(email != "" && password == email) {
		return fail
	}

	// Take the username apart for use as search needles, then do the same
	// with the email local-part; the domain goes in whole.
	needles := tokenize(username)
	if local, domain, ok := strings.Cut(email, "@"); ok {
		needles = append(needles, tokenize(local)...)
		if domain != "" {
			needles = append(needles, domain)
		}
	} else if email != "" {
		needles = append(needles, tokenize(email)...)
	}

	if p, ok := user.(PersonalInfoProvider); ok {
		for _, v := range p.PersonalInfo() {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				needles = append(needles, v)
			}
		}
	}

	// Look both ways in case the password is a subset of the needle.
	for _, haystack := range tokenize(password) {
		if trivial(haystack) {
			continue
		}
		for _, needle := range needles {
			if trivial(needle) {
				continue
			}
			if strings.Contains(haystack, needle) || strings.Contains(needle, haystack) {
				return fail
			}
		}
	}
	return nil
}

func (s *PersonalStage) checkSimilarity(password string, user UserContext) error {
	if s.maxSimilarity == 0 {
		return nil
	}

	username := strings.ToLower(user.GetUsername())
	if username == "" {
		return nil
	}

	if Similarity(password, username) >= float64(s.maxSimilarity) {
		return &Failure{
			Code:       CodeSimilar,
			Message:    "the password is too similar to the username",
			Suggestion: "do not base your password on your username",
		}
	}
	return nil
}

// tokenize lowercase-splits s on runs of non-alphanumeric characters and
// includes the untouched input itself as the first token when splitting
// changed it.
func tokenize(s string) []string {
	stripped := strings.TrimSpace(tokenSeparators.ReplaceAllString(s, " "))
	if stripped == "" {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	parts := strings.Split(stripped, " ")
	for _, p := range parts {
		if p == s {
			return parts
		}
	}
	return append([]string{s}, parts...)
}

func trivial(token string) bool {
	if token == "" {
		return true
	}
	_, ok := stopwords[token]
	return ok
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

// Similarity returns a 0-100 ratio describing how alike two strings are.
//
// The algorithm is the Oliver/Pratt scheme used by PHP's similar_text:
// find the longest common substring, recurse into the unmatched prefixes
// and suffixes, sum the matched lengths, and scale by the combined length
// (2 * matched / (len(a) + len(b)) * 100).  The exact algorithm is part of
// this package's contract — the meaning of a configured threshold depends
// on it, so it must not be swapped for a different similarity measure.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	matched := similarChars(a, b)
	return float64(matched) * 200 / float64(len(a)+len(b))
}

// similarChars sums the lengths of recursively matched common substrings.
func similarChars(a, b string) int {
	posA, posB, max := longestCommonSubstring(a, b)
	if max == 0 {
		return 0
	}
	sum := max
	if posA > 0 && posB > 0 {
		sum += similarChars(a[:posA], b[:posB])
	}
	if posA+max < len(a) && posB+max < len(b) {
		sum += similarChars(a[posA+max:], b[posB+max:])
	}
	return sum
}

// longestCommonSubstring returns the start offsets and length of the first
// longest run of bytes common to a and b.
func longestCommonSubstring(a, b string) (posA, posB, max int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			var l int
			for i+l < len(a) && j+l < len(b) && a[i+l] == b[j+l] {
				l++
			}
			if l > max {
				posA, posB, max = i, j, l
			}
		}
	}
	return posA, posB, max
}
