package passwords

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"
)

// dictionaryData is the bundled list of commonly used passwords, one per
// line.  It is a pruned extract of well-known breach-corpus frequency
// lists.
//
//go:embed dictionary.txt
var dictionaryData string

// DictionaryStage rejects passwords that appear verbatim in a list of
// commonly used passwords.  Matching is a case-sensitive exact line match:
// "Password1" passes when only "password1" is listed.
type DictionaryStage struct {
	words map[string]struct{}
}

// NewDictionaryStage returns a DictionaryStage backed by the bundled
// common-password list.
func NewDictionaryStage() *DictionaryStage {
	s, err := NewDictionaryStageFromReader(strings.NewReader(dictionaryData))
	if err != nil {
		// The embedded list is read from memory; a read failure here is
		// impossible.
		panic(err)
	}
	return s
}

// NewDictionaryStageFromReader builds a DictionaryStage from a custom word
// list, one password per line.  Surrounding whitespace on each line is
// trimmed; blank lines are ignored.
func NewDictionaryStageFromReader(r io.Reader) (*DictionaryStage, error) {
	words := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			words[line] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("passwords: reading dictionary: %w", err)
	}
	return &DictionaryStage{words: words}, nil
}

// Len returns the number of entries in the dictionary.
func (s *DictionaryStage) Len() int { return len(s.words) }

// Name implements [Stage].
func (s *DictionaryStage) Name() string { return "dictionary" }

// Check implements [Stage].
func (s *DictionaryStage) Check(_ context.Context, password string, _ UserContext) error {
	if _, found := s.words[password]; found {
		return &Failure{
			Code:       CodeCommon,
			Message:    "the password is on a list of commonly used passwords",
			Suggestion: "pick something nobody else is likely to have thought of",
		}
	}
	return nil
}
