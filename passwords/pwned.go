package passwords

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultPwnedBaseURL is the Have I Been Pwned range API.
const DefaultPwnedBaseURL = "https://api.pwnedpasswords.com"

// PwnedOption configures a [PwnedStage].
type PwnedOption func(*PwnedStage)

// WithPwnedHTTPClient sets the HTTP client used for range lookups.
// Callers should configure their own timeout policy here; the default
// client has none.
func WithPwnedHTTPClient(c *http.Client) PwnedOption {
	return func(s *PwnedStage) { s.client = c }
}

// WithPwnedBaseURL overrides the breach-service base URL.  Intended for
// tests and for self-hosted mirrors of the range API.
func WithPwnedBaseURL(u string) PwnedOption {
	return func(s *PwnedStage) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithPwnedLogger sets the logger used to record lookup failures.
func WithPwnedLogger(log *zap.Logger) PwnedOption {
	return func(s *PwnedStage) { s.log = log }
}

// PwnedStage rejects passwords found in known data breaches.
//
// The check is k-anonymous: only the first five hex characters of the
// password's SHA-1 digest are sent to the service, which answers with
// every known suffix in that range.  The full digest never leaves the
// process.
//
// A transport failure or unexpected status is returned as a hard
// [ErrLookupFailed] — silently passing a potentially compromised password
// is unacceptable, so callers must surface the error rather than proceed.
type PwnedStage struct {
	client  *http.Client
	baseURL string
	log     *zap.Logger
}

// NewPwnedStage returns a PwnedStage talking to [DefaultPwnedBaseURL]
// unless overridden by options.
func NewPwnedStage(opts ...PwnedOption) *PwnedStage {
	s := &PwnedStage{
		client:  http.DefaultClient,
		baseURL: DefaultPwnedBaseURL,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements [Stage].
func (s *PwnedStage) Name() string { return "pwned" }

// Check implements [Stage].
func (s *PwnedStage) Check(ctx context.Context, password string, _ UserContext) error {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(fmt.Sprintf("%x", sum))
	rangePrefix, suffix := digest[:5], digest[5:]

	hits, err := s.lookup(ctx, rangePrefix, suffix)
	if err != nil {
		s.log.Error("breach lookup failed",
			zap.String("stage", s.Name()),
			zap.Error(err))
		return err
	}
	if hits > 0 {
		return &Failure{
			Code:       CodePwned,
			Message:    fmt.Sprintf("the password appeared %d times in known data breaches", hits),
			Suggestion: "this password is circulating in cracking lists; choose one that has never been breached",
		}
	}
	return nil
}

// lookup fetches the suffix set for rangePrefix and returns the breach
// count recorded for suffix, or 0 when the suffix is absent.
func (s *PwnedStage) lookup(ctx context.Context, rangePrefix, suffix string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/range/"+rangePrefix, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status %s", ErrLookupFailed, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: reading response: %v", ErrLookupFailed, err)
	}

	// Response lines are "<35-hex-char suffix>:<count>".
	for _, line := range strings.Split(string(body), "\n") {
		candidate, count, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}
		hits, err := strconv.ParseInt(strings.TrimSpace(count), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: malformed count %q", ErrLookupFailed, count)
		}
		return hits, nil
	}
	return 0, nil
}
