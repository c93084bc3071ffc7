package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fortifygo/fortify/auth"
)

// Session is an in-process auth.Session.  Regenerate swaps the UUID
// identifier while keeping the bound user, mirroring how server-side
// session backends rotate IDs.
type Session struct {
	mu     sync.Mutex
	id     string
	userID int64
	bound  bool

	// Regenerations counts ID rotations, for assertions on
	// session-fixation behavior.
	Regenerations int
}

// NewSession returns a fresh anonymous session.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

var _ auth.Session = (*Session)(nil)

func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *Session) UserID() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.bound
}

func (s *Session) SetUserID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID, s.bound = id, true
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID, s.bound = 0, false
}

func (s *Session) Regenerate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.Regenerations++
}

// Cookies is an in-process auth.Cookies.
type Cookies struct {
	mu       sync.Mutex
	remember string
	set      bool

	// NoCacheCalls counts NoCache invocations.
	NoCacheCalls int
}

// NewCookies returns an empty cookie jar.
func NewCookies() *Cookies {
	return &Cookies{}
}

var _ auth.Cookies = (*Cookies)(nil)

func (c *Cookies) Remember() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remember, c.set
}

func (c *Cookies) SetRemember(value string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remember, c.set = value, true
}

func (c *Cookies) ClearRemember() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remember, c.set = "", false
}

func (c *Cookies) NoCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NoCacheCalls++
}

// Message is a recorded outbound mail.
type Message struct {
	From     string
	To       string
	Subject  string
	HTMLBody string
}

// Mailer records messages instead of sending them.
type Mailer struct {
	mu       sync.Mutex
	messages []Message

	// Err, when set, is returned by Send to simulate delivery failure.
	Err error
}

// NewMailer returns an empty recording mailer.
func NewMailer() *Mailer {
	return &Mailer{}
}

var _ auth.Mailer = (*Mailer)(nil)

func (m *Mailer) Send(_ context.Context, from, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, Message{From: from, To: to, Subject: subject, HTMLBody: htmlBody})
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *Mailer) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.messages...)
}
