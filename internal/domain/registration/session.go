package registration

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("registration session not found")

// DefaultSessionTTL is how long an idle wizard session is kept.
const DefaultSessionTTL = 30 * time.Minute

// Session is one mounted wizard: a controller, its review submission and
// the in-progress activity selection. Callers hold mu while using it.
type Session struct {
	mu sync.Mutex

	ID         uuid.UUID
	Controller *Controller
	Submission *Submission
	// Draft is the activity selection being toggled on the activities step.
	// It is committed to the aggregate only when the step is submitted.
	Draft Activities
	// DraftBadge is the picture taken or uploaded on the personal step,
	// carried into the personal slice when that step is submitted.
	DraftBadge string
	CreatedAt  time.Time
	touched    time.Time
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:         uuid.New(),
		Controller: NewController(),
		Submission: NewSubmission(),
		Draft:      Activities{},
		CreatedAt:  now,
		touched:    now,
	}
}

// Lock serializes operations on the session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session.
func (s *Session) Unlock() { s.mu.Unlock() }

// SessionManager keeps wizard sessions in memory. Sessions are never
// written to storage and vanish on Delete, expiry or restart.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionManager creates a manager expiring sessions idle for ttl.
func NewSessionManager(ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create mounts a fresh wizard.
func (m *SessionManager) Create() *Session {
	s := newSession(m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session and refreshes its idle timer.
func (m *SessionManager) Get(id uuid.UUID) (*Session, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if now.Sub(s.touched) > m.ttl {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	s.touched = now
	return s, nil
}

// Delete discards a session.
func (m *SessionManager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Sweep removes sessions idle longer than the TTL and returns their ids.
func (m *SessionManager) Sweep(now time.Time) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []uuid.UUID
	for id, s := range m.sessions {
		if now.Sub(s.touched) > m.ttl {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	return expired
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
