package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/studycoach/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo servers. Each returned session is cloned
// to prevent external mutation of internal state.
type InMemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*core.Session
	maxSessions int
	order       []string
}

// Options configures an InMemoryStore.
type Options struct {
	// MaxSessions evicts the oldest session once exceeded (0 = unbounded).
	MaxSessions int
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{sessions: make(map[string]*core.Session), maxSessions: opts.MaxSessions}
}

// Get returns an existing session (clone) or creates a new one lazily.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess.Clone(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}
	return s.createSessionLocked(sessionID).Clone(), nil
}

// Create forces the creation (or overwriting) of a session with the given id.
func (s *InMemoryStore) Create(sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSessionLocked(sessionID).Clone(), nil
}

// AppendExchange adds a completed turn to an existing or newly created session.
func (s *InMemoryStore) AppendExchange(sessionID string, ex core.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = s.createSessionLocked(sessionID)
	}
	sess.AddExchange(ex)
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (s *InMemoryStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	for i, id := range s.order {
		if id == sessionID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// createSessionLocked allocates and stores a new session; caller must already
// hold the write lock.
func (s *InMemoryStore) createSessionLocked(sessionID string) *core.Session {
	if _, exists := s.sessions[sessionID]; !exists {
		s.order = append(s.order, sessionID)
	}
	sess := core.NewSession(sessionID)
	s.sessions[sessionID] = sess
	if s.maxSessions > 0 && len(s.order) > s.maxSessions {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
	}
	return sess
}
