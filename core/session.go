package core

import (
	"sync"
	"time"
)

// Exchange is one completed turn as seen by the learner: the input and the
// final answer. Tool traffic is not kept across turns.
type Exchange struct {
	Input  string    `json:"input"`
	Answer string    `json:"answer"`
	At     time.Time `json:"at"`
}

// Session is a conversational container holding the ordered exchanges of one
// learner. It is safe for concurrent access.
//
// Contract:
//   - AddExchange updates the Updated timestamp
//   - GetExchanges returns a copy
//   - History rebuilds the user/assistant message pairs used as prior history
//   - Clone performs a deep copy for safe divergence.
type Session struct {
	ID        string     `json:"id"`
	Exchanges []Exchange `json:"exchanges"`
	Created   time.Time  `json:"created"`
	Updated   time.Time  `json:"updated"`
	mu        sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Exchanges: []Exchange{}, Created: now, Updated: now}
}

// AddExchange appends a completed turn.
func (s *Session) AddExchange(ex Exchange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ex.At.IsZero() {
		ex.At = time.Now()
	}
	s.Exchanges = append(s.Exchanges, ex)
	s.Updated = ex.At
}

// GetExchanges returns a copy of the exchanges.
func (s *Session) GetExchanges() []Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Exchange, len(s.Exchanges))
	copy(out, s.Exchanges)
	return out
}

// History returns the exchanges as alternating user and assistant messages,
// keeping at most the last limit exchanges (all when limit <= 0).
func (s *Session) History(limit int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exs := s.Exchanges
	if limit > 0 && len(exs) > limit {
		exs = exs[len(exs)-limit:]
	}
	msgs := make([]Message, 0, 2*len(exs))
	for _, ex := range exs {
		msgs = append(msgs, NewUserMessage(ex.Input))
		if ex.Answer != "" {
			msgs = append(msgs, NewAssistantMessage(ex.Answer))
		}
	}
	return msgs
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Exchanges: make([]Exchange, len(s.Exchanges)), Created: s.Created, Updated: s.Updated}
	copy(clone.Exchanges, s.Exchanges)
	return clone
}

// SessionStore persists sessions and their exchanges.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendExchange(sessionID string, ex Exchange) error
	Delete(id string) error
}
