package calculator

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an id the store does not hold.
var ErrSessionNotFound = errors.New("session not found")

// KeyOutcome is the effect of one key on a session.
type KeyOutcome struct {
	Key    rune
	Token  Token
	Before Calculator
	After  Calculator
	Err    error
}

// SessionStore holds one calculator per session id. Presses on the store are
// serialised; each one replaces the stored calculator wholesale.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Calculator
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Calculator)}
}

// Create starts a new session with an empty display and returns its id.
func (s *SessionStore) Create() (string, Calculator) {
	id := uuid.New().String()
	calc := New()

	s.mu.Lock()
	s.sessions[id] = calc
	s.mu.Unlock()

	return id, calc
}

func (s *SessionStore) Get(id string) (Calculator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	calc, ok := s.sessions[id]
	if !ok {
		return Calculator{}, ErrSessionNotFound
	}
	return calc, nil
}

// Press applies keys to the session one rune at a time and stores the final
// calculator. The per-key outcomes are returned in order.
func (s *SessionStore) Press(id, keys string) (Calculator, []KeyOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	calc, ok := s.sessions[id]
	if !ok {
		return Calculator{}, nil, ErrSessionNotFound
	}

	calc, outcomes := PressKeys(calc, keys)
	s.sessions[id] = calc

	return calc, outcomes, nil
}

// IfExists runs fn while holding the store lock, provided the session exists.
// Delete cannot complete while fn runs.
func (s *SessionStore) IfExists(id string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	return fn()
}

func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// PressKeys presses every rune of keys on calc and records each step.
func PressKeys(calc Calculator, keys string) (Calculator, []KeyOutcome) {
	outcomes := make([]KeyOutcome, 0, len(keys))

	for _, key := range keys {
		next, err := calc.Step(key)
		tok, _ := Classify(key)
		outcomes = append(outcomes, KeyOutcome{
			Key:    key,
			Token:  tok,
			Before: calc,
			After:  next,
			Err:    err,
		})
		calc = next
	}

	return calc, outcomes
}
