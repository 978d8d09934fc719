// Package session keeps the transient per-user conversation state. Nothing is
// persisted; a restart drops every session.
package session

import (
	"maps"
	"sync"
	"time"

	"docbot/internal/domain"
)

// Store is an in-memory session map keyed by user id. It is safe for
// concurrent use by different users.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore returns a store whose idle sessions expire after ttl. A zero ttl
// disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[int64]*domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetAwaitingPhoto starts a photo-requiring flow for user, replacing any
// previous session.
func (s *Store) SetAwaitingPhoto(user int64, template string, fields map[string]string, needsParams bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[user] = &domain.Session{
		Step:        domain.StepAwaitingPhoto,
		Template:    template,
		Fields:      maps.Clone(fields),
		NeedsParams: needsParams,
		UpdatedAt:   s.now(),
	}
}

// AttachPhoto stores the uploaded bytes on an active flow. It fails with
// domain.ErrNoPendingFlow when the user is idle, leaving state untouched.
func (s *Store) AttachPhoto(user int64, data []byte) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[user]
	if !ok || sess.Step == domain.StepIdle {
		return domain.Session{}, domain.ErrNoPendingFlow
	}
	sess.Image = data
	sess.UpdatedAt = s.now()
	return sess.Clone(), nil
}

// SetAwaitingParameters moves an active flow to the parameters step.
func (s *Store) SetAwaitingParameters(user int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[user]
	if !ok || sess.Step == domain.StepIdle {
		return domain.ErrNoPendingFlow
	}
	sess.Step = domain.StepAwaitingParameters
	sess.UpdatedAt = s.now()
	return nil
}

// SetFields merges fields into the user's session, creating an idle session
// if none exists. Keys are upper-cased.
func (s *Store) SetFields(user int64, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[user]
	if !ok {
		sess = &domain.Session{Step: domain.StepIdle}
		s.sessions[user] = sess
	}
	if sess.Fields == nil {
		sess.Fields = make(map[string]string, len(fields))
	}
	for k, v := range fields {
		sess.Fields[domain.FieldKey(k)] = v
	}
	sess.UpdatedAt = s.now()
}

// Get returns a copy of the user's session; users without one are idle.
func (s *Store) Get(user int64) domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[user]
	if !ok {
		return domain.Session{Step: domain.StepIdle}
	}
	return sess.Clone()
}

// Clear resets the user to idle and drops any image and fields.
func (s *Store) Clear(user int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, user)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the ttl and returns how many were
// removed.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for user, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, user)
			removed++
		}
	}
	return removed
}
