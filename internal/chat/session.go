package chat

import (
	"sync"
	"time"

	"github.com/zulandar/shiftlog/internal/report"
)

// SessionStore holds one report.Conversation per session key. Callers
// bracket every event with Acquire and Release; Sweep expires conversations
// that have been idle longer than the configured timeout, skipping any that
// are currently in use.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*session
	idleTimeout time.Duration
	now         func() time.Time
}

type session struct {
	conv       report.Conversation
	lastActive time.Time
	busy       int
}

// SessionStoreOpts holds parameters for creating a SessionStore.
type SessionStoreOpts struct {
	IdleTimeout time.Duration    // 0 disables expiry
	Now         func() time.Time // defaults to time.Now
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore(opts SessionStoreOpts) *SessionStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions:    make(map[string]*session),
		idleTimeout: opts.IdleTimeout,
		now:         now,
	}
}

// Acquire returns the conversation for key, creating an idle one if none
// exists, and marks it in use. The pointer is valid until Release.
func (s *SessionStore) Acquire(key string) *report.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = &session{}
		s.sessions[key] = sess
	}
	sess.busy++
	sess.lastActive = s.now()
	return &sess.conv
}

// Release marks the conversation for key as no longer in use. Sessions with
// no draft in progress are dropped once nobody holds them.
func (s *SessionStore) Release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return
	}
	if sess.busy > 0 {
		sess.busy--
	}
	sess.lastActive = s.now()
	if sess.busy == 0 && !sess.conv.Active() {
		delete(s.sessions, key)
	}
}

// Remove drops the session for key regardless of state and returns its
// conversation, or nil if there was none.
func (s *SessionStore) Remove(key string) *report.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}
	delete(s.sessions, key)
	return &sess.conv
}

// Sweep removes every idle, unused conversation whose last activity is older
// than the idle timeout and calls expire for each one outside the lock. It
// returns the number of conversations expired.
func (s *SessionStore) Sweep(expire func(key string, conv *report.Conversation)) int {
	if s.idleTimeout <= 0 {
		return 0
	}
	s.mu.Lock()
	cutoff := s.now().Add(-s.idleTimeout)
	expired := make(map[string]*report.Conversation)
	for key, sess := range s.sessions {
		if sess.busy > 0 || !sess.lastActive.Before(cutoff) {
			continue
		}
		delete(s.sessions, key)
		expired[key] = &sess.conv
	}
	s.mu.Unlock()

	for key, conv := range expired {
		if expire != nil {
			expire(key, conv)
		}
	}
	return len(expired)
}

// Len returns the number of sessions currently held.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
