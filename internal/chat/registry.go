package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry maps user identities to their live session, at most one per
// user per process. It is constructed at server start and passed into
// the websocket handler; lifecycle transitions of a session are the only
// mutations.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	logger   zerolog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		logger:   logger,
	}
}

// Register records the session as the live one for its user and returns
// the session it displaced, if any. The caller is responsible for
// closing the displaced session.
func (r *Registry) Register(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sessions[s.userID]
	r.sessions[s.userID] = s

	if prev != nil {
		r.logger.Info().
			Str("user_id", s.userID.String()).
			Str("session_id", s.id).
			Str("displaced_session_id", prev.id).
			Msg("session displaced by new connection")
	}
	return prev
}

// Deregister removes the session from the registry, but only if it is
// still the current one for its user. A session displaced by a newer
// connection must not remove its successor during teardown.
func (r *Registry) Deregister(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[s.userID] != s {
		return false
	}
	delete(r.sessions, s.userID)
	return true
}

// Get returns the live session for a user, or nil.
func (r *Registry) Get(userID uuid.UUID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// DrainAll closes every live session. Used during server shutdown.
func (r *Registry) DrainAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
