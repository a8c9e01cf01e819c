package core

import "sync"

// Registry is the concurrency-safe mapping from user identity to its live
// session. It is the only shared mutable structure in the process; every
// component consults it to decide whether a peer is reachable right now.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
	}
}

// Admit records session as the live transport for its identity. If a prior
// session exists for the same identity it is closed before the new one is
// installed, so "at most one live session per identity" holds at the
// transport level too, not just in the map.
func (r *Registry) Admit(session *Session) {
	r.mu.Lock()
	prior := r.sessions[session.UserID]
	r.sessions[session.UserID] = session
	r.mu.Unlock()

	if prior != nil {
		prior.Close()
	}
}

// Evict removes the mapping for the session's identity, but only if that
// exact session is still the current one. A replaced session's late
// disconnect must not evict its successor. Returns true if the mapping
// was removed.
func (r *Registry) Evict(session *Session) bool {
	r.mu.Lock()
	current, ok := r.sessions[session.UserID]
	if ok && current == session {
		delete(r.sessions, session.UserID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	session.Close()
	return ok
}

// Lookup returns the live session for userID, or nil if unreachable.
func (r *Registry) Lookup(userID int64) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[userID]
}

// Snapshot returns the current sessions, excluding excludeUserID.
// Used for presence fan-out.
func (r *Registry) Snapshot(excludeUserID int64) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		if id == excludeUserID {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
