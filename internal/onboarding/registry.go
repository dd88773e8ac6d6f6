package onboarding

import "sync"

// Registry owns all live onboarding sessions, keyed by user identity. It
// guarantees at most one session per user and serializes step handling per
// user: two inbound events for the same user queue behind each other, while
// different users proceed independently.
type Registry struct {
	mu       sync.Mutex
	locks    map[int64]*sync.Mutex
	sessions map[int64]*Session
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		locks:    make(map[int64]*sync.Mutex),
		sessions: make(map[int64]*Session),
	}
}

// userLock returns the per-user step lock, creating it on first use. Locks
// are never removed so a queued event always finds the same mutex.
func (r *Registry) userLock(userID int64) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock := r.locks[userID]
	if lock == nil {
		lock = &sync.Mutex{}
		r.locks[userID] = lock
	}
	return lock
}

// get returns the user's session, if any. Callers must hold the user lock.
func (r *Registry) get(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

// put installs a session, returning any session it replaced so the caller
// can release its resources.
func (r *Registry) put(session *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.sessions[session.UserID]
	r.sessions[session.UserID] = session
	return previous
}

// remove discards the user's session, returning it for resource release.
func (r *Registry) remove(userID int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous := r.sessions[userID]
	delete(r.sessions, userID)
	return previous
}

// Active reports whether the user currently has a session.
func (r *Registry) Active(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID] != nil
}
